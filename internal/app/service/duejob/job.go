// Package duejob runs the daily due-today sweep on a cron schedule.
package duejob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/internal/platform/redislock"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/metrics"
	"github.com/fatflowers/deliveryhub/pkg/tool"
)

const (
	lockKey        = "process_due_today"
	defaultLockTTL = 10 * time.Minute
)

// ErrAlreadyRunning is returned when another instance holds the sweep lock.
var ErrAlreadyRunning = errors.New("due-today sweep already running")

// Snapshotter stores the daily recurrency snapshots after a sweep.
type Snapshotter interface {
	SaveDailySnapshots(ctx context.Context, day time.Time) (int, error)
}

type Params struct {
	fx.In

	Config    *config.Config
	Log       *zap.SugaredLogger
	Clock     clock.Clock
	Manager   recurrency.Manager
	Locker    redislock.Locker
	Snapshots Snapshotter `optional:"true"`
}

type Job struct {
	cfg       config.SchedulerConfig
	loc       *time.Location
	log       *zap.SugaredLogger
	clock     clock.Clock
	mgr       recurrency.Manager
	locker    redislock.Locker
	snapshots Snapshotter
}

func New(p Params) *Job {
	cfg := p.Config.Scheduler
	if cfg.ActorID == "" {
		cfg.ActorID = "system"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Job{
		cfg:       cfg,
		loc:       p.Config.Location(),
		log:       p.Log.With("job", lockKey),
		clock:     p.Clock,
		mgr:       p.Manager,
		locker:    p.Locker,
		snapshots: p.Snapshots,
	}
}

// RunOnce processes today's due recurrencies under the cluster-wide lock,
// then refreshes the daily snapshots.
func (j *Job) RunOnce(ctx context.Context) (*recurrency.ProcessResult, error) {
	return j.RunAs(ctx, j.cfg.ActorID)
}

// RunAs is RunOnce on behalf of actorID; an empty actor falls back to the
// configured scheduler actor.
func (j *Job) RunAs(ctx context.Context, actorID string) (*recurrency.ProcessResult, error) {
	if actorID == "" {
		actorID = j.cfg.ActorID
	}
	release, err := j.locker.Acquire(ctx, lockKey, j.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	log := j.log.With("trace_id", tool.NewTraceID())
	ctx = logctx.WithLogger(ctx, log)
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warnw("failed to release sweep lock", "error", err)
		}
	}()

	res, err := j.mgr.ProcessDueToday(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if j.snapshots != nil {
		n, err := j.snapshots.SaveDailySnapshots(ctx, j.clock.Now(ctx))
		if err != nil {
			log.Errorf("failed to save daily snapshots: %v", err)
		} else {
			log.Infow("daily snapshots saved", "count", n)
		}
	}
	return res, nil
}

// Schedule builds the cron runner for the sweep. The runner is not started.
func (j *Job) Schedule() (*cron.Cron, error) {
	l := cronLogger{log: j.log}
	c := cron.New(
		cron.WithLocation(j.loc),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	if _, err := c.AddFunc(j.cfg.Cron, func() {
		res, err := j.RunOnce(context.Background())
		switch {
		case errors.Is(err, ErrAlreadyRunning):
			j.log.Infow("sweep skipped, lock held elsewhere")
		case err != nil:
			j.log.Errorf("due-today sweep failed: %v", err)
		default:
			j.log.Infow("due-today sweep finished", "processed", res.Processed, "failed", res.Failed())
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid scheduler cron %q: %w", j.cfg.Cron, err)
	}
	return c, nil
}

func register(lc fx.Lifecycle, j *Job) error {
	if !j.cfg.Enabled {
		j.log.Infow("due-today scheduler disabled")
		return nil
	}
	c, err := j.Schedule()
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			j.log.Infow("due-today scheduler started", "cron", j.cfg.Cron, "tz", j.loc.String())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func newSchedulerMetrics() (*metrics.Scheduler, error) {
	return metrics.NewScheduler(prometheus.DefaultRegisterer)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Module wires the job without starting it; Invoke registers the cron runner.
var Module = fx.Options(
	fx.Provide(
		New,
		newSchedulerMetrics,
		func(s *statistics.Service) Snapshotter { return s },
	),
)

var Invoke = fx.Invoke(register)
