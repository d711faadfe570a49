package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/deliveryhub/internal/app/api/server"
	"github.com/fatflowers/deliveryhub/internal/app/service/customer"
	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/internal/app/service/duejob"
	notificationlog "github.com/fatflowers/deliveryhub/internal/app/service/notification_log"
	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/internal/platform/db"
	"github.com/fatflowers/deliveryhub/internal/platform/kafka"
	"github.com/fatflowers/deliveryhub/internal/platform/redislock"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core provides every service without starting the HTTP server or the cron runner.
var Core = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	clock.Module,
	kafka.Module,
	redislock.Module,
	customer.Module,
	delivery.Module,
	recurrency.Module,
	notificationlog.Module,
	statistics.Module,
	duejob.Module,
)

// Module is the long-running server: HTTP API plus the scheduled sweep.
var Module = fx.Options(
	Core,
	server.Module,
	duejob.Invoke,
)
