package notification_log

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/samber/lo"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/internal/platform/kafka"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/tool"
)

const (
	EventDeliveryGenerated = "delivery.generated"
	publishTimeout         = 5 * time.Second
)

// DeliveryGeneratedEvent is the payload published for every generated delivery.
type DeliveryGeneratedEvent struct {
	Event          string    `json:"event"`
	DeliveryID     string    `json:"delivery_id"`
	RecurrencyID   string    `json:"recurrency_id"`
	CustomerID     string    `json:"customer_id"`
	ScheduledDate  time.Time `json:"scheduled_date"`
	TotalValue     int64     `json:"total_value"`
	PaymentMethod  string    `json:"payment_method"`
	NotifyCustomer bool      `json:"notify_customer"`
	// NotifyAt is the scheduled date minus the recurrency's notification hours.
	NotifyAt   *time.Time `json:"notify_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Service publishes delivery events to Kafka and keeps a log row per event.
type Service struct {
	db     *gorm.DB
	log    *zap.SugaredLogger
	writer kafka.Writer
	clock  clock.Clock
	topic  string
}

func New(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger, writer kafka.Writer, clk clock.Clock) *Service {
	topic := ""
	if cfg != nil {
		topic = cfg.Kafka.Topic
	}
	return &Service{db: db, log: log, writer: writer, clock: clk, topic: topic}
}

// NewEvent builds the event for d, generated from r.
func NewEvent(r *models.Recurrency, d *models.Delivery, now time.Time) DeliveryGeneratedEvent {
	ev := DeliveryGeneratedEvent{
		Event:          EventDeliveryGenerated,
		DeliveryID:     d.ID,
		RecurrencyID:   r.ID,
		CustomerID:     d.CustomerID,
		TotalValue:     d.TotalValue,
		PaymentMethod:  string(d.PaymentMethod),
		NotifyCustomer: r.NotifyCustomer,
		OccurredAt:     now.UTC(),
	}
	if d.ScheduledDate != nil {
		ev.ScheduledDate = d.ScheduledDate.UTC()
		if r.NotifyCustomer && r.NotificationHours > 0 {
			ev.NotifyAt = lo.ToPtr(ev.ScheduledDate.Add(-time.Duration(r.NotificationHours) * time.Hour))
		}
	}
	return ev
}

// DeliveryGenerated publishes the event and records the outcome. Failures are
// logged and never returned: the delivery is already committed.
func (s *Service) DeliveryGenerated(ctx context.Context, r *models.Recurrency, d *models.Delivery) {
	if r == nil || d == nil {
		return
	}
	log := logctx.FromCtx(ctx, s.log)
	ev := NewEvent(r, d, s.clock.Now(ctx))
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("failed to marshal delivery event: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	entry := &models.DeliveryEventLog{
		ID:           tool.NewID(),
		DeliveryID:   d.ID,
		RecurrencyID: r.ID,
		TraceID:      logctx.TraceIDFromCtx(ctx),
		Topic:        s.topic,
		Data:         datatypes.JSON(payload),
		Status:       models.DeliveryEventLogStatusPublished,
	}
	err = s.writer.WriteMessages(pubCtx, kafkago.Message{Key: []byte(r.ID), Value: payload})
	switch {
	case errors.Is(err, kafka.ErrDisabled):
		entry.Status = models.DeliveryEventLogStatusSkipped
	case err != nil:
		entry.Status = models.DeliveryEventLogStatusPublishFailed
		entry.Error = lo.ToPtr(err.Error())
		log.Warnw("failed to publish delivery event", "delivery_id", d.ID, "error", err)
	}
	s.Save(pubCtx, entry)
}

// Save persists an event log row. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.DeliveryEventLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.NewID()
	}
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save delivery event log: %v", err)
	}
}

var Module = fx.Options(
	fx.Provide(
		New,
		func(s *Service) recurrency.EventPublisher { return s },
	),
)
