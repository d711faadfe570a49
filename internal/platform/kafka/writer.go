package kafka

import (
	"context"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/deliveryhub/pkg/config"
)

// ErrDisabled is returned by the writer used when no brokers are configured.
var ErrDisabled = errors.New("kafka: no brokers configured")

// Writer is the subset of *kafka.Writer used by producers.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type nopWriter struct{}

func (nopWriter) WriteMessages(context.Context, ...kafkago.Message) error { return ErrDisabled }
func (nopWriter) Close() error                                            { return nil }

// NewWriter builds a hash-balanced writer for the configured topic so events
// for one recurrency keep their order.
func NewWriter(cfg *cfgpkg.Config, log *zap.SugaredLogger) Writer {
	if cfg == nil || len(cfg.Kafka.Brokers) == 0 {
		log.Infow("kafka producer disabled")
		return nopWriter{}
	}
	log.Infow("kafka producer configured", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Kafka.Brokers...),
		Topic:                  cfg.Kafka.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
}

func registerClose(lc fx.Lifecycle, log *zap.SugaredLogger, w Writer) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Infow("closing kafka producer")
			return w.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewWriter),
	fx.Invoke(registerClose),
)
