package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Scheduler records delivery generation outcomes.
type Scheduler struct {
	generated     *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastBatch     *prometheus.GaugeVec
}

// NewScheduler builds the scheduler collectors and registers them with reg.
// Collectors that are already registered are reused.
func NewScheduler(reg prometheus.Registerer) (*Scheduler, error) {
	s := &Scheduler{
		generated:     NewMetric(MetricsDeliveriesGenerated, Subsystem).(*prometheus.CounterVec),
		batchDuration: NewMetric(MetricsBatchDuration, Subsystem).(prometheus.Histogram),
		lastBatch:     NewMetric(MetricsBatchLastProcessed, Subsystem).(*prometheus.GaugeVec),
	}
	if reg == nil {
		return s, nil
	}
	var err error
	if s.generated, err = register(reg, s.generated); err != nil {
		return nil, err
	}
	if s.batchDuration, err = register(reg, s.batchDuration); err != nil {
		return nil, err
	}
	if s.lastBatch, err = register(reg, s.lastBatch); err != nil {
		return nil, err
	}
	return s, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// DeliveryGenerated counts one generation attempt. A nil receiver is a no-op.
func (s *Scheduler) DeliveryGenerated(frequency string, err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.generated.WithLabelValues(frequency, result).Inc()
}

// BatchFinished records the duration and counts of a due-today run.
func (s *Scheduler) BatchFinished(start time.Time, processed, failed int) {
	if s == nil {
		return
	}
	s.batchDuration.Observe(MillisecondsSince(start))
	s.lastBatch.WithLabelValues("processed").Set(float64(processed))
	s.lastBatch.WithLabelValues("failed").Set(float64(failed))
}

// Generated exposes the generation counter, labelled by frequency and result.
func (s *Scheduler) Generated() *prometheus.CounterVec {
	return s.generated
}
