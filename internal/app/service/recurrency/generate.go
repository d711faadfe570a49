package recurrency

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

// GenerateDelivery creates the delivery for the recurrency's next delivery
// date and advances the schedule. The delivery insert, the recurrency update
// and the audit log commit together or not at all.
func (s *Service) GenerateDelivery(ctx context.Context, id, actorID string) (*GenerateResult, error) {
	var (
		res  *GenerateResult
		freq types.RecurrencyFrequency
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewStore(tx)
		r, err := st.FindByID(ctx, id)
		if err != nil {
			return err
		}
		freq = r.Frequency
		if !r.IsActive() || r.NextDeliveryDate == nil {
			return fmt.Errorf("%w: %s is %s", ErrNotActive, id, r.Status)
		}
		before := r.Clone()

		scheduled := r.NextDeliveryDate.In(s.loc)
		address := r.DeliveryAddress.Data()
		d, err := s.deliveries.Create(ctx, tx, &delivery.CreateRequest{
			CustomerID:      r.CustomerID,
			DeliveryAddress: address,
			Items:           r.Items.Data(),
			ScheduledDate:   &scheduled,
			TotalValue:      r.TotalValue,
			DeliveryFee:     r.DeliveryFee,
			PaymentMethod:   r.PaymentMethod,
			Notes:           r.Notes,
			RecurrencyID:    &r.ID,
			Status:          types.DeliveryStatusPending,
		}, actorID)
		if err != nil {
			return err
		}

		r.Deliveries = datatypes.NewJSONType(append(r.Deliveries.Data(), d.ID))
		r.DeliveriesCount++
		r.LastDeliveryDate = &scheduled

		next, err := NextDeliveryDate(advanceReference(scheduled, r.Frequency), s.clock.Now(ctx), s.loc, r.Rule())
		if err != nil {
			return err
		}
		completed := s.schedule(r, next)

		if err := st.Save(ctx, r); err != nil {
			return err
		}
		extra := map[string]any{"delivery_id": d.ID, "scheduled_date": scheduled.UTC()}
		if err := st.AppendLog(ctx, before, r, types.RecurrencyChangeReasonGenerateDelivery, actorID, extra); err != nil {
			return err
		}
		if completed {
			if err := st.AppendLog(ctx, before, r, types.RecurrencyChangeReasonComplete, actorID, extra); err != nil {
				return err
			}
		}
		res = &GenerateResult{Delivery: d, Recurrency: r}
		return nil
	})
	s.metrics.DeliveryGenerated(string(freq), err)
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("delivery generated",
		"recurrency_id", id,
		"delivery_id", res.Delivery.ID,
		"status", res.Recurrency.Status,
		"next_delivery_date", res.Recurrency.NextDeliveryDate)
	if s.events != nil {
		s.events.DeliveryGenerated(ctx, res.Recurrency, res.Delivery)
	}
	return res, nil
}

// ProcessDueToday generates one delivery for every active recurrency whose
// next delivery date falls on today in the scheduler time zone. A failed item
// is reported in its result and does not stop the others.
func (s *Service) ProcessDueToday(ctx context.Context, actorID string) (*ProcessResult, error) {
	start := time.Now()
	today := startOfDay(s.clock.Now(ctx), s.loc)
	due, err := NewStore(s.db).FindActiveDueBetween(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	results := make([]ItemResult, len(due))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, r := range due {
		g.Go(func() error {
			results[i] = s.processOne(ctx, r.ID, actorID)
			return nil
		})
	}
	_ = g.Wait()

	out := &ProcessResult{Processed: len(due), Results: results}
	failed := out.Failed()
	s.metrics.BatchFinished(start, out.Processed, failed)
	logctx.FromCtx(ctx, s.log).Infow("due deliveries processed",
		"date", today.Format(time.DateOnly), "processed", out.Processed, "failed", failed, "elapsed", time.Since(start))
	return out, nil
}

func (s *Service) processOne(ctx context.Context, id, actorID string) ItemResult {
	item := ItemResult{RecurrencyID: id}
	if err := s.limiter.Wait(ctx); err != nil {
		item.Error = err.Error()
		return item
	}
	res, err := s.GenerateDelivery(ctx, id, actorID)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to generate delivery", "recurrency_id", id, "error", err)
		item.Error = err.Error()
		return item
	}
	item.Success = true
	item.DeliveryID = res.Delivery.ID
	return item
}
