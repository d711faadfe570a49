package recurrency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/metrics"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

const (
	defaultNotificationHours = 24
	defaultListSize          = 20
	maxListSize              = 100
)

var (
	listFilterFields = []string{"status", "frequency", "customer_id", "payment_method", "next_delivery_date", "start_date", "end_date", "created_at"}
	listSortFields   = []string{"updated_at", "created_at", "next_delivery_date", "start_date", "name", "deliveries_count"}
)

type Params struct {
	fx.In

	Config     *config.Config
	DB         *gorm.DB
	Log        *zap.SugaredLogger
	Clock      clock.Clock
	Deliveries DeliveryCreator
	Customers  CustomerLookup     `optional:"true"`
	Events     EventPublisher     `optional:"true"`
	Metrics    *metrics.Scheduler `optional:"true"`
}

type Service struct {
	cfg        *config.Config
	db         *gorm.DB
	log        *zap.SugaredLogger
	clock      clock.Clock
	loc        *time.Location
	deliveries DeliveryCreator
	customers  CustomerLookup
	events     EventPublisher
	metrics    *metrics.Scheduler
	limiter    *rate.Limiter
	workers    int
}

func NewService(p Params) *Service {
	s := &Service{
		cfg:        p.Config,
		db:         p.DB,
		log:        p.Log,
		clock:      p.Clock,
		loc:        p.Config.Location(),
		deliveries: p.Deliveries,
		customers:  p.Customers,
		events:     p.Events,
		metrics:    p.Metrics,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		workers:    1,
	}
	if p.Config != nil {
		if p.Config.Scheduler.Workers > 0 {
			s.workers = p.Config.Scheduler.Workers
		}
		if rps := p.Config.Scheduler.RatePerSecond; rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
	if s.clock == nil {
		s.clock = clock.SystemClock{}
	}
	return s
}

// ComputeNextDeliveryDate projects rule from reference using the service clock and time zone.
func (s *Service) ComputeNextDeliveryDate(ctx context.Context, reference time.Time, rule types.ScheduleRule) (time.Time, error) {
	return NextDeliveryDate(reference, s.clock.Now(ctx), s.loc, rule)
}

func (s *Service) Create(ctx context.Context, req *CreateRequest, actorID string) (*models.Recurrency, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}
	rule := req.rule()
	if err := ValidateRule(rule); err != nil {
		return nil, err
	}
	rule = canonicalRule(rule)
	start := calendarDate(req.StartDate, s.loc)
	var end *time.Time
	if req.EndDate != nil {
		end = lo.ToPtr(calendarDate(*req.EndDate, s.loc))
	}
	if end != nil && end.Before(start) {
		return nil, fmt.Errorf("%w: end_date is before start_date", ErrInvalidScheduleRule)
	}

	address, err := s.resolveAddress(ctx, req)
	if err != nil {
		return nil, err
	}

	r := &models.Recurrency{
		CustomerID:        req.CustomerID,
		Name:              strings.TrimSpace(req.Name),
		Status:            types.RecurrencyStatusActive,
		StartDate:         start,
		EndDate:           end,
		DeliveryAddress:   datatypes.NewJSONType(address),
		Items:             datatypes.NewJSONType(req.Items),
		TotalValue:        req.TotalValue,
		DeliveryFee:       req.DeliveryFee,
		PaymentMethod:     lo.CoalesceOrEmpty(req.PaymentMethod, types.PaymentMethodCash),
		Notes:             req.Notes,
		NotifyCustomer:    lo.FromPtrOr(req.NotifyCustomer, true),
		NotificationHours: lo.FromPtrOr(req.NotificationHours, defaultNotificationHours),
		Deliveries:        datatypes.NewJSONType([]string{}),
	}
	r.SetRule(rule)
	if r.TotalValue == 0 {
		r.TotalValue = types.ItemsTotal(req.Items) + req.DeliveryFee
	}

	next, err := s.ComputeNextDeliveryDate(ctx, start, rule)
	if err != nil {
		return nil, err
	}
	if s.pastEnd(r, next) {
		return nil, fmt.Errorf("%w: no delivery date falls before end_date", ErrInvalidScheduleRule)
	}
	r.NextDeliveryDate = &next

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewStore(tx)
		if err := st.Create(ctx, r); err != nil {
			return err
		}
		return st.AppendLog(ctx, nil, r, types.RecurrencyChangeReasonCreate, actorID, nil)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("recurrency created",
		"recurrency_id", r.ID, "customer_id", r.CustomerID, "frequency", r.Frequency, "next_delivery_date", next)
	return r, nil
}

func (s *Service) resolveAddress(ctx context.Context, req *CreateRequest) (types.Address, error) {
	if !req.DeliveryAddress.IsZero() {
		return *req.DeliveryAddress, nil
	}
	if s.customers == nil {
		return types.Address{}, fmt.Errorf("%w: delivery_address is required", ErrInvalidRequest)
	}
	addr, err := s.customers.MainAddress(ctx, req.CustomerID)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: no delivery_address given and %v", ErrInvalidRequest, err)
	}
	addr.IsMain = false
	return addr, nil
}

func validateCreate(req *CreateRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.CustomerID == "" || strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: customer_id and name are required", ErrInvalidRequest)
	}
	if req.StartDate.IsZero() {
		return fmt.Errorf("%w: start_date is required", ErrInvalidRequest)
	}
	if !req.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleRule, req.Frequency)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	if err := validatePayload(req.Items, req.DeliveryFee, req.PaymentMethod, req.NotificationHours); err != nil {
		return err
	}
	if req.TotalValue < 0 {
		return fmt.Errorf("%w: total_value must not be negative", ErrInvalidRequest)
	}
	return nil
}

func validatePayload(items []types.DeliveryItem, fee int64, payment types.PaymentMethod, notificationHours *int) error {
	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" || it.Quantity < 1 || it.Price < 0 {
			return fmt.Errorf("%w: item %d needs a name, quantity >= 1 and price >= 0", ErrInvalidRequest, i)
		}
	}
	if fee < 0 {
		return fmt.Errorf("%w: delivery_fee must not be negative", ErrInvalidRequest)
	}
	if payment != "" && !payment.Valid() {
		return fmt.Errorf("%w: unknown payment_method %q", ErrInvalidRequest, payment)
	}
	if notificationHours != nil && *notificationHours < 1 {
		return fmt.Errorf("%w: notification_hours must be at least 1", ErrInvalidRequest)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Recurrency, error) {
	return NewStore(s.db).FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, req *ListRequest) (*ListResponse, error) {
	if req == nil {
		req = &ListRequest{}
	}
	if err := types.ValidateFields(req.Filters, listFilterFields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	sortBy := lo.CoalesceOrEmpty(req.SortBy, "updated_at")
	if !lo.Contains(listSortFields, sortBy) {
		return nil, fmt.Errorf("%w: cannot sort by %s", ErrInvalidRequest, sortBy)
	}
	size := req.Size
	if size <= 0 {
		size = defaultListSize
	}
	size = min(size, maxListSize)
	from := max(req.From, 0)

	rows, total, err := NewStore(s.db).List(ctx, types.Filters(req.Filters), from, size, sortBy, req.SortOrder != "asc")
	if err != nil {
		return nil, err
	}
	return &ListResponse{Items: rows, Total: total}, nil
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string, req *ListRequest) (*ListResponse, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	}
	scoped := ListRequest{}
	if req != nil {
		scoped = *req
	}
	scoped.Filters = append(lo.Filter(scoped.Filters, func(f *types.CommonFilter, _ int) bool {
		return f != nil && f.Field != "customer_id"
	}), &types.CommonFilter{Field: "customer_id", Operator: types.CommonFilterOperatorEq, Values: []any{customerID}})
	return s.List(ctx, &scoped)
}

func (s *Service) History(ctx context.Context, id string) ([]*models.RecurrencyLog, error) {
	return NewStore(s.db).Logs(ctx, id)
}

func (s *Service) Update(ctx context.Context, id string, req *UpdateRequest, actorID string) (*models.Recurrency, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	if req.Items != nil && len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	}
	if req.ClearEndDate && req.EndDate != nil {
		return nil, fmt.Errorf("%w: end_date and clear_end_date are exclusive", ErrInvalidRequest)
	}
	var payment types.PaymentMethod
	if req.PaymentMethod != nil {
		payment = *req.PaymentMethod
	}
	if err := validatePayload(req.Items, lo.FromPtr(req.DeliveryFee), payment, req.NotificationHours); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, actorID, types.RecurrencyChangeReasonUpdate, func(r *models.Recurrency, now time.Time) (bool, error) {
		if r.Status.Terminal() {
			return false, fmt.Errorf("%w: cannot update a %s recurrency", ErrInvalidTransition, r.Status)
		}
		if req.Name != nil {
			r.Name = strings.TrimSpace(*req.Name)
		}
		if req.DeliveryAddress != nil {
			r.DeliveryAddress = datatypes.NewJSONType(*req.DeliveryAddress)
		}
		if req.PaymentMethod != nil {
			r.PaymentMethod = *req.PaymentMethod
		}
		if req.Notes != nil {
			r.Notes = *req.Notes
		}
		if req.NotifyCustomer != nil {
			r.NotifyCustomer = *req.NotifyCustomer
		}
		if req.NotificationHours != nil {
			r.NotificationHours = *req.NotificationHours
		}
		if req.Items != nil || req.DeliveryFee != nil {
			if req.Items != nil {
				r.Items = datatypes.NewJSONType(req.Items)
			}
			if req.DeliveryFee != nil {
				r.DeliveryFee = *req.DeliveryFee
			}
			r.TotalValue = types.ItemsTotal(r.Items.Data()) + r.DeliveryFee
		}

		if req.changesSchedule() {
			rule := r.Rule()
			if req.Frequency != nil {
				rule.Frequency = *req.Frequency
			}
			if req.WeekDay != nil {
				rule.WeekDay = req.WeekDay
			}
			if req.MonthDay != nil {
				rule.MonthDay = req.MonthDay
			}
			if req.CustomDays != nil {
				rule.CustomDays = req.CustomDays
			}
			if err := ValidateRule(rule); err != nil {
				return false, err
			}
			r.SetRule(canonicalRule(rule))
			if req.StartDate != nil {
				r.StartDate = calendarDate(*req.StartDate, s.loc)
			}
			switch {
			case req.ClearEndDate:
				r.EndDate = nil
			case req.EndDate != nil:
				r.EndDate = lo.ToPtr(calendarDate(*req.EndDate, s.loc))
			}
			if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
				return false, fmt.Errorf("%w: end_date is before start_date", ErrInvalidScheduleRule)
			}
			if r.Status == types.RecurrencyStatusActive {
				next, err := NextDeliveryDate(s.resumeReference(r, r.StartDate), now, s.loc, rule)
				if err != nil {
					return false, err
				}
				s.schedule(r, next)
			}
		}
		return true, nil
	})
}

func (s *Service) Delete(ctx context.Context, id, actorID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewStore(tx)
		r, err := st.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := st.Delete(ctx, id); err != nil {
			return err
		}
		logctx.FromCtx(ctx, s.log).Infow("recurrency deleted", "recurrency_id", id, "actor_id", actorID)
		return st.AppendLog(ctx, r, nil, types.RecurrencyChangeReasonDelete, actorID, nil)
	})
}

// Pause stops generation and clears the next delivery date. Pausing a paused
// recurrency is a no-op.
func (s *Service) Pause(ctx context.Context, id, actorID string) (*models.Recurrency, error) {
	return s.mutate(ctx, id, actorID, types.RecurrencyChangeReasonPause, func(r *models.Recurrency, _ time.Time) (bool, error) {
		switch r.Status {
		case types.RecurrencyStatusPaused:
			return false, nil
		case types.RecurrencyStatusActive:
			r.Status = types.RecurrencyStatusPaused
			r.NextDeliveryDate = nil
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot pause a %s recurrency", ErrInvalidTransition, r.Status)
	})
}

// Activate resumes a paused recurrency with a next date recomputed from now.
func (s *Service) Activate(ctx context.Context, id, actorID string) (*models.Recurrency, error) {
	return s.mutate(ctx, id, actorID, types.RecurrencyChangeReasonActivate, func(r *models.Recurrency, now time.Time) (bool, error) {
		switch r.Status {
		case types.RecurrencyStatusActive:
			return false, nil
		case types.RecurrencyStatusPaused:
			next, err := NextDeliveryDate(s.resumeReference(r, now), now, s.loc, r.Rule())
			if err != nil {
				return false, err
			}
			r.Status = types.RecurrencyStatusActive
			s.schedule(r, next)
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot activate a %s recurrency", ErrInvalidTransition, r.Status)
	})
}

// Cancel is terminal. Cancelling a cancelled recurrency is a no-op.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (*models.Recurrency, error) {
	return s.mutate(ctx, id, actorID, types.RecurrencyChangeReasonCancel, func(r *models.Recurrency, _ time.Time) (bool, error) {
		switch r.Status {
		case types.RecurrencyStatusCancelled:
			return false, nil
		case types.RecurrencyStatusActive, types.RecurrencyStatusPaused:
			r.Status = types.RecurrencyStatusCancelled
			r.NextDeliveryDate = nil
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot cancel a %s recurrency", ErrInvalidTransition, r.Status)
	})
}

// mutate loads id, applies fn and persists the result with its audit log in
// one transaction. fn reports whether anything changed.
func (s *Service) mutate(ctx context.Context, id, actorID string, reason types.RecurrencyChangeReason, fn func(r *models.Recurrency, now time.Time) (bool, error)) (*models.Recurrency, error) {
	var out *models.Recurrency
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := NewStore(tx)
		r, err := st.FindByID(ctx, id)
		if err != nil {
			return err
		}
		before := r.Clone()
		changed, err := fn(r, s.clock.Now(ctx))
		if err != nil {
			return err
		}
		out = r
		if !changed {
			return nil
		}
		if err := st.Save(ctx, r); err != nil {
			return err
		}
		if r.Status == types.RecurrencyStatusCompleted && before.Status != types.RecurrencyStatusCompleted {
			reason = types.RecurrencyChangeReasonComplete
		}
		return st.AppendLog(ctx, before, r, reason, actorID, nil)
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("recurrency changed", "recurrency_id", id, "reason", reason, "status", out.Status)
	return out, nil
}

// resumeReference picks the reference for recomputing a schedule: the later
// of floor and start date, never re-using an already generated date.
func (s *Service) resumeReference(r *models.Recurrency, floor time.Time) time.Time {
	ref := r.StartDate
	if floor.After(ref) {
		ref = floor
	}
	if r.LastDeliveryDate != nil {
		if next := advanceReference(r.LastDeliveryDate.In(s.loc), r.Frequency); next.After(ref) {
			ref = next
		}
	}
	return ref
}

// schedule sets the next delivery date, completing the recurrency when the
// date falls after its end date.
func (s *Service) schedule(r *models.Recurrency, next time.Time) bool {
	if s.pastEnd(r, next) {
		r.Status = types.RecurrencyStatusCompleted
		r.NextDeliveryDate = nil
		return true
	}
	r.NextDeliveryDate = &next
	return false
}

func (s *Service) pastEnd(r *models.Recurrency, next time.Time) bool {
	return r.EndDate != nil && next.After(startOfDay(*r.EndDate, s.loc))
}
