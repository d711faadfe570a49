package recurrency

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/app/service/customer"
	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/internal/platform/db/dbtest"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/metrics"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

var testNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	db         *gorm.DB
	clock      *clock.Fixed
	deliveries *delivery.Service
	events     *recordingPublisher
	metrics    *metrics.Scheduler
}

type option func(*Params)

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	log := zap.NewNop().Sugar()
	clk := clock.NewFixed(testNow)
	deliveries := delivery.NewService(gdb, log, clk)
	events := &recordingPublisher{}
	m, err := metrics.NewScheduler(prometheus.NewRegistry())
	require.NoError(t, err)

	p := Params{
		Config:     &config.Config{Scheduler: config.SchedulerConfig{Timezone: "UTC", Workers: 4}},
		DB:         gdb,
		Log:        log,
		Clock:      clk,
		Deliveries: deliveries,
		Customers:  customer.NewService(gdb, log),
		Events:     events,
		Metrics:    m,
	}
	for _, o := range opts {
		o(&p)
	}
	return &fixture{svc: NewService(p), db: gdb, clock: clk, deliveries: deliveries, events: events, metrics: m}
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []string
}

func (p *recordingPublisher) DeliveryGenerated(_ context.Context, _ *models.Recurrency, d *models.Delivery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, d.ID)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// failingCreator fails for customers whose id starts with "bad", and
// delegates to next otherwise.
type failingCreator struct {
	next DeliveryCreator
}

func (f failingCreator) Create(ctx context.Context, tx *gorm.DB, req *delivery.CreateRequest, actorID string) (*models.Delivery, error) {
	if f.next == nil || strings.HasPrefix(req.CustomerID, "bad") {
		return nil, errors.New("delivery store unavailable")
	}
	return f.next.Create(ctx, tx, req, actorID)
}

func dailyRequest(customerID string) *CreateRequest {
	return &CreateRequest{
		CustomerID:      customerID,
		Name:            "Água semanal",
		Frequency:       types.RecurrencyFrequencyDaily,
		StartDate:       testNow,
		DeliveryAddress: &types.Address{Street: "Rua A", Number: "10", City: "Recife", ZipCode: "50000-000"},
		Items:           []types.DeliveryItem{{Name: "Água 20L", Quantity: 2, Price: 500}},
		DeliveryFee:     300,
	}
}

func countDeliveries(t *testing.T, gdb *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&models.Delivery{}).Count(&n).Error)
	return n
}

func reasons(logs []*models.RecurrencyLog) []types.RecurrencyChangeReason {
	return lo.Map(logs, func(l *models.RecurrencyLog, _ int) types.RecurrencyChangeReason { return l.Reason })
}

func TestCreate_Daily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	assert.Equal(t, types.RecurrencyStatusActive, r.Status)
	assert.Equal(t, int64(1300), r.TotalValue)
	assert.Equal(t, types.PaymentMethodCash, r.PaymentMethod)
	assert.True(t, r.NotifyCustomer)
	assert.Equal(t, 24, r.NotificationHours)
	assert.Equal(t, int64(1), r.Version)
	require.NotNil(t, r.NextDeliveryDate)
	assert.True(t, r.NextDeliveryDate.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)))

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.NextDeliveryDate.Equal(*r.NextDeliveryDate))
	assert.Equal(t, "Rua A", got.DeliveryAddress.Data().Street)

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, types.RecurrencyChangeReasonCreate, logs[0].Reason)
	assert.Equal(t, "operator-1", logs[0].ActorID)
	assert.Nil(t, logs[0].Before.Data())
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	weekday := 9

	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		want   error
	}{
		{"missing name", func(r *CreateRequest) { r.Name = " " }, ErrInvalidRequest},
		{"missing customer", func(r *CreateRequest) { r.CustomerID = "" }, ErrInvalidRequest},
		{"no items", func(r *CreateRequest) { r.Items = nil }, ErrInvalidRequest},
		{"zero quantity", func(r *CreateRequest) { r.Items[0].Quantity = 0 }, ErrInvalidRequest},
		{"negative fee", func(r *CreateRequest) { r.DeliveryFee = -1 }, ErrInvalidRequest},
		{"unknown payment", func(r *CreateRequest) { r.PaymentMethod = "barter" }, ErrInvalidRequest},
		{"zero notification hours", func(r *CreateRequest) { r.NotificationHours = lo.ToPtr(0) }, ErrInvalidRequest},
		{"unknown frequency", func(r *CreateRequest) { r.Frequency = "hourly" }, ErrInvalidScheduleRule},
		{"weekly without day", func(r *CreateRequest) { r.Frequency = types.RecurrencyFrequencyWeekly }, ErrInvalidScheduleRule},
		{"weekly out of range", func(r *CreateRequest) {
			r.Frequency = types.RecurrencyFrequencyWeekly
			r.WeekDay = &weekday
		}, ErrInvalidScheduleRule},
		{"end before start", func(r *CreateRequest) { r.EndDate = lo.ToPtr(testNow.AddDate(0, 0, -1)) }, ErrInvalidScheduleRule},
		{"end before first delivery", func(r *CreateRequest) { r.EndDate = lo.ToPtr(testNow) }, ErrInvalidScheduleRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := dailyRequest("cust-1")
			tt.mutate(req)
			_, err := f.svc.Create(ctx, req, "operator-1")
			require.ErrorIs(t, err, tt.want)
		})
	}

	var n int64
	require.NoError(t, f.db.Model(&models.Recurrency{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreate_UsesCustomerMainAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := customer.NewService(f.db, zap.NewNop().Sugar()).Create(ctx, &customer.CreateRequest{
		Name:  "Maria",
		Phone: "+55 81 99999-0000",
		Addresses: []types.Address{
			{Street: "Rua B", City: "Olinda"},
			{Street: "Rua C", City: "Recife", IsMain: true},
		},
	})
	require.NoError(t, err)

	req := dailyRequest(c.ID)
	req.DeliveryAddress = nil
	r, err := f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, "Rua C", r.DeliveryAddress.Data().Street)
	assert.False(t, r.DeliveryAddress.Data().IsMain)

	req = dailyRequest("missing-customer")
	req.DeliveryAddress = nil
	_, err = f.svc.Create(ctx, req, "operator-1")
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerateDelivery_Daily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC))
	res, err := f.svc.GenerateDelivery(ctx, r.ID, "operator-2")
	require.NoError(t, err)

	d := res.Delivery
	require.NotNil(t, d.ScheduledDate)
	assert.True(t, d.ScheduledDate.Equal(time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, r.ID, lo.FromPtr(d.RecurrencyID))
	assert.Equal(t, int64(1300), d.TotalValue)
	assert.Equal(t, types.DeliveryStatusPending, d.Status)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DeliveriesCount)
	assert.Equal(t, []string{d.ID}, got.Deliveries.Data())
	assert.Equal(t, int64(2), got.Version)
	require.NotNil(t, got.LastDeliveryDate)
	assert.True(t, got.LastDeliveryDate.Equal(*d.ScheduledDate))
	require.NotNil(t, got.NextDeliveryDate)
	assert.True(t, got.NextDeliveryDate.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))

	stored, err := f.deliveries.ListByRecurrency(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.RecurrencyChangeReason{types.RecurrencyChangeReasonCreate, types.RecurrencyChangeReasonGenerateDelivery}, reasons(logs))
	assert.Equal(t, d.ID, logs[1].Extra["delivery_id"])

	assert.Equal(t, 1, f.events.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Generated().WithLabelValues("daily", "ok")))
}

func TestGenerateDelivery_BiweeklyCadence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := dailyRequest("cust-1")
	req.Frequency = types.RecurrencyFrequencyBiweekly
	req.WeekDay = lo.ToPtr(int(time.Monday))
	r, err := f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)

	// 2026-10-15 is a Thursday: the first Monday within a week of today is pushed a week.
	first := time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)
	require.True(t, r.NextDeliveryDate.Equal(first), "got %s", r.NextDeliveryDate)

	for i := range 3 {
		want := first.AddDate(0, 0, 14*i)
		f.clock.Set(want.Add(7 * time.Hour))
		res, err := f.svc.GenerateDelivery(ctx, r.ID, "system")
		require.NoError(t, err)
		assert.True(t, res.Delivery.ScheduledDate.Equal(want), "delivery %d at %s", i, res.Delivery.ScheduledDate)
		assert.True(t, res.Recurrency.NextDeliveryDate.Equal(want.AddDate(0, 0, 14)))
	}
}

func TestGenerateDelivery_NotActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paused, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)
	_, err = f.svc.Pause(ctx, paused.ID, "operator-1")
	require.NoError(t, err)

	cancelled, err := f.svc.Create(ctx, dailyRequest("cust-2"), "operator-1")
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, cancelled.ID, "operator-1")
	require.NoError(t, err)

	for _, id := range []string{paused.ID, cancelled.ID} {
		before, err := f.svc.Get(ctx, id)
		require.NoError(t, err)

		_, err = f.svc.GenerateDelivery(ctx, id, "operator-1")
		require.ErrorIs(t, err, ErrNotActive)

		after, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version)
		assert.Zero(t, after.DeliveriesCount)
	}

	_, err = f.svc.GenerateDelivery(ctx, "00000000-0000-0000-0000-000000000000", "operator-1")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, countDeliveries(t, f.db))
	assert.Zero(t, f.events.count())
}

func TestGenerateDelivery_CompletesAtEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := dailyRequest("cust-1")
	req.EndDate = lo.ToPtr(time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC))
	r, err := f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC))
	res, err := f.svc.GenerateDelivery(ctx, r.ID, "system")
	require.NoError(t, err)
	assert.Equal(t, types.RecurrencyStatusCompleted, res.Recurrency.Status)
	assert.Nil(t, res.Recurrency.NextDeliveryDate)

	_, err = f.svc.GenerateDelivery(ctx, r.ID, "system")
	require.ErrorIs(t, err, ErrNotActive)
	assert.Equal(t, int64(1), countDeliveries(t, f.db))

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.RecurrencyChangeReason{
		types.RecurrencyChangeReasonCreate,
		types.RecurrencyChangeReasonGenerateDelivery,
		types.RecurrencyChangeReasonComplete,
	}, reasons(logs))

	_, err = f.svc.Activate(ctx, r.ID, "operator-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGenerateDelivery_FailureLeavesRecurrencyUntouched(t *testing.T) {
	f := newFixture(t, func(p *Params) { p.Deliveries = failingCreator{} })
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC))
	_, err = f.svc.GenerateDelivery(ctx, r.ID, "system")
	require.Error(t, err)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Zero(t, got.DeliveriesCount)
	assert.Nil(t, got.LastDeliveryDate)
	assert.True(t, got.NextDeliveryDate.Equal(*r.NextDeliveryDate))

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Zero(t, f.events.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Generated().WithLabelValues("daily", "error")))
}

func TestProcessDueToday(t *testing.T) {
	f := newFixture(t, func(p *Params) { p.Deliveries = failingCreator{next: p.Deliveries} })
	ctx := context.Background()

	var ids []string
	for _, c := range []string{"cust-1", "bad-2", "cust-3", "cust-4", "bad-5"} {
		r, err := f.svc.Create(ctx, dailyRequest(c), "operator-1")
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	paused, err := f.svc.Create(ctx, dailyRequest("cust-6"), "operator-1")
	require.NoError(t, err)
	_, err = f.svc.Pause(ctx, paused.ID, "operator-1")
	require.NoError(t, err)
	// due the day after tomorrow, outside today's window
	later := dailyRequest("cust-7")
	later.StartDate = testNow.AddDate(0, 0, 2)
	_, err = f.svc.Create(ctx, later, "operator-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC))
	res, err := f.svc.ProcessDueToday(ctx, "system")
	require.NoError(t, err)

	assert.Equal(t, 5, res.Processed)
	require.Len(t, res.Results, 5)
	assert.Equal(t, 2, res.Failed())
	assert.ElementsMatch(t, ids, lo.Map(res.Results, func(r ItemResult, _ int) string { return r.RecurrencyID }))
	for _, item := range res.Results {
		r, err := f.svc.Get(ctx, item.RecurrencyID)
		require.NoError(t, err)
		if strings.HasPrefix(r.CustomerID, "bad") {
			assert.False(t, item.Success)
			assert.NotEmpty(t, item.Error)
			assert.Zero(t, r.DeliveriesCount)
			continue
		}
		assert.True(t, item.Success)
		assert.NotEmpty(t, item.DeliveryID)
		assert.Equal(t, 1, r.DeliveriesCount)
		assert.True(t, r.NextDeliveryDate.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
	}
	assert.Equal(t, int64(3), countDeliveries(t, f.db))

	// a second run the same day only retries the failures
	res, err = f.svc.ProcessDueToday(ctx, "system")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 2, res.Failed())
	assert.Equal(t, int64(3), countDeliveries(t, f.db))
}

func TestProcessDueToday_Empty(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ProcessDueToday(context.Background(), "system")
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Empty(t, res.Results)
}

func TestStore_SaveDetectsConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	st := NewStore(f.db)
	first, err := st.FindByID(ctx, r.ID)
	require.NoError(t, err)
	second, err := st.FindByID(ctx, r.ID)
	require.NoError(t, err)

	first.Notes = "ring twice"
	require.NoError(t, st.Save(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Notes = "leave at the door"
	err = st.Save(ctx, second)
	require.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, int64(1), second.Version)

	got, err := st.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "ring twice", got.Notes)
}

func TestTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	paused, err := f.svc.Pause(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, types.RecurrencyStatusPaused, paused.Status)
	assert.Nil(t, paused.NextDeliveryDate)

	again, err := f.svc.Pause(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, paused.Version, again.Version)

	f.clock.Set(time.Date(2026, 10, 20, 15, 0, 0, 0, time.UTC))
	active, err := f.svc.Activate(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, types.RecurrencyStatusActive, active.Status)
	require.NotNil(t, active.NextDeliveryDate)
	assert.True(t, active.NextDeliveryDate.Equal(time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)))

	cancelled, err := f.svc.Cancel(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, types.RecurrencyStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.NextDeliveryDate)

	_, err = f.svc.Cancel(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	_, err = f.svc.Activate(ctx, r.ID, "operator-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Pause(ctx, r.ID, "operator-1")
	require.ErrorIs(t, err, ErrInvalidTransition)

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.RecurrencyChangeReason{
		types.RecurrencyChangeReasonCreate,
		types.RecurrencyChangeReasonPause,
		types.RecurrencyChangeReasonActivate,
		types.RecurrencyChangeReasonCancel,
	}, reasons(logs))
	assert.Equal(t, types.RecurrencyStatusActive, logs[1].Before.Data().Status)
	assert.Equal(t, types.RecurrencyStatusPaused, logs[1].After.Data().Status)
}

func TestActivate_DoesNotRepeatGeneratedDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 6, 0, 0, 0, time.UTC))
	_, err = f.svc.GenerateDelivery(ctx, r.ID, "system")
	require.NoError(t, err)
	_, err = f.svc.Pause(ctx, r.ID, "operator-1")
	require.NoError(t, err)

	active, err := f.svc.Activate(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	assert.True(t, active.NextDeliveryDate.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	weekly := types.RecurrencyFrequencyWeekly
	updated, err := f.svc.Update(ctx, r.ID, &UpdateRequest{
		Name:      lo.ToPtr("Água de segunda"),
		Frequency: &weekly,
		WeekDay:   lo.ToPtr(int(time.Monday)),
		Items:     []types.DeliveryItem{{Name: "Água 20L", Quantity: 3, Price: 500}},
	}, "operator-1")
	require.NoError(t, err)
	assert.Equal(t, "Água de segunda", updated.Name)
	assert.Equal(t, types.RecurrencyFrequencyWeekly, updated.Frequency)
	assert.Equal(t, int64(1800), updated.TotalValue)
	assert.True(t, updated.NextDeliveryDate.Equal(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(2), updated.Version)

	monthly := types.RecurrencyFrequencyMonthly
	_, err = f.svc.Update(ctx, r.ID, &UpdateRequest{Frequency: &monthly, MonthDay: lo.ToPtr(40)}, "operator-1")
	require.ErrorIs(t, err, ErrInvalidScheduleRule)
	_, err = f.svc.Update(ctx, r.ID, &UpdateRequest{Name: lo.ToPtr("")}, "operator-1")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Cancel(ctx, r.ID, "operator-1")
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, r.ID, &UpdateRequest{Notes: lo.ToPtr("late")}, "operator-1")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdate_FrequencyChangeAndEndDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := dailyRequest("cust-1")
	req.Frequency = types.RecurrencyFrequencyWeekly
	req.WeekDay = lo.ToPtr(int(time.Wednesday))
	req.MonthDay = lo.ToPtr(5)
	r, err := f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)
	assert.Nil(t, r.MonthDay, "weekly does not keep month_day")

	monthly := types.RecurrencyFrequencyMonthly
	updated, err := f.svc.Update(ctx, r.ID, &UpdateRequest{
		Frequency: &monthly,
		MonthDay:  lo.ToPtr(20),
		EndDate:   lo.ToPtr(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)),
	}, "operator-1")
	require.NoError(t, err)
	got, err := f.svc.Get(ctx, updated.ID)
	require.NoError(t, err)
	assert.Nil(t, got.WeekDay)
	assert.Equal(t, 20, lo.FromPtr(got.MonthDay))
	require.NotNil(t, got.EndDate)
	assert.True(t, got.NextDeliveryDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)))

	_, err = f.svc.Update(ctx, r.ID, &UpdateRequest{
		ClearEndDate: true,
		EndDate:      lo.ToPtr(time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC)),
	}, "operator-1")
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.svc.Update(ctx, r.ID, &UpdateRequest{ClearEndDate: true}, "operator-1")
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndDate)
	assert.Equal(t, types.RecurrencyStatusActive, got.Status)
}

func TestCreate_DateOnlyInputKeepsCalendarDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	f := newFixture(t, func(p *Params) {
		p.Config = &config.Config{Scheduler: config.SchedulerConfig{Timezone: "America/Sao_Paulo", Workers: 1}}
	})
	ctx := context.Background()

	req := dailyRequest("cust-1")
	req.StartDate = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	req.EndDate = lo.ToPtr(time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC))
	r, err := f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.StartDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, loc)), "start %s", got.StartDate.In(loc))
	assert.True(t, got.EndDate.Equal(time.Date(2026, 10, 25, 0, 0, 0, 0, loc)), "end %s", got.EndDate.In(loc))
	assert.True(t, got.NextDeliveryDate.Equal(time.Date(2026, 10, 20, 0, 0, 0, 0, loc)), "next %s", got.NextDeliveryDate.In(loc))

	// an end date equal to the only possible first day is still accepted
	req = dailyRequest("cust-1")
	req.StartDate = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	req.EndDate = lo.ToPtr(time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC))
	_, err = f.svc.Create(ctx, req, "operator-1")
	require.NoError(t, err)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, c := range []string{"cust-1", "cust-1", "cust-2"} {
		_, err := f.svc.Create(ctx, dailyRequest(c), "operator-1")
		require.NoError(t, err)
	}
	weekly := dailyRequest("cust-2")
	weekly.Frequency = types.RecurrencyFrequencyWeekly
	weekly.WeekDay = lo.ToPtr(3)
	_, err := f.svc.Create(ctx, weekly, "operator-1")
	require.NoError(t, err)

	all, err := f.svc.List(ctx, &ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Len(t, all.Items, 4)

	page, err := f.svc.List(ctx, &ListRequest{Size: 2, From: 2, SortBy: "created_at", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Items, 2)

	byFreq, err := f.svc.List(ctx, &ListRequest{Filters: []*types.CommonFilter{
		{Field: "frequency", Operator: types.CommonFilterOperatorEq, Values: []any{"weekly"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), byFreq.Total)

	mine, err := f.svc.ListByCustomer(ctx, "cust-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mine.Total)
	for _, r := range mine.Items {
		assert.Equal(t, "cust-1", r.CustomerID)
	}

	_, err = f.svc.List(ctx, &ListRequest{SortBy: "notes; drop table recurrency"})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.svc.List(ctx, &ListRequest{Filters: []*types.CommonFilter{
		{Field: "notes", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}},
	}})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.Create(ctx, dailyRequest("cust-1"), "operator-1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, r.ID, "operator-1"))
	_, err = f.svc.Get(ctx, r.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, r.ID, "operator-1"), ErrNotFound)

	logs, err := f.svc.History(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []types.RecurrencyChangeReason{types.RecurrencyChangeReasonCreate, types.RecurrencyChangeReasonDelete}, reasons(logs))
}
