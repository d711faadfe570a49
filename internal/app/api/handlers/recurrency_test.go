package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/deliveryhub/internal/app/api/middleware"
	"github.com/fatflowers/deliveryhub/internal/app/service/duejob"
	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/response"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

// stubManager records the last call; unset methods panic through the embedded nil interface.
type stubManager struct {
	recurrency.Manager
	err       error
	lastID    string
	lastActor string
	lastList  *recurrency.ListRequest
	lastCust  string
	created   *recurrency.CreateRequest
}

func (m *stubManager) Create(_ context.Context, req *recurrency.CreateRequest, actorID string) (*models.Recurrency, error) {
	m.created, m.lastActor = req, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Recurrency{ID: "rec-1", Name: req.Name, Status: types.RecurrencyStatusActive}, nil
}

func (m *stubManager) Get(_ context.Context, id string) (*models.Recurrency, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return &models.Recurrency{ID: id}, nil
}

func (m *stubManager) List(_ context.Context, req *recurrency.ListRequest) (*recurrency.ListResponse, error) {
	m.lastList = req
	return &recurrency.ListResponse{Items: []*models.Recurrency{{ID: "rec-1"}}, Total: 1}, m.err
}

func (m *stubManager) ListByCustomer(_ context.Context, customerID string, req *recurrency.ListRequest) (*recurrency.ListResponse, error) {
	m.lastCust, m.lastList = customerID, req
	return &recurrency.ListResponse{}, m.err
}

func (m *stubManager) Pause(_ context.Context, id, actorID string) (*models.Recurrency, error) {
	m.lastID, m.lastActor = id, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Recurrency{ID: id, Status: types.RecurrencyStatusPaused}, nil
}

func (m *stubManager) GenerateDelivery(_ context.Context, id, actorID string) (*recurrency.GenerateResult, error) {
	m.lastID, m.lastActor = id, actorID
	if m.err != nil {
		return nil, m.err
	}
	return &recurrency.GenerateResult{Delivery: &models.Delivery{ID: "del-1"}, Recurrency: &models.Recurrency{ID: id}}, nil
}

type envelope struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    json.RawMessage          `json:"data"`
}

func newRouter(mgr recurrency.Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ActorMiddleware())
	RegisterRecurrencyRoutes(r.Group("/api/v1/recurrencies"), mgr, &stubJob{})
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, "operator-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApiCreateRecurrency(t *testing.T) {
	mgr := &stubManager{}
	r := newRouter(mgr)

	env := do(t, r, http.MethodPost, "/api/v1/recurrencies", map[string]any{
		"customer_id": "cust-1",
		"name":        "Água",
		"frequency":   "weekly",
		"week_day":    1,
		"start_date":  "2026-10-15T00:00:00Z",
		"items":       []map[string]any{{"name": "Água 20L", "quantity": 1, "price": 1000}},
	})
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Contains(t, string(env.Data), `"id":"rec-1"`)
	require.NotNil(t, mgr.created)
	assert.Equal(t, types.RecurrencyFrequencyWeekly, mgr.created.Frequency)
	assert.Equal(t, 1, *mgr.created.WeekDay)
	assert.Equal(t, "operator-1", mgr.lastActor)

	env = do(t, r, http.MethodPost, "/api/v1/recurrencies", "{not json")
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want response.APIResponseCode
	}{
		{fmt.Errorf("%w: rec-9", recurrency.ErrNotFound), response.APIResponseCodeNotFound},
		{fmt.Errorf("%w: week_day", recurrency.ErrInvalidScheduleRule), response.APIResponseCodeBadRequest},
		{recurrency.ErrInvalidRequest, response.APIResponseCodeBadRequest},
		{recurrency.ErrInvalidTransition, response.APIResponseCodeConflict},
		{recurrency.ErrNotActive, response.APIResponseCodeConflict},
		{recurrency.ErrConcurrentUpdate, response.APIResponseCodeConflict},
		{errors.New("db down"), response.APIResponseCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			r := newRouter(&stubManager{err: tt.err})
			env := do(t, r, http.MethodPatch, "/api/v1/recurrencies/rec-9/pause", nil)
			assert.Equal(t, tt.want, env.Code)
			assert.Contains(t, string(env.Data), tt.err.Error())
		})
	}
}

func TestRecurrencyRoutes(t *testing.T) {
	mgr := &stubManager{}
	r := newRouter(mgr)

	env := do(t, r, http.MethodGet, "/api/v1/recurrencies/rec-7", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, "rec-7", mgr.lastID)

	env = do(t, r, http.MethodGet, "/api/v1/recurrencies/by-customer/cust-3?size=5", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, "cust-3", mgr.lastCust)
	assert.Equal(t, 5, mgr.lastList.Size)

	env = do(t, r, http.MethodGet, "/api/v1/recurrencies?status=active&from=10&sort_by=name&sort_order=asc", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, 10, mgr.lastList.From)
	assert.Equal(t, "name", mgr.lastList.SortBy)
	require.Len(t, mgr.lastList.Filters, 1)
	assert.Equal(t, "status", mgr.lastList.Filters[0].Field)

	env = do(t, r, http.MethodGet, "/api/v1/recurrencies?size=ten", nil)
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	env = do(t, r, http.MethodPost, "/api/v1/recurrencies/search", recurrency.ListRequest{Size: 3})
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Equal(t, 3, mgr.lastList.Size)

	env = do(t, r, http.MethodPost, "/api/v1/recurrencies/rec-7/generate-delivery", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Contains(t, string(env.Data), `"del-1"`)

}

func TestApiProcessDueToday_UsesSweepJob(t *testing.T) {
	gin.SetMode(gin.TestMode)
	job := &stubJob{}
	r := gin.New()
	r.Use(middleware.ActorMiddleware())
	RegisterRecurrencyRoutes(r.Group("/api/v1/recurrencies"), &stubManager{}, job)

	env := do(t, r, http.MethodPost, "/api/v1/recurrencies/process-due-today", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	var res recurrency.ProcessResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Processed)
	assert.False(t, res.Results[1].Success)
	assert.Equal(t, "operator-1", job.actor)

	busy := gin.New()
	RegisterRecurrencyRoutes(busy.Group("/api/v1/recurrencies"), &stubManager{}, &stubJob{err: duejob.ErrAlreadyRunning})
	env = do(t, busy, http.MethodPost, "/api/v1/recurrencies/process-due-today", nil)
	assert.Equal(t, response.APIResponseCodeConflict, env.Code)
}

type stubStats struct{}

func (stubStats) GetStatistic(_ context.Context, req *statistics.StatisticRequest) (*statistics.StatisticResponse, error) {
	if len(req.DataItems) == 0 {
		return nil, errors.New("no data items requested")
	}
	return &statistics.StatisticResponse{DataItems: map[statistics.StatisticType][]statistics.StatisticResponseDataItem{
		statistics.StatisticTypeRecurrencyCountByStatus: {{Label: "active", Value: 3}},
	}}, nil
}

type stubJob struct {
	err   error
	actor string
}

func (j *stubJob) RunAs(_ context.Context, actorID string) (*recurrency.ProcessResult, error) {
	j.actor = actorID
	if j.err != nil {
		return nil, j.err
	}
	return &recurrency.ProcessResult{Processed: 2, Results: []recurrency.ItemResult{
		{RecurrencyID: "a", Success: true, DeliveryID: "d1"},
		{RecurrencyID: "b", Error: "boom"},
	}}, nil
}

func TestAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterAdminRoutes(r.Group("/admin"), stubStats{}, &stubJob{})

	env := do(t, r, http.MethodPost, "/admin/recurrency_statistic", map[string]any{
		"data_items": []map[string]string{{"id": "recurrency_count_by_status"}},
	})
	assert.Equal(t, response.APIResponseCodeOK, env.Code)
	assert.Contains(t, string(env.Data), `"label":"active"`)

	env = do(t, r, http.MethodPost, "/admin/recurrency_statistic", map[string]any{})
	assert.Equal(t, response.APIResponseCodeBadRequest, env.Code)

	env = do(t, r, http.MethodPost, "/admin/run_due_job", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)

	busy := gin.New()
	RegisterAdminRoutes(busy.Group("/admin"), stubStats{}, &stubJob{err: duejob.ErrAlreadyRunning})
	env = do(t, busy, http.MethodPost, "/admin/run_due_job", nil)
	assert.Equal(t, response.APIResponseCodeConflict, env.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterHealthRoutes(r, stubPinger{})
	env := do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, response.APIResponseCodeOK, env.Code)

	r = gin.New()
	RegisterHealthRoutes(r, stubPinger{err: errors.New("connection refused")})
	env = do(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, response.APIResponseCodeError, env.Code)
	assert.Contains(t, string(env.Data), "degraded")
}
