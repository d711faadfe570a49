package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/response"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

// errorCode maps service errors onto envelope codes.
func errorCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, recurrency.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, recurrency.ErrInvalidTransition), errors.Is(err, recurrency.ErrNotActive),
		errors.Is(err, recurrency.ErrConcurrentUpdate):
		return response.APIResponseCodeConflict
	case errors.Is(err, recurrency.ErrInvalidScheduleRule), errors.Is(err, recurrency.ErrInvalidRequest):
		return response.APIResponseCodeBadRequest
	}
	return response.APIResponseCodeError
}

func writeError(c *gin.Context, err error) {
	code := errorCode(err)
	if code == response.APIResponseCodeError {
		logctx.FromGin(c, zap.S()).Errorf("request failed: %v", err)
	}
	c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
}

func actorID(c *gin.Context) string {
	return logctx.ActorFromCtx(c.Request.Context())
}

// @Summary      Create recurrency
// @Description  Creates a recurring delivery and computes its first delivery date.
// @Tags         Recurrency
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        request body recurrency.CreateRequest true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies [post]
func ApiCreateRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recurrency.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := mgr.Create(c.Request.Context(), &req, actorID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(r))
	}
}

// @Summary      List recurrencies
// @Tags         Recurrency
// @Produce      json
// @Param        status      query string false "Status"
// @Param        frequency   query string false "Frequency"
// @Param        customer_id query string false "Customer"
// @Param        from        query int    false "Offset"
// @Param        size        query int    false "Page size"
// @Param        sort_by     query string false "Sort column"
// @Param        sort_order  query string false "asc or desc"
// @Success      200  {object}  handlers.RespRecurrencyList
// @Router       /api/v1/recurrencies [get]
func ApiListRecurrencies(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := listRequestFromQuery(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		res, err := mgr.List(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Search recurrencies
// @Description  Lists recurrencies with arbitrary filters, pagination and sorting.
// @Tags         Recurrency
// @Accept       json
// @Produce      json
// @Param        request body recurrency.ListRequest true "Filters, pagination and sorting"
// @Success      200  {object}  handlers.RespRecurrencyList
// @Router       /api/v1/recurrencies/search [post]
func ApiSearchRecurrencies(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recurrency.ListRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := mgr.List(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List a customer's recurrencies
// @Tags         Recurrency
// @Produce      json
// @Param        customer_id path  string true  "Customer"
// @Param        from        query int    false "Offset"
// @Param        size        query int    false "Page size"
// @Success      200  {object}  handlers.RespRecurrencyList
// @Router       /api/v1/recurrencies/by-customer/{customer_id} [get]
func ApiListCustomerRecurrencies(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := listRequestFromQuery(c)
		if err != nil {
			badRequest(c, err)
			return
		}
		res, err := mgr.ListByCustomer(c.Request.Context(), c.Param("customer_id"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func listRequestFromQuery(c *gin.Context) (*recurrency.ListRequest, error) {
	req := &recurrency.ListRequest{SortBy: c.Query("sort_by"), SortOrder: c.Query("sort_order")}
	var err error
	if req.From, err = strconv.Atoi(c.DefaultQuery("from", "0")); err != nil {
		return nil, errors.New("invalid from")
	}
	if req.Size, err = strconv.Atoi(c.DefaultQuery("size", "0")); err != nil {
		return nil, errors.New("invalid size")
	}
	for _, field := range []string{"status", "frequency", "customer_id"} {
		if v := c.Query(field); v != "" {
			req.Filters = append(req.Filters, &types.CommonFilter{Field: field, Operator: types.CommonFilterOperatorEq, Values: []any{v}})
		}
	}
	return req, nil
}

// @Summary      Get recurrency
// @Tags         Recurrency
// @Produce      json
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies/{id} [get]
func ApiGetRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := mgr.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(r))
	}
}

// @Summary      Update recurrency
// @Description  Updates the given fields; schedule changes recompute the next delivery date.
// @Tags         Recurrency
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id      path string                   true "Recurrency"
// @Param        request body recurrency.UpdateRequest true "Fields to change"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies/{id} [put]
func ApiUpdateRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req recurrency.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		r, err := mgr.Update(c.Request.Context(), c.Param("id"), &req, actorID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(r))
	}
}

// @Summary      Delete recurrency
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/recurrencies/{id} [delete]
func ApiDeleteRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := mgr.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Recurrency history
// @Description  Returns the audit trail of a recurrency, oldest first.
// @Tags         Recurrency
// @Produce      json
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrencyHistory
// @Router       /api/v1/recurrencies/{id}/history [get]
func ApiRecurrencyHistory(mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		logs, err := mgr.History(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(logs))
	}
}

func transition(op func(c *gin.Context, mgr recurrency.Manager) (any, error), mgr recurrency.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := op(c, mgr)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Pause recurrency
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies/{id}/pause [patch]
func ApiPauseRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return transition(func(c *gin.Context, mgr recurrency.Manager) (any, error) {
		return mgr.Pause(c.Request.Context(), c.Param("id"), actorID(c))
	}, mgr)
}

// @Summary      Activate recurrency
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies/{id}/activate [patch]
func ApiActivateRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return transition(func(c *gin.Context, mgr recurrency.Manager) (any, error) {
		return mgr.Activate(c.Request.Context(), c.Param("id"), actorID(c))
	}, mgr)
}

// @Summary      Cancel recurrency
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespRecurrency
// @Router       /api/v1/recurrencies/{id}/cancel [patch]
func ApiCancelRecurrency(mgr recurrency.Manager) gin.HandlerFunc {
	return transition(func(c *gin.Context, mgr recurrency.Manager) (any, error) {
		return mgr.Cancel(c.Request.Context(), c.Param("id"), actorID(c))
	}, mgr)
}

// @Summary      Generate delivery
// @Description  Creates the delivery for the next delivery date and advances the schedule.
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Param        id path string true "Recurrency"
// @Success      200  {object}  handlers.RespGenerateDelivery
// @Router       /api/v1/recurrencies/{id}/generate-delivery [post]
func ApiGenerateDelivery(mgr recurrency.Manager) gin.HandlerFunc {
	return transition(func(c *gin.Context, mgr recurrency.Manager) (any, error) {
		return mgr.GenerateDelivery(c.Request.Context(), c.Param("id"), actorID(c))
	}, mgr)
}

// @Summary      Process due recurrencies
// @Description  Generates deliveries for every active recurrency due today under the sweep lock. Item failures are reported per item.
// @Tags         Recurrency
// @Produce      json
// @Param        X-User-ID header string false "Acting user"
// @Success      200  {object}  handlers.RespProcessDueToday
// @Router       /api/v1/recurrencies/process-due-today [post]
func ApiProcessDueToday(job DueJobRunner) gin.HandlerFunc {
	return runDueJob(job)
}

func RegisterRecurrencyRoutes(r gin.IRouter, mgr recurrency.Manager, job DueJobRunner) {
	r.POST("", ApiCreateRecurrency(mgr))
	r.GET("", ApiListRecurrencies(mgr))
	r.POST("/search", ApiSearchRecurrencies(mgr))
	r.POST("/process-due-today", ApiProcessDueToday(job))
	r.GET("/by-customer/:customer_id", ApiListCustomerRecurrencies(mgr))
	r.GET("/:id", ApiGetRecurrency(mgr))
	r.PUT("/:id", ApiUpdateRecurrency(mgr))
	r.DELETE("/:id", ApiDeleteRecurrency(mgr))
	r.GET("/:id/history", ApiRecurrencyHistory(mgr))
	r.PATCH("/:id/pause", ApiPauseRecurrency(mgr))
	r.PATCH("/:id/activate", ApiActivateRecurrency(mgr))
	r.PATCH("/:id/cancel", ApiCancelRecurrency(mgr))
	r.POST("/:id/generate-delivery", ApiGenerateDelivery(mgr))
}
