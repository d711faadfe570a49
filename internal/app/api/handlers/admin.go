package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/deliveryhub/internal/app/service/duejob"
	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	"github.com/fatflowers/deliveryhub/pkg/response"
)

type StatisticsService interface {
	GetStatistic(ctx context.Context, request *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

// DueJobRunner runs the due-today sweep under the cluster lock.
type DueJobRunner interface {
	RunAs(ctx context.Context, actorID string) (*recurrency.ProcessResult, error)
}

// @Summary      Get Recurrency Statistics (Admin)
// @Description  Recurrencies per status and frequency, generated deliveries and active recurrencies per day.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespRecurrencyStatistic
// @Router       /api/v1/admin/recurrency_statistic [post]
func ApiGetRecurrencyStatistic(svc StatisticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Run Due-Today Job (Admin)
// @Description  Runs the scheduled sweep now under the cluster lock, then refreshes daily snapshots.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespProcessDueToday
// @Router       /api/v1/admin/run_due_job [post]
func ApiRunDueJob(job DueJobRunner) gin.HandlerFunc {
	return runDueJob(job)
}

func runDueJob(job DueJobRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := job.RunAs(c.Request.Context(), actorID(c))
		if errors.Is(err, duejob.ErrAlreadyRunning) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeConflict, err.Error()))
			return
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, stats StatisticsService, job DueJobRunner) {
	r.POST("/recurrency_statistic", ApiGetRecurrencyStatistic(stats))
	r.POST("/run_due_job", ApiRunDueJob(job))
}
