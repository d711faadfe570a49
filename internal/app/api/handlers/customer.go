package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/deliveryhub/internal/app/service/customer"
	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/response"
)

type CustomerService interface {
	Create(ctx context.Context, req *customer.CreateRequest) (*models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, error)
}

type DeliveryReader interface {
	Get(ctx context.Context, id string) (*models.Delivery, error)
	ListByRecurrency(ctx context.Context, recurrencyID string) ([]*models.Delivery, error)
}

func lookupCode(err error) response.APIResponseCode {
	switch {
	case errors.Is(err, customer.ErrNotFound), errors.Is(err, delivery.ErrNotFound):
		return response.APIResponseCodeNotFound
	case errors.Is(err, customer.ErrInvalidInput), errors.Is(err, delivery.ErrInvalidInput):
		return response.APIResponseCodeBadRequest
	}
	return response.APIResponseCodeError
}

// @Summary      Create customer
// @Tags         Customer
// @Accept       json
// @Produce      json
// @Param        request body customer.CreateRequest true "Customer"
// @Success      200  {object}  handlers.RespCustomer
// @Router       /api/v1/customers [post]
func ApiCreateCustomer(svc CustomerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req customer.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Create(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](lookupCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get customer
// @Tags         Customer
// @Produce      json
// @Param        id path string true "Customer"
// @Success      200  {object}  handlers.RespCustomer
// @Router       /api/v1/customers/{id} [get]
func ApiGetCustomer(svc CustomerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](lookupCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get delivery
// @Tags         Delivery
// @Produce      json
// @Param        id path string true "Delivery"
// @Success      200  {object}  handlers.RespDelivery
// @Router       /api/v1/deliveries/{id} [get]
func ApiGetDelivery(svc DeliveryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](lookupCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      List deliveries generated by a recurrency
// @Tags         Delivery
// @Produce      json
// @Param        recurrency_id query string true "Recurrency"
// @Success      200  {object}  handlers.RespDeliveryList
// @Router       /api/v1/deliveries [get]
func ApiListRecurrencyDeliveries(svc DeliveryReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.Query("recurrency_id")
		if rid == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing recurrency_id"))
			return
		}
		res, err := svc.ListByRecurrency(c.Request.Context(), rid)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](lookupCode(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterCustomerRoutes(r gin.IRouter, customers CustomerService, deliveries DeliveryReader) {
	r.POST("/customers", ApiCreateCustomer(customers))
	r.GET("/customers/:id", ApiGetCustomer(customers))
	r.GET("/deliveries", ApiListRecurrencyDeliveries(deliveries))
	r.GET("/deliveries/:id", ApiGetDelivery(deliveries))
}
