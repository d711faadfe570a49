package handlers

import (
	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespRecurrency struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Recurrency        `json:"data"`
}

type RespRecurrencyList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    recurrency.ListResponse  `json:"data"`
}

type RespRecurrencyHistory struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.RecurrencyLog   `json:"data"`
}

type RespGenerateDelivery struct {
	Code    response.APIResponseCode  `json:"code"`
	Message string                    `json:"message"`
	Data    recurrency.GenerateResult `json:"data"`
}

type RespProcessDueToday struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    recurrency.ProcessResult `json:"data"`
}

type RespCustomer struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Customer          `json:"data"`
}

type RespDelivery struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Delivery          `json:"data"`
}

type RespDeliveryList struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.Delivery        `json:"data"`
}

// RespRecurrencyStatistic wraps StatisticResponse in the standard envelope.
type RespRecurrencyStatistic struct {
	Code    response.APIResponseCode     `json:"code"`
	Message string                       `json:"message"`
	Data    statistics.StatisticResponse `json:"data"`
}
