package handlers

import (
	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespListPaymentSessions wraps ListPaymentSessionsResponse in the standard envelope.
type RespListPaymentSessions struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    ListPaymentSessionsResponse `json:"data"`
}

// RespPaymentSessionDetail wraps PaymentSessionDetail in the standard envelope.
type RespPaymentSessionDetail struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    PaymentSessionDetail     `json:"data"`
}

// RespReconcileOutcome wraps reconcile.Outcome in the standard envelope.
type RespReconcileOutcome struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.Outcome        `json:"data"`
}
