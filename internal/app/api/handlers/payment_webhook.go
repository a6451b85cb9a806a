package handlers

import (
	"errors"
	"net/http"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/gin-gonic/gin"
)

// WebhookHandler processes one gateway callback.
type WebhookHandler interface {
	HandleNotification(c *gin.Context) (*reconcile.Outcome, error)
}

type WebhookErrorResponse struct {
	Processed bool   `json:"processed"`
	Error     string `json:"error"`
}

// webhookStatus picks the HTTP status the gateway sees. Anything other than
// 2xx makes it redeliver, which is wanted only while a retry can succeed.
func webhookStatus(out *reconcile.Outcome, err error) int {
	switch {
	case err == nil && out.Reason == types.WebhookReasonSessionMissing:
		return http.StatusServiceUnavailable
	case err == nil:
		return http.StatusOK
	case errors.Is(err, reconcile.ErrInvalidNotification):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrBadCallbackToken):
		return http.StatusUnauthorized
	case errors.Is(err, reconcile.ErrInvoicePending):
		return http.StatusServiceUnavailable
	default:
		return http.StatusServiceUnavailable
	}
}

// @Summary      Payment Webhook
// @Description  Receives gateway payment callbacks. The session is resolved by the session_id query parameter and the payment is verified with the gateway before orders are created. Redeliveries are answered with reason DUPLICATE and the original order ids.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        session_id  query     string  true   "Session ID"
// @Param        token       query     string  false  "Callback token"
// @Success      200  {object}  reconcile.Outcome
// @Failure      400  {object}  handlers.WebhookErrorResponse
// @Failure      401  {object}  handlers.WebhookErrorResponse
// @Failure      503  {object}  reconcile.Outcome
// @Router       /api/v1/payment/webhook [post]
func ApiPaymentWebhook(h WebhookHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := h.HandleNotification(c)
		status := webhookStatus(out, err)
		if err != nil {
			c.JSON(status, WebhookErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(status, out)
	}
}

func RegisterPaymentWebhookRoutes(r gin.IRouter, h WebhookHandler) {
	r.POST("/webhook", ApiPaymentWebhook(h))
}
