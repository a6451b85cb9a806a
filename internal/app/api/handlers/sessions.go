package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionService is the session API the handlers depend on.
type SessionService interface {
	CreateSession(ctx context.Context, req *session.CreateSessionRequest) (*session.CreateSessionResult, error)
	CreateInvoice(ctx context.Context, sessionID string) (*gateway.Invoice, error)
	Get(ctx context.Context, sessionID string) (*models.PaymentSession, error)
}

type CreateSessionResponse struct {
	Success   bool             `json:"success"`
	SessionID string           `json:"sessionId,omitempty"`
	Invoice   *gateway.Invoice `json:"invoice,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type InvoiceResponse struct {
	Success bool             `json:"success"`
	Invoice *gateway.Invoice `json:"invoice,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func sessionErrorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSessionMissing):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// @Summary      Create Payment Session
// @Description  Validates the cart, stores the session durably and in cache, then creates the gateway invoice. When invoice creation fails the session is kept and success is true with an error message; retry through the invoice endpoint.
// @Tags         Session
// @Accept       json
// @Produce      json
// @Param        request body session.CreateSessionRequest true "Session creation request"
// @Success      200  {object}  handlers.CreateSessionResponse
// @Failure      400  {object}  handlers.CreateSessionResponse
// @Failure      500  {object}  handlers.CreateSessionResponse
// @Router       /api/v1/sessions [post]
func ApiCreateSession(svc SessionService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req session.CreateSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, CreateSessionResponse{Error: err.Error()})
			return
		}
		res, err := svc.CreateSession(c.Request.Context(), &req)
		if err != nil {
			status := sessionErrorStatus(err)
			if status >= http.StatusInternalServerError {
				logctx.FromGin(c, log).Errorw("session_create_failed", "err", err)
			}
			c.JSON(status, CreateSessionResponse{Error: err.Error()})
			return
		}
		out := CreateSessionResponse{Success: true, SessionID: res.Session.SessionID, Invoice: res.Invoice}
		if res.InvoiceErr != nil {
			out.Error = res.InvoiceErr.Error()
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary      Get Payment Session
// @Description  Returns the session from cache, falling back to the durable store.
// @Tags         Session
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  models.PaymentSession
// @Failure      404  {object}  handlers.CreateSessionResponse
// @Router       /api/v1/sessions/{id} [get]
func ApiGetSession(svc SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(sessionErrorStatus(err), CreateSessionResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// @Summary      Create Invoice For Session
// @Description  Creates the gateway invoice for a PENDING session whose first invoice request failed. Returns the recorded invoice if one exists.
// @Tags         Session
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  handlers.InvoiceResponse
// @Failure      404  {object}  handlers.InvoiceResponse
// @Failure      409  {object}  handlers.InvoiceResponse
// @Failure      502  {object}  handlers.InvoiceResponse
// @Router       /api/v1/sessions/{id}/invoice [post]
func ApiCreateInvoice(svc SessionService, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		inv, err := svc.CreateInvoice(c.Request.Context(), c.Param("id"))
		if err != nil {
			logctx.FromGin(c, log).Warnw("invoice_retry_failed", "session_id", c.Param("id"), "err", err)
			c.JSON(sessionErrorStatus(err), InvoiceResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, InvoiceResponse{Success: true, Invoice: inv})
	}
}

func RegisterSessionRoutes(r gin.IRouter, svc SessionService, log *zap.SugaredLogger) {
	r.POST("", ApiCreateSession(svc, log))
	r.GET("/:id", ApiGetSession(svc))
	r.POST("/:id/invoice", ApiCreateInvoice(svc, log))
}
