package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/response"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type ListPaymentSessionRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type PaymentSessionItem struct {
	SessionID        string              `json:"session_id"`
	UserID           string              `json:"user_id"`
	Status           types.SessionStatus `json:"status"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	Currency         string              `json:"currency"`
	ItemCount        int                 `json:"item_count"`
	SellerCount      int                 `json:"seller_count"`
	GatewayInvoiceID *string             `json:"gateway_invoice_id"`
	OrderIDs         []string            `json:"order_ids"`
	FailureReason    *string             `json:"failure_reason"`
	ProcessedAt      *time.Time          `json:"processed_at"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type ListPaymentSessionsResponse struct {
	Items []*PaymentSessionItem `json:"items"`
	Total int64                 `json:"total"`
}

type PaymentSessionDetail struct {
	Session       *models.PaymentSession           `json:"session"`
	Orders        []*models.Order                  `json:"orders"`
	Notifications []*models.PaymentNotificationLog `json:"notifications"`
}

type OrderLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]*models.Order, error)
}

type NotificationLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]*models.PaymentNotificationLog, error)
}

type SessionReconciler interface {
	Reconcile(ctx context.Context, n *reconcile.Notification) (*reconcile.Outcome, error)
}

func toPaymentSessionItem(m *models.PaymentSession) *PaymentSessionItem {
	sellers, _ := m.Partitions()
	return &PaymentSessionItem{
		SessionID:        m.SessionID,
		UserID:           m.UserID,
		Status:           m.Status,
		TotalAmount:      m.TotalAmount,
		Currency:         m.Currency,
		ItemCount:        len(m.Items()),
		SellerCount:      len(sellers),
		GatewayInvoiceID: m.GatewayInvoiceID,
		OrderIDs:         m.Orders(),
		FailureReason:    m.FailureReason,
		ProcessedAt:      m.ProcessedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// @Summary      List Payment Sessions (Admin)
// @Description  Retrieves a paginated and filterable list of payment sessions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPaymentSessionRequest true "List request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListPaymentSessions
// @Router       /api/v1/admin/list_payment_sessions [post]
func ApiListPaymentSessions(scanner SessionScanner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPaymentSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		scanReq := &session.ScanRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder}
		res, err := scanner.Scan(c.Request.Context(), scanReq)
		if err != nil {
			code := response.APIResponseCodeError
			if errors.Is(err, session.ErrValidation) {
				code = response.APIResponseCodeBadRequest
			}
			c.JSON(http.StatusOK, response.ErrorT[any](code, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.PaymentSession, _ int) *PaymentSessionItem { return toPaymentSessionItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListPaymentSessionsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Get Payment Session Detail (Admin)
// @Description  Returns a session with its orders and webhook audit trail.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body object{session_id=string} true "Session ID"
// @Success      200  {object}  handlers.RespPaymentSessionDetail
// @Router       /api/v1/admin/get_payment_session [post]
func ApiGetPaymentSession(sessions SessionService, orders OrderLister, notifs NotificationLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing session_id"))
			return
		}
		ctx := c.Request.Context()
		sess, err := sessions.Get(ctx, req.SessionID)
		if errors.Is(err, session.ErrSessionMissing) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		detail := &PaymentSessionDetail{Session: sess}
		if detail.Orders, err = orders.ListBySession(ctx, req.SessionID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		if detail.Notifications, err = notifs.ListBySession(ctx, req.SessionID); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(detail))
	}
}

// @Summary      Reconcile Payment Session (Admin)
// @Description  Re-checks a PENDING session with the gateway, exactly as a webhook would.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body object{session_id=string} true "Session ID"
// @Success      200  {object}  handlers.RespReconcileOutcome
// @Router       /api/v1/admin/reconcile_payment_session [post]
func ApiReconcilePaymentSession(rec SessionReconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			SessionID string `json:"session_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing session_id"))
			return
		}
		out, err := rec.Reconcile(c.Request.Context(), &reconcile.Notification{
			SessionID: req.SessionID,
			Source:    types.NotificationSourceAdmin,
		})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterAdminRoutes(r gin.IRouter, scanner SessionScanner, sessions SessionService, orders OrderLister, notifs NotificationLister, rec SessionReconciler) {
	r.POST("/list_payment_sessions", ApiListPaymentSessions(scanner))
	r.POST("/get_payment_session", ApiGetPaymentSession(sessions, orders, notifs))
	r.POST("/reconcile_payment_session", ApiReconcilePaymentSession(rec))
}
