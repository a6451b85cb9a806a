package notification_handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const maxBodyBytes = 1 << 20

type LogSaver interface {
	Save(ctx context.Context, log *models.PaymentNotificationLog)
}

type Reconciler interface {
	Reconcile(ctx context.Context, n *reconcile.Notification) (*reconcile.Outcome, error)
}

type NotificationHandler struct {
	notifSvc   LogSaver
	reconciler Reconciler
	signer     *gateway.CallbackSigner
	Logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewNotificationHandler(notif LogSaver, rec Reconciler, signer *gateway.CallbackSigner, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notifSvc: notif, reconciler: rec, signer: signer, Logger: log, now: time.Now}
}

// HandleNotification parses a webhook delivery, records it, and reconciles
// the session it names. Every delivery produces a received log row and a
// handled or handle_failed row.
func (h *NotificationHandler) HandleNotification(c *gin.Context) (out *reconcile.Outcome, resErr error) {
	ctx := c.Request.Context()
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", reconcile.ErrInvalidNotification, err)
	}
	parser, err := GetGatewayNotificationParser(c.Request.URL.Query(), body, h.now())
	if err != nil {
		return nil, err
	}
	sessionID := parser.GetSessionID(ctx)
	ctx = logctx.WithSessionID(ctx, sessionID)
	lg := logctx.FromCtx(ctx, h.Logger)

	if err := h.signer.Verify(c.Query("token"), sessionID); err != nil {
		lg.Warnw("webhook_rejected", "err", err)
		return nil, err
	}

	traceID := logctx.TraceID(ctx)
	dataBytes, _ := json.Marshal(parser.GetData(ctx))
	n := parser.GetNotification(ctx)
	lg.Infow("webhook_received", "invoice_id", n.InvoiceID, "advisory_status", n.AdvisoryStatus)

	h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
		Source:           string(parser.GetSource(ctx)),
		SessionID:        sessionID,
		InvoiceID:        parser.GetInvoiceID(ctx),
		TraceID:          traceID,
		NotificationTime: parser.GetNotificationTime(ctx),
		Data:             datatypes.JSON(dataBytes),
		Status:           models.PaymentNotificationLogStatusReceived,
	})

	defer func() {
		resMap := map[string]any{"outcome": out}
		if out != nil && out.Session != nil {
			resMap["status"] = out.Session.Status
		}
		if resErr != nil {
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		status := models.PaymentNotificationLogStatusHandled
		if resErr != nil {
			status = models.PaymentNotificationLogStatusHandleFailed
		}
		var reason *string
		if out != nil && out.Reason != "" {
			reason = lo.ToPtr(string(out.Reason))
		}
		h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
			Source:           string(parser.GetSource(ctx)),
			SessionID:        sessionID,
			InvoiceID:        parser.GetInvoiceID(ctx),
			TraceID:          traceID,
			NotificationTime: h.now(),
			Data:             datatypes.JSON(dataBytes),
			Result:           lo.ToPtr(datatypes.JSON(resBytes)),
			Reason:           reason,
			Status:           status,
		})
	}()

	out, resErr = h.reconciler.Reconcile(ctx, n)
	if resErr != nil {
		lg.Errorw("webhook_reconcile_failed", "err", resErr)
		return nil, resErr
	}
	lg.Infow("webhook_handled", "processed", out.Processed, "reason", out.Reason, "order_ids", out.OrderIDs)
	return out, nil
}
