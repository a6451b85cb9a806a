package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/types"
	"go.uber.org/zap"
)

// StatusChecker is the gateway's authoritative payment check.
type StatusChecker interface {
	CheckStatus(ctx context.Context, invoiceID string) (*gateway.PaymentCheck, error)
}

type Materializer interface {
	Materialize(ctx context.Context, s *models.PaymentSession) ([]string, error)
}

// SessionStore is the part of session.Store the reconciler drives.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	MarkTerminal(ctx context.Context, sessionID string, status types.SessionStatus, orderIDs []string, opts ...session.TerminalOption) (*models.PaymentSession, bool, error)
	CompletePaid(ctx context.Context, sessionID string, materialize session.MaterializeFunc) (*models.PaymentSession, bool, error)
}

// Outcome is the decision reached for one notification. It is also the
// webhook response body.
type Outcome struct {
	Processed bool                `json:"processed"`
	Reason    types.WebhookReason `json:"reason,omitempty"`
	OrderIDs  []string            `json:"orderIds,omitempty"`
	// Session is the record the decision was based on, nil when missing.
	Session *models.PaymentSession `json:"-"`
}

// Reconciler verifies notifications against the gateway and drives the
// session to its terminal state exactly once.
type Reconciler struct {
	store   SessionStore
	checker StatusChecker
	orders  Materializer
	log     *zap.SugaredLogger
}

func NewReconciler(store SessionStore, checker StatusChecker, orders Materializer, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{store: store, checker: checker, orders: orders, log: log}
}

// Reconcile processes one notification. A nil error means a decision was
// reached and the sender should stop retrying; returned errors are transient
// (gateway, store or materialization failures).
func (r *Reconciler) Reconcile(ctx context.Context, n *Notification) (out *Outcome, err error) {
	if n == nil || n.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidNotification)
	}
	ctx = logctx.WithSessionID(ctx, n.SessionID)
	lg := logctx.FromCtx(ctx, r.log)
	defer func(start time.Time) {
		result := "error"
		if err == nil {
			result = string(out.Reason)
			if out.Processed && out.Reason == "" {
				result = "PROCESSED"
			}
		}
		metrics.IncWebhook(result, string(n.Source))
		metrics.ObserveBusinessProcess("reconcile", string(n.Source), start, err)
	}(time.Now())

	sess, err := r.store.Get(ctx, n.SessionID)
	if errors.Is(err, session.ErrSessionMissing) {
		lg.Warnw("reconcile_session_missing", "invoice_id", n.InvoiceID, "source", n.Source)
		return &Outcome{Reason: types.WebhookReasonSessionMissing}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if sess.Status.Terminal() {
		return r.duplicate(ctx, sess), nil
	}

	invoiceID, advisory := sess.InvoiceID(), false
	if invoiceID == "" {
		invoiceID, advisory = n.InvoiceID, true
	} else if n.InvoiceID != "" && n.InvoiceID != invoiceID {
		lg.Warnw("reconcile_invoice_mismatch", "notified_invoice_id", n.InvoiceID, "invoice_id", invoiceID)
	}
	if invoiceID == "" {
		return nil, fmt.Errorf("%w: session %s", ErrInvoicePending, sess.SessionID)
	}
	lg.Infow("reconcile_check", "invoice_id", invoiceID, "advisory_status", n.AdvisoryStatus, "source", n.Source)

	check, err := r.checker.CheckStatus(ctx, invoiceID)
	if errors.Is(err, gateway.ErrInvalidInvoice) {
		if advisory {
			lg.Warnw("reconcile_advisory_invoice_rejected", "invoice_id", invoiceID, "err", err)
			return &Outcome{Reason: types.WebhookReasonInvalidInvoice, Session: sess}, nil
		}
		return r.fail(ctx, sess, fmt.Sprintf("gateway rejected invoice %s", invoiceID))
	}
	if err != nil {
		return nil, fmt.Errorf("check status of %s: %w", invoiceID, err)
	}

	if !check.Paid() {
		lg.Infow("reconcile_not_paid", "invoice_id", invoiceID)
		return &Outcome{Reason: types.WebhookReasonNotPaid, Session: sess}, nil
	}
	if check.PaidAmount.IsPositive() && check.PaidAmount.LessThan(sess.TotalAmount) {
		return r.fail(ctx, sess, fmt.Sprintf("paid amount %s below total %s", check.PaidAmount, sess.TotalAmount))
	}

	done, applied, err := r.store.CompletePaid(ctx, sess.SessionID, r.orders.Materialize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMaterialization, err)
	}
	if !applied {
		return r.duplicate(ctx, done), nil
	}
	lg.Infow("reconcile_paid", "invoice_id", invoiceID, "payment_id", check.PaymentID, "order_ids", done.Orders())
	return &Outcome{Processed: true, OrderIDs: done.Orders(), Session: done}, nil
}

// duplicate answers a notification for a session that is already terminal
// with the decision recorded the first time.
func (r *Reconciler) duplicate(ctx context.Context, sess *models.PaymentSession) *Outcome {
	logctx.FromCtx(ctx, r.log).Infow("reconcile_duplicate", "status", sess.Status, "err", ErrDuplicateDelivery)
	out := &Outcome{Reason: types.WebhookReasonDuplicate, Session: sess}
	if sess.Status == types.SessionStatusPaid {
		out.Processed = true
		out.OrderIDs = sess.Orders()
	}
	return out
}

func (r *Reconciler) fail(ctx context.Context, sess *models.PaymentSession, reason string) (*Outcome, error) {
	lg := logctx.FromCtx(ctx, r.log)
	failed, applied, err := r.store.MarkTerminal(ctx, sess.SessionID, types.SessionStatusFailed, nil, session.WithFailureReason(reason))
	if err != nil {
		return nil, fmt.Errorf("mark session failed: %w", err)
	}
	if !applied {
		return r.duplicate(ctx, failed), nil
	}
	lg.Errorw("reconcile_failed", "reason", reason, "err", ErrFatalSession)
	return &Outcome{Reason: types.WebhookReasonFailed, Session: failed}, nil
}
