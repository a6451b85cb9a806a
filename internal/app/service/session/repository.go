package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/db"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScanFields are the payment_session columns admin filters may reference.
var ScanFields = []string{
	"session_id", "user_id", "status", "gateway_invoice_id", "total_amount",
	"currency", "created_at", "updated_at", "processed_at", "gateway_invoice_created_at",
}

var errNotPending = errors.New("session not pending")

// Repository is the Postgres tier of the session store.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(gdb *gorm.DB, log *zap.SugaredLogger) *Repository {
	return &Repository{db: gdb, log: log}
}

func (r *Repository) Create(ctx context.Context, s *models.PaymentSession) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.SessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to create payment session: %w", err)
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	return r.find(r.db.WithContext(ctx), sessionID)
}

func (r *Repository) find(tx *gorm.DB, sessionID string) (*models.PaymentSession, error) {
	var s models.PaymentSession
	err := tx.Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionMissing, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment session: %w", err)
	}
	return &s, nil
}

// SetInvoice writes the invoice fields only while none are recorded.
func (r *Repository) SetInvoice(ctx context.Context, sessionID string, inv *gateway.Invoice) (*models.PaymentSession, error) {
	createdAt := inv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res := recordInvoice(r.db.WithContext(ctx), sessionID, inv, createdAt)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to record invoice: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.log.Infow("invoice already recorded", "session_id", sessionID, "invoice_id", inv.InvoiceID)
	}
	return r.Find(ctx, sessionID)
}

func recordInvoice(tx *gorm.DB, sessionID string, inv *gateway.Invoice, createdAt time.Time) *gorm.DB {
	return tx.Model(&models.PaymentSession{}).
		Where("session_id = ? AND gateway_invoice_id IS NULL", sessionID).
		Updates(map[string]any{
			"gateway_invoice_id":         inv.InvoiceID,
			"gateway_qr_payload":         inv.QRText,
			"gateway_payment_url":        inv.ShortURL,
			"gateway_invoice_created_at": createdAt,
		})
}

// Transition is the single-writer compare-and-set on status=PENDING. The
// UPDATE takes the row lock, so a concurrent writer blocks until this
// transaction ends and then matches zero rows.
func (r *Repository) Transition(ctx context.Context, sessionID string, t Transition) (*models.PaymentSession, bool, error) {
	var out *models.PaymentSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := leavePending(tx, sessionID, t, time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotPending
		}

		s, err := r.find(tx, sessionID)
		if err != nil {
			return err
		}
		orderIDs := t.OrderIDs
		if t.Materialize != nil {
			if orderIDs, err = t.Materialize(db.WithTx(ctx, tx), s); err != nil {
				return err
			}
		}
		if t.Status == types.SessionStatusPaid && len(orderIDs) == 0 {
			return fmt.Errorf("session %s paid without orders", sessionID)
		}
		if len(orderIDs) > 0 {
			s.OrderIDs = datatypes.NewJSONType(orderIDs)
			if err := tx.Model(s).Update("order_ids", s.OrderIDs).Error; err != nil {
				return err
			}
		}
		out = s
		return nil
	})
	if errors.Is(err, errNotPending) {
		cur, ferr := r.Find(ctx, sessionID)
		if ferr != nil {
			return nil, false, ferr
		}
		return cur, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// leavePending is the compare-and-set UPDATE: it matches only while the row is
// still PENDING.
func leavePending(tx *gorm.DB, sessionID string, t Transition, now time.Time) *gorm.DB {
	updates := map[string]any{"status": t.Status, "processed_at": now}
	if t.FailureReason != "" {
		updates["failure_reason"] = t.FailureReason
	}
	return tx.Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, types.SessionStatusPending).
		Updates(updates)
}

// ListStalePending pages through invoiced PENDING sessions, least recently
// checked first, so repeated passes rotate through the whole backlog.
func (r *Repository) ListStalePending(ctx context.Context, invoicedBefore time.Time, limit int) ([]*models.PaymentSession, error) {
	var rows []*models.PaymentSession
	if err := stalePending(r.db.WithContext(ctx), invoicedBefore, limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending sessions: %w", err)
	}
	return rows, nil
}

func stalePending(tx *gorm.DB, invoicedBefore time.Time, limit int) *gorm.DB {
	return tx.Model(&models.PaymentSession{}).
		Where("status = ? AND gateway_invoice_id IS NOT NULL AND gateway_invoice_created_at < ?", types.SessionStatusPending, invoicedBefore).
		Order("last_checked_at ASC NULLS FIRST").
		Order("gateway_invoice_created_at ASC").
		Limit(limit)
}

// MarkChecked stamps last_checked_at on a session that is still PENDING.
func (r *Repository) MarkChecked(ctx context.Context, sessionID string, at time.Time) error {
	if err := markChecked(r.db.WithContext(ctx), sessionID, at).Error; err != nil {
		return fmt.Errorf("failed to mark session checked: %w", err)
	}
	return nil
}

func markChecked(tx *gorm.DB, sessionID string, at time.Time) *gorm.DB {
	return tx.Model(&models.PaymentSession{}).
		Where("session_id = ? AND status = ?", sessionID, types.SessionStatusPending).
		UpdateColumn("last_checked_at", at)
}

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.PaymentSession `json:"items"`
	Total int64                    `json:"total"`
}

// filtersAnd is a helper to combine multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// ValidateScan checks filters and sort column against ScanFields and fills
// pagination defaults.
func ValidateScan(req *ScanRequest) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrValidation)
	}
	for _, f := range req.Filters {
		if err := f.Validate(ScanFields); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if req.SortBy != "" {
		if err := (&types.CommonFilter{Field: req.SortBy, Operator: types.CommonFilterOperatorEq, Values: []any{0}}).Validate(ScanFields); err != nil {
			return fmt.Errorf("%w: sort: %v", ErrValidation, err)
		}
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}
	return nil
}

// Scan implements paginated admin listing with filters.
func (r *Repository) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if err := ValidateScan(req); err != nil {
		return nil, err
	}

	tx := r.db.WithContext(ctx).Model(&models.PaymentSession{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payment sessions: %w", err)
	}

	var rows []*models.PaymentSession
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment sessions: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
