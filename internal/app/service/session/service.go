package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// MaxTTLSeconds caps the cache lifetime a client may request.
	MaxTTLSeconds = 7 * 24 * 3600
	// amountScale is the precision of the numeric(20,2) money columns and of
	// the invoice amount sent to the gateway.
	amountScale = 2
)

// InvoiceGateway creates the payable invoice for a session.
type InvoiceGateway interface {
	CreateInvoice(ctx context.Context, s *models.PaymentSession) (*gateway.Invoice, error)
}

type SessionData struct {
	UserID            string             `json:"userId"`
	Cart              []*models.CartItem `json:"cart"`
	Sellers           []*models.Seller   `json:"sellers"`
	TotalAmount       decimal.Decimal    `json:"totalAmount"`
	Currency          string             `json:"currency,omitempty"`
	ShippingAddressID *string            `json:"shippingAddressId,omitempty"`
	Coupon            *string            `json:"coupon,omitempty"`
}

type CreateSessionRequest struct {
	SessionID   string      `json:"sessionId,omitempty"`
	TTLSec      int64       `json:"ttlSec"`
	SessionData SessionData `json:"sessionData"`
}

// CreateSessionResult carries the session and, when the gateway answered,
// its invoice. InvoiceErr is set when the session was stored but invoice
// creation failed; the caller may retry with Service.CreateInvoice.
type CreateSessionResult struct {
	Session    *models.PaymentSession
	Invoice    *gateway.Invoice
	InvoiceErr error
	// Replayed is true when an identical earlier request created the session.
	Replayed bool
}

type Service struct {
	cfg     *config.Config
	store   *Store
	gateway InvoiceGateway
	log     *zap.SugaredLogger
	now     func() time.Time
}

func NewService(cfg *config.Config, store *Store, gw InvoiceGateway, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, store: store, gateway: gw, log: log, now: time.Now}
}

func (s *Service) Store() *Store {
	return s.store
}

// CreateSession validates the request, persists the session and creates its
// gateway invoice. The durable write always precedes the invoice request.
func (s *Service) CreateSession(ctx context.Context, req *CreateSessionRequest) (res *CreateSessionResult, err error) {
	defer func() {
		switch {
		case errors.Is(err, ErrValidation):
			metrics.IncSessionCreated("invalid")
		case err != nil:
			metrics.IncSessionCreated("error")
		case res.InvoiceErr != nil:
			metrics.IncSessionCreated("no_invoice")
		case res.Replayed:
			metrics.IncSessionCreated("replayed")
		default:
			metrics.IncSessionCreated("created")
		}
	}()

	sess, err := s.buildSession(req)
	if err != nil {
		return nil, err
	}
	ctx = logctx.WithSessionID(ctx, sess.SessionID)
	lg := logctx.FromCtx(ctx, s.log)

	res = &CreateSessionResult{Session: sess}
	if err := s.store.Put(ctx, sess); err != nil {
		if !errors.Is(err, ErrSessionExists) {
			return nil, fmt.Errorf("failed to persist session: %w", err)
		}
		existing, gerr := s.store.Get(ctx, sess.SessionID)
		if gerr != nil {
			return nil, fmt.Errorf("failed to load existing session: %w", gerr)
		}
		if !sameContent(existing, sess) {
			return nil, fmt.Errorf("%w: sessionId %s already used for a different cart", ErrValidation, sess.SessionID)
		}
		lg.Infow("session_create_replayed", "status", existing.Status)
		res.Session, res.Replayed = existing, true
	} else {
		lg.Infow("session_created", "total_amount", sess.TotalAmount, "items", len(sess.Items()), "ttl_sec", sess.CacheTTLSeconds)
	}

	if res.Session.HasInvoice() {
		res.Invoice = InvoiceOf(res.Session)
		return res, nil
	}
	if res.Session.Status.Terminal() {
		return res, nil
	}
	inv, updated, err := s.createInvoice(ctx, res.Session)
	if err != nil {
		lg.Warnw("session_invoice_failed", "err", err)
		res.InvoiceErr = err
		return res, nil
	}
	res.Session, res.Invoice = updated, inv
	return res, nil
}

// CreateInvoice creates the invoice for an existing PENDING session. It is
// the retry path after a failed invoice request and returns the recorded
// invoice when one already exists.
func (s *Service) CreateInvoice(ctx context.Context, sessionID string) (*gateway.Invoice, error) {
	ctx = logctx.WithSessionID(ctx, sessionID)
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.HasInvoice() {
		return InvoiceOf(sess), nil
	}
	if sess.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", ErrSessionClosed, sess.Status)
	}
	inv, _, err := s.createInvoice(ctx, sess)
	return inv, err
}

func (s *Service) Get(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	return s.store.Get(logctx.WithSessionID(ctx, sessionID), sessionID)
}

func (s *Service) createInvoice(ctx context.Context, sess *models.PaymentSession) (*gateway.Invoice, *models.PaymentSession, error) {
	inv, err := s.gateway.CreateInvoice(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.now()
	}
	updated, err := s.store.SetInvoice(ctx, sess.SessionID, inv)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record invoice %s: %w", inv.InvoiceID, err)
	}
	// a concurrent request may have recorded its invoice first
	return InvoiceOf(updated), updated, nil
}

func (s *Service) buildSession(req *CreateSessionRequest) (*models.PaymentSession, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", ErrValidation)
	}
	if err := validateData(&req.SessionData); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.TTLSec < 0 {
		return nil, fmt.Errorf("%w: ttlSec must be positive", ErrValidation)
	}
	ttl := req.TTLSec
	if ttl == 0 {
		ttl = s.cfg.Session.DefaultTTLSeconds
	}
	if ttl > MaxTTLSeconds {
		return nil, fmt.Errorf("%w: ttlSec must not exceed %d", ErrValidation, MaxTTLSeconds)
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = tool.GenerateUUIDV7()
	}
	if !tool.ValidSessionID(id) {
		return nil, fmt.Errorf("%w: invalid sessionId %q", ErrValidation, req.SessionID)
	}

	d := req.SessionData
	sellers := d.Sellers
	if len(sellers) == 0 {
		order, _ := (&models.PaymentSession{Cart: datatypes.NewJSONType(d.Cart)}).Partitions()
		sellers = lo.Map(order, func(p models.Seller, _ int) *models.Seller { return &p })
	}
	currency := d.Currency
	if currency == "" {
		currency = s.cfg.Session.Currency
	}
	return &models.PaymentSession{
		SessionID:         id,
		UserID:            d.UserID,
		Cart:              datatypes.NewJSONType(d.Cart),
		Sellers:           datatypes.NewJSONType(sellers),
		TotalAmount:       d.TotalAmount,
		Currency:          currency,
		ShippingAddressID: d.ShippingAddressID,
		Coupon:            d.Coupon,
		Status:            types.SessionStatusPending,
		CacheTTLSeconds:   ttl,
		OrderIDs:          datatypes.NewJSONType([]string{}),
		CreatedAt:         s.now(),
	}, nil
}

func validateData(d *SessionData) error {
	if strings.TrimSpace(d.UserID) == "" {
		return errors.New("userId is required")
	}
	if len(d.Cart) == 0 {
		return errors.New("cart is empty")
	}
	sum := decimal.Zero
	for i, it := range d.Cart {
		if it == nil {
			return fmt.Errorf("cart[%d] is null", i)
		}
		if it.ProductID == "" || it.SellerID == "" {
			return fmt.Errorf("cart[%d]: productId and sellerId are required", i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("cart[%d]: quantity must be positive", i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("cart[%d]: unitPrice must not be negative", i)
		}
		if !fitsScale(it.UnitPrice) {
			return fmt.Errorf("cart[%d]: unitPrice has more than %d decimal places", i, amountScale)
		}
		sum = sum.Add(it.Subtotal())
	}
	if !d.TotalAmount.IsPositive() {
		return errors.New("totalAmount must be positive")
	}
	if !fitsScale(d.TotalAmount) {
		return fmt.Errorf("totalAmount has more than %d decimal places", amountScale)
	}
	if !d.TotalAmount.Equal(sum) {
		return fmt.Errorf("totalAmount %s does not match cart total %s", d.TotalAmount, sum)
	}
	if len(d.Sellers) > 0 {
		partitions := lo.Uniq(lo.Map(d.Cart, func(it *models.CartItem, _ int) models.Seller { return it.PartitionKey() }))
		named := lo.Uniq(lo.Map(lo.Compact(d.Sellers), func(s *models.Seller, _ int) models.Seller { return *s }))
		if missing, extra := lo.Difference(partitions, named); len(missing) > 0 || len(extra) > 0 {
			return fmt.Errorf("sellers do not match cart partitions (missing %d, unknown %d)", len(missing), len(extra))
		}
	}
	return nil
}

func fitsScale(x decimal.Decimal) bool {
	return x.Equal(x.Round(amountScale))
}

// sameContent reports whether a replayed creation request describes the
// stored session.
func sameContent(a, b *models.PaymentSession) bool {
	if a.UserID != b.UserID || !a.TotalAmount.Equal(b.TotalAmount) {
		return false
	}
	ca, err1 := json.Marshal(a.Items())
	cb, err2 := json.Marshal(b.Items())
	return err1 == nil && err2 == nil && string(ca) == string(cb)
}

// InvoiceOf returns the invoice recorded on the session, or nil.
func InvoiceOf(s *models.PaymentSession) *gateway.Invoice {
	if !s.HasInvoice() {
		return nil
	}
	inv := &gateway.Invoice{
		InvoiceID: *s.GatewayInvoiceID,
		QRText:    lo.FromPtr(s.GatewayQRPayload),
		ShortURL:  lo.FromPtr(s.GatewayPaymentURL),
	}
	if s.GatewayInvoiceCreatedAt != nil {
		inv.CreatedAt = *s.GatewayInvoiceCreatedAt
	}
	return inv
}
