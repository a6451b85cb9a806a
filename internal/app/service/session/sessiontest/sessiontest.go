// Package sessiontest provides in-memory session store tiers for tests.
package sessiontest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/cache"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
	"gorm.io/datatypes"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type entry struct {
	data    []byte
	expires time.Time
}

// Cache is a TTL cache driven by a Clock. Setting Err makes every call fail.
type Cache struct {
	mu      sync.Mutex
	clock   *Clock
	entries map[string]entry
	Err     error
}

func NewCache(clock *Clock) *Cache {
	return &Cache{clock: clock, entries: map[string]entry{}}
}

func (c *Cache) live(key string) (entry, bool) {
	e, ok := c.entries[key]
	if !ok {
		return entry{}, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		return entry{}, false
	}
	return e, true
}

func (c *Cache) Get(_ context.Context, key string, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	e, ok := c.live(key)
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(e.data, dest)
}

func (c *Cache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = entry{data: data, expires: c.clock.Now().Add(ttl)}
	return nil
}

func (c *Cache) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return false, c.Err
	}
	if _, ok := c.live(key); ok {
		return false, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.entries[key] = entry{data: data, expires: c.clock.Now().Add(ttl)}
	return true, nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Has reports whether key holds a live entry, ignoring Err.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live(key)
	return ok
}

// TTL returns the remaining lifetime of key.
func (c *Cache) TTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.live(key)
	if !ok {
		return 0
	}
	return e.expires.Sub(c.clock.Now())
}

// Durable keeps sessions as JSON snapshots so callers never share memory
// with the stored row. Transitions are serialized by a single mutex, the
// in-memory analogue of the row lock.
type Durable struct {
	mu    sync.Mutex
	clock *Clock
	rows  map[string][]byte
	// checked holds last_checked_at, which the JSON snapshot omits.
	checked map[string]time.Time

	CreateErr error
	FindErr   error
	// Transitions counts applied terminal transitions.
	Transitions int
}

var _ session.Durable = (*Durable)(nil)

func NewDurable(clock *Clock) *Durable {
	return &Durable{clock: clock, rows: map[string][]byte{}, checked: map[string]time.Time{}}
}

func (d *Durable) load(id string) (*models.PaymentSession, bool) {
	data, ok := d.rows[id]
	if !ok {
		return nil, false
	}
	var s models.PaymentSession
	if err := json.Unmarshal(data, &s); err != nil {
		panic(err)
	}
	return &s, true
}

func (d *Durable) save(s *models.PaymentSession) {
	s.UpdatedAt = d.clock.Now()
	data, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	d.rows[s.SessionID] = data
}

func (d *Durable) Create(_ context.Context, s *models.PaymentSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CreateErr != nil {
		return d.CreateErr
	}
	if _, ok := d.rows[s.SessionID]; ok {
		return fmt.Errorf("%w: %s", session.ErrSessionExists, s.SessionID)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = d.clock.Now()
	}
	d.save(s)
	return nil
}

func (d *Durable) Find(_ context.Context, id string) (*models.PaymentSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FindErr != nil {
		return nil, d.FindErr
	}
	s, ok := d.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionMissing, id)
	}
	return s, nil
}

func (d *Durable) SetInvoice(_ context.Context, id string, inv *gateway.Invoice) (*models.PaymentSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", session.ErrSessionMissing, id)
	}
	if !s.HasInvoice() {
		createdAt := inv.CreatedAt
		s.GatewayInvoiceID = &inv.InvoiceID
		s.GatewayQRPayload = &inv.QRText
		s.GatewayPaymentURL = &inv.ShortURL
		s.GatewayInvoiceCreatedAt = &createdAt
		d.save(s)
	}
	return s, nil
}

func (d *Durable) Transition(ctx context.Context, id string, t session.Transition) (*models.PaymentSession, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.load(id)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", session.ErrSessionMissing, id)
	}
	if s.Status != types.SessionStatusPending {
		return s, false, nil
	}

	orderIDs := t.OrderIDs
	if t.Materialize != nil {
		ids, err := t.Materialize(ctx, s)
		if err != nil {
			return nil, false, err
		}
		orderIDs = ids
	}
	if t.Status == types.SessionStatusPaid && len(orderIDs) == 0 {
		return nil, false, fmt.Errorf("session %s paid without orders", id)
	}
	now := d.clock.Now()
	s.Status = t.Status
	s.ProcessedAt = &now
	if t.FailureReason != "" {
		s.FailureReason = &t.FailureReason
	}
	if len(orderIDs) > 0 {
		s.OrderIDs = datatypes.NewJSONType(orderIDs)
	}
	d.save(s)
	d.Transitions++
	return s, true, nil
}

func (d *Durable) ListStalePending(_ context.Context, invoicedBefore time.Time, limit int) ([]*models.PaymentSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*models.PaymentSession
	for id := range d.rows {
		s, _ := d.load(id)
		if s.Status == types.SessionStatusPending && s.HasInvoice() && s.GatewayInvoiceCreatedAt.Before(invoicedBefore) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci, iok := d.checked[out[i].SessionID]
		cj, jok := d.checked[out[j].SessionID]
		if iok != jok {
			return !iok
		}
		if iok && !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return out[i].GatewayInvoiceCreatedAt.Before(*out[j].GatewayInvoiceCreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, s := range out {
		if at, ok := d.checked[s.SessionID]; ok {
			s.LastCheckedAt = &at
		}
	}
	return out, nil
}

func (d *Durable) MarkChecked(_ context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.load(id)
	if !ok || s.Status != types.SessionStatusPending {
		return nil
	}
	d.checked[id] = at
	return nil
}

// Row returns the stored session or nil.
func (d *Durable) Row(id string) *models.PaymentSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, _ := d.load(id)
	return s
}

// Invoicer is a scripted InvoiceGateway.
type Invoicer struct {
	mu    sync.Mutex
	Err   error
	Calls int
	clock *Clock
}

func NewInvoicer(clock *Clock) *Invoicer {
	return &Invoicer{clock: clock}
}

func (g *Invoicer) CreateInvoice(_ context.Context, s *models.PaymentSession) (*gateway.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.Err != nil {
		return nil, g.Err
	}
	return &gateway.Invoice{
		InvoiceID: "inv-" + s.SessionID,
		QRText:    "qr:" + s.SessionID,
		ShortURL:  "https://pay.example/" + s.SessionID,
		CreatedAt: g.clock.Now(),
	}, nil
}
