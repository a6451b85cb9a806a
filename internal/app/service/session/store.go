package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/cache"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/metrics"
	"github.com/fatflowers/checkout/pkg/types"
	"go.uber.org/zap"
)

// Cache is the TTL-bound tier. Get returns cache.ErrMiss when the key is
// absent.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetNX writes only when the key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// MaterializeFunc turns a paid session into orders and returns their ids.
// It runs inside the transaction of the terminal transition.
type MaterializeFunc func(ctx context.Context, s *models.PaymentSession) ([]string, error)

// Transition describes a PENDING -> terminal update.
type Transition struct {
	Status        types.SessionStatus
	OrderIDs      []string
	FailureReason string
	Materialize   MaterializeFunc
}

// Durable is the authoritative tier. Transition must be a compare-and-set on
// status=PENDING: when another writer got there first it returns the current
// row with applied=false.
type Durable interface {
	Create(ctx context.Context, s *models.PaymentSession) error
	Find(ctx context.Context, sessionID string) (*models.PaymentSession, error)
	SetInvoice(ctx context.Context, sessionID string, inv *gateway.Invoice) (*models.PaymentSession, error)
	Transition(ctx context.Context, sessionID string, t Transition) (*models.PaymentSession, bool, error)
	ListStalePending(ctx context.Context, invoicedBefore time.Time, limit int) ([]*models.PaymentSession, error)
	MarkChecked(ctx context.Context, sessionID string, at time.Time) error
}

// Store hides the two tiers behind a single read path with durable fallback.
type Store struct {
	cache     Cache
	durable   Durable
	keyPrefix string
	timeout   time.Duration
	log       *zap.SugaredLogger
}

func NewStore(cfg *config.Config, c Cache, d Durable, log *zap.SugaredLogger) *Store {
	return &Store{
		cache:     c,
		durable:   d,
		keyPrefix: cfg.Session.KeyPrefix,
		timeout:   cfg.Session.StoreTimeout,
		log:       log,
	}
}

func (s *Store) Key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *Store) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Put persists the session durably, then caches it with the session's TTL.
// The cache write is best effort.
func (s *Store) Put(ctx context.Context, sess *models.PaymentSession) (err error) {
	defer func(start time.Time) { metrics.ObserveBusinessProcess("store", "put", start, err) }(time.Now())

	dctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.durable.Create(dctx, sess); err != nil {
		return err
	}
	s.cacheFresh(ctx, sess)
	return nil
}

// Get returns the session from the cache or, on a miss, from the durable
// store, repopulating the cache with a fresh TTL. The repopulating write
// never overwrites an entry stored by a concurrent mutation.
func (s *Store) Get(ctx context.Context, sessionID string) (sess *models.PaymentSession, err error) {
	defer func(start time.Time) {
		if errors.Is(err, ErrSessionMissing) {
			metrics.ObserveBusinessProcess("store", "get", start, nil)
			return
		}
		metrics.ObserveBusinessProcess("store", "get", start, err)
	}(time.Now())

	lg := logctx.FromCtx(ctx, s.log)
	cctx, cancel := s.bounded(ctx)
	var cached models.PaymentSession
	cerr := s.cache.Get(cctx, s.Key(sessionID), &cached)
	cancel()
	switch {
	case cerr == nil:
		return &cached, nil
	case errors.Is(cerr, cache.ErrMiss):
		lg.Debugw("session_cache_miss", "session_id", sessionID)
	default:
		lg.Warnw("session_cache_read_failed", "session_id", sessionID, "err", cerr)
	}

	dctx, cancel := s.bounded(ctx)
	defer cancel()
	sess, err = s.durable.Find(dctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.cacheFill(ctx, sess)
	return sess, nil
}

// SetInvoice records the gateway invoice once. If an invoice was already
// recorded the stored one is returned unchanged.
func (s *Store) SetInvoice(ctx context.Context, sessionID string, inv *gateway.Invoice) (sess *models.PaymentSession, err error) {
	defer func(start time.Time) { metrics.ObserveBusinessProcess("store", "set_invoice", start, err) }(time.Now())

	dctx, cancel := s.bounded(ctx)
	defer cancel()
	sess, err = s.durable.SetInvoice(dctx, sessionID, inv)
	if err != nil {
		return nil, err
	}
	s.cacheRefresh(ctx, sess)
	return sess, nil
}

type TerminalOption func(*Transition)

// WithFailureReason records why a session ended FAILED or EXPIRED.
func WithFailureReason(reason string) TerminalOption {
	return func(t *Transition) { t.FailureReason = reason }
}

// MarkTerminal moves a PENDING session to status. applied is false when the
// session had already left PENDING; the current record is returned then.
func (s *Store) MarkTerminal(ctx context.Context, sessionID string, status types.SessionStatus, orderIDs []string, opts ...TerminalOption) (*models.PaymentSession, bool, error) {
	if !status.Terminal() {
		return nil, false, fmt.Errorf("%s is not a terminal status", status)
	}
	if (status == types.SessionStatusPaid) != (len(orderIDs) > 0) {
		return nil, false, fmt.Errorf("orderIds must be set exactly when status is %s", types.SessionStatusPaid)
	}
	t := Transition{Status: status, OrderIDs: orderIDs}
	for _, opt := range opts {
		opt(&t)
	}
	return s.transition(ctx, sessionID, "mark_terminal", t)
}

// CompletePaid moves a PENDING session to PAID and runs materialize in the
// same durable transaction. A materialize error leaves the session PENDING.
func (s *Store) CompletePaid(ctx context.Context, sessionID string, materialize MaterializeFunc) (*models.PaymentSession, bool, error) {
	if materialize == nil {
		return nil, false, fmt.Errorf("nil materializer")
	}
	return s.transition(ctx, sessionID, "complete_paid", Transition{Status: types.SessionStatusPaid, Materialize: materialize})
}

func (s *Store) transition(ctx context.Context, sessionID, op string, t Transition) (sess *models.PaymentSession, applied bool, err error) {
	defer func(start time.Time) { metrics.ObserveBusinessProcess("store", op, start, err) }(time.Now())

	dctx, cancel := s.bounded(ctx)
	defer cancel()
	sess, applied, err = s.durable.Transition(dctx, sessionID, t)
	if err != nil {
		return nil, false, err
	}
	if applied {
		logctx.FromCtx(ctx, s.log).Infow("session_terminal", "session_id", sessionID, "status", sess.Status, "order_ids", sess.Orders())
		s.cacheRefresh(ctx, sess)
	}
	return sess, applied, nil
}

// ListStalePending returns PENDING sessions whose invoice was created before
// the given time. Sessions never checked come first, then the ones checked
// longest ago.
func (s *Store) ListStalePending(ctx context.Context, invoicedBefore time.Time, limit int) ([]*models.PaymentSession, error) {
	dctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.durable.ListStalePending(dctx, invoicedBefore, limit)
}

// MarkChecked records that a pending session was just polled. The cache is
// left alone since the check time is not part of the cached projection.
func (s *Store) MarkChecked(ctx context.Context, sessionID string, at time.Time) error {
	dctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.durable.MarkChecked(dctx, sessionID, at)
}

func (s *Store) cacheFresh(ctx context.Context, sess *models.PaymentSession) {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	if err := s.cache.Set(cctx, s.Key(sess.SessionID), sess, sess.CacheTTL()); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("session_cache_write_failed", "session_id", sess.SessionID, "err", err)
	}
}

// cacheFill stores a snapshot read from the durable tier. The snapshot may
// already be outdated, so it only lands when no entry exists.
func (s *Store) cacheFill(ctx context.Context, sess *models.PaymentSession) {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	if _, err := s.cache.SetNX(cctx, s.Key(sess.SessionID), sess, sess.CacheTTL()); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("session_cache_fill_failed", "session_id", sess.SessionID, "err", err)
	}
}

// cacheRefresh overwrites the entry with the row a durable mutation just
// committed. An entry that cannot be written is dropped so reads fall back to
// the durable row instead of a stale projection.
func (s *Store) cacheRefresh(ctx context.Context, sess *models.PaymentSession) {
	cctx, cancel := s.bounded(ctx)
	defer cancel()
	err := s.cache.Set(cctx, s.Key(sess.SessionID), sess, sess.CacheTTL())
	if err == nil {
		return
	}
	lg := logctx.FromCtx(ctx, s.log)
	lg.Warnw("session_cache_refresh_failed", "session_id", sess.SessionID, "err", err)
	if derr := s.cache.Delete(cctx, s.Key(sess.SessionID)); derr != nil {
		lg.Errorw("session_cache_evict_failed", "session_id", sess.SessionID, "err", derr)
	}
}
