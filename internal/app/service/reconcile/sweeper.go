package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/fatflowers/checkout/pkg/types"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PendingLister lists PENDING sessions with an invoice older than a cutoff,
// least recently checked first.
type PendingLister interface {
	ListStalePending(ctx context.Context, invoicedBefore time.Time, limit int) ([]*models.PaymentSession, error)
	MarkChecked(ctx context.Context, sessionID string, at time.Time) error
	MarkTerminal(ctx context.Context, sessionID string, status types.SessionStatus, orderIDs []string, opts ...session.TerminalOption) (*models.PaymentSession, bool, error)
}

// SweepResult summarizes one sweeper pass.
type SweepResult struct {
	Checked int
	Paid    int
	Expired int
	Errors  int
}

// Sweeper re-runs reconciliation for sessions whose webhook never arrived
// and expires invoices left unpaid for too long.
type Sweeper struct {
	cfg        config.SweeperConfig
	store      PendingLister
	reconciler *Reconciler
	log        *zap.SugaredLogger
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(cfg *config.Config, store PendingLister, reconciler *Reconciler, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{cfg: cfg.Sweeper, store: store, reconciler: reconciler, log: log, now: time.Now}
}

// RunOnce performs a single pass.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	ctx = logctx.WithTraceID(ctx, "sweep-"+tool.GenerateUUIDV7())
	lg := logctx.FromCtx(ctx, s.log)
	now := s.now()

	pending, err := s.store.ListStalePending(ctx, now.Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending sessions: %w", err)
	}
	res := &SweepResult{}
	for _, sess := range pending {
		res.Checked++
		out, err := s.reconciler.Reconcile(ctx, &Notification{
			SessionID: sess.SessionID,
			InvoiceID: sess.InvoiceID(),
			Source:    types.NotificationSourceSweeper,
		})
		if merr := s.store.MarkChecked(ctx, sess.SessionID, now); merr != nil {
			lg.Warnw("sweep_mark_checked_failed", "session_id", sess.SessionID, "err", merr)
		}
		if err != nil {
			res.Errors++
			lg.Warnw("sweep_reconcile_failed", "session_id", sess.SessionID, "err", err)
			continue
		}
		if out.Processed && out.Reason == "" {
			res.Paid++
			continue
		}
		if out.Reason != types.WebhookReasonNotPaid || s.cfg.ExpireAfter <= 0 {
			continue
		}
		if sess.GatewayInvoiceCreatedAt == nil || now.Sub(*sess.GatewayInvoiceCreatedAt) < s.cfg.ExpireAfter {
			continue
		}
		reason := fmt.Sprintf("invoice unpaid after %s", s.cfg.ExpireAfter)
		_, applied, err := s.store.MarkTerminal(ctx, sess.SessionID, types.SessionStatusExpired, nil, session.WithFailureReason(reason))
		if err != nil {
			res.Errors++
			lg.Warnw("sweep_expire_failed", "session_id", sess.SessionID, "err", err)
			continue
		}
		if applied {
			res.Expired++
			lg.Infow("session_expired", "session_id", sess.SessionID, "invoice_id", sess.InvoiceID())
		}
	}
	if res.Checked > 0 {
		lg.Infow("sweep_done", "checked", res.Checked, "paid", res.Paid, "expired", res.Expired, "errors", res.Errors)
	}
	return res, nil
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Warnw("sweep_failed", "err", err)
			}
		}
	}
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func registerSweeper(lc fx.Lifecycle, cfg *config.Config, s *Sweeper, log *zap.SugaredLogger) {
	if !cfg.Sweeper.Enabled {
		log.Infow("pending sweeper disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting pending sweeper", "interval", cfg.Sweeper.Interval, "min_age", cfg.Sweeper.MinAge)
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}
