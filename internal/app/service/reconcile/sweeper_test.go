package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fatflowers/checkout/pkg/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSweeper(f *fixture) *Sweeper {
	s := NewSweeper(testConfig(), f.store, f.rec, zap.NewNop().Sugar())
	s.now = f.clock.Now
	return s
}

func TestSweeper_ReconcilesStalePendingSessions(t *testing.T) {
	f := newFixture(t)
	paid := f.create(t, "s-paid", 60)
	f.create(t, "s-waiting", 60)
	f.checker.paid(paid.InvoiceID(), "100")

	f.clock.Advance(10 * time.Minute)
	f.create(t, "s-fresh", 60)

	res, err := newTestSweeper(f).RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, &SweepResult{Checked: 2, Paid: 1}, res)

	require.Equal(t, types.SessionStatusPaid, f.durable.Row("s-paid").Status)
	require.Equal(t, types.SessionStatusPending, f.durable.Row("s-waiting").Status)
	require.Equal(t, types.SessionStatusPending, f.durable.Row("s-fresh").Status)
	require.NotContains(t, f.checker.checked, "inv-s-fresh")
}

func TestSweeper_ExpiresLongUnpaidInvoices(t *testing.T) {
	f := newFixture(t)
	f.create(t, "s-old", 60)
	f.clock.Advance(2 * time.Hour)

	res, err := newTestSweeper(f).RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Expired)

	row := f.durable.Row("s-old")
	require.Equal(t, types.SessionStatusExpired, row.Status)
	require.NotNil(t, row.FailureReason)

	// expired sessions are terminal for later webhooks
	out, err := f.rec.Reconcile(context.Background(), webhook("s-old"))
	require.NoError(t, err)
	require.Equal(t, types.WebhookReasonDuplicate, out.Reason)
}

func TestSweeper_SkipsSessionsWithoutInvoice(t *testing.T) {
	f := newFixture(t)
	f.invoicer.Err = context.DeadlineExceeded
	f.create(t, "s-no-invoice", 60)
	f.clock.Advance(2 * time.Hour)

	res, err := newTestSweeper(f).RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, res.Checked)
}

func TestSweeper_RotatesPastUnpaidBacklog(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.create(t, fmt.Sprintf("s-unpaid-%02d", i), 60)
		f.clock.Advance(time.Second)
	}
	paid := f.create(t, "s-paid", 60)
	f.checker.paid(paid.InvoiceID(), "100")
	f.clock.Advance(10 * time.Minute)

	sw := newTestSweeper(f)
	first, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, &SweepResult{Checked: 10}, first)
	require.Equal(t, types.SessionStatusPending, f.durable.Row("s-paid").Status)

	f.clock.Advance(time.Minute)
	second, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, second.Paid)
	require.Equal(t, types.SessionStatusPaid, f.durable.Row("s-paid").Status)
	require.Contains(t, f.checker.checked, "inv-s-paid")
}

func TestSweeper_StartStop(t *testing.T) {
	f := newFixture(t)
	s := newTestSweeper(f)
	s.cfg.Interval = time.Millisecond
	s.Start()
	time.Sleep(5 * time.Millisecond)
	s.Stop()
}
