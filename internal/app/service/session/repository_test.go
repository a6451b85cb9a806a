package session

import (
	"testing"
	"time"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// renderDB builds statements with the postgres dialector without ever
// connecting; it is only used through ToSQL.
func renderDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=checkout dbname=checkout sslmode=disable",
	}), &gorm.Config{DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)
	return gdb
}

var sqlTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLeavePending_IsConditionalOnPendingStatus(t *testing.T) {
	gdb := renderDB(t)

	sql := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return leavePending(tx, "s-1", Transition{Status: types.SessionStatusPaid}, sqlTime)
	})
	require.Contains(t, sql, `UPDATE "payment_session" SET`)
	require.Contains(t, sql, `"status"='PAID'`)
	require.Contains(t, sql, `"processed_at"='2026-03-01 12:00:00'`)
	require.Contains(t, sql, `WHERE session_id = 's-1' AND status = 'PENDING'`)
	require.NotContains(t, sql, "failure_reason")

	sql = gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return leavePending(tx, "s-1", Transition{Status: types.SessionStatusFailed, FailureReason: "underpaid"}, sqlTime)
	})
	require.Contains(t, sql, `"status"='FAILED'`)
	require.Contains(t, sql, `"failure_reason"='underpaid'`)
	require.Contains(t, sql, `WHERE session_id = 's-1' AND status = 'PENDING'`)
}

func TestRecordInvoice_OnlyWhileNoInvoiceRecorded(t *testing.T) {
	gdb := renderDB(t)
	inv := &gateway.Invoice{InvoiceID: "inv-1", QRText: "qr", ShortURL: "https://pay.example/s-1"}

	sql := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return recordInvoice(tx, "s-1", inv, sqlTime)
	})
	require.Contains(t, sql, `"gateway_invoice_id"='inv-1'`)
	require.Contains(t, sql, `"gateway_invoice_created_at"='2026-03-01 12:00:00'`)
	require.Contains(t, sql, `WHERE session_id = 's-1' AND gateway_invoice_id IS NULL`)
}

func TestStalePending_LeastRecentlyCheckedFirst(t *testing.T) {
	gdb := renderDB(t)

	sql := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var rows []*models.PaymentSession
		return stalePending(tx, sqlTime, 10).Find(&rows)
	})
	require.Contains(t, sql, `FROM "payment_session"`)
	require.Contains(t, sql, `status = 'PENDING' AND gateway_invoice_id IS NOT NULL AND gateway_invoice_created_at < '2026-03-01 12:00:00'`)
	require.Contains(t, sql, "ORDER BY last_checked_at ASC NULLS FIRST,gateway_invoice_created_at ASC")
	require.Contains(t, sql, "LIMIT 10")
}

func TestMarkChecked_TouchesOnlyPendingRows(t *testing.T) {
	gdb := renderDB(t)

	sql := gdb.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return markChecked(tx, "s-1", sqlTime)
	})
	require.Contains(t, sql, `SET "last_checked_at"='2026-03-01 12:00:00'`)
	require.Contains(t, sql, `WHERE session_id = 's-1' AND status = 'PENDING'`)
	require.NotContains(t, sql, "updated_at")
}
