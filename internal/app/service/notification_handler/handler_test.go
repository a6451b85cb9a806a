package notification_handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memLogs struct {
	mu   sync.Mutex
	rows []*models.PaymentNotificationLog
}

func (m *memLogs) Save(_ context.Context, l *models.PaymentNotificationLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, l)
}

type stubReconciler struct {
	got *reconcile.Notification
	out *reconcile.Outcome
	err error
}

func (s *stubReconciler) Reconcile(_ context.Context, n *reconcile.Notification) (*reconcile.Outcome, error) {
	s.got = n
	return s.out, s.err
}

func newCtx(target, body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	return c
}

func TestHandleNotification_LogsReceivedAndHandled(t *testing.T) {
	logs := &memLogs{}
	rec := &stubReconciler{out: &reconcile.Outcome{Reason: types.WebhookReasonNotPaid}}
	h := NewNotificationHandler(logs, rec, gateway.NewCallbackSigner(""), zap.NewNop().Sugar())

	out, err := h.HandleNotification(newCtx("/webhook?session_id=s-1", `{"object_id":"inv-1","payment_status":"PAID"}`))
	require.NoError(t, err)
	require.Equal(t, types.WebhookReasonNotPaid, out.Reason)
	require.Equal(t, "s-1", rec.got.SessionID)
	require.Equal(t, "inv-1", rec.got.InvoiceID)
	require.Equal(t, "PAID", rec.got.AdvisoryStatus)

	require.Len(t, logs.rows, 2)
	require.Equal(t, models.PaymentNotificationLogStatusReceived, logs.rows[0].Status)
	require.Equal(t, "s-1", logs.rows[0].SessionID)
	require.Equal(t, "webhook", logs.rows[0].Source)
	require.Equal(t, models.PaymentNotificationLogStatusHandled, logs.rows[1].Status)
	require.Equal(t, "NOT_PAID", *logs.rows[1].Reason)
}

func TestHandleNotification_FailureLogged(t *testing.T) {
	logs := &memLogs{}
	rec := &stubReconciler{err: errors.New("gateway down")}
	h := NewNotificationHandler(logs, rec, gateway.NewCallbackSigner(""), zap.NewNop().Sugar())

	_, err := h.HandleNotification(newCtx("/webhook?session_id=s-1", ""))
	require.Error(t, err)
	require.Len(t, logs.rows, 2)
	require.Equal(t, models.PaymentNotificationLogStatusHandleFailed, logs.rows[1].Status)

	var result map[string]any
	require.NoError(t, json.Unmarshal(*logs.rows[1].Result, &result))
	require.Equal(t, "gateway down", result["error"])
}

func TestHandleNotification_VerifiesCallbackToken(t *testing.T) {
	signer := gateway.NewCallbackSigner("cb-secret")
	logs := &memLogs{}
	rec := &stubReconciler{out: &reconcile.Outcome{Processed: true}}
	h := NewNotificationHandler(logs, rec, signer, zap.NewNop().Sugar())

	_, err := h.HandleNotification(newCtx("/webhook?session_id=s-1&token=forged", ""))
	require.ErrorIs(t, err, gateway.ErrBadCallbackToken)
	require.Nil(t, rec.got)
	require.Empty(t, logs.rows)

	tok, err := signer.Sign("s-1")
	require.NoError(t, err)
	out, err := h.HandleNotification(newCtx("/webhook?session_id=s-1&token="+tok, ""))
	require.NoError(t, err)
	require.True(t, out.Processed)
}

func TestHandleNotification_MissingSession(t *testing.T) {
	h := NewNotificationHandler(&memLogs{}, &stubReconciler{}, gateway.NewCallbackSigner(""), zap.NewNop().Sugar())
	_, err := h.HandleNotification(newCtx("/webhook", `{"status":"PAID"}`))
	require.ErrorIs(t, err, reconcile.ErrInvalidNotification)
}

func TestGatewayNotificationParser_DataOmitsToken(t *testing.T) {
	q := url.Values{"session_id": {"s-1"}, "token": {"secret-token"}}
	p, err := GetGatewayNotificationParser(q, []byte(`{"sessionId":"s-1"}`), time.Now())
	require.NoError(t, err)

	data, err := json.Marshal(p.GetData(context.Background()))
	require.NoError(t, err)
	require.NotContains(t, string(data), "secret-token")
	require.Contains(t, string(data), `"sessionId":"s-1"`)
}
