package reconcile

import (
	"net/url"
	"testing"

	"github.com/fatflowers/checkout/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook_CheckoutShape(t *testing.T) {
	n, err := ParseWebhook(url.Values{}, []byte(`{"sessionId":"s-1","invoiceId":"inv-1","status":"PAID","payload":{"x":1},"extra":true}`))
	require.NoError(t, err)
	require.Equal(t, "s-1", n.SessionID)
	require.Equal(t, "inv-1", n.InvoiceID)
	require.Equal(t, "PAID", n.AdvisoryStatus)
	require.Equal(t, types.NotificationSourceWebhook, n.Source)
}

func TestParseWebhook_GatewayShapeWithQuerySession(t *testing.T) {
	q := url.Values{"session_id": {"s-2"}, "token": {"t"}}
	n, err := ParseWebhook(q, []byte(`{"object_type":"INVOICE","object_id":"inv-9","payment_status":"PAID","payment_id":"p-1"}`))
	require.NoError(t, err)
	require.Equal(t, "s-2", n.SessionID)
	require.Equal(t, "inv-9", n.InvoiceID)
	require.Equal(t, "p-1", n.PaymentID)
}

func TestParseWebhook_QueryOverridesBody(t *testing.T) {
	n, err := ParseWebhook(url.Values{"sessionId": {"from-query"}}, []byte(`{"sessionId":"from-body"}`))
	require.NoError(t, err)
	require.Equal(t, "from-query", n.SessionID)
}

func TestParseWebhook_EmptyBody(t *testing.T) {
	n, err := ParseWebhook(url.Values{"session_id": {" s-3 "}}, nil)
	require.NoError(t, err)
	require.Equal(t, "s-3", n.SessionID)
	require.Empty(t, n.InvoiceID)
}

func TestParseWebhook_Rejects(t *testing.T) {
	_, err := ParseWebhook(url.Values{}, []byte(`{"invoiceId":"inv-1"}`))
	require.ErrorIs(t, err, ErrInvalidNotification)

	_, err = ParseWebhook(url.Values{"session_id": {"s-1"}}, []byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidNotification)

	_, err = ParseWebhook(url.Values{"session_id": {"s-1"}}, []byte(`["array"]`))
	require.ErrorIs(t, err, ErrInvalidNotification)
}
