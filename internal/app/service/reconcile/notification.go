package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/fatflowers/checkout/pkg/types"
)

// Notification is what the reconciler needs from a webhook delivery or a
// sweeper pass. AdvisoryStatus is whatever the sender claimed and is only
// logged.
type Notification struct {
	SessionID      string
	InvoiceID      string
	AdvisoryStatus string
	PaymentID      string
	Source         types.NotificationSource
}

// checkoutPayload is the body shape used by the checkout front end and by
// replay tooling.
type checkoutPayload struct {
	SessionID string          `json:"sessionId"`
	InvoiceID string          `json:"invoiceId"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload"`
}

// gatewayCallback is the gateway's native callback body.
type gatewayCallback struct {
	ObjectType    string `json:"object_type"`
	ObjectID      string `json:"object_id"`
	PaymentStatus string `json:"payment_status"`
	PaymentID     string `json:"payment_id"`
}

// ParseWebhook builds a Notification from the callback query and body. The
// query's session_id wins over anything in the body. Unknown fields are
// ignored and an empty body is allowed.
func ParseWebhook(query url.Values, body []byte) (*Notification, error) {
	n := &Notification{Source: types.NotificationSourceWebhook}

	if len(bytes.TrimSpace(body)) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("%w: body is not a JSON object: %v", ErrInvalidNotification, err)
		}
		if _, native := fields["object_id"]; native {
			var cb gatewayCallback
			if err := json.Unmarshal(body, &cb); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
			}
			n.InvoiceID = cb.ObjectID
			n.AdvisoryStatus = cb.PaymentStatus
			n.PaymentID = cb.PaymentID
		} else {
			var cp checkoutPayload
			if err := json.Unmarshal(body, &cp); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidNotification, err)
			}
			n.SessionID = cp.SessionID
			n.InvoiceID = cp.InvoiceID
			n.AdvisoryStatus = cp.Status
		}
	}

	for _, key := range []string{"session_id", "sessionId"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			n.SessionID = v
			break
		}
	}
	if n.InvoiceID == "" {
		n.InvoiceID = strings.TrimSpace(query.Get("invoice_id"))
	}
	n.SessionID = strings.TrimSpace(n.SessionID)
	n.InvoiceID = strings.TrimSpace(n.InvoiceID)
	if n.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", ErrInvalidNotification)
	}
	return n, nil
}
