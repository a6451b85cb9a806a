package types

type SessionStatus string

const (
	SessionStatusPending SessionStatus = "PENDING"
	SessionStatusPaid    SessionStatus = "PAID"
	SessionStatusNotPaid SessionStatus = "NOT_PAID"
	SessionStatusExpired SessionStatus = "EXPIRED"
	SessionStatusFailed  SessionStatus = "FAILED"
)

// Terminal reports whether the session can no longer change state.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusPaid, SessionStatusNotPaid, SessionStatusExpired, SessionStatusFailed:
		return true
	}
	return false
}

// WebhookReason explains why a webhook did not (or did not again) produce orders.
type WebhookReason string

const (
	WebhookReasonNotPaid        WebhookReason = "NOT_PAID"
	WebhookReasonSessionMissing WebhookReason = "SESSION_MISSING"
	WebhookReasonDuplicate      WebhookReason = "DUPLICATE"
	WebhookReasonFailed         WebhookReason = "FAILED"
	WebhookReasonInvalidInvoice WebhookReason = "INVALID_INVOICE"
)

// PaymentCheckStatus is the gateway's authoritative answer for an invoice.
type PaymentCheckStatus string

const (
	PaymentCheckStatusPaid    PaymentCheckStatus = "PAID"
	PaymentCheckStatusNotPaid PaymentCheckStatus = "NOT_PAID"
)

// NotificationSource tells which path triggered a reconciliation.
type NotificationSource string

const (
	NotificationSourceWebhook NotificationSource = "webhook"
	NotificationSourceSweeper NotificationSource = "sweeper"
	NotificationSourceAdmin   NotificationSource = "admin"
)
