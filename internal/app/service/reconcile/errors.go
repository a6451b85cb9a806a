package reconcile

import "errors"

var (
	// ErrMaterialization means the payment was verified but orders could not
	// be created. The session stays PENDING so a redelivery can retry.
	ErrMaterialization = errors.New("order materialization failed")
	// ErrFatalSession marks sessions that can never complete, such as an
	// underpaid invoice. Such sessions are moved to FAILED.
	ErrFatalSession = errors.New("payment session cannot complete")
	// ErrDuplicateDelivery is logged when a notification arrives for a
	// session that already reached a terminal state.
	ErrDuplicateDelivery = errors.New("duplicate notification delivery")
	// ErrInvalidNotification is returned when a notification names no
	// session or invoice that could be checked.
	ErrInvalidNotification = errors.New("invalid payment notification")
	// ErrInvoicePending means the session exists but its invoice has not been
	// recorded yet. The notification should be redelivered.
	ErrInvoicePending = errors.New("payment session has no invoice yet")
)
