package session

import "errors"

var (
	// ErrValidation is returned for malformed creation requests. Nothing is
	// persisted when it is returned.
	ErrValidation = errors.New("validation failed")
	// ErrSessionMissing means neither the cache nor the durable store holds
	// the session.
	ErrSessionMissing = errors.New("payment session not found")
	// ErrSessionExists is returned by Durable.Create for a reused session id.
	ErrSessionExists = errors.New("payment session already exists")
	// ErrSessionClosed is returned when an invoice is requested for a
	// session that already reached a terminal state.
	ErrSessionClosed = errors.New("payment session is closed")
)
