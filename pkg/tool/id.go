package tool

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// MaxSessionIDLen matches the payment_session.session_id column width.
const MaxSessionIDLen = 64

// ValidSessionID accepts caller-supplied identifiers that are safe to use as a
// cache key suffix and as the gateway's sender invoice number.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > MaxSessionIDLen {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return !(r == '-' || r == '_' || r == '.' ||
			('0' <= r && r <= '9') || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'))
	})
}
