package gateway

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
)

var ErrBadCallbackToken = errors.New("invalid callback token")

const callbackIssuer = "checkout"

// CallbackSigner issues and verifies the HS256 token embedded in the invoice
// callback URL, binding a webhook delivery to the session it was created for.
// With an empty secret signing is disabled and every token verifies.
type CallbackSigner struct {
	secret []byte
}

func NewCallbackSigner(secret string) *CallbackSigner {
	return &CallbackSigner{secret: []byte(secret)}
}

func (s *CallbackSigner) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

func (s *CallbackSigner) Sign(sessionID string) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Issuer:  callbackIssuer,
		Subject: sessionID,
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign callback token: %w", err)
	}
	return signed, nil
}

func (s *CallbackSigner) Verify(token, sessionID string) error {
	if !s.Enabled() {
		return nil
	}
	if token == "" {
		return fmt.Errorf("%w: missing", ErrBadCallbackToken)
	}
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCallbackToken, err)
	}
	if claims.Issuer != callbackIssuer || claims.Subject != sessionID {
		return fmt.Errorf("%w: session mismatch", ErrBadCallbackToken)
	}
	return nil
}
