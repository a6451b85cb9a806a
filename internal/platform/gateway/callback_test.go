package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallbackSigner_RoundTrip(t *testing.T) {
	s := NewCallbackSigner("secret")
	tok, err := s.Sign("sess-1")
	require.NoError(t, err)

	require.NoError(t, s.Verify(tok, "sess-1"))
	require.ErrorIs(t, s.Verify(tok, "sess-2"), ErrBadCallbackToken)
	require.ErrorIs(t, s.Verify("", "sess-1"), ErrBadCallbackToken)
	require.ErrorIs(t, NewCallbackSigner("other").Verify(tok, "sess-1"), ErrBadCallbackToken)
}

func TestCallbackSigner_DisabledAcceptsAnything(t *testing.T) {
	s := NewCallbackSigner("")
	require.False(t, s.Enabled())
	require.NoError(t, s.Verify("", "sess-1"))
}
