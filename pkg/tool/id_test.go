package tool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7_IsValidSessionID(t *testing.T) {
	id := GenerateUUIDV7()
	require.True(t, ValidSessionID(id))
	require.NotEqual(t, id, GenerateUUIDV7())
}

func TestValidSessionID(t *testing.T) {
	require.True(t, ValidSessionID("order_2024.01-abc"))
	require.False(t, ValidSessionID(""))
	require.False(t, ValidSessionID("has space"))
	require.False(t, ValidSessionID("payment-session:nested"))
	require.False(t, ValidSessionID(strings.Repeat("a", MaxSessionIDLen+1)))
}
