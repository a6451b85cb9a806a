package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConn_PrefersTransactionFromContext(t *testing.T) {
	tx := &gorm.DB{Config: &gorm.Config{}}
	ctx := WithTx(context.Background(), tx)

	require.True(t, InTx(ctx))
	require.Same(t, tx, Conn(ctx, &gorm.DB{Config: &gorm.Config{}}))
}

func TestInTx_FalseWithoutTransaction(t *testing.T) {
	require.False(t, InTx(context.Background()))
	require.False(t, InTx(WithTx(context.Background(), nil)))
}
