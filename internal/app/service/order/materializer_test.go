package order

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestBuildOrders_PartitionsBySellerInCartOrder(t *testing.T) {
	inv := "inv-1"
	s := &models.PaymentSession{
		SessionID:        "sess-1",
		UserID:           "user-1",
		Currency:         "MNT",
		GatewayInvoiceID: &inv,
		Cart: datatypes.NewJSONType([]*models.CartItem{
			{ProductID: "a", SellerID: "s-2", Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
			{ProductID: "b", SellerID: "s-1", ShopID: "shop", Quantity: 3, UnitPrice: decimal.RequireFromString("5.5")},
			{ProductID: "c", SellerID: "s-2", Quantity: 2, UnitPrice: decimal.RequireFromString("20"), Options: map[string]string{"size": "L"}},
		}),
	}

	orders, err := BuildOrders(s, seqIDs())
	require.NoError(t, err)
	require.Len(t, orders, 2)

	require.Equal(t, "s-2", orders[0].SellerID)
	require.Equal(t, []string{"a", "c"}, []string{orders[0].Items[0].ProductID, orders[0].Items[1].ProductID})
	require.True(t, orders[0].Amount.Equal(decimal.RequireFromString("50")))
	require.Equal(t, "L", orders[0].Items[1].Options.Data()["size"])
	require.Equal(t, orders[0].ID, orders[0].Items[0].OrderID)

	require.Equal(t, "s-1", orders[1].SellerID)
	require.Equal(t, "shop", orders[1].ShopID)
	require.True(t, orders[1].Amount.Equal(decimal.RequireFromString("16.5")))

	for _, o := range orders {
		require.Equal(t, "sess-1", o.SessionID)
		require.Equal(t, "inv-1", o.GatewayInvoiceID)
		require.Equal(t, models.OrderStatusCreated, o.Status)
	}
}

func TestBuildOrders_EmptyCart(t *testing.T) {
	_, err := BuildOrders(&models.PaymentSession{SessionID: "sess-1"}, seqIDs())
	require.Error(t, err)
}

func TestMaterialize_InsertsThroughTransactionFromContext(t *testing.T) {
	// Nothing listens on port 1: any statement that reaches base fails.
	base, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=1 user=checkout dbname=checkout sslmode=disable connect_timeout=2",
	}), &gorm.Config{DisableAutomaticPing: true, Logger: logger.Discard})
	require.NoError(t, err)

	var inserts []string
	require.NoError(t, base.Callback().Create().After("gorm:create").Register("checkout:capture_insert", func(tx *gorm.DB) {
		if sql := tx.Statement.SQL.String(); sql != "" {
			inserts = append(inserts, sql)
		}
	}))

	s := &models.PaymentSession{
		SessionID: "sess-1",
		UserID:    "user-1",
		Currency:  "MNT",
		Cart: datatypes.NewJSONType([]*models.CartItem{
			{ProductID: "a", SellerID: "s-1", Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
			{ProductID: "b", SellerID: "s-2", Quantity: 2, UnitPrice: decimal.RequireFromString("5")},
		}),
	}
	m := NewMaterializer(base, zap.NewNop().Sugar())

	tx := base.Session(&gorm.Session{DryRun: true, SkipDefaultTransaction: true})
	ids, err := m.Materialize(db.WithTx(context.Background(), tx), s)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEmpty(t, inserts)
	require.Contains(t, inserts[0], `INSERT INTO "orders"`)
	require.Contains(t, strings.Join(inserts, "\n"), `INSERT INTO "order_item"`)

	// without a transaction in ctx the inserts go to base and fail
	_, err = m.Materialize(context.Background(), s)
	require.Error(t, err)
}
