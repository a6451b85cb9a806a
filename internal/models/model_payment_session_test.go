package models

import (
	"encoding/json"
	"testing"

	"github.com/fatflowers/checkout/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func testSession() *PaymentSession {
	return &PaymentSession{
		SessionID: "sess-1",
		UserID:    "user-1",
		Cart: datatypes.NewJSONType([]*CartItem{
			{ProductID: "p1", SellerID: "s1", Quantity: 2, UnitPrice: decimal.RequireFromString("12.50")},
			{ProductID: "p2", SellerID: "s2", ShopID: "shop-a", Quantity: 1, UnitPrice: decimal.RequireFromString("30")},
			{ProductID: "p3", SellerID: "s1", Quantity: 3, UnitPrice: decimal.RequireFromString("15"), Options: map[string]string{"size": "L"}},
		}),
		TotalAmount:      decimal.RequireFromString("100"),
		Currency:         "MNT",
		Status:           types.SessionStatusPending,
		GatewayInvoiceID: lo.ToPtr("inv-1"),
		CacheTTLSeconds:  10,
	}
}

func TestPaymentSession_CartTotal(t *testing.T) {
	s := testSession()
	require.True(t, s.CartTotal().Equal(decimal.NewFromInt(100)))
}

func TestPaymentSession_PartitionsKeepFirstSeenOrder(t *testing.T) {
	order, groups := testSession().Partitions()
	require.Equal(t, []Seller{{SellerID: "s1"}, {SellerID: "s2", ShopID: "shop-a"}}, order)
	require.Len(t, groups[Seller{SellerID: "s1"}], 2)
	require.Equal(t, "p3", groups[Seller{SellerID: "s1"}][1].ProductID)
}

func TestPaymentSession_JSONKeepsContractFields(t *testing.T) {
	s := testSession()
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var back PaymentSession
	require.NoError(t, json.Unmarshal(raw, &back))
	require.True(t, back.TotalAmount.Equal(s.TotalAmount))
	require.Equal(t, "inv-1", back.InvoiceID())
	require.Len(t, back.Items(), 3)
	require.True(t, back.CartTotal().Equal(s.CartTotal()))
	require.Equal(t, "L", back.Items()[2].Options["size"])
}

func TestSessionStatus_Terminal(t *testing.T) {
	require.False(t, types.SessionStatusPending.Terminal())
	for _, st := range []types.SessionStatus{types.SessionStatusPaid, types.SessionStatusNotPaid, types.SessionStatusExpired, types.SessionStatusFailed} {
		require.True(t, st.Terminal(), st)
	}
}
