package models

import (
	"time"

	"github.com/fatflowers/checkout/pkg/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CartItem is one line of a checkout cart.
type CartItem struct {
	ProductID string          `json:"productId"`
	SellerID  string          `json:"sellerId"`
	ShopID    string          `json:"shopId,omitempty"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	// Options are the selected variants (size, color...), opaque here.
	Options map[string]string `json:"options,omitempty"`
}

func (i *CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// PartitionKey identifies the seller sub-cart the item belongs to.
func (i *CartItem) PartitionKey() Seller {
	return Seller{SellerID: i.SellerID, ShopID: i.ShopID}
}

type Seller struct {
	SellerID string `json:"sellerId"`
	ShopID   string `json:"shopId,omitempty"`
}

// PaymentSession is the record of an intended purchase awaiting payment
// confirmation. The same struct is the durable row and the cached JSON value.
type PaymentSession struct {
	SessionID         string                              `gorm:"column:session_id;type:varchar(64);primaryKey" json:"sessionId"`
	UserID            string                              `gorm:"column:user_id;type:varchar(64);not null;index" json:"userId"`
	Cart              datatypes.JSONType[[]*CartItem]     `gorm:"column:cart;type:jsonb;not null" json:"cart"`
	Sellers           datatypes.JSONType[[]*Seller]       `gorm:"column:sellers;type:jsonb;not null" json:"sellers"`
	TotalAmount       decimal.Decimal                     `gorm:"column:total_amount;type:numeric(20,2);not null" json:"totalAmount"`
	Currency          string                              `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	ShippingAddressID *string                             `gorm:"column:shipping_address_id;type:varchar(64)" json:"shippingAddressId,omitempty"`
	Coupon            *string                             `gorm:"column:coupon;type:varchar(64)" json:"coupon,omitempty"`
	Status            types.SessionStatus                 `gorm:"column:status;type:varchar(16);not null;index:idx_status_invoice_created,priority:1" json:"status"`
	// Gateway invoice fields are written once, after invoice creation.
	GatewayInvoiceID        *string    `gorm:"column:gateway_invoice_id;type:varchar(128);index" json:"gatewayInvoiceId,omitempty"`
	GatewayQRPayload        *string    `gorm:"column:gateway_qr_payload;type:text" json:"gatewayQrPayload,omitempty"`
	GatewayPaymentURL       *string    `gorm:"column:gateway_payment_url;type:varchar(512)" json:"gatewayPaymentUrl,omitempty"`
	GatewayInvoiceCreatedAt *time.Time `gorm:"column:gateway_invoice_created_at;index:idx_status_invoice_created,priority:2" json:"gatewayInvoiceCreatedAt,omitempty"`
	CacheTTLSeconds         int64      `gorm:"column:cache_ttl_seconds;not null" json:"cacheTtlSeconds"`
	// LastCheckedAt is bookkeeping for the pending sweeper, never cached.
	LastCheckedAt *time.Time `gorm:"column:last_checked_at;index" json:"-"`
	// ProcessedAt and OrderIDs are written by the terminal transition.
	ProcessedAt   *time.Time                    `gorm:"column:processed_at" json:"processedAt,omitempty"`
	OrderIDs      datatypes.JSONType[[]string] `gorm:"column:order_ids;type:jsonb;default:'[]'" json:"orderIds"`
	FailureReason *string                       `gorm:"column:failure_reason;type:text" json:"failureReason,omitempty"`
	CreatedAt     time.Time                     `json:"createdAt"`
	UpdatedAt     time.Time                     `json:"updatedAt"`
}

func (PaymentSession) TableName() string {
	return "payment_session"
}

func (s *PaymentSession) Items() []*CartItem {
	if s == nil {
		return nil
	}
	return s.Cart.Data()
}

func (s *PaymentSession) Orders() []string {
	if s == nil {
		return nil
	}
	return s.OrderIDs.Data()
}

func (s *PaymentSession) HasInvoice() bool {
	return s != nil && s.GatewayInvoiceID != nil && *s.GatewayInvoiceID != ""
}

func (s *PaymentSession) InvoiceID() string {
	if !s.HasInvoice() {
		return ""
	}
	return *s.GatewayInvoiceID
}

// CartTotal sums line-item subtotals.
func (s *PaymentSession) CartTotal() decimal.Decimal {
	return lo.Reduce(s.Items(), func(acc decimal.Decimal, it *CartItem, _ int) decimal.Decimal {
		return acc.Add(it.Subtotal())
	}, decimal.Zero)
}

// Partitions groups the cart by seller, preserving first-seen seller order
// and the cart order inside each partition.
func (s *PaymentSession) Partitions() ([]Seller, map[Seller][]*CartItem) {
	items := s.Items()
	groups := lo.GroupBy(items, func(it *CartItem) Seller { return it.PartitionKey() })
	order := lo.Uniq(lo.Map(items, func(it *CartItem, _ int) Seller { return it.PartitionKey() }))
	return order, groups
}

func (s *PaymentSession) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}
