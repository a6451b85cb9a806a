package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const OrderStatusCreated OrderStatus = "created"

// Order is one seller's share of a paid payment session.
type Order struct {
	ID                string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID         string          `gorm:"column:session_id;type:varchar(64);not null;uniqueIndex:unique_session_id_seller,priority:1" json:"session_id"`
	SellerID          string          `gorm:"column:seller_id;type:varchar(64);not null;uniqueIndex:unique_session_id_seller,priority:2" json:"seller_id"`
	ShopID            string          `gorm:"column:shop_id;type:varchar(64);not null;uniqueIndex:unique_session_id_seller,priority:3" json:"shop_id"`
	UserID            string          `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(20,2);not null" json:"amount"`
	Currency          string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	ShippingAddressID *string         `gorm:"column:shipping_address_id;type:varchar(64)" json:"shipping_address_id"`
	Coupon            *string         `gorm:"column:coupon;type:varchar(64)" json:"coupon"`
	GatewayInvoiceID  string          `gorm:"column:gateway_invoice_id;type:varchar(128)" json:"gateway_invoice_id"`
	Status            OrderStatus     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Items             []*OrderItem    `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        string                               `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID   string                               `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID string                               `gorm:"column:product_id;type:varchar(64);not null" json:"product_id"`
	Quantity  int64                                `gorm:"column:quantity;not null" json:"quantity"`
	UnitPrice decimal.Decimal                      `gorm:"column:unit_price;type:numeric(20,2);not null" json:"unit_price"`
	Subtotal  decimal.Decimal                      `gorm:"column:subtotal;type:numeric(20,2);not null" json:"subtotal"`
	Options   datatypes.JSONType[map[string]string] `gorm:"column:options;type:jsonb;default:'{}'" json:"options"`
	CreatedAt time.Time                            `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_item"
}
