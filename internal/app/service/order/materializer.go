package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/fatflowers/checkout/internal/models"
	"github.com/fatflowers/checkout/internal/platform/db"
	"github.com/fatflowers/checkout/pkg/logctx"
	"github.com/fatflowers/checkout/pkg/tool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAlreadyMaterialized means orders for the session were inserted before.
var ErrAlreadyMaterialized = errors.New("orders already materialized for session")

// Materializer persists one order per seller partition of a paid session.
type Materializer struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewMaterializer(gdb *gorm.DB, log *zap.SugaredLogger) *Materializer {
	return &Materializer{db: gdb, log: log}
}

// Materialize inserts the orders using the transaction carried by ctx when
// there is one, so the inserts commit or roll back with the session's
// terminal transition.
func (m *Materializer) Materialize(ctx context.Context, s *models.PaymentSession) ([]string, error) {
	orders, err := BuildOrders(s, tool.GenerateUUIDV7)
	if err != nil {
		return nil, err
	}
	if !db.InTx(ctx) {
		logctx.FromCtx(ctx, m.log).Warnw("materializing orders outside a transaction", "session_id", s.SessionID)
	}
	err = db.Conn(ctx, m.db).Create(&orders).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMaterialized, s.SessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert orders: %w", err)
	}
	ids := lo.Map(orders, func(o *models.Order, _ int) string { return o.ID })
	logctx.FromCtx(ctx, m.log).Infow("orders_materialized", "session_id", s.SessionID, "order_ids", ids)
	return ids, nil
}

// ListBySession returns the orders of a session with their items.
func (m *Materializer) ListBySession(ctx context.Context, sessionID string) ([]*models.Order, error) {
	var orders []*models.Order
	err := m.db.WithContext(ctx).Preload("Items").
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// BuildOrders partitions the cart by seller. Orders follow the first
// appearance of each seller in the cart and items keep their cart order.
func BuildOrders(s *models.PaymentSession, newID func() string) ([]*models.Order, error) {
	sellers, groups := s.Partitions()
	if len(sellers) == 0 {
		return nil, fmt.Errorf("session %s has an empty cart", s.SessionID)
	}
	orders := make([]*models.Order, 0, len(sellers))
	for _, seller := range sellers {
		o := &models.Order{
			ID:                newID(),
			SessionID:         s.SessionID,
			SellerID:          seller.SellerID,
			ShopID:            seller.ShopID,
			UserID:            s.UserID,
			Currency:          s.Currency,
			ShippingAddressID: s.ShippingAddressID,
			Coupon:            s.Coupon,
			GatewayInvoiceID:  s.InvoiceID(),
			Status:            models.OrderStatusCreated,
			Amount:            decimal.Zero,
		}
		for _, it := range groups[seller] {
			sub := it.Subtotal()
			o.Items = append(o.Items, &models.OrderItem{
				ID:        newID(),
				OrderID:   o.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				Subtotal:  sub,
				Options:   datatypes.NewJSONType(lo.Assign(map[string]string{}, it.Options)),
			})
			o.Amount = o.Amount.Add(sub)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Module exposes the order materializer via Fx.
var Module = fx.Options(
	fx.Provide(NewMaterializer),
)
