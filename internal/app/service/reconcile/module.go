package reconcile

import (
	"github.com/fatflowers/checkout/internal/app/service/order"
	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"go.uber.org/fx"
)

// Module exposes the reconciler and the pending sweeper via Fx.
var Module = fx.Options(
	fx.Provide(func(s *session.Store) SessionStore { return s }),
	fx.Provide(func(s *session.Store) PendingLister { return s }),
	fx.Provide(func(c *gateway.Client) StatusChecker { return c }),
	fx.Provide(func(m *order.Materializer) Materializer { return m }),
	fx.Provide(NewReconciler),
	fx.Provide(NewSweeper),
	fx.Invoke(registerSweeper),
)
