package notification_handler

import (
	"github.com/fatflowers/checkout/internal/app/service/notification_log"
	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"go.uber.org/fx"
)

// Module exposes the webhook notification handler via Fx.
var Module = fx.Options(
	fx.Provide(func(s *notification_log.Service) LogSaver { return s }),
	fx.Provide(func(r *reconcile.Reconciler) Reconciler { return r }),
	fx.Provide(func(c *gateway.Client) *gateway.CallbackSigner { return c.Signer() }),
	fx.Provide(NewNotificationHandler),
)
