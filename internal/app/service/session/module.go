package session

import (
	"github.com/fatflowers/checkout/internal/platform/cache"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"go.uber.org/fx"
)

// Module exposes the session store and service via Fx.
var Module = fx.Options(
	fx.Provide(NewRepository),
	fx.Provide(func(r *Repository) Durable { return r }),
	fx.Provide(func(c *cache.RedisCache) Cache { return c }),
	fx.Provide(func(c *gateway.Client) InvoiceGateway { return c }),
	fx.Provide(NewStore),
	fx.Provide(NewService),
)
