package app

import (
	"time"

	"github.com/fatflowers/checkout/internal/app/api/server"
	notificationhandler "github.com/fatflowers/checkout/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/checkout/internal/app/service/notification_log"
	"github.com/fatflowers/checkout/internal/app/service/order"
	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/platform/cache"
	"github.com/fatflowers/checkout/internal/platform/db"
	"github.com/fatflowers/checkout/internal/platform/gateway"
	"github.com/fatflowers/checkout/pkg/config"
	"github.com/fatflowers/checkout/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	cache.Module,
	gateway.Module,
	session.Module,
	order.Module,
	reconcile.Module,
	notificationlog.Module,
	notificationhandler.Module,
	server.Module,
)
