package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatflowers/checkout/docs"
	"github.com/fatflowers/checkout/internal/app/api/handlers"
	nh "github.com/fatflowers/checkout/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/checkout/internal/app/service/notification_log"
	"github.com/fatflowers/checkout/internal/app/service/order"
	"github.com/fatflowers/checkout/internal/app/service/reconcile"
	"github.com/fatflowers/checkout/internal/app/service/session"
	"github.com/fatflowers/checkout/internal/platform/cache"
	cfgpkg "github.com/fatflowers/checkout/pkg/config"
	"gorm.io/gorm"

	mw "github.com/fatflowers/checkout/internal/app/api/middleware"

	metrics "github.com/fatflowers/checkout/pkg/metrics"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func dbPinger(gdb *gorm.DB) handlers.PingFunc {
	return func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, gdb *gorm.DB, rc *cache.RedisCache,
	sessions *session.Service, repo *session.Repository, webhooks *nh.NotificationHandler,
	orders *order.Materializer, notifs *notificationlog.Service, rec *reconcile.Reconciler) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			MetricsList: metrics.BusinessMetrics,
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}
	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, map[string]handlers.Pinger{
		"postgres": dbPinger(gdb),
		"redis":    rc,
	})
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	handlers.RegisterSessionRoutes(apiV1.Group("/sessions"), sessions, log)
	handlers.RegisterPaymentWebhookRoutes(apiV1.Group("/payment"), webhooks)
	handlers.RegisterUserSessionRoutes(apiV1, repo)

	// Admin payment session APIs
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), repo, sessions, orders, notifs, rec)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
