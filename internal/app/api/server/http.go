package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paysync/docs"
	"github.com/fatflowers/paysync/internal/app/api/handlers"
	mw "github.com/fatflowers/paysync/internal/app/api/middleware"
	"github.com/fatflowers/paysync/internal/app/service/notification"
	nh "github.com/fatflowers/paysync/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/app/service/statistics"
	subsvc "github.com/fatflowers/paysync/internal/app/service/subscription"
	cfgpkg "github.com/fatflowers/paysync/pkg/config"
	metrics "github.com/fatflowers/paysync/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Engine       *gin.Engine
	Log          *zap.SugaredLogger
	Cfg          *cfgpkg.Config
	Manager      reconcile.Manager
	NotifHandler *nh.NotificationHandler
	Payments     *payment.Service
	Deliveries   *notificationlog.Service
	Sub          *subsvc.Service
	Inbox        *notification.Service
	Stats        *statistics.Service
}

func registerRoutes(p routeParams) {
	r, log, cfg := p.Engine, p.Log, p.Cfg

	// Prometheus metrics
	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			Subsystem: metrics.Subsystem,
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	w := handlers.NewResultWriter(cfg, log)

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Admin payment APIs
	admin := r.Group("/api/v1/admin")
	admin.Use(mw.RequestLoggerMiddleware(log), mw.AdminAuthMiddleware(cfg.Admin.JWTSecret), mw.AccessLogMiddleware())
	handlers.RegisterAdminPaymentRoutes(admin, p.Manager, p.Payments, p.Deliveries, p.Stats, w)
	if cfg.Admin.JWTSecret == "" {
		log.Warnw("admin routes are not protected, set admin.jwt_secret")
	}

	// Payment v2 APIs
	apiV2Payment := r.Group("/api/v2/payment")
	apiV2Payment.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterPaymentV2Routes(apiV2Payment, p.Manager, p.NotifHandler, w)

	apiV2 := r.Group("/api/v2")
	apiV2.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterUserRoutes(apiV2, p.Sub, p.Inbox)
}

func runServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorw("server error", "err", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
