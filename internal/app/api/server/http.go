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
	"gorm.io/gorm"

	"github.com/fatflowers/truckstamp/docs"
	"github.com/fatflowers/truckstamp/internal/app/api/handlers"
	mw "github.com/fatflowers/truckstamp/internal/app/api/middleware"
	"github.com/fatflowers/truckstamp/internal/app/service/checkin"
	"github.com/fatflowers/truckstamp/internal/app/service/loyalty"
	"github.com/fatflowers/truckstamp/internal/app/service/statistics"
	subsvc "github.com/fatflowers/truckstamp/internal/app/service/subscription"
	vendorsvc "github.com/fatflowers/truckstamp/internal/app/service/vendor"
	"github.com/fatflowers/truckstamp/internal/app/service/webhook"
	cfgpkg "github.com/fatflowers/truckstamp/pkg/config"
	metrics "github.com/fatflowers/truckstamp/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Engine       *gin.Engine
	Log          *zap.SugaredLogger
	Config       *cfgpkg.Config
	DB           *gorm.DB
	Verifier     *mw.TokenVerifier
	CheckIns     *checkin.Service
	Loyalty      *loyalty.Service
	Subscription *subsvc.Service
	Vendors      *vendorsvc.Service
	Statistics   *statistics.Service
	Webhooks     *webhook.Processor
}

func newPrometheus(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config) *metrics.Prometheus {
	p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
		MetricsList: metrics.BusinessMetrics(),
		ReqCntURLLabelMappingFn: func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		},
		Logger: log,
	})
	p.SetListenAddress(cfg.MetricsAddr)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			p.Start()
			return nil
		},
		OnStop: p.Stop,
	})
	return p
}

func registerRoutes(p routeParams, prom *metrics.Prometheus) {
	r, log := p.Engine, p.Log
	prom.Use(r)

	logging := []gin.HandlerFunc{mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log)}
	auth := mw.RequireAuth(p.Verifier, log)

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(logging...)
	handlers.RegisterHealthRoutes(pub, p.DB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(logging...)

	handlers.RegisterCheckInRoutes(apiV1, p.CheckIns, auth, mw.OptionalAuth(p.Verifier, log), log)
	handlers.RegisterLoyaltyRoutes(apiV1.Group("/loyalty", auth), p.Loyalty, log)
	handlers.RegisterSubscriptionRoutes(apiV1.Group("", auth), p.Subscription, log)
	handlers.RegisterStatisticsRoutes(apiV1.Group("", auth), p.Vendors, p.Statistics, log)

	// signed by the provider, no bearer auth
	handlers.RegisterWebhookRoutes(apiV1, p.Webhooks, log)
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
			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine, newPrometheus, mw.NewTokenVerifier),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
