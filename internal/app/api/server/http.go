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

	"github.com/fatflowers/deliveryhub/docs"
	"github.com/fatflowers/deliveryhub/internal/app/api/handlers"
	mw "github.com/fatflowers/deliveryhub/internal/app/api/middleware"
	"github.com/fatflowers/deliveryhub/internal/app/service/customer"
	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/internal/app/service/duejob"
	"github.com/fatflowers/deliveryhub/internal/app/service/recurrency"
	"github.com/fatflowers/deliveryhub/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg != nil && cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware(), mw.ActorMiddleware())
	return r
}

type routeParams struct {
	fx.In

	Engine     *gin.Engine
	Log        *zap.SugaredLogger
	Config     *cfgpkg.Config
	DB         *gorm.DB
	Manager    recurrency.Manager
	Customers  *customer.Service
	Deliveries *delivery.Service
	Stats      *statistics.Service
	Job        *duejob.Job
}

func registerRoutes(p routeParams) error {
	r, log, cfg := p.Engine, p.Log, p.Config
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		prom.SetListenAddress(cfg.MetricsAddr)
		prom.Use(r)
		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, sqlDB)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterRecurrencyRoutes(apiV1.Group("/recurrencies"), p.Manager, p.Job)
	handlers.RegisterCustomerRoutes(apiV1, p.Customers, p.Deliveries)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), p.Stats, p.Job)
	return nil
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
