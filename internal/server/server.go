package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/seohub/internal/clock"
	"github.com/smallbiznis/seohub/internal/config"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/ratelimit"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger
	clock  clock.Clock

	webhookSvc webhookdomain.Service
	usageSvc   usagedomain.Service
	signer     *token.Signer
	limiter    *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	WebhookSvc webhookdomain.Service
	UsageSvc   usagedomain.Service
	Signer     *token.Signer
	Limiter    *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		clock:      p.Clock,
		webhookSvc: p.WebhookSvc,
		usageSvc:   p.UsageSvc,
		signer:     p.Signer,
		limiter:    p.Limiter,
	}

	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- SEOWorks webhook --------
	seoworks := api.Group("/seoworks", s.WebhookAuthRequired(), s.WebhookRateLimit())
	seoworks.POST("/webhook", s.HandleSeoworksWebhook)
	seoworks.GET("/webhook", s.SeoworksWebhookProbe)

	// -------- Usage --------
	api.GET("/dealerships/:id/usage", s.GetDealershipUsage)
	api.GET("/dealerships/:id/usage/archives", s.ListDealershipUsageArchives)

	// -------- Orphaned tasks --------
	api.GET("/orphaned-tasks", s.ListOrphanedTasks)

	// -------- Unsubscribe --------
	api.GET("/unsubscribe", s.Unsubscribe)
}

// run serves the shared engine; NewServer has already registered the API
// routes onto it by the time this invoke fires.
func run(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
