package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/vendorhub/internal/autosave"
	"github.com/smallbiznis/vendorhub/internal/cache"
	catalogdomain "github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/dedup"
	"github.com/smallbiznis/vendorhub/internal/notify"
	"github.com/smallbiznis/vendorhub/internal/observability"
	obsmiddleware "github.com/smallbiznis/vendorhub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vendorhub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vendorhub/internal/observability/tracing"
	"github.com/smallbiznis/vendorhub/internal/pricesheet"
	"github.com/smallbiznis/vendorhub/internal/pricingmode"
	"github.com/smallbiznis/vendorhub/internal/retry"
	"github.com/smallbiznis/vendorhub/internal/scrape"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// pageFetcher downloads vendor pages for pricing mode detection.
type pageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (pricingmode.ScrapedContent, error)
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	catalogSvc catalogdomain.CatalogService
	cache      cache.ServiceCache
	reads      *dedup.Group[*catalogdomain.Service]
	retryer    *retry.Retryer
	editors    *autosave.Registry
	feed       *notify.Feed
	classifier *pricingmode.Classifier
	fetcher    pageFetcher
	renderer   pricesheet.Renderer
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	CatalogSvc  catalogdomain.CatalogService
	Cache       cache.ServiceCache
	Retryer     *retry.Retryer
	Editors     *autosave.Registry
	Feed        *notify.Feed
	Classifier  *pricingmode.Classifier
	Scraper     *scrape.Scraper `optional:"true"`
	Renderer    pricesheet.Renderer
	CoreMetrics *obsmetrics.CoreMetrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        log.Named("http"),
		catalogSvc: p.CatalogSvc,
		cache:      p.Cache,
		reads:      dedup.NewGroup[*catalogdomain.Service](p.Cfg.Dedup.Window, dedup.WithMetrics(p.CoreMetrics)),
		retryer:    p.Retryer,
		editors:    p.Editors,
		feed:       p.Feed,
		classifier: p.Classifier,
		renderer:   p.Renderer,
	}
	if p.Scraper != nil {
		svc.fetcher = p.Scraper
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerEditorRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/services", s.ListServices)
	api.GET("/services/:id", s.GetService)
	api.GET("/services/:id/pricing", s.GetServicePricing)
	api.GET("/services/:id/price-sheet.pdf", s.GetServicePriceSheet)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.POST("/services", s.CreateService)
	admin.PATCH("/services/:id", s.PatchService)

	admin.GET("/services/:id/packages", s.ListPackages)
	admin.POST("/services/:id/packages", s.CreatePackage)
	admin.DELETE("/services/:id/packages/:package_id", s.DeletePackage)

	admin.POST("/services/:id/pricing-mode/detect", s.DetectPricingMode)
}

func (s *Server) registerEditorRoutes() {
	editor := s.engine.Group("/admin/editor/services/:id")

	editor.GET("", s.GetEditorState)
	editor.PUT("", s.ApplyEditorChanges)
	editor.POST("/flush", s.FlushEditor)
	editor.POST("/refresh", s.RefreshEditor)
	editor.GET("/notices", s.DrainEditorNotices)
	editor.DELETE("", s.CloseEditor)
}
