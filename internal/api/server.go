package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"affimporter/internal/api/handlers"
	"affimporter/internal/api/middleware"
	"affimporter/internal/auth"
	"affimporter/internal/config"
	"affimporter/internal/database"
	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/services/media"
	"affimporter/internal/services/products"
	"affimporter/internal/services/settings"
	"affimporter/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	config    *config.Config
	logger    *logger.Logger
	db        *database.Database
	publisher events.Publisher
	router    *gin.Engine
	server    *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database, publisher events.Publisher) *Server {
	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	router.Use(middleware.Metrics())

	// Services
	postStore := store.New(db.DB)
	nonces := auth.NewNonceManager(cfg.NonceSecret, cfg.NonceTTL)
	settingsService := settings.NewService(postStore, cfg, logger)
	sideloader := media.NewSideloader(postStore, cfg, logger)
	lister := products.NewLister(postStore, products.NewMapper(postStore, cfg.SiteURL), cfg.DefaultPerPage)
	importer := products.NewImporter(postStore, sideloader, publisher, logger)

	// Initialize handlers
	productHandler := handlers.NewProductHandler(lister, importer, settingsService, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsService, logger)
	issueHandler := handlers.NewIssueHandler(postStore, logger)
	nonceHandler := handlers.NewNonceHandler(nonces, logger)
	healthHandler := handlers.NewHealthHandler(db)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Identify(postStore, logger))
	{
		v1.GET("/nonce", middleware.RequireUser(), nonceHandler.Create)

		// Everything else needs edit rights and a valid nonce
		rest := v1.Group("", middleware.RequireCapability(models.CapEditPosts), middleware.RequireNonce(nonces))

		// Products
		productRoutes := rest.Group("/products")
		{
			productRoutes.GET("", productHandler.List)
			productRoutes.POST("", productHandler.Import)
			productRoutes.POST("/import-file", productHandler.ImportFile)
		}

		// Settings
		settingsRoutes := rest.Group("/settings")
		{
			settingsRoutes.GET("/amazon", settingsHandler.GetAmazon)
			settingsRoutes.POST("/amazon", settingsHandler.SaveAmazon)
			settingsRoutes.POST("/amazon/verify", settingsHandler.VerifyAmazon)
			settingsRoutes.GET("/general", settingsHandler.GetGeneral)
			settingsRoutes.POST("/general", settingsHandler.SaveGeneral)
		}

		// Import issues
		issues := rest.Group("/import-issues")
		{
			issues.GET("", issueHandler.List)
			issues.POST("/:id/resolve", issueHandler.Resolve)
		}
	}

	return &Server{
		config:    cfg,
		logger:    logger,
		db:        db,
		publisher: publisher,
		router:    router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if perr := s.publisher.Close(); perr != nil {
		s.logger.Error("Failed to close event publisher: %v", perr)
	}
	return err
}

// Router exposes the configured engine, mainly for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
