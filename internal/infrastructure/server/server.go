package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/coderone/termbridge/internal/api/http"
	"github.com/coderone/termbridge/internal/api/middleware"
	"github.com/coderone/termbridge/internal/api/ws"
	"github.com/coderone/termbridge/internal/infrastructure/config"
	"github.com/coderone/termbridge/internal/infrastructure/logging"
	"github.com/coderone/termbridge/internal/infrastructure/monitoring"
	"github.com/coderone/termbridge/internal/infrastructure/resilience"
	"github.com/coderone/termbridge/internal/terminal/manager"
	"github.com/coderone/termbridge/internal/terminal/pty"
	"github.com/coderone/termbridge/internal/terminal/reaper"
	"github.com/coderone/termbridge/internal/terminal/session"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	manager  *manager.Manager
	registry *session.Registry
	reaper   *reaper.Reaper
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
	cancel   context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing terminal service",
		zap.String("port", cfg.Server.Port),
		zap.Int("max_sessions", cfg.Terminal.MaxSessions),
		zap.Duration("idle_timeout", cfg.Terminal.IdleTimeout),
	)

	metrics := monitoring.NewMetrics()

	policy := resilience.Policy{
		MaxAttempts: cfg.Terminal.RetryAttempts,
		BaseDelay:   cfg.Terminal.RetryBaseDelay,
		MaxDelay:    2 * time.Second,
	}
	factory := pty.New(policy, logger, metrics)

	registry := session.NewRegistry()
	mgr := manager.New(factory, registry, cfg.Terminal, logger, metrics)

	idleReaper := reaper.New(registry, cfg.Terminal.SweepInterval, cfg.Terminal.IdleTimeout, logger, metrics)
	mgr.WithSweeper(idleReaper.Sweep)

	reaperCtx, cancel := context.WithCancel(context.Background())
	idleReaper.Start(reaperCtx)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := httpapi.NewHandlers(mgr)
	wsHandler := ws.NewHandler(mgr, logger, metrics)

	router.GET("/health", handlers.Health)

	// Polling transport
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.POST("/sessions/:id/write", handlers.WriteSession)
	router.GET("/sessions/:id/output", handlers.ReadOutput)
	router.POST("/sessions/:id/resize", handlers.ResizeSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)

	// Diagnostics
	router.GET("/diagnostics", handlers.Diagnostics)

	// Streaming transport
	router.GET("/terminal", wsHandler.HandleConnection)

	// Metrics
	router.GET("/metrics", metrics.Handler())

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		manager:  mgr,
		registry: registry,
		reaper:   idleReaper,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		cancel:   cancel,
	}, nil
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server: the reaper stops and every live
// session is killed and removed.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.cancel()

	for _, info := range s.registry.List() {
		if err := s.manager.Close(info.ID); err != nil {
			s.logger.Warn("failed to close session during shutdown",
				zap.String("session_id", info.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Sync()
	return nil
}
