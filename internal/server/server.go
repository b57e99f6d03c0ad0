// Package server exposes the masking core over HTTP: per-tenant masking,
// template management, blacklist export, and a dashboard event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/whitemask/maskd/internal/blacklist"
	"github.com/whitemask/maskd/internal/cache"
	"github.com/whitemask/maskd/internal/config"
	"github.com/whitemask/maskd/internal/logger"
	"github.com/whitemask/maskd/internal/security"
	"github.com/whitemask/maskd/internal/tenant"
	"github.com/whitemask/maskd/internal/websocket"
)

const version = "1.0.0"

// Server is the masking service HTTP server.
type Server struct {
	config         *config.Config
	logger         *logger.Logger
	tenants        *tenant.Store
	recorder       *blacklist.Recorder
	blacklistStore *blacklist.Store
	cache          *cache.MaskCache
	limiter        *security.RateLimiter
	router         *mux.Router
	server         *http.Server
	wsHub          *websocket.Hub

	startTime     time.Time
	totalRequests int64
}

// New creates a new server instance. maskCache and blacklistStore may be
// nil to disable caching and blacklist persistence.
func New(cfg *config.Config, log *logger.Logger, tenants *tenant.Store, recorder *blacklist.Recorder, maskCache *cache.MaskCache, blacklistStore *blacklist.Store) (*Server, error) {
	if tenants == nil {
		return nil, fmt.Errorf("tenant store is required")
	}
	if recorder == nil {
		recorder = blacklist.NewRecorder()
	}

	wsHub := websocket.NewHub(&websocket.HubConfig{
		BroadcastMaskEvents:      cfg.WebSocket.Events.BroadcastMasks,
		BroadcastTemplateUpdates: cfg.WebSocket.Events.BroadcastTemplates,
		BroadcastSystem:          cfg.WebSocket.Events.BroadcastSystem,
		BroadcastConnections:     cfg.WebSocket.Events.BroadcastConnections,
		Username:                 cfg.WebSocket.Username,
		Password:                 cfg.WebSocket.Password,
	}, log.WithComponent("websocket").Logger)

	limiter := security.NewRateLimiter(&cfg.RateLimit)

	s := &Server{
		config:         cfg,
		logger:         log.WithComponent("server"),
		tenants:        tenants,
		recorder:       recorder,
		blacklistStore: blacklistStore,
		cache:          maskCache,
		limiter:        limiter,
		router:         mux.NewRouter(),
		wsHub:          wsHub,
		startTime:      time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/mask", s.handleMask).Methods("POST")
	api.HandleFunc("/templates", s.handleTemplates).Methods("POST")
	api.HandleFunc("/blacklist", s.handleBlacklist).Methods("GET")
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting masking server",
		zap.Int("port", s.config.Server.Port),
		zap.String("tenants_dir", s.config.Tenants.Dir),
		zap.Bool("cache_enabled", s.cache != nil),
	)

	go s.wsHub.Run()
	if s.config.RateLimit.Enabled {
		s.limiter.StartCleanupRoutine()
	}
	if s.config.WebSocket.Events.BroadcastSystem {
		go s.statusLoop()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping masking server")
	return s.server.Shutdown(ctx)
}

// Hub returns the WebSocket hub for broadcasting events.
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}

// statusLoop periodically broadcasts system status to dashboard clients.
func (s *Server) statusLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		ids, _ := s.tenants.IDs()
		stats := s.wsHub.GetStats()

		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeSystemStatus,
			Timestamp: time.Now(),
			Data: websocket.SystemStatusEvent{
				Status:           "healthy",
				Uptime:           time.Since(s.startTime).Round(time.Second).String(),
				TotalRequests:    atomic.LoadInt64(&s.totalRequests),
				TotalMaskedWords: int64(s.recorder.Len()),
				ActiveTenants:    len(ids),
				ConnectedClients: int(stats.ActiveConnections),
				MemoryUsage:      fmt.Sprintf("%d MB", mem.Alloc/1024/1024),
			},
		})
	}
}
