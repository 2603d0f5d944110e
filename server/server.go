package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"chathub/pkg/config"
	"chathub/pkg/health"
	"chathub/pkg/hub"
	"chathub/pkg/logger"
	"chathub/pkg/messaging"
	"chathub/pkg/middleware"
	"chathub/pkg/storage"
	"chathub/pkg/transport"
)

// Server wires the hub, transport, dispatcher and presence store behind an
// HTTP surface: the websocket connect endpoint plus the health and stats
// API.
type Server struct {
	cfg        *config.ServerConfig
	registry   *hub.Registry
	transport  *transport.WebSocket
	hub        *hub.Hub
	dispatcher messaging.Dispatcher
	store      storage.Store
	monitor    *health.Monitor
	log        *logger.Logger

	httpServer *http.Server
	serverMu   sync.Mutex
	started    bool
	startedMu  sync.Mutex
}

// NewServer creates a server from configuration. A failing presence store
// is logged and skipped; the hub runs without audit history in that case.
func NewServer(cfg *config.ServerConfig) (*Server, error) {
	log := logger.Get()

	registry := hub.NewRegistry()
	ws := transport.NewWebSocket(cfg.Hub.SendBufferSize,
		time.Duration(cfg.Hub.WriteTimeoutSec)*time.Second, log)

	h := hub.New(registry, ws, log)
	h.SetRosterDelimiter(cfg.Hub.RosterDelimiter)

	monitor := health.NewMonitor()

	var store storage.Store
	if cfg.Database.Type != "none" {
		var err error
		store, err = storage.Open(cfg.Database.Type, cfg.GetDatabasePath(), cfg.Database.DSN)
		if err != nil {
			log.ErrorWithErr("failed to open presence store", err, "type", cfg.Database.Type)
			log.WarnWith("continuing without presence history")
			monitor.SetComponentStatus("storage", health.StatusUnhealthy, err.Error())
			store = nil
		} else {
			h.SetRecorder(store)
			monitor.SetComponentStatus("storage", health.StatusHealthy, cfg.Database.Type)
		}
	} else {
		monitor.SetComponentStatus("storage", health.StatusDegraded, "disabled by configuration")
	}

	dispatcher := messaging.NewDispatcher()
	if err := messaging.RegisterAll(dispatcher, h); err != nil {
		return nil, err
	}
	monitor.SetComponentStatus("dispatcher", health.StatusHealthy, "all action handlers registered")

	return &Server{
		cfg:        cfg,
		registry:   registry,
		transport:  ws,
		hub:        h,
		dispatcher: dispatcher,
		store:      store,
		monitor:    monitor,
		log:        log,
	}, nil
}

// Hub exposes the routing engine, mainly for tests.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// buildRouter assembles the HTTP surface.
func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.CORS())

	// WebSocket connect endpoint; the path segment is the tenant token.
	router.GET("/hub/:tenant", s.handleHub)

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/stats", s.handleStats)
	router.GET("/api/tenants", s.handleTenants)
	router.GET("/api/tenant/:id/sessions", s.handleTenantSessions)
	router.GET("/api/tenant/:id/history", s.handleTenantHistory)

	return router
}

// Start builds the router and serves until shutdown or listener failure.
func (s *Server) Start() error {
	s.startedMu.Lock()
	if s.started {
		s.startedMu.Unlock()
		return nil
	}
	s.started = true
	s.startedMu.Unlock()

	router := s.buildRouter()

	s.log.InfoWith("server starting", "address", s.cfg.Address, "tls", s.cfg.TLS.Enabled)

	if s.cfg.TLS.Enabled && s.cfg.TLS.CertFile != "" && s.cfg.TLS.KeyFile != "" {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		server := &http.Server{
			Addr:      s.cfg.Address,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		s.serverMu.Lock()
		s.httpServer = server
		s.serverMu.Unlock()

		return server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	}

	server := &http.Server{
		Addr:    s.cfg.Address,
		Handler: router,
	}

	s.serverMu.Lock()
	s.httpServer = server
	s.serverMu.Unlock()

	return server.ListenAndServe()
}

// Shutdown stops accepting connections, closes the HTTP server and the
// presence store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.startedMu.Lock()
	s.started = false
	s.startedMu.Unlock()

	s.serverMu.Lock()
	httpServer := s.httpServer
	s.serverMu.Unlock()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.log.ErrorWithErr("http shutdown failed, forcing close", err)
			httpServer.Close()
		}
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.ErrorWithErr("presence store close failed", err)
		}
	}

	s.log.InfoWith("shutdown complete")
	return nil
}
