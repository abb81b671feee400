package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"swing-trigger/internal/control"
	"swing-trigger/internal/engine"
	"swing-trigger/internal/events"
	"swing-trigger/internal/monitor"
	"swing-trigger/internal/swing"
)

// Server wires the operator endpoints around the run's signals.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Signals   *control.Signals
	Engine    engine.Service
	Metrics   *monitor.Metrics
	JWTSecret string

	log     zerolog.Logger
	limiter *ipLimiter

	mu   sync.Mutex
	http *http.Server
}

func NewServer(bus *events.Bus, signals *control.Signals, eng engine.Service, metrics *monitor.Metrics, jwtSecret string, log zerolog.Logger) *Server {
	r := gin.New()
	s := &Server{
		Router:    r,
		Bus:       bus,
		Signals:   signals,
		Engine:    eng,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		log:       log,
		limiter:   newIPLimiter(20, 50),
	}

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                      // Panic recovery (first)
	r.Use(RequestIDMiddleware())               // Request ID tracking
	r.Use(RequestLogger(log, metrics))         // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(s.limiter, log)) // Rate limiting
	r.Use(CORSMiddleware())                    // CORS (last before routes)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", WSAuthMiddleware(s.JWTSecret), s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.status)
		api.GET("/metrics", s.metrics)

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/override", s.override)
			protected.POST("/kill", s.kill)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	if s.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "NOT_READY",
			"error": "no run in progress",
		})
		return
	}
	c.JSON(http.StatusOK, s.Engine.Status())
}

func (s *Server) metrics(c *gin.Context) {
	if s.Metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "METRICS_DISABLED",
			"error": "metrics not enabled",
		})
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// override forces a direction for every key. CANCEL aborts the run, which is
// the same as a kill.
func (s *Server) override(c *gin.Context) {
	var req struct {
		Direction string `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}
	if strings.EqualFold(strings.TrimSpace(req.Direction), "CANCEL") {
		s.doKill(c)
		return
	}

	dir, err := swing.ParseDirection(req.Direction)
	if err == nil {
		err = s.Signals.Override.Set(dir)
	}
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, swing.ErrInvalidDirection) {
			code = http.StatusBadRequest
		}
		c.JSON(code, gin.H{
			"code":  "INVALID_DIRECTION",
			"error": err.Error(),
		})
		return
	}

	s.log.Warn().Str("direction", dir.String()).Str("operator", CurrentOperator(c)).Msg("override set")
	if s.Bus != nil {
		s.Bus.Publish(events.EventOverrideSet, gin.H{"direction": dir.String(), "operator": CurrentOperator(c)})
	}
	c.JSON(http.StatusOK, gin.H{"override": dir.String()})
}

func (s *Server) kill(c *gin.Context) {
	s.doKill(c)
}

func (s *Server) doKill(c *gin.Context) {
	tripped := s.Signals.Kill.Kill()
	if tripped {
		s.log.Warn().Str("operator", CurrentOperator(c)).Msg("kill requested")
		if s.Bus != nil {
			s.Bus.Publish(events.EventKill, gin.H{"operator": CurrentOperator(c)})
		}
	}
	c.JSON(http.StatusOK, gin.H{"killed": true, "already": !tripped})
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
