// Package server wires the HTTP surface of the notification fan-out service:
// the internal ingest endpoint the web app calls after persisting a
// notification, and the WebSocket endpoint browsers hold open for pushes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/divyanshmehta355/aurahub-notify/internal/config"
	"github.com/divyanshmehta355/aurahub-notify/internal/hub"
	"github.com/divyanshmehta355/aurahub-notify/internal/middleware"
)

// Pusher hands a validated notification payload off for delivery. The local
// hub implements it directly; the Redis bridge implements it for
// multi-instance deployments.
type Pusher interface {
	Push(ctx context.Context, recipientID string, payload []byte) (delivered int, err error)
}

// Server is the HTTP/WebSocket front of the fan-out service.
type Server struct {
	cfg    *config.Config
	hub    *hub.Hub
	pusher Pusher
	router *gin.Engine
	root   http.Handler
}

// New builds the server and its routes.
func New(cfg *config.Config, h *hub.Hub, pusher Pusher) *Server {
	s := &Server{
		cfg:    cfg,
		hub:    h,
		pusher: pusher,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())

	corsConfig := cors.DefaultConfig()
	if allowAll(cfg.AllowedOrigins) {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/notify", middleware.NewRateLimiter(middleware.IngestRateLimitConfig()), s.handleNotify)
	}

	r.GET("/ws/stats", s.handleStats)

	s.router = r

	// The /ws upgrade hijacks the connection after writing the 101 status,
	// which gin's response writer does not allow. It lives on a plain mux in
	// front of the router; everything else goes through gin.
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.Handle("/", r)
	s.root = mux

	return s
}

// Router exposes the underlying handler for http.Server and tests.
func (s *Server) Router() http.Handler {
	return s.root
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "aurahub-notify",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Snapshot())
}

func allowAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
