// Package api exposes the read-only status surface over the program
// registry and the chain backend.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/arblift/stylusctl/internal/chain"
	"github.com/arblift/stylusctl/internal/lifecycle"
	"github.com/arblift/stylusctl/internal/observability"
)

// Server serves registry state and chain liveness over HTTP.
type Server struct {
	name     string
	addr     string
	appeared time.Time
	registry *lifecycle.Registry
	backend  chain.Backend
	router   *gin.Engine
}

// Options configures the status API surface.
type Options struct {
	Name        string
	Addr        string
	CorsOrigins []string
}

// NewServer builds the gin router with logging, metrics, and CORS wired.
func NewServer(opts Options, registry *lifecycle.Registry, backend chain.Backend) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(log.Logger))
	router.Use(observability.RequestMetricsMiddleware(opts.Name))
	if len(opts.CorsOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: opts.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	observability.RegisterMetrics()

	s := &Server{
		name:     opts.Name,
		addr:     opts.Addr,
		appeared: time.Now(),
		registry: registry,
		backend:  backend,
		router:   router,
	}
	s.registerRoutes()
	return s
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run blocks serving the status API.
func (s *Server) Run() error {
	log.Info().Str("addr", s.addr).Str("node", s.name).Msg("status api listening")
	return s.router.Run(s.addr)
}
