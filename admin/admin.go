// Package admin exposes a small read-only HTTP surface alongside the chat
// server's TCP listener: a health check, a room census, and a Prometheus
// scrape endpoint. It is entirely optional and separate from the chat
// wire protocol — nothing here is part of spec.md's command grammar.
//
// Grounded on the rustyguts-bken reference server's APIServer, which runs
// an echo.Echo on its own port alongside the primary protocol listener.
package admin

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RoomLister is the subset of *server.Server the admin surface needs.
// Defined here rather than depending on the server package's concrete
// type so either side can evolve independently.
type RoomLister interface {
	ActiveSessions() int
	RoomSnapshot() map[string][]string
}

// Server serves the admin HTTP surface.
type Server struct {
	rooms RoomLister
	echo  *echo.Echo
}

// New constructs an admin Server and registers its routes. reg is the
// Prometheus gatherer whose collectors are exposed at GET /metrics; pass
// the same registry given to server.NewPromMetrics so the two agree.
func New(rooms RoomLister, reg prometheus.Gatherer) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[admin] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{rooms: rooms, echo: e}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/rooms", s.handleRooms)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return s
}

// Run starts the HTTP server on addr and blocks until ctx is cancelled,
// then shuts it down with a 5 second grace period.
func (s *Server) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[admin] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[admin] shutdown: %v", err)
	}
}

// HealthResponse is the payload for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.rooms.ActiveSessions(),
	})
}

// RoomsResponse is the payload for GET /rooms.
type RoomsResponse struct {
	Rooms map[string][]string `json:"rooms"`
}

func (s *Server) handleRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, RoomsResponse{Rooms: s.rooms.RoomSnapshot()})
}
