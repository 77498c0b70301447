// Package telemetry streams odometry to a browser or base-station tool over a
// websocket, alongside the command link.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/tigerbot-team/quickbot/pkg/odometry"
)

type Config struct {
	// Listen is the HTTP listen address, e.g. ":8080"; empty disables the
	// server.
	Listen   string        `yaml:"listen" env:"LISTEN"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

func DefaultConfig() Config {
	return Config{Interval: 100 * time.Millisecond}
}

func (c Config) Validate() error {
	if c.Listen != "" && c.Interval <= 0 {
		return errors.Errorf("telemetry interval must be positive, not %v", c.Interval)
	}
	return nil
}

type Source interface {
	Snapshot() odometry.Snapshot
}

type Server struct {
	cfg      Config
	src      Source
	upgrader websocket.Upgrader
}

func New(cfg Config, src Source) *Server {
	return &Server{
		cfg: cfg,
		src: src,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/odometry", s.streamOdometry)
	r.Get("/odometry/snapshot", s.snapshot)
	return r
}

// Loop serves until ctx is cancelled.  Failing to listen is logged, not
// fatal: the robot is still controllable over its link.
func (s *Server) Loop(ctx context.Context, done *sync.WaitGroup) {
	defer done.Done()

	srv := &http.Server{
		Addr:        s.cfg.Listen,
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.cfg.Listen).Msg("Telemetry server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Str("addr", s.cfg.Listen).Msg("Telemetry server failed")
		return
	}
	log.Info().Msg("Telemetry server stopped")
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.src.Snapshot())
}

func (s *Server) streamOdometry(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()
	log.Info().Str("addr", conn.RemoteAddr().String()).Msg("Telemetry client connected")

	// Drain (and ignore) anything the client sends so that close frames are
	// processed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(s.src.Snapshot()); err != nil {
			log.Info().Err(err).Str("addr", conn.RemoteAddr().String()).Msg("Telemetry client gone")
			return
		}
		select {
		case <-r.Context().Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "robot stopping"))
			return
		case <-clientGone:
			return
		case <-ticker.C:
		}
	}
}
