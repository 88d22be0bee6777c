// Package dashboard serves recorded match statistics and the live prediction
// feed over HTTP.
package dashboard

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

const (
	defaultPushInterval = 100 * time.Millisecond
	recentMatches       = 10
)

// StatsReader is the read side of the stats store.
type StatsReader interface {
	GlobalStats() (stats.GlobalStats, error)
	Matches(limit int) ([]stats.Match, error)
	Export(matchID string) (stats.MatchExport, error)
}

// LatestFunc returns the newest published prediction, if any.
type LatestFunc func() (tetris.Prediction, bool)

// Server is the dashboard HTTP server. A nil StatsReader disables the stats
// endpoints; the live feed keeps working.
type Server struct {
	app      *fiber.App
	addr     string
	store    StatsReader
	latest   LatestFunc
	logger   *slog.Logger
	interval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	clients  atomic.Int64
}

// NewServer builds the routes. interval is how often websocket clients are
// checked for a new prediction; zero selects the default.
func NewServer(addr string, store StatsReader, latest LatestFunc, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = defaultPushInterval
	}
	s := &Server{
		addr:     addr,
		store:    store,
		latest:   latest,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Tetris Overlay Dashboard",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/matches", s.handleMatches)
	api.Get("/matches/:id", s.handleMatch)
	api.Get("/prediction", s.handlePrediction)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/predictions", websocket.New(s.handlePredictionsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Clients reports the connected websocket clients.
func (s *Server) Clients() int64 { return s.clients.Load() }

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Info("dashboard.start", "addr", s.addr)
	}
	s.started.Store(true)
	return s.app.Listen(s.addr)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	if s.logger != nil {
		s.logger.Info("dashboard.start", "addr", ln.Addr().String())
	}
	s.started.Store(true)
	return s.app.Listener(ln)
}

// StartAsync runs Start in a goroutine and logs its failure.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil && s.logger != nil {
			s.logger.Error("dashboard.listen", "addr", s.addr, "error", err)
		}
	}()
}

// Shutdown disconnects websocket clients and stops the server.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.done) })
	if !s.started.Load() {
		return nil
	}
	return s.app.Shutdown()
}
