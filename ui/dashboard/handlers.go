package dashboard

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

// PredictionView is the JSON shape of a prediction.
type PredictionView struct {
	Piece        string  `json:"piece"`
	Rotation     int     `json:"rotation"`
	Column       int     `json:"col"`
	Row          int     `json:"row"`
	Score        float64 `json:"score"`
	LinesCleared int     `json:"lines_cleared"`
	Stuck        bool    `json:"stuck"`
	Text         string  `json:"text"`
}

func newPredictionView(p tetris.Prediction) PredictionView {
	return PredictionView{
		Piece:        p.Piece.String(),
		Rotation:     p.Rotation,
		Column:       p.Column,
		Row:          p.Row,
		Score:        p.Score,
		LinesCleared: p.LinesCleared,
		Stuck:        p.IsNoMove(),
		Text:         p.String(),
	}
}

func (s *Server) statsUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "stats recording is disabled"})
}

func (s *Server) internalError(c *fiber.Ctx, op string, err error) error {
	if s.logger != nil {
		s.logger.Error("dashboard."+op, "error", err)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// handleStats returns the global aggregates and the latest matches.
func (s *Server) handleStats(c *fiber.Ctx) error {
	if s.store == nil {
		return s.statsUnavailable(c)
	}
	gs, err := s.store.GlobalStats()
	if err != nil {
		return s.internalError(c, "stats", err)
	}
	recent, err := s.store.Matches(recentMatches)
	if err != nil {
		return s.internalError(c, "stats", err)
	}
	return c.JSON(fiber.Map{
		"global_stats":   gs,
		"recent_matches": recent,
		"timestamp":      time.Now().UTC(),
	})
}

func (s *Server) handleMatches(c *fiber.Ctx) error {
	if s.store == nil {
		return s.statsUnavailable(c)
	}
	limit := c.QueryInt("limit", stats.DefaultMatchLimit)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be positive"})
	}
	matches, err := s.store.Matches(limit)
	if err != nil {
		return s.internalError(c, "matches", err)
	}
	return c.JSON(fiber.Map{"matches": matches, "total": len(matches)})
}

func (s *Server) handleMatch(c *fiber.Ctx) error {
	if s.store == nil {
		return s.statsUnavailable(c)
	}
	exp, err := s.store.Export(c.Params("id"))
	if errors.Is(err, stats.ErrUnknownMatch) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not found"})
	}
	if err != nil {
		return s.internalError(c, "match", err)
	}
	return c.JSON(exp)
}

func (s *Server) handlePrediction(c *fiber.Ctx) error {
	if s.latest != nil {
		if p, ok := s.latest(); ok {
			return c.JSON(fiber.Map{"prediction": newPredictionView(p)})
		}
	}
	return c.JSON(fiber.Map{"prediction": nil})
}

// handlePredictionsWS pushes every new prediction to the client until it
// disconnects or the server shuts down.
func (s *Server) handlePredictionsWS(c *websocket.Conn) {
	n := s.clients.Add(1)
	defer s.clients.Add(-1)
	if s.logger != nil {
		s.logger.Debug("dashboard.ws_open", "remote", c.RemoteAddr().String(), "clients", n)
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	var (
		last tetris.Prediction
		sent bool
	)
	for {
		if s.latest != nil {
			if p, ok := s.latest(); ok && (!sent || p != last) {
				if err := c.WriteJSON(newPredictionView(p)); err != nil {
					return
				}
				last, sent = p, true
			}
		}
		select {
		case <-closed:
			return
		case <-s.done:
			return
		case <-ticker.C:
		}
	}
}
