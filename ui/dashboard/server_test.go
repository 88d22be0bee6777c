package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soocke/tetris-overlay-go/domain/stats"
	"github.com/soocke/tetris-overlay-go/domain/tetris"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func openTestStore(t *testing.T) *stats.Store {
	t.Helper()
	s, err := stats.Open(filepath.Join(t.TempDir(), "stats.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedStore records two matches; the returned id is the first one.
func seedStore(t *testing.T, s *stats.Store) string {
	t.Helper()
	first, err := s.StartMatch("heuristic")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, piece := range []string{"T", "T", "I"} {
		if err := s.RecordEvent(first, stats.Event{At: time.Now(), Piece: piece, LinesCleared: 1}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.EndMatch(first); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := s.StartMatch("learned"); err != nil {
		t.Fatalf("start: %v", err)
	}
	return first
}

// latestBox is a concurrency-safe LatestFunc source.
type latestBox struct {
	mu   sync.Mutex
	pred tetris.Prediction
	ok   bool
}

func (b *latestBox) set(p tetris.Prediction) {
	b.mu.Lock()
	b.pred, b.ok = p, true
	b.mu.Unlock()
}

func (b *latestBox) get() (tetris.Prediction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pred, b.ok
}

func getJSON(t *testing.T, srv *Server, path string, wantStatus int, out any) {
	t.Helper()
	resp, err := srv.App().Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d, want %d: %s", path, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
}

func TestAPIStats(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)
	srv := NewServer("", store, nil, 0, discardLogger)

	var body struct {
		GlobalStats   stats.GlobalStats `json:"global_stats"`
		RecentMatches []stats.Match     `json:"recent_matches"`
		Timestamp     time.Time         `json:"timestamp"`
	}
	getJSON(t, srv, "/api/stats", http.StatusOK, &body)
	if body.GlobalStats.TotalMatches != 2 || body.GlobalStats.TotalEvents != 3 {
		t.Fatalf("global stats %+v", body.GlobalStats)
	}
	if body.GlobalStats.MostCommonPiece != "T" || body.GlobalStats.PieceFrequency["I"] != 1 {
		t.Fatalf("piece frequency %+v", body.GlobalStats)
	}
	if len(body.RecentMatches) != 2 || body.RecentMatches[0].Agent != "learned" {
		t.Fatalf("recent matches %+v", body.RecentMatches)
	}
	if body.Timestamp.IsZero() {
		t.Fatalf("missing timestamp")
	}
}

func TestAPIMatches(t *testing.T) {
	store := openTestStore(t)
	seedStore(t, store)
	srv := NewServer("", store, nil, 0, discardLogger)

	var body struct {
		Matches []stats.Match `json:"matches"`
		Total   int           `json:"total"`
	}
	getJSON(t, srv, "/api/matches?limit=1", http.StatusOK, &body)
	if body.Total != 1 || len(body.Matches) != 1 || body.Matches[0].Agent != "learned" {
		t.Fatalf("limited matches %+v", body)
	}
	getJSON(t, srv, "/api/matches", http.StatusOK, &body)
	if body.Total != 2 {
		t.Fatalf("expected 2 matches, got %d", body.Total)
	}
	getJSON(t, srv, "/api/matches?limit=0", http.StatusBadRequest, nil)
}

func TestAPIMatchByID(t *testing.T) {
	store := openTestStore(t)
	id := seedStore(t, store)
	srv := NewServer("", store, nil, 0, discardLogger)

	var exp stats.MatchExport
	getJSON(t, srv, "/api/matches/"+id, http.StatusOK, &exp)
	if exp.Match == nil || exp.Match.ID != id || exp.Match.EndedAt == nil {
		t.Fatalf("match %+v", exp.Match)
	}
	if len(exp.Events) != 3 || exp.Events[2].Piece != "I" {
		t.Fatalf("events %+v", exp.Events)
	}
	getJSON(t, srv, "/api/matches/nope", http.StatusNotFound, nil)
}

func TestAPIWithoutStore(t *testing.T) {
	srv := NewServer("", nil, nil, 0, discardLogger)
	getJSON(t, srv, "/api/stats", http.StatusServiceUnavailable, nil)
	getJSON(t, srv, "/api/matches", http.StatusServiceUnavailable, nil)

	var body struct {
		Prediction *PredictionView `json:"prediction"`
	}
	getJSON(t, srv, "/api/prediction", http.StatusOK, &body)
	if body.Prediction != nil {
		t.Fatalf("expected no prediction, got %+v", body.Prediction)
	}
}

func TestAPIPrediction(t *testing.T) {
	box := &latestBox{}
	box.set(tetris.NoMove(tetris.PieceS))
	srv := NewServer("", nil, box.get, 0, discardLogger)

	var body struct {
		Prediction *PredictionView `json:"prediction"`
	}
	getJSON(t, srv, "/api/prediction", http.StatusOK, &body)
	if body.Prediction == nil || body.Prediction.Piece != "S" || !body.Prediction.Stuck {
		t.Fatalf("prediction %+v", body.Prediction)
	}
}

func TestWSRequiresUpgrade(t *testing.T) {
	srv := NewServer("", nil, nil, 0, discardLogger)
	getJSON(t, srv, "/ws/predictions", http.StatusUpgradeRequired, nil)
}

func TestWSPushesNewPredictions(t *testing.T) {
	box := &latestBox{}
	first := tetris.Prediction{Piece: tetris.PieceT, Rotation: 2, Column: 3, Row: 17, Score: 0.5}
	box.set(first)
	srv := NewServer("", nil, box.get, 10*time.Millisecond, discardLogger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Shutdown() })

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/predictions", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got PredictionView
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if got.Piece != "T" || got.Rotation != 2 || got.Column != 3 || got.Stuck {
		t.Fatalf("first push %+v", got)
	}

	box.set(tetris.Prediction{Piece: tetris.PieceI, Rotation: 1, Column: 9, Row: 16, Score: 2, LinesCleared: 4})
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if got.Piece != "I" || got.LinesCleared != 4 {
		t.Fatalf("second push %+v", got)
	}
}
