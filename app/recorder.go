package app

import (
	"github.com/soocke/tetris-overlay-go/domain/stats"
)

// matchRecorder writes events of one match into the stats store.
type matchRecorder struct {
	store   *stats.Store
	matchID string
}

func newMatchRecorder(store *stats.Store, agent string) (*matchRecorder, error) {
	id, err := store.StartMatch(agent)
	if err != nil {
		return nil, err
	}
	return &matchRecorder{store: store, matchID: id}, nil
}

func (r *matchRecorder) Record(ev stats.Event) error { return r.store.RecordEvent(r.matchID, ev) }

// Close ends the match.
func (r *matchRecorder) Close() error { return r.store.EndMatch(r.matchID) }

// MatchID returns the id of the match being recorded.
func (r *matchRecorder) MatchID() string { return r.matchID }
