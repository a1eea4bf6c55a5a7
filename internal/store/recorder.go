package store

import (
	"log/slog"

	"github.com/i474232898/weather-relay/internal/state"
	"github.com/i474232898/weather-relay/internal/weather"
)

// Recorder turns published states into history snapshots. It is driven
// synchronously by the publisher, so every Ready state is saved exactly once.
type Recorder struct {
	store  weather.Store
	logger *slog.Logger
}

func NewRecorder(st weather.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, logger: logger}
}

// Record saves s when it is Ready. Empty states are not history.
func (r *Recorder) Record(s state.State) {
	packet, ok := s.Packet()
	if !ok || s.PublishedAt().IsZero() {
		return
	}
	r.store.SaveSnapshot(weather.Snapshot{
		Location:  s.Location(),
		Timestamp: s.PublishedAt(),
		Packet:    packet,
	})
	r.logger.Debug("recorded snapshot", "location", s.Location())
}
