package controller

import (
	"context"
	"errors"
	"log/slog"

	"github.com/i474232898/weather-relay/internal/state"
	"github.com/i474232898/weather-relay/internal/weather"
)

// ErrSourcePanic wraps a panic recovered from a source.
var ErrSourcePanic = errors.New("source panicked")

// Observable is the read/subscribe capability handed to consumers.
type Observable interface {
	Load() state.State
	Version() uint64
	Subscribe(ctx context.Context) <-chan state.State
}

// Fault describes a failed retrieval that reset the cell.
type Fault struct {
	Location string
	Err      error
}

// Transport reports whether the fault came from reaching the source.
func (f Fault) Transport() bool {
	return errors.Is(f.Err, weather.ErrTransport)
}

// FaultReporter is the error sink for faults the controller absorbs.
type FaultReporter interface {
	ReportFault(ctx context.Context, fault Fault)
}

// SlogReporter logs faults at error level.
type SlogReporter struct {
	logger *slog.Logger
}

func NewSlogReporter(logger *slog.Logger) *SlogReporter {
	return &SlogReporter{logger: logger}
}

func (r *SlogReporter) ReportFault(ctx context.Context, fault Fault) {
	r.logger.ErrorContext(ctx, "fetch failed; state reset",
		"location", fault.Location,
		"transport", fault.Transport(),
		"error", fault.Err,
	)
}
