package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-relay/internal/weather"
)

// BreakerConfig controls when a guarded source stops calling its inner source.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
}

// DefaultBreakerConfig returns the settings used when none are configured.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		MaxRequests: 1,
	}
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoSource      = errors.New("source not configured")
	errUnexpectedRes = errors.New("unexpected result type from circuit breaker")
)

// GuardedSource wraps a weather.Source with a circuit breaker. Failures of the
// inner source surface as weather.ErrTransport; cancellations pass through
// untouched and never count against the breaker.
type GuardedSource struct {
	inner   weather.Source
	circuit *gobreaker.CircuitBreaker
}

// cancelled carries a cancellation through the breaker as a success so it
// does not trip it.
type cancelled struct {
	err error
}

func NewGuardedSource(inner weather.Source, cfg BreakerConfig, logger *slog.Logger) *GuardedSource {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}

	name := "guarded"
	if inner != nil {
		name = inner.Name()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "source", name, "from", from.String(), "to", to.String())
		},
	})

	return &GuardedSource{
		inner:   inner,
		circuit: cb,
	}
}

func (g *GuardedSource) Name() string {
	return g.circuit.Name()
}

// State exposes the breaker state, e.g. for health reporting.
func (g *GuardedSource) State() gobreaker.State {
	return g.circuit.State()
}

func (g *GuardedSource) Retrieve(ctx context.Context, location string) (weather.InfoPacket, error) {
	if g.inner == nil {
		return weather.InfoPacket{}, fmt.Errorf("%w: %w", weather.ErrTransport, errNoSource)
	}
	if err := ctx.Err(); err != nil {
		return weather.InfoPacket{}, err
	}

	result, err := g.circuit.Execute(func() (interface{}, error) {
		packet, err := g.inner.Retrieve(ctx, location)
		if err != nil {
			if isCancellation(err) {
				return cancelled{err: err}, nil
			}
			return nil, err
		}
		return packet, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return weather.InfoPacket{}, fmt.Errorf("%w: %w: %v", weather.ErrTransport, errCircuitOpen, err)
		}
		if errors.Is(err, weather.ErrTransport) {
			return weather.InfoPacket{}, err
		}
		return weather.InfoPacket{}, fmt.Errorf("%w: %s: %w", weather.ErrTransport, g.Name(), err)
	}

	switch r := result.(type) {
	case weather.InfoPacket:
		return r, nil
	case cancelled:
		return weather.InfoPacket{}, r.err
	default:
		return weather.InfoPacket{}, fmt.Errorf("%w: %w", weather.ErrTransport, errUnexpectedRes)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
