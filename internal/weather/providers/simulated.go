package providers

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/i474232898/weather-relay/internal/weather"
)

// DefaultLatency is how long a simulated retrieval takes.
const DefaultLatency = 1500 * time.Millisecond

// SimulatedSource implements weather.Source by generating random packets after
// an artificial delay. Condition and humidity are independently unreliable.
type SimulatedSource struct {
	name    string
	latency time.Duration
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatedOption configures a SimulatedSource.
type SimulatedOption func(*SimulatedSource)

// WithLatency overrides the simulated latency. Zero means no delay.
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *SimulatedSource) {
		if d >= 0 {
			s.latency = d
		}
	}
}

// WithRand sets the random generator, mostly for reproducible tests.
func WithRand(rng *rand.Rand) SimulatedOption {
	return func(s *SimulatedSource) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithLogger sets the logger used for fetch traces.
func WithLogger(logger *slog.Logger) SimulatedOption {
	return func(s *SimulatedSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSimulatedSource(opts ...SimulatedOption) *SimulatedSource {
	s := &SimulatedSource{
		name:    "simulated",
		latency: DefaultLatency,
		logger:  slog.Default(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimulatedSource) Name() string {
	return s.name
}

// Retrieve waits for the configured latency and returns a generated packet.
// The only error it returns is ctx.Err() when ctx ends during the wait.
func (s *SimulatedSource) Retrieve(ctx context.Context, location string) (weather.InfoPacket, error) {
	s.logger.DebugContext(ctx, "fetching info", "source", s.name, "location", location)

	if err := sleep(ctx, s.latency); err != nil {
		return weather.InfoPacket{}, err
	}

	packet := s.generate()
	s.logger.DebugContext(ctx, "info fetched", "source", s.name, "location", location, "packet", packet.String())
	return packet, nil
}

func (s *SimulatedSource) generate() weather.InfoPacket {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp := weather.MinTemperature + s.rng.Float64()*(weather.MaxTemperature-weather.MinTemperature)

	// One slot past the known conditions stands for "could not classify".
	var cond *weather.Condition
	if i := s.rng.IntN(len(weather.Conditions) + 1); i < len(weather.Conditions) {
		cond = weather.Ptr(weather.Conditions[i])
	}

	var humidity *int
	if s.rng.IntN(2) == 1 {
		humidity = weather.Ptr(weather.MinHumidity + s.rng.IntN(weather.MaxHumidity-weather.MinHumidity+1))
	}

	return weather.InfoPacket{
		Temperature: &temp,
		Condition:   cond,
		Humidity:    humidity,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
