// Package controller runs retrievals inside an owner-bound scope and publishes
// their outcome to the state cell.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i474232898/weather-relay/internal/scope"
	"github.com/i474232898/weather-relay/internal/state"
	"github.com/i474232898/weather-relay/internal/weather"
)

// DefaultLocation is fetched when Fetch is called with an empty location.
const DefaultLocation = "default-location"

// Phase is whether the controller has a fetch in flight.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
)

func (p Phase) String() string {
	if p == PhaseFetching {
		return "fetching"
	}
	return "idle"
}

// Outcome is how the most recent completed fetch ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePublished
	OutcomeReset
)

func (o Outcome) String() string {
	switch o {
	case OutcomePublished:
		return "published"
	case OutcomeReset:
		return "reset"
	default:
		return "none"
	}
}

// Options configures a Controller.
type Options struct {
	// DefaultLocation replaces DefaultLocation when set.
	DefaultLocation string
	Logger          *slog.Logger
	// Reporter receives faults that reset the cell. Defaults to a SlogReporter.
	Reporter FaultReporter
	// OnPublish is called with every state the controller publishes, in
	// publish order, while the publish lock is held. It must not block or
	// call back into the controller.
	OnPublish func(state.State)
}

// Controller is the sole writer of a state.Cell. Overlapping fetches follow
// latest-wins: a new Fetch cancels the in-flight one, and a cancelled or
// superseded fetch never publishes.
type Controller struct {
	source   weather.Source
	cell     *state.Cell
	owner    *scope.Owner
	scope    *scope.Scope
	logger   *slog.Logger
	reporter FaultReporter
	fallback string
	publish  func(state.State)

	mu        sync.Mutex
	phase     Phase
	outcome   Outcome
	gen       uint64
	inflight  *scope.Task
	activated bool
}

// New creates a controller that runs its work under owner. The controller owns
// cell from here on; it is closed when the owner is torn down.
func New(source weather.Source, cell *state.Cell, owner *scope.Owner, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NewSlogReporter(logger)
	}
	fallback := opts.DefaultLocation
	if fallback == "" {
		fallback = DefaultLocation
	}

	c := &Controller{
		source:   source,
		cell:     cell,
		owner:    owner,
		scope:    scope.Bind(owner),
		logger:   logger,
		reporter: reporter,
		fallback: fallback,
		publish:  opts.OnPublish,
	}

	go func() {
		<-owner.Done()
		c.shutdown()
	}()

	return c
}

// Cell returns the read side of the controller's state cell.
func (c *Controller) Cell() Observable {
	return c.cell
}

// Phase returns the current phase. PhaseFetching is the "pending" signal;
// it is never published into the cell.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// LastOutcome reports how the most recent non-cancelled fetch ended.
func (c *Controller) LastOutcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// DefaultLocation is the location fetched when Fetch gets an empty one.
func (c *Controller) DefaultLocation() string {
	return c.fallback
}

// Fetch triggers one retrieval for location (or the default location when
// empty). Any fetch still in flight is cancelled. Fetch never returns an
// error: outcomes are observed through the cell.
func (c *Controller) Fetch(location string) {
	if location == "" {
		location = c.fallback
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inflight != nil {
		c.logger.Debug("superseding in-flight fetch", "task", c.inflight.Name(), "id", c.inflight.ID())
		c.inflight.Cancel()
		c.inflight = nil
	}

	c.gen++
	gen := c.gen

	task, err := c.scope.Go("fetch:"+location, func(ctx context.Context) {
		c.run(ctx, gen, location)
	})
	if err != nil {
		c.logger.Debug("fetch ignored; owner torn down", "location", location, "error", err)
		c.phase = PhaseIdle
		return
	}

	c.inflight = task
	c.phase = PhaseFetching
}

// OnActivate triggers a fetch for the first activation only; later calls
// are no-ops until OnTeardown.
func (c *Controller) OnActivate(location string) {
	c.mu.Lock()
	if c.activated {
		c.mu.Unlock()
		return
	}
	c.activated = true
	c.mu.Unlock()

	c.Fetch(location)
}

// OnTeardown tears down the owner, cancelling all outstanding work.
func (c *Controller) OnTeardown() {
	c.owner.Teardown()
}

// Wait blocks until every fetch started so far has finished.
func (c *Controller) Wait() {
	c.scope.Wait()
}

func (c *Controller) run(ctx context.Context, gen uint64, location string) {
	packet, err := c.retrieve(ctx, location)

	c.mu.Lock()
	defer c.mu.Unlock()

	// A newer fetch or the owner's teardown has taken over; stay silent.
	if gen != c.gen || ctx.Err() != nil || !c.scope.Alive() {
		if gen == c.gen {
			c.inflight = nil
			c.phase = PhaseIdle
		}
		return
	}
	c.inflight = nil
	c.phase = PhaseIdle

	switch {
	case err == nil:
		c.outcome = OutcomePublished
		c.emit(state.Ready(location, packet))
		c.logger.Info("published packet", "location", location, "packet", packet.String(), "all_absent", packet.Empty())
	case isCancellation(err):
		// Cancelled without our ctx ending, e.g. a source-side deadline.
	default:
		c.outcome = OutcomeReset
		c.emit(state.Empty())
		c.reporter.ReportFault(ctx, Fault{Location: location, Err: err})
	}
}

// emit publishes s and hands the stamped result to the publish hook. Callers
// hold c.mu; the controller is the cell's only writer, so Load returns s.
func (c *Controller) emit(s state.State) {
	if !c.cell.Publish(s) {
		return
	}
	if c.publish != nil {
		c.publish(c.cell.Load())
	}
}

// retrieve calls the source and turns a panic into an error, so a broken
// source resets the cell instead of crashing the process.
func (c *Controller) retrieve(ctx context.Context, location string) (packet weather.InfoPacket, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanic, r)
		}
	}()
	return c.source.Retrieve(ctx, location)
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.inflight = nil
	c.phase = PhaseIdle
	c.activated = false
	c.mu.Unlock()

	c.scope.Close()
	c.scope.Wait()
	c.cell.Close()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
