// Package state holds the single observable cell that carries the latest
// published weather packet to its observer.
package state

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/i474232898/weather-relay/internal/weather"
)

// Kind distinguishes the published states.
type Kind int

const (
	KindEmpty Kind = iota
	KindReady
)

func (k Kind) String() string {
	switch k {
	case KindReady:
		return "ready"
	default:
		return "empty"
	}
}

// State is an immutable published value: either Empty or Ready(packet).
type State struct {
	kind        Kind
	packet      weather.InfoPacket
	location    string
	publishedAt time.Time
}

// Empty is the initial state and the state after a failed fetch.
func Empty() State {
	return State{kind: KindEmpty}
}

// Ready wraps a retrieved packet for publication.
func Ready(location string, packet weather.InfoPacket) State {
	return State{kind: KindReady, location: location, packet: packet}
}

func (s State) Kind() Kind {
	return s.kind
}

// Packet returns the packet and true when the state is Ready.
func (s State) Packet() (weather.InfoPacket, bool) {
	if s.kind != KindReady {
		return weather.InfoPacket{}, false
	}
	return s.packet, true
}

func (s State) Location() string {
	return s.location
}

// PublishedAt is set by the cell at publish time; zero for the initial state.
func (s State) PublishedAt() time.Time {
	return s.publishedAt
}

func (s State) MarshalJSON() ([]byte, error) {
	out := map[string]any{"state": s.kind.String()}
	if s.kind == KindReady {
		out["location"] = s.location
		out["packet"] = s.packet
	}
	if !s.publishedAt.IsZero() {
		out["publishedAt"] = s.publishedAt
	}
	return json.Marshal(out)
}

type subscriber struct {
	ch chan State
}

// Cell is a single-writer, multi-reader observable container.
//
// Subscribers receive the current state first, then every later publish.
// Delivery is conflating: a subscriber that falls behind sees the newest
// state, never a backlog. Publish never blocks on subscribers.
type Cell struct {
	mu      sync.RWMutex
	current State
	version uint64
	nextID  uint64
	subs    map[uint64]*subscriber
	closed  bool
	done    chan struct{}
	now     func() time.Time
}

// NewCell returns a cell holding Empty.
func NewCell() *Cell {
	return &Cell{
		current: Empty(),
		subs:    make(map[uint64]*subscriber),
		done:    make(chan struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Publish atomically replaces the current state and notifies subscribers.
// Publishing to a closed cell is a no-op and returns false.
func (c *Cell) Publish(s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	s.publishedAt = c.now()
	c.current = s
	c.version++

	for _, sub := range c.subs {
		offer(sub.ch, s)
	}
	return true
}

// Load returns the current state.
func (c *Cell) Load() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Version counts the publishes the cell has accepted.
func (c *Cell) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Subscribe returns a stream that yields the current state and then every
// update. The channel is closed when ctx ends or the cell is closed.
func (c *Cell) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	c.mu.Lock()
	if c.closed {
		ch <- c.current
		close(ch)
		c.mu.Unlock()
		return ch
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = &subscriber{ch: ch}
	ch <- c.current
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(id)
		case <-c.done:
		}
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (c *Cell) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Close ends every subscription and rejects later publishes. Safe to call
// more than once.
func (c *Cell) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
}

func (c *Cell) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sub, ok := c.subs[id]; ok {
		close(sub.ch)
		delete(c.subs, id)
	}
}

// offer replaces any undelivered value with s. Callers hold the cell lock,
// so the cell is the only sender and the send below cannot block.
func offer(ch chan State, s State) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}
