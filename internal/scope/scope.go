// Package scope ties goroutines to the lifetime of an explicit owner.
//
// An Owner is the lifetime token. Bind returns a Scope under the owner, and
// every Task started through the scope runs with a context derived from it.
// Tearing the owner down cancels all scopes and tasks beneath it:
//
//	owner := scope.NewOwner(ctx, "weather-screen")
//	sc := scope.Bind(owner)
//	sc.Go("fetch", func(ctx context.Context) {
//	    // check sc.Alive() or ctx.Err() before side effects
//	})
//	owner.Teardown()
//
// Cancellation is cooperative: a task observes ctx.Done() and must check
// liveness before producing side effects.
package scope

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrScopeClosed is returned when starting work on a scope that has ended.
var ErrScopeClosed = errors.New("scope closed")

// Owner is the token whose lifetime bounds every scope bound to it.
type Owner struct {
	id     string
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewOwner creates an owner whose lifetime also ends when parent ends.
func NewOwner(parent context.Context, name string) *Owner {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Owner{
		id:     uuid.NewString(),
		name:   name,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (o *Owner) ID() string { return o.id }
func (o *Owner) Name() string { return o.name }

// Done is closed once the owner has been torn down.
func (o *Owner) Done() <-chan struct{} {
	return o.ctx.Done()
}

// Alive reports whether the owner has not been torn down.
func (o *Owner) Alive() bool {
	return o.ctx.Err() == nil
}

// Teardown cancels all work bound to the owner. Calling it again is a no-op.
func (o *Owner) Teardown() {
	o.once.Do(o.cancel)
}

// Scope is a cancellable group of tasks bound to an owner or a parent scope.
type Scope struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Bind creates a scope that ends when the owner is torn down.
func Bind(owner *Owner) *Scope {
	return newScope(owner.ctx, owner.name)
}

func newScope(parent context.Context, name string) *Scope {
	ctx, cancel := context.WithCancel(parent)
	s := &Scope{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
	}
	// Stop accepting tasks as soon as the parent goes away, not only on Close.
	context.AfterFunc(ctx, s.markClosed)
	return s
}

func (s *Scope) Name() string { return s.name }

// Alive reports whether the scope and its owner are still live.
func (s *Scope) Alive() bool {
	return s.ctx.Err() == nil
}

// Child creates a nested scope. Ending s ends the child too.
func (s *Scope) Child(name string) *Scope {
	return newScope(s.ctx, s.name+"/"+name)
}

// Go starts fn in a new goroutine under the scope. fn receives the task's
// context, which is cancelled when the task, the scope or the owner ends.
func (s *Scope) Go(name string, fn func(ctx context.Context)) (*Task, error) {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.closed = true
		s.mu.Unlock()
		return nil, ErrScopeClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{
		id:     uuid.NewString(),
		name:   name,
		cancel: cancel,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		fn(ctx)
	}()

	return t, nil
}

// Close cancels every task in the scope and its children. Idempotent.
func (s *Scope) Close() {
	s.markClosed()
	s.cancel()
}

// Wait blocks until every task started on the scope has returned.
func (s *Scope) Wait() {
	s.wg.Wait()
}

func (s *Scope) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Task is a single unit of work started on a scope.
type Task struct {
	id     string
	name   string
	cancel context.CancelFunc
}

func (t *Task) ID() string { return t.id }
func (t *Task) Name() string { return t.name }

// Cancel asks the task to stop. Idempotent.
func (t *Task) Cancel() {
	t.cancel()
}
