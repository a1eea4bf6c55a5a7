package scope

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timed out")
	}
}

func TestTeardownCancelsTasks(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	s := Bind(owner)

	started := make(chan struct{})
	var sideEffects atomic.Int32

	finished := make(chan struct{})

	_, err := s.Go("work", func(ctx context.Context) {
		defer close(finished)
		close(started)
		<-ctx.Done()
		if s.Alive() {
			sideEffects.Add(1)
		}
	})
	if err != nil {
		t.Fatalf("Go: %v", err)
	}

	waitClosed(t, started)
	owner.Teardown()
	waitClosed(t, finished)

	if sideEffects.Load() != 0 {
		t.Fatalf("task produced side effects after teardown")
	}
	if owner.Alive() || s.Alive() {
		t.Fatalf("owner and scope should be dead after teardown")
	}
}

func TestTeardownIsIdempotent(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	s := Bind(owner)

	owner.Teardown()
	owner.Teardown()
	s.Close()
	s.Close()

	waitClosed(t, owner.Done())
}

func TestGoAfterTeardown(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	s := Bind(owner)
	owner.Teardown()

	ran := false
	_, err := s.Go("late", func(ctx context.Context) { ran = true })
	if !errors.Is(err, ErrScopeClosed) {
		t.Fatalf("expected ErrScopeClosed, got %v", err)
	}
	s.Wait()
	if ran {
		t.Fatalf("task should not run on a closed scope")
	}
}

func TestTeardownIsTransitive(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	root := Bind(owner)
	child := root.Child("panel")
	grandchild := child.Child("widget")

	finished := make(chan struct{})
	if _, err := grandchild.Go("deep", func(ctx context.Context) {
		<-ctx.Done()
		close(finished)
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}

	owner.Teardown()
	waitClosed(t, finished)
	grandchild.Wait()

	if child.Alive() || grandchild.Alive() {
		t.Fatalf("descendant scopes should end with the owner")
	}
	if grandchild.Name() != "screen/panel/widget" {
		t.Fatalf("unexpected scope name %q", grandchild.Name())
	}
}

func TestChildCloseLeavesParentAlive(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	defer owner.Teardown()

	root := Bind(owner)
	child := root.Child("panel")
	child.Close()

	if !root.Alive() {
		t.Fatalf("closing a child must not end its parent")
	}
	if _, err := root.Go("still-ok", func(ctx context.Context) {}); err != nil {
		t.Fatalf("parent should accept tasks: %v", err)
	}
	root.Wait()
}

func TestTaskCancelIsLocal(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	defer owner.Teardown()
	s := Bind(owner)

	aDone := make(chan struct{})
	var bCtx context.Context
	bStarted := make(chan struct{})

	a, _ := s.Go("a", func(ctx context.Context) {
		<-ctx.Done()
		close(aDone)
	})
	b, _ := s.Go("b", func(ctx context.Context) {
		bCtx = ctx
		close(bStarted)
		<-ctx.Done()
	})

	a.Cancel()
	a.Cancel()
	waitClosed(t, aDone)
	waitClosed(t, bStarted)

	if bCtx.Err() != nil {
		t.Fatalf("cancelling one task must not cancel its siblings")
	}

	b.Cancel()
	s.Wait()
	if !s.Alive() {
		t.Fatalf("cancelling tasks must not end the scope")
	}
}

func TestParentContextEndsOwner(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	owner := NewOwner(parent, "screen")
	s := Bind(owner)

	cancel()
	waitClosed(t, owner.Done())

	// AfterFunc marks the scope closed asynchronously; Go also checks the
	// context directly.
	if _, err := s.Go("late", func(ctx context.Context) {}); !errors.Is(err, ErrScopeClosed) {
		t.Fatalf("expected ErrScopeClosed, got %v", err)
	}
}

func TestIdentifiers(t *testing.T) {
	owner := NewOwner(context.Background(), "screen")
	defer owner.Teardown()
	s := Bind(owner)

	a, _ := s.Go("a", func(ctx context.Context) {})
	b, _ := s.Go("b", func(ctx context.Context) {})
	s.Wait()

	if owner.ID() == "" || a.ID() == "" || a.ID() == b.ID() {
		t.Fatalf("expected unique non-empty ids")
	}
	if a.Name() != "a" || owner.Name() != "screen" {
		t.Fatalf("unexpected names")
	}
}
