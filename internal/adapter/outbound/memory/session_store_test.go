package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/session"
)

func TestSessionStore_CRUD(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	sess := &session.Session{
		ID:     session.NewID(),
		UserID: "alice",
		State:  session.StateActive,
		ActiveRoles: []session.ActiveRole{
			{Name: "engineer", Constraint: constraint.Unbounded()},
		},
		CreatedAt:  time.Now().UTC(),
		LastAccess: time.Now().UTC(),
	}

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "alice" || len(got.ActiveRoles) != 1 {
		t.Errorf("Get() = %+v", got)
	}

	// The store must hand out clones, not live references.
	got.ActiveRoles[0].Name = "mutated"
	again, _ := store.Get(ctx, sess.ID)
	if again.ActiveRoles[0].Name != "engineer" {
		t.Error("Get() returned a live reference, mutation leaked into the store")
	}

	got.ActiveRoles[0].Name = "engineer"
	got.State = session.StateTerminated
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	updated, _ := store.Get(ctx, sess.ID)
	if updated.State != session.StateTerminated {
		t.Errorf("Update() state = %q, want %q", updated.State, session.StateTerminated)
	}

	if err := store.Update(ctx, &session.Session{ID: "ghost"}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Update() unknown session error = %v, want %v", err, session.ErrSessionNotFound)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() after Delete() error = %v, want %v", err, session.ErrSessionNotFound)
	}
}

func TestSessionStore_CleanupRemovesExpired(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewSessionStoreWithConfig(10 * time.Millisecond)
	ctx := context.Background()

	expired := &session.Session{
		ID:     session.NewID(),
		UserID: "bob",
		State:  session.StateActive,
		ActiveRoles: []session.ActiveRole{
			{Name: "engineer", Constraint: constraint.Constraint{Timeout: 1}},
		},
		LastAccess: time.Now().UTC().Add(-time.Hour),
	}
	live := &session.Session{
		ID:         session.NewID(),
		UserID:     "alice",
		State:      session.StateActive,
		LastAccess: time.Now().UTC(),
	}
	_ = store.Create(ctx, expired)
	_ = store.Create(ctx, live)

	store.StartCleanup(ctx)
	defer store.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.Count() > 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if store.Count() != 1 {
		t.Fatalf("Count() = %d after cleanup, want 1", store.Count())
	}
	if _, err := store.Get(ctx, expired.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("expired session still present, Get() error = %v", err)
	}
	if _, err := store.Get(ctx, live.ID); err != nil {
		t.Errorf("live session removed, Get() error = %v", err)
	}
}

func TestSessionStore_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := NewSessionStore()
	store.StartCleanup(context.Background())
	store.Stop()
	store.Stop()
}
