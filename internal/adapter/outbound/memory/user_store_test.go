package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/RoleGate/rolegate/internal/domain/auth"
)

func TestUserStore(t *testing.T) {
	store := NewUserStore()
	ctx := context.Background()

	u := &auth.User{
		ID:    "alice",
		Name:  "Alice",
		OU:    "engineering",
		Props: map[string]string{"shift": "day"},
	}
	if err := store.SaveUser(ctx, u); err != nil {
		t.Fatalf("SaveUser() error = %v", err)
	}

	got, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.OU != "engineering" || got.Props["shift"] != "day" {
		t.Errorf("GetUser() = %+v", got)
	}

	// Props map must be deep copied.
	got.Props["shift"] = "night"
	again, _ := store.GetUser(ctx, "alice")
	if again.Props["shift"] != "day" {
		t.Error("GetUser() returned a live props map")
	}

	all, err := store.GetAllUsers(ctx)
	if err != nil {
		t.Fatalf("GetAllUsers() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("GetAllUsers() len = %d, want 1", len(all))
	}

	if _, err := store.GetUser(ctx, "ghost"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUser(ghost) error = %v, want %v", err, auth.ErrUserNotFound)
	}

	if err := store.DeleteUser(ctx, "alice"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if err := store.DeleteUser(ctx, "alice"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("DeleteUser() repeated error = %v, want %v", err, auth.ErrUserNotFound)
	}
}
