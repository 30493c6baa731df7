package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/RoleGate/rolegate/internal/domain/perm"
)

func TestPermStore(t *testing.T) {
	store := NewPermStore()
	ctx := context.Background()

	p := &perm.Permission{
		ObjName: "ledger",
		OpName:  "post",
		Roles:   []string{"accountant"},
		Users:   []string{"root"},
	}
	if err := store.SavePermission(ctx, p); err != nil {
		t.Fatalf("SavePermission() error = %v", err)
	}

	got, err := store.GetPermission(ctx, "ledger", "post", "")
	if err != nil {
		t.Fatalf("GetPermission() error = %v", err)
	}
	if !got.HasRole("accountant") || !got.HasUser("root") {
		t.Errorf("GetPermission() = %+v", got)
	}

	// Clones only: mutating the result must not leak into the store.
	got.Roles[0] = "mutated"
	again, _ := store.GetPermission(ctx, "ledger", "post", "")
	if !again.HasRole("accountant") {
		t.Error("GetPermission() returned a live reference")
	}

	// Same object and op with an instance ID is a distinct permission.
	inst := &perm.Permission{ObjName: "ledger", OpName: "post", ObjID: "acct-7"}
	if err := store.SavePermission(ctx, inst); err != nil {
		t.Fatalf("SavePermission() error = %v", err)
	}
	all, err := store.GetAllPermissions(ctx)
	if err != nil {
		t.Fatalf("GetAllPermissions() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAllPermissions() len = %d, want 2", len(all))
	}

	if _, err := store.GetPermission(ctx, "ledger", "delete", ""); !errors.Is(err, perm.ErrPermissionNotFound) {
		t.Errorf("GetPermission() missing error = %v, want %v", err, perm.ErrPermissionNotFound)
	}

	if err := store.DeletePermission(ctx, "ledger", "post", ""); err != nil {
		t.Fatalf("DeletePermission() error = %v", err)
	}
	if err := store.DeletePermission(ctx, "ledger", "post", ""); !errors.Is(err, perm.ErrPermissionNotFound) {
		t.Errorf("DeletePermission() repeated error = %v, want %v", err, perm.ErrPermissionNotFound)
	}
}
