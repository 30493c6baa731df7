package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/session"
)

// scopeFixture builds a delegated-admin scenario: a six-level normal
// chain r1 (most senior) down to r6, an admin role scoped to the
// engineering OU with range [r5, r2], and an admin session holding it.
type scopeFixture struct {
	*fixture
	scope   *DelegatedAdminService
	adminID string // session ID
}

func newScopeFixture(t *testing.T, beginInclusive, endInclusive bool) *scopeFixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()

	f.addRole(t, "r1")
	f.addRole(t, "r2", "r1")
	f.addRole(t, "r3", "r2")
	f.addRole(t, "r4", "r3")
	f.addRole(t, "r5", "r4")
	f.addRole(t, "r6", "r5")

	if err := f.hier.Admin().AddRole("team-admin"); err != nil {
		t.Fatalf("AddRole(team-admin) error = %v", err)
	}
	ar := &role.AdminRole{
		Role:           role.Role{Name: "team-admin"},
		UserOUs:        []string{"engineering"},
		PermOUs:        []string{"engineering"},
		BeginRange:     "r5",
		EndRange:       "r2",
		BeginInclusive: beginInclusive,
		EndInclusive:   endInclusive,
	}
	if err := f.roles.SaveAdminRole(ctx, ar); err != nil {
		t.Fatalf("SaveAdminRole() error = %v", err)
	}

	f.addUser(t, "carol", "operations")
	f.addUser(t, "alice", "engineering")
	f.addUser(t, "dave", "sales")
	if err := f.roles.SaveAdminAssignment(ctx, role.UserAdminRole{
		UserID: "carol", Role: "team-admin", Constraint: constraint.Unbounded(),
	}); err != nil {
		t.Fatalf("SaveAdminAssignment() error = %v", err)
	}

	sess, err := f.access.CreateSession(ctx, "carol", "", nil, true)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if len(sess.AdminRoleNames()) != 1 {
		t.Fatalf("admin session roles = %v, want team-admin", sess.AdminRoleNames())
	}

	scope := NewDelegatedAdminService(f.access, f.roles, f.users, f.perms, f.hier,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &scopeFixture{fixture: f, scope: scope, adminID: sess.ID}
}

func TestDelegatedAdminService_CanAssign(t *testing.T) {
	f := newScopeFixture(t, true, true)
	ctx := context.Background()

	tests := []struct {
		name string
		user string
		role string
		want bool
	}{
		{name: "role inside range, user in covered OU", user: "alice", role: "r3", want: true},
		{name: "inclusive senior endpoint", user: "alice", role: "r2", want: true},
		{name: "inclusive junior endpoint", user: "alice", role: "r5", want: true},
		{name: "role above the range", user: "alice", role: "r1", want: false},
		{name: "role below the range", user: "alice", role: "r6", want: false},
		{name: "user outside covered OU", user: "dave", role: "r3", want: false},
		{name: "unknown role", user: "alice", role: "ghost", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.scope.CanAssign(ctx, f.adminID, tt.user, tt.role)
			if err != nil {
				t.Fatalf("CanAssign() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAssign(%s, %s) = %v, want %v", tt.user, tt.role, got, tt.want)
			}
		})
	}
}

func TestDelegatedAdminService_ExclusiveEndpoints(t *testing.T) {
	f := newScopeFixture(t, false, false)
	ctx := context.Background()

	for _, endpoint := range []string{"r2", "r5"} {
		got, err := f.scope.CanAssign(ctx, f.adminID, "alice", endpoint)
		if err != nil {
			t.Fatalf("CanAssign() error = %v", err)
		}
		if got {
			t.Errorf("CanAssign(alice, %s) = true with exclusive endpoints", endpoint)
		}
	}
	// Interior roles are unaffected by endpoint exclusivity.
	if got, _ := f.scope.CanAssign(ctx, f.adminID, "alice", "r3"); !got {
		t.Error("CanAssign(alice, r3) = false, interior role should pass")
	}
}

func TestDelegatedAdminService_CanGrant(t *testing.T) {
	f := newScopeFixture(t, true, true)
	ctx := context.Background()

	_ = f.perms.SavePermission(ctx, &perm.Permission{
		ObjName: "repo", OpName: "push", OU: "engineering",
	})
	_ = f.perms.SavePermission(ctx, &perm.Permission{
		ObjName: "ledger", OpName: "post", OU: "finance",
	})

	tests := []struct {
		name    string
		role    string
		obj, op string
		want    bool
	}{
		{name: "permission in covered OU, role in range", role: "r3", obj: "repo", op: "push", want: true},
		{name: "permission outside covered OU", role: "r3", obj: "ledger", op: "post", want: false},
		{name: "role outside range", role: "r6", obj: "repo", op: "push", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.scope.CanGrant(ctx, f.adminID, tt.role, tt.obj, tt.op, "")
			if err != nil {
				t.Fatalf("CanGrant() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CanGrant(%s, %s.%s) = %v, want %v", tt.role, tt.obj, tt.op, got, tt.want)
			}
		})
	}

	// An unknown permission is a lookup error, not a policy answer.
	if _, err := f.scope.CanGrant(ctx, f.adminID, "r3", "ghost", "op", ""); !errors.Is(err, perm.ErrPermissionNotFound) {
		t.Errorf("CanGrant() unknown permission error = %v, want %v", err, perm.ErrPermissionNotFound)
	}
}

func TestDelegatedAdminService_RequiresLiveAdminSession(t *testing.T) {
	f := newScopeFixture(t, true, true)
	ctx := context.Background()

	if _, err := f.scope.CanAssign(ctx, "ghost", "alice", "r3"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("CanAssign() unknown session error = %v, want %v", err, session.ErrSessionNotFound)
	}

	// A session with no active admin role has no authority anywhere.
	plain, err := f.access.CreateSession(ctx, "alice", "", nil, true)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	got, err := f.scope.CanAssign(ctx, plain.ID, "alice", "r3")
	if err != nil {
		t.Fatalf("CanAssign() error = %v", err)
	}
	if got {
		t.Error("CanAssign() = true for a session without admin roles")
	}
}
