package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/hierarchy"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

func newAssignmentService(f *fixture, scope *DelegatedAdminService) *AssignmentService {
	return NewAssignmentService(f.roles, f.users, f.sdsets, f.perms, f.hier, scope, f.access,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAssignmentService_AssignUser(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "engineer")
	f.addUser(t, "alice", "engineering")

	ur := role.UserRole{UserID: "alice", Role: "engineer"}
	if err := svc.AssignUser(ctx, ur, ""); err != nil {
		t.Fatalf("AssignUser() error = %v", err)
	}

	assigned, _ := f.roles.GetUserAssignments(ctx, "alice")
	if len(assigned) != 1 {
		t.Fatalf("GetUserAssignments() len = %d, want 1", len(assigned))
	}
	// The empty constraint was normalized before persisting.
	if assigned[0].Constraint != constraint.Unbounded() {
		t.Errorf("persisted constraint = %+v, want unbounded", assigned[0].Constraint)
	}

	if err := svc.AssignUser(ctx, ur, ""); !errors.Is(err, role.ErrAssignmentExists) {
		t.Errorf("AssignUser() duplicate error = %v, want %v", err, role.ErrAssignmentExists)
	}
}

func TestAssignmentService_AssignUser_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "engineer")
	f.addUser(t, "alice", "engineering")

	wrapped := role.UserRole{UserID: "alice", Role: "engineer",
		Constraint: constraint.Constraint{BeginTime: "2200", EndTime: "0600"}}
	if err := svc.AssignUser(ctx, wrapped, ""); !errors.Is(err, constraint.ErrTimeRangeWrap) {
		t.Errorf("AssignUser() wrapped constraint error = %v, want %v", err, constraint.ErrTimeRangeWrap)
	}

	unknown := role.UserRole{UserID: "alice", Role: "ghost"}
	if err := svc.AssignUser(ctx, unknown, ""); !errors.Is(err, hierarchy.ErrUnknownRole) {
		t.Errorf("AssignUser() unknown role error = %v, want %v", err, hierarchy.ErrUnknownRole)
	}

	noUser := role.UserRole{UserID: "ghost", Role: "engineer"}
	if err := svc.AssignUser(ctx, noUser, ""); err == nil {
		t.Error("AssignUser() error = nil for an unknown user")
	}
}

func TestAssignmentService_AssignUser_StaticSod(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "payroll-clerk")
	f.addRole(t, "payroll-auditor")
	// junior inherits the clerk's authority, so assigning it must also
	// trip the set.
	f.addRole(t, "payroll-junior", "payroll-clerk")
	f.addUser(t, "alice", "finance")
	_ = f.sdsets.SaveSet(ctx, &sod.SDSet{
		Name: "payroll-sod", Type: sod.Static, Cardinality: 2,
		Members: []string{"payroll-clerk", "payroll-auditor"},
	})

	if err := svc.AssignUser(ctx, role.UserRole{UserID: "alice", Role: "payroll-auditor"}, ""); err != nil {
		t.Fatalf("AssignUser() first member error = %v", err)
	}
	err := svc.AssignUser(ctx, role.UserRole{UserID: "alice", Role: "payroll-clerk"}, "")
	if !errors.Is(err, sod.ErrSSDConflict) {
		t.Errorf("AssignUser() second member error = %v, want %v", err, sod.ErrSSDConflict)
	}
	err = svc.AssignUser(ctx, role.UserRole{UserID: "alice", Role: "payroll-junior"}, "")
	if !errors.Is(err, sod.ErrSSDConflict) {
		t.Errorf("AssignUser() inherited member error = %v, want %v", err, sod.ErrSSDConflict)
	}

	// The rejected assignments were never persisted.
	assigned, _ := f.roles.GetUserAssignments(ctx, "alice")
	if len(assigned) != 1 {
		t.Errorf("GetUserAssignments() len = %d, want 1", len(assigned))
	}
}

func TestAssignmentService_DelegatedScope(t *testing.T) {
	sf := newScopeFixture(t, true, true)
	svc := newAssignmentService(sf.fixture, sf.scope)
	ctx := context.Background()

	// Inside the admin's range and OU.
	if err := svc.AssignUser(ctx, role.UserRole{UserID: "alice", Role: "r3"}, sf.adminID); err != nil {
		t.Fatalf("AssignUser() in scope error = %v", err)
	}
	// Outside the range.
	err := svc.AssignUser(ctx, role.UserRole{UserID: "alice", Role: "r6"}, sf.adminID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("AssignUser() out of range error = %v, want %v", err, ErrNotAuthorized)
	}
	// Outside the covered OU.
	err = svc.AssignUser(ctx, role.UserRole{UserID: "dave", Role: "r3"}, sf.adminID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("AssignUser() out of OU error = %v, want %v", err, ErrNotAuthorized)
	}

	if err := svc.DeassignUser(ctx, "alice", "r3", sf.adminID); err != nil {
		t.Fatalf("DeassignUser() in scope error = %v", err)
	}
	err = svc.DeassignUser(ctx, "dave", "r3", sf.adminID)
	if !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("DeassignUser() out of OU error = %v, want %v", err, ErrNotAuthorized)
	}
}

func TestAssignmentService_AdminAssignments(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	_ = f.hier.Admin().AddRole("team-admin")
	_ = f.roles.SaveAdminRole(ctx, &role.AdminRole{Role: role.Role{Name: "team-admin"}})
	f.addUser(t, "carol", "operations")

	if err := svc.AssignAdminUser(ctx, role.UserAdminRole{UserID: "carol", Role: "team-admin"}); err != nil {
		t.Fatalf("AssignAdminUser() error = %v", err)
	}
	if err := svc.AssignAdminUser(ctx, role.UserAdminRole{UserID: "carol", Role: "ghost"}); !errors.Is(err, hierarchy.ErrUnknownRole) {
		t.Errorf("AssignAdminUser() unknown role error = %v, want %v", err, hierarchy.ErrUnknownRole)
	}
	if err := svc.DeassignAdminUser(ctx, "carol", "team-admin"); err != nil {
		t.Fatalf("DeassignAdminUser() error = %v", err)
	}
	if err := svc.DeassignAdminUser(ctx, "carol", "team-admin"); !errors.Is(err, role.ErrAssignmentNotFound) {
		t.Errorf("DeassignAdminUser() repeated error = %v, want %v", err, role.ErrAssignmentNotFound)
	}
}

func TestAssignmentService_Grants(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "engineer")
	f.addUser(t, "alice", "engineering")
	f.assign(t, "alice", "engineer", constraint.Unbounded())
	_ = f.perms.SavePermission(ctx, &perm.Permission{ObjName: "wiki", OpName: "edit"})

	sess, err := f.access.CreateSession(ctx, "alice", "", nil, true)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	// Deny first so the decision is cached, then grant: the grant must
	// invalidate the cached deny.
	if allowed, _ := f.access.CheckAccess(ctx, sess.ID, "wiki", "edit", ""); allowed {
		t.Fatal("CheckAccess() = true before the grant")
	}
	if err := svc.GrantPermission(ctx, "wiki", "edit", "", "engineer", ""); err != nil {
		t.Fatalf("GrantPermission() error = %v", err)
	}
	if allowed, _ := f.access.CheckAccess(ctx, sess.ID, "wiki", "edit", ""); !allowed {
		t.Error("CheckAccess() = false after the grant, stale decision not invalidated")
	}

	// Granting again is a no-op, not an error.
	if err := svc.GrantPermission(ctx, "wiki", "edit", "", "engineer", ""); err != nil {
		t.Errorf("GrantPermission() repeated error = %v", err)
	}

	if err := svc.RevokePermission(ctx, "wiki", "edit", "", "engineer", ""); err != nil {
		t.Fatalf("RevokePermission() error = %v", err)
	}
	if allowed, _ := f.access.CheckAccess(ctx, sess.ID, "wiki", "edit", ""); allowed {
		t.Error("CheckAccess() = true after the revoke")
	}
	if err := svc.RevokePermission(ctx, "wiki", "edit", "", "engineer", ""); !errors.Is(err, perm.ErrGrantNotFound) {
		t.Errorf("RevokePermission() repeated error = %v, want %v", err, perm.ErrGrantNotFound)
	}

	if err := svc.GrantPermission(ctx, "wiki", "edit", "", "ghost", ""); !errors.Is(err, hierarchy.ErrUnknownRole) {
		t.Errorf("GrantPermission() unknown role error = %v, want %v", err, hierarchy.ErrUnknownRole)
	}
}

func TestAssignmentService_UserGrants(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addUser(t, "bob", "sales")
	_ = f.perms.SavePermission(ctx, &perm.Permission{ObjName: "report", OpName: "export"})

	if err := svc.GrantUserPermission(ctx, "report", "export", "", "bob"); err != nil {
		t.Fatalf("GrantUserPermission() error = %v", err)
	}
	p, _ := f.perms.GetPermission(ctx, "report", "export", "")
	if !p.HasUser("bob") {
		t.Error("GrantUserPermission() did not persist the grant")
	}

	if err := svc.RevokeUserPermission(ctx, "report", "export", "", "bob"); err != nil {
		t.Fatalf("RevokeUserPermission() error = %v", err)
	}
	if err := svc.RevokeUserPermission(ctx, "report", "export", "", "bob"); !errors.Is(err, perm.ErrGrantNotFound) {
		t.Errorf("RevokeUserPermission() repeated error = %v, want %v", err, perm.ErrGrantNotFound)
	}

	if err := svc.GrantUserPermission(ctx, "report", "export", "", "ghost"); err == nil {
		t.Error("GrantUserPermission() error = nil for an unknown user")
	}
}

func TestAssignmentService_UpdateAssignmentConstraint(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "engineer")
	f.addUser(t, "alice", "engineering")
	f.assign(t, "alice", "engineer", constraint.Unbounded())

	c := constraint.Unbounded()
	c.Timeout = 45
	if err := svc.UpdateAssignmentConstraint(ctx, "alice", "engineer", c); err != nil {
		t.Fatalf("UpdateAssignmentConstraint() error = %v", err)
	}
	assigned, _ := f.roles.GetUserAssignments(ctx, "alice")
	if len(assigned) != 1 || assigned[0].Constraint.Timeout != 45 {
		t.Errorf("GetUserAssignments() after update = %v", assigned)
	}

	bad := constraint.Constraint{Timeout: -1}
	if err := svc.UpdateAssignmentConstraint(ctx, "alice", "engineer", bad); !errors.Is(err, constraint.ErrNegativeTimeout) {
		t.Errorf("UpdateAssignmentConstraint() invalid error = %v, want %v", err, constraint.ErrNegativeTimeout)
	}

	if err := svc.UpdateAssignmentConstraint(ctx, "alice", "ghost", c); !errors.Is(err, role.ErrAssignmentNotFound) {
		t.Errorf("UpdateAssignmentConstraint() missing error = %v, want %v", err, role.ErrAssignmentNotFound)
	}
	// A failed update must not disturb the existing assignment.
	assigned, _ = f.roles.GetUserAssignments(ctx, "alice")
	if len(assigned) != 1 || assigned[0].Constraint.Timeout != 45 {
		t.Errorf("GetUserAssignments() after failed updates = %v", assigned)
	}
}

func TestAssignmentService_NilScopeFailsClosed(t *testing.T) {
	f := newFixture(t)
	svc := newAssignmentService(f, nil)
	ctx := context.Background()

	f.addRole(t, "engineer")
	f.addUser(t, "alice", "engineering")
	_ = f.perms.SavePermission(ctx, &perm.Permission{ObjName: "wiki", OpName: "edit"})

	ur := role.UserRole{UserID: "alice", Role: "engineer", Constraint: constraint.Unbounded()}
	if err := svc.AssignUser(ctx, ur, "some-admin-session"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("AssignUser() error = %v, want %v", err, ErrNotAuthorized)
	}
	if err := svc.DeassignUser(ctx, "alice", "engineer", "some-admin-session"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("DeassignUser() error = %v, want %v", err, ErrNotAuthorized)
	}
	if err := svc.GrantPermission(ctx, "wiki", "edit", "", "engineer", "some-admin-session"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("GrantPermission() error = %v, want %v", err, ErrNotAuthorized)
	}
	if err := svc.RevokePermission(ctx, "wiki", "edit", "", "engineer", "some-admin-session"); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("RevokePermission() error = %v, want %v", err, ErrNotAuthorized)
	}
}
