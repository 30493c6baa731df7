package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RoleGate/rolegate/internal/adapter/outbound/memory"
	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

const sampleSnapshot = `
roles:
  - name: employee
  - name: engineer
    description: builds things
    parents: [employee]
    condition: 'ou == "engineering"'
admin_roles:
  - name: team-admin
    user_ous: [engineering]
    perm_ous: [engineering]
    begin_range: engineer
    end_range: employee
    begin_inclusive: true
    end_inclusive: true
users:
  - id: alice
    name: Alice
    ou: engineering
    props:
      shift: day
assignments:
  - user: alice
    role: engineer
    constraint:
      begin_time: "0900"
      end_time: "1730"
      day_mask: "23456"
      timeout: 30
admin_assignments:
  - user: alice
    role: team-admin
sd_sets:
  - name: payroll-sod
    type: STATIC
    cardinality: 2
    members: [payroll-clerk, payroll-auditor]
permissions:
  - obj: ledger
    op: post
    ou: finance
    roles: [engineer]
    users: [root]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleSnapshot))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(s.Roles) != 2 || len(s.AdminRoles) != 1 || len(s.Users) != 1 {
		t.Errorf("Parse() counts = %d roles, %d admin, %d users",
			len(s.Roles), len(s.AdminRoles), len(s.Users))
	}

	// Assignment constraints are normalized on load.
	c := s.Assignments[0].Constraint
	if c.BeginTime != "0900" || c.EndTime != "1730" {
		t.Errorf("Parse() assignment times = %s-%s", c.BeginTime, c.EndTime)
	}
	if c.BeginDate != constraint.None || c.BeginLockDate != constraint.None {
		t.Errorf("Parse() did not normalize empty date fields: %+v", c)
	}
	ac := s.AdminAssignments[0].Constraint
	if ac.DayMask != constraint.AllDays {
		t.Errorf("Parse() did not normalize empty admin constraint: %+v", ac)
	}
}

func TestParse_MalformedConstraintFailsLoad(t *testing.T) {
	doc := `
assignments:
  - user: alice
    role: engineer
    constraint:
      begin_time: "2200"
      end_time: "0600"
`
	if _, err := Parse([]byte(doc)); !errors.Is(err, constraint.ErrTimeRangeWrap) {
		t.Errorf("Parse() error = %v, want %v", err, constraint.ErrTimeRangeWrap)
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("roles: [!!binary bogus")); err == nil {
		t.Error("Parse() error = nil for malformed YAML")
	}
}

func TestLoadAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rolegate.yaml")
	if err := os.WriteFile(path, []byte(sampleSnapshot), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	snap, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	stores := Stores{
		Roles:  memory.NewRoleStore(),
		Users:  memory.NewUserStore(),
		SDSets: memory.NewSDSetStore(),
		Perms:  memory.NewPermStore(),
	}
	ctx := context.Background()
	if err := snap.Apply(ctx, stores); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	r, err := stores.Roles.GetRole(ctx, "engineer")
	if err != nil {
		t.Fatalf("GetRole() error = %v", err)
	}
	if len(r.Parents) != 1 || r.Parents[0] != "employee" {
		t.Errorf("GetRole() Parents = %v", r.Parents)
	}

	ar, err := stores.Roles.GetAdminRole(ctx, "team-admin")
	if err != nil {
		t.Fatalf("GetAdminRole() error = %v", err)
	}
	if !ar.HasUserOU("engineering") {
		t.Error("GetAdminRole() missing user OU")
	}

	u, err := stores.Users.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Props["shift"] != "day" {
		t.Errorf("GetUser() Props = %v", u.Props)
	}

	assigned, err := stores.Roles.GetUserAssignments(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserAssignments() error = %v", err)
	}
	if len(assigned) != 1 || assigned[0].Constraint.Timeout != 30 {
		t.Errorf("GetUserAssignments() = %v", assigned)
	}

	sets, err := stores.SDSets.GetSets(ctx, sod.Static)
	if err != nil {
		t.Fatalf("GetSets() error = %v", err)
	}
	if len(sets) != 1 || sets[0].Cardinality != 2 {
		t.Errorf("GetSets() = %v", sets)
	}

	p, err := stores.Perms.GetPermission(ctx, "ledger", "post", "")
	if err != nil {
		t.Fatalf("GetPermission() error = %v", err)
	}
	if !p.HasRole("engineer") || !p.HasUser("root") {
		t.Errorf("GetPermission() = %+v", p)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() error = nil for a missing file")
	}
}
