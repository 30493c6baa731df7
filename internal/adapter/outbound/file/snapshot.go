// Package file loads a directory snapshot from YAML. The snapshot is
// the seed format consumed by the one-shot CLI and by tests; production
// directories live behind the sqlite adapter.
package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

// Snapshot is a complete directory state in one document.
type Snapshot struct {
	Roles            []RoleEntry       `yaml:"roles"`
	AdminRoles       []AdminRoleEntry  `yaml:"admin_roles"`
	Users            []UserEntry       `yaml:"users"`
	Assignments      []AssignmentEntry `yaml:"assignments"`
	AdminAssignments []AssignmentEntry `yaml:"admin_assignments"`
	SDSets           []SDSetEntry      `yaml:"sd_sets"`
	Permissions      []PermissionEntry `yaml:"permissions"`
}

// RoleEntry is one normal role.
type RoleEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Parents     []string `yaml:"parents"`
	Condition   string   `yaml:"condition"`
}

// AdminRoleEntry is one administrative role.
type AdminRoleEntry struct {
	RoleEntry      `yaml:",inline"`
	UserOUs        []string `yaml:"user_ous"`
	PermOUs        []string `yaml:"perm_ous"`
	BeginRange     string   `yaml:"begin_range"`
	EndRange       string   `yaml:"end_range"`
	BeginInclusive bool     `yaml:"begin_inclusive"`
	EndInclusive   bool     `yaml:"end_inclusive"`
}

// UserEntry is one directory user.
type UserEntry struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	OU           string            `yaml:"ou"`
	PasswordHash string            `yaml:"password_hash"`
	Props        map[string]string `yaml:"props"`
}

// AssignmentEntry is one user-role assignment with its constraint.
type AssignmentEntry struct {
	User       string                `yaml:"user"`
	Role       string                `yaml:"role"`
	Constraint constraint.Constraint `yaml:"constraint"`
}

// SDSetEntry is one separation-of-duty set.
type SDSetEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Cardinality int      `yaml:"cardinality"`
	Members     []string `yaml:"members"`
}

// PermissionEntry is one permission with its grants.
type PermissionEntry struct {
	Obj   string   `yaml:"obj"`
	Op    string   `yaml:"op"`
	ObjID string   `yaml:"obj_id"`
	OU    string   `yaml:"ou"`
	Roles []string `yaml:"roles"`
	Users []string `yaml:"users"`
}

// Load reads and parses a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Parse(data)
}

// Parse parses a snapshot document. Assignment constraints are
// normalized and validated; a malformed constraint fails the whole
// load, matching the assignment-time rejection rule.
func Parse(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	for i := range s.Assignments {
		s.Assignments[i].Constraint.Normalize()
		if err := s.Assignments[i].Constraint.Validate(); err != nil {
			return nil, fmt.Errorf("assignment %s/%s: %w",
				s.Assignments[i].User, s.Assignments[i].Role, err)
		}
	}
	for i := range s.AdminAssignments {
		s.AdminAssignments[i].Constraint.Normalize()
		if err := s.AdminAssignments[i].Constraint.Validate(); err != nil {
			return nil, fmt.Errorf("admin assignment %s/%s: %w",
				s.AdminAssignments[i].User, s.AdminAssignments[i].Role, err)
		}
	}
	return &s, nil
}

// Stores is the set of directory stores a snapshot populates.
type Stores struct {
	Roles  role.Store
	Users  auth.Store
	SDSets sod.Store
	Perms  perm.Store
}

// Apply writes the snapshot contents into the given stores.
func (s *Snapshot) Apply(ctx context.Context, st Stores) error {
	for _, r := range s.Roles {
		if err := st.Roles.SaveRole(ctx, &role.Role{
			Name:        r.Name,
			Description: r.Description,
			Parents:     r.Parents,
			Condition:   r.Condition,
		}); err != nil {
			return fmt.Errorf("role %s: %w", r.Name, err)
		}
	}
	for _, r := range s.AdminRoles {
		if err := st.Roles.SaveAdminRole(ctx, &role.AdminRole{
			Role: role.Role{
				Name:        r.Name,
				Description: r.Description,
				Parents:     r.Parents,
				Condition:   r.Condition,
			},
			UserOUs:        r.UserOUs,
			PermOUs:        r.PermOUs,
			BeginRange:     r.BeginRange,
			EndRange:       r.EndRange,
			BeginInclusive: r.BeginInclusive,
			EndInclusive:   r.EndInclusive,
		}); err != nil {
			return fmt.Errorf("admin role %s: %w", r.Name, err)
		}
	}
	for _, u := range s.Users {
		if err := st.Users.SaveUser(ctx, &auth.User{
			ID:           u.ID,
			Name:         u.Name,
			OU:           u.OU,
			PasswordHash: u.PasswordHash,
			Props:        u.Props,
		}); err != nil {
			return fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	for _, a := range s.Assignments {
		if err := st.Roles.SaveAssignment(ctx, role.UserRole{
			UserID:     a.User,
			Role:       a.Role,
			Constraint: a.Constraint,
		}); err != nil {
			return fmt.Errorf("assignment %s/%s: %w", a.User, a.Role, err)
		}
	}
	for _, a := range s.AdminAssignments {
		if err := st.Roles.SaveAdminAssignment(ctx, role.UserAdminRole{
			UserID:     a.User,
			Role:       a.Role,
			Constraint: a.Constraint,
		}); err != nil {
			return fmt.Errorf("admin assignment %s/%s: %w", a.User, a.Role, err)
		}
	}
	for _, set := range s.SDSets {
		if err := st.SDSets.SaveSet(ctx, &sod.SDSet{
			Name:        set.Name,
			Description: set.Description,
			Type:        sod.SetType(set.Type),
			Cardinality: set.Cardinality,
			Members:     set.Members,
		}); err != nil {
			return fmt.Errorf("sd set %s: %w", set.Name, err)
		}
	}
	for _, p := range s.Permissions {
		if err := st.Perms.SavePermission(ctx, &perm.Permission{
			ObjName: p.Obj,
			OpName:  p.Op,
			ObjID:   p.ObjID,
			OU:      p.OU,
			Roles:   p.Roles,
			Users:   p.Users,
		}); err != nil {
			return fmt.Errorf("permission %s.%s: %w", p.Obj, p.Op, err)
		}
	}
	return nil
}
