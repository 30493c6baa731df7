// Package sqlite implements the directory store interfaces on an
// embedded SQLite database. One Store value implements role.Store,
// sod.Store, perm.Store, and auth.Store; the engine sees them as
// separate collaborators.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

const schema = `
CREATE TABLE IF NOT EXISTS roles (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	condition   TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS role_parents (
	child  TEXT NOT NULL,
	parent TEXT NOT NULL,
	PRIMARY KEY (child, parent)
);
CREATE TABLE IF NOT EXISTS admin_roles (
	name            TEXT PRIMARY KEY,
	description     TEXT NOT NULL DEFAULT '',
	condition       TEXT NOT NULL DEFAULT '',
	begin_range     TEXT NOT NULL DEFAULT '',
	end_range       TEXT NOT NULL DEFAULT '',
	begin_inclusive INTEGER NOT NULL DEFAULT 1,
	end_inclusive   INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS admin_role_parents (
	child  TEXT NOT NULL,
	parent TEXT NOT NULL,
	PRIMARY KEY (child, parent)
);
CREATE TABLE IF NOT EXISTS admin_role_ous (
	role TEXT NOT NULL,
	ou   TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('user', 'perm')),
	PRIMARY KEY (role, ou, kind)
);
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL DEFAULT '',
	ou            TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL DEFAULT '',
	props         TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS assignments (
	user_id         TEXT NOT NULL,
	role            TEXT NOT NULL,
	admin           INTEGER NOT NULL DEFAULT 0,
	begin_time      TEXT NOT NULL,
	end_time        TEXT NOT NULL,
	begin_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	begin_lock_date TEXT NOT NULL,
	end_lock_date   TEXT NOT NULL,
	day_mask        TEXT NOT NULL,
	timeout         INTEGER NOT NULL DEFAULT 0,
	condition       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, role, admin)
);
CREATE TABLE IF NOT EXISTS sd_sets (
	name        TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL CHECK (type IN ('STATIC', 'DYNAMIC')),
	cardinality INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sd_set_members (
	set_name TEXT NOT NULL,
	role     TEXT NOT NULL,
	PRIMARY KEY (set_name, role)
);
CREATE TABLE IF NOT EXISTS permissions (
	obj_name TEXT NOT NULL,
	op_name  TEXT NOT NULL,
	obj_id   TEXT NOT NULL DEFAULT '',
	ou       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (obj_name, op_name, obj_id)
);
CREATE TABLE IF NOT EXISTS perm_roles (
	perm_key TEXT NOT NULL,
	role     TEXT NOT NULL,
	PRIMARY KEY (perm_key, role)
);
CREATE TABLE IF NOT EXISTS perm_users (
	perm_key TEXT NOT NULL,
	user_id  TEXT NOT NULL,
	PRIMARY KEY (perm_key, user_id)
);
`

// Store is a SQLite-backed directory store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a directory database at path.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply directory schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetRole returns a normal role by name.
func (s *Store) GetRole(ctx context.Context, name string) (*role.Role, error) {
	r := role.Role{Name: name}
	err := s.db.QueryRowContext(ctx,
		`SELECT description, condition FROM roles WHERE name = ?`, name).
		Scan(&r.Description, &r.Condition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, role.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Parents, err = s.parents(ctx, "role_parents", name); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAllRoles returns every normal role.
func (s *Store) GetAllRoles(ctx context.Context) ([]role.Role, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, description, condition FROM roles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []role.Role
	for rows.Next() {
		var r role.Role
		if err := rows.Scan(&r.Name, &r.Description, &r.Condition); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Parents, err = s.parents(ctx, "role_parents", out[i].Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SaveRole creates or updates a normal role.
func (s *Store) SaveRole(ctx context.Context, r *role.Role) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO roles (name, description, condition) VALUES (?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET description = excluded.description, condition = excluded.condition`,
			r.Name, r.Description, r.Condition); err != nil {
			return err
		}
		return replaceParents(ctx, tx, "role_parents", r.Name, r.Parents)
	})
}

// DeleteRole removes a normal role and its edges.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE name = ?`, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return role.ErrRoleNotFound
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM role_parents WHERE child = ? OR parent = ?`, name, name)
		return err
	})
}

// GetAdminRole returns an administrative role by name.
func (s *Store) GetAdminRole(ctx context.Context, name string) (*role.AdminRole, error) {
	r := role.AdminRole{Role: role.Role{Name: name}}
	err := s.db.QueryRowContext(ctx,
		`SELECT description, condition, begin_range, end_range, begin_inclusive, end_inclusive
		 FROM admin_roles WHERE name = ?`, name).
		Scan(&r.Description, &r.Condition, &r.BeginRange, &r.EndRange, &r.BeginInclusive, &r.EndInclusive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, role.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Parents, err = s.parents(ctx, "admin_role_parents", name); err != nil {
		return nil, err
	}
	if r.UserOUs, err = s.adminOUs(ctx, name, "user"); err != nil {
		return nil, err
	}
	if r.PermOUs, err = s.adminOUs(ctx, name, "perm"); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetAllAdminRoles returns every administrative role.
func (s *Store) GetAllAdminRoles(ctx context.Context) ([]role.AdminRole, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM admin_roles`)
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]role.AdminRole, 0, len(names))
	for _, n := range names {
		r, err := s.GetAdminRole(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// SaveAdminRole creates or updates an administrative role.
func (s *Store) SaveAdminRole(ctx context.Context, r *role.AdminRole) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO admin_roles (name, description, condition, begin_range, end_range, begin_inclusive, end_inclusive)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
				description = excluded.description, condition = excluded.condition,
				begin_range = excluded.begin_range, end_range = excluded.end_range,
				begin_inclusive = excluded.begin_inclusive, end_inclusive = excluded.end_inclusive`,
			r.Name, r.Description, r.Condition, r.BeginRange, r.EndRange, r.BeginInclusive, r.EndInclusive); err != nil {
			return err
		}
		if err := replaceParents(ctx, tx, "admin_role_parents", r.Name, r.Parents); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM admin_role_ous WHERE role = ?`, r.Name); err != nil {
			return err
		}
		for _, ou := range r.UserOUs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO admin_role_ous (role, ou, kind) VALUES (?, ?, 'user')`, r.Name, ou); err != nil {
				return err
			}
		}
		for _, ou := range r.PermOUs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO admin_role_ous (role, ou, kind) VALUES (?, ?, 'perm')`, r.Name, ou); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteAdminRole removes an administrative role, its edges, and OUs.
func (s *Store) DeleteAdminRole(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM admin_roles WHERE name = ?`, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return role.ErrRoleNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM admin_role_parents WHERE child = ? OR parent = ?`, name, name); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM admin_role_ous WHERE role = ?`, name)
		return err
	})
}

// GetUserAssignments returns the user's normal-role assignments.
func (s *Store) GetUserAssignments(ctx context.Context, userID string) ([]role.UserRole, error) {
	rows, err := s.queryAssignments(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]role.UserRole, 0, len(rows))
	for _, a := range rows {
		out = append(out, role.UserRole{UserID: a.userID, Role: a.role, Constraint: a.c})
	}
	return out, nil
}

// GetRoleAssignments returns every assignment to the named role.
func (s *Store) GetRoleAssignments(ctx context.Context, roleName string) ([]role.UserRole, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, begin_time, end_time, begin_date, end_date,
		        begin_lock_date, end_lock_date, day_mask, timeout, condition
		 FROM assignments WHERE role = ? AND admin = 0`, roleName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []role.UserRole
	for rows.Next() {
		var ur role.UserRole
		if err := scanAssignment(rows, &ur.UserID, &ur.Role, &ur.Constraint); err != nil {
			return nil, err
		}
		out = append(out, ur)
	}
	return out, rows.Err()
}

// SaveAssignment persists a new normal-role assignment.
func (s *Store) SaveAssignment(ctx context.Context, ur role.UserRole) error {
	return s.insertAssignment(ctx, ur.UserID, ur.Role, 0, ur.Constraint)
}

// RemoveAssignment deletes a normal-role assignment.
func (s *Store) RemoveAssignment(ctx context.Context, userID, roleName string) error {
	return s.deleteAssignment(ctx, userID, roleName, 0)
}

// UpdateAssignment replaces the constraint of an existing assignment
// in a single statement.
func (s *Store) UpdateAssignment(ctx context.Context, ur role.UserRole) error {
	c := ur.Constraint
	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET
			begin_time = ?, end_time = ?, begin_date = ?, end_date = ?,
			begin_lock_date = ?, end_lock_date = ?, day_mask = ?,
			timeout = ?, condition = ?
		 WHERE user_id = ? AND role = ? AND admin = 0`,
		c.BeginTime, c.EndTime, c.BeginDate, c.EndDate,
		c.BeginLockDate, c.EndLockDate, c.DayMask, c.Timeout, c.Condition,
		ur.UserID, ur.Role)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return role.ErrAssignmentNotFound
	}
	return nil
}

// GetUserAdminAssignments returns the user's admin-role assignments.
func (s *Store) GetUserAdminAssignments(ctx context.Context, userID string) ([]role.UserAdminRole, error) {
	rows, err := s.queryAssignments(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	out := make([]role.UserAdminRole, 0, len(rows))
	for _, a := range rows {
		out = append(out, role.UserAdminRole{UserID: a.userID, Role: a.role, Constraint: a.c})
	}
	return out, nil
}

// SaveAdminAssignment persists a new admin-role assignment.
func (s *Store) SaveAdminAssignment(ctx context.Context, ur role.UserAdminRole) error {
	return s.insertAssignment(ctx, ur.UserID, ur.Role, 1, ur.Constraint)
}

// RemoveAdminAssignment deletes an admin-role assignment.
func (s *Store) RemoveAdminAssignment(ctx context.Context, userID, roleName string) error {
	return s.deleteAssignment(ctx, userID, roleName, 1)
}

// GetSets returns all separation-of-duty sets of the given type.
func (s *Store) GetSets(ctx context.Context, t sod.SetType) ([]sod.SDSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, type, cardinality FROM sd_sets WHERE type = ?`, string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sod.SDSet
	for rows.Next() {
		var set sod.SDSet
		var typ string
		if err := rows.Scan(&set.Name, &set.Description, &typ, &set.Cardinality); err != nil {
			return nil, err
		}
		set.Type = sod.SetType(typ)
		out = append(out, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Members, err = s.setMembers(ctx, out[i].Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetSet returns a separation-of-duty set by name.
func (s *Store) GetSet(ctx context.Context, name string) (*sod.SDSet, error) {
	var set sod.SDSet
	var typ string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, type, cardinality FROM sd_sets WHERE name = ?`, name).
		Scan(&set.Name, &set.Description, &typ, &set.Cardinality)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sod.ErrSetNotFound
	}
	if err != nil {
		return nil, err
	}
	set.Type = sod.SetType(typ)
	if set.Members, err = s.setMembers(ctx, name); err != nil {
		return nil, err
	}
	return &set, nil
}

// SaveSet creates or updates a separation-of-duty set.
func (s *Store) SaveSet(ctx context.Context, set *sod.SDSet) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sd_sets (name, description, type, cardinality) VALUES (?, ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
				description = excluded.description, type = excluded.type, cardinality = excluded.cardinality`,
			set.Name, set.Description, string(set.Type), set.Cardinality); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sd_set_members WHERE set_name = ?`, set.Name); err != nil {
			return err
		}
		for _, m := range set.Members {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO sd_set_members (set_name, role) VALUES (?, ?)`, set.Name, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteSet removes a separation-of-duty set.
func (s *Store) DeleteSet(ctx context.Context, name string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sd_sets WHERE name = ?`, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sod.ErrSetNotFound
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM sd_set_members WHERE set_name = ?`, name)
		return err
	})
}

// GetPermission returns a permission by coordinates.
func (s *Store) GetPermission(ctx context.Context, objName, opName, objID string) (*perm.Permission, error) {
	p := perm.Permission{ObjName: objName, OpName: opName, ObjID: objID}
	err := s.db.QueryRowContext(ctx,
		`SELECT ou FROM permissions WHERE obj_name = ? AND op_name = ? AND obj_id = ?`,
		objName, opName, objID).Scan(&p.OU)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perm.ErrPermissionNotFound
	}
	if err != nil {
		return nil, err
	}
	key := perm.Key(objName, opName, objID)
	if p.Roles, err = s.permList(ctx, "perm_roles", "role", key); err != nil {
		return nil, err
	}
	if p.Users, err = s.permList(ctx, "perm_users", "user_id", key); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAllPermissions returns every permission.
func (s *Store) GetAllPermissions(ctx context.Context) ([]perm.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT obj_name, op_name, obj_id FROM permissions`)
	if err != nil {
		return nil, err
	}
	type coord struct{ obj, op, id string }
	var coords []coord
	for rows.Next() {
		var c coord
		if err := rows.Scan(&c.obj, &c.op, &c.id); err != nil {
			rows.Close()
			return nil, err
		}
		coords = append(coords, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	out := make([]perm.Permission, 0, len(coords))
	for _, c := range coords {
		p, err := s.GetPermission(ctx, c.obj, c.op, c.id)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// SavePermission creates or updates a permission.
func (s *Store) SavePermission(ctx context.Context, p *perm.Permission) error {
	key := perm.Key(p.ObjName, p.OpName, p.ObjID)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permissions (obj_name, op_name, obj_id, ou) VALUES (?, ?, ?, ?)
			 ON CONFLICT (obj_name, op_name, obj_id) DO UPDATE SET ou = excluded.ou`,
			p.ObjName, p.OpName, p.ObjID, p.OU); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM perm_roles WHERE perm_key = ?`, key); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM perm_users WHERE perm_key = ?`, key); err != nil {
			return err
		}
		for _, r := range p.Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO perm_roles (perm_key, role) VALUES (?, ?)`, key, r); err != nil {
				return err
			}
		}
		for _, u := range p.Users {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO perm_users (perm_key, user_id) VALUES (?, ?)`, key, u); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePermission removes a permission and its grants.
func (s *Store) DeletePermission(ctx context.Context, objName, opName, objID string) error {
	key := perm.Key(objName, opName, objID)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM permissions WHERE obj_name = ? AND op_name = ? AND obj_id = ?`,
			objName, opName, objID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perm.ErrPermissionNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM perm_roles WHERE perm_key = ?`, key); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM perm_users WHERE perm_key = ?`, key)
		return err
	})
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*auth.User, error) {
	u := auth.User{ID: id}
	var props string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, ou, password_hash, props FROM users WHERE id = ?`, id).
		Scan(&u.Name, &u.OU, &u.PasswordHash, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(props), &u.Props); err != nil {
		return nil, fmt.Errorf("failed to decode user props: %w", err)
	}
	return &u, nil
}

// GetAllUsers returns every user.
func (s *Store) GetAllUsers(ctx context.Context) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ou, password_hash, props FROM users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.User
	for rows.Next() {
		var u auth.User
		var props string
		if err := rows.Scan(&u.ID, &u.Name, &u.OU, &u.PasswordHash, &props); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &u.Props); err != nil {
			return nil, fmt.Errorf("failed to decode user props: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveUser creates or updates a user.
func (s *Store) SaveUser(ctx context.Context, u *auth.User) error {
	props, err := json.Marshal(u.Props)
	if err != nil {
		return fmt.Errorf("failed to encode user props: %w", err)
	}
	if u.Props == nil {
		props = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, ou, password_hash, props) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, ou = excluded.ou,
			password_hash = excluded.password_hash, props = excluded.props`,
		u.ID, u.Name, u.OU, u.PasswordHash, string(props))
	return err
}

// DeleteUser removes a user by ID.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

type assignmentRow struct {
	userID string
	role   string
	c      constraint.Constraint
}

func (s *Store) queryAssignments(ctx context.Context, userID string, admin int) ([]assignmentRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, role, begin_time, end_time, begin_date, end_date,
		        begin_lock_date, end_lock_date, day_mask, timeout, condition
		 FROM assignments WHERE user_id = ? AND admin = ?`, userID, admin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assignmentRow
	for rows.Next() {
		var a assignmentRow
		if err := scanAssignment(rows, &a.userID, &a.role, &a.c); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(rows *sql.Rows, userID, roleName *string, c *constraint.Constraint) error {
	return rows.Scan(userID, roleName,
		&c.BeginTime, &c.EndTime, &c.BeginDate, &c.EndDate,
		&c.BeginLockDate, &c.EndLockDate, &c.DayMask, &c.Timeout, &c.Condition)
}

func (s *Store) insertAssignment(ctx context.Context, userID, roleName string, admin int, c constraint.Constraint) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO assignments
			(user_id, role, admin, begin_time, end_time, begin_date, end_date,
			 begin_lock_date, end_lock_date, day_mask, timeout, condition)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, roleName, admin,
		c.BeginTime, c.EndTime, c.BeginDate, c.EndDate,
		c.BeginLockDate, c.EndLockDate, c.DayMask, c.Timeout, c.Condition)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return role.ErrAssignmentExists
	}
	return nil
}

func (s *Store) deleteAssignment(ctx context.Context, userID, roleName string, admin int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assignments WHERE user_id = ? AND role = ? AND admin = ?`,
		userID, roleName, admin)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return role.ErrAssignmentNotFound
	}
	return nil
}

func (s *Store) parents(ctx context.Context, table, child string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT parent FROM `+table+` WHERE child = ?`, child)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) adminOUs(ctx context.Context, roleName, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ou FROM admin_role_ous WHERE role = ? AND kind = ?`, roleName, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ou string
		if err := rows.Scan(&ou); err != nil {
			return nil, err
		}
		out = append(out, ou)
	}
	return out, rows.Err()
}

func (s *Store) setMembers(ctx context.Context, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role FROM sd_set_members WHERE set_name = ?`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) permList(ctx context.Context, table, col, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+col+` FROM `+table+` WHERE perm_key = ?`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func replaceParents(ctx context.Context, tx *sql.Tx, table, child string, parents []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE child = ?`, child); err != nil {
		return err
	}
	for _, p := range parents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (child, parent) VALUES (?, ?)`, child, p); err != nil {
			return err
		}
	}
	return nil
}
