package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	celeval "github.com/RoleGate/rolegate/internal/adapter/outbound/cel"
	"github.com/RoleGate/rolegate/internal/domain/auth"
	"github.com/RoleGate/rolegate/internal/domain/constraint"
	"github.com/RoleGate/rolegate/internal/domain/perm"
	"github.com/RoleGate/rolegate/internal/domain/role"
	"github.com/RoleGate/rolegate/internal/domain/session"
	"github.com/RoleGate/rolegate/internal/domain/sod"
)

// ErrRoleNotValid is returned by the strict activation path when the
// assignment's temporal constraint or activation condition does not
// hold right now.
var ErrRoleNotValid = errors.New("role not currently valid")

// AccessService builds sessions and answers access-check queries. It
// orchestrates the hierarchy graphs, the temporal evaluator, and the
// separation-of-duty checks.
type AccessService struct {
	users    auth.Store
	roles    role.Store
	sdsets   sod.Store
	perms    perm.Store
	sessions session.Store
	creds    *auth.CredentialService
	cond     *celeval.Evaluator
	hier     *Hierarchies
	cache    *decisionCache
	metrics  *Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

// AccessServiceOption configures AccessService.
type AccessServiceOption func(*AccessService)

// WithDecisionCacheSize sets the maximum number of cached decisions.
func WithDecisionCacheSize(size int) AccessServiceOption {
	return func(s *AccessService) {
		s.cache = newDecisionCache(size)
	}
}

// WithClock overrides the time source. For tests.
func WithClock(clock func() time.Time) AccessServiceOption {
	return func(s *AccessService) {
		s.clock = clock
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) AccessServiceOption {
	return func(s *AccessService) {
		s.metrics = m
	}
}

// NewAccessService creates an AccessService over the given stores and
// graphs. The credential service may be nil when every caller is a
// trusted front end.
func NewAccessService(
	users auth.Store,
	roles role.Store,
	sdsets sod.Store,
	perms perm.Store,
	sessions session.Store,
	creds *auth.CredentialService,
	hier *Hierarchies,
	logger *slog.Logger,
	opts ...AccessServiceOption,
) (*AccessService, error) {
	cond, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create condition evaluator: %w", err)
	}
	s := &AccessService{
		users:    users,
		roles:    roles,
		sdsets:   sdsets,
		perms:    perms,
		sessions: sessions,
		creds:    creds,
		cond:     cond,
		hier:     hier,
		cache:    newDecisionCache(1000),
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Session stores with a background sweep report evictions of
	// still-active sessions so the sessions gauge stays in line.
	if n, ok := sessions.(sessionEvictNotifier); ok {
		n.OnEvict(func(*session.Session) {
			if s.metrics != nil {
				s.metrics.ActiveSessions.Dec()
			}
		})
	}
	return s, nil
}

// sessionEvictNotifier is implemented by session stores that reap
// expired sessions on their own.
type sessionEvictNotifier interface {
	OnEvict(func(*session.Session))
}

// CreateSession authenticates the user (unless trusted), activates
// every currently-valid assigned role that survives the dynamic
// separation-of-duty filter, and returns the session. Skipped roles
// degrade to warnings on the session; construction only fails on
// credential or store errors.
//
// Props are runtime constraint properties. They are merged over the
// user's directory attributes and fed to each role's activation
// condition.
func (s *AccessService) CreateSession(ctx context.Context, userID, password string, props map[string]string, trusted bool) (*session.Session, error) {
	var user *auth.User
	var err error
	if trusted {
		user, err = s.users.GetUser(ctx, userID)
	} else {
		if s.creds == nil {
			return nil, auth.ErrInvalidCredentials
		}
		user, err = s.creds.Authenticate(ctx, userID, password)
	}
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string, len(user.Props)+len(props))
	for k, v := range user.Props {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}

	now := s.clock().UTC()
	sess := &session.Session{
		ID:         session.NewID(),
		UserID:     user.ID,
		OU:         user.OU,
		State:      session.StateUnauthenticated,
		CreatedAt:  now,
		LastAccess: now,
	}

	dsd, err := s.sdsets.GetSets(ctx, sod.Dynamic)
	if err != nil {
		return nil, fmt.Errorf("failed to load dynamic sd sets: %w", err)
	}

	assigned, err := s.roles.GetUserAssignments(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	for _, ur := range assigned {
		s.activateLenient(ctx, sess, ur.Role, ur.Constraint, false, merged, now, dsd)
	}

	adminAssigned, err := s.roles.GetUserAdminAssignments(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin assignments: %w", err)
	}
	for _, ur := range adminAssigned {
		s.activateLenient(ctx, sess, ur.Role, ur.Constraint, true, merged, now, dsd)
	}

	sess.State = session.StateActive
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
		s.metrics.SessionWarnings.Add(float64(len(sess.Warnings)))
	}
	s.logger.Info("session created",
		"session_id", sess.ID,
		"user", sess.UserID,
		"active_roles", len(sess.ActiveRoles),
		"admin_roles", len(sess.AdminRoles),
		"warnings", len(sess.Warnings))
	return sess, nil
}

// activateLenient runs the activation checks for one assignment and
// either appends the role to the session or records a warning.
func (s *AccessService) activateLenient(ctx context.Context, sess *session.Session, roleName string, c constraint.Constraint, admin bool, props map[string]string, now time.Time, dsd []sod.SDSet) {
	if !c.IsValidAt(now) {
		sess.Warn(roleName, admin, "assignment not currently valid")
		return
	}

	condition, err := s.roleCondition(ctx, roleName, admin, c)
	if err != nil {
		sess.Warn(roleName, admin, "role not found in directory")
		return
	}
	if condition != "" {
		ok, err := s.cond.EvaluateExpression(condition, sess.UserID, sess.OU, roleName, props)
		if err != nil {
			sess.Warn(roleName, admin, fmt.Sprintf("activation condition error: %v", err))
			return
		}
		if !ok {
			sess.Warn(roleName, admin, "activation condition not satisfied")
			return
		}
	}

	closure := s.activeClosure(sess)
	for r := range expandClosure(s.hier.Graph(namespace(admin)), []string{roleName}) {
		closure[r] = struct{}{}
	}
	if err := sod.CheckDynamic(closure, dsd); err != nil {
		s.noteSodRejection("dynamic")
		sess.Warn(roleName, admin, err.Error())
		return
	}

	active := session.ActiveRole{Name: roleName, Constraint: c}
	if admin {
		sess.AdminRoles = append(sess.AdminRoles, active)
	} else {
		sess.ActiveRoles = append(sess.ActiveRoles, active)
	}
}

// AddActiveRole activates an assigned role in an existing session. The
// strict dual of the construction path: any failed check is an error,
// never a warning.
func (s *AccessService) AddActiveRole(ctx context.Context, sessionID, roleName string) (*session.Session, error) {
	now := s.clock().UTC()
	sess, err := s.liveSession(ctx, sessionID, now)
	if err != nil {
		return nil, err
	}
	if sess.HasActiveRole(roleName) {
		return nil, session.ErrRoleAlreadyActive
	}

	assigned, err := s.roles.GetUserAssignments(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	var ur *role.UserRole
	for i := range assigned {
		if assigned[i].Role == roleName {
			ur = &assigned[i]
			break
		}
	}
	if ur == nil {
		return nil, session.ErrRoleNotAssigned
	}

	if !ur.Constraint.IsValidAt(now) {
		return nil, ErrRoleNotValid
	}
	condition, err := s.roleCondition(ctx, roleName, false, ur.Constraint)
	if err != nil {
		return nil, err
	}
	if condition != "" {
		ok, err := s.cond.EvaluateExpression(condition, sess.UserID, sess.OU, roleName, nil)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRoleNotValid
		}
	}

	dsd, err := s.sdsets.GetSets(ctx, sod.Dynamic)
	if err != nil {
		return nil, fmt.Errorf("failed to load dynamic sd sets: %w", err)
	}
	closure := s.activeClosure(sess)
	for r := range expandClosure(s.hier.Roles(), []string{roleName}) {
		closure[r] = struct{}{}
	}
	if err := sod.CheckDynamic(closure, dsd); err != nil {
		s.noteSodRejection("dynamic")
		return nil, err
	}

	sess.ActiveRoles = append(sess.ActiveRoles, session.ActiveRole{Name: roleName, Constraint: ur.Constraint})
	sess.Touch(now)
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return sess, nil
}

// DropActiveRole deactivates a role in an existing session.
func (s *AccessService) DropActiveRole(ctx context.Context, sessionID, roleName string) (*session.Session, error) {
	now := s.clock().UTC()
	sess, err := s.liveSession(ctx, sessionID, now)
	if err != nil {
		return nil, err
	}

	found := false
	for i, r := range sess.ActiveRoles {
		if r.Name == roleName {
			sess.ActiveRoles = append(sess.ActiveRoles[:i:i], sess.ActiveRoles[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil, session.ErrRoleNotActive
	}

	sess.Touch(now)
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return sess, nil
}

// CheckAccess decides whether the session may perform the operation on
// the object. The active roles are expanded through the hierarchy; the
// permission's granted roles are intersected against that closure, with
// a direct user grant as fallback. Every check touches the session's
// last-access timestamp.
func (s *AccessService) CheckAccess(ctx context.Context, sessionID, objName, opName, objID string) (bool, error) {
	now := s.clock().UTC()
	sess, err := s.liveSession(ctx, sessionID, now)
	if err != nil {
		return false, err
	}

	sess.Touch(now)
	if err := s.sessions.Update(ctx, sess); err != nil {
		return false, fmt.Errorf("failed to touch session: %w", err)
	}

	key := decisionKey(sess.UserID, sess.ActiveRoleNames(), objName, opName, objID)
	if allowed, ok := s.cache.Get(key); ok {
		if s.metrics != nil {
			s.metrics.DecisionCacheHits.Inc()
		}
		return allowed, nil
	}
	if s.metrics != nil {
		s.metrics.DecisionCacheMiss.Inc()
	}

	p, err := s.perms.GetPermission(ctx, objName, opName, objID)
	if err != nil {
		return false, err
	}

	allowed := p.HasUser(sess.UserID)
	if !allowed {
		closure := expandClosure(s.hier.Roles(), sess.ActiveRoleNames())
		for _, granted := range p.Roles {
			if _, ok := closure[granted]; ok {
				allowed = true
				break
			}
		}
	}

	s.cache.Put(key, allowed)
	if s.metrics != nil {
		result := "deny"
		if allowed {
			result = "allow"
		}
		s.metrics.AccessDecisions.WithLabelValues(result).Inc()
	}
	s.logger.Debug("access decision",
		"session_id", sess.ID,
		"user", sess.UserID,
		"obj", objName, "op", opName,
		"allowed", allowed)
	return allowed, nil
}

// Terminate explicitly ends a session.
func (s *AccessService) Terminate(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	wasActive := sess.State == session.StateActive
	sess.State = session.StateTerminated
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	// An expired session was already taken off the gauge when the
	// expiry was recorded.
	if wasActive && s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	s.logger.Info("session terminated", "session_id", sessionID, "user", sess.UserID)
	return nil
}

// Session returns the current session state without touching it.
func (s *AccessService) Session(ctx context.Context, sessionID string) (*session.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

// noteSodRejection counts a separation-of-duty conflict. Safe on a nil
// receiver so collaborating services can report unconditionally.
func (s *AccessService) noteSodRejection(kind string) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.SodRejections.WithLabelValues(kind).Inc()
}

// InvalidateDecisions empties the decision cache. Called after grant or
// hierarchy changes.
func (s *AccessService) InvalidateDecisions() {
	s.cache.Clear()
}

// liveSession loads a session and enforces the state machine: expired
// and terminated sessions reject every operation.
func (s *AccessService) liveSession(ctx context.Context, sessionID string, now time.Time) (*session.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.State {
	case session.StateActive:
	case session.StateExpired:
		return nil, session.ErrSessionExpired
	default:
		return nil, session.ErrSessionNotActive
	}
	if sess.IsExpired(now) {
		sess.State = session.StateExpired
		_ = s.sessions.Update(ctx, sess)
		if s.metrics != nil {
			s.metrics.ActiveSessions.Dec()
		}
		return nil, session.ErrSessionExpired
	}
	return sess, nil
}

// activeClosure expands the session's active roles (both namespaces)
// through their hierarchies into one set.
func (s *AccessService) activeClosure(sess *session.Session) map[string]struct{} {
	closure := expandClosure(s.hier.Roles(), sess.ActiveRoleNames())
	for r := range expandClosure(s.hier.Admin(), sess.AdminRoleNames()) {
		closure[r] = struct{}{}
	}
	return closure
}

// roleCondition returns the activation condition for a role: the
// assignment-level condition when present, else the role's own.
func (s *AccessService) roleCondition(ctx context.Context, roleName string, admin bool, c constraint.Constraint) (string, error) {
	if c.Condition != "" {
		return c.Condition, nil
	}
	if admin {
		r, err := s.roles.GetAdminRole(ctx, roleName)
		if err != nil {
			return "", err
		}
		return r.Condition, nil
	}
	r, err := s.roles.GetRole(ctx, roleName)
	if err != nil {
		return "", err
	}
	return r.Condition, nil
}

// namespace maps the admin flag to a role namespace.
func namespace(admin bool) role.Namespace {
	if admin {
		return role.NamespaceAdmin
	}
	return role.NamespaceRole
}
