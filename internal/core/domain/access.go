package domain

// AccessRule is the declarative requirement attached to a protected view.
type AccessRule struct {
	RequireAuth bool
	Roles       RoleSet
	Permissions PermissionSet
}

// Public renders for everyone.
func Public() AccessRule {
	return AccessRule{}
}

// Authenticated renders for any session.
func Authenticated() AccessRule {
	return AccessRule{RequireAuth: true}
}

// RequireRoles renders for sessions whose role is one of roles.
func RequireRoles(roles ...Role) AccessRule {
	return AccessRule{RequireAuth: true, Roles: NewRoleSet(roles...)}
}

// RequirePermissions renders for sessions holding every listed permission.
func RequirePermissions(perms ...Permission) AccessRule {
	return AccessRule{RequireAuth: true, Permissions: NewPermissionSet(perms...)}
}

// Clone returns a rule that shares no sets with r.
func (r AccessRule) Clone() AccessRule {
	r.Roles = r.Roles.Clone()
	r.Permissions = r.Permissions.Clone()
	return r
}

// NeedsSession reports whether the rule turns away clients without a session.
func (r AccessRule) NeedsSession() bool {
	return r.RequireAuth || !r.Roles.Empty() || !r.Permissions.Empty()
}

type Outcome int

const (
	OutcomeRender Outcome = iota
	OutcomeRedirect
)

func (o Outcome) String() string {
	if o == OutcomeRedirect {
		return "redirect"
	}
	return "render"
}

const (
	ReasonUnauthenticated   = "unauthenticated"
	ReasonRoleNotAllowed    = "role_not_allowed"
	ReasonPermissionMissing = "permission_missing"
)

// Decision is the guard's verdict for one view.
type Decision struct {
	Outcome Outcome
	Path    string
	Reason  string
}

func Render() Decision {
	return Decision{Outcome: OutcomeRender}
}

func Redirect(path, reason string) Decision {
	return Decision{Outcome: OutcomeRedirect, Path: path, Reason: reason}
}

func (d Decision) Rendered() bool {
	return d.Outcome == OutcomeRender
}
