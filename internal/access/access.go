// Package access holds the authorization predicates gating every view and
// mutation. Checks are stateless and re-evaluated on every attempt; nothing
// here caches a decision.
package access

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleEditor  Role = "editor"
	RoleViewer  Role = "viewer"
)

// ParseRole maps a stored string onto the role enumeration. Unknown strings
// yield ok=false and never match a role gate.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleEditor, RoleViewer:
		return Role(s), true
	}
	return "", false
}

// Permission is a single grant from the catalog. PermAll is the universal
// wildcard: holding it satisfies any requirement. It is a distinct enumerant
// rather than a magic string so the special case is visible in signatures.
type Permission string

const (
	PermAll Permission = "all"

	PermProjectsView   Permission = "projects.view"
	PermProjectsCreate Permission = "projects.create"
	PermProjectsEdit   Permission = "projects.edit"
	PermProjectsDelete Permission = "projects.delete"

	PermTendersView   Permission = "tenders.view"
	PermTendersCreate Permission = "tenders.create"
	PermTendersEdit   Permission = "tenders.edit"
	PermTendersDelete Permission = "tenders.delete"

	PermDashboardView Permission = "dashboard.view"
	PermReportsView   Permission = "reports.view"
	PermSettingsView  Permission = "settings.view"
	PermSettingsEdit  Permission = "settings.edit"
)

// Catalog lists every specific permission (the wildcard excluded).
func Catalog() []Permission {
	return []Permission{
		PermProjectsView, PermProjectsCreate, PermProjectsEdit, PermProjectsDelete,
		PermTendersView, PermTendersCreate, PermTendersEdit, PermTendersDelete,
		PermDashboardView, PermReportsView, PermSettingsView, PermSettingsEdit,
	}
}

// Principal is the authenticated actor whose role and grants gate an action.
type Principal struct {
	UserID      string
	Role        Role
	Permissions []Permission
}

// Decision is the outcome of a route guard check. The two denial reasons are
// distinct because the caller redirects differently: unauthenticated goes to
// login, forbidden goes to the unauthorized page.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyForbidden:
		return "deny_forbidden"
	}
	return "unknown"
}

// RoleAllowed reports whether role passes a role restriction. An empty
// restriction set means unrestricted.
func RoleAllowed(role Role, allowed []Role) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// PermissionAllowed reports whether granted covers every required permission.
// An empty requirement passes; PermAll in granted satisfies everything.
func PermissionAllowed(granted []Permission, required []Permission) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[Permission]struct{}, len(granted))
	for _, p := range granted {
		if p == PermAll {
			return true
		}
		have[p] = struct{}{}
	}
	for _, need := range required {
		if _, ok := have[need]; !ok {
			return false
		}
	}
	return true
}

// Authorize composes the route guard: authentication, then role, then
// permission. The order is observable: an unauthenticated caller always gets
// DenyUnauthenticated, even when it would also fail the permission gate.
func Authorize(p *Principal, required []Permission, allowedRoles []Role) Decision {
	if p == nil {
		return DenyUnauthenticated
	}
	if len(allowedRoles) > 0 && !RoleAllowed(p.Role, allowedRoles) {
		return DenyForbidden
	}
	if len(required) > 0 && !PermissionAllowed(p.Permissions, required) {
		return DenyForbidden
	}
	return Allow
}

// DefaultPermissions is the stock grant set for each role, used when an
// account is created and when an admin resets a user's access.
func DefaultPermissions(role Role) []Permission {
	switch role {
	case RoleAdmin:
		return []Permission{PermAll}
	case RoleManager:
		return []Permission{
			PermProjectsView, PermProjectsCreate, PermProjectsEdit, PermProjectsDelete,
			PermTendersView, PermTendersCreate, PermTendersEdit, PermTendersDelete,
			PermDashboardView, PermReportsView,
		}
	case RoleEditor:
		return []Permission{
			PermProjectsView, PermProjectsCreate, PermProjectsEdit,
			PermTendersView, PermTendersCreate, PermTendersEdit,
			PermDashboardView, PermReportsView,
		}
	case RoleViewer:
		return []Permission{
			PermProjectsView, PermTendersView, PermDashboardView, PermReportsView,
		}
	}
	return nil
}

// ToStrings converts a grant list for storage.
func ToStrings(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	return out
}

// FromStrings converts stored grants back to permissions. Unknown tokens are
// kept as-is; they simply never match a requirement.
func FromStrings(tokens []string) []Permission {
	out := make([]Permission, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, Permission(t))
	}
	return out
}
