package access

import "testing"

func TestRoleAllowed(t *testing.T) {
	cases := []struct {
		name    string
		role    Role
		allowed []Role
		want    bool
	}{
		{"empty restriction allows all", RoleViewer, nil, true},
		{"member role passes", RoleAdmin, []Role{RoleAdmin, RoleManager}, true},
		{"non-member role fails", RoleViewer, []Role{RoleAdmin}, false},
		{"unknown role never matches", Role("superuser"), []Role{RoleAdmin}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleAllowed(tc.role, tc.allowed); got != tc.want {
				t.Fatalf("roleAllowed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPermissionAllowed(t *testing.T) {
	cases := []struct {
		name     string
		granted  []Permission
		required []Permission
		want     bool
	}{
		{"empty requirement passes", nil, nil, true},
		{"exact grant passes", []Permission{PermProjectsView}, []Permission{PermProjectsView}, true},
		{"missing grant fails", []Permission{PermProjectsView}, []Permission{PermProjectsDelete}, false},
		{"all required must be present", []Permission{PermProjectsView}, []Permission{PermProjectsView, PermTendersView}, false},
		{"wildcard satisfies anything", []Permission{PermAll}, []Permission{PermTendersDelete}, true},
		{"wildcard satisfies unknown tokens", []Permission{PermAll}, []Permission{Permission("made.up")}, true},
		{"unknown grant never matches", []Permission{Permission("made.up")}, []Permission{PermProjectsView}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := PermissionAllowed(tc.granted, tc.required); got != tc.want {
				t.Fatalf("permissionAllowed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorizeOrder(t *testing.T) {
	viewer := &Principal{UserID: "u1", Role: RoleViewer, Permissions: []Permission{PermProjectsView}}

	// Authentication is checked first, even with no requirements at all.
	if got := Authorize(nil, nil, nil); got != DenyUnauthenticated {
		t.Fatalf("nil principal = %v, want DenyUnauthenticated", got)
	}
	// And before role/permission, so an unauthenticated caller missing
	// permissions still sees the authentication denial.
	if got := Authorize(nil, []Permission{PermProjectsDelete}, []Role{RoleAdmin}); got != DenyUnauthenticated {
		t.Fatalf("nil principal with requirements = %v, want DenyUnauthenticated", got)
	}
	// Role gate is evaluated before the permission gate.
	if got := Authorize(viewer, []Permission{PermProjectsView}, []Role{RoleAdmin}); got != DenyForbidden {
		t.Fatalf("role gate = %v, want DenyForbidden", got)
	}
	if got := Authorize(viewer, []Permission{PermProjectsDelete}, nil); got != DenyForbidden {
		t.Fatalf("permission gate = %v, want DenyForbidden", got)
	}
	if got := Authorize(viewer, []Permission{PermProjectsView}, []Role{RoleViewer}); got != Allow {
		t.Fatalf("allow = %v, want Allow", got)
	}
	if got := Authorize(viewer, nil, nil); got != Allow {
		t.Fatalf("unrestricted = %v, want Allow", got)
	}
}

func TestAuthorizeIdempotent(t *testing.T) {
	p := &Principal{UserID: "u1", Role: RoleEditor, Permissions: DefaultPermissions(RoleEditor)}
	first := Authorize(p, []Permission{PermTendersEdit}, nil)
	second := Authorize(p, []Permission{PermTendersEdit}, nil)
	if first != second || first != Allow {
		t.Fatalf("expected stable Allow, got %v then %v", first, second)
	}
}

func TestDefaultPermissions(t *testing.T) {
	if perms := DefaultPermissions(RoleAdmin); len(perms) != 1 || perms[0] != PermAll {
		t.Fatalf("admin defaults = %v", perms)
	}
	if !PermissionAllowed(DefaultPermissions(RoleManager), []Permission{PermProjectsDelete, PermReportsView}) {
		t.Fatal("manager should hold delete and reports grants")
	}
	if PermissionAllowed(DefaultPermissions(RoleEditor), []Permission{PermProjectsDelete}) {
		t.Fatal("editor must not hold delete")
	}
	if PermissionAllowed(DefaultPermissions(RoleViewer), []Permission{PermProjectsCreate}) {
		t.Fatal("viewer must not hold create")
	}
	if DefaultPermissions(Role("bogus")) != nil {
		t.Fatal("unknown role has no defaults")
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("manager"); !ok || r != RoleManager {
		t.Fatalf("parse manager = %v %v", r, ok)
	}
	if _, ok := ParseRole("root"); ok {
		t.Fatal("unknown role should not parse")
	}
}
