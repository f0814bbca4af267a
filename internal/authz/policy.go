package authz

import (
	"github.com/iliyamo/cruise-services/internal/apperr"
)

// Identity is a resolved, active caller. Role always comes from the live
// user record, never from token claims.
type Identity struct {
	UserID    uint64
	Email     string
	FirstName string
	LastName  string
	Role      Role
}

// HasCompleteProfile reports whether the fields required to book are set.
func (id Identity) HasCompleteProfile() bool {
	return id.FirstName != "" && id.LastName != "" && id.Email != ""
}

// Policy is a named set of permitted roles. A policy with anyRole set
// admits every authenticated caller; that has to be requested explicitly
// through Authenticated, an empty role list is never read as "anyone".
type Policy struct {
	name    string
	roles   map[Role]bool
	anyRole bool
}

func newPolicy(name string, roles ...Role) Policy {
	set := make(map[Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return Policy{name: name, roles: set}
}

// Named policies shared by routes and services.
var (
	AdminOnly       = newPolicy("adminOnly", Admin)
	AdminOrManager  = newPolicy("adminOrManager", Admin, Manager)
	KitchenStaff    = newPolicy("kitchenStaff", Manager, HeadCook)
	StationeryStaff = newPolicy("stationeryStaff", Manager, Supervisor)
	StaffOnly       = newPolicy("staffOnly", Manager, HeadCook, Supervisor)
	AllRoles        = newPolicy("allRoles", Voyager, Admin, Manager, HeadCook, Supervisor)
	Authenticated   = Policy{name: "authenticated", anyRole: true}
)

// Name returns the policy name used in logs and error messages.
func (p Policy) Name() string { return p.name }

// Allows reports whether role satisfies the policy.
func (p Policy) Allows(role Role) bool {
	if p.anyRole {
		return role.Valid()
	}
	return p.roles[role]
}

// Roles returns the permitted roles in canonical order.
func (p Policy) Roles() []Role {
	out := make([]Role, 0, len(p.roles))
	for _, r := range Roles {
		if p.anyRole || p.roles[r] {
			out = append(out, r)
		}
	}
	return out
}

// Union combines policies under a new name.
func Union(name string, ps ...Policy) Policy {
	out := Policy{name: name, roles: map[Role]bool{}}
	for _, p := range ps {
		if p.anyRole {
			out.anyRole = true
		}
		for r := range p.roles {
			out.roles[r] = true
		}
	}
	return out
}

// Authorize checks id against p. It fails with Unauthenticated when no
// identity was resolved and InsufficientRole when the role is outside p.
func Authorize(id *Identity, p Policy) error {
	if id == nil {
		return apperr.New(apperr.Unauthenticated, "authentication required")
	}
	if !p.Allows(id.Role) {
		return apperr.New(apperr.InsufficientRole, "role %s is not permitted (%s)", id.Role, p.name)
	}
	return nil
}
