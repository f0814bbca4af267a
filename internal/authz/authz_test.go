package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
)

func TestNamedPolicies(t *testing.T) {
	tests := []struct {
		policy  Policy
		allowed []Role
	}{
		{AdminOnly, []Role{Admin}},
		{AdminOrManager, []Role{Admin, Manager}},
		{KitchenStaff, []Role{Manager, HeadCook}},
		{StationeryStaff, []Role{Manager, Supervisor}},
		{StaffOnly, []Role{Manager, HeadCook, Supervisor}},
		{AllRoles, Roles},
		{Authenticated, Roles},
	}
	for _, tt := range tests {
		t.Run(tt.policy.Name(), func(t *testing.T) {
			allowed := map[Role]bool{}
			for _, r := range tt.allowed {
				allowed[r] = true
			}
			for _, r := range Roles {
				assert.Equal(t, allowed[r], tt.policy.Allows(r), "role %s", r)
			}
			assert.ElementsMatch(t, tt.allowed, tt.policy.Roles())
		})
	}
}

func TestAuthorize(t *testing.T) {
	err := Authorize(nil, AllRoles)
	assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))

	voyager := &Identity{UserID: 1, Role: Voyager}
	err = Authorize(voyager, AdminOrManager)
	assert.True(t, errors.Is(err, apperr.ErrInsufficientRole))

	assert.NoError(t, Authorize(voyager, Authenticated))
	assert.NoError(t, Authorize(&Identity{UserID: 2, Role: Manager}, AdminOrManager))
}

func TestEmptyPolicyDeniesEveryone(t *testing.T) {
	empty := newPolicy("empty")
	for _, r := range Roles {
		assert.False(t, empty.Allows(r))
	}
	assert.False(t, Authenticated.Allows(Role("crew")))
}

func TestCapabilityTable(t *testing.T) {
	tests := []struct {
		cap     Capability
		allowed []Role
	}{
		{CanCreateBooking, Roles},
		{CanViewAllBookings, []Role{Admin, Manager}},
		{CanCheckIn, []Role{Admin, Manager}},
		{CanManageCatalog, []Role{Admin, Manager}},
		{CanDeleteCatalog, []Role{Admin}},
		{CanViewAllOrders, []Role{Admin, Manager, HeadCook, Supervisor}},
		{CanUpdateOrderStatus, []Role{Admin, Manager, HeadCook, Supervisor}},
		{CanManageUsers, []Role{Admin}},
	}
	for _, tt := range tests {
		t.Run(string(tt.cap), func(t *testing.T) {
			for _, r := range Roles {
				want := false
				for _, a := range tt.allowed {
					if a == r {
						want = true
					}
				}
				assert.Equal(t, want, Can(r, tt.cap), "role %s", r)
			}
		})
	}
}

func TestEveryCapabilityHasPolicy(t *testing.T) {
	for _, c := range Capabilities() {
		assert.NotPanics(t, func() { PolicyFor(c) })
	}
	assert.Panics(t, func() { PolicyFor(Capability("nope")) })
}

func TestRoleMapping(t *testing.T) {
	m, err := ParseRoleMapping(DefaultRoleAliases)
	require.NoError(t, err)

	r, err := m.Resolve("crew")
	require.NoError(t, err)
	assert.Equal(t, Manager, r)

	r, err = m.Resolve(" Staff ")
	require.NoError(t, err)
	assert.Equal(t, Supervisor, r)

	r, err = m.Resolve("head-cook")
	require.NoError(t, err)
	assert.Equal(t, HeadCook, r)

	_, err = m.Resolve("captain")
	assert.Error(t, err)
	assert.Equal(t, []string{"crew", "staff"}, m.Aliases())
}

func TestParseRoleMappingRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"crew", "crew=captain", "admin=manager"} {
		_, err := ParseRoleMapping(raw)
		assert.Error(t, err, raw)
	}
	m, err := ParseRoleMapping("")
	require.NoError(t, err)
	_, err = m.Resolve("crew")
	assert.Error(t, err)
}

func TestScopeFor(t *testing.T) {
	assert.True(t, ScopeFor(Admin).Includes("stationery"))
	assert.True(t, ScopeFor(Manager).Includes("catering"))

	cook := ScopeFor(HeadCook)
	assert.True(t, cook.Includes("catering"))
	assert.False(t, cook.Includes("stationery"))

	sup := ScopeFor(Supervisor)
	assert.Equal(t, []string{"stationery"}, sup.Departments)

	assert.False(t, ScopeFor(Voyager).Includes("catering"))
	assert.Empty(t, ScopeFor(Voyager).Departments)
}
