package authz

import "fmt"

// Capability names a protected operation family.
type Capability string

const (
	CanCreateBooking     Capability = "booking:create"
	CanViewAllBookings   Capability = "booking:view_all"
	CanManageBookings    Capability = "booking:manage"
	CanCheckIn           Capability = "booking:check_in"
	CanCreateOrder       Capability = "order:create"
	CanViewAllOrders     Capability = "order:view_all"
	CanUpdateOrderStatus Capability = "order:update_status"
	CanManageCatalog     Capability = "catalog:manage"
	CanDeleteCatalog     Capability = "catalog:delete"
	CanViewStats         Capability = "stats:view"
	CanManageUsers       Capability = "users:manage"
)

// orderDesk is every role that works an order queue.
var orderDesk = Union("orderDesk", AdminOnly, StaffOnly)

// capabilities is the single source of truth for who may do what.
var capabilities = map[Capability]Policy{
	CanCreateBooking:     Authenticated,
	CanViewAllBookings:   AdminOrManager,
	CanManageBookings:    AdminOrManager,
	CanCheckIn:           AdminOrManager,
	CanCreateOrder:       Authenticated,
	CanViewAllOrders:     orderDesk,
	CanUpdateOrderStatus: orderDesk,
	CanManageCatalog:     AdminOrManager,
	CanDeleteCatalog:     AdminOnly,
	CanViewStats:         AdminOrManager,
	CanManageUsers:       AdminOnly,
}

// PolicyFor returns the policy registered for c. Unknown capabilities
// panic: a typo here must not silently open an endpoint.
func PolicyFor(c Capability) Policy {
	p, ok := capabilities[c]
	if !ok {
		panic(fmt.Sprintf("authz: no policy registered for capability %q", c))
	}
	return p
}

// Can reports whether role holds capability c.
func Can(role Role, c Capability) bool {
	return PolicyFor(c).Allows(role)
}

// Require authorizes id for capability c.
func Require(id *Identity, c Capability) error {
	return Authorize(id, PolicyFor(c))
}

// Capabilities lists every registered capability.
func Capabilities() []Capability {
	out := make([]Capability, 0, len(capabilities))
	for c := range capabilities {
		out = append(out, c)
	}
	return out
}

// OrderScope describes which orders, beyond their own, a role may see.
// Departments holds department names as stored on orders.
type OrderScope struct {
	All         bool
	Departments []string
}

// Includes reports whether orders of department dept fall in the scope.
func (s OrderScope) Includes(dept string) bool {
	if s.All {
		return true
	}
	for _, d := range s.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// ScopeFor returns the order scope of role.  Head cooks work the catering
// desk and supervisors the stationery desk; voyagers only see their own.
func ScopeFor(role Role) OrderScope {
	switch role {
	case Admin, Manager:
		return OrderScope{All: true}
	case HeadCook:
		return OrderScope{Departments: []string{"catering"}}
	case Supervisor:
		return OrderScope{Departments: []string{"stationery"}}
	}
	return OrderScope{}
}
