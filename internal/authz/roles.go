// Package authz holds the role vocabulary, the named role policies and the
// capability table every protected operation is checked against. Nothing in
// this package performs I/O.
package authz

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	Voyager    Role = "voyager"
	Admin      Role = "admin"
	Manager    Role = "manager"
	HeadCook   Role = "head-cook"
	Supervisor Role = "supervisor"
)

// Roles lists every canonical role.
var Roles = []Role{Voyager, Admin, Manager, HeadCook, Supervisor}

// Valid reports whether r is a canonical role.
func (r Role) Valid() bool {
	switch r {
	case Voyager, Admin, Manager, HeadCook, Supervisor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// RoleMapping translates stored or legacy role labels to canonical roles.
// Older records use "crew" and "staff"; where they land is deployment
// configuration, not a guess made in code.
type RoleMapping struct {
	aliases map[string]Role
}

// DefaultRoleAliases maps the legacy vocabulary onto the canonical one.
const DefaultRoleAliases = "crew=manager,staff=supervisor"

// ParseRoleMapping parses "legacy=canonical" pairs separated by commas.
func ParseRoleMapping(raw string) (RoleMapping, error) {
	m := RoleMapping{aliases: map[string]Role{}}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		if !ok {
			return RoleMapping{}, fmt.Errorf("role alias %q: expected legacy=canonical", pair)
		}
		from = strings.ToLower(strings.TrimSpace(from))
		target := Role(strings.ToLower(strings.TrimSpace(to)))
		if !target.Valid() {
			return RoleMapping{}, fmt.Errorf("role alias %q: unknown target role %q", pair, target)
		}
		if Role(from).Valid() {
			return RoleMapping{}, fmt.Errorf("role alias %q: %q is already a canonical role", pair, from)
		}
		m.aliases[from] = target
	}
	return m, nil
}

// MustRoleMapping is ParseRoleMapping for compile-time constant input.
func MustRoleMapping(raw string) RoleMapping {
	m, err := ParseRoleMapping(raw)
	if err != nil {
		panic(err)
	}
	return m
}

// Resolve maps a stored label to a canonical role. Unknown labels fail.
func (m RoleMapping) Resolve(label string) (Role, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	if r := Role(l); r.Valid() {
		return r, nil
	}
	if r, ok := m.aliases[l]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", label)
}

// Aliases returns the configured legacy labels in sorted order.
func (m RoleMapping) Aliases() []string {
	out := make([]string, 0, len(m.aliases))
	for k := range m.aliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
