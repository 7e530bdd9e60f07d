package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the closed set of identity categories known to the portal.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleEVMStaff
	RoleDealerManager
	RoleDealerStaff
	RoleCustomer
)

var roleNames = map[Role]string{
	RoleAdmin:         "admin",
	RoleEVMStaff:      "evm_staff",
	RoleDealerManager: "dealer_manager",
	RoleDealerStaff:   "dealer_staff",
	RoleCustomer:      "customer",
}

var roleDisplayNames = map[Role]string{
	RoleAdmin:         "Admin",
	RoleEVMStaff:      "EVM Staff",
	RoleDealerManager: "Dealer Manager",
	RoleDealerStaff:   "Dealer Staff",
	RoleCustomer:      "Customer",
}

// AllRoles returns every valid role in declaration order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleEVMStaff, RoleDealerManager, RoleDealerStaff, RoleCustomer}
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// DisplayName is the human readable name used by dashboards.
func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return "Unknown"
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole accepts wire names ("dealer_manager") and display names
// ("Dealer Manager") in any case.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for role, name := range roleNames {
		if name == key {
			return role, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// UnmarshalYAML lets yaml.v2 documents name roles by string.
func (r *Role) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(s))
}

// RoleSet is an unordered set of roles. The zero value is an empty set.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Clone returns an independent copy. Nil stays nil.
func (s RoleSet) Clone() RoleSet {
	if s == nil {
		return nil
	}
	out := make(RoleSet, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}

func (s RoleSet) Empty() bool {
	return len(s) == 0
}

// Sorted returns the members in declaration order.
func (s RoleSet) Sorted() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
