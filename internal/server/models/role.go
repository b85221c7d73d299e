package models

import (
	"fmt"
	"strings"
)

// Role is the closed set of roles known to the authorization gate.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// roleRank orders roles; a higher rank includes every permission of the
// ranks below it. Roles missing from the table rank 0.
var roleRank = map[Role]int{
	RoleAdmin: 2,
	RoleUser:  1,
}

// Rank returns the position of r in the hierarchy.
func (r Role) Rank() int {
	return roleRank[r]
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
