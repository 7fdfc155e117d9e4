package access

import (
	"strings"

	"courseoj/pkg/errors"
)

// Role identifies the privilege tier of an authenticated caller.
type Role string

const (
	RoleDev    Role = "DEV"
	RoleStaff  Role = "STAFF"
	RoleMember Role = "MEMBER"
)

// ParseRole normalizes a role string from a token or header.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleDev:
		return RoleDev, nil
	case RoleStaff:
		return RoleStaff, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", errors.Newf(errors.InvalidRole, "unknown role %q", raw)
	}
}

// Elevated reports whether the role belongs to internal personnel.
func (r Role) Elevated() bool {
	return r == RoleDev || r == RoleStaff
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	ID   int64
	Role Role
}
