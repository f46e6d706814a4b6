package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a role tag stored on a user.
type Role string

const (
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleModerator Role = "ROLE_MODERATOR"
	RoleUser      Role = "ROLE_USER"
)

// AllRoles lists every role, highest authority first.
var AllRoles = []Role{RoleAdmin, RoleModerator, RoleUser}

// Label returns the human readable name of the role.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleModerator:
		return "Moderator"
	case RoleUser:
		return "User"
	default:
		return string(r)
	}
}

// Rank orders roles by authority: ADMIN > MODERATOR > USER. Unknown roles rank 0.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r carries at least the authority of other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

// RoleLabels maps each role to its label, as shown next to users in the list.
func RoleLabels() map[Role]string {
	labels := make(map[Role]string, len(AllRoles))
	for _, r := range AllRoles {
		labels[r] = r.Label()
	}
	return labels
}

// Roles is the ordered role list of a user, persisted as a JSON array.
type Roles []Role

// Primary returns the authoritative (first) role, or "" when empty.
func (rs Roles) Primary() Role {
	if len(rs) == 0 {
		return ""
	}
	return rs[0]
}

// String joins the roles with commas.
func (rs Roles) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}

// Value implements driver.Valuer.
func (rs Roles) Value() (driver.Value, error) {
	if rs == nil {
		rs = Roles{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (rs *Roles) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*rs = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan roles: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*rs = nil
		return nil
	}
	return json.Unmarshal(raw, rs)
}
