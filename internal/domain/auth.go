package domain

import (
	"strings"
	"time"
)

// Role is the single role claim carried by an identity token.
type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

// ParseRole matches a role case-insensitively.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleDoctor:
		return RoleDoctor, true
	case RolePatient:
		return RolePatient, true
	default:
		return "", false
	}
}

// CanBook reports whether the role may create appointments.
func (r Role) CanBook() bool {
	return r == RoleDoctor || r == RolePatient
}

// Identity is the verified subject/role pair that crosses the trust
// boundary. Downstream of the gateway it is authoritative and is never
// re-derived from a token.
type Identity struct {
	Subject string
	Role    Role
}

// Token represents issued identity token metadata.
type Token struct {
	Value     string
	Subject   string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
