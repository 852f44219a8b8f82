package auth

import "strings"

type Role string

const (
	// RoleAdmin may change widget settings.
	RoleAdmin Role = "admin"
	RoleNone  Role = "none"
)

func NormalizeRole(role string) Role {
	if strings.EqualFold(strings.TrimSpace(role), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleNone
}

func IsAdmin(role string) bool {
	return NormalizeRole(role) == RoleAdmin
}
