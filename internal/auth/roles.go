package auth

import "strings"

const (
	RoleAdmin = "admin"
	RoleCoach = "coach"
	RoleStaff = "staff"
)

func NormalizeRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case RoleAdmin, RoleCoach, RoleStaff:
		return role, nil
	default:
		return "", ErrInvalidRole
	}
}

// CanWrite gates endpoints that create or modify academy records.
func CanWrite(role string) bool {
	return role == RoleAdmin || role == RoleCoach
}

func CanManageUsers(role string) bool {
	return role == RoleAdmin
}

func CanRead(role string) bool {
	return role == RoleAdmin || role == RoleCoach || role == RoleStaff
}
