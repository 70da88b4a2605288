package auth

import "strings"

type Role string

const (
	RoleOrganizer  Role = "organizer"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// roleRank orders roles into a hierarchy: organizer < admin < superadmin.
// A higher rank implies every capability of the ranks below it.
var roleRank = map[Role]int{
	RoleOrganizer:  1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// KnownRole reports whether role names one of the platform roles.
func KnownRole(role string) bool {
	_, ok := roleRank[Role(strings.ToLower(strings.TrimSpace(role)))]
	return ok
}

func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleSuperadmin):
		return RoleSuperadmin
	case string(RoleOrganizer):
		return RoleOrganizer
	default:
		return RoleOrganizer
	}
}

// HasAtLeast reports whether role sits at or above required in the hierarchy.
func HasAtLeast(role string, required Role) bool {
	current, ok := roleRank[NormalizeRole(role)]
	if !ok {
		return false
	}
	needed, ok := roleRank[required]
	if !ok {
		return false
	}
	return current >= needed
}

func IsAdmin(role string) bool {
	return HasAtLeast(role, RoleAdmin)
}

func IsSuperadmin(role string) bool {
	return NormalizeRole(role) == RoleSuperadmin
}

// ValidRole reports whether value names a known role exactly.
func ValidRole(value string) bool {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleOrganizer, RoleAdmin, RoleSuperadmin:
		return true
	default:
		return false
	}
}
