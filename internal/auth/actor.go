package auth

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	ULID string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return HasAtLeast(string(a.Role), RoleAdmin)
}

func (a Actor) IsSuperadmin() bool {
	return IsSuperadmin(string(a.Role))
}

// Owns reports whether the actor owns the resource belonging to ownerULID,
// or outranks ownership entirely by being an admin.
func (a Actor) Owns(ownerULID string) bool {
	return a.IsAdmin() || (a.ULID != "" && a.ULID == ownerULID)
}
