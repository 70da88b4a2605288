package users

import "time"

// User is a platform account. Role is one of organizer, admin, superadmin
// (see internal/auth). Suspended users cannot authenticate.
type User struct {
	ID           string
	ULID         string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Suspended    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Invitation is a pending admin invitation. The plaintext token is emailed;
// only its SHA-256 hash is stored.
type Invitation struct {
	ID        string
	UserULID  string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	InvitedBy string
	Accepted  bool
	CreatedAt time.Time
}

type CreateParams struct {
	ULID         string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Suspended    bool
}

type Filters struct {
	Role      string
	Suspended *bool
	Query     string
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Users      []User
	NextCursor string
}
