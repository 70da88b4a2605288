package users

import "errors"

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSuspended          = errors.New("account is suspended")
	ErrInvalidInvitation  = errors.New("invalid or expired invitation token")
	ErrAlreadyAccepted    = errors.New("invitation already accepted")
)
