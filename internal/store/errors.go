package store

import "errors"

// Sentinel errors surfaced by stores; handlers map them to HTTP statuses.
var (
	ErrEmailTaken        = errors.New("email already taken")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrHouseNotFound     = errors.New("house not found")
	ErrHouseCodeNotFound = errors.New("house code not found")
	ErrAlreadyMember     = errors.New("already a member of this house")
	ErrAlreadyInHouse    = errors.New("already a member of another house")
	ErrHeadCannotLeave   = errors.New("head of household cannot leave the house")
	ErrNotAMember        = errors.New("not a member of any house")
	ErrPostNotFound      = errors.New("post not found")
)
