package common

import "errors"

var (

	// repository specific errors
	ErrNotFound = errors.New("not found")

	// service specific errors
	ErrInternal  = errors.New("internal error")
	ErrNotOwner  = errors.New("only the owner may perform this operation")
	ErrForbidden = errors.New("no access to this note")

	// validation errors
	ErrContentTooLong  = errors.New("note content exceeds the maximum length")
	ErrRetentionActive = errors.New("retention window has not elapsed")
	ErrAlreadyShared   = errors.New("note is already shared with this user")

	ErrInvalidToken = errors.New("invalid token")
)
