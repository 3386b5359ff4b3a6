// Package common defines shared constants and sentinel errors used across
// the picshare server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential store errors.
	ErrDuplicateUsername = errors.New("username already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrWrongOldPassword  = errors.New("wrong old password")
	ErrUserNotFound      = errors.New("user not found")

	// Media registry and upload sink errors.
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidFileType   = errors.New("invalid file type")
	ErrDiskWriteFailure  = errors.New("disk write failure")
	ErrBlobNotFound      = errors.New("blob not found")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
