// Package models defines server-side records persisted in the structured store.
package models

import "time"

// User is a registered account. UserName is the case-sensitive primary key;
// PasswordHash is an encoded salted hash (see cryptox.HashPassword).
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	CreatedAt    time.Time
}
