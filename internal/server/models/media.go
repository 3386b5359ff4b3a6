package models

import (
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
)

// Visibility is the access tier of a media record.
type Visibility string

const (
	// VisibilityPrivate records are visible to their owner only.
	VisibilityPrivate Visibility = "private"
	// VisibilityPublic records are visible to every authenticated user.
	VisibilityPublic Visibility = "public"
)

// ParseVisibility accepts exactly "private" or "public".
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(s); v {
	case VisibilityPrivate, VisibilityPublic:
		return v, nil
	default:
		return "", common.ErrInvalidVisibility
	}
}

// Media is the metadata row for one uploaded blob. ID is the insertion
// sequence and breaks ties between equal CreatedAt values.
type Media struct {
	ID         int64
	Handle     string
	Owner      string
	Visibility Visibility
	CreatedAt  time.Time
}
