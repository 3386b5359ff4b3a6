package client

import (
	"context"
	"time"
)

// MediaItem is one row of a listing as the client sees it.
type MediaItem struct {
	Handle     string
	Owner      string
	Visibility string
	CreatedAt  time.Time
}

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	Register(ctx context.Context, userName, password, confirm string) error
	Login(ctx context.Context, userName, password string) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	Rename(ctx context.Context, newUserName string) error
	Upload(ctx context.Context, blob []byte, ext, visibility string) (string, error)
	ListPublic(ctx context.Context) ([]MediaItem, error)
	ListMine(ctx context.Context) ([]MediaItem, error)
	Fetch(ctx context.Context, handle string) ([]byte, error)
}
