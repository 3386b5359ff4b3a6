package users

import (
	"context"

	"github.com/dmitrijs2005/picshare/internal/server/models"
)

// Repository is the credential store: one row per username.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, userName, passwordHash string) error
	Rename(ctx context.Context, oldUserName, newUserName string) error
	ListUserNames(ctx context.Context) ([]string, error)
}
