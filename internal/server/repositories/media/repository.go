package media

import (
	"context"

	"github.com/dmitrijs2005/picshare/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, m *models.Media) (*models.Media, error)
	SelectPublic(ctx context.Context) ([]*models.Media, error)
	SelectByOwner(ctx context.Context, owner string) ([]*models.Media, error)
	GetByHandle(ctx context.Context, handle string) (*models.Media, error)
	DeleteByHandles(ctx context.Context, handles []string) (int64, error)
	ReassignOwner(ctx context.Context, oldOwner, newOwner string) (int64, error)
}
