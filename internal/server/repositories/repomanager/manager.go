package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/picshare/internal/dbx"
	"github.com/dmitrijs2005/picshare/internal/server/repositories/media"
	"github.com/dmitrijs2005/picshare/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Media(db dbx.DBTX) media.Repository
}
