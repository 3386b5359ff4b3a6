// Package media persists media records in the media table.
package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/dbx"
	"github.com/dmitrijs2005/picshare/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Media) (*models.Media, error) {
	query :=
		`INSERT INTO media (handle, owner, visibility)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, m.Handle, m.Owner, string(m.Visibility)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

// SelectPublic returns every public record, newest first.
func (r *PostgresRepository) SelectPublic(ctx context.Context) ([]*models.Media, error) {
	query :=
		`SELECT id, handle, owner, visibility, created_at FROM media
		 WHERE visibility = 'public'
		 ORDER BY created_at DESC, id DESC`

	return r.selectMany(ctx, query)
}

// SelectByOwner returns all records of owner regardless of visibility, newest first.
func (r *PostgresRepository) SelectByOwner(ctx context.Context, owner string) ([]*models.Media, error) {
	query :=
		`SELECT id, handle, owner, visibility, created_at FROM media
		 WHERE owner = $1
		 ORDER BY created_at DESC, id DESC`

	return r.selectMany(ctx, query, owner)
}

func (r *PostgresRepository) GetByHandle(ctx context.Context, handle string) (*models.Media, error) {
	query :=
		`SELECT id, handle, owner, visibility, created_at FROM media
		 WHERE handle = $1`

	item := &models.Media{}
	var visibility string
	err := r.db.QueryRowContext(ctx, query, handle).Scan(&item.ID, &item.Handle, &item.Owner, &visibility, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	item.Visibility = models.Visibility(visibility)
	return item, nil
}

// DeleteByHandles removes the records with the given handles and reports how
// many rows went away. Handles that are already gone are ignored.
func (r *PostgresRepository) DeleteByHandles(ctx context.Context, handles []string) (int64, error) {
	query := `DELETE FROM media WHERE handle = $1`

	var total int64
	for _, h := range handles {
		res, err := r.db.ExecContext(ctx, query, h)
		if err != nil {
			return total, fmt.Errorf("failed to delete media %s: %w", h, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected error: %w", err)
		}
		total += n
	}
	return total, nil
}

// ReassignOwner moves every record of oldOwner to newOwner. Zero rows is not
// an error: an account with no uploads is still renamable.
func (r *PostgresRepository) ReassignOwner(ctx context.Context, oldOwner, newOwner string) (int64, error) {
	query := `UPDATE media SET owner = $2 WHERE owner = $1`

	res, err := r.db.ExecContext(ctx, query, oldOwner, newOwner)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.Media, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	defer rows.Close()

	var result []*models.Media
	for rows.Next() {
		item := models.Media{}
		var visibility string
		if err := rows.Scan(&item.ID, &item.Handle, &item.Owner, &visibility, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Visibility = models.Visibility(visibility)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
