package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server/blobstore"
	"github.com/dmitrijs2005/picshare/internal/server/metrics"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"github.com/dmitrijs2005/picshare/internal/server/repositories/repomanager"
)

// MediaService is the media registry: uploads, visibility-scoped listings
// and the serving path. Every read that surfaces records first drops the ones
// whose blob is gone.
type MediaService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	sink          blobstore.Sink
	logger        logging.Logger
	metrics       *metrics.Metrics
	maxUploadSize int64
}

// NewMediaService constructs a MediaService. maxUploadSize <= 0 disables the
// size limit; m may be nil.
func NewMediaService(db *sql.DB, rm repomanager.RepositoryManager, sink blobstore.Sink, logger logging.Logger, m *metrics.Metrics, maxUploadSize int64) *MediaService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &MediaService{
		db:            db,
		repomanager:   rm,
		sink:          sink,
		logger:        logger,
		metrics:       m,
		maxUploadSize: maxUploadSize,
	}
}

// Upload validates everything, stores the blob and records it. Nothing is
// written unless owner, visibility, extension and size are all acceptable.
func (s *MediaService) Upload(ctx context.Context, owner string, blob []byte, ext, visibility string) (*models.Media, error) {
	if owner == "" || len(blob) == 0 {
		return nil, common.ErrInvalidInput
	}
	if s.maxUploadSize > 0 && int64(len(blob)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: upload of %d bytes exceeds limit of %d", common.ErrInvalidInput, len(blob), s.maxUploadSize)
	}
	vis, err := models.ParseVisibility(visibility)
	if err != nil {
		return nil, err
	}
	if _, err := blobstore.NormalizeExtension(ext); err != nil {
		return nil, err
	}

	handle, err := s.sink.Store(ctx, blob, ext)
	if err != nil {
		return nil, err
	}

	m, err := s.Record(ctx, handle, owner, string(vis))
	if err != nil {
		// the blob is left as an orphan; nothing references it
		s.logger.Error(ctx, "recording upload failed", "handle", handle, "owner", owner, "error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.WithLabelValues(string(vis)).Inc()
		s.metrics.UploadBytesTotal.Add(float64(len(blob)))
	}
	s.logger.Info(ctx, "upload stored", "handle", handle, "owner", owner, "visibility", vis)
	return m, nil
}

// Record inserts the metadata row for an already stored blob. Handles that
// no sink could have produced are rejected.
func (s *MediaService) Record(ctx context.Context, handle, owner, visibility string) (*models.Media, error) {
	vis, err := models.ParseVisibility(visibility)
	if err != nil {
		return nil, err
	}
	if owner == "" || !blobstore.ValidHandle(handle) {
		return nil, common.ErrInvalidInput
	}

	repo := s.repomanager.Media(s.db)
	m, err := repo.Create(ctx, &models.Media{Handle: handle, Owner: owner, Visibility: vis})
	if err != nil {
		return nil, fmt.Errorf("error recording media: %w", err)
	}
	return m, nil
}

// ListPublic returns the public records, newest first.
func (s *MediaService) ListPublic(ctx context.Context) ([]*models.Media, error) {
	records, err := s.repomanager.Media(s.db).SelectPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing public media: %w", err)
	}
	valid, _ := s.reconcile(ctx, records)
	return valid, nil
}

// ListOwned returns all records of owner, newest first.
func (s *MediaService) ListOwned(ctx context.Context, owner string) ([]*models.Media, error) {
	records, err := s.repomanager.Media(s.db).SelectByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("error listing media of %s: %w", owner, err)
	}
	valid, _ := s.reconcile(ctx, records)
	return valid, nil
}

// Fetch opens the blob behind handle for viewer. Private records of other
// users are reported as ErrorNotFound, exactly like missing ones. A record
// whose blob has vanished is purged on the way.
func (s *MediaService) Fetch(ctx context.Context, viewer, handle string) (io.ReadCloser, *models.Media, error) {
	repo := s.repomanager.Media(s.db)
	m, err := repo.GetByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("error loading media: %w", err)
	}
	if m.Visibility != models.VisibilityPublic && m.Owner != viewer {
		return nil, nil, common.ErrorNotFound
	}

	rc, err := s.sink.Retrieve(ctx, handle)
	if err != nil {
		if errors.Is(err, common.ErrBlobNotFound) {
			s.purge(ctx, []string{handle})
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("error opening blob: %w", err)
	}
	return rc, m, nil
}

// ReconcileAll runs the owned-listing reconciliation for every user and
// returns the number of purged records per user (users with none omitted).
func (s *MediaService) ReconcileAll(ctx context.Context) (map[string]int, error) {
	names, err := s.repomanager.Users(s.db).ListUserNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	purged := make(map[string]int)
	for _, name := range names {
		records, err := s.repomanager.Media(s.db).SelectByOwner(ctx, name)
		if err != nil {
			return purged, fmt.Errorf("error listing media of %s: %w", name, err)
		}
		if _, n := s.reconcile(ctx, records); n > 0 {
			purged[name] = n
		}
	}
	return purged, nil
}

func (s *MediaService) reconcile(ctx context.Context, records []*models.Media) ([]*models.Media, int) {
	valid, stale, err := Reconcile(ctx, records, s.sink.Exists)
	if err != nil {
		s.logger.Warn(ctx, "blob existence check failed", "error", err)
	}
	if len(stale) == 0 {
		return valid, 0
	}

	staleSet := make(map[string]struct{}, len(stale))
	for _, h := range stale {
		staleSet[h] = struct{}{}
	}
	for _, r := range records {
		if _, ok := staleSet[r.Handle]; ok {
			s.logger.Warn(ctx, "purging media record without blob", "handle", r.Handle, "owner", r.Owner)
		}
	}
	s.purge(ctx, stale)
	return valid, len(stale)
}

// purge deletes stale records. A failed delete is logged only: the records
// are already hidden from the current reader and the next read retries.
func (s *MediaService) purge(ctx context.Context, handles []string) {
	n, err := s.repomanager.Media(s.db).DeleteByHandles(ctx, handles)
	if s.metrics != nil && n > 0 {
		s.metrics.ReconcilePurgedTotal.Add(float64(n))
	}
	if err != nil {
		s.logger.Error(ctx, "purging stale media failed", "handles", handles, "error", err)
	}
}
