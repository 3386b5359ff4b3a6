package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/picshare/internal/server/models"
)

// ExistsFunc reports whether the blob behind handle is present.
type ExistsFunc func(ctx context.Context, handle string) (bool, error)

// Reconcile splits records into those backed by a blob and the handles of
// those that are not. It has no side effects; deleting the stale handles is up
// to the caller.
//
// A record whose check fails is in neither result: it is not shown, since its
// blob cannot be confirmed, and not deleted, since it cannot be confirmed
// missing either. The failures are joined into err. Order of valid is the
// order of records.
func Reconcile(ctx context.Context, records []*models.Media, exists ExistsFunc) (valid []*models.Media, stale []string, err error) {
	var errs []error
	valid = make([]*models.Media, 0, len(records))

	for _, r := range records {
		ok, checkErr := exists(ctx, r.Handle)
		switch {
		case checkErr != nil:
			errs = append(errs, fmt.Errorf("check %s: %w", r.Handle, checkErr))
		case ok:
			valid = append(valid, r)
		default:
			stale = append(stale, r.Handle)
		}
	}

	return valid, stale, errors.Join(errs...)
}
