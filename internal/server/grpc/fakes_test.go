package grpc

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/server/models"
)

type fakeUsers struct {
	mu sync.Mutex

	registered  map[string]string
	registerErr error
	loginErr    error
	changeErr   error
	renameErr   error

	loggedOut []string
	changed   [][3]string
	renamed   [][2]string
}

func newFakeUsers() *fakeUsers { return &fakeUsers{registered: map[string]string{}} }

func (f *fakeUsers) Register(ctx context.Context, userName, password string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if userName == "" || password == "" {
		return nil, common.ErrInvalidInput
	}
	if _, ok := f.registered[userName]; ok {
		return nil, common.ErrDuplicateUsername
	}
	f.registered[userName] = password
	return &models.User{ID: 1, UserName: userName}, nil
}

func (f *fakeUsers) Login(ctx context.Context, userName, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return "", f.loginErr
	}
	if pw, ok := f.registered[userName]; !ok || pw != password {
		return "", common.ErrorUnauthorized
	}
	return "token-" + userName, nil
}

func (f *fakeUsers) Logout(ctx context.Context, token string) {
	f.mu.Lock()
	f.loggedOut = append(f.loggedOut, token)
	f.mu.Unlock()
}

func (f *fakeUsers) ChangePassword(ctx context.Context, userName, oldPassword, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, [3]string{userName, oldPassword, newPassword})
	return f.changeErr
}

func (f *fakeUsers) Rename(ctx context.Context, oldName, newName string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return 0, f.renameErr
	}
	f.renamed = append(f.renamed, [2]string{oldName, newName})
	return 2, nil
}

type fakeMedia struct {
	mu sync.Mutex

	items    []*models.Media
	blobs    map[string][]byte
	listErr  error
	fetchErr error

	lastUpload struct {
		owner, ext, visibility string
		blob                   []byte
	}
}

func newFakeMedia() *fakeMedia { return &fakeMedia{blobs: map[string][]byte{}} }

func (f *fakeMedia) Upload(ctx context.Context, owner string, blob []byte, ext, visibility string) (*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpload.owner, f.lastUpload.ext, f.lastUpload.visibility, f.lastUpload.blob = owner, ext, visibility, blob
	vis, err := models.ParseVisibility(visibility)
	if err != nil {
		return nil, err
	}
	if ext != "png" {
		return nil, common.ErrInvalidFileType
	}
	m := &models.Media{
		ID:         int64(len(f.items) + 1),
		Handle:     "h" + string(rune('0'+len(f.items))) + ".png",
		Owner:      owner,
		Visibility: vis,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, len(f.items), 0, time.UTC),
	}
	f.items = append([]*models.Media{m}, f.items...)
	f.blobs[m.Handle] = blob
	return m, nil
}

func (f *fakeMedia) ListPublic(ctx context.Context) ([]*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Media
	for _, m := range f.items {
		if m.Visibility == models.VisibilityPublic {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMedia) ListOwned(ctx context.Context, owner string) ([]*models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Media
	for _, m := range f.items {
		if m.Owner == owner {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMedia) Fetch(ctx context.Context, viewer, handle string) (io.ReadCloser, *models.Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	for _, m := range f.items {
		if m.Handle == handle && (m.Visibility == models.VisibilityPublic || m.Owner == viewer) {
			return io.NopCloser(bytes.NewReader(f.blobs[handle])), m, nil
		}
	}
	return nil, nil, common.ErrorNotFound
}

// fakeResolver accepts "token-<name>" for every name not in revoked.
type fakeResolver struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (r *fakeResolver) Resolve(ctx context.Context, token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.revoked[token] || len(token) <= len("token-") || token[:len("token-")] != "token-" {
		return "", false
	}
	return token[len("token-"):], true
}
