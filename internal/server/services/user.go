// Package services contains server-side business logic. This file implements
// UserService: the credential store operations, login/logout on top of the
// session authority and the transactional account rename.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/cryptox"
	"github.com/dmitrijs2005/picshare/internal/dbx"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server/metrics"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"github.com/dmitrijs2005/picshare/internal/server/repositories/repomanager"
)

// SessionAuthority is the part of sessions.Authority UserService depends on.
type SessionAuthority interface {
	Establish(ctx context.Context, userName string) (string, error)
	Revoke(ctx context.Context, token string)
	Rename(ctx context.Context, oldName, newName string) int
}

// UserService provides account operations:
// - Register/Verify/ChangePassword over the users table
// - Login/Logout over the session authority
// - Rename, which moves the account and all its media in one transaction
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    SessionAuthority
	logger      logging.Logger
	metrics     *metrics.Metrics

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService. sessions may be nil for callers
// that never log users in (the admin CLI); m may be nil to skip metrics.
func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, sessions SessionAuthority, logger logging.Logger, m *metrics.Metrics) *UserService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: rm,
		sessions:    sessions,
		logger:      logger,
		metrics:     m,
	}
}

// Register creates a user. Uniqueness is left to the database constraint, so
// two concurrent registrations of one name cannot both succeed.
func (s *UserService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	if userName == "" || password == "" {
		return nil, common.ErrInvalidInput
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, &models.User{UserName: userName, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateUsername) {
			return nil, common.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user registered", "user", userName)
	return u, nil
}

// Verify checks a password. An unknown user is reported as false, not as an
// error, and still pays for one hash computation.
func (s *UserService) Verify(ctx context.Context, userName, password string) (bool, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = cryptox.VerifyPassword(s.getDummyHash(), []byte(password))
			return false, nil
		}
		return false, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, []byte(password))
	if err != nil {
		return false, fmt.Errorf("error verifying password: %w", err)
	}
	return ok, nil
}

// Login verifies the credentials and opens a session. Unknown users and wrong
// passwords both yield ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, userName, password string) (string, error) {
	ok, err := s.Verify(ctx, userName, password)
	if err != nil {
		s.countLogin(metrics.LoginFailure)
		return "", common.ErrorInternal
	}
	if !ok {
		s.countLogin(metrics.LoginFailure)
		s.logger.Info(ctx, "login rejected", "user", userName)
		return "", common.ErrorUnauthorized
	}

	token, err := s.sessions.Establish(ctx, userName)
	if err != nil {
		s.countLogin(metrics.LoginFailure)
		return "", common.ErrorInternal
	}

	s.countLogin(metrics.LoginSuccess)
	return token, nil
}

func (s *UserService) Logout(ctx context.Context, token string) {
	s.sessions.Revoke(ctx, token)
}

// ChangePassword replaces the password of userName after checking oldPassword.
func (s *UserService) ChangePassword(ctx context.Context, userName, oldPassword, newPassword string) error {
	if newPassword == "" {
		return common.ErrInvalidInput
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error loading user: %w", err)
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, []byte(oldPassword))
	if err != nil {
		return fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return common.ErrWrongOldPassword
	}

	return s.SetPassword(ctx, userName, newPassword)
}

// SetPassword overwrites the password without checking the old one. Used by
// ChangePassword and by the operator CLI.
func (s *UserService) SetPassword(ctx context.Context, userName, newPassword string) error {
	if newPassword == "" {
		return common.ErrInvalidInput
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.UpdatePasswordHash(ctx, userName, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("error updating password: %w", err)
	}

	s.logger.Info(ctx, "password changed", "user", userName)
	return nil
}

// Rename moves the account oldName to newName together with every media
// record it owns. Both updates share one transaction: on any error neither is
// visible. Live sessions of oldName follow the account once the commit is done.
// It returns the number of media records moved.
func (s *UserService) Rename(ctx context.Context, oldName, newName string) (int64, error) {
	if oldName == "" || newName == "" || oldName == newName {
		return 0, common.ErrInvalidInput
	}

	var moved int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Rename(ctx, oldName, newName); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrUserNotFound
			}
			return err
		}

		n, err := s.repomanager.Media(tx).ReassignOwner(ctx, oldName, newName)
		if err != nil {
			return err
		}
		moved = n
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) || errors.Is(err, common.ErrDuplicateUsername) {
			return 0, err
		}
		return 0, fmt.Errorf("error renaming user: %w", err)
	}

	rebound := 0
	if s.sessions != nil {
		rebound = s.sessions.Rename(ctx, oldName, newName)
	}
	if s.metrics != nil {
		s.metrics.RenamesTotal.Inc()
		s.metrics.ReassignedMediaTotal.Add(float64(moved))
	}

	s.logger.Info(ctx, "user renamed", "from", oldName, "to", newName, "media", moved, "sessions", rebound)
	return moved, nil
}

// --- helpers below ---

func (s *UserService) getDummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := cryptox.HashPassword(common.GenerateRandByteArray(16))
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func (s *UserService) countLogin(result string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(result).Inc()
	}
}

func hashPassword(password string) (string, error) {
	pw := []byte(password)
	defer common.WipeByteArray(pw)
	return cryptox.HashPassword(pw)
}
