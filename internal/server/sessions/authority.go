// Package sessions maps session tokens to the username they currently act for.
//
// Tokens are HS256 JWTs that carry only a random session id. The id is looked
// up in an in-memory table, so a session can be revoked before its token
// expires and can follow its user through a rename. Sessions do not survive a
// process restart.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/logging"
	"github.com/dmitrijs2005/picshare/internal/server/auth"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

type session struct {
	userName  string
	expiresAt time.Time
}

type Authority struct {
	mu       sync.RWMutex
	sessions map[string]session

	secretKey []byte
	validity  time.Duration
	logger    logging.Logger
	active    prometheus.Gauge

	now func() time.Time
}

// NewAuthority creates an empty session table. active may be nil.
func NewAuthority(secretKey []byte, validity time.Duration, logger logging.Logger, active prometheus.Gauge) *Authority {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Authority{
		sessions:  make(map[string]session),
		secretKey: secretKey,
		validity:  validity,
		logger:    logger,
		active:    active,
		now:       time.Now,
	}
}

// Establish opens a session for userName and returns its token. The caller
// must have verified the credentials first.
func (a *Authority) Establish(ctx context.Context, userName string) (string, error) {
	if userName == "" {
		return "", common.ErrInvalidInput
	}

	sid := uuid.NewString()
	token, err := auth.GenerateToken(sid, a.secretKey, a.validity)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.sessions[sid] = session{userName: userName, expiresAt: a.now().Add(a.validity)}
	a.reportLocked()
	a.mu.Unlock()

	a.logger.Debug(ctx, "session established", "user", userName)
	return token, nil
}

// Resolve returns the user the token acts for. Any failure (bad signature,
// expired, revoked, unknown) is reported as ok == false.
func (a *Authority) Resolve(ctx context.Context, token string) (string, bool) {
	sid, err := auth.GetSessionIDFromToken(token, a.secretKey)
	if err != nil {
		return "", false
	}

	a.mu.RLock()
	s, ok := a.sessions[sid]
	a.mu.RUnlock()
	if !ok {
		return "", false
	}

	if !a.now().Before(s.expiresAt) {
		a.mu.Lock()
		if cur, ok := a.sessions[sid]; ok && !a.now().Before(cur.expiresAt) {
			delete(a.sessions, sid)
			a.reportLocked()
		}
		a.mu.Unlock()
		return "", false
	}

	return s.userName, true
}

// Revoke ends the session behind token. Unknown or invalid tokens are ignored.
func (a *Authority) Revoke(ctx context.Context, token string) {
	sid, err := auth.GetSessionIDFromToken(token, a.secretKey)
	if err != nil {
		return
	}

	a.mu.Lock()
	if _, ok := a.sessions[sid]; ok {
		delete(a.sessions, sid)
		a.reportLocked()
	}
	a.mu.Unlock()
}

// Rename moves every session of oldName to newName in place and returns how
// many were moved. Tokens already handed out keep working.
func (a *Authority) Rename(ctx context.Context, oldName, newName string) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for sid, s := range a.sessions {
		if s.userName == oldName {
			s.userName = newName
			a.sessions[sid] = s
			n++
		}
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed.
func (a *Authority) Sweep(ctx context.Context) int {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for sid, s := range a.sessions {
		if !now.Before(s.expiresAt) {
			delete(a.sessions, sid)
			n++
		}
	}
	if n > 0 {
		a.reportLocked()
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (a *Authority) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sweep(ctx); n > 0 {
				a.logger.Info(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

// Len returns the number of sessions in the table, expired ones included.
func (a *Authority) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *Authority) reportLocked() {
	if a.active != nil {
		a.active.Set(float64(len(a.sessions)))
	}
}
