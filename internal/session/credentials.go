// Package session keeps the bearer token used on every outbound frame.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gugu/cmiuc-client/internal/apperror"
)

const (
	HeaderAccessToken = "accessToken"
	HeaderToken       = "token"
)

type credentialRepo interface {
	Save(ctx context.Context, key, token string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Credentials is handed to the channel client at construction. Refresh
// reloads it from the credential store.
type Credentials struct {
	repo credentialRepo
	key  string
	now  func() time.Time

	mu        sync.RWMutex
	token     string
	memberID  int64
	expiresAt time.Time
}

func NewCredentials(repo credentialRepo, key string) *Credentials {
	return &Credentials{
		repo: repo,
		key:  key,
		now:  time.Now,
	}
}

// Login inspects the token and stores it until it expires.
func (that *Credentials) Login(ctx context.Context, token string) error {
	memberID, expiresAt, err := inspect(token)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(that.now())
		if ttl <= 0 {
			return apperror.ErrCredentialExpired
		}
	}

	if err = that.repo.Save(ctx, that.key, token, ttl); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	that.set(token, memberID, expiresAt)

	return nil
}

func (that *Credentials) Logout(ctx context.Context) error {
	if err := that.repo.Delete(ctx, that.key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	that.set("", 0, time.Time{})

	return nil
}

func (that *Credentials) Refresh(ctx context.Context) error {
	token, err := that.repo.Get(ctx, that.key)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	memberID, expiresAt, err := inspect(token)
	if err != nil {
		return err
	}

	if !expiresAt.IsZero() && !that.now().Before(expiresAt) {
		return apperror.ErrCredentialExpired
	}

	that.set(token, memberID, expiresAt)

	return nil
}

func (that *Credentials) Token() string {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.token
}

// MemberID is the subject of the token, zero when it is not numeric.
func (that *Credentials) MemberID() int64 {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return that.memberID
}

// Expired is false for tokens without an exp claim.
func (that *Credentials) Expired() bool {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return !that.expiresAt.IsZero() && !that.now().Before(that.expiresAt)
}

// ConnectHeaders go on the STOMP CONNECT frame.
func (that *Credentials) ConnectHeaders() map[string]string {
	return map[string]string{HeaderToken: that.Token()}
}

// SendHeaders go on every SEND frame.
func (that *Credentials) SendHeaders() map[string]string {
	return map[string]string{HeaderAccessToken: that.Token()}
}

func (that *Credentials) set(token string, memberID int64, expiresAt time.Time) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.token = token
	that.memberID = memberID
	that.expiresAt = expiresAt
}

// inspect reads the claims without verifying the signature; the server does that.
func inspect(token string) (int64, time.Time, error) {
	claims := jwt.RegisteredClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	memberID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		memberID = 0
	}

	return memberID, expiresAt, nil
}
