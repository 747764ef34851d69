package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

type mockCredentialRepo struct {
	mock.Mock
}

func (that *mockCredentialRepo) Save(ctx context.Context, key, token string, ttl time.Duration) error {
	args := that.Called(ctx, key, token, ttl)
	return args.Error(0)
}

func (that *mockCredentialRepo) Get(ctx context.Context, key string) (string, error) {
	args := that.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (that *mockCredentialRepo) Delete(ctx context.Context, key string) error {
	args := that.Called(ctx, key)
	return args.Error(0)
}

func signToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{Subject: subject}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	return token
}

func TestCredentials_Refresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	t.Run("Loads token and member id from the store", func(t *testing.T) {
		// Given: a store holding a valid token for member 42
		token := signToken(t, "42", now.Add(time.Hour))
		repo := &mockCredentialRepo{}
		repo.On("Get", mock.Anything, "accessToken").Return(token, nil).Once()

		creds := NewCredentials(repo, "accessToken")
		creds.now = func() time.Time { return now }

		// When: refreshing
		err := creds.Refresh(ctx)

		// Then: the token is exposed on both header sets
		require.NoError(t, err)
		assert.Equal(t, token, creds.Token())
		assert.Equal(t, int64(42), creds.MemberID())
		assert.Equal(t, map[string]string{"accessToken": token}, creds.SendHeaders())
		assert.Equal(t, map[string]string{"token": token}, creds.ConnectHeaders())
		assert.False(t, creds.Expired())
		repo.AssertExpectations(t)
	})

	t.Run("Expires once the clock passes exp", func(t *testing.T) {
		token := signToken(t, "42", now.Add(time.Minute))
		repo := &mockCredentialRepo{}
		repo.On("Get", mock.Anything, "accessToken").Return(token, nil).Once()

		creds := NewCredentials(repo, "accessToken")
		creds.now = func() time.Time { return now }
		require.NoError(t, creds.Refresh(ctx))

		creds.now = func() time.Time { return now.Add(time.Minute) }

		assert.True(t, creds.Expired())
	})

	t.Run("Rejects an expired token", func(t *testing.T) {
		token := signToken(t, "42", now.Add(-time.Minute))
		repo := &mockCredentialRepo{}
		repo.On("Get", mock.Anything, "accessToken").Return(token, nil).Once()

		creds := NewCredentials(repo, "accessToken")
		creds.now = func() time.Time { return now }

		err := creds.Refresh(ctx)

		require.ErrorIs(t, err, apperror.ErrCredentialExpired)
		assert.Empty(t, creds.Token())
	})

	t.Run("Passes store errors through", func(t *testing.T) {
		repo := &mockCredentialRepo{}
		repo.On("Get", mock.Anything, "accessToken").Return("", errRedisDown).Once()

		creds := NewCredentials(repo, "accessToken")

		err := creds.Refresh(ctx)

		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Rejects garbage tokens", func(t *testing.T) {
		repo := &mockCredentialRepo{}
		repo.On("Get", mock.Anything, "accessToken").Return("not-a-jwt", nil).Once()

		creds := NewCredentials(repo, "accessToken")

		require.Error(t, creds.Refresh(ctx))
	})
}

func TestCredentials_Login(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	t.Run("Stores the token until it expires", func(t *testing.T) {
		// Given: a token valid for thirty minutes
		token := signToken(t, "7", now.Add(30*time.Minute))
		repo := &mockCredentialRepo{}
		repo.On("Save", mock.Anything, "accessToken", token, 30*time.Minute).Return(nil).Once()

		creds := NewCredentials(repo, "accessToken")
		creds.now = func() time.Time { return now }

		// When: logging in
		err := creds.Login(ctx, token)

		// Then: the ttl matches the expiry and the token is live
		require.NoError(t, err)
		assert.Equal(t, int64(7), creds.MemberID())
		repo.AssertExpectations(t)
	})

	t.Run("Tokens without expiry are kept", func(t *testing.T) {
		token := signToken(t, "nickname", time.Time{})
		repo := &mockCredentialRepo{}
		repo.On("Save", mock.Anything, "accessToken", token, time.Duration(0)).Return(nil).Once()

		creds := NewCredentials(repo, "accessToken")

		require.NoError(t, creds.Login(ctx, token))
		assert.Zero(t, creds.MemberID())
	})

	t.Run("Expired tokens are not stored", func(t *testing.T) {
		token := signToken(t, "7", now.Add(-time.Second))
		repo := &mockCredentialRepo{}

		creds := NewCredentials(repo, "accessToken")
		creds.now = func() time.Time { return now }

		err := creds.Login(ctx, token)

		require.ErrorIs(t, err, apperror.ErrCredentialExpired)
		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCredentials_Logout(t *testing.T) {
	repo := &mockCredentialRepo{}
	repo.On("Delete", mock.Anything, "accessToken").Return(nil).Once()

	creds := NewCredentials(repo, "accessToken")
	creds.set("token", 1, time.Time{})

	require.NoError(t, creds.Logout(context.Background()))
	assert.Empty(t, creds.Token())
	repo.AssertExpectations(t)
}
