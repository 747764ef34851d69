package repository

import (
	"testing"
	"time"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/gugu/cmiuc-client/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	credentialRepo := NewCredentialRepository(st.Storage)

	// When: a token is saved without expiry
	err := credentialRepo.Save(ctx, "accessToken", "token-1", 0)

	// Then: no error should be returned, and the raw key holds the token
	require.NoError(t, err)

	stored, err := st.Storage.Get(ctx, "credential:accessToken").Result()
	require.NoError(t, err)
	assert.Equal(t, "token-1", stored)
}

func TestCredentialRepository_Get(t *testing.T) {
	t.Run("Get_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		credentialRepo := NewCredentialRepository(st.Storage)

		// Given: a stored token
		require.NoError(t, credentialRepo.Save(ctx, "accessToken", "token-1", time.Minute))

		// When: Get is called with the same key
		token, err := credentialRepo.Get(ctx, "accessToken")

		// Then: the stored token comes back
		require.NoError(t, err)
		assert.Equal(t, "token-1", token)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		credentialRepo := NewCredentialRepository(st.Storage)

		// When: Get is called for a key that was never saved
		token, err := credentialRepo.Get(ctx, "accessToken")

		// Then: ErrCredentialNotFound is returned
		require.ErrorIs(t, err, apperror.ErrCredentialNotFound)
		assert.Empty(t, token)
	})

	t.Run("Get_Expired", func(t *testing.T) {
		ctx, st := suite.New(t)

		credentialRepo := NewCredentialRepository(st.Storage)

		// Given: a token saved with a short ttl
		require.NoError(t, credentialRepo.Save(ctx, "accessToken", "token-1", time.Second))

		// Then: it disappears once the ttl passes
		require.Eventually(t, func() bool {
			_, err := credentialRepo.Get(ctx, "accessToken")
			return err != nil
		}, 5*time.Second, 100*time.Millisecond)
	})
}

func TestCredentialRepository_Delete(t *testing.T) {
	t.Run("Delete_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		credentialRepo := NewCredentialRepository(st.Storage)

		require.NoError(t, credentialRepo.Save(ctx, "accessToken", "token-1", 0))

		// When: Delete is called
		err := credentialRepo.Delete(ctx, "accessToken")

		// Then: the token is gone
		require.NoError(t, err)

		_, err = credentialRepo.Get(ctx, "accessToken")
		require.ErrorIs(t, err, apperror.ErrCredentialNotFound)
	})

	t.Run("Delete_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		credentialRepo := NewCredentialRepository(st.Storage)

		err := credentialRepo.Delete(ctx, "accessToken")

		require.ErrorIs(t, err, apperror.ErrCredentialNotFound)
	})
}
