package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gugu/cmiuc-client/internal/apperror"
	"github.com/redis/go-redis/v9"
)

type CredentialRepository interface {
	Save(ctx context.Context, key, token string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

type dbCredential struct {
	client *redis.Client
}

func NewCredentialRepository(client *redis.Client) CredentialRepository {
	return &dbCredential{
		client: client,
	}
}

// Save stores the token under key; a zero ttl keeps it until deleted.
func (that *dbCredential) Save(ctx context.Context, key, token string, ttl time.Duration) error {
	credentialKey := "credential:" + key

	err := that.client.Set(ctx, credentialKey, token, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}

	return nil
}

func (that *dbCredential) Get(ctx context.Context, key string) (string, error) {
	credentialKey := "credential:" + key

	token, err := that.client.Get(ctx, credentialKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperror.ErrCredentialNotFound
	}

	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}

	return token, nil
}

func (that *dbCredential) Delete(ctx context.Context, key string) error {
	credentialKey := "credential:" + key

	deleted, err := that.client.Del(ctx, credentialKey).Result()
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if deleted == 0 {
		return apperror.ErrCredentialNotFound
	}

	return nil
}
