package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Reads values from yaml file", func(t *testing.T) {
		// Given: a config file overriding the endpoint and the redis port
		path := filepath.Join(t.TempDir(), "config.yml")
		content := "log-level: debug\nstomp:\n  endpoint: ws://game.local/ws-stomp\n  receipts: true\nredis:\n  port: \"6380\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		// When: the config is loaded
		conf, err := Load(path)

		// Then: file values win and the rest falls back to defaults
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "ws://game.local/ws-stomp", conf.Stomp.Endpoint)
		assert.True(t, conf.Stomp.Receipts)
		assert.Equal(t, "localhost:6380", conf.Redis.GetRedisAddr())
		assert.Equal(t, "accessToken", conf.Credential.Key)
		assert.Equal(t, 10*time.Second, conf.Stomp.HeartBeat)
	})

	t.Run("Falls back to env when file is missing", func(t *testing.T) {
		// Given: no config file and an endpoint in the environment
		t.Setenv("CMIUC_STOMP_ENDPOINT", "ws://env.local/ws-stomp")

		// When: the config is loaded from a missing path
		conf, err := Load(filepath.Join(t.TempDir(), "missing.yml"))

		// Then: the env value is used with defaults elsewhere
		require.NoError(t, err)
		assert.Equal(t, "ws://env.local/ws-stomp", conf.Stomp.Endpoint)
		assert.Equal(t, "info", conf.LogLevel)
		assert.Equal(t, 500*time.Millisecond, conf.Reconnect.InitialInterval)
	})
}
