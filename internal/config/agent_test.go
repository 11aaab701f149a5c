package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgentFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "focusctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAgent(t *testing.T) {
	t.Run("reads file and applies defaults", func(t *testing.T) {
		path := writeAgentFile(t, strings.Join([]string{
			"server_url: https://focus.example.com",
			"api_key: key-1.secret",
			"state_dir: /var/lib/focusctl",
			"sync_interval: 15s",
		}, "\n"))

		cfg, err := LoadAgent(NewAgentViper(), path)
		require.NoError(t, err)

		assert.Equal(t, "https://focus.example.com", cfg.ServerURL)
		assert.Equal(t, "key-1.secret", cfg.APIKey)
		assert.Equal(t, "/var/lib/focusctl", cfg.StateDir)
		assert.Equal(t, 15*time.Second, cfg.SyncInterval)
		assert.Equal(t, 60*time.Second, cfg.LivenessInterval)
		assert.Equal(t, 10*time.Second, cfg.SaveTimeout)
		assert.Equal(t, 5*time.Second, cfg.DebounceFloor)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeAgentFile(t, "api_key: from-file\n")
		t.Setenv("FOCUSCTL_API_KEY", "from-env")
		t.Setenv("FOCUSCTL_SAVE_TIMEOUT", "3s")

		cfg, err := LoadAgent(NewAgentViper(), path)
		require.NoError(t, err)

		assert.Equal(t, "from-env", cfg.APIKey)
		assert.Equal(t, 3*time.Second, cfg.SaveTimeout)
	})

	t.Run("explicit values override everything", func(t *testing.T) {
		path := writeAgentFile(t, "api_key: from-file\n")
		v := NewAgentViper()
		v.Set("server_url", "http://127.0.0.1:9999")

		cfg, err := LoadAgent(v, path)
		require.NoError(t, err)

		assert.Equal(t, "http://127.0.0.1:9999", cfg.ServerURL)
	})

	t.Run("missing api key", func(t *testing.T) {
		path := writeAgentFile(t, "server_url: http://localhost:8080\n")
		t.Setenv("FOCUSCTL_API_KEY", "")

		_, err := LoadAgent(NewAgentViper(), path)
		require.Error(t, err)
		assert.Equal(t, "必須の設定値がありません: api_key", err.Error())
	})

	t.Run("invalid intervals", func(t *testing.T) {
		path := writeAgentFile(t, "api_key: k.s\nsync_interval: 0s\nsave_timeout: -1s\n")

		_, err := LoadAgent(NewAgentViper(), path)
		require.Error(t, err)
		assert.Equal(t, "設定値が不正です: sync_interval, save_timeout", err.Error())
	})

	t.Run("explicit file must exist", func(t *testing.T) {
		_, err := LoadAgent(NewAgentViper(), filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
