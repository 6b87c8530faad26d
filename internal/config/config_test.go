package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	require.Equal(t, "dev", cfg.Auth.Mode)
	require.Nil(t, cfg.ChatPolicy)
}

func TestLoadChatPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("statusMessages:\n  SERVED: true\n  READY: false\n"), 0o600))
	t.Setenv("CHAT_POLICY_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.ChatPolicy.Notifies("SERVED"))
	require.False(t, cfg.ChatPolicy.Notifies("READY"))
	require.True(t, cfg.ChatPolicy.Notifies("CONFIRMED"), "unlisted statuses keep the default")
}

func TestLoadChatPolicyMissingFile(t *testing.T) {
	t.Setenv("CHAT_POLICY_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	require.Error(t, err)
}
