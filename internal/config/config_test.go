package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Storage.Debounce)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 3*time.Second, cfg.Capture.NoticeDuration)
	assert.False(t, cfg.AICredentialPresent())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: sqlite
  path: /tmp/ledger.sqlite
  debounce: 2s
ai:
  provider: openai
capture:
  notice_duration: 5s
`), 0o600))

	t.Setenv("VOICELEDGER_STORAGE_DRIVER", "memory")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Driver, "env must win over file")
	assert.Equal(t, "/tmp/ledger.sqlite", cfg.Storage.Path)
	assert.Equal(t, 2*time.Second, cfg.Storage.Debounce)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Capture.NoticeDuration)
	assert.True(t, cfg.AICredentialPresent())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Driver: "floppy"},
		AI:      AIConfig{Provider: "gemini"},
		Capture: CaptureConfig{NoticeDuration: time.Second},
	}
	assert.Error(t, cfg.Validate())

	cfg.Storage.Driver = "bolt"
	cfg.AI.Provider = "clippy"
	assert.Error(t, cfg.Validate())

	cfg.AI.Provider = "openai"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Capture.Workers)
}
