package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "deepseek-chat", cfg.DeepSeekModel)
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Equal(t, int64(0), cfg.DoctorChatID)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DOCTOR_CHAT_ID", "123456")
	t.Setenv("LLM_TIMEOUT", "2m")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(123456), cfg.DoctorChatID)
	assert.Equal(t, 2*time.Minute, cfg.LLMTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")
	t.Setenv("DEEPSEEK_MODEL", "from-process")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TELEGRAM_BOT_TOKEN=file-token\nDEEPSEEK_MODEL=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TELEGRAM_BOT_TOKEN") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.TelegramToken)
	assert.Equal(t, "from-process", cfg.DeepSeekModel)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "0s")
	_, err := Load("")
	assert.Error(t, err)
}
