package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "/register/", cfg.Backend.ActionPath)
	assert.Equal(t, 60, cfg.SMS.Countdown)
	assert.Equal(t, time.Second, cfg.SMS.Tick)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("REGISTER_BACKEND_BASE_URL", "http://shop.example.com")
	t.Setenv("REGISTER_SMS_COUNTDOWN", "30")
	t.Setenv("REGISTER_BACKEND_TIMEOUT", "3s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://shop.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 30, cfg.SMS.Countdown)
	assert.Equal(t, 3*time.Second, cfg.Backend.Timeout)
}

func TestLoad_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "register.yaml")
	content := `
backend:
  base_url: http://from-file:8000
  action_path: /accounts/register/
sms:
  countdown: 90
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// 命令行参数优先于配置文件
	flags := newFlags(t, "--config", path, "--sms-countdown", "45")
	cfg, err := Load(flags)
	require.NoError(t, err)

	assert.Equal(t, "http://from-file:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "/accounts/register/", cfg.Backend.ActionPath)
	assert.Equal(t, 45, cfg.SMS.Countdown)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	t.Setenv("REGISTER_LOG_LEVEL", "warn")

	cfg, err := Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 60, cfg.SMS.Countdown)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	_, err := Load(newFlags(t, "--sms-countdown", "-1", "--backend-base-url", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sms.countdown must be positive")

	cfg := &Config{}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.base_url is required")
	assert.Contains(t, err.Error(), "sms.tick must be positive")
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "backend.base_url", flagKey("backend-base-url"))
	assert.Equal(t, "sms.countdown", flagKey("sms-countdown"))
	assert.Equal(t, "", flagKey("config"))
}
