package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Server.LogLevel)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, DefaultBuffer, cfg.Server.Buffer)
	assert.Equal(t, DefaultSlackWebhookPort, cfg.Connectors.Slack.WebhookPort)
	assert.Equal(t, DefaultTelegramUpdateTimeout, cfg.Connectors.Telegram.UpdateTimeout)
	assert.Equal(t, DefaultSMSUsername, cfg.Connectors.SMS.Username)
	assert.Equal(t, DefaultSMSAPIBaseURL, cfg.Connectors.SMS.APIBaseURL)
	assert.False(t, cfg.Connectors.Slack.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flume.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  log_level: debug
  buffer: 32
connectors:
  slack:
    enabled: true
    bot_token: xoxb-from-file
  sms:
    username: Custom
`), 0o644))

	cmd := &cobra.Command{}
	cmd.Flags().String("config", path, "")

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 32, cfg.Server.Buffer)
	assert.True(t, cfg.Connectors.Slack.Enabled)
	assert.Equal(t, "xoxb-from-file", cfg.Connectors.Slack.BotToken)
	assert.Equal(t, "Custom", cfg.Connectors.SMS.Username)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultSlackWebhookPort, cfg.Connectors.Slack.WebhookPort)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flume.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
connectors:
  telegram:
    bot_token: from-file
`), 0o644))

	t.Setenv("FLUME_CONNECTORS__TELEGRAM__BOT_TOKEN", "from-env")
	t.Setenv("FLUME_SERVER__LOG_LEVEL", "warn")

	cmd := &cobra.Command{}
	cmd.Flags().String("config", path, "")

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Connectors.Telegram.BotToken)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoadMissingFileFails(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "/nonexistent/flume.yaml", "")

	_, err := Load(cmd)
	require.Error(t, err)
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("2s", "5s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = DurationOrDefault("", "5s")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, d)

	_, err = DurationOrDefault("", "")
	require.Error(t, err)

	_, err = DurationOrDefault("not-a-duration", "5s")
	require.Error(t, err)
}
