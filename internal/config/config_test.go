package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	cfg := Load()

	assert.Equal(t, "249", cfg.CountryPrefix)
	assert.Equal(t, []string{"otp", "notifications"}, cfg.Channels)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "users", cfg.DynamoTables.Users)
	assert.Equal(t, "subscriptions", cfg.DynamoTables.Subscriptions)
	assert.Empty(t, cfg.RedisAddr)
	require.NoError(t, cfg.Validate())
}

func TestLoad_DurationsAcceptMilliseconds(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "10000")
	t.Setenv("RECONNECT_DELAY", "2s")
	cfg := Load()
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
}

func TestLoad_RedisHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	assert.Equal(t, "cache:6380", Load().RedisAddr)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	t.Setenv("API_KEY", "")
	err := Load().Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "API_KEY")
}

func TestValidate_BadPrefix(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("COUNTRY_PREFIX", "+249")
	assert.ErrorContains(t, Load().Validate(), "COUNTRY_PREFIX")
}

func TestValidate_OTPChannelMustBeConfigured(t *testing.T) {
	t.Setenv("API_KEY", "secret")
	t.Setenv("CHANNELS", "notifications")
	assert.ErrorContains(t, Load().Validate(), "OTP_CHANNEL")

	t.Setenv("POLLER_ENABLED", "false")
	assert.NoError(t, Load().Validate())
}

func TestLoadCommands_Defaults(t *testing.T) {
	cmds, err := LoadCommands("")
	require.NoError(t, err)
	assert.Contains(t, cmds.Subscribe, "subscribe")
	assert.Contains(t, cmds.Unsubscribe, "الغاء")
	assert.NotEmpty(t, cmds.Replies.Help)
}

func TestLoadCommands_FileOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subscribe: [join, yes]\nreplies:\n  subscribed: welcome\n"), 0600))

	cmds, err := LoadCommands(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"join", "yes"}, cmds.Subscribe)
	assert.Equal(t, "welcome", cmds.Replies.Subscribed)
	assert.Equal(t, DefaultCommands().Unsubscribe, cmds.Unsubscribe)
	assert.Equal(t, DefaultCommands().Replies.Help, cmds.Replies.Help)
}

func TestLoadCommands_MissingFile(t *testing.T) {
	_, err := LoadCommands(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_TrustProxyHeadersOptIn(t *testing.T) {
	assert.False(t, Load().TrustProxyHeaders)
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	assert.True(t, Load().TrustProxyHeaders)
}
