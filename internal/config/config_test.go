package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("QUERY_DEFAULT_LIMIT", "")
	t.Setenv("QUERY_MAX_LIMIT", "")
	t.Setenv("DISPATCH_SEND_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Query.DefaultLimit)
	assert.Equal(t, 500, cfg.Query.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.SendTimeout)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("QUERY_MAX_LIMIT", "abc")
	t.Setenv("QUERY_DEFAULT_LIMIT", "-5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Query.MaxLimit)
	assert.Equal(t, 100, cfg.Query.DefaultLimit)
}

func TestLoad_DefaultLimitClampedToMax(t *testing.T) {
	t.Setenv("QUERY_DEFAULT_LIMIT", "300")
	t.Setenv("QUERY_MAX_LIMIT", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Query.DefaultLimit)
}

func TestParseDiscordChannels(t *testing.T) {
	channels := parseDiscordChannels(" contractor-a:111 , contractor-b:222,invalid,:333,x: ")

	assert.Equal(t, map[string]string{
		"contractor-a": "111",
		"contractor-b": "222",
	}, channels)
	assert.Empty(t, parseDiscordChannels(""))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "x.db"},
			Dispatch: DispatchConfig{Sender: "webhook"},
			Webhook:  WebhookConfig{URL: "http://gateway"},
		}
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.Database.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Dispatch.Sender = "discord"
	assert.Error(t, cfg.Validate(), "discord sin token")

	cfg.Discord.BotToken = "token"
	assert.Error(t, cfg.Validate(), "discord sin canales")

	cfg.Discord.DefaultChannel = "999"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Webhook.URL = ""
	assert.Error(t, cfg.Validate())
}
