package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `
bot:
  user_id: "123456"
  username: pokebattlebot
  bearer_token: secret
database:
  host: db.internal
  port: 5433
payment:
  wallet_address: "0x1111111111111111111111111111111111111111"
poller:
  interval: 5m
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "123456", cfg.Bot.UserID)
	assert.Equal(t, "pokebattlebot", cfg.Bot.Username)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, 5*time.Minute, cfg.Poller.Interval)

	// Defaults fill whatever the file leaves out.
	assert.Equal(t, time.Hour, cfg.Poller.Lookback)
	assert.Equal(t, time.Second, cfg.Poller.MessageDelay)
	assert.Equal(t, 100, cfg.Poller.MaxResults)
	assert.Equal(t, "https://mainnet.base.org", cfg.Payment.RPCURL)
	assert.Equal(t, "assets/pokemon", cfg.Assets.Dir)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoad_RequiredFields(t *testing.T) {
	t.Run("missing user id", func(t *testing.T) {
		dir := writeConfig(t, "bot:\n  username: pokebattlebot\n")
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrMissingBotUserID)
	})

	t.Run("missing handle", func(t *testing.T) {
		dir := writeConfig(t, "bot:\n  user_id: \"123456\"\n")
		_, err := Load(dir)
		assert.ErrorIs(t, err, ErrMissingBotHandle)
	})
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingBotUserID)

	cfg.Bot.UserID = "  "
	assert.ErrorIs(t, cfg.Validate(), ErrMissingBotUserID)

	cfg.Bot.UserID = "123456"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingBotHandle)

	cfg.Bot.Username = "pokebattlebot"
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "pokemonbot",
		Password: "pw",
		Name:     "pokemonbot",
	}
	assert.Equal(t, "postgres://pokemonbot:pw@localhost:5432/pokemonbot?sslmode=disable", d.DSN())
}
