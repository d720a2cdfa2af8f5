package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validYAML = `
bot:
  name: btc-grid-1
  venue: binance
  pair: BTC/USDT
  investment: "1000"
  grids: 10
  grid_size_percent: "1"
  sandbox: true
  health_interval_seconds: 30

fee_coin:
  enabled: true
  coin: BNB
  repurchase_balance: "20"
  repurchase_amount: "30"
  interval_seconds: 120

storage:
  dsn: ":memory:"
`

func TestLoad_ParsesDecimalsExactly(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "binance", cfg.Bot.Venue)
	assert.Equal(t, 10, cfg.Bot.Grids)
	assert.True(t, cfg.Bot.Sandbox)
	assert.Equal(t, "1000", cfg.Bot.InvestmentAmount().String())
	assert.Equal(t, "1", cfg.Bot.GridPercent().String())
	assert.Equal(t, "30s", cfg.Bot.HealthInterval().String())

	assert.Equal(t, "20", cfg.FeeCoin.RepurchaseBalance().String())
	assert.Equal(t, "30", cfg.FeeCoin.RepurchaseAmount().String())
	assert.Equal(t, "2m0s", cfg.FeeCoin.Interval().String())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
bot:
  venue: binance
  pair: BTC/USDT
  investment: "500"
  grids: 5
  grid_size_percent: "0.5"
`))
	require.NoError(t, err)

	assert.Equal(t, "gridbot", cfg.Bot.Name)
	assert.Equal(t, "1m0s", cfg.Bot.HealthInterval().String())
	assert.Equal(t, "gridbot.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EnvOverridesCredentials(t *testing.T) {
	t.Setenv("GRIDBOT_API_KEY", "key-from-env")
	t.Setenv("GRIDBOT_API_SECRET", "secret-from-env")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "key-from-env", cfg.Bot.APIKey)
	assert.Equal(t, "secret-from-env", cfg.Bot.APISecret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"missing pair",
			"bot:\n  venue: binance\n  investment: \"1000\"\n  grids: 10\n  grid_size_percent: \"1\"\n",
			"bot.pair is required",
		},
		{
			"missing venue",
			"bot:\n  pair: BTC/USDT\n  investment: \"1000\"\n  grids: 10\n  grid_size_percent: \"1\"\n",
			"bot.venue is required",
		},
		{
			"zero grids",
			"bot:\n  venue: binance\n  pair: BTC/USDT\n  investment: \"1000\"\n  grids: 0\n  grid_size_percent: \"1\"\n",
			"bot.grids must be positive",
		},
		{
			"negative investment",
			"bot:\n  venue: binance\n  pair: BTC/USDT\n  investment: \"-1\"\n  grids: 10\n  grid_size_percent: \"1\"\n",
			"bot.investment must be positive",
		},
		{
			"bad percent",
			"bot:\n  venue: binance\n  pair: BTC/USDT\n  investment: \"1000\"\n  grids: 10\n  grid_size_percent: \"abc\"\n",
			"bot.grid_size_percent",
		},
		{
			"fee coin without coin",
			"bot:\n  venue: binance\n  pair: BTC/USDT\n  investment: \"1000\"\n  grids: 10\n  grid_size_percent: \"1\"\nfee_coin:\n  enabled: true\n",
			"fee_coin.coin is required",
		},
		{
			"frontend without host",
			"bot:\n  venue: binance\n  pair: BTC/USDT\n  investment: \"1000\"\n  grids: 10\n  grid_size_percent: \"1\"\nfrontend:\n  enabled: true\n",
			"frontend.host is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
