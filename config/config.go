package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration. Amounts and percentages are
// decimal strings in YAML and parsed exactly; credentials come from the
// environment, never the YAML file.
type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	FeeCoin  FeeCoinConfig  `yaml:"fee_coin"`
	Frontend FrontendConfig `yaml:"frontend"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BotConfig holds the grid parameters and venue identity.
type BotConfig struct {
	Name                  string `yaml:"name"`
	Venue                 string `yaml:"venue"`
	Pair                  string `yaml:"pair"`
	Investment            string `yaml:"investment"`        // quote currency
	Grids                 int    `yaml:"grids"`
	GridSizePercent       string `yaml:"grid_size_percent"` // increment = price × pct / 100
	Sandbox               bool   `yaml:"sandbox"`
	HealthIntervalSeconds int    `yaml:"health_interval_seconds"`

	APIKey    string `yaml:"-"` // GRIDBOT_API_KEY
	APISecret string `yaml:"-"` // GRIDBOT_API_SECRET

	investment  decimal.Decimal
	gridPercent decimal.Decimal
}

// FeeCoinConfig controls the auxiliary fee-coin top-up job.
type FeeCoinConfig struct {
	Enabled                bool   `yaml:"enabled"`
	Coin                   string `yaml:"coin"`
	RepurchaseBalanceQuote string `yaml:"repurchase_balance"` // threshold, quote currency
	RepurchaseAmountQuote  string `yaml:"repurchase_amount"`  // per purchase, quote currency
	IntervalSeconds        int    `yaml:"interval_seconds"`

	repurchaseBalance decimal.Decimal
	repurchaseAmount  decimal.Decimal
}

// FrontendConfig controls the monitoring dashboard push channel.
type FrontendConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
}

// StorageConfig controls where snapshots are persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment
// values override the YAML for the keys they cover.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // silent when no .env exists

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Investment returns the total quote-currency budget of the grid.
func (b BotConfig) InvestmentAmount() decimal.Decimal {
	return b.investment
}

// GridPercent returns the grid increment percentage.
func (b BotConfig) GridPercent() decimal.Decimal {
	return b.gridPercent
}

// HealthInterval returns the health-check period.
func (b BotConfig) HealthInterval() time.Duration {
	return time.Duration(b.HealthIntervalSeconds) * time.Second
}

// RepurchaseBalance returns the fee-coin value threshold.
func (f FeeCoinConfig) RepurchaseBalance() decimal.Decimal {
	return f.repurchaseBalance
}

// RepurchaseAmount returns the quote amount bought per top-up.
func (f FeeCoinConfig) RepurchaseAmount() decimal.Decimal {
	return f.repurchaseAmount
}

// Interval returns the top-up check period.
func (f FeeCoinConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

// parse converts decimal strings and validates required fields.
func (c *Config) parse() error {
	var err error
	if c.Bot.Pair == "" {
		return fmt.Errorf("bot.pair is required")
	}
	if c.Bot.Venue == "" {
		return fmt.Errorf("bot.venue is required")
	}
	if c.Bot.Grids <= 0 {
		return fmt.Errorf("bot.grids must be positive, got %d", c.Bot.Grids)
	}

	if c.Bot.investment, err = decimal.NewFromString(c.Bot.Investment); err != nil {
		return fmt.Errorf("bot.investment %q: %w", c.Bot.Investment, err)
	}
	if !c.Bot.investment.IsPositive() {
		return fmt.Errorf("bot.investment must be positive, got %s", c.Bot.Investment)
	}
	if c.Bot.gridPercent, err = decimal.NewFromString(c.Bot.GridSizePercent); err != nil {
		return fmt.Errorf("bot.grid_size_percent %q: %w", c.Bot.GridSizePercent, err)
	}
	if !c.Bot.gridPercent.IsPositive() {
		return fmt.Errorf("bot.grid_size_percent must be positive, got %s", c.Bot.GridSizePercent)
	}

	if c.FeeCoin.Enabled {
		if c.FeeCoin.Coin == "" {
			return fmt.Errorf("fee_coin.coin is required when enabled")
		}
		if c.FeeCoin.repurchaseBalance, err = decimal.NewFromString(c.FeeCoin.RepurchaseBalanceQuote); err != nil {
			return fmt.Errorf("fee_coin.repurchase_balance %q: %w", c.FeeCoin.RepurchaseBalanceQuote, err)
		}
		if c.FeeCoin.repurchaseAmount, err = decimal.NewFromString(c.FeeCoin.RepurchaseAmountQuote); err != nil {
			return fmt.Errorf("fee_coin.repurchase_amount %q: %w", c.FeeCoin.RepurchaseAmountQuote, err)
		}
	}

	if c.Frontend.Enabled && c.Frontend.Host == "" {
		return fmt.Errorf("frontend.host is required when enabled")
	}
	return nil
}

// applyEnvOverrides pulls credentials and log settings from the
// environment when present.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRIDBOT_API_KEY"); v != "" {
		cfg.Bot.APIKey = v
	}
	if v := os.Getenv("GRIDBOT_API_SECRET"); v != "" {
		cfg.Bot.APISecret = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills required values with sensible defaults.
func setDefaults(cfg *Config) {
	if cfg.Bot.Name == "" {
		cfg.Bot.Name = "gridbot"
	}
	if cfg.Bot.HealthIntervalSeconds <= 0 {
		cfg.Bot.HealthIntervalSeconds = 60
	}
	if cfg.FeeCoin.IntervalSeconds <= 0 {
		cfg.FeeCoin.IntervalSeconds = 60
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "gridbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
