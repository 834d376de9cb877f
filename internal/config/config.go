// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Database DatabaseConfig `mapstructure:"database"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Server   ServerConfig   `mapstructure:"server"`
}

// BotConfig identifies the bot's own social account. UserID and
// Username are both required at startup; mentions are filtered and
// fetched against them.
type BotConfig struct {
	UserID      string `mapstructure:"user_id"`
	Username    string `mapstructure:"username"`
	BearerToken string `mapstructure:"bearer_token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// PaymentConfig holds on-chain payment verification configuration.
type PaymentConfig struct {
	WalletAddress string `mapstructure:"wallet_address"`
	RPCURL        string `mapstructure:"rpc_url"`
}

// PollerConfig holds mention polling configuration.
type PollerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	Lookback     time.Duration `mapstructure:"lookback"`
	MessageDelay time.Duration `mapstructure:"message_delay"`
	MaxResults   int           `mapstructure:"max_results"`
}

// AssetsConfig holds creature image asset configuration.
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig holds the health-check HTTP server configuration.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Required-configuration errors. Either aborts startup.
var (
	ErrMissingBotUserID = errors.New("bot.user_id is required: set it to the bot account's numeric id")
	ErrMissingBotHandle = errors.New("bot.username is required: set it to the bot account's @handle without the @")
)

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_USER_ID, DATABASE_HOST, PAYMENT_RPC_URL.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the required startup values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.UserID) == "" {
		return ErrMissingBotUserID
	}
	if strings.TrimSpace(c.Bot.Username) == "" {
		return ErrMissingBotHandle
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pokemonbot")
	v.SetDefault("database.name", "pokemonbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Poller defaults: two-minute cycles, an hour of lookback on
	// first run, one second between processed mentions.
	v.SetDefault("poller.interval", "2m")
	v.SetDefault("poller.lookback", "1h")
	v.SetDefault("poller.message_delay", "1s")
	v.SetDefault("poller.max_results", 100)

	// Payment defaults
	v.SetDefault("payment.rpc_url", "https://mainnet.base.org")

	// Asset and server defaults
	v.SetDefault("assets.dir", "assets/pokemon")
	v.SetDefault("server.port", 3000)
}
