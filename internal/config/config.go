package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application-level configuration. Per-user DCA settings
// live in a separate file, see users.go.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	SMTP     SMTP     `mapstructure:"smtp"`
	Users    Users    `mapstructure:"users"`
}

// Binance holds the configuration for the Binance API. API credentials are
// not part of the config file; they are retrieved from the key vault at
// startup and passed to the client explicitly.
type Binance struct {
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	QuoteAsset     string  `mapstructure:"quote_asset"`
	MinTradeAmount float64 `mapstructure:"min_trade_amount"`
}

// Database holds the configuration for the relational store. Driver is
// "sqlite" for local runs and tests, "sqlserver" for Azure SQL. For
// sqlserver the DSN is assembled from key vault secrets, so only the
// database name is configured here.
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Name   string `mapstructure:"name"`
}

// SMTP holds the mail submission endpoint. The account password comes from
// the key vault, the sender and recipient from the user config.
type SMTP struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Users points at the per-user DCA configuration file.
type Users struct {
	File string `mapstructure:"file"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size
	viper.SetDefault("binance.quote_asset", "USDC")
	viper.SetDefault("binance.min_trade_amount", 15.0)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("smtp.host", "smtp.gmail.com")
	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("users.file", "configs/users.yml")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
