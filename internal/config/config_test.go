package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	content := `
binance:
  testnet: true
  quote_asset: USDC
database:
  driver: sqlite
  dsn: trading.db
logger:
  level: debug
  format: console
users:
  file: configs/users.yml
`
	err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(content), 0o600)
	assert.NoError(t, err)

	cfg, err := LoadConfig(dir)

	assert.NoError(t, err)
	assert.True(t, cfg.Binance.Testnet)
	assert.Equal(t, "USDC", cfg.Binance.QuoteAsset)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "trading.db", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Logger.Level)

	// Defaults fill what the file leaves out.
	assert.Equal(t, 15.0, cfg.Binance.MinTradeAmount)
	assert.Equal(t, float64(20), cfg.Binance.RateLimit)
	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(t.TempDir())

	assert.Error(t, err)
}
