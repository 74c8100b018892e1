package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validUsersYAML = `
user_1:
  assets:
    - BTC
    - ETH
  amount_usd:
    BTC: 100
    ETH: 50
  drop_percent: 2.5
  frequency: monthly
  email:
    from: bot@example.com
    to: user@example.com
  azure_vault:
    name: my-vault
    url: https://my-vault.vault.azure.net/
user_2:
  assets:
    - SOL
  amount_usd:
    BTC: 100
  drop_percent: 2.5
  frequency: monthly
  email:
    from: bot@example.com
    to: other@example.com
  azure_vault:
    name: other-vault
    url: https://other-vault.vault.azure.net/
`

func writeUsersFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "users.yml")
	err := os.WriteFile(path, []byte(content), 0o600)
	assert.NoError(t, err)
	return path
}

func TestLoadUserConfig_Success(t *testing.T) {
	path := writeUsersFile(t, validUsersYAML)

	user, err := LoadUserConfig(path, "user_1")

	assert.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, user.Assets)
	assert.Equal(t, 100.0, user.AmountUSD["BTC"])
	assert.Equal(t, 2.5, user.DropPercent)
	assert.Equal(t, "monthly", user.Frequency)
	assert.Equal(t, "user@example.com", user.Email.To)
	assert.Equal(t, "https://my-vault.vault.azure.net/", user.AzureVault.URL)
}

func TestLoadUserConfig_UnknownUser(t *testing.T) {
	path := writeUsersFile(t, validUsersYAML)

	_, err := LoadUserConfig(path, "user_99")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), `user "user_99" not found`)
}

func TestLoadUserConfig_AssetWithoutAmount(t *testing.T) {
	path := writeUsersFile(t, validUsersYAML)

	// user_2 lists SOL but only configures an amount for BTC.
	_, err := LoadUserConfig(path, "user_2")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), `missing 'amount_usd' entry for asset "SOL"`)
}

func TestLoadUserConfig_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "NoAssets",
			yaml:    "user_1:\n  amount_usd:\n    BTC: 100\n",
			wantErr: "missing 'assets'",
		},
		{
			name:    "NoDropPercent",
			yaml:    "user_1:\n  assets: [BTC]\n  amount_usd:\n    BTC: 100\n",
			wantErr: "missing 'drop_percent'",
		},
		{
			name:    "NoEmail",
			yaml:    "user_1:\n  assets: [BTC]\n  amount_usd:\n    BTC: 100\n  drop_percent: 2\n  frequency: monthly\n",
			wantErr: "missing 'email'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeUsersFile(t, tt.yaml)

			_, err := LoadUserConfig(path, "user_1")

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadUserConfig_InvalidYAML(t *testing.T) {
	path := writeUsersFile(t, "user_1: [not: valid")

	_, err := LoadUserConfig(path, "user_1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}

func TestLoadUserConfig_FileNotFound(t *testing.T) {
	_, err := LoadUserConfig(filepath.Join(t.TempDir(), "missing.yml"), "user_1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "could not read user config")
}

func TestTotalMonthlyAmount(t *testing.T) {
	user := &UserConfig{
		Assets:    []string{"BTC", "ETH"},
		AmountUSD: map[string]float64{"BTC": 100, "ETH": 50, "SOL": 25},
	}

	// Only the assets actually traded count towards the monthly total.
	assert.Equal(t, 150.0, user.TotalMonthlyAmount())
}
