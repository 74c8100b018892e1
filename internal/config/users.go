package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UserConfig is the DCA configuration of a single user. All fields are
// required; validation happens once when the file is loaded so the rest of
// the code can rely on the structure being complete.
type UserConfig struct {
	Assets      []string           `yaml:"assets"`
	AmountUSD   map[string]float64 `yaml:"amount_usd"`
	DropPercent float64            `yaml:"drop_percent"`
	Frequency   string             `yaml:"frequency"`
	Email       UserEmail          `yaml:"email"`
	AzureVault  AzureVault         `yaml:"azure_vault"`
}

// UserEmail holds the report sender and recipient addresses.
type UserEmail struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// AzureVault identifies the key vault holding the user's credentials.
type AzureVault struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// LoadUserConfig reads the per-user YAML file and returns the validated
// configuration for the given user id.
func LoadUserConfig(path, userID string) (*UserConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read user config %s: %w", path, err)
	}

	users := make(map[string]*UserConfig)
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("invalid YAML in user config %s: %w", path, err)
	}

	user, ok := users[userID]
	if !ok {
		return nil, fmt.Errorf("user %q not found in %s", userID, path)
	}

	if err := user.validate(userID); err != nil {
		return nil, err
	}
	return user, nil
}

func (u *UserConfig) validate(userID string) error {
	switch {
	case len(u.Assets) == 0:
		return fmt.Errorf("missing 'assets' in config for user %q", userID)
	case len(u.AmountUSD) == 0:
		return fmt.Errorf("missing 'amount_usd' in config for user %q", userID)
	case u.DropPercent <= 0:
		return fmt.Errorf("missing 'drop_percent' in config for user %q", userID)
	case u.Frequency == "":
		return fmt.Errorf("missing 'frequency' in config for user %q", userID)
	case u.Email.From == "" || u.Email.To == "":
		return fmt.Errorf("missing 'email' in config for user %q", userID)
	case u.AzureVault.Name == "" || u.AzureVault.URL == "":
		return fmt.Errorf("missing 'azure_vault' in config for user %q", userID)
	}

	// Every configured asset needs a buy amount.
	for _, asset := range u.Assets {
		if _, ok := u.AmountUSD[asset]; !ok {
			return fmt.Errorf("missing 'amount_usd' entry for asset %q (user %q)", asset, userID)
		}
	}
	return nil
}

// TotalMonthlyAmount sums the configured buy amounts across all assets.
func (u *UserConfig) TotalMonthlyAmount() float64 {
	var total float64
	for _, asset := range u.Assets {
		total += u.AmountUSD[asset]
	}
	return total
}
