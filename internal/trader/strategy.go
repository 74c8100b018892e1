package trader

import "binance-dca-bot/internal/config"

// Strategy defines the interface for a trading strategy. A strategy
// processes one user's configuration end-to-end in a single run.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Run executes the strategy for the given user.
	Run(user *config.UserConfig) error
}
