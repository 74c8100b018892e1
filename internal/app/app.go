// Package app wires the collaborators shared by all entrypoints: config,
// logger, key vault, exchange client and the relational store.
package app

import (
	"context"
	"fmt"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/database"
	"binance-dca-bot/internal/logger"
	"binance-dca-bot/internal/mailer"
	"binance-dca-bot/internal/store"
	"binance-dca-bot/internal/vault"
	"binance-dca-bot/pkg/retrier"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App bundles the initialized collaborators for one user's run.
type App struct {
	Cfg     config.Config
	User    *config.UserConfig
	Logger  *zap.Logger
	Vault   vault.SecretStore
	Client  *binance.RestClient
	Store   *store.Store
	retrier *retrier.Retrier
}

// Bootstrap loads configuration and credentials and connects to the
// exchange and the database. It is fatal-on-error by contract: every
// returned error aborts the run.
func Bootstrap(configPath, userID string) (*App, error) {
	// A missing .env is fine; variables may come from the environment.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	user, err := config.LoadUserConfig(cfg.Users.File, userID)
	if err != nil {
		return nil, err
	}
	log.Info("User configuration loaded", zap.String("user", userID))

	kv, err := vault.New(user.AzureVault.URL, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Cfg:     cfg,
		User:    user,
		Logger:  log,
		Vault:   kv,
		retrier: retrier.New(),
	}

	apiKey, err := a.secret(vault.SecretBinanceAPIKey)
	if err != nil {
		return nil, err
	}
	apiSecret, err := a.secret(vault.SecretBinanceAPISecret)
	if err != nil {
		return nil, err
	}
	a.Client = binance.NewRestClient(&cfg.Binance, apiKey, apiSecret, log)

	dsn := ""
	if cfg.Database.Driver == "sqlserver" {
		server, err := a.secret(vault.SecretSQLServer)
		if err != nil {
			return nil, err
		}
		username, err := a.secret(vault.SecretSQLUsername)
		if err != nil {
			return nil, err
		}
		password, err := a.secret(vault.SecretSQLPassword)
		if err != nil {
			return nil, err
		}
		dsn = database.SQLServerDSN(server, username, password, cfg.Database.Name)
	}

	db, err := database.NewDatabase(&cfg.Database, dsn)
	if err != nil {
		return nil, err
	}
	a.Store = store.New(db, log)
	log.Info("Database connection successful and schema migrated")

	return a, nil
}

// NewMailer builds the SMTP sender for the user, fetching the account
// password from the vault.
func (a *App) NewMailer() (*mailer.Mailer, error) {
	password, err := a.secret(vault.SecretSMTPPassword)
	if err != nil {
		return nil, err
	}
	return mailer.New(&a.Cfg.SMTP, a.User.Email.From, password, a.Logger)
}

// secret fetches a vault secret with the call-site retry policy.
func (a *App) secret(name string) (string, error) {
	return retrier.DoWithData(a.retrier, context.Background(), func(ctx context.Context) (string, error) {
		return a.Vault.GetSecret(ctx, name)
	})
}
