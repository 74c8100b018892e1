package main

import (
	"flag"
	"fmt"

	"binance-dca-bot/internal/app"
	"binance-dca-bot/internal/trader"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs", "path to the config directory")
	userID := flag.String("user", "user_1", "user id from the users file")
	flag.Parse()

	a, err := app.Bootstrap(*configPath, *userID)
	if err != nil {
		// We can't use the logger here because it may not be initialized yet.
		panic(fmt.Sprintf("bootstrap failed: %v", err))
	}
	defer a.Logger.Sync()

	if _, err := a.Client.GetServerTime(); err != nil {
		a.Logger.Fatal("Failed to connect to Binance API", zap.Error(err))
	}
	a.Logger.Info("Successfully connected to Binance API")

	strategy := trader.NewDCAStrategy(a.Client, a.Store, &a.Cfg.Binance, a.Logger)
	if err := strategy.Run(a.User); err != nil {
		a.Logger.Fatal("DCA run failed", zap.Error(err))
	}

	a.Logger.Info("DCA run complete")
}
