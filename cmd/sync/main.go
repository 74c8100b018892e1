package main

import (
	"flag"
	"fmt"

	"binance-dca-bot/internal/app"
	"binance-dca-bot/internal/jobs"
	"binance-dca-bot/internal/marketdata"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "./configs", "path to the config directory")
	userID := flag.String("user", "user_1", "user id from the users file")
	flag.Parse()

	a, err := app.Bootstrap(*configPath, *userID)
	if err != nil {
		panic(fmt.Sprintf("bootstrap failed: %v", err))
	}
	defer a.Logger.Sync()

	fetcher := marketdata.NewFetcher("", a.Logger)
	sync := jobs.NewSync(a.Client, fetcher, a.Store, &a.Cfg.Binance, a.Logger)
	if err := sync.Run(a.User); err != nil {
		a.Logger.Fatal("Sync failed", zap.Error(err))
	}
}
