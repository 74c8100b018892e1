package main

import (
	"flag"
	"fmt"

	"binance-dca-bot/internal/app"
	"binance-dca-bot/internal/jobs"
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

	sender, err := a.NewMailer()
	if err != nil {
		a.Logger.Fatal("Failed to initialize mailer", zap.Error(err))
	}

	reporter := jobs.NewReporter(a.Client, a.Store, sender, &a.Cfg.Binance, a.Logger)
	if err := reporter.Run(a.User); err != nil {
		a.Logger.Fatal("Report run failed", zap.Error(err))
	}
}
