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
	months := flag.Int("months", jobs.DefaultBufferMonths, "months of buys the balance must cover")
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

	check := jobs.NewLowBalance(a.Client, sender, &a.Cfg.Binance, *months, a.Logger)
	if err := check.Run(a.User); err != nil {
		a.Logger.Fatal("Low balance check failed", zap.Error(err))
	}
}
