// Package jobs contains the one-shot workflows behind the cmd/ binaries.
// Each job processes a single user's configuration sequentially.
package jobs

import (
	"context"
	"strings"
	"time"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/dates"
	"binance-dca-bot/internal/models"
	"binance-dca-bot/internal/store"
	"binance-dca-bot/pkg/retrier"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const tradeRetentionDays = 365

// Sync captures the daily state: wallet balances, market capitalization
// ranks, daily high prices and the last 24 hours of trades.
type Sync struct {
	client  binance.RestClientInterface
	fetcher marketDataFetcher
	store   *store.Store
	retrier *retrier.Retrier
	cfg     *config.Binance
	logger  *zap.Logger
	now     func() time.Time
}

// marketDataFetcher is the slice of the market data client the sync needs.
type marketDataFetcher interface {
	GetTopCoins() ([]models.MarketSnapshot, error)
}

// NewSync wires the sync job.
func NewSync(client binance.RestClientInterface, fetcher marketDataFetcher, st *store.Store, cfg *config.Binance, logger *zap.Logger) *Sync {
	return &Sync{
		client:  client,
		fetcher: fetcher,
		store:   st,
		retrier: retrier.New(),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run performs one full sync for the given user.
func (j *Sync) Run(user *config.UserConfig) error {
	balances, err := j.syncBalances()
	if err != nil {
		return err
	}

	if err := j.syncMarketHistory(); err != nil {
		return err
	}

	if err := j.syncDailyHighs(user.Assets); err != nil {
		return err
	}

	if err := j.syncRecentTrades(balances); err != nil {
		return err
	}

	cutoff := j.now().UTC().AddDate(0, 0, -tradeRetentionDays)
	if err := j.insertRetry(func() error { return j.store.DeleteTradesBefore(cutoff) }); err != nil {
		return err
	}

	j.logger.Info("Sync complete")
	return nil
}

func (j *Sync) syncBalances() ([]models.Balance, error) {
	account, err := j.client.GetAccount()
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch account")
	}
	balances, err := binance.NormalizeBalances(account.Balances, j.now())
	if err != nil {
		return nil, errors.Wrap(err, "could not normalize balances")
	}
	if len(balances) == 0 {
		j.logger.Info("No non-zero balances found")
		return nil, nil
	}

	if err := j.insertRetry(func() error { return j.store.InsertBalances(balances) }); err != nil {
		return nil, err
	}
	return balances, nil
}

func (j *Sync) syncMarketHistory() error {
	snapshots, err := j.fetcher.GetTopCoins()
	if err != nil {
		return errors.Wrap(err, "could not fetch market data")
	}

	info, err := j.client.GetExchangeInfo()
	if err != nil {
		return errors.Wrap(err, "could not fetch exchange info")
	}
	available := spotTradableAssets(info, j.cfg.QuoteAsset)

	for i := range snapshots {
		snapshots[i].AvailableOnBinance = available[strings.ToUpper(snapshots[i].Symbol)]
	}

	return j.insertRetry(func() error { return j.store.InsertMarketSnapshots(snapshots) })
}

func (j *Sync) syncDailyHighs(assets []string) error {
	start, end := dates.YesterdayRangeMillis(j.now())
	at := j.now().UTC()

	highs := make([]models.DailyHighPrice, 0, len(assets))
	for _, asset := range assets {
		symbol := asset + j.cfg.QuoteAsset
		klines, err := j.client.GetDailyKlines(symbol, start, end)
		if err != nil {
			return errors.Wrapf(err, "could not fetch klines for %s", symbol)
		}
		if len(klines) == 0 {
			j.logger.Warn("No daily kline available", zap.String("symbol", symbol))
			continue
		}
		high, err := binance.KlineHigh(klines[0])
		if err != nil {
			return errors.Wrapf(err, "could not parse kline high for %s", symbol)
		}
		highs = append(highs, models.DailyHighPrice{Asset: asset, HighPrice: high, Timestamp: at})
	}

	return j.insertRetry(func() error { return j.store.InsertDailyHighPrices(highs) })
}

// syncRecentTrades stores the last 24 hours of trades for every held asset.
func (j *Sync) syncRecentTrades(balances []models.Balance) error {
	start, end := dates.Last24hRangeMillis(j.now())

	var all []models.Trade
	for _, balance := range balances {
		if balance.Asset == j.cfg.QuoteAsset {
			continue
		}
		symbol := balance.Asset + j.cfg.QuoteAsset
		raw, err := j.client.GetMyTrades(symbol, start, end)
		if err != nil {
			return errors.Wrapf(err, "could not fetch trades for %s", symbol)
		}
		trades, err := binance.NormalizeTrades(raw)
		if err != nil {
			return errors.Wrapf(err, "could not normalize trades for %s", symbol)
		}
		all = append(all, trades...)
	}

	if len(all) == 0 {
		j.logger.Info("No trades within the last 24 hours")
		return nil
	}
	return j.insertRetry(func() error { return j.store.InsertTrades(all) })
}

func (j *Sync) insertRetry(fn func() error) error {
	return j.retrier.Do(context.Background(), func(context.Context) error { return fn() })
}

// spotTradableAssets collects the base assets that allow spot trading
// against the given quote asset.
func spotTradableAssets(info *binance.ExchangeInfoResponse, quoteAsset string) map[string]bool {
	assets := make(map[string]bool)
	for _, symbol := range info.Symbols {
		if symbol.QuoteAsset == quoteAsset && symbol.SpotTradingAllowed {
			assets[strings.ToUpper(symbol.BaseAsset)] = true
		}
	}
	return assets
}
