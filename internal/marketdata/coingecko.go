package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"binance-dca-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultPerPage = 50
	defaultPages   = 2
)

// FetcherInterface fetches the top coins by market capitalization.
type FetcherInterface interface {
	GetTopCoins() ([]models.MarketSnapshot, error)
}

// Fetcher retrieves market data from the CoinGecko /coins/markets endpoint.
type Fetcher struct {
	client   *resty.Client
	currency string
	perPage  int
	pages    int
	logger   *zap.Logger
}

var _ FetcherInterface = (*Fetcher)(nil)

// NewFetcher creates a CoinGecko market data fetcher. baseURL may be empty
// to use the public API.
func NewFetcher(baseURL string, logger *zap.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Fetcher{
		client:   resty.New().SetBaseURL(baseURL).SetTimeout(10 * time.Second),
		currency: "usd",
		perPage:  defaultPerPage,
		pages:    defaultPages,
		logger:   logger,
	}
}

// rawCoin mirrors the CoinGecko response. Required fields are pointers so a
// missing field is distinguishable from a zero value and can be reported as
// a data-shape error instead of being stored as zero.
type rawCoin struct {
	ID           *string  `json:"id"`
	Name         *string  `json:"name"`
	Symbol       *string  `json:"symbol"`
	Rank         *int     `json:"market_cap_rank"`
	CurrentPrice *float64 `json:"current_price"`
	High24h      *float64 `json:"high_24h"`
	Low24h       *float64 `json:"low_24h"`
	MarketCap    *float64 `json:"market_cap"`
	LastUpdated  *string  `json:"last_updated"`
}

// GetTopCoins fetches the configured number of pages ordered by market cap
// and converts them into snapshot records.
func (f *Fetcher) GetTopCoins() ([]models.MarketSnapshot, error) {
	var raw []rawCoin
	for page := 1; page <= f.pages; page++ {
		pageCoins, err := f.fetchPage(page)
		if err != nil {
			return nil, err
		}
		raw = append(raw, pageCoins...)
	}
	f.logger.Info("Fetched market data from CoinGecko", zap.Int("coins", len(raw)))

	snapshots := make([]models.MarketSnapshot, 0, len(raw))
	for _, coin := range raw {
		snapshot, err := normalizeCoin(coin)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

func (f *Fetcher) fetchPage(page int) ([]rawCoin, error) {
	var coins []rawCoin

	resp, err := f.client.R().
		SetContext(context.Background()).
		SetQueryParams(map[string]string{
			"vs_currency": f.currency,
			"order":       "market_cap_desc",
			"per_page":    strconv.Itoa(f.perPage),
			"page":        strconv.Itoa(page),
			"sparkline":   "false",
		}).
		SetResult(&coins).
		Get("/coins/markets")
	if err != nil {
		return nil, fmt.Errorf("coingecko request failed for page %d: %w", page, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("coingecko request failed for page %d with status %s", page, resp.Status())
	}

	return coins, nil
}

func normalizeCoin(coin rawCoin) (models.MarketSnapshot, error) {
	if coin.ID == nil || coin.Name == nil || coin.Symbol == nil || coin.Rank == nil ||
		coin.CurrentPrice == nil || coin.High24h == nil || coin.Low24h == nil ||
		coin.MarketCap == nil || coin.LastUpdated == nil {
		id := "?"
		if coin.ID != nil {
			id = *coin.ID
		}
		return models.MarketSnapshot{}, fmt.Errorf("missing required field in coingecko record %q", id)
	}

	updated, err := time.Parse(time.RFC3339, *coin.LastUpdated)
	if err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("unparsable last_updated for %q: %w", *coin.ID, err)
	}

	return models.MarketSnapshot{
		Rank:      *coin.Rank,
		Name:      *coin.Name,
		Symbol:    *coin.Symbol,
		Price:     decimal.NewFromFloat(*coin.CurrentPrice).Round(8),
		High:      decimal.NewFromFloat(*coin.High24h).Round(8),
		Low:       decimal.NewFromFloat(*coin.Low24h).Round(8),
		MarketCap: decimal.NewFromFloat(*coin.MarketCap).Round(8),
		Timestamp: updated.UTC(),
	}, nil
}
