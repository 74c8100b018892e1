package jobs

import (
	"context"
	"time"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/dates"
	"binance-dca-bot/internal/mailer"
	"binance-dca-bot/internal/portfolio"
	"binance-dca-bot/internal/report"
	"binance-dca-bot/internal/store"
	"binance-dca-bot/pkg/retrier"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Reporter syncs the previous month's trades, values the portfolio against
// live prices and mails the summary.
type Reporter struct {
	client  binance.RestClientInterface
	store   *store.Store
	mailer  mailer.Sender
	retrier *retrier.Retrier
	cfg     *config.Binance
	logger  *zap.Logger
	now     func() time.Time
}

// NewReporter wires the report job.
func NewReporter(client binance.RestClientInterface, st *store.Store, sender mailer.Sender, cfg *config.Binance, logger *zap.Logger) *Reporter {
	return &Reporter{
		client:  client,
		store:   st,
		mailer:  sender,
		retrier: retrier.New(),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run generates and sends the portfolio report for one user. An empty trade
// history is not an error: the report is skipped and the run succeeds.
func (r *Reporter) Run(user *config.UserConfig) error {
	if err := r.syncPreviousMonth(user.Assets); err != nil {
		return err
	}

	trades, err := r.store.Trades()
	if err != nil {
		return errors.Wrap(err, "could not load trade history")
	}
	if len(trades) == 0 {
		r.logger.Info("No trades recorded, skipping portfolio report")
		return nil
	}

	// One ticker snapshot covers every symbol in the history.
	tickers, err := r.client.GetAllTickerPrices()
	if err != nil {
		return errors.Wrap(err, "could not fetch ticker prices")
	}

	positions, summary, err := portfolio.Valuate(trades, tickerPriceFunc(tickers))
	if err != nil {
		return errors.Wrap(err, "portfolio valuation failed")
	}

	quoteBalance, err := r.quoteBalance()
	if err != nil {
		return err
	}

	body := report.RenderPortfolio(r.cfg.QuoteAsset, quoteBalance, positions, summary)
	if err := r.mailer.Send(user.Email.To, report.SubjectPortfolio, body); err != nil {
		return errors.Wrap(err, "could not send portfolio report")
	}

	r.logger.Info("Portfolio report sent", zap.String("to", user.Email.To))
	return nil
}

func (r *Reporter) syncPreviousMonth(assets []string) error {
	start := dates.PreviousMonthStartMillis(r.now())

	for _, asset := range assets {
		symbol := asset + r.cfg.QuoteAsset
		raw, err := r.client.GetMyTrades(symbol, start, 0)
		if err != nil {
			return errors.Wrapf(err, "could not fetch trades for %s", symbol)
		}
		trades, err := binance.NormalizeTrades(raw)
		if err != nil {
			return errors.Wrapf(err, "could not normalize trades for %s", symbol)
		}
		if len(trades) == 0 {
			continue
		}
		err = r.retrier.Do(context.Background(), func(context.Context) error {
			return r.store.InsertTrades(trades)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// tickerPriceFunc resolves symbol prices from a ticker snapshot.
func tickerPriceFunc(tickers map[string]string) portfolio.PriceFunc {
	return func(symbol string) (decimal.Decimal, error) {
		raw, ok := tickers[symbol]
		if !ok {
			return decimal.Zero, errors.Errorf("no ticker price for %s", symbol)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "unparsable ticker price %q for %s", raw, symbol)
		}
		return price, nil
	}
}

// quoteBalance returns free + locked of the quote asset, zero when the
// wallet holds none.
func (r *Reporter) quoteBalance() (decimal.Decimal, error) {
	account, err := r.client.GetAccount()
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not fetch account")
	}
	balances, err := binance.NormalizeBalances(account.Balances, r.now())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not normalize balances")
	}

	for _, balance := range balances {
		if balance.Asset == r.cfg.QuoteAsset {
			return balance.Total(), nil
		}
	}
	return decimal.Zero, nil
}
