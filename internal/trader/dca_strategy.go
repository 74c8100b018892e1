package trader

import (
	"time"

	"binance-dca-bot/internal/binance"
	"binance-dca-bot/internal/config"
	"binance-dca-bot/internal/dates"
	"binance-dca-bot/internal/models"
	"binance-dca-bot/internal/store"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FrequencyMonthly limits buys to one per asset per calendar month.
const FrequencyMonthly = "monthly"

var hundred = decimal.NewFromInt(100)

// DCAStrategy buys a fixed quote amount of each configured asset, placing a
// market order when the price has dropped the configured percentage below
// the reference high and a resting limit order at the target price
// otherwise.
type DCAStrategy struct {
	client binance.RestClientInterface
	store  *store.Store
	cfg    *config.Binance
	logger *zap.Logger
	now    func() time.Time
}

var _ Strategy = (*DCAStrategy)(nil)

// NewDCAStrategy creates the strategy with explicit collaborators.
func NewDCAStrategy(client binance.RestClientInterface, st *store.Store, cfg *config.Binance, logger *zap.Logger) *DCAStrategy {
	return &DCAStrategy{
		client: client,
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *DCAStrategy) Name() string {
	return "DCA"
}

// Run executes the strategy sequentially for every configured asset.
// A failure on one asset aborts the run; there is no cross-asset recovery.
func (s *DCAStrategy) Run(user *config.UserConfig) error {
	dropPercent := decimal.NewFromFloat(user.DropPercent)

	for _, asset := range user.Assets {
		amountUSD := decimal.NewFromFloat(user.AmountUSD[asset])
		if err := s.runAsset(asset, amountUSD, dropPercent, user.Frequency); err != nil {
			return errors.Wrapf(err, "dca run failed for %s", asset)
		}
	}
	return nil
}

func (s *DCAStrategy) runAsset(asset string, amountUSD, dropPercent decimal.Decimal, frequency string) error {
	symbol := asset + s.cfg.QuoteAsset
	l := s.logger.With(zap.String("symbol", symbol), zap.String("amount_usd", amountUSD.String()))

	// Orders below the exchange minimum are rejected up front.
	if err := s.validateTradeAmount(amountUSD); err != nil {
		return err
	}

	if frequency == FrequencyMonthly {
		bought, err := s.boughtThisMonth(symbol)
		if err != nil {
			return err
		}
		if bought {
			l.Info("Asset already bought this month, skipping")
			return nil
		}
	}

	// Stale resting orders from a previous run would double-spend the budget.
	if err := s.cancelOpenOrders(symbol); err != nil {
		return err
	}

	high, err := s.referenceHigh(asset, symbol)
	if err != nil {
		return err
	}
	target := high.Mul(decimal.NewFromInt(1).Sub(dropPercent.Div(hundred)))

	current, err := s.client.GetSymbolPrice(symbol)
	if err != nil {
		return errors.Wrap(err, "could not fetch current price")
	}

	if err := s.ensureSufficientFunds(amountUSD); err != nil {
		return err
	}

	var resp *binance.CreateOrderResponse
	if current.LessThanOrEqual(target) {
		l.Info("Price at or below target, placing market buy",
			zap.String("current", current.String()),
			zap.String("target", target.String()))
		resp, err = s.client.CreateOrder(binance.OrderRequest{
			Symbol:        symbol,
			Side:          binance.OrderSideBuy,
			Type:          binance.OrderTypeMarket,
			QuoteOrderQty: amountUSD.Round(2),
		})
	} else {
		quantity := amountUSD.DivRound(target, 5)
		l.Info("Price above target, placing limit buy",
			zap.String("current", current.String()),
			zap.String("target", target.String()),
			zap.String("quantity", quantity.String()))
		resp, err = s.client.CreateOrder(binance.OrderRequest{
			Symbol:   symbol,
			Side:     binance.OrderSideBuy,
			Type:     binance.OrderTypeLimit,
			Quantity: quantity,
			Price:    target,
		})
	}
	if err != nil {
		return errors.Wrap(err, "order placement failed")
	}

	return s.recordExecution(resp, l)
}

// validateTradeAmount rejects orders below the exchange minimum. The
// minimum is a hard floor: an undersized order is an error, never a
// silently accepted trade.
func (s *DCAStrategy) validateTradeAmount(amountUSD decimal.Decimal) error {
	min := decimal.NewFromFloat(s.cfg.MinTradeAmount)
	if amountUSD.LessThan(min) {
		return errors.Errorf("order amount %s %s is below the exchange minimum of %s %s",
			amountUSD.StringFixed(2), s.cfg.QuoteAsset, min.StringFixed(2), s.cfg.QuoteAsset)
	}
	return nil
}

// boughtThisMonth reports whether a BUY for the symbol happened in the
// current calendar month, based on the exchange trade history.
func (s *DCAStrategy) boughtThisMonth(symbol string) (bool, error) {
	raw, err := s.client.GetMyTrades(symbol, dates.StartOfMonthMillis(s.now()), 0)
	if err != nil {
		return false, errors.Wrap(err, "could not fetch trade history")
	}
	for _, trade := range raw {
		if trade.IsBuyer {
			return true, nil
		}
	}
	return false, nil
}

func (s *DCAStrategy) cancelOpenOrders(symbol string) error {
	orders, err := s.client.GetOpenOrders(symbol)
	if err != nil {
		return errors.Wrap(err, "could not fetch open orders")
	}
	for _, order := range orders {
		if err := s.client.CancelOrder(symbol, order.OrderID); err != nil {
			return errors.Wrapf(err, "could not cancel order %d", order.OrderID)
		}
	}
	if len(orders) > 0 {
		s.logger.Info("Cancelled stale open orders",
			zap.String("symbol", symbol), zap.Int("count", len(orders)))
	}
	return nil
}

// referenceHigh returns the stored daily high for the asset, falling back
// to yesterday's kline high when the store has no row yet.
func (s *DCAStrategy) referenceHigh(asset, symbol string) (decimal.Decimal, error) {
	stored, err := s.store.LatestDailyHigh(asset)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not load stored daily high")
	}
	if stored != nil {
		return stored.HighPrice, nil
	}

	start, end := dates.YesterdayRangeMillis(s.now())
	klines, err := s.client.GetDailyKlines(symbol, start, end)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not fetch yesterday's klines")
	}
	if len(klines) == 0 {
		return decimal.Zero, errors.Errorf("no daily kline available for %s", symbol)
	}
	high, err := binance.KlineHigh(klines[0])
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "could not parse kline high")
	}
	return high, nil
}

func (s *DCAStrategy) ensureSufficientFunds(amountUSD decimal.Decimal) error {
	account, err := s.client.GetAccount()
	if err != nil {
		return errors.Wrap(err, "could not fetch account balances")
	}
	balances, err := binance.NormalizeBalances(account.Balances, s.now())
	if err != nil {
		return errors.Wrap(err, "could not normalize balances")
	}

	for _, balance := range balances {
		if balance.Asset == s.cfg.QuoteAsset {
			if balance.Free.GreaterThanOrEqual(amountUSD) {
				return nil
			}
			return errors.Errorf("insufficient funds: %s %s available, %s required",
				balance.Free.StringFixed(2), s.cfg.QuoteAsset, amountUSD.StringFixed(2))
		}
	}
	return errors.Errorf("no %s balance found in wallet", s.cfg.QuoteAsset)
}

// recordExecution persists the executed part of an order. A resting limit
// order with no fills leaves nothing to record yet; its trade shows up in
// the next history sync instead.
func (s *DCAStrategy) recordExecution(resp *binance.CreateOrderResponse, l *zap.Logger) error {
	executed, err := decimal.NewFromString(resp.ExecutedQuantity)
	if err != nil {
		return errors.Wrapf(err, "unparsable executedQty %q for order %d", resp.ExecutedQuantity, resp.OrderID)
	}
	if !executed.IsPositive() {
		l.Info("Order placed, nothing executed yet", zap.Int64("order_id", resp.OrderID))
		return nil
	}

	trade, err := binance.NormalizeOrderTrade(resp)
	if err != nil {
		return errors.Wrap(err, "could not normalize executed order")
	}
	if err := s.store.InsertTrades([]models.Trade{trade}); err != nil {
		return errors.Wrap(err, "could not persist executed trade")
	}

	l.Info("Trade executed and recorded",
		zap.Int64("order_id", trade.OrderID),
		zap.String("quantity", trade.Quantity.String()),
		zap.String("quote_quantity", trade.QuoteQuantity.String()))
	return nil
}
