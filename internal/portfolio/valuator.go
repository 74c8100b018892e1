package portfolio

import (
	"sort"

	"binance-dca-bot/internal/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrNoTrades signals that the trade history is empty. Callers skip report
// generation instead of producing a zero-filled report.
var ErrNoTrades = errors.New("no trades recorded")

// PriceFunc resolves the current price of a trading symbol.
type PriceFunc func(symbol string) (decimal.Decimal, error)

// AssetPosition is the derived valuation of one asset. It is computed on
// demand from the trade history and never persisted.
type AssetPosition struct {
	Symbol          string
	TotalSpend      decimal.Decimal
	TotalBought     decimal.Decimal
	TotalSold       decimal.Decimal
	CurrentQuantity decimal.Decimal
	AveragePrice    decimal.Decimal
	CurrentPrice    decimal.Decimal
	CurrentValue    decimal.Decimal
	PnL             decimal.Decimal
	PnLPercent      decimal.Decimal
}

// Summary aggregates the valuation across all assets.
type Summary struct {
	TotalSpend   decimal.Decimal
	CurrentValue decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
}

const percentPrecision = 8

type accumulator struct {
	spend  decimal.Decimal
	bought decimal.Decimal
	sold   decimal.Decimal
}

// Valuate computes per-asset positions and the portfolio summary from the
// trade history and current prices. Trades with an unrecognized side are a
// data-integrity error, not something to skip silently.
func Valuate(trades []models.Trade, price PriceFunc) ([]AssetPosition, Summary, error) {
	if len(trades) == 0 {
		return nil, Summary{}, ErrNoTrades
	}

	bySymbol := make(map[string]*accumulator)
	for _, trade := range trades {
		acc, ok := bySymbol[trade.Symbol]
		if !ok {
			acc = &accumulator{}
			bySymbol[trade.Symbol] = acc
		}

		switch trade.Side {
		case models.SideBuy:
			acc.spend = acc.spend.Add(trade.QuoteQuantity)
			acc.bought = acc.bought.Add(trade.Quantity)
		case models.SideSell:
			acc.sold = acc.sold.Add(trade.Quantity)
		default:
			return nil, Summary{}, errors.Errorf("trade %d has unrecognized side %q", trade.OrderID, trade.Side)
		}
	}

	symbols := make([]string, 0, len(bySymbol))
	for symbol := range bySymbol {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	positions := make([]AssetPosition, 0, len(symbols))
	summary := Summary{}
	for _, symbol := range symbols {
		acc := bySymbol[symbol]

		currentPrice, err := price(symbol)
		if err != nil {
			return nil, Summary{}, errors.Wrapf(err, "could not resolve price for %s", symbol)
		}

		pos := AssetPosition{
			Symbol:          symbol,
			TotalSpend:      acc.spend,
			TotalBought:     acc.bought,
			TotalSold:       acc.sold,
			CurrentQuantity: acc.bought.Sub(acc.sold),
			CurrentPrice:    currentPrice,
		}
		// Average price is undefined when nothing was bought; report zero.
		if acc.bought.IsPositive() {
			pos.AveragePrice = acc.spend.DivRound(acc.bought, percentPrecision)
		}
		pos.CurrentValue = pos.CurrentQuantity.Mul(currentPrice)
		pos.PnL = pos.CurrentValue.Sub(pos.TotalSpend)
		if pos.TotalSpend.IsPositive() {
			pos.PnLPercent = pos.PnL.DivRound(pos.TotalSpend, percentPrecision).Mul(decimal.NewFromInt(100))
		}

		positions = append(positions, pos)
		summary.TotalSpend = summary.TotalSpend.Add(pos.TotalSpend)
		summary.CurrentValue = summary.CurrentValue.Add(pos.CurrentValue)
	}

	summary.PnL = summary.CurrentValue.Sub(summary.TotalSpend)
	if summary.TotalSpend.IsPositive() {
		summary.PnLPercent = summary.PnL.DivRound(summary.TotalSpend, percentPrecision).Mul(decimal.NewFromInt(100))
	}

	return positions, summary, nil
}
