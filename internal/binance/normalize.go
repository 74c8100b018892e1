package binance

import (
	"fmt"
	"time"

	"binance-dca-bot/internal/models"
	"github.com/shopspring/decimal"
)

// storedPrecision is the number of decimal places kept when a value is
// normalized for persistence.
const storedPrecision = 8

// parseAmount coerces an exchange numeric string into a decimal rounded to
// the stored precision. An empty or unparsable value is a data-shape error:
// it is reported instead of being persisted as zero.
func parseAmount(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, fmt.Errorf("missing field %q in exchange response", field)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable field %q (%q): %w", field, value, err)
	}
	return d.Round(storedPrecision), nil
}

// epochMillisToUTC converts an epoch millisecond timestamp to a UTC instant.
func epochMillisToUTC(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// NormalizeTrade converts a raw exchange trade into the canonical record.
func NormalizeTrade(raw RawTrade) (models.Trade, error) {
	if raw.Symbol == "" {
		return models.Trade{}, fmt.Errorf("missing field %q in trade response", "symbol")
	}
	if raw.Time == 0 {
		return models.Trade{}, fmt.Errorf("missing field %q in trade response for %s", "time", raw.Symbol)
	}

	price, err := parseAmount("price", raw.Price)
	if err != nil {
		return models.Trade{}, err
	}
	qty, err := parseAmount("qty", raw.Qty)
	if err != nil {
		return models.Trade{}, err
	}
	quoteQty, err := parseAmount("quoteQty", raw.QuoteQty)
	if err != nil {
		return models.Trade{}, err
	}
	commission, err := parseAmount("commission", raw.Commission)
	if err != nil {
		return models.Trade{}, err
	}

	side := models.SideSell
	if raw.IsBuyer {
		side = models.SideBuy
	}

	return models.Trade{
		OrderID:         raw.OrderID,
		Symbol:          raw.Symbol,
		Side:            side,
		Price:           price,
		Quantity:        qty,
		QuoteQuantity:   quoteQty,
		Commission:      commission,
		CommissionAsset: raw.CommissionAsset,
		Timestamp:       epochMillisToUTC(raw.Time),
	}, nil
}

// NormalizeTrades converts a batch of raw trades, failing on the first
// malformed record.
func NormalizeTrades(raw []RawTrade) ([]models.Trade, error) {
	trades := make([]models.Trade, 0, len(raw))
	for _, r := range raw {
		trade, err := NormalizeTrade(r)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

// NormalizeOrderTrade converts an executed order response into a trade
// record. Commission is summed across fills.
func NormalizeOrderTrade(resp *CreateOrderResponse) (models.Trade, error) {
	qty, err := parseAmount("executedQty", resp.ExecutedQuantity)
	if err != nil {
		return models.Trade{}, err
	}
	quoteQty, err := parseAmount("cummulativeQuoteQty", resp.CummulativeQuoteQty)
	if err != nil {
		return models.Trade{}, err
	}

	// MARKET orders report price 0; derive the effective price from the fill totals.
	price := decimal.Zero
	if qty.IsPositive() {
		price = quoteQty.DivRound(qty, storedPrecision)
	}

	commission := decimal.Zero
	commissionAsset := ""
	for _, fill := range resp.Fills {
		c, err := parseAmount("fills.commission", fill.Commission)
		if err != nil {
			return models.Trade{}, err
		}
		commission = commission.Add(c)
		commissionAsset = fill.CommissionAsset
	}

	return models.Trade{
		OrderID:         resp.OrderID,
		Symbol:          resp.Symbol,
		Side:            resp.Side,
		Price:           price,
		Quantity:        qty,
		QuoteQuantity:   quoteQty,
		Commission:      commission.Round(storedPrecision),
		CommissionAsset: commissionAsset,
		Timestamp:       epochMillisToUTC(resp.TransactTime),
	}, nil
}

// NormalizeBalances converts raw wallet entries into balance snapshots,
// excluding assets where both free and locked are zero.
func NormalizeBalances(raw []RawBalance, at time.Time) ([]models.Balance, error) {
	balances := make([]models.Balance, 0, len(raw))
	for _, r := range raw {
		if r.Asset == "" {
			return nil, fmt.Errorf("missing field %q in balance response", "asset")
		}
		free, err := parseAmount("free", r.Free)
		if err != nil {
			return nil, err
		}
		locked, err := parseAmount("locked", r.Locked)
		if err != nil {
			return nil, err
		}

		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances = append(balances, models.Balance{
			Asset:     r.Asset,
			Free:      free,
			Locked:    locked,
			Timestamp: at.UTC(),
		})
	}
	return balances, nil
}

// KlineHigh extracts the high price of a candle.
func KlineHigh(k Kline) (decimal.Decimal, error) {
	return parseAmount("high", k.High)
}
