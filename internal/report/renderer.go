package report

import (
	"fmt"
	"strings"

	"binance-dca-bot/internal/portfolio"
	"github.com/shopspring/decimal"
)

// Subjects of the outgoing mails.
const (
	SubjectPortfolio  = "Your DCA Portfolio Report"
	SubjectLowBalance = "Low Balance Alert"
)

// money renders a monetary value with 2 decimal places for display,
// regardless of the 8-decimal storage precision.
func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// RenderPortfolio formats the portfolio summary as fixed-width text.
// It performs no computation beyond display rounding.
func RenderPortfolio(quoteAsset string, quoteBalance decimal.Decimal, positions []portfolio.AssetPosition, summary portfolio.Summary) string {
	var b strings.Builder

	b.WriteString("Dear User,\n\n")
	b.WriteString("Here is the summary of your portfolio:\n\n")
	fmt.Fprintf(&b, "%s Wallet Balance: %s\n\n", quoteAsset, money(quoteBalance))

	b.WriteString("Portfolio Overview:\n")
	fmt.Fprintf(&b, "  Total Spend:       %s\n", money(summary.TotalSpend))
	fmt.Fprintf(&b, "  Current Value:     %s\n", money(summary.CurrentValue))
	fmt.Fprintf(&b, "  Value Change:      %s\n", money(summary.PnL))
	fmt.Fprintf(&b, "  Percentage Change: %s%%\n\n", summary.PnLPercent.StringFixed(2))

	b.WriteString("Asset Breakdown:\n")
	fmt.Fprintf(&b, "%-12s | %12s | %12s | %12s | %9s\n", "Asset", "Value", "Spend", "Change", "% Change")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, pos := range positions {
		fmt.Fprintf(&b, "%-12s | %12s | %12s | %12s | %8s%%\n",
			pos.Symbol,
			money(pos.CurrentValue),
			money(pos.TotalSpend),
			money(pos.PnL),
			pos.PnLPercent.StringFixed(2),
		)
	}

	b.WriteString("\nThank you,\nThe Trading Bot Team\n")
	return b.String()
}

// RenderLowBalance formats the low balance alert.
func RenderLowBalance(quoteAsset string, actual, required decimal.Decimal) string {
	var b strings.Builder

	b.WriteString("Dear User,\n\n")
	fmt.Fprintf(&b, "Your %s wallet balance is below the amount required for automated DCA trading.\n\n", quoteAsset)
	fmt.Fprintf(&b, "  Required Balance: %s\n", money(required))
	fmt.Fprintf(&b, "  Current Balance:  %s\n\n", money(actual))
	b.WriteString("To ensure uninterrupted trading, please top up your wallet.\n\n")
	b.WriteString("Thank you,\nThe Trading Bot Team\n")
	return b.String()
}
