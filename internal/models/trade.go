package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order sides as reported by the exchange.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade is a single executed trade. Records are append-only; a trade is
// never updated once written.
type Trade struct {
	ID              uint            `gorm:"primaryKey"`
	OrderID         int64           `gorm:"column:order_id;not null"`
	Symbol          string          `gorm:"not null;index"`
	Side            string          `gorm:"not null"`
	Price           decimal.Decimal `gorm:"type:decimal(30,8);not null"`
	Quantity        decimal.Decimal `gorm:"type:decimal(30,8);not null"`
	QuoteQuantity   decimal.Decimal `gorm:"column:quote_quantity;type:decimal(30,8);not null"`
	Commission      decimal.Decimal `gorm:"type:decimal(30,8)"`
	CommissionAsset string          `gorm:"column:commission_asset"`
	Timestamp       time.Time       `gorm:"not null;index"`
}

// TableName keeps the historical table name used by the reporting queries.
func (Trade) TableName() string { return "Trade_History" }
