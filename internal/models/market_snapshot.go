package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketSnapshot is one row of the market capitalization time series,
// captured once per sync run for each tracked coin.
type MarketSnapshot struct {
	ID                 uint            `gorm:"primaryKey"`
	Rank               int             `gorm:"column:market_cap_rank;not null"`
	Name               string          `gorm:"not null"`
	Symbol             string          `gorm:"not null;index"`
	Price              decimal.Decimal `gorm:"type:decimal(30,8);not null"`
	High               decimal.Decimal `gorm:"column:price_high;type:decimal(30,8)"`
	Low                decimal.Decimal `gorm:"column:price_low;type:decimal(30,8)"`
	MarketCap          decimal.Decimal `gorm:"column:market_cap;type:decimal(38,8)"`
	AvailableOnBinance bool            `gorm:"column:is_available_on_binance"`
	Timestamp          time.Time       `gorm:"not null;index"`
}

func (MarketSnapshot) TableName() string { return "Market_Capitalization_History" }
