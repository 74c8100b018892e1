package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyHighPrice stores the previous-day high for an asset. The DCA
// strategy reads the most recent row per asset as its reference price.
type DailyHighPrice struct {
	ID        uint            `gorm:"primaryKey"`
	Asset     string          `gorm:"not null;index"`
	HighPrice decimal.Decimal `gorm:"column:high_price;type:decimal(30,8);not null"`
	Timestamp time.Time       `gorm:"not null;index"`
}

func (DailyHighPrice) TableName() string { return "Daily_High_Price" }
