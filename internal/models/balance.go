package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a point-in-time snapshot of one wallet asset. Entries where
// both free and locked are zero are filtered out before persistence.
type Balance struct {
	ID        uint            `gorm:"primaryKey"`
	Asset     string          `gorm:"not null;index"`
	Free      decimal.Decimal `gorm:"type:decimal(30,8);not null"`
	Locked    decimal.Decimal `gorm:"type:decimal(30,8);not null"`
	Timestamp time.Time       `gorm:"not null;index"`
}

func (Balance) TableName() string { return "Portfolio_Balance" }

// Total returns free + locked.
func (b Balance) Total() decimal.Decimal {
	return b.Free.Add(b.Locked)
}
