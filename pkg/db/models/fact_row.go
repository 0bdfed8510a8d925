package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactRow is the relational shape of the clean LTV fact table. The table name
// is configurable, so callers always go through db.Table(name).
type FactRow struct {
	Date      time.Time       `gorm:"column:date;not null"`
	Country   string          `gorm:"column:country;size:100;not null"`
	Affiliate string          `gorm:"column:affiliate;size:150;not null"`
	Source    *string         `gorm:"column:source;size:100"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null"`
	FTDCount  int             `gorm:"column:ftd_count;not null"`
	LTV       decimal.Decimal `gorm:"column:ltv;type:decimal(18,4);not null"`
}
