package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentSource struct {
	ID uint64

	SessionID uint64

	SourceType      string
	Currency        string
	AmountAllocated decimal.Decimal
	AmountDebited   decimal.Decimal
	Reference       string

	CreatedAt time.Time
}
