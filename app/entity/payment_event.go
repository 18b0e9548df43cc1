package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

const PaymentEventPurchase = "Purchase"

type PaymentEvent struct {
	ID uint64

	SessionID uint64

	EventType string
	Amount    decimal.Decimal
	Reference *string

	OldState *int32
	NewState int32

	CreatedAt time.Time
}
