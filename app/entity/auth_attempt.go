package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type AuthAttempt struct {
	ID uint64

	SessionID uint64

	ReferenceID     *string
	AuthorizationID *string
	TransactionID   *uint64

	State          *string
	ReasonCode     *string
	Amount         decimal.Decimal
	CapturedAmount *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}
