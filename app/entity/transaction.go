package entity

import "time"

// Transaction archives one raw provider exchange.
type Transaction struct {
	ID uint64

	SessionID uint64

	Action     string
	RequestURL string
	Response   string

	CreatedAt time.Time
}
