package entity

import "time"

type ShippingAddress struct {
	ID uint64

	SessionID uint64

	Name          string
	Line1         string
	Line2         *string
	City          string
	StateOrRegion string
	PostalCode    string
	CountryCode   string
	Phone         *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
