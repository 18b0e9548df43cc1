package entity

import "time"

const (
	CheckoutStateNoAgreement           int32 = 0
	CheckoutStateAgreementLinked       int32 = 1
	CheckoutStateShippingResolved      int32 = 2
	CheckoutStateOrderReferenceCreated int32 = 3
	CheckoutStateAuthorized            int32 = 4
	CheckoutStateCompleted             int32 = 10
	CheckoutStateFailed                int32 = 20
)

type CheckoutSession struct {
	ID uint64

	Token    string
	BasketID string

	BillingAgreementID string
	AccessToken        *string
	OrderReferenceID   *string
	OrderNumber        *string
	GuestEmail         *string

	State     int32
	LastError *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *CheckoutSession) HasOrderReference() bool {
	return s.OrderReferenceID != nil && *s.OrderReferenceID != ""
}

// Terminal reports whether the session is closed to relinking. Failed sessions
// may be restarted with a fresh agreement.
func (s *CheckoutSession) Terminal() bool {
	return s.State == CheckoutStateCompleted
}
