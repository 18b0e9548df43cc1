package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error    string   `json:"error"`
	Messages []string `json:"messages,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CheckoutSession struct {
	Token              string `json:"token"`
	BasketId           string `json:"basket_id"`
	BillingAgreementId string `json:"billing_agreement_id"`
	OrderReferenceId   string `json:"order_reference_id,omitempty"`
	OrderNumber        string `json:"order_number,omitempty"`
	GuestEmail         string `json:"guest_email,omitempty"`
	State              int32  `json:"state"`
	StateName          string `json:"state_name"`
	LastError          string `json:"last_error,omitempty"`
	CreatedAt          string `json:"created_at"`
	UpdatedAt          string `json:"updated_at"`
}

type ShippingAddress struct {
	Name          string `json:"name"`
	AddressLine1  string `json:"address_line1"`
	AddressLine2  string `json:"address_line2,omitempty"`
	City          string `json:"city"`
	StateOrRegion string `json:"state_or_region"`
	PostalCode    string `json:"postal_code"`
	CountryCode   string `json:"country_code"`
	Phone         string `json:"phone,omitempty"`
}

type AuthAttempt struct {
	Id              uint64 `json:"id"`
	ReferenceId     string `json:"reference_id"`
	AuthorizationId string `json:"authorization_id,omitempty"`
	State           string `json:"state,omitempty"`
	ReasonCode      string `json:"reason_code,omitempty"`
	Amount          string `json:"amount"`
	CapturedAmount  string `json:"captured_amount,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type PaymentSource struct {
	SourceType      string `json:"source_type"`
	Currency        string `json:"currency"`
	AmountAllocated string `json:"amount_allocated"`
	AmountDebited   string `json:"amount_debited"`
	Reference       string `json:"reference"`
	CreatedAt       string `json:"created_at"`
}

type ProviderCall struct {
	Id        uint64 `json:"id"`
	Action    string `json:"action"`
	CreatedAt string `json:"created_at"`
}

type SessionEnvelopeResponse struct {
	Session *CheckoutSession `json:"session"`
}

type ShippingResponse struct {
	Session *CheckoutSession `json:"session"`
	Address *ShippingAddress `json:"address"`
}

type OrderResponse struct {
	Session       *CheckoutSession `json:"session"`
	Authorization *AuthAttempt     `json:"authorization"`
	PaymentSource *PaymentSource   `json:"payment_source"`
}

type SessionDetailsResponse struct {
	Session        *CheckoutSession `json:"session"`
	Address        *ShippingAddress `json:"address,omitempty"`
	Authorizations []*AuthAttempt   `json:"authorizations"`
	PaymentSources []*PaymentSource `json:"payment_sources"`
	ProviderCalls  []*ProviderCall  `json:"provider_calls"`
}

type ListSessionsResponse struct {
	Sessions []*CheckoutSession `json:"sessions"`
}

type WidgetContextResponse struct {
	SellerId           string `json:"seller_id"`
	ClientId           string `json:"client_id"`
	IsLive             bool   `json:"is_live"`
	BillingAgreementId string `json:"billing_agreement_id"`
}
