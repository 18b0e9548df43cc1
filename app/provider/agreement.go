package provider

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ConstraintCode string

const (
	ConstraintBuyerConsentNotSet      ConstraintCode = "BuyerConsentNotSet"
	ConstraintPaymentPlanNotSet       ConstraintCode = "PaymentPlanNotSet"
	ConstraintPaymentMethodNotAllowed ConstraintCode = "PaymentMethodNotAllowed"
	ConstraintShippingAddressNotSet   ConstraintCode = "ShippingAddressNotSet"
)

func (c ConstraintCode) Known() bool {
	switch c {
	case ConstraintBuyerConsentNotSet,
		ConstraintPaymentPlanNotSet,
		ConstraintPaymentMethodNotAllowed,
		ConstraintShippingAddressNotSet:
		return true
	default:
		return false
	}
}

type Constraint struct {
	Code        ConstraintCode
	Description string
}

type PhysicalDestination struct {
	Name          string
	AddressLine1  string
	AddressLine2  string
	City          string
	StateOrRegion string
	PostalCode    string
	CountryCode   string
	Phone         string
}

type Buyer struct {
	Name  string
	Email string
}

// AgreementDetails is the billing agreement as last returned by the provider.
// It is never cached: provider state can change between checks.
type AgreementDetails struct {
	BillingAgreementID string
	Consent            bool
	State              string
	Constraints        []Constraint
	Destination        *PhysicalDestination
	Buyer              *Buyer
}

// HasConstraints reports whether at least one constraint was returned. An
// empty <Constraints/> element counts as none.
func (d *AgreementDetails) HasConstraints() bool {
	return len(d.Constraints) > 0
}

func (d *AgreementDetails) CountryCode() string {
	if d.Destination == nil {
		return ""
	}
	return d.Destination.CountryCode
}

func (d *AgreementDetails) BuyerEmail() string {
	if d.Buyer == nil {
		return ""
	}
	return d.Buyer.Email
}

func agreementDetailsFromNode(n *Node) *AgreementDetails {
	details := &AgreementDetails{
		BillingAgreementID: n.Get("AmazonBillingAgreementId").Text(),
		Consent:            strings.EqualFold(n.Get("BillingAgreementConsent").Text(), "true"),
		State:              n.Get("BillingAgreementStatus.State").Text(),
		Constraints:        make([]Constraint, 0),
	}

	for _, c := range n.Get("Constraints").All("Constraint") {
		details.Constraints = append(details.Constraints, Constraint{
			Code:        ConstraintCode(c.Get("ConstraintID").Text()),
			Description: c.Get("Description").Text(),
		})
	}

	if dest := n.Get("Destination.PhysicalDestination"); dest.Exists() {
		details.Destination = &PhysicalDestination{
			Name:          dest.Get("Name").Text(),
			AddressLine1:  dest.Get("AddressLine1").Text(),
			AddressLine2:  dest.Get("AddressLine2").Text(),
			City:          dest.Get("City").Text(),
			StateOrRegion: dest.Get("StateOrRegion").Text(),
			PostalCode:    dest.Get("PostalCode").Text(),
			CountryCode:   dest.Get("CountryCode").Text(),
			Phone:         dest.Get("Phone").Text(),
		}
	}

	if buyer := n.Get("Buyer"); buyer.Exists() {
		details.Buyer = &Buyer{
			Name:  buyer.Get("Name").Text(),
			Email: buyer.Get("Email").Text(),
		}
	}

	return details
}

type AuthorizationState string

const (
	AuthorizationPending  AuthorizationState = "Pending"
	AuthorizationOpen     AuthorizationState = "Open"
	AuthorizationDeclined AuthorizationState = "Declined"
	AuthorizationClosed   AuthorizationState = "Closed"
)

// Reason codes that drive the checkout decision.
const (
	ReasonInvalidPaymentMethod = "InvalidPaymentMethod"
	ReasonAmazonRejected       = "AmazonRejected"
	ReasonMaxCapturesProcessed = "MaxCapturesProcessed"
)

type AuthorizationStatus struct {
	AuthorizationID  string
	State            AuthorizationState
	ReasonCode       string
	AuthorizedAmount decimal.Decimal
	// CapturedAmount is nil until a capture happened.
	CapturedAmount *decimal.Decimal
	Currency       string
}

// SettledAmount is the captured amount, or the authorized amount when nothing
// was captured yet. A zero capture counts as no capture.
func (s *AuthorizationStatus) SettledAmount() decimal.Decimal {
	if s.CapturedAmount != nil && !s.CapturedAmount.IsZero() {
		return *s.CapturedAmount
	}
	return s.AuthorizedAmount
}

func authorizationStatusFromNode(n *Node) (*AuthorizationStatus, error) {
	status := &AuthorizationStatus{
		AuthorizationID: n.Get("AmazonAuthorizationId").Text(),
		State:           AuthorizationState(n.Get("AuthorizationStatus.State").Text()),
		ReasonCode:      n.Get("AuthorizationStatus.ReasonCode").Text(),
		Currency:        n.Get("AuthorizationAmount.CurrencyCode").Text(),
	}

	if raw := n.Get("AuthorizationAmount.Amount").Text(); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		status.AuthorizedAmount = amount
	}
	if raw := n.Get("CapturedAmount.Amount").Text(); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, err
		}
		status.CapturedAmount = &amount
		if status.Currency == "" {
			status.Currency = n.Get("CapturedAmount.CurrencyCode").Text()
		}
	}

	return status, nil
}
