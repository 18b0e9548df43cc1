package provider

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ActionGetBillingAgreementDetails = "GetBillingAgreementDetails"
	ActionCreateOrderReferenceForID  = "CreateOrderReferenceForId"
	ActionSetOrderReferenceDetails   = "SetOrderReferenceDetails"
	ActionAuthorize                  = "Authorize"
	ActionGetAuthorizationDetails    = "GetAuthorizationDetails"
	ActionConfirmBillingAgreement    = "ConfirmBillingAgreement"
	ActionValidateBillingAgreement   = "ValidateBillingAgreement"
)

func (c *Client) GetBillingAgreementDetails(ctx context.Context, billingAgreementID, accessToken string, recorder CallRecorder) (*AgreementDetails, error) {
	result, err := c.Call(ctx, ActionGetBillingAgreementDetails, map[string]string{
		"AmazonBillingAgreementId": billingAgreementID,
		"AddressConsentToken":      accessToken,
	}, true, recorder)
	if err != nil {
		return nil, err
	}

	node := result.Document.Get("GetBillingAgreementDetailsResult.BillingAgreementDetails")
	if !node.Exists() {
		return nil, fmt.Errorf("%w: BillingAgreementDetails missing", ErrMalformedResponse)
	}
	return agreementDetailsFromNode(node), nil
}

// CheckAgreement fetches the agreement and evaluates it. The agreement is
// fetched on every call.
func (c *Client) CheckAgreement(ctx context.Context, billingAgreementID, accessToken string, opts ValidationOptions, recorder CallRecorder) (*Evaluation, error) {
	details, err := c.GetBillingAgreementDetails(ctx, billingAgreementID, accessToken, recorder)
	if err != nil {
		return nil, err
	}
	return Evaluate(details, opts), nil
}

func (c *Client) CreateOrderReferenceForID(ctx context.Context, billingAgreementID string, amount decimal.Decimal, currency string, recorder CallRecorder) (string, error) {
	result, err := c.Call(ctx, ActionCreateOrderReferenceForID, map[string]string{
		"Id":                                               billingAgreementID,
		"IdType":                                           "BillingAgreement",
		"ConfirmNow":                                       "true",
		"OrderReferenceAttributes.OrderTotal.Amount":       amount.StringFixed(2),
		"OrderReferenceAttributes.OrderTotal.CurrencyCode": currency,
	}, true, recorder)
	if err != nil {
		return "", err
	}

	id := result.Document.Get("CreateOrderReferenceForIdResult.OrderReferenceDetails.AmazonOrderReferenceId").Text()
	if id == "" {
		return "", fmt.Errorf("%w: AmazonOrderReferenceId missing", ErrMalformedResponse)
	}
	return id, nil
}

// SetOrderReferenceDetails overrides the order total. sellerOrderID is sent
// only when not empty.
func (c *Client) SetOrderReferenceDetails(ctx context.Context, orderReferenceID string, amount decimal.Decimal, currency, sellerOrderID string, recorder CallRecorder) error {
	params := map[string]string{
		"AmazonOrderReferenceId":                           orderReferenceID,
		"OrderReferenceAttributes.OrderTotal.Amount":       amount.StringFixed(2),
		"OrderReferenceAttributes.OrderTotal.CurrencyCode": currency,
	}
	if sellerOrderID != "" {
		params["OrderReferenceAttributes.SellerOrderAttributes.SellerOrderId"] = sellerOrderID
	}
	_, err := c.Call(ctx, ActionSetOrderReferenceDetails, params, false, recorder)
	return err
}

// Authorize requests an immediate capture. It returns the authorization id
// and the record id of the archived call.
func (c *Client) Authorize(ctx context.Context, orderReferenceID, authorizationReferenceID string, amount decimal.Decimal, currency string, recorder CallRecorder) (string, uint64, error) {
	result, err := c.Call(ctx, ActionAuthorize, map[string]string{
		"AmazonOrderReferenceId":           orderReferenceID,
		"AuthorizationReferenceId":         authorizationReferenceID,
		"AuthorizationAmount.Amount":       amount.StringFixed(2),
		"AuthorizationAmount.CurrencyCode": currency,
		"CaptureNow":                       "true",
		"TransactionTimeout":               "0",
	}, true, recorder)
	if err != nil {
		return "", 0, err
	}

	id := result.Document.Get("AuthorizeResult.AuthorizationDetails.AmazonAuthorizationId").Text()
	if id == "" {
		return "", 0, fmt.Errorf("%w: AmazonAuthorizationId missing", ErrMalformedResponse)
	}
	return id, result.RecordID, nil
}

func (c *Client) GetAuthorizationDetails(ctx context.Context, authorizationID string, recorder CallRecorder) (*AuthorizationStatus, error) {
	result, err := c.Call(ctx, ActionGetAuthorizationDetails, map[string]string{
		"AmazonAuthorizationId": authorizationID,
	}, true, recorder)
	if err != nil {
		return nil, err
	}

	node := result.Document.Get("GetAuthorizationDetailsResult.AuthorizationDetails")
	if !node.Exists() {
		return nil, fmt.Errorf("%w: AuthorizationDetails missing", ErrMalformedResponse)
	}
	status, err := authorizationStatusFromNode(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return status, nil
}

func (c *Client) ConfirmBillingAgreement(ctx context.Context, billingAgreementID string, recorder CallRecorder) error {
	_, err := c.Call(ctx, ActionConfirmBillingAgreement, map[string]string{
		"AmazonBillingAgreementId": billingAgreementID,
	}, false, recorder)
	return err
}

// ValidateBillingAgreement returns the provider's validation result, e.g.
// "Success" or "Failure".
func (c *Client) ValidateBillingAgreement(ctx context.Context, billingAgreementID string, recorder CallRecorder) (string, error) {
	result, err := c.Call(ctx, ActionValidateBillingAgreement, map[string]string{
		"AmazonBillingAgreementId": billingAgreementID,
	}, true, recorder)
	if err != nil {
		return "", err
	}
	return result.Document.Get("ValidateBillingAgreementResult.ValidationResult").Text(), nil
}
