package provider

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured     = errors.New("amazon payments client is not configured")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Provider error codes the checkout flow reacts to.
const (
	CodeInvalidOrderReferenceStatus      = "InvalidOrderReferenceStatus"
	CodeBillingAgreementConstraintsExist = "BillingAgreementConstraintsExist"
	CodeInvalidAddressConsentToken       = "InvalidAddressConsentToken"
)

// ProviderError is returned when the provider rejects a call.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// TransportError wraps network failures and timeouts. No response was
// received, so nothing was recorded.
type TransportError struct {
	Action string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Action, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is a ProviderError with the given code.
func IsProviderError(err error, code string) bool {
	var providerErr *ProviderError
	return errors.As(err, &providerErr) && providerErr.Code == code
}
