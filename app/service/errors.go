package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrSessionNotFound       = errors.New("checkout session not found")
	ErrSessionCompleted      = errors.New("checkout session already completed")
	ErrSessionFailed         = errors.New("checkout session failed")
	ErrInvalidState          = errors.New("invalid checkout state")
	ErrOrderReferenceMissing = errors.New("order reference has not been created")
)

// Messages shown to the buyer.
const (
	MsgLoginFailed         = "An error occurred during login. Please try again later."
	MsgSessionExpired      = "Your session has expired. Please sign in again by clicking on the 'Pay with Amazon' button."
	MsgProviderProblem     = "Sorry, there's a problem processing your order via Amazon. Please try again later."
	MsgPaymentRejected     = "The payment was rejected by Amazon. Please update the payment method, or choose another method."
	MsgPaymentFailed       = "An error occurred when processing your payment. Please try again later."
	MsgProviderUnreachable = "We could not reach Amazon Payments. Please try again."
)

// ConstraintError is a recoverable gating failure. The session is left as it
// was and the buyer can act on Messages.
type ConstraintError struct {
	Messages []string
}

func (e *ConstraintError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// PaymentRejectedError is a recoverable decline: the buyer must pick another
// payment method. The session stays at the order reference step.
type PaymentRejectedError struct {
	ReasonCode string
	Message    string
}

func (e *PaymentRejectedError) Error() string {
	return fmt.Sprintf("payment rejected (%s): %s", e.ReasonCode, e.Message)
}

// ProtocolError is fatal for the session. State and ReasonCode are set for
// authorization outcomes, Code and Message for provider rejections.
type ProtocolError struct {
	State      string
	ReasonCode string
	Code       string
	Message    string
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		if e.Message == "" {
			return fmt.Sprintf("payment failed: %s", e.Code)
		}
		return fmt.Sprintf("payment failed: %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("payment failed: %s %s", e.State, e.ReasonCode)
}
