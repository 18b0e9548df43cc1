package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureDetails(t *testing.T, name string) *AgreementDetails {
	t.Helper()
	doc, err := ProcessResponse(loadFixture(t, name))
	require.NoError(t, err)
	node := doc.Get("GetBillingAgreementDetailsResult.BillingAgreementDetails")
	require.True(t, node.Exists())
	return agreementDetailsFromNode(node)
}

func allChecks() ValidationOptions {
	return ValidationOptions{ValidateShipping: true, ValidatePayment: true, ValidShippingCountries: []string{"US"}}
}

func TestEvaluateMissingPaymentMethodAndAddress(t *testing.T) {
	eval := Evaluate(fixtureDetails(t, "no_payment_method_and_shipping_address.xml"), allChecks())

	assert.False(t, eval.OK)
	assert.Nil(t, eval.Details)
	assert.ElementsMatch(t, []string{MsgSelectShippingAddr, MsgSelectPaymentMethod}, eval.Errors)
}

func TestEvaluateValidationFlags(t *testing.T) {
	details := fixtureDetails(t, "no_payment_method_and_shipping_address.xml")

	eval := Evaluate(details, ValidationOptions{ValidateShipping: true})
	assert.Equal(t, []string{MsgSelectShippingAddr}, eval.Errors)

	eval = Evaluate(details, ValidationOptions{ValidatePayment: true})
	assert.Equal(t, []string{MsgSelectPaymentMethod}, eval.Errors)

	eval = Evaluate(details, ValidationOptions{})
	assert.True(t, eval.OK)
	assert.Same(t, details, eval.Details)
}

func TestEvaluateConsent(t *testing.T) {
	details := fixtureDetails(t, "subscriptions_consent_not_given.xml")

	eval := Evaluate(details, allChecks())
	assert.True(t, eval.OK, "consent is not required for one-off orders")

	opts := allChecks()
	opts.WantSubscription = true
	eval = Evaluate(details, opts)
	assert.False(t, eval.OK)
	assert.Equal(t, []string{MsgConsentRequired}, eval.Errors)
}

func TestEvaluateConsentGiven(t *testing.T) {
	opts := allChecks()
	opts.WantSubscription = true

	eval := Evaluate(fixtureDetails(t, "subscriptions_consent_given.xml"), opts)
	assert.True(t, eval.OK)
	assert.Equal(t, "US", eval.Details.CountryCode())
}

func TestEvaluatePaymentMethodNotAllowed(t *testing.T) {
	eval := Evaluate(fixtureDetails(t, "payment_method_not_allowed.xml"), allChecks())
	assert.Equal(t, []string{MsgPaymentNotAllowed}, eval.Errors)

	eval = Evaluate(fixtureDetails(t, "payment_method_not_allowed.xml"), ValidationOptions{ValidateShipping: true})
	assert.True(t, eval.OK)
}

func TestEvaluateUnknownConstraint(t *testing.T) {
	details := fixtureDetails(t, "unknown_constraint.xml")

	for _, opts := range []ValidationOptions{{}, allChecks(), {WantSubscription: true}} {
		eval := Evaluate(details, opts)
		assert.False(t, eval.OK)
		assert.Equal(t, []string{MsgProcessingError}, eval.Errors)
	}
}

func TestEvaluateUnsupportedCountry(t *testing.T) {
	eval := Evaluate(fixtureDetails(t, "unsupported_country.xml"), allChecks())

	assert.False(t, eval.OK)
	assert.Equal(t, []string{"Please select a different shipping address. We currently don't ship to GB."}, eval.Errors)

	eval = Evaluate(fixtureDetails(t, "unsupported_country.xml"), ValidationOptions{ValidatePayment: true})
	assert.True(t, eval.OK, "country is only checked when validating shipping")
}

func TestEvaluateEmptyConstraintsStillChecksCountry(t *testing.T) {
	details := fixtureDetails(t, "empty_constraints.xml")
	require.False(t, details.HasConstraints())

	eval := Evaluate(details, ValidationOptions{ValidateShipping: true, ValidShippingCountries: []string{"GB"}})
	assert.False(t, eval.OK)
	assert.Equal(t, []string{UnsupportedCountryMessage("US")}, eval.Errors)

	eval = Evaluate(details, ValidationOptions{ValidateShipping: true, ValidShippingCountries: []string{"us"}})
	assert.True(t, eval.OK)
}

func TestEvaluateNoDestination(t *testing.T) {
	details := &AgreementDetails{Constraints: []Constraint{}}

	eval := Evaluate(details, allChecks())
	assert.Equal(t, []string{MsgSelectShippingAddr}, eval.Errors)
}
