package provider

import (
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-amazon-payments/app/factory"
)

const (
	MsgConsentRequired      = "Please authorize us to charge future payments to your Amazon account. This is required as your order contains subscription items."
	MsgSelectPaymentMethod  = "Please select a payment method."
	MsgPaymentNotAllowed    = "The payment method you've selected is not allowed for this order. Please select another payment method."
	MsgSelectShippingAddr   = "Please select a shipping address."
	MsgProcessingError      = "An error occurred when processing your order. Please try again later."
	msgUnsupportedCountryFm = "Please select a different shipping address. We currently don't ship to %s."
)

var validatorLogger = factory.NewModuleLogger("amazon-payments-validator")

type ValidationOptions struct {
	WantSubscription       bool
	ValidateShipping       bool
	ValidatePayment        bool
	ValidShippingCountries []string
}

// Evaluation is the outcome of checking an agreement. Details is set only
// when OK is true; Errors is set only when it is false.
type Evaluation struct {
	OK      bool
	Details *AgreementDetails
	Errors  []string
}

// UnsupportedCountryMessage is the error shown for a destination outside the
// shipping countries.
func UnsupportedCountryMessage(country string) string {
	return fmt.Sprintf(msgUnsupportedCountryFm, country)
}

// Evaluate checks agreement constraints and, when there are none, the
// shipping destination country.
func Evaluate(details *AgreementDetails, opts ValidationOptions) *Evaluation {
	errs := make([]string, 0)

	if details.HasConstraints() {
		for _, c := range details.Constraints {
			switch c.Code {
			case ConstraintBuyerConsentNotSet:
				if opts.WantSubscription {
					errs = append(errs, MsgConsentRequired)
				}
			case ConstraintPaymentPlanNotSet:
				if opts.ValidatePayment {
					errs = append(errs, MsgSelectPaymentMethod)
				}
			case ConstraintPaymentMethodNotAllowed:
				if opts.ValidatePayment {
					errs = append(errs, MsgPaymentNotAllowed)
				}
			case ConstraintShippingAddressNotSet:
				if opts.ValidateShipping {
					errs = append(errs, MsgSelectShippingAddr)
				}
			default:
				errs = append(errs, MsgProcessingError)
			}
			validatorLogger.WithField("constraint", string(c.Code)).
				WithField("description", c.Description).
				Debug("Amazon payments constraint")
			if !c.Code.Known() {
				validatorLogger.WithField("constraint", string(c.Code)).
					WithField("description", c.Description).
					Warn("Unrecognized amazon payments constraint")
			}
		}
	} else if opts.ValidateShipping {
		country := details.CountryCode()
		switch {
		case country == "":
			errs = append(errs, MsgSelectShippingAddr)
		case !containsCountry(opts.ValidShippingCountries, country):
			errs = append(errs, UnsupportedCountryMessage(country))
		}
	}

	if len(errs) > 0 {
		return &Evaluation{OK: false, Errors: errs}
	}
	return &Evaluation{OK: true, Details: details}
}

func containsCountry(countries []string, country string) bool {
	for _, c := range countries {
		if strings.EqualFold(strings.TrimSpace(c), country) {
			return true
		}
	}
	return false
}
