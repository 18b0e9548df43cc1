package types

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			name = field.Tag.Get("param")
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validationError turns the first field failure into a short client message.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "decimal_amount":
		return fmt.Errorf("%s must be a positive amount", fe.Field())
	case "min", "gte":
		return fmt.Errorf("%s must be >= %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Errorf("%s must be <= %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Errorf("%s must be a valid email", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}

func init() {
	_ = validate.RegisterValidation("decimal_amount", func(fl validator.FieldLevel) bool {
		amount, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && amount.IsPositive()
	})
}

type LinkAgreementRequest struct {
	BasketId           string `json:"basket_id" query:"basket_id" validate:"required,max=128"`
	BillingAgreementId string `json:"billing_agreement_id" query:"billing_agreement_id"`
	AccessToken        string `json:"access_token" query:"access_token"`
}

func (r *LinkAgreementRequest) GetBasketId() string           { return r.BasketId }
func (r *LinkAgreementRequest) GetBillingAgreementId() string { return r.BillingAgreementId }
func (r *LinkAgreementRequest) GetAccessToken() string        { return r.AccessToken }

func NewLinkAgreementRequestFromContext(ctx echo.Context) (*LinkAgreementRequest, error) {
	var body LinkAgreementRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	body.BasketId = strings.TrimSpace(body.BasketId)
	body.BillingAgreementId = strings.TrimSpace(body.BillingAgreementId)
	body.AccessToken = strings.TrimSpace(body.AccessToken)

	return &body, nil
}

// Validate leaves billing_agreement_id to the service, which reports a
// missing one as a login failure.
func (r *LinkAgreementRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type ResolveShippingRequest struct {
	Token            string `json:"-" param:"token" validate:"required,uuid"`
	HasSubscriptions bool   `json:"has_subscriptions"`
}

func (r *ResolveShippingRequest) GetToken() string         { return r.Token }
func (r *ResolveShippingRequest) GetHasSubscriptions() bool { return r.HasSubscriptions }

func NewResolveShippingRequestFromContext(ctx echo.Context) (*ResolveShippingRequest, error) {
	var body ResolveShippingRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.Token = strings.TrimSpace(ctx.Param("token"))

	return &body, nil
}

func (r *ResolveShippingRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type SubmitPaymentDetailsRequest struct {
	Token            string `json:"-" param:"token" validate:"required,uuid"`
	HasSubscriptions bool   `json:"has_subscriptions"`
	OrderTotal       string `json:"order_total" validate:"required,decimal_amount"`
}

func (r *SubmitPaymentDetailsRequest) GetToken() string         { return r.Token }
func (r *SubmitPaymentDetailsRequest) GetHasSubscriptions() bool { return r.HasSubscriptions }
func (r *SubmitPaymentDetailsRequest) GetOrderTotal() string     { return r.OrderTotal }

func NewSubmitPaymentDetailsRequestFromContext(ctx echo.Context) (*SubmitPaymentDetailsRequest, error) {
	var body SubmitPaymentDetailsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Token = strings.TrimSpace(ctx.Param("token"))
	body.OrderTotal = strings.TrimSpace(body.OrderTotal)

	return &body, nil
}

func (r *SubmitPaymentDetailsRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type PlaceOrderRequest struct {
	Token            string `json:"-" param:"token" validate:"required,uuid"`
	HasSubscriptions bool   `json:"has_subscriptions"`
	OrderTotal       string `json:"order_total" validate:"required,decimal_amount"`
	OrderNumber      string `json:"order_number" validate:"required,max=128"`
}

func (r *PlaceOrderRequest) GetToken() string         { return r.Token }
func (r *PlaceOrderRequest) GetHasSubscriptions() bool { return r.HasSubscriptions }
func (r *PlaceOrderRequest) GetOrderTotal() string     { return r.OrderTotal }
func (r *PlaceOrderRequest) GetOrderNumber() string    { return r.OrderNumber }

func NewPlaceOrderRequestFromContext(ctx echo.Context) (*PlaceOrderRequest, error) {
	var body PlaceOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Token = strings.TrimSpace(ctx.Param("token"))
	body.OrderTotal = strings.TrimSpace(body.OrderTotal)
	body.OrderNumber = strings.TrimSpace(body.OrderNumber)

	return &body, nil
}

func (r *PlaceOrderRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type PlaceOneStepOrderRequest struct {
	Token            string `json:"-" param:"token" validate:"required,uuid"`
	HasSubscriptions bool   `json:"has_subscriptions"`
	OrderTotal       string `json:"order_total" validate:"required,decimal_amount"`
	OrderNumber      string `json:"order_number" validate:"required,max=128"`
	GuestEmail       string `json:"guest_email" validate:"omitempty,email"`
}

func (r *PlaceOneStepOrderRequest) GetToken() string         { return r.Token }
func (r *PlaceOneStepOrderRequest) GetHasSubscriptions() bool { return r.HasSubscriptions }
func (r *PlaceOneStepOrderRequest) GetOrderTotal() string     { return r.OrderTotal }
func (r *PlaceOneStepOrderRequest) GetOrderNumber() string    { return r.OrderNumber }
func (r *PlaceOneStepOrderRequest) GetGuestEmail() string     { return r.GuestEmail }

func NewPlaceOneStepOrderRequestFromContext(ctx echo.Context) (*PlaceOneStepOrderRequest, error) {
	var body PlaceOneStepOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Token = strings.TrimSpace(ctx.Param("token"))
	body.OrderTotal = strings.TrimSpace(body.OrderTotal)
	body.OrderNumber = strings.TrimSpace(body.OrderNumber)
	body.GuestEmail = strings.TrimSpace(body.GuestEmail)

	return &body, nil
}

func (r *PlaceOneStepOrderRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type GetSessionRequest struct {
	Token string `json:"token" validate:"required,uuid"`
}

func (r *GetSessionRequest) GetToken() string { return r.Token }

func NewGetSessionRequestFromContext(ctx echo.Context) (*GetSessionRequest, error) {
	return &GetSessionRequest{Token: strings.TrimSpace(ctx.Param("token"))}, nil
}

func (r *GetSessionRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type ListSessionsRequest struct {
	BasketId string `json:"basket_id"`
	HasState bool   `json:"-"`
	State    int32  `json:"state"`
	Limit    int32  `json:"limit" validate:"gte=1,lte=500"`
	Offset   int32  `json:"offset" validate:"gte=0"`
}

func (r *ListSessionsRequest) GetBasketId() string { return r.BasketId }
func (r *ListSessionsRequest) GetHasState() bool   { return r.HasState }
func (r *ListSessionsRequest) GetState() int32     { return r.State }
func (r *ListSessionsRequest) GetLimit() int32     { return r.Limit }
func (r *ListSessionsRequest) GetOffset() int32    { return r.Offset }

func NewListSessionsRequestFromContext(ctx echo.Context) (*ListSessionsRequest, error) {
	req := &ListSessionsRequest{
		BasketId: strings.TrimSpace(ctx.QueryParam("basket_id")),
		Limit:    100,
		Offset:   0,
	}

	if stateRaw := strings.TrimSpace(ctx.QueryParam("state")); stateRaw != "" {
		state, err := strconv.ParseInt(stateRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.HasState = true
		req.State = int32(state)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListSessionsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = 100
	}
	if r.HasState && !isValidCheckoutState(r.State) {
		return errors.New("invalid state")
	}
	return validationError(validate.Struct(r))
}

type WidgetErrorRequest struct {
	Code    string `json:"code" validate:"max=128"`
	Message string `json:"message" validate:"max=1024"`
}

func NewWidgetErrorRequestFromContext(ctx echo.Context) (*WidgetErrorRequest, error) {
	var body WidgetErrorRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.Code = strings.TrimSpace(body.Code)
	body.Message = strings.TrimSpace(body.Message)

	return &body, nil
}

func (r *WidgetErrorRequest) Validate() error {
	return validationError(validate.Struct(r))
}

func isValidCheckoutState(state int32) bool {
	switch state {
	case 0, 1, 2, 3, 4, 10, 20:
		return true
	default:
		return false
	}
}
