package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/repository"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/service"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/types"
	"github.com/vibast-solutions/ms-go-amazon-payments/config"
)

const controllerToken = "6f1c2a7e-3b4d-4e5f-8a9b-0c1d2e3f4a5b"

type controllerSessionRepo struct {
	session *entity.CheckoutSession
	listFn  func(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error)
}

func (r *controllerSessionRepo) Create(_ context.Context, session *entity.CheckoutSession) error {
	session.ID = 1
	copyItem := *session
	r.session = &copyItem
	return nil
}

func (r *controllerSessionRepo) Update(_ context.Context, session *entity.CheckoutSession) error {
	copyItem := *session
	r.session = &copyItem
	return nil
}

func (r *controllerSessionRepo) FindByToken(_ context.Context, token string) (*entity.CheckoutSession, error) {
	if r.session == nil || r.session.Token != token {
		return nil, nil
	}
	copyItem := *r.session
	return &copyItem, nil
}

func (r *controllerSessionRepo) FindByBasketID(_ context.Context, basketID string) (*entity.CheckoutSession, error) {
	if r.session == nil || r.session.BasketID != basketID {
		return nil, nil
	}
	copyItem := *r.session
	return &copyItem, nil
}

func (r *controllerSessionRepo) List(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error) {
	if r.listFn != nil {
		return r.listFn(ctx, filter)
	}
	return []*entity.CheckoutSession{}, nil
}

type controllerRecorder struct{}

func (controllerRecorder) RecordCall(context.Context, string, []byte) (uint64, error) {
	return 1, nil
}

type controllerTxRepo struct{}

func (controllerTxRepo) Recorder(uint64) provider.CallRecorder {
	return controllerRecorder{}
}

func (controllerTxRepo) ListBySession(context.Context, uint64) ([]*entity.Transaction, error) {
	return []*entity.Transaction{}, nil
}

type controllerAttemptRepo struct{}

func (controllerAttemptRepo) Create(_ context.Context, attempt *entity.AuthAttempt) error {
	attempt.ID = 1
	return nil
}

func (controllerAttemptRepo) Update(context.Context, *entity.AuthAttempt) error {
	return nil
}

func (controllerAttemptRepo) ListBySession(context.Context, uint64) ([]*entity.AuthAttempt, error) {
	return []*entity.AuthAttempt{}, nil
}

type controllerAddressRepo struct{}

func (controllerAddressRepo) Save(context.Context, *entity.ShippingAddress) error {
	return nil
}

func (controllerAddressRepo) FindBySession(context.Context, uint64) (*entity.ShippingAddress, error) {
	return nil, nil
}

type controllerSourceRepo struct{}

func (controllerSourceRepo) Create(context.Context, *entity.PaymentSource) error {
	return nil
}

func (controllerSourceRepo) ListBySession(context.Context, uint64) ([]*entity.PaymentSource, error) {
	return []*entity.PaymentSource{}, nil
}

type controllerEventRepo struct{}

func (controllerEventRepo) Create(context.Context, *entity.PaymentEvent) error {
	return nil
}

type controllerAmazonClient struct {
	checkErr error
	status   *provider.AuthorizationStatus
}

func (c *controllerAmazonClient) SellerID() string {
	return "SELLER1"
}

func (c *controllerAmazonClient) CheckAgreement(context.Context, string, string, provider.ValidationOptions, provider.CallRecorder) (*provider.Evaluation, error) {
	if c.checkErr != nil {
		return nil, c.checkErr
	}
	return &provider.Evaluation{
		OK: true,
		Details: &provider.AgreementDetails{
			Destination: &provider.PhysicalDestination{Name: "Jane", AddressLine1: "1 Main St", City: "Seattle", PostalCode: "98101", CountryCode: "US"},
		},
	}, nil
}

func (c *controllerAmazonClient) CreateOrderReferenceForID(context.Context, string, decimal.Decimal, string, provider.CallRecorder) (string, error) {
	return "S01-ORDER-1", nil
}

func (c *controllerAmazonClient) SetOrderReferenceDetails(context.Context, string, decimal.Decimal, string, string, provider.CallRecorder) error {
	return nil
}

func (c *controllerAmazonClient) Authorize(context.Context, string, string, decimal.Decimal, string, provider.CallRecorder) (string, uint64, error) {
	return "S01-AUTH-1", 1, nil
}

func (c *controllerAmazonClient) GetAuthorizationDetails(context.Context, string, provider.CallRecorder) (*provider.AuthorizationStatus, error) {
	if c.status != nil {
		return c.status, nil
	}
	return &provider.AuthorizationStatus{State: provider.AuthorizationOpen, AuthorizedAmount: decimal.RequireFromString("10.00"), Currency: "USD"}, nil
}

func (c *controllerAmazonClient) ConfirmBillingAgreement(context.Context, string, provider.CallRecorder) error {
	return nil
}

func (c *controllerAmazonClient) ValidateBillingAgreement(context.Context, string, provider.CallRecorder) (string, error) {
	return "Success", nil
}

func newControllerForTest(repo *controllerSessionRepo, client *controllerAmazonClient) *CheckoutController {
	svc := service.NewCheckoutService(
		repo,
		controllerTxRepo{},
		controllerAttemptRepo{},
		controllerAddressRepo{},
		controllerSourceRepo{},
		controllerEventRepo{},
		client,
		config.AmazonPaymentsConfig{ClientID: "client-1", Currency: "USD"},
		config.CheckoutConfig{ShippingCountries: []string{"US"}},
	)
	return NewCheckoutController(svc)
}

func seededRepo(state int32, orderReferenceID string) *controllerSessionRepo {
	session := &entity.CheckoutSession{
		ID:                 1,
		Token:              controllerToken,
		BasketID:           "basket-1",
		BillingAgreementID: "C01-1",
		State:              state,
	}
	if orderReferenceID != "" {
		session.OrderReferenceID = &orderReferenceID
	}
	return &controllerSessionRepo{session: session}
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func withToken(ctx echo.Context) echo.Context {
	ctx.SetParamNames("token")
	ctx.SetParamValues(controllerToken)
	return ctx
}

func TestLinkAgreementBadBody(t *testing.T) {
	ctrl := newControllerForTest(&controllerSessionRepo{}, &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions", "{")

	if err := ctrl.LinkAgreement(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLinkAgreementSuccess(t *testing.T) {
	ctrl := newControllerForTest(&controllerSessionRepo{}, &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions", `{"basket_id":"basket-1","billing_agreement_id":"C01-1"}`)

	if err := ctrl.LinkAgreement(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp types.SessionEnvelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Session == nil || resp.Session.StateName != "agreement_linked" || resp.Session.Token == "" {
		t.Fatalf("unexpected response %+v", resp.Session)
	}
}

func TestLinkAgreementMissingAgreementIsUnprocessable(t *testing.T) {
	ctrl := newControllerForTest(&controllerSessionRepo{}, &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions", `{"basket_id":"basket-1"}`)

	if err := ctrl.LinkAgreement(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp types.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Messages) != 1 || resp.Messages[0] != service.MsgLoginFailed {
		t.Fatalf("unexpected messages %v", resp.Messages)
	}
}

func TestResolveShippingNotFound(t *testing.T) {
	ctrl := newControllerForTest(&controllerSessionRepo{}, &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/shipping", `{}`)

	if err := ctrl.ResolveShipping(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestResolveShippingTransportErrorIsUnavailable(t *testing.T) {
	client := &controllerAmazonClient{checkErr: &provider.TransportError{Action: "GetBillingAgreementDetails", Err: errors.New("dial tcp")}}
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateAgreementLinked, ""), client)
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/shipping", `{}`)

	if err := ctrl.ResolveShipping(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPlaceOrderSuccess(t *testing.T) {
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateOrderReferenceCreated, "S01-ORDER-1"), &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/order", `{"order_total":"10.00","order_number":"100001"}`)

	if err := ctrl.PlaceOrder(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp types.OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Session.StateName != "completed" || resp.Session.OrderNumber != "100001" {
		t.Fatalf("unexpected session %+v", resp.Session)
	}
	if resp.PaymentSource == nil || resp.PaymentSource.AmountDebited != "10.00" {
		t.Fatalf("unexpected payment source %+v", resp.PaymentSource)
	}
}

func TestPlaceOrderRejectedIsPaymentRequired(t *testing.T) {
	client := &controllerAmazonClient{status: &provider.AuthorizationStatus{State: provider.AuthorizationDeclined, ReasonCode: provider.ReasonAmazonRejected}}
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateOrderReferenceCreated, "S01-ORDER-1"), client)
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/order", `{"order_total":"10.00","order_number":"100001"}`)

	if err := ctrl.PlaceOrder(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var resp types.ErrorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Error != service.MsgPaymentRejected {
		t.Fatalf("unexpected error %q", resp.Error)
	}
}

func TestPlaceOrderWithoutOrderReferenceIsConflict(t *testing.T) {
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateShippingResolved, ""), &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/order", `{"order_total":"10.00","order_number":"100001"}`)

	if err := ctrl.PlaceOrder(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPlaceOrderValidationError(t *testing.T) {
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateOrderReferenceCreated, "S01-ORDER-1"), &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/sessions/"+controllerToken+"/order", `{"order_total":"0","order_number":"1"}`)

	if err := ctrl.PlaceOrder(withToken(ctx)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListSessionsInternalError(t *testing.T) {
	repo := &controllerSessionRepo{listFn: func(context.Context, repository.SessionFilter) ([]*entity.CheckoutSession, error) {
		return nil, errors.New("db down")
	}}
	ctrl := newControllerForTest(repo, &controllerAmazonClient{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout/sessions?limit=10", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if err := ctrl.ListSessions(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestWidgetContextSuccess(t *testing.T) {
	ctrl := newControllerForTest(seededRepo(entity.CheckoutStateAgreementLinked, ""), &controllerAmazonClient{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/checkout/sessions/"+controllerToken+"/widget", nil)
	rec := httptest.NewRecorder()
	ctx := withToken(e.NewContext(req, rec))

	if err := ctrl.WidgetContext(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp types.WidgetContextResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.SellerId != "SELLER1" || resp.ClientId != "client-1" || resp.BillingAgreementId != "C01-1" {
		t.Fatalf("unexpected widget context %+v", resp)
	}
}

func TestReportWidgetError(t *testing.T) {
	ctrl := newControllerForTest(&controllerSessionRepo{}, &controllerAmazonClient{})
	ctx, rec := newJSONContext(http.MethodPost, "/checkout/widget-errors", `{"code":"BuyerSessionExpired","message":"expired"}`)

	if err := ctrl.ReportWidgetError(ctx); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	var resp types.MessageResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Message != service.MsgSessionExpired {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}
