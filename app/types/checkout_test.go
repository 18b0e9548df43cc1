package types

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

const testToken = "0b8c8f3e-5a1c-4c55-9d2e-7c1f4b2a9e10"

func TestNewLinkAgreementRequestFromContextTrimsFields(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout/sessions", bytes.NewBufferString(`{"basket_id":" basket-1 ","billing_agreement_id":" C01-1 ","access_token":" Atza|tok "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewLinkAgreementRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetBasketId() != "basket-1" {
		t.Fatalf("expected trimmed basket id, got %q", parsed.GetBasketId())
	}
	if parsed.GetBillingAgreementId() != "C01-1" {
		t.Fatalf("expected trimmed agreement id, got %q", parsed.GetBillingAgreementId())
	}
	if parsed.GetAccessToken() != "Atza|tok" {
		t.Fatalf("expected trimmed access token, got %q", parsed.GetAccessToken())
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestLinkAgreementValidateAllowsMissingAgreement(t *testing.T) {
	req := &LinkAgreementRequest{BasketId: "basket-1"}
	if err := req.Validate(); err != nil {
		t.Fatalf("expected missing agreement to pass request validation, got %v", err)
	}

	req = &LinkAgreementRequest{}
	err := req.Validate()
	if err == nil || err.Error() != "basket_id is required" {
		t.Fatalf("expected basket_id error, got %v", err)
	}
}

func TestNewPlaceOrderRequestFromContextUsesPathToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("POST", "/checkout/sessions/"+testToken+"/order", bytes.NewBufferString(`{"has_subscriptions":true,"order_total":" 9.99 ","order_number":" 100001 "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetParamNames("token")
	ctx.SetParamValues(testToken)

	parsed, err := NewPlaceOrderRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetToken() != testToken {
		t.Fatalf("expected path token, got %q", parsed.GetToken())
	}
	if !parsed.GetHasSubscriptions() {
		t.Fatal("expected has_subscriptions to be true")
	}
	if parsed.GetOrderTotal() != "9.99" || parsed.GetOrderNumber() != "100001" {
		t.Fatalf("unexpected parsed request: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestPlaceOrderValidate(t *testing.T) {
	cases := []struct {
		name string
		req  *PlaceOrderRequest
		want string
	}{
		{
			name: "missing token",
			req:  &PlaceOrderRequest{OrderTotal: "1.00", OrderNumber: "1"},
			want: "token is required",
		},
		{
			name: "bad token",
			req:  &PlaceOrderRequest{Token: "nope", OrderTotal: "1.00", OrderNumber: "1"},
			want: "token is invalid",
		},
		{
			name: "zero total",
			req:  &PlaceOrderRequest{Token: testToken, OrderTotal: "0", OrderNumber: "1"},
			want: "order_total must be a positive amount",
		},
		{
			name: "garbage total",
			req:  &PlaceOrderRequest{Token: testToken, OrderTotal: "abc", OrderNumber: "1"},
			want: "order_total must be a positive amount",
		},
		{
			name: "missing order number",
			req:  &PlaceOrderRequest{Token: testToken, OrderTotal: "1.00"},
			want: "order_number is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if err == nil {
				t.Fatalf("expected %q, got nil", tc.want)
			}
			if err.Error() != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestPlaceOneStepOrderValidateGuestEmail(t *testing.T) {
	req := &PlaceOneStepOrderRequest{Token: testToken, OrderTotal: "5", OrderNumber: "1", GuestEmail: "not-an-email"}
	if err := req.Validate(); err == nil || err.Error() != "guest_email must be a valid email" {
		t.Fatalf("expected guest_email error, got %v", err)
	}

	req.GuestEmail = ""
	if err := req.Validate(); err != nil {
		t.Fatalf("expected empty guest email to be accepted, got %v", err)
	}
}

func TestNewListSessionsRequestFromContextAndValidate(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/checkout/sessions?basket_id=b-1&state=10&limit=25&offset=5", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	parsed, err := NewListSessionsRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.GetBasketId() != "b-1" || !parsed.GetHasState() || parsed.GetState() != 10 {
		t.Fatalf("unexpected filter: %+v", parsed)
	}
	if parsed.GetLimit() != 25 || parsed.GetOffset() != 5 {
		t.Fatalf("unexpected paging: %+v", parsed)
	}
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	parsed.State = 7
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected invalid state error")
	}

	parsed.State = 1
	parsed.Limit = 501
	if err := parsed.Validate(); err == nil || err.Error() != "limit must be <= 500" {
		t.Fatalf("expected limit error, got %v", err)
	}

	parsed.Limit = 0
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected zero limit to default, got %v", err)
	}
	if parsed.GetLimit() != 100 {
		t.Fatalf("expected default limit 100, got %d", parsed.GetLimit())
	}
}

func TestNewListSessionsRequestFromContextRejectsBadState(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/checkout/sessions?state=abc", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if _, err := NewListSessionsRequestFromContext(ctx); err == nil {
		t.Fatal("expected parse error for non-numeric state")
	}
}
