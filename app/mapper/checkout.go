package mapper

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/service"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/types"
)

var stateNames = map[int32]string{
	entity.CheckoutStateNoAgreement:           "no_agreement",
	entity.CheckoutStateAgreementLinked:       "agreement_linked",
	entity.CheckoutStateShippingResolved:      "shipping_resolved",
	entity.CheckoutStateOrderReferenceCreated: "order_reference_created",
	entity.CheckoutStateAuthorized:            "authorized",
	entity.CheckoutStateCompleted:             "completed",
	entity.CheckoutStateFailed:                "failed",
}

func StateName(state int32) string {
	if name, ok := stateNames[state]; ok {
		return name
	}
	return "unknown"
}

func SessionToDTO(item *entity.CheckoutSession) *types.CheckoutSession {
	if item == nil {
		return nil
	}

	return &types.CheckoutSession{
		Token:              item.Token,
		BasketId:           item.BasketID,
		BillingAgreementId: item.BillingAgreementID,
		OrderReferenceId:   derefString(item.OrderReferenceID),
		OrderNumber:        derefString(item.OrderNumber),
		GuestEmail:         derefString(item.GuestEmail),
		State:              item.State,
		StateName:          StateName(item.State),
		LastError:          derefString(item.LastError),
		CreatedAt:          formatTime(item.CreatedAt),
		UpdatedAt:          formatTime(item.UpdatedAt),
	}
}

func SessionsToDTO(items []*entity.CheckoutSession) []*types.CheckoutSession {
	result := make([]*types.CheckoutSession, 0, len(items))
	for _, item := range items {
		result = append(result, SessionToDTO(item))
	}
	return result
}

func AddressToDTO(item *entity.ShippingAddress) *types.ShippingAddress {
	if item == nil {
		return nil
	}

	return &types.ShippingAddress{
		Name:          item.Name,
		AddressLine1:  item.Line1,
		AddressLine2:  derefString(item.Line2),
		City:          item.City,
		StateOrRegion: item.StateOrRegion,
		PostalCode:    item.PostalCode,
		CountryCode:   item.CountryCode,
		Phone:         derefString(item.Phone),
	}
}

func AttemptToDTO(item *entity.AuthAttempt) *types.AuthAttempt {
	if item == nil {
		return nil
	}

	return &types.AuthAttempt{
		Id:              item.ID,
		ReferenceId:     derefString(item.ReferenceID),
		AuthorizationId: derefString(item.AuthorizationID),
		State:           derefString(item.State),
		ReasonCode:      derefString(item.ReasonCode),
		Amount:          item.Amount.StringFixed(2),
		CapturedAmount:  formatOptionalAmount(item.CapturedAmount),
		CreatedAt:       formatTime(item.CreatedAt),
	}
}

func AttemptsToDTO(items []*entity.AuthAttempt) []*types.AuthAttempt {
	result := make([]*types.AuthAttempt, 0, len(items))
	for _, item := range items {
		result = append(result, AttemptToDTO(item))
	}
	return result
}

func SourceToDTO(item *entity.PaymentSource) *types.PaymentSource {
	if item == nil {
		return nil
	}

	return &types.PaymentSource{
		SourceType:      item.SourceType,
		Currency:        item.Currency,
		AmountAllocated: item.AmountAllocated.StringFixed(2),
		AmountDebited:   item.AmountDebited.StringFixed(2),
		Reference:       item.Reference,
		CreatedAt:       formatTime(item.CreatedAt),
	}
}

func SourcesToDTO(items []*entity.PaymentSource) []*types.PaymentSource {
	result := make([]*types.PaymentSource, 0, len(items))
	for _, item := range items {
		result = append(result, SourceToDTO(item))
	}
	return result
}

func TransactionsToDTO(items []*entity.Transaction) []*types.ProviderCall {
	result := make([]*types.ProviderCall, 0, len(items))
	for _, item := range items {
		result = append(result, &types.ProviderCall{
			Id:        item.ID,
			Action:    item.Action,
			CreatedAt: formatTime(item.CreatedAt),
		})
	}
	return result
}

func ShippingToDTO(result *service.ShippingResult) *types.ShippingResponse {
	return &types.ShippingResponse{
		Session: SessionToDTO(result.Session),
		Address: AddressToDTO(result.Address),
	}
}

func OrderToDTO(result *service.OrderResult) *types.OrderResponse {
	return &types.OrderResponse{
		Session:       SessionToDTO(result.Session),
		Authorization: AttemptToDTO(result.Attempt),
		PaymentSource: SourceToDTO(result.Source),
	}
}

func SessionDetailsToDTO(details *service.SessionDetails) *types.SessionDetailsResponse {
	return &types.SessionDetailsResponse{
		Session:        SessionToDTO(details.Session),
		Address:        AddressToDTO(details.Address),
		Authorizations: AttemptsToDTO(details.Attempts),
		PaymentSources: SourcesToDTO(details.Sources),
		ProviderCalls:  TransactionsToDTO(details.Transactions),
	}
}

func WidgetContextToDTO(item *service.WidgetContext) *types.WidgetContextResponse {
	return &types.WidgetContextResponse{
		SellerId:           item.SellerID,
		ClientId:           item.ClientID,
		IsLive:             item.IsLive,
		BillingAgreementId: item.BillingAgreementID,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatOptionalAmount(v *decimal.Decimal) string {
	if v == nil {
		return ""
	}
	return v.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
