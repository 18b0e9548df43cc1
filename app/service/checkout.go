package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/entity"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/factory"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/repository"
	"github.com/vibast-solutions/ms-go-amazon-payments/config"
)

const defaultListLimit = int32(100)

var sessionExpiredWidgetCodes = map[string]struct{}{
	"BuyerSessionExpired": {},
	"BuyerNotAssociated":  {},
	"StaleOrderReference": {},
}

type linkAgreementRequest interface {
	GetBasketId() string
	GetBillingAgreementId() string
	GetAccessToken() string
}

type resolveShippingRequest interface {
	GetToken() string
	GetHasSubscriptions() bool
}

type submitPaymentDetailsRequest interface {
	GetToken() string
	GetHasSubscriptions() bool
	GetOrderTotal() string
}

type placeOrderRequest interface {
	GetToken() string
	GetHasSubscriptions() bool
	GetOrderTotal() string
	GetOrderNumber() string
}

type placeOneStepOrderRequest interface {
	placeOrderRequest
	GetGuestEmail() string
}

type listSessionsRequest interface {
	GetBasketId() string
	GetHasState() bool
	GetState() int32
	GetLimit() int32
	GetOffset() int32
}

type checkoutSessionRepository interface {
	Create(ctx context.Context, session *entity.CheckoutSession) error
	Update(ctx context.Context, session *entity.CheckoutSession) error
	FindByToken(ctx context.Context, token string) (*entity.CheckoutSession, error)
	FindByBasketID(ctx context.Context, basketID string) (*entity.CheckoutSession, error)
	List(ctx context.Context, filter repository.SessionFilter) ([]*entity.CheckoutSession, error)
}

type transactionRepository interface {
	Recorder(sessionID uint64) provider.CallRecorder
	ListBySession(ctx context.Context, sessionID uint64) ([]*entity.Transaction, error)
}

type authAttemptRepository interface {
	Create(ctx context.Context, attempt *entity.AuthAttempt) error
	Update(ctx context.Context, attempt *entity.AuthAttempt) error
	ListBySession(ctx context.Context, sessionID uint64) ([]*entity.AuthAttempt, error)
}

type shippingAddressRepository interface {
	Save(ctx context.Context, address *entity.ShippingAddress) error
	FindBySession(ctx context.Context, sessionID uint64) (*entity.ShippingAddress, error)
}

type paymentSourceRepository interface {
	Create(ctx context.Context, source *entity.PaymentSource) error
	ListBySession(ctx context.Context, sessionID uint64) ([]*entity.PaymentSource, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type amazonPaymentsClient interface {
	SellerID() string
	CheckAgreement(ctx context.Context, billingAgreementID, accessToken string, opts provider.ValidationOptions, recorder provider.CallRecorder) (*provider.Evaluation, error)
	CreateOrderReferenceForID(ctx context.Context, billingAgreementID string, amount decimal.Decimal, currency string, recorder provider.CallRecorder) (string, error)
	SetOrderReferenceDetails(ctx context.Context, orderReferenceID string, amount decimal.Decimal, currency, sellerOrderID string, recorder provider.CallRecorder) error
	Authorize(ctx context.Context, orderReferenceID, authorizationReferenceID string, amount decimal.Decimal, currency string, recorder provider.CallRecorder) (string, uint64, error)
	GetAuthorizationDetails(ctx context.Context, authorizationID string, recorder provider.CallRecorder) (*provider.AuthorizationStatus, error)
	ConfirmBillingAgreement(ctx context.Context, billingAgreementID string, recorder provider.CallRecorder) error
	ValidateBillingAgreement(ctx context.Context, billingAgreementID string, recorder provider.CallRecorder) (string, error)
}

type ShippingResult struct {
	Session *entity.CheckoutSession
	Address *entity.ShippingAddress
}

type OrderResult struct {
	Session *entity.CheckoutSession
	Attempt *entity.AuthAttempt
	Source  *entity.PaymentSource
}

type SessionDetails struct {
	Session      *entity.CheckoutSession
	Address      *entity.ShippingAddress
	Attempts     []*entity.AuthAttempt
	Sources      []*entity.PaymentSource
	Transactions []*entity.Transaction
}

// WidgetContext is what the checkout page needs to render the provider
// widgets.
type WidgetContext struct {
	SellerID           string
	ClientID           string
	IsLive             bool
	BillingAgreementID string
}

type CheckoutService struct {
	sessionRepo checkoutSessionRepository
	txRepo      transactionRepository
	attemptRepo authAttemptRepository
	addressRepo shippingAddressRepository
	sourceRepo  paymentSourceRepository
	eventRepo   paymentEventRepository
	client      amazonPaymentsClient
	amazonCfg   config.AmazonPaymentsConfig
	checkoutCfg config.CheckoutConfig
	locks       *keyedLocker
	now         func() time.Time
	logger      logrus.FieldLogger
}

func NewCheckoutService(
	sessionRepo checkoutSessionRepository,
	txRepo transactionRepository,
	attemptRepo authAttemptRepository,
	addressRepo shippingAddressRepository,
	sourceRepo paymentSourceRepository,
	eventRepo paymentEventRepository,
	client amazonPaymentsClient,
	amazonCfg config.AmazonPaymentsConfig,
	checkoutCfg config.CheckoutConfig,
) *CheckoutService {
	if strings.TrimSpace(amazonCfg.Currency) == "" {
		amazonCfg.Currency = "USD"
	}
	if strings.TrimSpace(checkoutCfg.SourceType) == "" {
		checkoutCfg.SourceType = "Amazon Payments"
	}

	return &CheckoutService{
		sessionRepo: sessionRepo,
		txRepo:      txRepo,
		attemptRepo: attemptRepo,
		addressRepo: addressRepo,
		sourceRepo:  sourceRepo,
		eventRepo:   eventRepo,
		client:      client,
		amazonCfg:   amazonCfg,
		checkoutCfg: checkoutCfg,
		locks:       newKeyedLocker(),
		now:         func() time.Time { return time.Now().UTC() },
		logger:      factory.NewModuleLogger("checkout-service"),
	}
}

// LinkAgreement stores the billing agreement handed over by the login
// redirect. An existing session for the basket is updated in place.
func (s *CheckoutService) LinkAgreement(ctx context.Context, req linkAgreementRequest) (*entity.CheckoutSession, error) {
	basketID := strings.TrimSpace(req.GetBasketId())
	if basketID == "" {
		return nil, ErrInvalidRequest
	}
	agreementID := strings.TrimSpace(req.GetBillingAgreementId())
	if agreementID == "" {
		return nil, &ConstraintError{Messages: []string{MsgLoginFailed}}
	}

	unlock, err := s.locks.Lock(ctx, "basket:"+basketID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	session, err := s.sessionRepo.FindByBasketID(ctx, basketID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session == nil {
		session = &entity.CheckoutSession{
			Token:              uuid.NewString(),
			BasketID:           basketID,
			BillingAgreementID: agreementID,
			AccessToken:        normalizeOptionalString(req.GetAccessToken()),
			State:              entity.CheckoutStateAgreementLinked,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.sessionRepo.Create(ctx, session); err != nil {
			if errors.Is(err, repository.ErrSessionAlreadyExists) {
				return nil, fmt.Errorf("%w: basket %s already has a session", ErrInvalidState, basketID)
			}
			return nil, err
		}
		s.logger.WithField("session_id", session.ID).WithField("billing_agreement_id", agreementID).Info("Billing agreement linked")
		return session, nil
	}

	// Reload under the session lock; the basket lookup may be stale.
	session, unlockSession, err := s.lockSession(ctx, session.Token)
	if err != nil {
		return nil, err
	}
	defer unlockSession()

	if session.Terminal() {
		return nil, ErrSessionCompleted
	}

	if session.BillingAgreementID != agreementID {
		session.OrderReferenceID = nil
	}
	oldState := session.State
	session.BillingAgreementID = agreementID
	session.AccessToken = normalizeOptionalString(req.GetAccessToken())
	session.State = entity.CheckoutStateAgreementLinked
	session.LastError = nil
	session.UpdatedAt = now

	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, s.mapRepositoryError(err)
	}

	s.logger.WithField("session_id", session.ID).
		WithField("billing_agreement_id", agreementID).
		WithField("old_state", oldState).
		Info("Billing agreement relinked")

	return session, nil
}

// ResolveShipping validates the shipping address selected in the provider
// widget and copies it onto the session.
func (s *CheckoutService) ResolveShipping(ctx context.Context, req resolveShippingRequest) (*ShippingResult, error) {
	session, unlock, err := s.lockSession(ctx, req.GetToken())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ensureOpen(session); err != nil {
		return nil, err
	}

	details, err := s.checkAgreement(ctx, session, provider.ValidationOptions{
		WantSubscription:       req.GetHasSubscriptions(),
		ValidateShipping:       true,
		ValidatePayment:        false,
		ValidShippingCountries: s.checkoutCfg.ShippingCountries,
	})
	if err != nil {
		return nil, err
	}

	address, err := s.saveShippingAddress(ctx, session, details)
	if err != nil {
		return nil, err
	}

	if session.State < entity.CheckoutStateShippingResolved {
		session.State = entity.CheckoutStateShippingResolved
	}
	session.LastError = nil
	session.UpdatedAt = s.now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, s.mapRepositoryError(err)
	}

	return &ShippingResult{Session: session, Address: address}, nil
}

// SubmitPaymentDetails validates the payment method and creates the order
// reference unless the session already has one.
func (s *CheckoutService) SubmitPaymentDetails(ctx context.Context, req submitPaymentDetailsRequest) (*entity.CheckoutSession, error) {
	total, err := parseAmount(req.GetOrderTotal())
	if err != nil {
		return nil, err
	}

	session, unlock, err := s.lockSession(ctx, req.GetToken())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ensureOpen(session); err != nil {
		return nil, err
	}
	if session.State < entity.CheckoutStateShippingResolved {
		return nil, fmt.Errorf("%w: shipping address is not resolved", ErrInvalidState)
	}

	if _, err := s.checkAgreement(ctx, session, s.fullValidation(req.GetHasSubscriptions())); err != nil {
		return nil, err
	}

	if err := s.ensureOrderReference(ctx, session, total); err != nil {
		return nil, err
	}

	return session, nil
}

// PlaceOrder re-validates the agreement and runs the authorization protocol
// against the existing order reference.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req placeOrderRequest) (*OrderResult, error) {
	total, err := parseAmount(req.GetOrderTotal())
	if err != nil {
		return nil, err
	}
	orderNumber := strings.TrimSpace(req.GetOrderNumber())
	if orderNumber == "" {
		return nil, ErrInvalidRequest
	}

	session, unlock, err := s.lockSession(ctx, req.GetToken())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ensureOpen(session); err != nil {
		return nil, err
	}
	if result, resumed, err := s.resumeAuthorization(ctx, session, orderNumber, req.GetHasSubscriptions()); resumed {
		return result, err
	}
	if !session.HasOrderReference() {
		return nil, ErrOrderReferenceMissing
	}

	if _, err := s.checkAgreement(ctx, session, s.fullValidation(req.GetHasSubscriptions())); err != nil {
		return nil, err
	}

	return s.authorize(ctx, session, total, orderNumber, req.GetHasSubscriptions())
}

// PlaceOneStepOrder runs the whole checkout in one request: validation,
// shipping address, order reference and authorization.
func (s *CheckoutService) PlaceOneStepOrder(ctx context.Context, req placeOneStepOrderRequest) (*OrderResult, error) {
	total, err := parseAmount(req.GetOrderTotal())
	if err != nil {
		return nil, err
	}
	orderNumber := strings.TrimSpace(req.GetOrderNumber())
	if orderNumber == "" {
		return nil, ErrInvalidRequest
	}

	session, unlock, err := s.lockSession(ctx, req.GetToken())
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ensureOpen(session); err != nil {
		return nil, err
	}
	if result, resumed, err := s.resumeAuthorization(ctx, session, orderNumber, req.GetHasSubscriptions()); resumed {
		return result, err
	}

	details, err := s.checkAgreement(ctx, session, s.fullValidation(req.GetHasSubscriptions()))
	if err != nil {
		return nil, err
	}

	if _, err := s.saveShippingAddress(ctx, session, details); err != nil {
		return nil, err
	}

	guestEmail := strings.TrimSpace(req.GetGuestEmail())
	if guestEmail == "" {
		guestEmail = details.BuyerEmail()
	}
	session.GuestEmail = normalizeOptionalString(guestEmail)
	if session.State < entity.CheckoutStateShippingResolved {
		session.State = entity.CheckoutStateShippingResolved
	}

	if err := s.ensureOrderReference(ctx, session, total); err != nil {
		return nil, err
	}

	return s.authorize(ctx, session, total, orderNumber, req.GetHasSubscriptions())
}

// WidgetErrorMessage maps an error reported by the provider widget to the
// message shown to the buyer.
func (s *CheckoutService) WidgetErrorMessage(code, message string) string {
	code = strings.TrimSpace(code)
	if code != "" || strings.TrimSpace(message) != "" {
		s.logger.WithField("code", code).WithField("message", message).Debug("Amazon widget error response")
	}
	if _, ok := sessionExpiredWidgetCodes[code]; ok {
		return MsgSessionExpired
	}
	return MsgProviderProblem
}

func (s *CheckoutService) GetSession(ctx context.Context, token string) (*SessionDetails, error) {
	session, err := s.loadSession(ctx, token)
	if err != nil {
		return nil, err
	}

	address, err := s.addressRepo.FindBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attemptRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	sources, err := s.sourceRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	transactions, err := s.txRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return &SessionDetails{
		Session:      session,
		Address:      address,
		Attempts:     attempts,
		Sources:      sources,
		Transactions: transactions,
	}, nil
}

func (s *CheckoutService) ListSessions(ctx context.Context, req listSessionsRequest) ([]*entity.CheckoutSession, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	return s.sessionRepo.List(ctx, repository.SessionFilter{
		BasketID: strings.TrimSpace(req.GetBasketId()),
		HasState: req.GetHasState(),
		State:    req.GetState(),
		Limit:    limit,
		Offset:   req.GetOffset(),
	})
}

func (s *CheckoutService) WidgetContext(ctx context.Context, token string) (*WidgetContext, error) {
	session, err := s.loadSession(ctx, token)
	if err != nil {
		return nil, err
	}

	return &WidgetContext{
		SellerID:           s.client.SellerID(),
		ClientID:           s.amazonCfg.ClientID,
		IsLive:             s.amazonCfg.IsLive,
		BillingAgreementID: session.BillingAgreementID,
	}, nil
}

func (s *CheckoutService) fullValidation(wantSubscription bool) provider.ValidationOptions {
	return provider.ValidationOptions{
		WantSubscription:       wantSubscription,
		ValidateShipping:       true,
		ValidatePayment:        true,
		ValidShippingCountries: s.checkoutCfg.ShippingCountries,
	}
}

func (s *CheckoutService) loadSession(ctx context.Context, token string) (*entity.CheckoutSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidRequest
	}
	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// lockSession serializes requests for one session and loads it after the lock
// is held.
func (s *CheckoutService) lockSession(ctx context.Context, token string) (*entity.CheckoutSession, func(), error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, ErrInvalidRequest
	}

	unlock, err := s.locks.Lock(ctx, "session:"+token)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.loadSession(ctx, token)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return session, unlock, nil
}

// checkAgreement fetches the agreement and evaluates it. Provider rejections
// become buyer-facing messages; transport errors are returned as is.
func (s *CheckoutService) checkAgreement(ctx context.Context, session *entity.CheckoutSession, opts provider.ValidationOptions) (*provider.AgreementDetails, error) {
	eval, err := s.client.CheckAgreement(ctx, session.BillingAgreementID, stringValue(session.AccessToken), opts, s.txRepo.Recorder(session.ID))
	if err != nil {
		var providerErr *provider.ProviderError
		if errors.As(err, &providerErr) {
			s.logger.WithError(err).WithField("session_id", session.ID).Debug("Billing agreement check rejected")
			if providerErr.Code == provider.CodeInvalidAddressConsentToken {
				return nil, &ConstraintError{Messages: []string{MsgSessionExpired}}
			}
			return nil, &ConstraintError{Messages: []string{MsgProviderProblem}}
		}
		return nil, err
	}
	if !eval.OK {
		return nil, &ConstraintError{Messages: eval.Errors}
	}
	return eval.Details, nil
}

func (s *CheckoutService) saveShippingAddress(ctx context.Context, session *entity.CheckoutSession, details *provider.AgreementDetails) (*entity.ShippingAddress, error) {
	dest := details.Destination
	if dest == nil {
		return nil, &ConstraintError{Messages: []string{provider.MsgSelectShippingAddr}}
	}

	now := s.now()
	address := &entity.ShippingAddress{
		SessionID:     session.ID,
		Name:          dest.Name,
		Line1:         dest.AddressLine1,
		Line2:         normalizeOptionalString(dest.AddressLine2),
		City:          dest.City,
		StateOrRegion: dest.StateOrRegion,
		PostalCode:    dest.PostalCode,
		CountryCode:   strings.ToUpper(dest.CountryCode),
		Phone:         normalizeOptionalString(dest.Phone),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.addressRepo.Save(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// ensureOrderReference creates the order reference once per session and
// persists it right away.
func (s *CheckoutService) ensureOrderReference(ctx context.Context, session *entity.CheckoutSession, total decimal.Decimal) error {
	if session.HasOrderReference() {
		if session.State < entity.CheckoutStateOrderReferenceCreated {
			session.State = entity.CheckoutStateOrderReferenceCreated
			session.UpdatedAt = s.now()
			return s.mapRepositoryError(s.sessionRepo.Update(ctx, session))
		}
		return nil
	}

	orderReferenceID, err := s.client.CreateOrderReferenceForID(ctx, session.BillingAgreementID, total, s.amazonCfg.Currency, s.txRepo.Recorder(session.ID))
	if err != nil {
		return s.protocolFailure(ctx, session, err)
	}

	session.OrderReferenceID = &orderReferenceID
	session.State = entity.CheckoutStateOrderReferenceCreated
	session.LastError = nil
	session.UpdatedAt = s.now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger.WithField("session_id", session.ID).WithField("order_reference_id", orderReferenceID).Info("Order reference created")
	return nil
}

// authorize sets the order total, authorizes a fresh attempt and checks its
// status once.
func (s *CheckoutService) authorize(ctx context.Context, session *entity.CheckoutSession, total decimal.Decimal, orderNumber string, wantSubscription bool) (*OrderResult, error) {
	recorder := s.txRepo.Recorder(session.ID)
	orderReferenceID := stringValue(session.OrderReferenceID)
	currency := s.amazonCfg.Currency

	if err := s.client.SetOrderReferenceDetails(ctx, orderReferenceID, total, currency, orderNumber, recorder); err != nil {
		return nil, s.protocolFailure(ctx, session, err)
	}

	attempt, err := s.newAuthAttempt(ctx, session, total)
	if err != nil {
		return nil, err
	}

	authorizationID, recordID, err := s.client.Authorize(ctx, orderReferenceID, *attempt.ReferenceID, total, currency, recorder)
	if err != nil {
		return nil, s.protocolFailure(ctx, session, err)
	}
	attempt.AuthorizationID = &authorizationID
	if recordID > 0 {
		attempt.TransactionID = &recordID
	}
	attempt.UpdatedAt = s.now()
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, err
	}

	return s.settle(ctx, session, attempt, orderNumber, wantSubscription)
}

// settle polls the status of an authorized attempt once and applies the
// outcome to the session.
func (s *CheckoutService) settle(ctx context.Context, session *entity.CheckoutSession, attempt *entity.AuthAttempt, orderNumber string, wantSubscription bool) (*OrderResult, error) {
	authorizationID := stringValue(attempt.AuthorizationID)

	status, err := s.client.GetAuthorizationDetails(ctx, authorizationID, s.txRepo.Recorder(session.ID))
	if err != nil {
		return nil, s.protocolFailure(ctx, session, err)
	}

	state := string(status.State)
	attempt.State = &state
	attempt.ReasonCode = normalizeOptionalString(status.ReasonCode)
	attempt.CapturedAmount = status.CapturedAmount
	attempt.UpdatedAt = s.now()
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, err
	}

	l := s.logger.WithField("session_id", session.ID).
		WithField("authorization_id", authorizationID).
		WithField("state", state).
		WithField("reason_code", status.ReasonCode)

	switch {
	case status.State == provider.AuthorizationDeclined && isRecoverableDecline(status.ReasonCode):
		l.Info("Authorization declined, buyer must choose another payment method")
		msg := MsgPaymentRejected
		session.State = entity.CheckoutStateOrderReferenceCreated
		session.LastError = &msg
		session.UpdatedAt = s.now()
		if err := s.sessionRepo.Update(ctx, session); err != nil {
			return nil, s.mapRepositoryError(err)
		}
		return nil, &PaymentRejectedError{ReasonCode: status.ReasonCode, Message: MsgPaymentRejected}
	case isSuccessfulAuthorization(string(status.State), status.ReasonCode):
	default:
		l.Warn("Authorization failed")
		protocolErr := &ProtocolError{State: state, ReasonCode: status.ReasonCode}
		if err := s.markFailed(ctx, session, protocolErr.Error()); err != nil {
			return nil, err
		}
		return nil, protocolErr
	}

	session.State = entity.CheckoutStateAuthorized
	session.UpdatedAt = s.now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, s.mapRepositoryError(err)
	}

	return s.complete(ctx, session, attempt, status, attempt.Amount, orderNumber, wantSubscription)
}

// resumeAuthorization picks up an authorization left behind by an earlier
// request instead of charging again. An Authorized session is completed from
// its successful attempt. An attempt that was authorized but never polled is
// polled now. resumed is false when there is nothing to pick up.
func (s *CheckoutService) resumeAuthorization(ctx context.Context, session *entity.CheckoutSession, orderNumber string, wantSubscription bool) (result *OrderResult, resumed bool, err error) {
	attempts, err := s.attemptRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, true, err
	}

	l := s.logger.WithField("session_id", session.ID)

	if session.State == entity.CheckoutStateAuthorized {
		for i := len(attempts) - 1; i >= 0; i-- {
			attempt := attempts[i]
			if attempt.AuthorizationID == nil || attempt.State == nil {
				continue
			}
			if !isSuccessfulAuthorization(*attempt.State, stringValue(attempt.ReasonCode)) {
				continue
			}
			l.WithField("authorization_id", *attempt.AuthorizationID).Info("Resuming completion of authorized checkout")
			result, err := s.complete(ctx, session, attempt, statusFromAttempt(attempt), attempt.Amount, orderNumber, wantSubscription)
			return result, true, err
		}
		return nil, true, fmt.Errorf("%w: authorized session has no successful authorization", ErrInvalidState)
	}

	if len(attempts) == 0 {
		return nil, false, nil
	}
	latest := attempts[len(attempts)-1]
	if latest.AuthorizationID == nil || latest.State != nil {
		return nil, false, nil
	}

	l.WithField("authorization_id", *latest.AuthorizationID).Info("Polling outstanding authorization")
	result, err = s.settle(ctx, session, latest, orderNumber, wantSubscription)
	return result, true, err
}

func statusFromAttempt(attempt *entity.AuthAttempt) *provider.AuthorizationStatus {
	return &provider.AuthorizationStatus{
		AuthorizationID:  stringValue(attempt.AuthorizationID),
		State:            provider.AuthorizationState(stringValue(attempt.State)),
		ReasonCode:       stringValue(attempt.ReasonCode),
		AuthorizedAmount: attempt.Amount,
		CapturedAmount:   attempt.CapturedAmount,
	}
}

func (s *CheckoutService) newAuthAttempt(ctx context.Context, session *entity.CheckoutSession, total decimal.Decimal) (*entity.AuthAttempt, error) {
	now := s.now()
	attempt := &entity.AuthAttempt{
		SessionID: session.ID,
		Amount:    total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	// The attempt id makes the reference unique; the timestamp keeps it unique
	// across databases sharing a seller account.
	referenceID := fmt.Sprintf("%d-%d", attempt.ID, attempt.CreatedAt.Unix())
	attempt.ReferenceID = &referenceID
	if err := s.attemptRepo.Update(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *CheckoutService) complete(
	ctx context.Context,
	session *entity.CheckoutSession,
	attempt *entity.AuthAttempt,
	status *provider.AuthorizationStatus,
	total decimal.Decimal,
	orderNumber string,
	wantSubscription bool,
) (*OrderResult, error) {
	authorizationID := stringValue(attempt.AuthorizationID)
	currency := status.Currency
	if currency == "" {
		currency = s.amazonCfg.Currency
	}

	settled := status.SettledAmount()
	now := s.now()
	source, err := s.findSource(ctx, session.ID, authorizationID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		source = &entity.PaymentSource{
			SessionID:       session.ID,
			SourceType:      s.checkoutCfg.SourceType,
			Currency:        currency,
			AmountAllocated: settled,
			AmountDebited:   settled,
			Reference:       authorizationID,
			CreatedAt:       now,
		}
		if err := s.sourceRepo.Create(ctx, source); err != nil {
			return nil, err
		}
	}

	oldState := session.State
	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		SessionID: session.ID,
		EventType: entity.PaymentEventPurchase,
		Amount:    total,
		Reference: &authorizationID,
		OldState:  &oldState,
		NewState:  entity.CheckoutStateCompleted,
		CreatedAt: now,
	})

	if wantSubscription {
		s.setupAutomaticPayments(ctx, session, orderNumber)
	}

	session.OrderNumber = &orderNumber
	session.State = entity.CheckoutStateCompleted
	session.LastError = nil
	session.UpdatedAt = s.now()
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return nil, s.mapRepositoryError(err)
	}

	s.logger.WithField("session_id", session.ID).
		WithField("order_number", orderNumber).
		WithField("authorization_id", authorizationID).
		WithField("amount", settled.StringFixed(2)).
		Info("Checkout completed")

	return &OrderResult{Session: session, Attempt: attempt, Source: source}, nil
}

func (s *CheckoutService) findSource(ctx context.Context, sessionID uint64, reference string) (*entity.PaymentSource, error) {
	sources, err := s.sourceRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, source := range sources {
		if source.Reference == reference {
			return source, nil
		}
	}
	return nil, nil
}

// setupAutomaticPayments confirms and validates the billing agreement for
// future charges. Failures are logged and never affect the placed order.
func (s *CheckoutService) setupAutomaticPayments(ctx context.Context, session *entity.CheckoutSession, orderNumber string) {
	l := s.logger.WithField("session_id", session.ID).WithField("order_number", orderNumber)
	recorder := s.txRepo.Recorder(session.ID)

	if err := s.client.ConfirmBillingAgreement(ctx, session.BillingAgreementID, recorder); err != nil {
		if !provider.IsProviderError(err, provider.CodeBillingAgreementConstraintsExist) {
			l.WithError(err).Error("Unable to set up automatic payments")
			return
		}
		l.WithError(err).Info("Billing agreement has constraints, validating anyway")
	}

	result, err := s.client.ValidateBillingAgreement(ctx, session.BillingAgreementID, recorder)
	if err != nil {
		l.WithError(err).Error("Unable to validate billing agreement")
		return
	}
	l.WithField("validation_result", result).Info("Billing agreement validated")
}

// protocolFailure fails the session on provider rejections. Transport errors
// leave the session untouched so the buyer can resubmit.
func (s *CheckoutService) protocolFailure(ctx context.Context, session *entity.CheckoutSession, err error) error {
	var providerErr *provider.ProviderError
	if !errors.As(err, &providerErr) {
		return err
	}

	protocolErr := &ProtocolError{Code: providerErr.Code, Message: providerErr.Message}
	if markErr := s.markFailed(ctx, session, protocolErr.Error()); markErr != nil {
		return markErr
	}
	return protocolErr
}

func (s *CheckoutService) markFailed(ctx context.Context, session *entity.CheckoutSession, reason string) error {
	s.logger.WithField("session_id", session.ID).WithField("reason", reason).Error("Checkout failed")
	session.State = entity.CheckoutStateFailed
	session.LastError = &reason
	session.UpdatedAt = s.now()
	return s.mapRepositoryError(s.sessionRepo.Update(ctx, session))
}

func (s *CheckoutService) mapRepositoryError(err error) error {
	if errors.Is(err, repository.ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	return err
}

func ensureOpen(session *entity.CheckoutSession) error {
	switch session.State {
	case entity.CheckoutStateCompleted:
		return ErrSessionCompleted
	case entity.CheckoutStateFailed:
		return ErrSessionFailed
	case entity.CheckoutStateNoAgreement:
		return fmt.Errorf("%w: no billing agreement linked", ErrInvalidState)
	}
	return nil
}

func isSuccessfulAuthorization(state, reasonCode string) bool {
	switch provider.AuthorizationState(state) {
	case provider.AuthorizationOpen:
		return true
	case provider.AuthorizationClosed:
		return reasonCode == provider.ReasonMaxCapturesProcessed
	}
	return false
}

func isRecoverableDecline(reasonCode string) bool {
	return reasonCode == provider.ReasonInvalidPaymentMethod || reasonCode == provider.ReasonAmazonRejected
}

func parseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid order total", ErrInvalidRequest)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: order total must be > 0", ErrInvalidRequest)
	}
	return amount.Round(2), nil
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
