package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/factory"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/provider"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/service"
	"github.com/vibast-solutions/ms-go-amazon-payments/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) LinkAgreement(ctx echo.Context) error {
	req, err := types.NewLinkAgreementRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.checkoutService.LinkAgreement(ctx.Request().Context(), req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Link agreement failed")
	}

	return ctx.JSON(http.StatusCreated, &types.SessionEnvelopeResponse{Session: mapper.SessionToDTO(session)})
}

func (c *CheckoutController) ResolveShipping(ctx echo.Context) error {
	req, err := types.NewResolveShippingRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.ResolveShipping(ctx.Request().Context(), req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Resolve shipping failed")
	}

	return ctx.JSON(http.StatusOK, mapper.ShippingToDTO(result))
}

func (c *CheckoutController) SubmitPaymentDetails(ctx echo.Context) error {
	req, err := types.NewSubmitPaymentDetailsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.checkoutService.SubmitPaymentDetails(ctx.Request().Context(), req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Submit payment details failed")
	}

	return ctx.JSON(http.StatusOK, &types.SessionEnvelopeResponse{Session: mapper.SessionToDTO(session)})
}

func (c *CheckoutController) PlaceOrder(ctx echo.Context) error {
	req, err := types.NewPlaceOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.PlaceOrder(ctx.Request().Context(), req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Place order failed")
	}

	return ctx.JSON(http.StatusOK, mapper.OrderToDTO(result))
}

func (c *CheckoutController) PlaceOneStepOrder(ctx echo.Context) error {
	req, err := types.NewPlaceOneStepOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.PlaceOneStepOrder(ctx.Request().Context(), req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Place one step order failed")
	}

	return ctx.JSON(http.StatusOK, mapper.OrderToDTO(result))
}

func (c *CheckoutController) GetSession(ctx echo.Context) error {
	req, err := types.NewGetSessionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	details, err := c.checkoutService.GetSession(ctx.Request().Context(), req.GetToken())
	if err != nil {
		return c.handleServiceError(ctx, err, "Get session failed")
	}

	return ctx.JSON(http.StatusOK, mapper.SessionDetailsToDTO(details))
}

func (c *CheckoutController) ListSessions(ctx echo.Context) error {
	req, err := types.NewListSessionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.checkoutService.ListSessions(ctx.Request().Context(), req)
	if err != nil {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("List sessions failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListSessionsResponse{Sessions: mapper.SessionsToDTO(items)})
}

func (c *CheckoutController) WidgetContext(ctx echo.Context) error {
	req, err := types.NewGetSessionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	widget, err := c.checkoutService.WidgetContext(ctx.Request().Context(), req.GetToken())
	if err != nil {
		return c.handleServiceError(ctx, err, "Widget context failed")
	}

	return ctx.JSON(http.StatusOK, mapper.WidgetContextToDTO(widget))
}

func (c *CheckoutController) ReportWidgetError(ctx echo.Context) error {
	req, err := types.NewWidgetErrorRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: c.checkoutService.WidgetErrorMessage(req.Code, req.Message)})
}

func (c *CheckoutController) handleServiceError(ctx echo.Context, err error, logMessage string) error {
	var (
		constraintErr *service.ConstraintError
		rejectedErr   *service.PaymentRejectedError
		protocolErr   *service.ProtocolError
		transportErr  *provider.TransportError
	)

	switch {
	case errors.As(err, &constraintErr):
		return ctx.JSON(http.StatusUnprocessableEntity, &types.ErrorResponse{Error: constraintErr.Error(), Messages: constraintErr.Messages})
	case errors.As(err, &rejectedErr):
		return ctx.JSON(http.StatusPaymentRequired, &types.ErrorResponse{Error: rejectedErr.Message, Messages: []string{rejectedErr.Message}})
	case errors.As(err, &protocolErr):
		return ctx.JSON(http.StatusPaymentRequired, &types.ErrorResponse{Error: service.MsgPaymentFailed, Messages: []string{service.MsgPaymentFailed}})
	case errors.As(err, &transportErr):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(logMessage)
		return c.writeError(ctx, http.StatusServiceUnavailable, service.MsgProviderUnreachable)
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		return c.writeError(ctx, http.StatusNotFound, "checkout session not found")
	case errors.Is(err, service.ErrSessionCompleted),
		errors.Is(err, service.ErrSessionFailed),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrOrderReferenceMissing):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.writeError(ctx, http.StatusServiceUnavailable, "request canceled")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
