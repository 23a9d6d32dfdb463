package payment

import (
	"io"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/dto"
	"github.com/brightpath/storefront/internal/presentation/http/response"
	service "github.com/brightpath/storefront/internal/service/payment"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brightpath/storefront/transport/http/payment")

// WebhookSignatureHeader carries the processor's webhook body signature.
const WebhookSignatureHeader = "X-Signature"

// Handler exposes the payment reconciliation endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a payment Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance. The webhook endpoint is
// deliberately outside the authenticated group: the processor has no
// session, only a body signature.
func Register(e *echo.Echo, h *Handler, authmw *auth.Middleware) {
	g := e.Group("/payments", authmw.Require())
	g.POST("/callback", h.callback)
	g.POST("/failed", h.failed)
	g.GET("/:id/status", h.status)
	g.GET("/:id/audit", h.audit)

	e.POST("/webhooks/payment", h.webhook)
}

func (h *Handler) callback(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	var payload dto.CallbackRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderID <= 0 || payload.PaymentID == "" || payload.ProcessorOrderID == "" || payload.Signature == "" {
		return b.WithError(errorbank.BadRequest("order_id, payment_id, processor_order_id and signature are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.callback", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
	))
	defer span.End()

	order, err := h.svc.ConfirmCallback(ctx, principal, service.CallbackInput{
		OrderID:          payload.OrderID,
		PaymentID:        payload.PaymentID,
		ProcessorOrderID: payload.ProcessorOrderID,
		Signature:        payload.Signature,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.PaymentStatusResponse{OrderID: order.ID, Status: string(order.Status)}).Build()
}

func (h *Handler) failed(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	var payload dto.PaymentFailureRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderID <= 0 {
		return b.WithError(errorbank.BadRequest("order_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.failed", trace.WithAttributes(
		attribute.Int64("order.id", payload.OrderID),
	))
	defer span.End()

	if err := h.svc.ReportFailure(ctx, principal, payload.OrderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) status(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.status", trace.WithAttributes(
		attribute.Int64("order.id", id),
	))
	defer span.End()

	status, err := h.svc.Status(ctx, principal, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.PaymentStatusResponse{OrderID: id, Status: string(status)}).Build()
}

func (h *Handler) audit(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.audit", trace.WithAttributes(
		attribute.Int64("order.id", id),
	))
	defer span.End()

	result, err := h.svc.Audit(ctx, principal, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	resp := dto.PaymentAuditResponse{
		OrderID:            result.Order.ID,
		Status:             string(result.Order.Status),
		ProcessorPaymentID: result.Order.ProcessorPaymentID,
	}
	if result.Payment != nil {
		resp.ProcessorPayment = &dto.AuditPaymentDetail{
			ID:          result.Payment.ID,
			OrderID:     result.Payment.OrderID,
			Status:      result.Payment.Status,
			AmountMinor: result.Payment.AmountMinor,
			Currency:    result.Payment.Currency,
			Method:      result.Payment.Method,
		}
	}
	return b.WithData(resp).Build()
}

func (h *Handler) webhook(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "payments.webhook")
	defer span.End()

	// The signature covers the body bytes exactly as sent; read them raw
	// before any parsing.
	rawBody, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return b.WithError(errorbank.BadRequest("unreadable body", errorbank.WithCause(err))).Build()
	}

	if err := h.svc.HandleWebhook(ctx, rawBody, c.Request().Header.Get(WebhookSignatureHeader)); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}
