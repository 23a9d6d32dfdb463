package store

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/dto"
	"github.com/brightpath/storefront/internal/presentation/http/response"
	service "github.com/brightpath/storefront/internal/service/checkout"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brightpath/storefront/transport/http/store")

// Handler exposes checkout over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a store Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authmw *auth.Middleware) {
	g := e.Group("/store", authmw.Require())
	g.POST("/checkout", h.checkout)
}

func (h *Handler) checkout(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	var payload dto.CheckoutRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.ProductID <= 0 || payload.PaymentMethod == "" {
		return b.WithError(errorbank.BadRequest("product_id and payment_method are required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "store.checkout", trace.WithAttributes(
		attribute.Int64("product.id", payload.ProductID),
	))
	defer span.End()

	res, err := h.svc.Checkout(ctx, principal, payload.ProductID, payload.PaymentMethod)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.CheckoutResponse{
		OrderID:          res.Order.ID,
		ProcessorOrderID: res.ProcessorOrderID,
		KeyID:            res.KeyID,
		Amount:           res.Order.AmountMinor,
		Currency:         res.Order.Currency,
	}).Build()
}
