package order

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/dto"
	"github.com/brightpath/storefront/internal/entity"
	"github.com/brightpath/storefront/internal/presentation/http/response"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/brightpath/storefront/transport/http/order")

// Handler exposes the buyer's order history over HTTP.
type Handler struct {
	repo *orderrepo.Repository
}

// NewHandler constructs an order Handler.
func NewHandler(repo *orderrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler, authmw *auth.Middleware) {
	g := e.Group("/orders", authmw.Require())
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.repo.ListByUser(ctx, principal.UserID)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to list orders", errorbank.WithCause(err))).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toDTO(&orders[i]))
	}
	return b.WithData(out).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	principal, ok := auth.FromContext(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("missing principal")).Build()
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return b.WithError(errorbank.NotFound("order not found")).Build()
		}
		return b.WithError(errorbank.Internal("failed to load order", errorbank.WithCause(err))).Build()
	}
	if order.UserID != principal.UserID && !principal.IsAdmin() {
		return b.WithError(errorbank.Forbidden("order does not belong to caller")).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func toDTO(order *entity.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:                 order.ID,
		ProductID:          order.ProductID,
		Amount:             order.AmountMinor,
		Currency:           order.Currency,
		PaymentMethod:      order.PaymentMethod,
		Status:             string(order.Status),
		ProcessorOrderID:   order.ProcessorOrderID,
		ProcessorPaymentID: order.ProcessorPaymentID,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
	}
}
