// Package checkout starts a purchase: it records the local pending order and
// registers the matching order with the payment processor.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/entity"
	"github.com/brightpath/storefront/internal/gateway"
	"github.com/brightpath/storefront/internal/messaging"
	productrepo "github.com/brightpath/storefront/internal/repository/product"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brightpath/storefront/service/checkout")

// The only payment method currently wired.
const methodProcessor = "razorpay"

// OrderStore is the slice of the order repository checkout needs.
type OrderStore interface {
	Create(ctx context.Context, order *entity.Order) error
	SetProcessorOrderID(ctx context.Context, id int64, processorOrderID string) error
}

// Products resolves purchasable products.
type Products interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
}

// Gateway creates remote orders with the processor.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (*gateway.RemoteOrder, error)
}

// Result is what the client-side payment widget needs to collect payment.
type Result struct {
	Order            *entity.Order
	ProcessorOrderID string
	KeyID            string
}

// CreatedEventType tags order.created application events on the bus.
const CreatedEventType = "order.created"

// CreatedEvent is emitted when a new pending order is persisted.
type CreatedEvent struct {
	Type        string    `json:"type"`
	OrderID     int64     `json:"order_id"`
	UserID      int64     `json:"user_id"`
	ProductID   int64     `json:"product_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// Service encapsulates checkout business logic.
type Service struct {
	orders    OrderStore
	products  Products
	gateway   Gateway
	logger    *zap.Logger
	publisher messaging.Client
	currency  string
	keyID     string
	timeout   time.Duration
	messaging messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    OrderStore
	Products  Products
	Gateway   Gateway
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new checkout Service.
func NewService(p Params) *Service {
	return &Service{
		orders:    p.Orders,
		products:  p.Products,
		gateway:   p.Gateway,
		logger:    p.Logger,
		publisher: p.Publisher,
		currency:  p.Config.Payment.Currency,
		keyID:     p.Config.Payment.KeyID,
		timeout:   p.Config.Payment.Timeout,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Checkout creates a pending order for the buyer and registers it with the
// processor. When the gateway is unreachable the local order stays pending
// with no processor id and the caller gets a retryable failure; that order
// can never be completed because no signature can ever match it.
func (s *Service) Checkout(ctx context.Context, principal auth.Principal, productID int64, paymentMethod string) (*Result, error) {
	ctx, span := serviceTracer.Start(ctx, "CheckoutService.Checkout", trace.WithAttributes(
		attribute.Int64("product.id", productID),
	))
	defer span.End()

	if paymentMethod != methodProcessor {
		return nil, errorbank.BadRequest(fmt.Sprintf("unsupported payment method: %s", paymentMethod))
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, productrepo.ErrNotFound) {
			return nil, errorbank.NotFound("product not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load product", errorbank.WithCause(err))
	}
	if !product.IsActive {
		return nil, errorbank.NotFound("product not found")
	}

	now := time.Now().UTC()
	order := &entity.Order{
		UserID:        principal.UserID,
		ProductID:     product.ID,
		AmountMinor:   product.PriceMinor,
		Currency:      s.currency,
		PaymentMethod: paymentMethod,
		Status:        entity.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	remote, err := s.gateway.CreateOrder(gatewayCtx, order.AmountMinor, order.Currency)
	if err != nil {
		s.logger.Warn("processor order creation failed; order left pending",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway unavailable")
		return nil, errorbank.Unprocessable("payment initialization failed, try again", errorbank.WithCause(err))
	}

	if err := s.orders.SetProcessorOrderID(ctx, order.ID, remote.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to attach processor order", errorbank.WithCause(err))
	}
	order.ProcessorOrderID = remote.ID

	s.publishCreated(ctx, order)

	return &Result{
		Order:            order,
		ProcessorOrderID: remote.ID,
		KeyID:            s.keyID,
	}, nil
}

func (s *Service) publishCreated(ctx context.Context, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := CreatedEvent{
		Type:        CreatedEventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ProductID:   order.ProductID,
		AmountMinor: order.AmountMinor,
		Currency:    order.Currency,
		CreatedAt:   order.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order created", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order created", zap.Error(err))
	}
}
