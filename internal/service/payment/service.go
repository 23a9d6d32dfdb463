// Package payment reconciles purchase intents with payment confirmations
// arriving through three racing channels: the authenticated client callback,
// the processor webhook, and the post-redirect status poll. All channels
// converge on the same conditional transitions in the order store, so
// arbitrary interleaving and duplication are safe.
package payment

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
	"github.com/brightpath/storefront/internal/observability"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	"github.com/brightpath/storefront/internal/signature"
	"github.com/brightpath/storefront/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/brightpath/storefront/service/payment")

// OrderStore is the slice of the order repository the reconciler needs.
type OrderStore interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByProcessorOrderID(ctx context.Context, processorOrderID string) (*entity.Order, error)
	MarkCompleted(ctx context.Context, id int64, paymentID, paymentSignature string) (bool, error)
	MarkFailed(ctx context.Context, id int64) (bool, error)
}

// ProcessorAuditor looks payments up at the processor for manual
// reconciliation. Never consulted on the hot path.
type ProcessorAuditor interface {
	FetchPayment(ctx context.Context, paymentID string) (*gateway.PaymentDetail, error)
}

// CallbackInput is the signed payment assertion submitted by the client.
type CallbackInput struct {
	OrderID          int64
	PaymentID        string
	ProcessorOrderID string
	Signature        string
}

// WebhookEvent names recognized by the webhook path.
const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

// CapturedEventType tags payment.captured application events on the bus.
const CapturedEventType = "payment.captured"

// CapturedEvent is emitted once per order when it first reaches completed.
type CapturedEvent struct {
	Type               string    `json:"type"`
	OrderID            int64     `json:"order_id"`
	UserID             int64     `json:"user_id"`
	ProductID          int64     `json:"product_id"`
	ProcessorPaymentID string    `json:"processor_payment_id"`
	Source             string    `json:"source"`
	CapturedAt         time.Time `json:"captured_at"`
}

// Service is the payment reconciler.
type Service struct {
	orders        OrderStore
	processor     ProcessorAuditor
	metrics       *observability.Manager
	logger        *zap.Logger
	publisher     messaging.Client
	keySecret     string
	webhookSecret string
	messaging     messagingConfig
}

type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders    OrderStore
	Processor ProcessorAuditor       `optional:"true"`
	Metrics   *observability.Manager `optional:"true"`
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires the reconciler. Running without a webhook secret is a
// degraded mode: unverified webhooks are still processed, but the condition
// is logged loudly because it is operationally unsafe.
func NewService(p Params) *Service {
	if p.Config.Payment.WebhookSecret == "" && p.Logger != nil {
		p.Logger.Warn("no webhook secret configured; webhook payloads will be processed unverified")
	}
	return &Service{
		orders:        p.Orders,
		processor:     p.Processor,
		metrics:       p.Metrics,
		logger:        p.Logger,
		publisher:     p.Publisher,
		keySecret:     p.Config.Payment.KeySecret,
		webhookSecret: p.Config.Payment.WebhookSecret,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// ConfirmCallback handles the authenticated client callback carrying a
// signed payment assertion. On a valid proof the order transitions to
// completed; repeating the same verified callback is a no-op converging to
// the same state.
func (s *Service) ConfirmCallback(ctx context.Context, principal auth.Principal, in CallbackInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ConfirmCallback", trace.WithAttributes(
		attribute.Int64("order.id", in.OrderID),
	))
	defer span.End()

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if order.UserID != principal.UserID {
		s.logger.Warn("payment callback for foreign order",
			zap.Int64("order_id", order.ID),
			zap.Int64("caller_id", principal.UserID),
			zap.Int64("owner_id", order.UserID),
		)
		return nil, errorbank.Forbidden("order does not belong to caller")
	}

	// A signature is only meaningful against the processor order id this
	// order was created with. Rejecting mismatches first blocks replaying a
	// valid signature from one order against another.
	if order.ProcessorOrderID == "" || order.ProcessorOrderID != in.ProcessorOrderID {
		s.logger.Warn("payment callback processor order mismatch",
			zap.Int64("order_id", order.ID),
			zap.String("claimed", in.ProcessorOrderID),
		)
		return nil, errorbank.BadRequest("processor order id mismatch")
	}

	if !signature.VerifyPayment(in.PaymentID, in.ProcessorOrderID, in.Signature, s.keySecret) {
		s.logger.Warn("payment signature verification failed",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", in.PaymentID),
		)
		if order.Status != entity.OrderCompleted {
			if _, err := s.orders.MarkFailed(ctx, order.ID); err != nil {
				s.logger.Error("mark failed after bad signature", zap.Int64("order_id", order.ID), zap.Error(err))
			}
		}
		return nil, errorbank.BadRequest("payment signature verification failed")
	}

	transitioned, err := s.orders.MarkCompleted(ctx, order.ID, in.PaymentID, in.Signature)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, errorbank.Internal("failed to complete order", errorbank.WithCause(err))
	}
	if transitioned {
		s.observe(entity.OrderCompleted, "callback")
		s.publishCaptured(ctx, order, in.PaymentID, "callback")
	} else {
		// Already completed by the webhook or a duplicate callback.
		s.logger.Debug("callback on already-completed order", zap.Int64("order_id", order.ID))
	}

	order.Status = entity.OrderCompleted
	order.ProcessorPaymentID = in.PaymentID
	order.ProcessorSignature = in.Signature
	order.TransactionID = in.PaymentID
	return order, nil
}

// webhookPayload mirrors the processor's event envelope.
type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook processes an asynchronous processor notification. The body
// must be the raw request bytes: the signature covers them exactly. When a
// webhook secret is configured a bad signature rejects the whole request
// with zero order mutations. Unknown orders and unrecognized events are
// successful no-ops so the processor does not retry pointlessly.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, headerSignature string) error {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	if s.webhookSecret != "" {
		if !signature.VerifyWebhook(rawBody, headerSignature, s.webhookSecret) {
			s.logger.Warn("webhook signature verification failed")
			span.SetStatus(codes.Error, "invalid signature")
			return errorbank.BadRequest("invalid webhook signature")
		}
	} else {
		s.logger.Warn("processing unverified webhook; no webhook secret configured")
	}

	var payload webhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return errorbank.BadRequest("malformed webhook body", errorbank.WithCause(err))
	}

	span.SetAttributes(attribute.String("webhook.event", payload.Event))
	processorOrderID := payload.Payload.Payment.Entity.OrderID
	paymentID := payload.Payload.Payment.Entity.ID

	switch payload.Event {
	case eventPaymentCaptured:
		return s.applyCaptured(ctx, processorOrderID, paymentID)
	case eventPaymentFailed:
		return s.applyFailed(ctx, processorOrderID)
	default:
		s.logger.Debug("ignoring webhook event", zap.String("event", payload.Event))
		return nil
	}
}

func (s *Service) applyCaptured(ctx context.Context, processorOrderID, paymentID string) error {
	order, err := s.orders.GetByProcessorOrderID(ctx, processorOrderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			// The processor may deliver webhooks for orders this deployment
			// does not know. Answering success stops the retry loop.
			s.logger.Info("webhook for unknown processor order", zap.String("processor_order_id", processorOrderID))
			return nil
		}
		return errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	transitioned, err := s.orders.MarkCompleted(ctx, order.ID, paymentID, "")
	if err != nil {
		return errorbank.Internal("failed to complete order", errorbank.WithCause(err))
	}
	if transitioned {
		s.logger.Info("payment captured via webhook",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", paymentID),
		)
		s.observe(entity.OrderCompleted, "webhook")
		s.publishCaptured(ctx, order, paymentID, "webhook")
	}
	return nil
}

func (s *Service) applyFailed(ctx context.Context, processorOrderID string) error {
	order, err := s.orders.GetByProcessorOrderID(ctx, processorOrderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			s.logger.Info("webhook for unknown processor order", zap.String("processor_order_id", processorOrderID))
			return nil
		}
		return errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	transitioned, err := s.orders.MarkFailed(ctx, order.ID)
	if err != nil {
		return errorbank.Internal("failed to mark order failed", errorbank.WithCause(err))
	}
	if transitioned {
		s.observe(entity.OrderFailed, "webhook")
	}
	if !transitioned && order.Status == entity.OrderCompleted {
		// Misordered or retried failure after capture. Completed is
		// absorbing; absorb silently and keep a trace for audit.
		s.logger.Info("ignoring payment.failed for completed order", zap.Int64("order_id", order.ID))
	}
	return nil
}

// ReportFailure handles the client's own report of a failed payment attempt.
// It is advisory: the verified channels remain authoritative and a
// completed order is never regressed.
func (s *Service) ReportFailure(ctx context.Context, principal auth.Principal, orderID int64) error {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.ReportFailure", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		return errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.UserID != principal.UserID {
		return errorbank.Forbidden("order does not belong to caller")
	}

	transitioned, err := s.orders.MarkFailed(ctx, order.ID)
	if err != nil {
		return errorbank.Internal("failed to mark order failed", errorbank.WithCause(err))
	}
	if transitioned {
		s.observe(entity.OrderFailed, "client")
	}
	return nil
}

// Status returns the current order status for the post-redirect polling
// page. It is strictly read-only: redirects prove nothing about payment, so
// this path never transitions an order and never grants entitlement.
func (s *Service) Status(ctx context.Context, principal auth.Principal, orderID int64) (entity.OrderStatus, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Status", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return "", errorbank.NotFound("order not found")
		}
		return "", errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.UserID != principal.UserID {
		return "", errorbank.Forbidden("order does not belong to caller")
	}
	return order.Status, nil
}

// AuditResult pairs our order record with the processor's view of its
// payment for side-by-side comparison.
type AuditResult struct {
	Order   *entity.Order
	Payment *gateway.PaymentDetail
}

// Audit fetches the processor's record of an order's payment. Admin only,
// read-only; the reconciler state machine is not touched.
func (s *Service) Audit(ctx context.Context, principal auth.Principal, orderID int64) (*AuditResult, error) {
	ctx, span := serviceTracer.Start(ctx, "PaymentService.Audit", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	if !principal.IsAdmin() {
		return nil, errorbank.Forbidden("audit requires the admin role")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	result := &AuditResult{Order: order}
	if order.ProcessorPaymentID == "" || s.processor == nil {
		return result, nil
	}

	detail, err := s.processor.FetchPayment(ctx, order.ProcessorPaymentID)
	switch {
	case errors.Is(err, gateway.ErrPaymentNotFound):
		s.logger.Warn("processor does not know recorded payment",
			zap.Int64("order_id", order.ID),
			zap.String("payment_id", order.ProcessorPaymentID),
		)
	case errors.Is(err, gateway.ErrUnavailable):
		return nil, errorbank.Unprocessable("payment processor unavailable", errorbank.WithCause(err))
	case err != nil:
		return nil, errorbank.Internal("failed to fetch payment", errorbank.WithCause(err))
	default:
		result.Payment = detail
	}
	return result, nil
}

func (s *Service) observe(status entity.OrderStatus, source string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(string(status), source)
	}
}

func (s *Service) publishCaptured(ctx context.Context, order *entity.Order, paymentID, source string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := CapturedEvent{
		Type:               CapturedEventType,
		OrderID:            order.ID,
		UserID:             order.UserID,
		ProductID:          order.ProductID,
		ProcessorPaymentID: paymentID,
		Source:             source,
		CapturedAt:         time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal payment captured", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish payment captured", zap.Error(err))
	}
}
