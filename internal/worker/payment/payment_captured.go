package payment

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/messaging"
	checkoutsvc "github.com/brightpath/storefront/internal/service/checkout"
	paymentsvc "github.com/brightpath/storefront/internal/service/payment"
	"github.com/brightpath/storefront/internal/worker"
)

var workerTracer = otel.Tracer("github.com/brightpath/storefront/worker/payment")

// Module registers payment-related worker handlers.
var Module = fx.Module("worker_payment",
	fx.Provide(
		fx.Annotate(
			NewEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewEventHandler consumes order and payment application events. Captured
// payments are where post-purchase fulfillment (receipts, delivery mails)
// hangs off; order creations are recorded for audit.
func NewEventHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.payments.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Error("failed to decode event envelope", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		switch envelope.Type {
		case paymentsvc.CapturedEventType:
			var event paymentsvc.CapturedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Error("failed to decode payment captured", zap.Error(err))
				span.RecordError(err)
				return err
			}
			logger.Info("payment captured event processed",
				zap.Int64("order_id", event.OrderID),
				zap.Int64("user_id", event.UserID),
				zap.Int64("product_id", event.ProductID),
				zap.String("payment_id", event.ProcessorPaymentID),
				zap.String("source", event.Source),
			)
		case checkoutsvc.CreatedEventType:
			var event checkoutsvc.CreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Error("failed to decode order created", zap.Error(err))
				span.RecordError(err)
				return err
			}
			logger.Info("order created event processed",
				zap.Int64("order_id", event.OrderID),
				zap.Int64("product_id", event.ProductID),
				zap.Int64("amount_minor", event.AmountMinor),
			)
		default:
			logger.Debug("ignoring event", zap.String("type", envelope.Type))
		}
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
