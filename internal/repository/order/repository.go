package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightpath/storefront/internal/database"
	"github.com/brightpath/storefront/internal/entity"
)

var repoTracer = otel.Tracer("github.com/brightpath/storefront/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders. All status
// transitions are single conditional UPDATEs guarded on the current status,
// so the database is the sole serialization point: two handlers racing on
// the same order cannot both transition it, and nothing can move an order
// out of completed.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new pending order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.Int64("order.user_id", order.UserID),
		attribute.Int64("order.product_id", order.ProductID),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetByProcessorOrderID fetches an order by the processor-issued order id.
// Webhooks never carry a trusted internal id, so this is the only lookup
// the webhook path may use.
func (r *Repository) GetByProcessorOrderID(ctx context.Context, processorOrderID string) (*entity.Order, error) {
	if processorOrderID == "" {
		return nil, ErrNotFound
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByProcessorOrderID", trace.WithAttributes(
		attribute.String("order.processor_order_id", processorOrderID),
	))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("processor_order_id = ?", processorOrderID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// SetProcessorOrderID attaches the remote order id after the gateway call
// succeeds. Only pending orders without a processor id are eligible.
func (r *Repository) SetProcessorOrderID(ctx context.Context, id int64, processorOrderID string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SetProcessorOrderID", trace.WithAttributes(
		attribute.Int64("order.id", id),
	))
	defer span.End()

	_, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("processor_order_id = ?", processorOrderID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", entity.OrderPending).
		Where("processor_order_id IS NULL").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// MarkCompleted transitions an order to completed and records the payment
// proof. The guard admits pending and failed orders only; an order already
// completed is untouched and the call reports no transition. Signature may
// be empty for the webhook path, which carries no per-payment signature.
func (r *Repository) MarkCompleted(ctx context.Context, id int64, paymentID, paymentSignature string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkCompleted", trace.WithAttributes(
		attribute.Int64("order.id", id),
	))
	defer span.End()

	q := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", entity.OrderCompleted).
		Set("processor_payment_id = ?", paymentID).
		Set("transaction_id = ?", paymentID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status <> ?", entity.OrderCompleted)
	if paymentSignature != "" {
		q = q.Set("processor_signature = ?", paymentSignature)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkFailed transitions a pending order to failed. Completed orders are
// never regressed and an already-failed order stays failed; both report no
// transition.
func (r *Repository) MarkFailed(ctx context.Context, id int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.MarkFailed", trace.WithAttributes(
		attribute.Int64("order.id", id),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().Model((*entity.Order)(nil)).
		Set("status = ?", entity.OrderFailed).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", entity.OrderPending).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// HasCompletedOrder reports whether the user owns a completed order for the
// product. Entitlement is derived from this on every request.
func (r *Repository) HasCompletedOrder(ctx context.Context, userID, productID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.HasCompletedOrder", trace.WithAttributes(
		attribute.Int64("order.user_id", userID),
		attribute.Int64("order.product_id", productID),
	))
	defer span.End()

	exists, err := r.reader.NewSelect().Model((*entity.Order)(nil)).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Where("status = ?", entity.OrderCompleted).
		Exists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return false, err
	}
	return exists, nil
}

// ListByUser returns the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByUser", trace.WithAttributes(
		attribute.Int64("order.user_id", userID),
	))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return orders, nil
}
