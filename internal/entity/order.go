package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderStatus enumerates the lifecycle states of a purchase.
type OrderStatus string

const (
	// OrderPending is the initial state of every purchase intent.
	OrderPending OrderStatus = "pending"
	// OrderCompleted marks a payment confirmed by a verified channel.
	// Completed is absorbing: no later signal may move an order out of it.
	OrderCompleted OrderStatus = "completed"
	// OrderFailed marks a declined or unverifiable payment. A later verified
	// success may still move the order to completed.
	OrderFailed OrderStatus = "failed"
)

// Order represents one purchase intent stored in the relational database.
// Amounts are integer minor currency units (paise, cents); floating point
// never touches money on any path.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64       `bun:",pk,autoincrement"`
	UserID        int64       `bun:"user_id"`
	ProductID     int64       `bun:"product_id"`
	AmountMinor   int64       `bun:"amount_minor"`
	Currency      string      `bun:"currency"`
	PaymentMethod string      `bun:"payment_method"`
	Status        OrderStatus `bun:"status"`
	TransactionID string      `bun:"transaction_id,nullzero"`

	// Processor-issued identifiers. The order id is set once the remote
	// order is created; payment id and signature are kept for audit.
	ProcessorOrderID   string `bun:"processor_order_id,nullzero"`
	ProcessorPaymentID string `bun:"processor_payment_id,nullzero"`
	ProcessorSignature string `bun:"processor_signature,nullzero"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}
