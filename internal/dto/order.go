package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
// Amount is integer minor currency units.
type OrderResponse struct {
	ID                 int64     `json:"id"`
	ProductID          int64     `json:"product_id"`
	Amount             int64     `json:"amount"`
	Currency           string    `json:"currency"`
	PaymentMethod      string    `json:"payment_method"`
	Status             string    `json:"status"`
	ProcessorOrderID   string    `json:"processor_order_id,omitempty"`
	ProcessorPaymentID string    `json:"processor_payment_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
