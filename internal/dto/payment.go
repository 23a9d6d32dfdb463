package dto

// CheckoutRequest starts a purchase for the authenticated buyer.
type CheckoutRequest struct {
	ProductID     int64  `json:"product_id"`
	PaymentMethod string `json:"payment_method"`
}

// CheckoutResponse carries what the client-side payment widget needs.
type CheckoutResponse struct {
	OrderID          int64  `json:"order_id"`
	ProcessorOrderID string `json:"processor_order_id"`
	KeyID            string `json:"key_id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// CallbackRequest is the client-submitted signed payment assertion.
type CallbackRequest struct {
	OrderID          int64  `json:"order_id"`
	PaymentID        string `json:"payment_id"`
	ProcessorOrderID string `json:"processor_order_id"`
	Signature        string `json:"signature"`
}

// PaymentFailureRequest is the client's report of a failed payment attempt.
type PaymentFailureRequest struct {
	OrderID int64 `json:"order_id"`
}

// PaymentStatusResponse reports the current order status for the
// post-redirect polling page. It is informational only and never grants
// entitlement by itself.
type PaymentStatusResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentAuditResponse compares our order record against the processor's
// record of its payment.
type PaymentAuditResponse struct {
	OrderID            int64               `json:"order_id"`
	Status             string              `json:"status"`
	ProcessorPaymentID string              `json:"processor_payment_id,omitempty"`
	ProcessorPayment   *AuditPaymentDetail `json:"processor_payment,omitempty"`
}

// AuditPaymentDetail is the processor's view of a payment.
type AuditPaymentDetail struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
}
