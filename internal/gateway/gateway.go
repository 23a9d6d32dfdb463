// Package gateway is the thin client for the external payment processor.
// The processor is treated as an unreliable remote dependency: every call is
// bounded by a timeout and any transport failure or non-2xx response maps to
// ErrUnavailable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/config"
)

var gatewayTracer = otel.Tracer("github.com/brightpath/storefront/gateway")

// ErrUnavailable indicates the processor could not be reached or answered
// with a server error. Callers surface it as a retryable failure; it is
// never a silent success.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrPaymentNotFound indicates the processor does not know the payment id.
var ErrPaymentNotFound = errors.New("payment not found")

// RemoteOrder is the processor's record of an order created for checkout.
type RemoteOrder struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

// PaymentDetail describes a payment as reported by the processor. Used for
// manual reconciliation and audit, not on the hot path.
type PaymentDetail struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
}

// Client issues authenticated calls against the processor API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	logger     *zap.Logger
}

// NewClient builds a processor client from configuration.
func NewClient(cfg config.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Payment.Timeout},
		baseURL:    strings.TrimRight(cfg.Payment.BaseURL, "/"),
		keyID:      cfg.Payment.KeyID,
		keySecret:  cfg.Payment.KeySecret,
		logger:     logger,
	}
}

// CreateOrder registers a new order with the processor. The amount is
// integer minor currency units; no float ever reaches the wire.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency string) (*RemoteOrder, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.CreateOrder", trace.WithAttributes(
		attribute.Int64("payment.amount_minor", amountMinor),
		attribute.String("payment.currency", currency),
	))
	defer span.End()

	if amountMinor <= 0 {
		return nil, fmt.Errorf("invalid amount: %d", amountMinor)
	}

	payload := struct {
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		PaymentCapture int    `json:"payment_capture"`
	}{
		Amount:         amountMinor,
		Currency:       currency,
		PaymentCapture: 1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Warn("processor order creation failed", zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, "non-2xx response")
		c.logger.Warn("processor rejected order creation", zap.Int("status", resp.StatusCode))
		return nil, ErrUnavailable
	}

	var remote RemoteOrder
	if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failure")
		return nil, ErrUnavailable
	}
	if remote.ID == "" {
		return nil, ErrUnavailable
	}
	return &remote, nil
}

// FetchPayment retrieves payment detail by processor payment id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.FetchPayment", trace.WithAttributes(
		attribute.String("payment.id", paymentID),
	))
	defer span.End()

	if paymentID == "" {
		return nil, ErrPaymentNotFound
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		span.SetStatus(codes.Error, "non-2xx response")
		return nil, ErrUnavailable
	}

	var detail PaymentDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		span.RecordError(err)
		return nil, ErrUnavailable
	}
	return &detail, nil
}
