package payment

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/entity"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	service "github.com/brightpath/storefront/internal/service/payment"
	"github.com/brightpath/storefront/internal/signature"
)

const webhookSecret = "hook-secret"

type stubOrderStore struct {
	order       *entity.Order
	completions int
}

func (s *stubOrderStore) GetByID(context.Context, int64) (*entity.Order, error) {
	if s.order == nil {
		return nil, orderrepo.ErrNotFound
	}
	cp := *s.order
	return &cp, nil
}

func (s *stubOrderStore) GetByProcessorOrderID(_ context.Context, id string) (*entity.Order, error) {
	if s.order == nil || s.order.ProcessorOrderID != id {
		return nil, orderrepo.ErrNotFound
	}
	cp := *s.order
	return &cp, nil
}

func (s *stubOrderStore) MarkCompleted(_ context.Context, _ int64, paymentID, sig string) (bool, error) {
	if s.order.Status == entity.OrderCompleted {
		return false, nil
	}
	s.order.Status = entity.OrderCompleted
	s.order.ProcessorPaymentID = paymentID
	s.completions++
	return true, nil
}

func (s *stubOrderStore) MarkFailed(context.Context, int64) (bool, error) {
	if s.order.Status != entity.OrderPending {
		return false, nil
	}
	s.order.Status = entity.OrderFailed
	return true, nil
}

func webhookRequest(t *testing.T, store *stubOrderStore, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	cfg := config.Config{}
	cfg.Payment.KeySecret = "key-secret"
	cfg.Payment.WebhookSecret = webhookSecret
	svc := service.NewService(service.Params{Orders: store, Config: cfg, Logger: zap.NewNop()})
	h := NewHandler(svc)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(WebhookSignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.webhook(e.NewContext(req, rec)))
	return rec
}

func TestWebhookEndpointVerifiesRawBody(t *testing.T) {
	store := &stubOrderStore{order: &entity.Order{
		ID: 1, UserID: 10, Status: entity.OrderPending, ProcessorOrderID: "order_abc",
	}}
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_abc"}}}}`)
	rec := webhookRequest(t, store, body, signature.WebhookSignature(body, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.OrderCompleted, store.order.Status)
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	store := &stubOrderStore{order: &entity.Order{
		ID: 1, UserID: 10, Status: entity.OrderPending, ProcessorOrderID: "order_abc",
	}}
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_abc"}}}}`)
	rec := webhookRequest(t, store, body, "ffff")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, entity.OrderPending, store.order.Status)
	assert.Zero(t, store.completions)
}

func TestWebhookEndpointUnknownOrderReturnsOK(t *testing.T) {
	store := &stubOrderStore{order: &entity.Order{
		ID: 1, UserID: 10, Status: entity.OrderPending, ProcessorOrderID: "order_abc",
	}}
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_unknown"}}}}`)
	rec := webhookRequest(t, store, body, signature.WebhookSignature(body, webhookSecret))

	// A retried webhook for an order we do not know must not provoke
	// processor retries.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, entity.OrderPending, store.order.Status)
}
