package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brightpath/storefront/internal/auth"
	"github.com/brightpath/storefront/internal/config"
	"github.com/brightpath/storefront/internal/entity"
	"github.com/brightpath/storefront/internal/gateway"
	orderrepo "github.com/brightpath/storefront/internal/repository/order"
	"github.com/brightpath/storefront/internal/signature"
	"github.com/brightpath/storefront/pkg/errorbank"
)

const (
	testKeySecret     = "key-secret"
	testWebhookSecret = "webhook-secret"
)

// fakeOrderStore reproduces the repository's conditional-transition
// semantics in memory, including the guards that make transitions safe
// under concurrency.
type fakeOrderStore struct {
	mu          sync.Mutex
	orders      map[int64]*entity.Order
	completions int
	failures    int
}

func newFakeOrderStore(orders ...*entity.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[int64]*entity.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeOrderStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetByProcessorOrderID(_ context.Context, processorOrderID string) (*entity.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ProcessorOrderID == processorOrderID && processorOrderID != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, orderrepo.ErrNotFound
}

func (s *fakeOrderStore) MarkCompleted(_ context.Context, id int64, paymentID, sig string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status == entity.OrderCompleted {
		return false, nil
	}
	o.Status = entity.OrderCompleted
	o.ProcessorPaymentID = paymentID
	o.TransactionID = paymentID
	if sig != "" {
		o.ProcessorSignature = sig
	}
	s.completions++
	return true, nil
}

func (s *fakeOrderStore) MarkFailed(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != entity.OrderPending {
		return false, nil
	}
	o.Status = entity.OrderFailed
	s.failures++
	return true, nil
}

func (s *fakeOrderStore) status(id int64) entity.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

func newTestService(store OrderStore, webhookSecret string) *Service {
	cfg := config.Config{}
	cfg.Payment.KeySecret = testKeySecret
	cfg.Payment.WebhookSecret = webhookSecret
	cfg.Messaging.Enabled = false
	return NewService(Params{
		Orders: store,
		Config: cfg,
		Logger: zap.NewNop(),
	})
}

func pendingOrder() *entity.Order {
	return &entity.Order{
		ID:               1,
		UserID:           10,
		ProductID:        201,
		AmountMinor:      19900,
		Currency:         "INR",
		Status:           entity.OrderPending,
		ProcessorOrderID: "order_abc",
	}
}

func buyer() auth.Principal { return auth.Principal{UserID: 10, Role: entity.RoleBuyer} }

func validCallback() CallbackInput {
	return CallbackInput{
		OrderID:          1,
		PaymentID:        "pay_1",
		ProcessorOrderID: "order_abc",
		Signature:        signature.PaymentSignature("pay_1", "order_abc", testKeySecret),
	}
}

func capturedWebhookBody(processorOrderID, paymentID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": "payment.captured",
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{"id": paymentID, "order_id": processorOrderID},
			},
		},
	})
	return body
}

func failedWebhookBody(processorOrderID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": "payment.failed",
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{"id": "pay_x", "order_id": processorOrderID},
			},
		},
	})
	return body
}

func TestConfirmCallbackCompletesOrder(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	order, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, order.Status)
	assert.Equal(t, "pay_1", order.ProcessorPaymentID)
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestConfirmCallbackIsIdempotent(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	for i := 0; i < 3; i++ {
		_, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.completions, "only the first callback may transition")
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestConfirmCallbackConcurrentDuplicates(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.completions, "exactly one transition under concurrency")
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestConfirmCallbackRejectsForeignCaller(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	_, err := svc.ConfirmCallback(context.Background(), auth.Principal{UserID: 99}, validCallback())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
	assert.Equal(t, entity.OrderPending, store.status(1))
}

func TestConfirmCallbackRejectsCrossOrderReplay(t *testing.T) {
	// A valid signature minted for another processor order must not verify
	// against this order, even though the HMAC itself checks out.
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	in := CallbackInput{
		OrderID:          1,
		PaymentID:        "pay_other",
		ProcessorOrderID: "order_other",
		Signature:        signature.PaymentSignature("pay_other", "order_other", testKeySecret),
	}
	_, err := svc.ConfirmCallback(context.Background(), buyer(), in)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	assert.Equal(t, entity.OrderPending, store.status(1))
	assert.Zero(t, store.completions)
}

func TestConfirmCallbackMismatchWhenProcessorIDUnset(t *testing.T) {
	o := pendingOrder()
	o.ProcessorOrderID = ""
	store := newFakeOrderStore(o)
	svc := newTestService(store, testWebhookSecret)

	_, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestConfirmCallbackBadSignatureMarksFailed(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	in := validCallback()
	in.Signature = "deadbeef"
	_, err := svc.ConfirmCallback(context.Background(), buyer(), in)
	require.Error(t, err)
	assert.Equal(t, entity.OrderFailed, store.status(1))
}

func TestConfirmCallbackBadSignatureNeverRegressesCompleted(t *testing.T) {
	o := pendingOrder()
	o.Status = entity.OrderCompleted
	store := newFakeOrderStore(o)
	svc := newTestService(store, testWebhookSecret)

	in := validCallback()
	in.Signature = "deadbeef"
	_, err := svc.ConfirmCallback(context.Background(), buyer(), in)
	require.Error(t, err)
	assert.Equal(t, entity.OrderCompleted, store.status(1))
	assert.Zero(t, store.failures)
}

func TestFailedOrderCanStillComplete(t *testing.T) {
	o := pendingOrder()
	o.Status = entity.OrderFailed
	store := newFakeOrderStore(o)
	svc := newTestService(store, testWebhookSecret)

	_, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
	require.NoError(t, err)
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestWebhookCapturedCompletesOrder(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := capturedWebhookBody("order_abc", "pay_1")
	sig := signature.WebhookSignature(body, testWebhookSecret)

	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestWebhookInvalidSignatureMutatesNothing(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := capturedWebhookBody("order_abc", "pay_1")
	err := svc.HandleWebhook(context.Background(), body, "bogus")
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
	assert.Equal(t, entity.OrderPending, store.status(1))
	assert.Zero(t, store.completions)
	assert.Zero(t, store.failures)
}

func TestWebhookDegradedModeWithoutSecret(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, "")

	body := capturedWebhookBody("order_abc", "pay_1")
	require.NoError(t, svc.HandleWebhook(context.Background(), body, ""))
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestWebhookUnknownOrderIsNoOp(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := capturedWebhookBody("order_unrelated", "pay_9")
	sig := signature.WebhookSignature(body, testWebhookSecret)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, entity.OrderPending, store.status(1))
}

func TestWebhookUnknownEventIsNoOp(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := []byte(`{"event":"refund.created","payload":{}}`)
	sig := signature.WebhookSignature(body, testWebhookSecret)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Zero(t, store.completions)
	assert.Zero(t, store.failures)
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := []byte(`{"event":`)
	sig := signature.WebhookSignature(body, testWebhookSecret)
	err := svc.HandleWebhook(context.Background(), body, sig)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(err).Kind())
}

func TestWebhookFailedDoesNotRegressCompleted(t *testing.T) {
	o := pendingOrder()
	o.Status = entity.OrderCompleted
	store := newFakeOrderStore(o)
	svc := newTestService(store, testWebhookSecret)

	body := failedWebhookBody("order_abc")
	sig := signature.WebhookSignature(body, testWebhookSecret)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestWebhookFailedMarksPendingOrder(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := failedWebhookBody("order_abc")
	sig := signature.WebhookSignature(body, testWebhookSecret)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	assert.Equal(t, entity.OrderFailed, store.status(1))
}

func TestWebhookBeforeCallbackConverges(t *testing.T) {
	// End-to-end ordering scenario: webhook lands first, the later client
	// callback with a valid signature is a no-op and nothing ever reverts.
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	body := capturedWebhookBody("order_abc", "pay_1")
	sig := signature.WebhookSignature(body, testWebhookSecret)
	require.NoError(t, svc.HandleWebhook(context.Background(), body, sig))
	require.Equal(t, entity.OrderCompleted, store.status(1))

	_, err := svc.ConfirmCallback(context.Background(), buyer(), validCallback())
	require.NoError(t, err)
	assert.Equal(t, 1, store.completions)
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestReportFailure(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	require.NoError(t, svc.ReportFailure(context.Background(), buyer(), 1))
	assert.Equal(t, entity.OrderFailed, store.status(1))

	// Repeating the report is a no-op, not an error.
	require.NoError(t, svc.ReportFailure(context.Background(), buyer(), 1))
	assert.Equal(t, 1, store.failures)
}

func TestReportFailureNeverRegressesCompleted(t *testing.T) {
	o := pendingOrder()
	o.Status = entity.OrderCompleted
	store := newFakeOrderStore(o)
	svc := newTestService(store, testWebhookSecret)

	require.NoError(t, svc.ReportFailure(context.Background(), buyer(), 1))
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestStatusIsReadOnly(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	svc := newTestService(store, testWebhookSecret)

	status, err := svc.Status(context.Background(), buyer(), 1)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPending, status)
	assert.Equal(t, entity.OrderPending, store.status(1), "status poll must not transition")

	_, err = svc.Status(context.Background(), auth.Principal{UserID: 99}, 1)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
}

func TestStatusUnknownOrder(t *testing.T) {
	svc := newTestService(newFakeOrderStore(), testWebhookSecret)
	_, err := svc.Status(context.Background(), buyer(), 42)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
}

func TestTransitionMatrix(t *testing.T) {
	// Allowed: pending->completed, pending->failed, failed->completed.
	// Forbidden: completed->anything.
	cases := []struct {
		from       entity.OrderStatus
		apply      string
		want       entity.OrderStatus
		transition bool
	}{
		{entity.OrderPending, "complete", entity.OrderCompleted, true},
		{entity.OrderPending, "fail", entity.OrderFailed, true},
		{entity.OrderFailed, "complete", entity.OrderCompleted, true},
		{entity.OrderFailed, "fail", entity.OrderFailed, false},
		{entity.OrderCompleted, "complete", entity.OrderCompleted, false},
		{entity.OrderCompleted, "fail", entity.OrderCompleted, false},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_%s", tc.from, tc.apply), func(t *testing.T) {
			o := pendingOrder()
			o.Status = tc.from
			store := newFakeOrderStore(o)

			var transitioned bool
			var err error
			if tc.apply == "complete" {
				transitioned, err = store.MarkCompleted(context.Background(), 1, "pay_1", "")
			} else {
				transitioned, err = store.MarkFailed(context.Background(), 1)
			}
			require.NoError(t, err)
			assert.Equal(t, tc.transition, transitioned)
			assert.Equal(t, tc.want, store.status(1))
		})
	}
}

type fakeAuditor struct {
	detail *gateway.PaymentDetail
	err    error
	calls  int
}

func (f *fakeAuditor) FetchPayment(context.Context, string) (*gateway.PaymentDetail, error) {
	f.calls++
	return f.detail, f.err
}

func admin() auth.Principal { return auth.Principal{UserID: 1, Role: entity.RoleAdmin} }

func TestAuditReturnsProcessorDetail(t *testing.T) {
	order := pendingOrder()
	order.Status = entity.OrderCompleted
	order.ProcessorPaymentID = "pay_1"
	store := newFakeOrderStore(order)
	auditor := &fakeAuditor{detail: &gateway.PaymentDetail{ID: "pay_1", OrderID: "order_abc", Status: "captured", AmountMinor: 19900, Currency: "INR"}}

	svc := newTestService(store, testWebhookSecret)
	svc.processor = auditor

	result, err := svc.Audit(context.Background(), admin(), 1)
	require.NoError(t, err)
	require.NotNil(t, result.Payment)
	assert.Equal(t, "captured", result.Payment.Status)
	assert.Equal(t, int64(19900), result.Payment.AmountMinor)
	assert.Equal(t, entity.OrderCompleted, store.status(1))
}

func TestAuditRequiresAdmin(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	auditor := &fakeAuditor{}
	svc := newTestService(store, testWebhookSecret)
	svc.processor = auditor

	_, err := svc.Audit(context.Background(), buyer(), 1)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindForbidden, errorbank.From(err).Kind())
	assert.Zero(t, auditor.calls)
}

func TestAuditWithoutRecordedPaymentSkipsProcessor(t *testing.T) {
	store := newFakeOrderStore(pendingOrder())
	auditor := &fakeAuditor{}
	svc := newTestService(store, testWebhookSecret)
	svc.processor = auditor

	result, err := svc.Audit(context.Background(), admin(), 1)
	require.NoError(t, err)
	assert.Nil(t, result.Payment)
	assert.Zero(t, auditor.calls)
}

func TestAuditProcessorUnavailable(t *testing.T) {
	order := pendingOrder()
	order.Status = entity.OrderCompleted
	order.ProcessorPaymentID = "pay_1"
	store := newFakeOrderStore(order)
	svc := newTestService(store, testWebhookSecret)
	svc.processor = &fakeAuditor{err: gateway.ErrUnavailable}

	_, err := svc.Audit(context.Background(), admin(), 1)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindUnprocessableEntity, errorbank.From(err).Kind())
}
