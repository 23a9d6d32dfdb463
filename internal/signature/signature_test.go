package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "shhh-test-secret"

func TestVerifyPayment(t *testing.T) {
	sig := PaymentSignature("pay_123", "order_abc", testSecret)

	assert.True(t, VerifyPayment("pay_123", "order_abc", sig, testSecret))

	// Any field changing invalidates the proof.
	assert.False(t, VerifyPayment("pay_999", "order_abc", sig, testSecret))
	assert.False(t, VerifyPayment("pay_123", "order_xyz", sig, testSecret))
	assert.False(t, VerifyPayment("pay_123", "order_abc", sig, "wrong-secret"))
	assert.False(t, VerifyPayment("pay_123", "order_abc", sig+"00", testSecret))
}

func TestVerifyPaymentMalformedInput(t *testing.T) {
	sig := PaymentSignature("pay_123", "order_abc", testSecret)

	assert.False(t, VerifyPayment("", "order_abc", sig, testSecret))
	assert.False(t, VerifyPayment("pay_123", "", sig, testSecret))
	assert.False(t, VerifyPayment("pay_123", "order_abc", "", testSecret))
	assert.False(t, VerifyPayment("pay_123", "order_abc", sig, ""))
	assert.False(t, VerifyPayment("pay_123", "order_abc", "not hex at all", testSecret))
}

func TestVerifyPaymentPairOrderMatters(t *testing.T) {
	// The message is "<order>|<payment>"; swapping the pair must not verify.
	sig := PaymentSignature("pay_123", "order_abc", testSecret)
	assert.False(t, VerifyPayment("order_abc", "pay_123", sig, testSecret))
}

func TestVerifyWebhook(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`)
	sig := WebhookSignature(body, testSecret)

	assert.True(t, VerifyWebhook(body, sig, testSecret))
	assert.False(t, VerifyWebhook(body, sig, "other-secret"))
	assert.False(t, VerifyWebhook(append([]byte(nil), body[1:]...), sig, testSecret))
	assert.False(t, VerifyWebhook(body, "", testSecret))
	assert.False(t, VerifyWebhook(body, sig, ""))
}

func TestVerifyWebhookExactBytes(t *testing.T) {
	// Semantically identical JSON with different whitespace is a different
	// message: verification is over raw bytes, not parsed content.
	compact := []byte(`{"event":"payment.captured"}`)
	spaced := []byte(`{ "event": "payment.captured" }`)
	sig := WebhookSignature(compact, testSecret)

	assert.True(t, VerifyWebhook(compact, sig, testSecret))
	assert.False(t, VerifyWebhook(spaced, sig, testSecret))
}
