// Package signature verifies processor-issued cryptographic proofs.
// Both checks are pure functions over their inputs; malformed input is a
// verification failure, never a panic.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature computes the hex HMAC-SHA256 the processor issues for a
// captured payment: the key is the shared secret, the message is
// "<processorOrderID>|<paymentID>".
func PaymentSignature(paymentID, processorOrderID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(processorOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayment reports whether signature is a valid proof for the
// (paymentID, processorOrderID) pair under secret. Comparison is constant
// time.
func VerifyPayment(paymentID, processorOrderID, signature, secret string) bool {
	if paymentID == "" || processorOrderID == "" || signature == "" || secret == "" {
		return false
	}
	expected := PaymentSignature(paymentID, processorOrderID, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookSignature computes the hex HMAC-SHA256 over the exact raw webhook
// body bytes. Callers must pass the bytes as received; re-serialized JSON is
// not byte-stable and will not verify.
func WebhookSignature(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook reports whether signature matches the HMAC of rawBody under
// secret, in constant time.
func VerifyWebhook(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := WebhookSignature(rawBody, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
