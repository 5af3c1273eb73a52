package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureHeader carries the HMAC of a published revision event.
const SignatureHeader = "x-signature"

// SignEvent signs the routing key and body of a revision event together, so a
// body replayed under another routing key (another change kind) fails
// verification.
func SignEvent(routingKey string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(routingKey))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyEventSignature is the consumer side of SignEvent. It reads the
// signature from the delivery headers; a missing or non-string header fails.
func VerifyEventSignature(routingKey string, body []byte, headers map[string]interface{}, secret string) bool {
	signature, ok := headers[SignatureHeader].(string)
	if !ok || signature == "" {
		return false
	}
	return hmac.Equal([]byte(SignEvent(routingKey, body, secret)), []byte(signature))
}
