package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hmac256 is a function to generate HMAC256 hash.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// verifyHmac recomputes the capture proof over "orderID|paymentID" and
// compares it against the received signature in constant time.
func verifyHmac(key, orderID, paymentID, receivedHMAC string) bool {
	expectedHMAC := Hmac256([]byte(orderID+"|"+paymentID), []byte(key))
	return hmac.Equal([]byte(receivedHMAC), []byte(expectedHMAC))
}
