package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyHmac(t *testing.T) {
	key := "test-key-secret"
	valid := Hmac256([]byte("order-9|pay-1"), []byte(key))

	assert.True(t, verifyHmac(key, "order-9", "pay-1", valid))

	assert.False(t, verifyHmac(key, "order-9", "pay-1", ""))
	assert.False(t, verifyHmac(key, "order-9", "pay-1", valid+"00"))
	assert.False(t, verifyHmac(key, "order-9", "pay-2", valid))
	assert.False(t, verifyHmac(key, "order-8", "pay-1", valid))
	assert.False(t, verifyHmac("other-key", "order-9", "pay-1", valid))
}

func TestHmac256Deterministic(t *testing.T) {
	a := Hmac256([]byte("payload"), []byte("key"))
	b := Hmac256([]byte("payload"), []byte("key"))
	c := Hmac256([]byte("payload"), []byte("other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGatewayVerifySignature(t *testing.T) {
	g, err := New(context.Background(), &Config{KeySecret: "test-key-secret"})
	assert.NoError(t, err)

	valid := Hmac256([]byte("order-9|pay-1"), []byte("test-key-secret"))
	assert.True(t, g.VerifySignature("order-9", "pay-1", valid))
	assert.False(t, g.VerifySignature("order-9", "pay-1", "forged"))
}
