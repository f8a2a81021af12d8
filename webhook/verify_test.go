package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyHMACSHA256(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"type":"payment.succeeded"}`)
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, Verify(SchemeHMACSHA256, body, sig, secret))
}

func TestVerifyHMACSHA256RejectsTamperedBody(t *testing.T) {
	secret := []byte("whsec_test")
	body := []byte(`{"type":"payment.succeeded"}`)
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	tampered := []byte(`{"type":"payment.failed"}`)
	assert.Error(t, Verify(SchemeHMACSHA256, tampered, sig, secret))
}

func TestVerifyPlaintext(t *testing.T) {
	assert.NoError(t, Verify(SchemePlaintext, nil, "shared-secret", []byte("shared-secret")))
	assert.Error(t, Verify(SchemePlaintext, nil, "wrong", []byte("shared-secret")))
}

func TestVerifyUnsupportedScheme(t *testing.T) {
	assert.Error(t, Verify("unknown", nil, "", nil))
}
