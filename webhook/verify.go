// Package webhook implements the inbound webhook ingestion pipeline: parse
// connector id, verify signature, extract the connector's object reference,
// resolve it to an internal intent/payout, classify the event, trigger an
// in-engine Sync, and emit an outbound webhook at-least-once. Signature
// verification generalizes the teacher's Iyzico HMAC-SHA1 auth-string
// construction (provider/iyzico/iyzico.go's generateAuthString) into the
// broader set of schemes the connector pack as a whole requires.
package webhook

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"hash"

	"github.com/mstgnz/payflow/apperr"
)

// SignatureScheme is the closed set of verification algorithms a
// connector's IncomingWebhook implementation may declare.
type SignatureScheme string

const (
	SchemeHMACSHA256 SignatureScheme = "hmac_sha256"
	SchemeHMACSHA512 SignatureScheme = "hmac_sha512"
	SchemeRSASHA256  SignatureScheme = "rsa_sha256"
	SchemePlaintext  SignatureScheme = "plaintext"
)

// Verify checks body against signatureHeader using scheme and secret,
// returning a KindWebhookVerification apperr on any mismatch so the
// pipeline can short-circuit and never runs Sync on an unverified payload.
func Verify(scheme SignatureScheme, body []byte, signatureHeader string, secret []byte) error {
	switch scheme {
	case SchemeHMACSHA256:
		return verifyHMAC(sha256.New, body, signatureHeader, secret)
	case SchemeHMACSHA512:
		return verifyHMAC(sha512.New, body, signatureHeader, secret)
	case SchemeRSASHA256:
		return verifyRSA(body, signatureHeader, secret)
	case SchemePlaintext:
		return verifyPlaintext(signatureHeader, secret)
	default:
		return apperr.New(apperr.KindWebhookVerification, fmt.Sprintf("webhook: unsupported signature scheme %q", scheme))
	}
}

func verifyHMAC(newHash func() hash.Hash, body []byte, signatureHeader string, secret []byte) error {
	mac := hmac.New(newHash, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := decodeSignature(signatureHeader)
	if err != nil {
		return apperr.Wrap(apperr.KindWebhookVerification, err, "webhook: malformed signature header")
	}
	if !hmac.Equal(expected, got) {
		return apperr.New(apperr.KindWebhookVerification, "webhook: hmac signature mismatch")
	}
	return nil
}

func verifyRSA(body []byte, signatureHeader string, publicKeyPEM []byte) error {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return apperr.New(apperr.KindWebhookVerification, "webhook: invalid rsa public key pem")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return apperr.Wrap(apperr.KindWebhookVerification, err, "webhook: parse rsa public key")
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return apperr.New(apperr.KindWebhookVerification, "webhook: key is not rsa")
	}
	sig, err := decodeSignature(signatureHeader)
	if err != nil {
		return apperr.Wrap(apperr.KindWebhookVerification, err, "webhook: malformed signature header")
	}
	digest := sha256.Sum256(body)
	if err := rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], sig); err != nil {
		return apperr.Wrap(apperr.KindWebhookVerification, err, "webhook: rsa signature verification failed")
	}
	return nil
}

func verifyPlaintext(signatureHeader string, secret []byte) error {
	if subtle.ConstantTimeCompare([]byte(signatureHeader), secret) != 1 {
		return apperr.New(apperr.KindWebhookVerification, "webhook: plaintext secret mismatch")
	}
	return nil
}

// decodeSignature accepts either hex or base64 encoded signature headers,
// since connectors in the pack use both conventions.
func decodeSignature(header string) ([]byte, error) {
	if b, err := hex.DecodeString(header); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(header)
}
