package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"

	"github.com/bookora/payments/pkg/config"
)

// SignatureHeader carries the hex HMAC-SHA512 digest of the raw request body.
const SignatureHeader = "X-Signature"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier authenticates inbound requests against the gateway's shared
// secret. It must be fed the exact raw bytes: re-serializing parsed JSON
// changes key order and whitespace and silently breaks the digest.
type Verifier struct {
	secret []byte
}

func NewVerifier(cfg *config.Config) *Verifier {
	return &Verifier{secret: []byte(cfg.Paystack.SecretKey)}
}

func (v *Verifier) Verify(body []byte, signature string) error {
	if signature == "" {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
