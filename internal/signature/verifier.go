// Package signature verifies recorded signatures per declared kind.
// Verification is a pure accept/reject check; a rejected signature is still
// recorded by the engine with verified=false.
package signature

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

const (
	// Image payloads must land strictly between these bounds.
	minImageBytes = 100
	maxImageBytes = 5 * 1024 * 1024

	minTypedLen = 3
)

// KeyResolver resolves a certificate reference to a known public key.
// Supported key types: ed25519.PublicKey and *ecdsa.PublicKey.
type KeyResolver interface {
	ResolveKey(ctx context.Context, certificateID string) (any, error)
}

// Verifier dispatches verification on the declared signature type.
type Verifier struct {
	keys KeyResolver
}

// NewVerifier creates a Verifier. keys may be nil, in which case all
// cryptographic signatures fail verification.
func NewVerifier(keys KeyResolver) *Verifier {
	return &Verifier{keys: keys}
}

// Verify returns whether the signature payload is acceptable for its declared
// type. An unknown type is a verification failure, never an error: signing
// must proceed with verified=false rather than abort.
func (v *Verifier) Verify(ctx context.Context, sigType domain.SignatureType, data string) bool {
	switch sigType {
	case domain.SignatureFreehand, domain.SignatureUploaded:
		return verifyImage(data)
	case domain.SignatureTyped:
		return verifyTyped(data)
	case domain.SignatureCryptographic:
		return v.verifyCryptographic(ctx, data)
	default:
		return false
	}
}

// verifyImage accepts an image data URI whose decoded payload is strictly
// between 100 bytes and 5 MiB.
func verifyImage(data string) bool {
	if !strings.HasPrefix(data, "data:image/") {
		return false
	}
	idx := strings.Index(data, ";base64,")
	if idx < 0 {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(data[idx+len(";base64,"):])
	if err != nil {
		return false
	}
	return len(raw) > minImageBytes && len(raw) < maxImageBytes
}

func verifyTyped(data string) bool {
	return len(strings.TrimSpace(data)) >= minTypedLen
}

// cryptoPayload is the JSON shape of a cryptographic signature's data field.
type cryptoPayload struct {
	Message       string `json:"message"`
	Signature     string `json:"signature"` // base64
	CertificateID string `json:"certificateId"`
}

// verifyCryptographic checks a detached asymmetric signature over the
// payload's message. The certificate reference must resolve to a known
// public key; ed25519 verifies the raw message, ECDSA verifies its SHA-256.
func (v *Verifier) verifyCryptographic(ctx context.Context, data string) bool {
	if v.keys == nil {
		return false
	}

	var p cryptoPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return false
	}
	if p.Message == "" || p.Signature == "" || p.CertificateID == "" {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil {
		return false
	}

	key, err := v.keys.ResolveKey(ctx, p.CertificateID)
	if err != nil {
		return false
	}

	switch pub := key.(type) {
	case ed25519.PublicKey:
		return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, []byte(p.Message), sig)
	case *ecdsa.PublicKey:
		digest := sha256.Sum256([]byte(p.Message))
		return ecdsa.VerifyASN1(pub, digest[:], sig)
	default:
		return false
	}
}
