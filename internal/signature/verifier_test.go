package signature

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

func imageDataURI(t *testing.T, payloadLen int) string {
	t.Helper()
	raw := make([]byte, payloadLen)
	for i := range raw {
		raw[i] = byte(i)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

func TestVerifyFreehandImage(t *testing.T) {
	v := NewVerifier(nil)
	ctx := context.Background()

	if !v.Verify(ctx, domain.SignatureFreehand, imageDataURI(t, 2048)) {
		t.Fatalf("valid freehand image rejected")
	}
	if v.Verify(ctx, domain.SignatureFreehand, imageDataURI(t, 50)) {
		t.Fatalf("undersized image accepted")
	}
	if v.Verify(ctx, domain.SignatureUploaded, imageDataURI(t, 6*1024*1024)) {
		t.Fatalf("oversized image accepted")
	}
	if v.Verify(ctx, domain.SignatureFreehand, "data:text/plain;base64,aGVsbG8=") {
		t.Fatalf("non-image data URI accepted")
	}
	if v.Verify(ctx, domain.SignatureFreehand, "data:image/png;base64,!!!not-base64!!!") {
		t.Fatalf("malformed base64 accepted")
	}
	if v.Verify(ctx, domain.SignatureFreehand, strings.TrimPrefix(imageDataURI(t, 2048), "data:")) {
		t.Fatalf("missing data URI prefix accepted")
	}
}

func TestVerifyTyped(t *testing.T) {
	v := NewVerifier(nil)
	ctx := context.Background()

	if !v.Verify(ctx, domain.SignatureTyped, "Bob Rivera") {
		t.Fatalf("valid typed signature rejected")
	}
	if v.Verify(ctx, domain.SignatureTyped, "  x  ") {
		t.Fatalf("too-short typed signature accepted")
	}
}

func TestVerifyUnknownTypeFailsClosed(t *testing.T) {
	v := NewVerifier(nil)
	if v.Verify(context.Background(), domain.SignatureType("biometric"), "anything") {
		t.Fatalf("unknown signature type must fail verification")
	}
}

func cryptoData(t *testing.T, message, certID string, sig []byte) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"message":       message,
		"signature":     base64.StdEncoding.EncodeToString(sig),
		"certificateId": certID,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return string(raw)
}

func TestVerifyCryptographicEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	keys := NewStaticKeyResolver()
	keys.Register("cert-1", pub)
	v := NewVerifier(keys)
	ctx := context.Background()

	msg := "I agree to the terms of contract 42"
	sig := ed25519.Sign(priv, []byte(msg))

	if !v.Verify(ctx, domain.SignatureCryptographic, cryptoData(t, msg, "cert-1", sig)) {
		t.Fatalf("valid ed25519 signature rejected")
	}
	if v.Verify(ctx, domain.SignatureCryptographic, cryptoData(t, "tampered message", "cert-1", sig)) {
		t.Fatalf("signature over a different message accepted")
	}
	if v.Verify(ctx, domain.SignatureCryptographic, cryptoData(t, msg, "cert-unknown", sig)) {
		t.Fatalf("unknown certificate accepted")
	}
}

func TestVerifyCryptographicECDSA(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	keys := NewStaticKeyResolver()
	keys.Register("cert-p256", &priv.PublicKey)
	v := NewVerifier(keys)

	msg := "countersigned"
	digest := sha256.Sum256([]byte(msg))
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if !v.Verify(context.Background(), domain.SignatureCryptographic, cryptoData(t, msg, "cert-p256", sig)) {
		t.Fatalf("valid ECDSA signature rejected")
	}
}

func TestVerifyCryptographicMalformed(t *testing.T) {
	keys := NewStaticKeyResolver()
	v := NewVerifier(keys)
	ctx := context.Background()

	if v.Verify(ctx, domain.SignatureCryptographic, "not json") {
		t.Fatalf("non-JSON payload accepted")
	}
	if v.Verify(ctx, domain.SignatureCryptographic, `{"message":"","signature":"","certificateId":""}`) {
		t.Fatalf("empty payload fields accepted")
	}
	if NewVerifier(nil).Verify(ctx, domain.SignatureCryptographic, `{"message":"m","signature":"YQ==","certificateId":"c"}`) {
		t.Fatalf("cryptographic verification without a resolver must fail")
	}
}
