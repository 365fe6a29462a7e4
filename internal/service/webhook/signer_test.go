package webhook

import (
	"strings"
	"testing"
)

func TestSign_Format(t *testing.T) {
	sig := Sign("secret", []byte(`{"event":"comment.created"}`))
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("signature %q missing sha256= prefix", sig)
	}
	if len(sig) != len("sha256=")+64 {
		t.Errorf("signature %q is not a 64-char hex digest", sig)
	}
}

func TestSign_KnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog"),
	// per RFC 2104 test coverage in common implementations.
	got := Sign("key", []byte("The quick brown fox jumps over the lazy dog"))
	want := "sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"
	if got != want {
		t.Errorf("Sign() = %q, want %q", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"comment.spam","data":{}}`)
	sig := Sign("s3cret", body)

	if !VerifySignature("s3cret", body, sig) {
		t.Error("valid signature rejected")
	}
	if VerifySignature("wrong", body, sig) {
		t.Error("signature accepted under wrong secret")
	}
	if VerifySignature("s3cret", []byte("tampered"), sig) {
		t.Error("signature accepted for tampered body")
	}
	if VerifySignature("s3cret", body, "sha256=deadbeef") {
		t.Error("garbage signature accepted")
	}
}

func TestSign_DiffersPerSecret(t *testing.T) {
	body := []byte(`{}`)
	if Sign("a", body) == Sign("b", body) {
		t.Error("signatures collide across secrets")
	}
}
