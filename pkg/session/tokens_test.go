package session

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("unexpected user id: %q", claims.UserID)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := Parse(token+"x", "secret"); err == nil {
		t.Fatalf("expected error for tampered token")
	}
	if _, err := Parse(token, "other-secret"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestTokenExpiry(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", time.Nanosecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := Parse(token, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestTokenWithoutTTLNeverExpires(t *testing.T) {
	token, err := GenerateToken("user-1", "secret", 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := Parse(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ExpiresAt != nil {
		t.Fatalf("expected no expiry claim")
	}
}
