package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	session, err := tokens.Issue(User{ID: 42, Username: "wren"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if session.ExpiresIn != 3600 || session.TokenType != "bearer" {
		t.Fatalf("unexpected session: %+v", session)
	}
	user, err := tokens.Verify(session.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.ID != 42 || user.Username != "wren" {
		t.Fatalf("user = %+v", user)
	}
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	tokens := NewTokens("test-secret", time.Minute)
	session, err := tokens.Issue(User{ID: 7, Username: "bram"})
	if err != nil {
		t.Fatal(err)
	}

	tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := tokens.Verify(session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	other := NewTokens("other-secret", time.Hour)
	if _, err := other.Verify(session.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to fail, got %v", err)
	}
	if _, err := other.Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected garbage to fail, got %v", err)
	}
}

func TestPasswords(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckPassword(hash, "wrong horse"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
