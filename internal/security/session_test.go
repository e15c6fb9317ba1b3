package security

import (
	"testing"
	"time"

	"github.com/credlock/credlock/internal/domain"
)

func TestSessionManagerIssueAndOpen(t *testing.T) {
	mgr := NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour)
	user := &domain.User{ID: 42, Email: "alice@example.com", Name: "Alice"}

	token, expires, err := mgr.Issue(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}
	if until := time.Until(expires); until < 59*time.Minute || until > time.Hour {
		t.Fatalf("unexpected expiry horizon: %v", until)
	}

	sess, err := mgr.Open(token)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.ID != 42 || sess.Email != "alice@example.com" || sess.Name != "Alice" {
		t.Fatalf("unexpected session user: %+v", sess)
	}
}

func TestSessionManagerRejectsTamperedToken(t *testing.T) {
	mgr := NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour)
	token, _, err := mgr.Issue(&domain.User{ID: 1, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := mgr.Open(token + "x"); err == nil {
		t.Fatal("expected tampered token to be rejected")
	}

	other := NewSessionManager("ffffffffffffffffffffffffffffffff", time.Hour)
	if _, err := other.Open(token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestSessionManagerRejectsExpiredToken(t *testing.T) {
	mgr := NewSessionManager("0123456789abcdef0123456789abcdef", -time.Minute)
	token, _, err := mgr.Issue(&domain.User{ID: 1, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Open(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}
