package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

func TestMemoryStoreSaveConsume(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	data := &webauthn.SessionData{Challenge: "abc", UserID: []byte("u1")}

	if err := store.Save(ctx, "abc", data, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Consume(ctx, "abc")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Challenge != "abc" || string(got.UserID) != "u1" {
		t.Fatalf("unexpected session data: %+v", got)
	}

	// Single use: the second consume must miss.
	if _, err := store.Consume(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestMemoryStoreUnknownChallenge(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Consume(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Save(ctx, "abc", &webauthn.SessionData{Challenge: "abc"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Consume(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStoreRejectsEmptyInputs(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Save(context.Background(), "", &webauthn.SessionData{}, time.Minute); err == nil {
		t.Fatal("expected error for empty challenge")
	}
	if err := store.Save(context.Background(), "abc", nil, time.Minute); err == nil {
		t.Fatal("expected error for nil session data")
	}
}
