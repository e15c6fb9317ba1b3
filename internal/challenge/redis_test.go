package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:challenge"), srv
}

func TestRedisStoreSaveConsume(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	data := &webauthn.SessionData{Challenge: "abc", UserID: []byte("u1"), AllowedCredentialIDs: [][]byte{[]byte("c1")}}

	if err := store.Save(ctx, "abc", data, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Consume(ctx, "abc")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got.Challenge != "abc" || string(got.UserID) != "u1" || len(got.AllowedCredentialIDs) != 1 {
		t.Fatalf("unexpected session data: %+v", got)
	}

	if _, err := store.Consume(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on replay, got %v", err)
	}
}

func TestRedisStoreRejectsDuplicatePendingChallenge(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "abc", &webauthn.SessionData{Challenge: "abc"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Save(ctx, "abc", &webauthn.SessionData{Challenge: "abc"}, time.Minute); err == nil {
		t.Fatal("expected duplicate pending challenge to be rejected")
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, srv := newRedisStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, "abc", &webauthn.SessionData{Challenge: "abc"}, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	srv.FastForward(2 * time.Minute)

	if _, err := store.Consume(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
