package security

import (
	"strings"
	"testing"
)

func TestHashPasswordProducesSaltedDigests(t *testing.T) {
	first, err := HashPassword("Password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := HashPassword("Password123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two digests of the same password must differ (random salt)")
	}
	if strings.Contains(first, "Password123") {
		t.Fatal("digest must not contain the plaintext")
	}
	if !strings.HasPrefix(first, "$argon2id$v=19$") {
		t.Fatalf("unexpected digest format: %s", first)
	}

	for _, digest := range []string{first, second} {
		ok, err := VerifyPassword(digest, "Password123")
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !ok {
			t.Fatal("digest must verify against its plaintext")
		}
	}
}

func TestVerifyPasswordRejectsWrongPassword(t *testing.T) {
	digest, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := VerifyPassword(digest, "battery staple")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password must not verify")
	}
}

func TestVerifyPasswordRejectsMalformedDigests(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$bogus$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$!!$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$!!",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword(encoded, "whatever"); err == nil {
			t.Fatalf("expected error for malformed digest %q", encoded)
		}
	}
}
