package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fastParams = Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashAndVerifyPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret", fastParams)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding %q", hash)
	}
	if err := VerifyPassword(hash, "s3cret"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	t.Parallel()

	first, err := HashPassword("same", fastParams)
	if err != nil {
		t.Fatal(err)
	}
	second, err := HashPassword("same", fastParams)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("expected distinct hashes for the same password")
	}
}

func TestVerifyPasswordRejectsMalformedHashes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		encoded string
		want    error
	}{
		{encoded: "plain", want: ErrInvalidPasswordHash},
		{encoded: "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA", want: ErrInvalidPasswordHash},
		{encoded: "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA", want: ErrIncompatiblePasswordVersion},
		{encoded: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA", want: ErrInvalidPasswordHash},
		{encoded: "$argon2id$v=19$m=1,t=1,p=1$!!!$aGFzaA", want: ErrInvalidPasswordHash},
	}
	for _, tc := range cases {
		if err := VerifyPassword(tc.encoded, "pw"); !errors.Is(err, tc.want) {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tc.encoded, err, tc.want)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)
	svc, err := NewTokenService("secret", time.Hour, func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}

	token, expires, err := svc.Issue("alice", true)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expires.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires = %v", expires)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.MemberID != "alice" || !claims.IsAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenValidationFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC)
	clock := now
	svc, err := NewTokenService("secret", time.Hour, func() time.Time { return clock })
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.Issue("alice", false)
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewTokenService("other", time.Hour, func() time.Time { return now })
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign key, got %v", err)
	}
	if _, err := svc.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}

	clock = now.Add(2 * time.Hour)
	if _, err := svc.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken once expired, got %v", err)
	}
}

func TestNewTokenServiceRequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewTokenService("", 0, nil); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}
