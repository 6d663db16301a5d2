package utils

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func TestNewTicketHash(t *testing.T) {
	a, err := NewTicketHash()
	if err != nil {
		t.Fatalf("ticket hash: %v", err)
	}
	if len(a) != 2*TicketHashBytes {
		t.Fatalf("len = %d, want %d", len(a), 2*TicketHashBytes)
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Fatalf("not hex: %q", a)
	}
	b, _ := NewTicketHash()
	if a == b {
		t.Fatal("two ticket hashes collided")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "admin", RoleAdmin, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseAccessToken("s3cret", tok.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := ParseAccessToken("other", tok.Token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("s3cret", "admin", RoleAdmin, time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken("s3cret", tok.Token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "hunter2") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "hunter3") {
		t.Fatal("wrong password verified")
	}
}

func TestAdminPasswordHash(t *testing.T) {
	stored, err := HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	got, err := AdminPasswordHash(stored, "ignored", 4)
	if err != nil || got != stored {
		t.Fatalf("stored hash: got %q, %v", got, err)
	}

	got, err = AdminPasswordHash("", "s3cret", 4)
	if err != nil {
		t.Fatalf("plain: %v", err)
	}
	if !VerifyPassword(got, "s3cret") {
		t.Fatal("hash of plain password does not verify")
	}

	if _, err := AdminPasswordHash("not-a-bcrypt-hash", "", 4); err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if _, err := AdminPasswordHash("", "", 4); !errors.Is(err, ErrNoAdminPassword) {
		t.Fatalf("err = %v, want ErrNoAdminPassword", err)
	}

	// Out-of-range cost falls back to the default rather than failing.
	if _, err := HashPassword("x", 99); err != nil {
		t.Fatalf("cost 99: %v", err)
	}
}
