package store

import (
	"errors"
	"testing"
	"time"
)

func setupVerificationTestDB(t *testing.T) *VerificationTokenStore {
	t.Helper()
	return NewVerificationTokenStore(openTestDB(t))
}

func TestVerificationTokenCreateAndList(t *testing.T) {
	vs := setupVerificationTestDB(t)
	exp := time.Now().UTC().Add(10 * time.Minute)

	a, err := vs.Create("alice@example.com", "hash-a", exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Identifier != "alice@example.com" {
		t.Errorf("identifier = %q, want %q", a.Identifier, "alice@example.com")
	}
	if d := a.ExpiresAt.Sub(exp); d > time.Second || d < -time.Second {
		t.Errorf("expires_at = %v, want %v", a.ExpiresAt, exp)
	}
	vs.Create("alice@example.com", "hash-b", exp)
	vs.Create("reset:alice@example.com", "hash-c", exp)

	list, err := vs.ListByIdentifier("alice@example.com")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].TokenHash != "hash-b" {
		t.Errorf("first = %q, want newest hash-b", list[0].TokenHash)
	}
}

func TestVerificationTokenDuplicateRejected(t *testing.T) {
	vs := setupVerificationTestDB(t)
	exp := time.Now().UTC().Add(time.Minute)

	if _, err := vs.Create("alice@example.com", "same", exp); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := vs.Create("alice@example.com", "same", exp); err == nil {
		t.Fatal("expected unique violation, got nil")
	}
}

func TestVerificationTokenDelete(t *testing.T) {
	vs := setupVerificationTestDB(t)

	v, _ := vs.Create("alice@example.com", "hash", time.Now().UTC().Add(time.Minute))

	deleted, err := vs.Delete(v.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected first delete to report true")
	}
	deleted, err = vs.Delete(v.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestVerificationTokenReplace(t *testing.T) {
	vs := setupVerificationTestDB(t)
	exp := time.Now().UTC().Add(time.Minute)

	vs.Create("alice@example.com", "old-1", exp)
	vs.Create("alice@example.com", "old-2", exp)
	vs.Create("reset:alice@example.com", "keep", exp)

	v, err := vs.Replace("alice@example.com", "new", exp)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if v.TokenHash != "new" {
		t.Errorf("hash = %q, want %q", v.TokenHash, "new")
	}

	n, _ := vs.CountByIdentifier("alice@example.com")
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	n, _ = vs.CountByIdentifier("reset:alice@example.com")
	if n != 1 {
		t.Errorf("reset count = %d, want 1", n)
	}
}

func TestVerificationTokenExchange(t *testing.T) {
	vs := setupVerificationTestDB(t)
	exp := time.Now().UTC().Add(time.Minute)

	code, _ := vs.Create("alice@example.com", "code", exp)
	vs.Create("reset:alice@example.com", "stale", exp)

	if err := vs.Exchange(code.ID, "reset:alice@example.com", "fresh", exp); err != nil {
		t.Fatalf("exchange: %v", err)
	}

	n, _ := vs.CountByIdentifier("alice@example.com")
	if n != 0 {
		t.Errorf("code count = %d, want 0", n)
	}
	list, _ := vs.ListByIdentifier("reset:alice@example.com")
	if len(list) != 1 || list[0].TokenHash != "fresh" {
		t.Errorf("reset records = %+v, want one with hash fresh", list)
	}

	err := vs.Exchange(code.ID, "reset:alice@example.com", "again", exp)
	if !errors.Is(err, ErrTokenConsumed) {
		t.Errorf("err = %v, want ErrTokenConsumed", err)
	}
	list, _ = vs.ListByIdentifier("reset:alice@example.com")
	if len(list) != 1 || list[0].TokenHash != "fresh" {
		t.Errorf("failed exchange changed reset records: %+v", list)
	}
}

func TestVerificationTokenDeleteExpired(t *testing.T) {
	vs := setupVerificationTestDB(t)
	now := time.Now().UTC()

	vs.Create("alice@example.com", "expired", now.Add(-time.Second))
	vs.Create("alice@example.com", "live", now.Add(time.Minute))

	n, err := vs.DeleteExpired(now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	list, _ := vs.ListByIdentifier("alice@example.com")
	if len(list) != 1 || list[0].TokenHash != "live" {
		t.Errorf("remaining = %+v, want only live", list)
	}
}
