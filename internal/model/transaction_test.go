package model

import (
	"errors"
	"testing"
	"time"
)

func TestStatusNext(t *testing.T) {
	cases := []struct {
		from    Status
		ev      Event
		want    Status
		wantErr error
	}{
		{StatusPending, EventConfirm, StatusActive, nil},
		{StatusPending, EventExpire, StatusExpired, nil},
		{StatusPending, EventRevoke, StatusRevoked, nil},
		{StatusActive, EventRevoke, StatusRevoked, nil},
		{StatusActive, EventConfirm, StatusActive, ErrInvalidTransition},
		{StatusActive, EventExpire, StatusActive, ErrInvalidTransition},
		{StatusExpired, EventRevoke, StatusExpired, ErrAlreadyTerminal},
		{StatusExpired, EventConfirm, StatusExpired, ErrAlreadyTerminal},
		{StatusRevoked, EventRevoke, StatusRevoked, ErrAlreadyTerminal},
		{StatusRevoked, EventExpire, StatusRevoked, ErrAlreadyTerminal},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.ev), func(t *testing.T) {
			got, err := tc.from.Next(tc.ev)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("status = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTransactionHoldExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deadline := now.Add(time.Minute)
	tx := Transaction{Status: StatusPending, HoldExpiresAt: &deadline}

	if tx.HoldExpired(now) {
		t.Fatal("hold should be live before the deadline")
	}
	if !tx.HoldExpired(deadline) {
		t.Fatal("hold should be expired at the deadline")
	}
	tx.Status = StatusActive
	if tx.HoldExpired(deadline.Add(time.Hour)) {
		t.Fatal("active transaction never reports an expired hold")
	}
}

func TestCustomerValidate(t *testing.T) {
	ok := Customer{Name: " Ayu ", Phone: " 0812 "}.Normalize()
	if err := ok.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if ok.Name != "Ayu" || ok.Phone != "0812" {
		t.Fatalf("normalized = %+v", ok)
	}
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	for _, c := range []Customer{
		{Phone: "1"},
		{Name: "a"},
		{Name: string(long), Phone: "1"},
		{Name: "a", Phone: "123456789012345678901"},
	} {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestTransactionFilter(t *testing.T) {
	f := TransactionFilter{Page: 0, PerPage: 1000, Search: "  wla-1 "}.Normalize()
	if f.Page != 1 || f.PerPage != MaxPerPage || f.Search != "wla-1" {
		t.Fatalf("normalized = %+v", f)
	}
	if f.Offset() != 0 {
		t.Fatalf("offset = %d, want 0", f.Offset())
	}

	tx := Transaction{
		Name:   "Budi",
		Phone:  "0812",
		Status: StatusActive,
		Seats:  []SeatID{{Region: "WLA", Number: 12}},
	}
	if !f.Matches(tx) {
		t.Fatal("expected seat label match")
	}
	if (TransactionFilter{Search: "budi"}).Matches(tx) == false {
		t.Fatal("expected case-insensitive name match")
	}
	if (TransactionFilter{Status: StatusPending}).Matches(tx) {
		t.Fatal("status filter should exclude active transaction")
	}
	if (TransactionFilter{Search: "WLB"}).Matches(tx) {
		t.Fatal("unexpected match")
	}
}
