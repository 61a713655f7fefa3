package service

import (
	"testing"
	"time"

	"github.com/stokd/supply-ingest/internal/core/domain"
)

func validEvent() domain.SupplyAddedEvent {
	return domain.SupplyAddedEvent{
		EventID:   "ev-1",
		ProductID: 1,
		Quantity:  5,
		Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateSupplyEvent(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.SupplyAddedEvent)
		valid   bool
		message string
	}{
		{
			name:   "valid event",
			mutate: func(ev *domain.SupplyAddedEvent) {},
			valid:  true,
		},
		{
			name:    "zero quantity",
			mutate:  func(ev *domain.SupplyAddedEvent) { ev.Quantity = 0 },
			message: "Quantity must be greater than 0.",
		},
		{
			name:    "negative quantity",
			mutate:  func(ev *domain.SupplyAddedEvent) { ev.Quantity = -3 },
			message: "Quantity must be greater than 0.",
		},
		{
			name:    "missing product id",
			mutate:  func(ev *domain.SupplyAddedEvent) { ev.ProductID = 0 },
			message: "Product id cannot be empty.",
		},
		{
			name:    "missing date",
			mutate:  func(ev *domain.SupplyAddedEvent) { ev.Date = time.Time{} },
			message: "Date cannot be empty.",
		},
		{
			name: "quantity rule reported first",
			mutate: func(ev *domain.SupplyAddedEvent) {
				ev.Quantity = 0
				ev.ProductID = 0
				ev.Date = time.Time{}
			},
			message: "Quantity must be greater than 0.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev := validEvent()
			tc.mutate(&ev)

			res := ValidateSupplyEvent(ev)
			if res.Valid != tc.valid {
				t.Fatalf("expected valid=%v, got %v", tc.valid, res.Valid)
			}
			if res.FirstError != tc.message {
				t.Errorf("expected message %q, got %q", tc.message, res.FirstError)
			}
		})
	}
}

func TestLockKey(t *testing.T) {
	if got := LockKey(42); got != "product-supply-lock:42" {
		t.Errorf("unexpected lock key: %s", got)
	}
}
