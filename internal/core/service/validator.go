package service

import "github.com/stokd/supply-ingest/internal/core/domain"

// ValidationResult reports the first failing rule in declared order.
type ValidationResult struct {
	Valid      bool
	FirstError string
}

type rule struct {
	check   func(domain.SupplyAddedEvent) bool
	message string
}

var supplyRules = []rule{
	{
		check:   func(ev domain.SupplyAddedEvent) bool { return ev.Quantity >= 1 },
		message: "Quantity must be greater than 0.",
	},
	{
		check:   func(ev domain.SupplyAddedEvent) bool { return ev.ProductID != 0 },
		message: "Product id cannot be empty.",
	},
	{
		check:   func(ev domain.SupplyAddedEvent) bool { return !ev.Date.IsZero() },
		message: "Date cannot be empty.",
	},
}

// ValidateSupplyEvent runs the rule list. Pure, no I/O.
func ValidateSupplyEvent(ev domain.SupplyAddedEvent) ValidationResult {
	for _, r := range supplyRules {
		if !r.check(ev) {
			return ValidationResult{Valid: false, FirstError: r.message}
		}
	}
	return ValidationResult{Valid: true}
}
