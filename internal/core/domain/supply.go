package domain

import "time"

// ProductSupply is one received supply batch. RemainingQuantity starts equal
// to Quantity; downstream stock-out operations decrement it, this service
// never does.
type ProductSupply struct {
	ID                int64
	ProductID         int64
	EventID           string
	Quantity          int
	RemainingQuantity int
	Date              time.Time
	IsDeleted         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewProductSupply builds the row for a validated event.
func NewProductSupply(ev SupplyAddedEvent) ProductSupply {
	now := time.Now()
	return ProductSupply{
		ProductID:         ev.ProductID,
		EventID:           ev.EventID,
		Quantity:          ev.Quantity,
		RemainingQuantity: ev.Quantity,
		Date:              ev.Date,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
