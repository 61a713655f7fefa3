package domain

import "time"

// SupplyAddedEvent is the inbound message on the product-add-supply topic.
// EventID is optional: producers that set it get duplicate suppression via
// the unique index on product_supplies.event_id.
type SupplyAddedEvent struct {
	EventID   string    `json:"event_id,omitempty"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	Date      time.Time `json:"date"`
}
