package port

import (
	"context"
	"errors"

	"github.com/stokd/supply-ingest/internal/core/domain"
)

var (
	// ErrProductNotFound means the owning product does not exist or is
	// soft-deleted. Also returned when the foreign-key backstop fires
	// because the product disappeared mid-transaction.
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateEvent means a supply row for this event id already exists.
	ErrDuplicateEvent = errors.New("duplicate supply event")
)

type InventoryRepository interface {
	// ProductExists reports whether a non-deleted product with this id exists.
	ProductExists(ctx context.Context, productID int64) (bool, error)

	// CreateSupply re-checks product existence and inserts the supply row in
	// one transaction. Returns ErrProductNotFound or ErrDuplicateEvent as
	// applicable; the row's generated id is written back on success.
	CreateSupply(ctx context.Context, supply *domain.ProductSupply) error
}
