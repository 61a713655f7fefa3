package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/stokd/supply-ingest/internal/core/domain"
	"github.com/stokd/supply-ingest/internal/port"
)

// MySQL server error numbers.
const (
	errDuplicateEntry  = 1062
	errNoReferencedRow = 1452
)

// MySQLRepository persists supplies against the products and
// product_supplies tables. product_supplies.product_id carries a foreign key
// to products.id and event_id a nullable unique index.
type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

func (m *MySQLRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE id = ? AND is_deleted = 0`, productID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query product: %w", err)
	}
	return count > 0, nil
}

// CreateSupply re-checks product existence and inserts the supply row in one
// transaction; the foreign key is the backstop for a product deleted between
// the two statements.
func (m *MySQLRepository) CreateSupply(ctx context.Context, supply *domain.ProductSupply) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE id = ? AND is_deleted = 0`, supply.ProductID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if count == 0 {
		return port.ErrProductNotFound
	}

	// NULLIF keeps legacy events without an id out of the unique index.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO product_supplies
			(product_id, event_id, quantity, remaining_quantity, date, is_deleted, created_at, updated_at)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, 0, ?, ?)`,
		supply.ProductID, supply.EventID, supply.Quantity, supply.RemainingQuantity,
		supply.Date, supply.CreatedAt, supply.UpdatedAt,
	)
	if err != nil {
		return mapMySQLError(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	supply.ID = id

	return tx.Commit()
}

func mapMySQLError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDuplicateEntry:
			return port.ErrDuplicateEvent
		case errNoReferencedRow:
			return port.ErrProductNotFound
		}
	}
	return fmt.Errorf("insert supply: %w", err)
}
