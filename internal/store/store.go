package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned for lookups that match no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Tx wraps a database transaction. All writes of the checkout sequence go
// through a Tx so they commit or roll back as one unit.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// IsLockNotAvailable reports whether err is a NOWAIT lock acquisition
// failure (another checkout holds the row).
func IsLockNotAvailable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "55P03"
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const productColumns = `p.id, p.title, p.image_url, p.price, p.inventory_count, p.is_active,
	p.seller_id, s.user_id AS seller_user_id`

// GetProductByID retrieves a product with its seller for checkout validation
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		`SELECT `+productColumns+` FROM products p
		 JOIN sellers s ON s.id = p.seller_id
		 WHERE p.id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// LockProduct re-reads a product row under FOR UPDATE NOWAIT. A concurrent
// checkout holding the row surfaces as a 55P03 error.
func (t *Tx) LockProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		`SELECT `+productColumns+` FROM products p
		 JOIN sellers s ON s.id = p.seller_id
		 WHERE p.id = $1
		 FOR UPDATE OF p NOWAIT`, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}
	return &product, nil
}

// DecrementInventory reduces a product's stock. Callers must hold the row
// lock and have re-checked the count.
func (t *Tx) DecrementInventory(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE products SET inventory_count = inventory_count - $1, updated_at = NOW()
		 WHERE id = $2`, quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement inventory for product %d: %w", productID, err)
	}
	return nil
}
