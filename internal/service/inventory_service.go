package service

import (
	"context"
	"fmt"

	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// InventoryAdjuster decrements product stock inside the checkout
// transaction.
type InventoryAdjuster struct {
	logger *zap.Logger
}

// NewInventoryAdjuster creates a new inventory adjuster
func NewInventoryAdjuster() *InventoryAdjuster {
	return &InventoryAdjuster{
		logger: util.GetLogger(),
	}
}

// Decrement locks the product row and re-reads the stored count before
// deducting. The re-read is the safeguard against a concurrent checkout
// depleting stock after the pre-transaction validation pass.
func (ia *InventoryAdjuster) Decrement(ctx context.Context, tx *store.Tx, productID int64, quantity int) error {
	product, err := tx.LockProduct(ctx, productID)
	if err != nil {
		if store.IsLockNotAvailable(err) {
			return fmt.Errorf("product %d locked: %w", productID, ErrConflict)
		}
		return err
	}

	if err := CheckStock(productID, product.InventoryCount, quantity); err != nil {
		util.InventoryRejectionsTotal.Inc()
		return err
	}

	if err := tx.DecrementInventory(ctx, productID, quantity); err != nil {
		return err
	}

	ia.logger.Debug("Inventory decremented",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("remaining", product.InventoryCount-quantity))
	return nil
}

// CheckStock verifies the requested quantity against available stock.
// Ordering exactly the remaining stock is allowed and drains it to zero.
func CheckStock(productID int64, available, requested int) error {
	if available < requested {
		return fmt.Errorf("product %d has %d left, requested %d: %w",
			productID, available, requested, ErrInsufficientInventory)
	}
	return nil
}
