package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckStockBoundary(t *testing.T) {
	// Ordering exactly the remaining stock succeeds and leaves zero.
	assert.NoError(t, CheckStock(1, 5, 5))
	assert.NoError(t, CheckStock(1, 1, 1))

	// One more than available is rejected.
	err := CheckStock(1, 5, 6)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	err = CheckStock(1, 0, 1)
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}
