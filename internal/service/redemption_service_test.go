package service

import (
	"database/sql"
	"testing"
	"time"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheckRedeemable(t *testing.T) {
	now := time.Now()

	active := &models.Redemption{Status: models.RedemptionStatusActive}
	assert.NoError(t, CheckRedeemable(active, now))

	notYetExpired := &models.Redemption{
		Status:    models.RedemptionStatusActive,
		ExpiresAt: sql.NullTime{Time: now.Add(time.Hour), Valid: true},
	}
	assert.NoError(t, CheckRedeemable(notYetExpired, now))
}

func TestCheckRedeemableExpired(t *testing.T) {
	now := time.Now()

	expired := &models.Redemption{
		Status:    models.RedemptionStatusActive,
		ExpiresAt: sql.NullTime{Time: now.Add(-time.Minute), Valid: true},
	}
	err := CheckRedeemable(expired, now)
	assert.ErrorIs(t, err, ErrDiscountExpired)
}

func TestCheckRedeemableUsedCode(t *testing.T) {
	used := &models.Redemption{Status: models.RedemptionStatusUsed}

	err := CheckRedeemable(used, time.Now())
	assert.ErrorIs(t, err, ErrDiscountNotActive)
	// The current status is part of the message so the caller can tell a
	// used code from a cancelled one.
	assert.Contains(t, err.Error(), "used")
}

func TestCheckRedeemableCancelledCode(t *testing.T) {
	cancelled := &models.Redemption{Status: models.RedemptionStatusCancelled}

	err := CheckRedeemable(cancelled, time.Now())
	assert.ErrorIs(t, err, ErrDiscountNotActive)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestValidationErrorClassification(t *testing.T) {
	assert.True(t, IsValidationError(ErrInsufficientInventory))
	assert.True(t, IsValidationError(ErrDiscountExpired))
	assert.False(t, IsValidationError(ErrConflict))
	assert.False(t, IsValidationError(ErrAlreadyUsed))

	assert.True(t, IsRetryable(ErrConflict))
	assert.False(t, IsRetryable(ErrInsufficientInventory))
}
