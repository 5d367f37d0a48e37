package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// RedemptionRegistry validates and consumes single-use discount codes.
// Issuance happens in the points-redemption flow elsewhere.
type RedemptionRegistry struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRedemptionRegistry creates a new redemption registry
func NewRedemptionRegistry(store *store.Store) *RedemptionRegistry {
	return &RedemptionRegistry{
		store:  store,
		logger: util.GetLogger(),
	}
}

// ValidationResult is the outcome of a successful code validation.
type ValidationResult struct {
	RedemptionID   int64 `json:"redemption_id"`
	DiscountAmount int64 `json:"discount_amount"`
}

// Validate checks a discount code against a buyer's loyalty account without
// mutating anything. Calling it repeatedly returns the same result until the
// code is consumed. Codes owned by other accounts read as not found.
func (r *RedemptionRegistry) Validate(ctx context.Context, accountID int64, code string) (*ValidationResult, error) {
	ctx, span := util.StartSpan(ctx, "RedemptionRegistry.Validate")
	defer span.End()

	redemption, err := r.store.GetRedemptionByCode(ctx, accountID, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", code, ErrDiscountNotFound)
		}
		return nil, err
	}

	if err := CheckRedeemable(redemption, time.Now()); err != nil {
		return nil, err
	}

	return &ValidationResult{
		RedemptionID:   redemption.ID,
		DiscountAmount: redemption.RewardValue,
	}, nil
}

// Consume marks a validated redemption as used inside the checkout
// transaction, stamping the consuming order and time atomically with the
// status flip. A non-active row fails loudly; silent success on a used code
// would hide a double-submit upstream. Expiry is not re-checked here; the
// validation-time clock governs the whole checkout.
func (r *RedemptionRegistry) Consume(ctx context.Context, tx *store.Tx, redemptionID, orderID int64) error {
	redemption, err := tx.LockRedemption(ctx, redemptionID)
	if err != nil {
		if store.IsLockNotAvailable(err) {
			return fmt.Errorf("redemption %d locked: %w", redemptionID, ErrConflict)
		}
		return err
	}

	if redemption.Status != models.RedemptionStatusActive {
		return fmt.Errorf("redemption %d is %s: %w", redemptionID, redemption.Status, ErrAlreadyUsed)
	}

	if err := tx.MarkRedemptionUsed(ctx, redemptionID, orderID, time.Now()); err != nil {
		return err
	}

	util.DiscountsConsumedTotal.Inc()
	r.logger.Info("Redemption consumed",
		zap.Int64("redemption_id", redemptionID),
		zap.Int64("order_id", orderID))
	return nil
}

// CheckRedeemable verifies that a redemption can still be applied at the
// given instant.
func CheckRedeemable(redemption *models.Redemption, now time.Time) error {
	if redemption.Status != models.RedemptionStatusActive {
		return fmt.Errorf("status is %s: %w", redemption.Status, ErrDiscountNotActive)
	}
	if redemption.ExpiresAt.Valid && !redemption.ExpiresAt.Time.After(now) {
		return fmt.Errorf("expired at %s: %w",
			redemption.ExpiresAt.Time.Format(time.RFC3339), ErrDiscountExpired)
	}
	return nil
}
