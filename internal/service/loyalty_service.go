package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"go.uber.org/zap"
)

// LoyaltyLedger owns points balances, lifetime totals, tier assignment and
// the append-only transaction log.
type LoyaltyLedger struct {
	store  *store.Store
	logger *zap.Logger
}

// NewLoyaltyLedger creates a new loyalty ledger
func NewLoyaltyLedger(store *store.Store) *LoyaltyLedger {
	return &LoyaltyLedger{
		store:  store,
		logger: util.GetLogger(),
	}
}

// EarnTx awards points to an account inside an existing transaction. The
// account's current tier multiplier is applied, both balances grow by the
// multiplied amount, the tier is recomputed from the new lifetime total, and
// one ledger entry is appended with the post-increment balance.
func (l *LoyaltyLedger) EarnTx(ctx context.Context, tx *store.Tx, accountID, points int64, source, sourceID, description string) (*models.PointsTransaction, error) {
	account, err := tx.LockLoyaltyAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	tiers, err := l.store.GetTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reward tiers: %w", err)
	}

	earned := ApplyMultiplier(points, findTierByID(tiers, account.TierID))
	newBalance := account.PointsBalance + earned
	newLifetime := account.LifetimePoints + earned

	// Lifetime points only grow, so recomputation can never demote.
	tierID := account.TierID
	if tier := PickTier(tiers, newLifetime); tier != nil {
		tierID = sql.NullInt64{Int64: tier.ID, Valid: true}
	}

	if err := tx.UpdateAccountPoints(ctx, accountID, newBalance, newLifetime, tierID); err != nil {
		return nil, err
	}

	ptx := &models.PointsTransaction{
		LoyaltyAccountID:   accountID,
		Type:               models.PointsTxEarn,
		PointsChange:       earned,
		PointsBalanceAfter: newBalance,
		Source:             source,
		SourceID:           nullString(sourceID),
		Description:        nullString(description),
	}
	if err := tx.CreatePointsTransaction(ctx, ptx); err != nil {
		return nil, err
	}

	util.PointsEarnedTotal.Add(float64(earned))
	l.logger.Info("Points earned",
		zap.Int64("account_id", accountID),
		zap.Int64("points", earned),
		zap.String("source", source),
		zap.String("source_id", sourceID))

	return ptx, nil
}

// Earn awards points in its own transaction.
func (l *LoyaltyLedger) Earn(ctx context.Context, accountID, points int64, source, sourceID, description string) (*models.PointsTransaction, error) {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Earn")
	defer span.End()

	var ptx *models.PointsTransaction
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		ptx, err = l.EarnTx(ctx, tx, accountID, points, source, sourceID, description)
		return err
	})
	return ptx, err
}

// Deduct spends points from an account. Lifetime points and tier are
// untouched; spending never demotes.
func (l *LoyaltyLedger) Deduct(ctx context.Context, accountID, points int64, source, sourceID, description string) (*models.PointsTransaction, error) {
	ctx, span := util.StartSpan(ctx, "LoyaltyLedger.Deduct")
	defer span.End()

	var ptx *models.PointsTransaction
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		account, err := tx.LockLoyaltyAccount(ctx, accountID)
		if err != nil {
			return err
		}

		if points > account.PointsBalance {
			return fmt.Errorf("balance %d, requested %d: %w",
				account.PointsBalance, points, ErrInsufficientPoints)
		}

		newBalance := account.PointsBalance - points
		if err := tx.UpdateAccountPoints(ctx, accountID, newBalance, account.LifetimePoints, account.TierID); err != nil {
			return err
		}

		ptx = &models.PointsTransaction{
			LoyaltyAccountID:   accountID,
			Type:               models.PointsTxRedeem,
			PointsChange:       -points,
			PointsBalanceAfter: newBalance,
			Source:             source,
			SourceID:           nullString(sourceID),
			Description:        nullString(description),
		}
		return tx.CreatePointsTransaction(ctx, ptx)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Points deducted",
		zap.Int64("account_id", accountID),
		zap.Int64("points", points),
		zap.String("source", source))
	return ptx, nil
}

// TierForPoints selects the tier whose range contains lifetimePoints.
func (l *LoyaltyLedger) TierForPoints(ctx context.Context, lifetimePoints int64) (*models.RewardTier, error) {
	tiers, err := l.store.GetTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reward tiers: %w", err)
	}
	return PickTier(tiers, lifetimePoints), nil
}

// GetAccount returns the loyalty account for a user.
func (l *LoyaltyLedger) GetAccount(ctx context.Context, userID int64) (*models.LoyaltyAccount, error) {
	return l.store.GetLoyaltyAccountByUserID(ctx, userID)
}

// ListTransactions returns the most recent ledger entries for an account.
func (l *LoyaltyLedger) ListTransactions(ctx context.Context, accountID int64, limit int) ([]models.PointsTransaction, error) {
	return l.store.ListPointsTransactions(ctx, accountID, limit)
}

// PickTier walks tiers sorted by min_points descending and returns the first
// whose range contains lifetimePoints. The descending walk is the tie-break
// for (conventionally absent) overlapping ranges.
func PickTier(tiers []models.RewardTier, lifetimePoints int64) *models.RewardTier {
	for i := range tiers {
		if tiers[i].Contains(lifetimePoints) {
			return &tiers[i]
		}
	}
	return nil
}

// ApplyMultiplier scales base points by the tier multiplier, flooring the
// result. A nil tier leaves points unmodified.
func ApplyMultiplier(points int64, tier *models.RewardTier) int64 {
	if tier == nil {
		return points
	}
	return int64(math.Floor(float64(points) * tier.PointsMultiplier))
}

func findTierByID(tiers []models.RewardTier, id sql.NullInt64) *models.RewardTier {
	if !id.Valid {
		return nil
	}
	for i := range tiers {
		if tiers[i].ID == id.Int64 {
			return &tiers[i]
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
