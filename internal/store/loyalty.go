package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkout-service/internal/models"
)

// GetLoyaltyAccountByUserID retrieves the loyalty account for a user
func (s *Store) GetLoyaltyAccountByUserID(ctx context.Context, userID int64) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := s.db.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE user_id = $1", userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loyalty account for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// LockLoyaltyAccount reads a loyalty account under FOR UPDATE so the
// balance snapshot in the ledger entry cannot race a concurrent earn.
func (t *Tx) LockLoyaltyAccount(ctx context.Context, id int64) (*models.LoyaltyAccount, error) {
	var account models.LoyaltyAccount
	err := t.tx.GetContext(ctx, &account,
		"SELECT * FROM loyalty_accounts WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("loyalty account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock loyalty account %d: %w", id, err)
	}
	return &account, nil
}

// UpdateAccountPoints persists new balance, lifetime total and tier.
func (t *Tx) UpdateAccountPoints(ctx context.Context, accountID, balance, lifetime int64, tierID sql.NullInt64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE loyalty_accounts
		 SET points_balance = $1, lifetime_points = $2, tier_id = $3, updated_at = NOW()
		 WHERE id = $4`,
		balance, lifetime, tierID, accountID)
	if err != nil {
		return fmt.Errorf("failed to update loyalty account %d: %w", accountID, err)
	}
	return nil
}

// CreatePointsTransaction appends one ledger entry. Ledger rows are never
// updated or deleted.
func (t *Tx) CreatePointsTransaction(ctx context.Context, ptx *models.PointsTransaction) error {
	query := `
		INSERT INTO points_transactions (loyalty_account_id, type, points_change,
			points_balance_after, source, source_id, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, ptx, query,
		ptx.LoyaltyAccountID, ptx.Type, ptx.PointsChange, ptx.PointsBalanceAfter,
		ptx.Source, ptx.SourceID, ptx.Description, ptx.Metadata)
}

// ListPointsTransactions returns the most recent ledger entries for an account
func (s *Store) ListPointsTransactions(ctx context.Context, accountID int64, limit int) ([]models.PointsTransaction, error) {
	var txs []models.PointsTransaction
	err := s.db.SelectContext(ctx, &txs,
		`SELECT * FROM points_transactions WHERE loyalty_account_id = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, accountID, limit)
	return txs, err
}

// GetTiers returns all reward tiers ordered by min_points descending, the
// order tier selection walks them in.
func (s *Store) GetTiers(ctx context.Context) ([]models.RewardTier, error) {
	var tiers []models.RewardTier
	err := s.db.SelectContext(ctx, &tiers,
		"SELECT * FROM reward_tiers ORDER BY min_points DESC")
	return tiers, err
}

// GetRedemptionByCode looks up a redemption by code scoped to one loyalty
// account. Codes belonging to other accounts are indistinguishable from
// missing ones.
func (s *Store) GetRedemptionByCode(ctx context.Context, accountID int64, code string) (*models.Redemption, error) {
	var redemption models.Redemption
	err := s.db.GetContext(ctx, &redemption,
		"SELECT * FROM redemptions WHERE reward_code = $1 AND loyalty_account_id = $2", code, accountID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("redemption %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &redemption, nil
}

// LockRedemption reads a redemption row under FOR UPDATE NOWAIT so two
// checkouts racing for the same code cannot both consume it.
func (t *Tx) LockRedemption(ctx context.Context, id int64) (*models.Redemption, error) {
	var redemption models.Redemption
	err := t.tx.GetContext(ctx, &redemption,
		"SELECT * FROM redemptions WHERE id = $1 FOR UPDATE NOWAIT", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("redemption %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock redemption %d: %w", id, err)
	}
	return &redemption, nil
}

// MarkRedemptionUsed flips a redemption to used, stamping the consuming
// order and time in the same statement as the status change.
func (t *Tx) MarkRedemptionUsed(ctx context.Context, id, orderID int64, usedAt time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE redemptions SET status = $1, order_id = $2, used_at = $3
		 WHERE id = $4`,
		models.RedemptionStatusUsed, orderID, usedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark redemption %d used: %w", id, err)
	}
	return nil
}
