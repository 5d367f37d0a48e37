package models

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Product represents a catalog product as seen by checkout.
// Prices are in cents.
type Product struct {
	ID             int64  `db:"id" json:"id"`
	Title          string `db:"title" json:"title"`
	ImageURL       string `db:"image_url" json:"image_url"`
	Price          int64  `db:"price" json:"price"`
	InventoryCount int    `db:"inventory_count" json:"inventory_count"`
	IsActive       bool   `db:"is_active" json:"is_active"`
	SellerID       int64  `db:"seller_id" json:"seller_id"`
	SellerUserID   int64  `db:"seller_user_id" json:"seller_user_id"`
}

// Order represents a customer order
type Order struct {
	ID                  int64          `db:"id" json:"id"`
	BuyerID             int64          `db:"buyer_id" json:"buyer_id"`
	OrderNumber         string         `db:"order_number" json:"order_number"`
	Status              string         `db:"status" json:"status"`
	TotalAmount         int64          `db:"total_amount" json:"total_amount"`
	DiscountAmount      int64          `db:"discount_amount" json:"discount_amount"`
	DiscountCode        sql.NullString `db:"discount_code" json:"discount_code,omitempty"`
	AppliedRedemptionID sql.NullInt64  `db:"applied_redemption_id" json:"applied_redemption_id,omitempty"`
	PaymentStatus       string         `db:"payment_status" json:"payment_status"`
	PaymentMethod       string         `db:"payment_method" json:"payment_method"`
	ShippingAddress     types.JSONText `db:"shipping_address" json:"shipping_address"`
	BillingAddress      types.JSONText `db:"billing_address" json:"billing_address"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// ApplyDiscount records a consumed redemption on the order. The order total
// never goes below zero.
func (o *Order) ApplyDiscount(rewardValue int64, code string, redemptionID int64) {
	o.DiscountAmount = rewardValue
	o.TotalAmount -= rewardValue
	if o.TotalAmount < 0 {
		o.TotalAmount = 0
	}
	o.DiscountCode = sql.NullString{String: code, Valid: true}
	o.AppliedRedemptionID = sql.NullInt64{Int64: redemptionID, Valid: true}
}

// OrderItem represents one line of an order. Unit price and product
// title/image are snapshotted at order time so history survives later
// catalog changes.
type OrderItem struct {
	ID           int64  `db:"id" json:"id"`
	OrderID      int64  `db:"order_id" json:"order_id"`
	ProductID    int64  `db:"product_id" json:"product_id"`
	Quantity     int    `db:"quantity" json:"quantity"`
	UnitPrice    int64  `db:"unit_price" json:"unit_price"`
	TotalPrice   int64  `db:"total_price" json:"total_price"`
	ProductTitle string `db:"product_title" json:"product_title"`
	ProductImage string `db:"product_image" json:"product_image"`
}

// LoyaltyAccount tracks spendable and lifetime points for one user
type LoyaltyAccount struct {
	ID             int64         `db:"id" json:"id"`
	UserID         int64         `db:"user_id" json:"user_id"`
	PointsBalance  int64         `db:"points_balance" json:"points_balance"`
	LifetimePoints int64         `db:"lifetime_points" json:"lifetime_points"`
	TierID         sql.NullInt64 `db:"tier_id" json:"tier_id,omitempty"`
	ReferralCode   string        `db:"referral_code" json:"referral_code"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// PointsTransaction is one append-only ledger entry. PointsChange is signed;
// PointsBalanceAfter snapshots the balance including this entry.
type PointsTransaction struct {
	ID                 int64          `db:"id" json:"id"`
	LoyaltyAccountID   int64          `db:"loyalty_account_id" json:"loyalty_account_id"`
	Type               string         `db:"type" json:"type"`
	PointsChange       int64          `db:"points_change" json:"points_change"`
	PointsBalanceAfter int64          `db:"points_balance_after" json:"points_balance_after"`
	Source             string         `db:"source" json:"source"`
	SourceID           sql.NullString `db:"source_id" json:"source_id,omitempty"`
	Description        sql.NullString `db:"description" json:"description,omitempty"`
	Metadata           types.JSONText `db:"metadata" json:"metadata,omitempty"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// RewardTier is a reward bracket keyed by lifetime points. MaxPoints is
// null for the open-ended top tier.
type RewardTier struct {
	ID               int64          `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	MinPoints        int64          `db:"min_points" json:"min_points"`
	MaxPoints        sql.NullInt64  `db:"max_points" json:"max_points,omitempty"`
	PointsMultiplier float64        `db:"points_multiplier" json:"points_multiplier"`
	Benefits         types.JSONText `db:"benefits" json:"benefits,omitempty"`
}

// Contains reports whether lifetimePoints falls inside the tier range.
func (t *RewardTier) Contains(lifetimePoints int64) bool {
	if lifetimePoints < t.MinPoints {
		return false
	}
	if t.MaxPoints.Valid && lifetimePoints > t.MaxPoints.Int64 {
		return false
	}
	return true
}

// Redemption is a previously issued single-use discount code tied to a
// loyalty account. RewardValue is in cents.
type Redemption struct {
	ID               int64         `db:"id" json:"id"`
	LoyaltyAccountID int64         `db:"loyalty_account_id" json:"loyalty_account_id"`
	RedemptionType   string        `db:"redemption_type" json:"redemption_type"`
	PointsRedeemed   int64         `db:"points_redeemed" json:"points_redeemed"`
	RewardValue      int64         `db:"reward_value" json:"reward_value"`
	RewardCode       string        `db:"reward_code" json:"reward_code"`
	Status           string        `db:"status" json:"status"`
	OrderID          sql.NullInt64 `db:"order_id" json:"order_id,omitempty"`
	ExpiresAt        sql.NullTime  `db:"expires_at" json:"expires_at,omitempty"`
	UsedAt           sql.NullTime  `db:"used_at" json:"used_at,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}

// Notification is a delivered in-app notification row, written by the
// notification worker.
type Notification struct {
	ID             int64         `db:"id" json:"id"`
	UserID         int64         `db:"user_id" json:"user_id"`
	Title          string        `db:"title" json:"title"`
	Message        string        `db:"message" json:"message"`
	Type           string        `db:"type" json:"type"`
	RelatedOrderID sql.NullInt64 `db:"related_order_id" json:"related_order_id,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Order statuses
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Points transaction types
const (
	PointsTxEarn       = "earn"
	PointsTxRedeem     = "redeem"
	PointsTxExpire     = "expire"
	PointsTxAdjustment = "adjustment"
)

// Points transaction sources
const (
	PointsSourcePurchase    = "purchase"
	PointsSourceReferral    = "referral"
	PointsSourceSignupBonus = "signup_bonus"
	PointsSourceAdmin       = "admin_adjustment"
)

// Redemption statuses
const (
	RedemptionStatusActive    = "active"
	RedemptionStatusUsed      = "used"
	RedemptionStatusExpired   = "expired"
	RedemptionStatusCancelled = "cancelled"
)

// Notification types
const (
	NotificationTypeOrderPlaced = "order_placed"
	NotificationTypeNewOrder    = "new_order"
)
