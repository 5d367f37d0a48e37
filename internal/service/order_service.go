package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/store"
	"checkout-service/internal/util"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

// OrderCoordinator orchestrates checkout: it validates and prices the cart,
// consumes the discount redemption, creates the order with its items,
// adjusts inventory, awards loyalty points and fans out notifications.
type OrderCoordinator struct {
	store          *store.Store
	cart           *redisclient.Client
	eventPublisher *broker.EventPublisher
	redemptions    *RedemptionRegistry
	ledger         *LoyaltyLedger
	inventory      *InventoryAdjuster
	logger         *zap.Logger

	pointsPerCents     int64
	orderNumberRetries int
}

// NewOrderCoordinator creates a new order coordinator
func NewOrderCoordinator(
	store *store.Store,
	cart *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	redemptions *RedemptionRegistry,
	ledger *LoyaltyLedger,
	inventory *InventoryAdjuster,
	pointsPerCents int64,
	orderNumberRetries int,
) *OrderCoordinator {
	return &OrderCoordinator{
		store:              store,
		cart:               cart,
		eventPublisher:     eventPublisher,
		redemptions:        redemptions,
		ledger:             ledger,
		inventory:          inventory,
		logger:             util.GetLogger(),
		pointsPerCents:     pointsPerCents,
		orderNumberRetries: orderNumberRetries,
	}
}

// CartLine is one product/quantity pair from the buyer's cart. Client
// supplied prices are ignored; the catalog price is snapshotted instead.
type CartLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest represents a checkout request
type CreateOrderRequest struct {
	BuyerID         int64          `json:"buyer_id" binding:"required"`
	CartLines       []CartLine     `json:"cart_lines" binding:"required,min=1"`
	ShippingAddress types.JSONText `json:"shipping_address" binding:"required"`
	BillingAddress  types.JSONText `json:"billing_address" binding:"required"`
	PaymentMethod   string         `json:"payment_method" binding:"required"`
	DiscountCode    string         `json:"discount_code,omitempty"`
}

// CreateOrderResult is a successful checkout outcome.
type CreateOrderResult struct {
	Order        *models.Order      `json:"order"`
	Items        []models.OrderItem `json:"items"`
	PointsEarned int64              `json:"points_earned"`
}

// CreateOrder runs the checkout sequence. Validation happens up front with
// zero side effects; order creation, redemption consumption, inventory
// decrement and the points award commit as one database transaction; cart
// clearing and notifications run after commit and never fail the checkout.
func (c *OrderCoordinator) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderCoordinator.CreateOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if len(req.CartLines) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, fmt.Errorf("no cart lines: %w", ErrInvalidCart)
	}

	products, err := c.validateCartLines(ctx, req.CartLines)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_cart").Inc()
		return nil, err
	}

	account, err := c.resolveAccount(ctx, req.BuyerID, req.DiscountCode != "")
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("loyalty_account").Inc()
		return nil, err
	}

	var discount *ValidationResult
	if req.DiscountCode != "" {
		discount, err = c.redemptions.Validate(ctx, account.ID, req.DiscountCode)
		if err != nil {
			util.CheckoutsFailedTotal.WithLabelValues("discount").Inc()
			return nil, err
		}
	}

	var result *CreateOrderResult
	for attempt := 0; ; attempt++ {
		result, err = c.createOrderTx(ctx, req, products, account, discount)
		if err == nil {
			break
		}
		// Order numbers are random; a collision just means regenerate.
		if store.IsUniqueViolation(err) && attempt < c.orderNumberRetries {
			c.logger.Warn("Order number collision, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, ErrConflict) {
			util.CheckoutsFailedTotal.WithLabelValues("conflict").Inc()
		} else if IsValidationError(err) {
			util.CheckoutsFailedTotal.WithLabelValues("validation").Inc()
		} else {
			util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.CheckoutsTotal.Inc()
	c.logger.Info("Order created",
		zap.Int64("order_id", result.Order.ID),
		zap.String("order_number", result.Order.OrderNumber),
		zap.Int64("total_amount", result.Order.TotalAmount),
		zap.Int64("points_earned", result.PointsEarned))

	if err := c.cart.ClearCart(ctx, req.BuyerID); err != nil {
		c.logger.Error("Failed to clear cart", zap.Int64("buyer_id", req.BuyerID), zap.Error(err))
	}
	if req.DiscountCode != "" && account != nil {
		if err := c.cart.InvalidateDiscountPreview(ctx, account.ID, req.DiscountCode); err != nil {
			c.logger.Warn("Failed to invalidate discount preview cache", zap.Error(err))
		}
	}

	c.emitNotifications(ctx, result.Order, result.Items, products)

	return result, nil
}

// createOrderTx runs steps 4 through 8 of the checkout inside one
// transaction. Any error rolls the whole unit back.
func (c *OrderCoordinator) createOrderTx(
	ctx context.Context,
	req *CreateOrderRequest,
	products map[int64]*models.Product,
	account *models.LoyaltyAccount,
	discount *ValidationResult,
) (*CreateOrderResult, error) {
	order := &models.Order{
		BuyerID:         req.BuyerID,
		OrderNumber:     GenerateOrderNumber(),
		Status:          models.OrderStatusPending,
		TotalAmount:     CalculateTotal(req.CartLines, products),
		PaymentStatus:   models.PaymentStatusPending,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
	}
	if discount != nil {
		order.ApplyDiscount(discount.DiscountAmount, req.DiscountCode, discount.RedemptionID)
	}

	var items []models.OrderItem
	var pointsEarned int64

	err := c.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		items = items[:0]
		for _, line := range req.CartLines {
			product := products[line.ProductID]
			item := models.OrderItem{
				OrderID:      order.ID,
				ProductID:    line.ProductID,
				Quantity:     line.Quantity,
				UnitPrice:    product.Price,
				TotalPrice:   product.Price * int64(line.Quantity),
				ProductTitle: product.Title,
				ProductImage: product.ImageURL,
			}
			if err := tx.CreateOrderItem(ctx, &item); err != nil {
				return err
			}
			items = append(items, item)
		}

		if discount != nil {
			if err := c.redemptions.Consume(ctx, tx, discount.RedemptionID, order.ID); err != nil {
				return err
			}
		}

		for _, line := range req.CartLines {
			if err := c.inventory.Decrement(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		if account != nil {
			basePoints := order.TotalAmount / c.pointsPerCents
			if basePoints > 0 {
				ptx, err := c.ledger.EarnTx(ctx, tx, account.ID, basePoints,
					models.PointsSourcePurchase, order.OrderNumber,
					fmt.Sprintf("Points for order %s", order.OrderNumber))
				if err != nil {
					return err
				}
				pointsEarned = ptx.PointsChange
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{Order: order, Items: items, PointsEarned: pointsEarned}, nil
}

// validateCartLines loads and checks every product before anything is
// written. Prices come from the catalog, never from the client.
func (c *OrderCoordinator) validateCartLines(ctx context.Context, lines []CartLine) (map[int64]*models.Product, error) {
	products := make(map[int64]*models.Product, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: quantity must be positive: %w", line.ProductID, ErrInvalidCart)
		}

		product, err := c.store.GetProductByID(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrProductNotFound)
			}
			return nil, err
		}
		if !product.IsActive {
			return nil, fmt.Errorf("product %d (%s): %w", product.ID, product.Title, ErrProductUnavailable)
		}
		if err := CheckStock(product.ID, product.InventoryCount, line.Quantity); err != nil {
			return nil, err
		}
		products[line.ProductID] = product
	}
	return products, nil
}

// resolveAccount loads the buyer's loyalty account. A missing account is
// fatal when a discount code is in play, otherwise checkout proceeds and
// simply earns no points.
func (c *OrderCoordinator) resolveAccount(ctx context.Context, buyerID int64, required bool) (*models.LoyaltyAccount, error) {
	account, err := c.store.GetLoyaltyAccountByUserID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if required {
				return nil, fmt.Errorf("buyer %d: %w", buyerID, ErrLoyaltyAccountNotFound)
			}
			c.logger.Warn("Buyer has no loyalty account, skipping points award",
				zap.Int64("buyer_id", buyerID))
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// emitNotifications publishes the buyer event and one event per distinct
// seller. Runs after commit; failures are logged and never fail the checkout.
func (c *OrderCoordinator) emitNotifications(ctx context.Context, order *models.Order, items []models.OrderItem, products map[int64]*models.Product) {
	placed := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(items),
	}
	if err := c.eventPublisher.PublishOrderPlaced(ctx, placed); err != nil {
		c.logger.Error("Failed to publish order placed event",
			zap.String("order_number", order.OrderNumber), zap.Error(err))
	}

	for _, group := range GroupBySeller(items, products) {
		event := &models.SellerOrderEvent{
			BaseEvent:    newBaseEvent(models.EventTypeSellerOrder),
			OrderID:      order.ID,
			OrderNumber:  order.OrderNumber,
			SellerUserID: group.SellerUserID,
			ItemSummary:  SummarizeTitles(group.Titles, 3),
			ItemCount:    group.ItemCount,
		}
		if err := c.eventPublisher.PublishSellerOrder(ctx, event); err != nil {
			c.logger.Error("Failed to publish seller order event",
				zap.String("order_number", order.OrderNumber),
				zap.Int64("seller_user_id", group.SellerUserID),
				zap.Error(err))
		}
	}
}

// ListOrders returns a buyer's orders, newest first.
func (c *OrderCoordinator) ListOrders(ctx context.Context, buyerID int64) ([]models.Order, error) {
	return c.store.GetOrdersByBuyerID(ctx, buyerID)
}

// GetCart returns the buyer's current cart lines.
func (c *OrderCoordinator) GetCart(ctx context.Context, buyerID int64) ([]CartLine, error) {
	cart, err := c.cart.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(cart))
	for productID, quantity := range cart {
		lines = append(lines, CartLine{ProductID: productID, Quantity: quantity})
	}
	return lines, nil
}

// UpdateCartLine upserts one cart line; a zero quantity removes it.
func (c *OrderCoordinator) UpdateCartLine(ctx context.Context, buyerID int64, line CartLine) error {
	return c.cart.SetCartLine(ctx, buyerID, line.ProductID, line.Quantity)
}

// GetOrder retrieves an order with its items
func (c *OrderCoordinator) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := c.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := c.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// CalculateTotal sums quantity times snapshotted unit price, in cents.
func CalculateTotal(lines []CartLine, products map[int64]*models.Product) int64 {
	var total int64
	for _, line := range lines {
		total += products[line.ProductID].Price * int64(line.Quantity)
	}
	return total
}

// GenerateOrderNumber returns an order number of the form ORD-1a2b3c4d.
// Collisions are negligible and handled by retrying the insert. A failing
// system randomness source is unrecoverable.
func GenerateOrderNumber() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return "ORD-" + hex.EncodeToString(buf)
}

// SellerGroup collects the order lines belonging to one seller.
type SellerGroup struct {
	SellerUserID int64
	Titles       []string
	ItemCount    int
}

// GroupBySeller buckets order items by the owning seller's user id,
// preserving first-appearance order.
func GroupBySeller(items []models.OrderItem, products map[int64]*models.Product) []SellerGroup {
	index := make(map[int64]int)
	var groups []SellerGroup
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			continue
		}
		i, seen := index[product.SellerUserID]
		if !seen {
			i = len(groups)
			index[product.SellerUserID] = i
			groups = append(groups, SellerGroup{SellerUserID: product.SellerUserID})
		}
		groups[i].Titles = append(groups[i].Titles, item.ProductTitle)
		groups[i].ItemCount += item.Quantity
	}
	return groups
}

// SummarizeTitles joins up to max titles, appending "+N more" for the rest.
func SummarizeTitles(titles []string, max int) string {
	if len(titles) <= max {
		return strings.Join(titles, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(titles[:max], ", "), len(titles)-max)
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
