package store

import (
	"context"
	"database/sql"
	"fmt"

	"checkout-service/internal/models"
)

// CreateOrder inserts a new order inside the checkout transaction.
func (t *Tx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (buyer_id, order_number, status, total_amount, discount_amount,
			discount_code, applied_redemption_id, payment_status, payment_method,
			shipping_address, billing_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	return t.tx.GetContext(ctx, order, query,
		order.BuyerID, order.OrderNumber, order.Status, order.TotalAmount,
		order.DiscountAmount, order.DiscountCode, order.AppliedRedemptionID,
		order.PaymentStatus, order.PaymentMethod,
		order.ShippingAddress, order.BillingAddress)
}

// CreateOrderItem inserts one order line with snapshotted price and title.
func (t *Tx) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price,
			product_title, product_image)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
		item.TotalPrice, item.ProductTitle, item.ProductImage)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber retrieves an order by its order number
func (s *Store) GetOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE order_number = $1", number)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// GetOrdersByBuyerID retrieves orders for a buyer
func (s *Store) GetOrdersByBuyerID(ctx context.Context, buyerID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return orders, err
}

// CreateNotification stores one delivered notification row.
func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, title, message, type, related_order_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, n, query,
		n.UserID, n.Title, n.Message, n.Type, n.RelatedOrderID)
}
