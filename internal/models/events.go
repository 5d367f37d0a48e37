package models

import "time"

// Event types
const (
	EventTypeOrderPlaced = "ORDER_PLACED"
	EventTypeSellerOrder = "SELLER_NEW_ORDER"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent notifies the buyer that their order was created
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	BuyerID     int64  `json:"buyer_id"`
	TotalAmount int64  `json:"total_amount"`
	ItemCount   int    `json:"item_count"`
}

// SellerOrderEvent notifies one seller that products of theirs were ordered.
// ItemSummary is a display string capped by the coordinator ("a, b, c +2 more").
type SellerOrderEvent struct {
	BaseEvent
	OrderID      int64  `json:"order_id"`
	OrderNumber  string `json:"order_number"`
	SellerUserID int64  `json:"seller_user_id"`
	ItemSummary  string `json:"item_summary"`
	ItemCount    int    `json:"item_count"`
}
