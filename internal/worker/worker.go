package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"checkout-service/internal/broker"
	"checkout-service/internal/models"
	"checkout-service/internal/store"
	"checkout-service/internal/util"
)

// NotificationWorker consumes notification events and materializes them as
// notification rows. Delivery is best-effort and at-least-once; a failed
// checkout never waits on it.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, st *store.Store) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    st,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnSellerOrder(w.handleSellerOrder)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	notification := &models.Notification{
		UserID: event.BuyerID,
		Title:  "Order placed",
		Message: fmt.Sprintf("Your order %s for %s has been placed.",
			event.OrderNumber, formatCents(event.TotalAmount)),
		Type:           models.NotificationTypeOrderPlaced,
		RelatedOrderID: sql.NullInt64{Int64: event.OrderID, Valid: true},
	}

	if err := w.store.CreateNotification(ctx, notification); err != nil {
		util.NotificationsFailedTotal.WithLabelValues(models.NotificationTypeOrderPlaced).Inc()
		return fmt.Errorf("failed to store order placed notification: %w", err)
	}

	util.NotificationsDeliveredTotal.WithLabelValues(models.NotificationTypeOrderPlaced).Inc()
	return nil
}

func (w *NotificationWorker) handleSellerOrder(ctx context.Context, event *models.SellerOrderEvent) error {
	notification := &models.Notification{
		UserID: event.SellerUserID,
		Title:  "New order received",
		Message: fmt.Sprintf("Order %s includes your products: %s",
			event.OrderNumber, event.ItemSummary),
		Type:           models.NotificationTypeNewOrder,
		RelatedOrderID: sql.NullInt64{Int64: event.OrderID, Valid: true},
	}

	if err := w.store.CreateNotification(ctx, notification); err != nil {
		util.NotificationsFailedTotal.WithLabelValues(models.NotificationTypeNewOrder).Inc()
		return fmt.Errorf("failed to store seller order notification: %w", err)
	}

	util.NotificationsDeliveredTotal.WithLabelValues(models.NotificationTypeNewOrder).Inc()
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
