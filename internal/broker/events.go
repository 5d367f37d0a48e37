package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"checkout-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing notification events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes the buyer-facing order placed event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	return ep.producer.PublishEvent(ctx, event.OrderNumber, event)
}

// PublishSellerOrder publishes a per-seller new order event
func (ep *EventPublisher) PublishSellerOrder(ctx context.Context, event *models.SellerOrderEvent) error {
	key := fmt.Sprintf("%s-seller-%d", event.OrderNumber, event.SellerUserID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming notification events
type EventHandler struct {
	onOrderPlaced func(context.Context, *models.OrderPlacedEvent) error
	onSellerOrder func(context.Context, *models.SellerOrderEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderPlaced registers a handler for OrderPlaced events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// OnSellerOrder registers a handler for SellerOrder events
func (eh *EventHandler) OnSellerOrder(handler func(context.Context, *models.SellerOrderEvent) error) {
	eh.onSellerOrder = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	case models.EventTypeSellerOrder:
		if eh.onSellerOrder != nil {
			var event models.SellerOrderEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SellerOrder event: %w", err)
			}
			return eh.onSellerOrder(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
