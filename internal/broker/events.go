package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"

	"reimbursement-service/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSyncRequested enqueues a sync request for the background worker
func (ep *EventPublisher) PublishSyncRequested(ctx context.Context, event *models.SyncRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, "sync-request", event)
}

// PublishSyncCompleted publishes SyncCompleted event
func (ep *EventPublisher) PublishSyncCompleted(ctx context.Context, event *models.SyncCompletedEvent) error {
	key := fmt.Sprintf("sync-%s", event.SyncRunID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishClaimableItemCreated publishes ClaimableItemCreated event
func (ep *EventPublisher) PublishClaimableItemCreated(ctx context.Context, event *models.ClaimableItemCreatedEvent) error {
	key := fmt.Sprintf("claim-%d", event.ClaimID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishClaimStatusChanged publishes ClaimStatusChanged event
func (ep *EventPublisher) PublishClaimStatusChanged(ctx context.Context, event *models.ClaimStatusChangedEvent) error {
	key := fmt.Sprintf("claim-%d", event.ClaimID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming broker messages
type EventHandler struct {
	onSyncRequested func(context.Context, *models.SyncRequestedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnSyncRequested registers a handler for SyncRequested events
func (eh *EventHandler) OnSyncRequested(handler func(context.Context, *models.SyncRequestedEvent) error) {
	eh.onSyncRequested = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeSyncRequested:
		if eh.onSyncRequested != nil {
			var event models.SyncRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SyncRequested event: %w", err)
			}
			return eh.onSyncRequested(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
