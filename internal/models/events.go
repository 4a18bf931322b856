package models

import "time"

// Event types published to / consumed from the broker
const (
	EventTypeSyncRequested        = "SYNC_REQUESTED"
	EventTypeSyncCompleted        = "SYNC_COMPLETED"
	EventTypeClaimableItemCreated = "CLAIMABLE_ITEM_CREATED"
	EventTypeClaimStatusChanged   = "CLAIM_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SyncRequestedEvent asks the worker to run a sync for a window
type SyncRequestedEvent struct {
	BaseEvent
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// SyncCompletedEvent published after a sync run finishes
type SyncCompletedEvent struct {
	BaseEvent
	SyncRunID             string         `json:"sync_run_id"`
	Status                string         `json:"status"`
	ProcessedCounts       map[string]int `json:"processed_counts"`
	ClaimableItemsCreated int            `json:"claimable_items_created"`
	Errors                []string       `json:"errors,omitempty"`
}

// ClaimableItemCreatedEvent published when analysis derives a new claim
type ClaimableItemCreatedEvent struct {
	BaseEvent
	ClaimID  int64  `json:"claim_id"`
	FNSKU    string `json:"fnsku"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// ClaimStatusChangedEvent published on operator status transitions
type ClaimStatusChangedEvent struct {
	BaseEvent
	ClaimID   int64  `json:"claim_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}
