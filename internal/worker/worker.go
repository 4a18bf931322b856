package worker

import (
	"context"
	"log"
	"time"

	"reimbursement-service/internal/broker"
	"reimbursement-service/internal/models"
	"reimbursement-service/internal/service"
)

// RefresherWorker runs the status refresher and retention cleanup on a
// fixed interval.
type RefresherWorker struct {
	refresher *service.StatusRefresher
	interval  time.Duration
}

// NewRefresherWorker creates a refresher worker.
func NewRefresherWorker(refresher *service.StatusRefresher, interval time.Duration) *RefresherWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RefresherWorker{refresher: refresher, interval: interval}
}

// Start runs the refresher loop until the context is cancelled.
func (w *RefresherWorker) Start(ctx context.Context) error {
	log.Println("Starting status refresher worker...")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Status refresher worker stopping...")
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := w.refresher.Refresh(ctx); err != nil {
				log.Printf("Status refresh failed: %v", err)
			}
			if _, err := w.refresher.Cleanup(ctx); err != nil {
				log.Printf("Retention cleanup failed: %v", err)
			}
		}
	}
}

// SyncRequestWorker consumes sync requests from the broker and runs the
// orchestrator for each.
type SyncRequestWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewSyncRequestWorker creates a worker that serves queued sync requests.
func NewSyncRequestWorker(consumer *broker.Consumer, orchestrator *service.SyncOrchestrator) *SyncRequestWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSyncRequested(func(ctx context.Context, event *models.SyncRequestedEvent) error {
		log.Printf("Processing queued sync request: %s", event.EventID)
		_, err := orchestrator.RunSync(ctx, event.StartDate, event.EndDate)
		if err == service.ErrSyncInProgress {
			// Another run holds the lock; the request is dropped rather than
			// retried to avoid piling up overlapping windows.
			log.Printf("Sync request %s skipped: %v", event.EventID, err)
			return nil
		}
		return err
	})

	return &SyncRequestWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *SyncRequestWorker) Start(ctx context.Context) error {
	log.Println("Starting sync request worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SyncRequestWorker) Stop() error {
	log.Println("Stopping sync request worker...")
	return w.consumer.Close()
}

// ScheduledSyncWorker triggers a sync for the trailing window on a fixed
// schedule.
type ScheduledSyncWorker struct {
	orchestrator *service.SyncOrchestrator
	interval     time.Duration
	window       time.Duration
}

// NewScheduledSyncWorker creates a scheduled sync worker. window is how far
// back each run reaches.
func NewScheduledSyncWorker(orchestrator *service.SyncOrchestrator, interval, window time.Duration) *ScheduledSyncWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &ScheduledSyncWorker{orchestrator: orchestrator, interval: interval, window: window}
}

// Start runs the schedule until the context is cancelled.
func (w *ScheduledSyncWorker) Start(ctx context.Context) error {
	log.Println("Starting scheduled sync worker...")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduled sync worker stopping...")
			return ctx.Err()
		case <-ticker.C:
			end := time.Now()
			start := end.Add(-w.window)
			if _, err := w.orchestrator.RunSync(ctx, start, end); err != nil {
				log.Printf("Scheduled sync failed: %v", err)
			}
		}
	}
}
