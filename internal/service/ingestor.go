package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/provider"
	"reimbursement-service/internal/reports"
	"reimbursement-service/internal/store"
	"reimbursement-service/internal/util"
)

// IngestorStore is the slice of the store the ingestor needs.
type IngestorStore interface {
	GetLedgerEventByNaturalKey(ctx context.Context, e *models.LedgerEvent) (*models.LedgerEvent, error)
	CreateLedgerEvent(ctx context.Context, e *models.LedgerEvent) error
	UpdateLedgerEvent(ctx context.Context, e *models.LedgerEvent) error
}

// IngestResult counts the outcome of one ledger report batch.
type IngestResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
}

// EventIngestor filters ledger report rows to eligible event types and
// creates or updates stored events, deduplicated by natural key.
type EventIngestor struct {
	store  IngestorStore
	logger *zap.Logger
	now    func() time.Time
}

// NewEventIngestor creates an event ingestor.
func NewEventIngestor(store IngestorStore) *EventIngestor {
	return &EventIngestor{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// eligible applies the per-type inclusion rules: adjustments and shipments
// must remove stock, receipts must add stock, transfers always count.
func eligible(e *models.LedgerEvent) bool {
	switch e.EventType {
	case models.EventTypeAdjustments, models.EventTypeShipments:
		return e.Quantity < 0
	case models.EventTypeReceipts:
		return e.Quantity > 0
	case models.EventTypeWhseTransfers:
		return true
	}
	return false
}

// IngestTable processes one parsed ledger report. A malformed row is logged
// and skipped, never aborting the batch.
func (ing *EventIngestor) IngestTable(ctx context.Context, table *provider.Table) (*IngestResult, error) {
	ctx, span := util.StartSpan(ctx, "EventIngestor.IngestTable")
	defer span.End()

	result := &IngestResult{Skipped: table.Skipped}
	now := ing.now()

	for _, row := range table.Rows() {
		event, err := reports.MapLedgerRow(row)
		if err != nil {
			ing.logger.Warn("Skipping malformed ledger row", zap.Error(err))
			util.LedgerRowsSkippedTotal.Inc()
			result.Skipped++
			continue
		}

		if !eligible(event) {
			continue
		}
		result.Processed++

		if err := ing.upsert(ctx, event, now, result); err != nil {
			ing.logger.Error("Failed to ingest ledger row",
				zap.String("fnsku", event.FNSKU),
				zap.String("event_type", event.EventType),
				zap.Time("event_date", event.EventDate),
				zap.Error(err))
			result.Skipped++
		}
	}

	ing.logger.Info("Ledger batch ingested",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// upsert creates the event or updates an existing one when fields changed.
// Re-ingesting an identical window is a no-op.
func (ing *EventIngestor) upsert(ctx context.Context, event *models.LedgerEvent, now time.Time, result *IngestResult) error {
	existing, err := ing.store.GetLedgerEventByNaturalKey(ctx, event)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if existing == nil {
		event.Status = ClassifyEvent(event, now)
		if err := ing.store.CreateLedgerEvent(ctx, event); err != nil {
			// The dedup lookup runs first, so a duplicate here means a
			// concurrent writer won the race. Count it and move on.
			if errors.Is(err, store.ErrDuplicate) {
				ing.logger.Warn("Duplicate ledger event rejected by store",
					zap.String("fnsku", event.FNSKU),
					zap.String("event_type", event.EventType))
				return nil
			}
			return err
		}
		result.Created++
		util.LedgerEventsIngestedTotal.WithLabelValues("created").Inc()
		return nil
	}

	if !eventChanged(existing, event) {
		return nil
	}

	existing.Quantity = event.Quantity
	existing.ReconciledQuantity = event.ReconciledQuantity
	existing.UnreconciledQuantity = event.UnreconciledQuantity
	existing.Disposition = event.Disposition
	existing.ProductTitle = event.ProductTitle

	// Operator-set statuses survive automatic recomputation on re-ingest.
	if !OperatorOwnedStatus(existing.Status) {
		existing.Status = ClassifyEvent(existing, now)
	}

	if err := ing.store.UpdateLedgerEvent(ctx, existing); err != nil {
		return err
	}
	result.Updated++
	util.LedgerEventsIngestedTotal.WithLabelValues("updated").Inc()
	return nil
}

func eventChanged(existing, incoming *models.LedgerEvent) bool {
	return existing.Quantity != incoming.Quantity ||
		existing.ReconciledQuantity != incoming.ReconciledQuantity ||
		existing.UnreconciledQuantity != incoming.UnreconciledQuantity ||
		existing.Disposition != incoming.Disposition ||
		existing.ProductTitle != incoming.ProductTitle
}
