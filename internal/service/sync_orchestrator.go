package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/provider"
	"reimbursement-service/internal/reports"
	"reimbursement-service/internal/util"
)

// ErrSyncInProgress is returned when another sync run holds the lock.
var ErrSyncInProgress = errors.New("a sync run is already in progress")

// ReportFetcher is the report-fetch boundary consumed by the orchestrator.
type ReportFetcher interface {
	Fetch(ctx context.Context, reportType string, start, end time.Time) (*provider.Table, error)
}

// SyncStore is the slice of the store the non-ledger sync steps need.
type SyncStore interface {
	UpsertReimbursedItem(ctx context.Context, item *models.ReimbursedItem) (bool, error)
	UpsertCustomerReturn(ctx context.Context, ret *models.CustomerReturn) (bool, error)
	ReplaceUnsuppressedInventory(ctx context.Context, records []models.UnsuppressedInventoryRecord) error
	CreateSyncLog(ctx context.Context, entry *models.SyncLog) error
}

// SyncLocker serializes sync runs across instances. May be nil.
type SyncLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// SyncEventPublisher announces finished sync runs. May be nil.
type SyncEventPublisher interface {
	PublishSyncCompleted(ctx context.Context, event *models.SyncCompletedEvent) error
}

// StepResult is the outcome of one report sync step.
type StepResult struct {
	Step      string `json:"step"`
	Processed int    `json:"processed"`
	Added     int    `json:"added"`
	Updated   int    `json:"updated"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// SyncResult is the caller-visible outcome of a full run. It distinguishes
// total failure from partial success so operators see exactly which report
// types failed.
type SyncResult struct {
	SyncRunID             string         `json:"sync_run_id"`
	Status                string         `json:"status"`
	Success               bool           `json:"success"`
	Steps                 []StepResult   `json:"steps"`
	ProcessedCounts       map[string]int `json:"processed_counts"`
	ClaimableItemsCreated int            `json:"claimable_items_created"`
	Errors                []string       `json:"errors,omitempty"`
}

const syncLockKey = "reimbursement-sync"

// SyncOrchestrator runs the four report syncs sequentially, isolates
// per-step failures, then triggers claim analysis.
type SyncOrchestrator struct {
	fetcher   ReportFetcher
	ingestor  *EventIngestor
	analyzer  *ClaimAnalyzer
	store     SyncStore
	locker    SyncLocker
	publisher SyncEventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewSyncOrchestrator creates a sync orchestrator. locker and publisher may
// be nil.
func NewSyncOrchestrator(
	fetcher ReportFetcher,
	ingestor *EventIngestor,
	analyzer *ClaimAnalyzer,
	store SyncStore,
	locker SyncLocker,
	publisher SyncEventPublisher,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		fetcher:   fetcher,
		ingestor:  ingestor,
		analyzer:  analyzer,
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// RunSync executes a full sync for [start, end). Steps run sequentially to
// stay inside provider rate limits; each failure is caught and recorded
// without blocking the remaining steps. Only a failure before any step can
// run (the lock) aborts the whole pipeline.
func (o *SyncOrchestrator) RunSync(ctx context.Context, start, end time.Time) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncOrchestrator.RunSync")
	defer span.End()

	if o.locker != nil {
		acquired, err := o.locker.AcquireLock(ctx, syncLockKey, 30*time.Minute)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		if !acquired {
			return nil, ErrSyncInProgress
		}
		defer func() {
			if err := o.locker.ReleaseLock(context.Background(), syncLockKey); err != nil {
				o.logger.Error("Failed to release sync lock", zap.Error(err))
			}
		}()
	}

	result := &SyncResult{
		SyncRunID:       uuid.New().String(),
		ProcessedCounts: make(map[string]int),
	}

	o.logger.Info("Starting reimbursement sync",
		zap.String("sync_run_id", result.SyncRunID),
		zap.Time("start", start),
		zap.Time("end", end))

	steps := []struct {
		name string
		run  func(context.Context, time.Time, time.Time) (*IngestResult, error)
	}{
		{reports.StepReimbursements, o.syncReimbursements},
		{reports.StepCustomerReturns, o.syncCustomerReturns},
		{reports.StepInventoryLedger, o.syncInventoryLedger},
		{reports.StepUnsuppressedInventory, o.syncUnsuppressedInventory},
	}

	for _, step := range steps {
		// Cancellation is honored between steps only, never mid-batch.
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("sync cancelled before %s: %v", step.name, err))
			break
		}

		counts, err := step.run(ctx, start, end)
		sr := StepResult{Step: step.name}
		if counts != nil {
			sr.Processed = counts.Processed
			sr.Added = counts.Created
			sr.Updated = counts.Updated
			sr.Skipped = counts.Skipped
			result.ProcessedCounts[step.name] = counts.Processed
		}
		if err != nil {
			sr.Error = err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", step.name, err))
			util.SyncStepFailuresTotal.WithLabelValues(step.name).Inc()
			o.logger.Error("Sync step failed",
				zap.String("step", step.name), zap.Error(err))
		}
		result.Steps = append(result.Steps, sr)
	}

	// Claim analysis runs after all report steps, itself fault-isolated.
	if ctx.Err() == nil {
		analysis := o.analyzer.Analyze(ctx)
		result.ClaimableItemsCreated = analysis.TotalCreated
		result.Errors = append(result.Errors, analysis.Errors...)
	}

	result.Status = models.SyncStatusSuccess
	if len(result.Errors) > 0 {
		result.Status = models.SyncStatusPartialSuccess
	}
	result.Success = result.Status == models.SyncStatusSuccess
	util.SyncRunsTotal.WithLabelValues(result.Status).Inc()

	o.writeSyncLog(ctx, result, start, end)
	o.publishCompleted(ctx, result)

	o.logger.Info("Reimbursement sync finished",
		zap.String("sync_run_id", result.SyncRunID),
		zap.String("status", result.Status),
		zap.Int("claims_created", result.ClaimableItemsCreated),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (o *SyncOrchestrator) syncInventoryLedger(ctx context.Context, start, end time.Time) (*IngestResult, error) {
	table, err := o.fetcher.Fetch(ctx, reports.TypeLedger, start, end)
	if err != nil {
		return nil, err
	}
	return o.ingestor.IngestTable(ctx, table)
}

func (o *SyncOrchestrator) syncReimbursements(ctx context.Context, start, end time.Time) (*IngestResult, error) {
	table, err := o.fetcher.Fetch(ctx, reports.TypeReimbursements, start, end)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Skipped: table.Skipped}
	for _, row := range table.Rows() {
		item, err := reports.MapReimbursementRow(row)
		if err != nil {
			o.logger.Warn("Skipping malformed reimbursement row", zap.Error(err))
			result.Skipped++
			continue
		}
		result.Processed++

		created, err := o.store.UpsertReimbursedItem(ctx, item)
		if err != nil {
			o.logger.Error("Failed to upsert reimbursed item",
				zap.String("reimbursement_id", item.ReimbursementID), zap.Error(err))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func (o *SyncOrchestrator) syncCustomerReturns(ctx context.Context, start, end time.Time) (*IngestResult, error) {
	table, err := o.fetcher.Fetch(ctx, reports.TypeCustomerReturns, start, end)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Skipped: table.Skipped}
	for _, row := range table.Rows() {
		ret, err := reports.MapCustomerReturnRow(row)
		if err != nil {
			o.logger.Warn("Skipping malformed return row", zap.Error(err))
			result.Skipped++
			continue
		}
		result.Processed++

		created, err := o.store.UpsertCustomerReturn(ctx, ret)
		if err != nil {
			o.logger.Error("Failed to upsert customer return",
				zap.String("order_id", ret.OrderID), zap.Error(err))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func (o *SyncOrchestrator) syncUnsuppressedInventory(ctx context.Context, start, end time.Time) (*IngestResult, error) {
	table, err := o.fetcher.Fetch(ctx, reports.TypeUnsuppressedInventory, start, end)
	if err != nil {
		return nil, err
	}

	syncedAt := o.now()
	result := &IngestResult{Skipped: table.Skipped}
	records := make([]models.UnsuppressedInventoryRecord, 0, table.Len())
	for _, row := range table.Rows() {
		record, err := reports.MapUnsuppressedInventoryRow(row, syncedAt)
		if err != nil {
			o.logger.Warn("Skipping malformed inventory row", zap.Error(err))
			result.Skipped++
			continue
		}
		result.Processed++
		records = append(records, *record)
	}

	// Snapshot semantics: the whole table is swapped in one transaction.
	if err := o.store.ReplaceUnsuppressedInventory(ctx, records); err != nil {
		return result, err
	}
	result.Created = len(records)
	return result, nil
}

func (o *SyncOrchestrator) writeSyncLog(ctx context.Context, result *SyncResult, start, end time.Time) {
	var processed, added, updated int
	for _, sr := range result.Steps {
		processed += sr.Processed
		added += sr.Added
		updated += sr.Updated
	}

	errMsg := ""
	if len(result.Errors) > 0 {
		errMsg = result.Errors[0]
		for _, e := range result.Errors[1:] {
			errMsg += "; " + e
		}
	}

	completed := o.now()
	entry := &models.SyncLog{
		SyncType:         "reimbursement_sync",
		StartDate:        start,
		EndDate:          end,
		Status:           result.Status,
		RecordsProcessed: processed,
		RecordsAdded:     added,
		RecordsUpdated:   updated,
		ErrorMessage:     errMsg,
		CompletedAt:      &completed,
	}
	if err := o.store.CreateSyncLog(ctx, entry); err != nil {
		o.logger.Error("Failed to write sync log", zap.Error(err))
	}
}

func (o *SyncOrchestrator) publishCompleted(ctx context.Context, result *SyncResult) {
	if o.publisher == nil {
		return
	}
	event := &models.SyncCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSyncCompleted,
			Timestamp: o.now(),
		},
		SyncRunID:             result.SyncRunID,
		Status:                result.Status,
		ProcessedCounts:       result.ProcessedCounts,
		ClaimableItemsCreated: result.ClaimableItemsCreated,
		Errors:                result.Errors,
	}
	if err := o.publisher.PublishSyncCompleted(ctx, event); err != nil {
		o.logger.Error("Failed to publish SyncCompleted event", zap.Error(err))
	}
}
