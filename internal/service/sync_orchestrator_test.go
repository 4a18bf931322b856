package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/provider"
	"reimbursement-service/internal/reports"
)

const (
	reimbursementHeader = "approval-date\treimbursement-id\tcase-id\tamazon-order-id\tfnsku\tasin\tsku\tproduct-name\tcondition\tcurrency-unit\tamount-per-unit\tamount-total\tquantity-reimbursed-cash\tquantity-reimbursed-inventory\tquantity-reimbursed-total\toriginal-reimbursement-id"
	returnHeader        = "return-date\torder-id\tsku\tasin\tfnsku\tquantity\tfulfillment-center-id\tdetailed-disposition\treason\tstatus\tlicense-plate-number\tcustomer-comments"
	inventoryHeader     = "sku\tfnsku\tasin\tproduct-name\tyour-price\tcurrency\tafn-fulfillable-quantity"
)

func syncFixtures() map[string]string {
	return map[string]string{
		reports.TypeLedger: tsv(
			ledgerHeader,
			ledgerRow("2024-05-01", "X200AAA", "Adjustments", "ADJ-1", -2, 0, 2, "M"),
		),
		reports.TypeReimbursements: tsv(
			reimbursementHeader,
			"2024-05-03\tRB-100\tCASE-1\t\tX200ZZZ\tB0X200ZZZ\tSKU-Z\tGadget\tNew\tUSD\t9.99\t19.98\t0\t2\t2\t",
		),
		reports.TypeCustomerReturns: tsv(
			returnHeader,
			"2024-05-05\t111-100\tSKU-Y\tB0X200YYY\tX200YYY\t1\tPHX3\tSELLABLE\tNO_REASON\tUnit returned to inventory\tLPN1\t",
		),
		reports.TypeUnsuppressedInventory: tsv(
			inventoryHeader,
			"SKU-A\tX200AAA\tB0X200AAA\tWidget\t12.50\tUSD\t40",
		),
	}
}

func newTestOrchestrator(fs *fakeStore, fetcher ReportFetcher, locker SyncLocker, pub SyncEventPublisher) *SyncOrchestrator {
	ingestor := NewEventIngestor(fs)
	analyzer := NewClaimAnalyzer(fs, nil)
	return NewSyncOrchestrator(fetcher, ingestor, analyzer, fs, locker, pub)
}

func TestRunSyncFullSuccess(t *testing.T) {
	fs := newFakeStore()
	pub := &fakePublisher{}
	orch := newTestOrchestrator(fs, &fakeFetcher{bodies: syncFixtures()}, &fakeLocker{}, pub)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := orch.RunSync(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusSuccess, result.Status)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Steps, 4)
	for _, step := range result.Steps {
		assert.Empty(t, step.Error, step.Step)
		assert.Equal(t, 1, step.Processed, step.Step)
	}
	assert.NotEmpty(t, result.SyncRunID)

	// The ledger adjustment plus the unreceived return become claims.
	assert.Equal(t, 2, result.ClaimableItemsCreated)
	assert.Len(t, fs.claims, 2)
	assert.Len(t, fs.reimbs, 1)
	assert.Len(t, fs.returns, 1)
	assert.Len(t, fs.invent, 1)

	require.Len(t, fs.syncLogs, 1)
	entry := fs.syncLogs[0]
	assert.Equal(t, "reimbursement_sync", entry.SyncType)
	assert.Equal(t, models.SyncStatusSuccess, entry.Status)
	assert.Equal(t, 4, entry.RecordsProcessed)
	assert.NotNil(t, entry.CompletedAt)

	require.Len(t, pub.syncEvents, 1)
	assert.Equal(t, result.SyncRunID, pub.syncEvents[0].SyncRunID)
	assert.Equal(t, models.SyncStatusSuccess, pub.syncEvents[0].Status)
}

func TestRunSyncIsolatesStepFailure(t *testing.T) {
	fs := newFakeStore()
	fetcher := &fakeFetcher{
		bodies: syncFixtures(),
		errs: map[string]error{
			reports.TypeCustomerReturns: &provider.Error{Kind: provider.ErrKindTimeout, Op: "createReport"},
		},
	}
	orch := newTestOrchestrator(fs, fetcher, &fakeLocker{}, nil)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := orch.RunSync(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusPartialSuccess, result.Status)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], reports.StepCustomerReturns)

	// The three healthy steps still ran and landed their data.
	assert.Equal(t, 1, result.ProcessedCounts[reports.StepReimbursements])
	assert.Equal(t, 1, result.ProcessedCounts[reports.StepInventoryLedger])
	assert.Equal(t, 1, result.ProcessedCounts[reports.StepUnsuppressedInventory])
	assert.Empty(t, fs.returns)
	assert.Len(t, fs.reimbs, 1)
	assert.Len(t, fs.invent, 1)

	// The analyzer still ran over what did land.
	assert.Equal(t, 1, result.ClaimableItemsCreated)

	require.Len(t, fs.syncLogs, 1)
	assert.Equal(t, models.SyncStatusPartialSuccess, fs.syncLogs[0].Status)
	assert.Contains(t, fs.syncLogs[0].ErrorMessage, reports.StepCustomerReturns)
}

func TestRunSyncRejectsConcurrentRuns(t *testing.T) {
	fs := newFakeStore()
	locker := &fakeLocker{}
	orch := newTestOrchestrator(fs, &fakeFetcher{bodies: syncFixtures()}, locker, nil)

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	// Simulate another instance holding the lock.
	held, err := locker.AcquireLock(context.Background(), syncLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	_, err = orch.RunSync(context.Background(), start, end)
	assert.ErrorIs(t, err, ErrSyncInProgress)

	// Once released, the run goes through and releases the lock behind it.
	require.NoError(t, locker.ReleaseLock(context.Background(), syncLockKey))
	_, err = orch.RunSync(context.Background(), start, end)
	require.NoError(t, err)
	assert.False(t, locker.held[syncLockKey])
}

func TestRunSyncStopsBetweenStepsOnCancel(t *testing.T) {
	fs := newFakeStore()
	orch := newTestOrchestrator(fs, &fakeFetcher{bodies: syncFixtures()}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	result, err := orch.RunSync(ctx, start, end)
	require.NoError(t, err)

	assert.Empty(t, result.Steps)
	assert.Zero(t, result.ClaimableItemsCreated)
	assert.Equal(t, models.SyncStatusPartialSuccess, result.Status)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "cancelled")
}
