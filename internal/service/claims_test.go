package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/store"
)

// fakeStatsCache records cache traffic for the claim service tests.
type fakeStatsCache struct {
	stats       []models.ClaimStats
	cached      bool
	sets        int
	invalidates int
}

func (c *fakeStatsCache) GetStats(_ context.Context) ([]models.ClaimStats, bool) {
	if !c.cached {
		return nil, false
	}
	return c.stats, true
}

func (c *fakeStatsCache) SetStats(_ context.Context, stats []models.ClaimStats) {
	c.stats = stats
	c.cached = true
	c.sets++
}

func (c *fakeStatsCache) InvalidateStats(_ context.Context) {
	c.stats = nil
	c.cached = false
	c.invalidates++
}

func seedClaim(fs *fakeStore, fnsku, category, status string) *models.ClaimableItem {
	item := &models.ClaimableItem{
		FNSKU:             fnsku,
		ASIN:              "B0" + fnsku,
		Category:          category,
		Status:            status,
		Quantity:          2,
		FulfillmentCenter: "PHX3",
		EventDate:         time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	item.ID = fs.id()
	fs.claims = append(fs.claims, item)
	return item
}

func TestListClaimsFilters(t *testing.T) {
	fs := newFakeStore()
	seedClaim(fs, "X300AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)
	seedClaim(fs, "X300BBB", models.ClaimCategoryDamagedWarehouse, models.ClaimStatusClaimed)

	svc := NewClaimService(fs, nil, nil)

	items, total, err := svc.ListClaims(context.Background(), store.ClaimFilter{Status: models.ClaimStatusClaimed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "X300BBB", items[0].FNSKU)
}

func TestUpdateClaimStatusRejectsUnknownStatus(t *testing.T) {
	fs := newFakeStore()
	claim := seedClaim(fs, "X301AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)

	svc := NewClaimService(fs, nil, nil)

	_, err := svc.UpdateClaimStatus(context.Background(), claim.ID, "SHIPPED", "")
	assert.ErrorIs(t, err, ErrInvalidClaimStatus)
	assert.Equal(t, models.ClaimStatusClaimable, fs.claims[0].Status)
}

func TestUpdateClaimStatusStampsSubmissionDateOnce(t *testing.T) {
	fs := newFakeStore()
	claim := seedClaim(fs, "X302AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)

	svc := NewClaimService(fs, nil, nil)
	first := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return first }

	updated, err := svc.UpdateClaimStatus(context.Background(), claim.ID, models.ClaimStatusClaimed, "filed case 123")
	require.NoError(t, err)
	require.NotNil(t, updated.ClaimSubmittedDate)
	assert.Equal(t, first, *updated.ClaimSubmittedDate)
	assert.Equal(t, "filed case 123", updated.Notes)

	// Leaving and re-entering CLAIMED keeps the original submission date.
	_, err = svc.UpdateClaimStatus(context.Background(), claim.ID, models.ClaimStatusDenied, "")
	require.NoError(t, err)

	svc.now = func() time.Time { return first.AddDate(0, 0, 14) }
	again, err := svc.UpdateClaimStatus(context.Background(), claim.ID, models.ClaimStatusClaimed, "")
	require.NoError(t, err)
	require.NotNil(t, again.ClaimSubmittedDate)
	assert.Equal(t, first, *again.ClaimSubmittedDate)
}

func TestUpdateClaimStatusStampsReimbursementDate(t *testing.T) {
	fs := newFakeStore()
	claim := seedClaim(fs, "X303AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimed)

	svc := NewClaimService(fs, nil, nil)
	paid := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return paid }

	updated, err := svc.UpdateClaimStatus(context.Background(), claim.ID, models.ClaimStatusReimbursed, "")
	require.NoError(t, err)
	require.NotNil(t, updated.ReimbursementDate)
	assert.Equal(t, paid, *updated.ReimbursementDate)
}

func TestUpdateClaimStatusPublishesAndInvalidates(t *testing.T) {
	fs := newFakeStore()
	claim := seedClaim(fs, "X304AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)
	cache := &fakeStatsCache{}
	pub := &fakePublisher{}

	svc := NewClaimService(fs, cache, pub)

	_, err := svc.UpdateClaimStatus(context.Background(), claim.ID, models.ClaimStatusClaimed, "")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.invalidates)
	require.Len(t, pub.statusEvents, 1)
	event := pub.statusEvents[0]
	assert.Equal(t, claim.ID, event.ClaimID)
	assert.Equal(t, models.ClaimStatusClaimable, event.OldStatus)
	assert.Equal(t, models.ClaimStatusClaimed, event.NewStatus)
}

func TestUpdateClaimStatusUnknownClaim(t *testing.T) {
	fs := newFakeStore()
	svc := NewClaimService(fs, nil, nil)

	_, err := svc.UpdateClaimStatus(context.Background(), 999, models.ClaimStatusClaimed, "")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatsUsesCache(t *testing.T) {
	fs := newFakeStore()
	seedClaim(fs, "X305AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)
	cache := &fakeStatsCache{}

	svc := NewClaimService(fs, cache, nil)

	// Miss populates the cache.
	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, cache.sets)

	// Hit never reaches the store even when new claims exist.
	seedClaim(fs, "X305BBB", models.ClaimCategoryDamagedWarehouse, models.ClaimStatusClaimable)
	cached, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Equal(t, 1, cache.sets)
}

func TestRecentSyncLogsClampsLimit(t *testing.T) {
	fs := newFakeStore()
	for i := 0; i < 30; i++ {
		fs.syncLogs = append(fs.syncLogs, models.SyncLog{SyncType: "reimbursement_sync"})
	}

	svc := NewClaimService(fs, nil, nil)

	logs, err := svc.RecentSyncLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 20)

	logs, err = svc.RecentSyncLogs(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, logs, 5)
}

func TestClaimTextFormat(t *testing.T) {
	event := &models.LedgerEvent{
		FNSKU:                "X1B2C3D4",
		ASIN:                 "B0EXAMPLE1",
		FulfillmentCenter:    "PHX3",
		EventDate:            time.Date(2024, 5, 9, 13, 30, 0, 0, time.UTC),
		UnreconciledQuantity: -3,
	}

	text := GenerateClaimText(event)
	assert.Equal(t, "FNSKU X1B2C3D4 (ASIN B0EXAMPLE1) lost in FC PHX3 on 2024-05-09. Quantity unreconciled: 3. Please review and reimburse.", text)
}

func TestClaimTextUnknownFulfillmentCenter(t *testing.T) {
	fs := newFakeStore()
	claim := seedClaim(fs, "X306AAA", models.ClaimCategoryLostWarehouse, models.ClaimStatusClaimable)
	claim.FulfillmentCenter = ""

	svc := NewClaimService(fs, nil, nil)

	text, err := svc.ClaimText(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "lost in FC Unknown on 2024-05-01")
	assert.Contains(t, text, "FNSKU X306AAA")
}
