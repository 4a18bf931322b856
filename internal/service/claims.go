package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/store"
	"reimbursement-service/internal/util"
)

// ErrInvalidClaimStatus is returned for an unknown target status.
var ErrInvalidClaimStatus = fmt.Errorf("invalid claim status")

// ClaimStore is the slice of the store the claim service needs.
type ClaimStore interface {
	ListClaimableItems(ctx context.Context, filter store.ClaimFilter) ([]models.ClaimableItem, int, error)
	GetClaimableItemByID(ctx context.Context, id int64) (*models.ClaimableItem, error)
	UpdateClaimableItemStatus(ctx context.Context, item *models.ClaimableItem) error
	GetClaimStats(ctx context.Context) ([]models.ClaimStats, error)
	GetRecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error)
}

// StatsCache caches aggregate stats with a short TTL. May be nil.
type StatsCache interface {
	GetStats(ctx context.Context) ([]models.ClaimStats, bool)
	SetStats(ctx context.Context, stats []models.ClaimStats)
	InvalidateStats(ctx context.Context)
}

// ClaimLifecyclePublisher announces operator status transitions. May be nil.
type ClaimLifecyclePublisher interface {
	PublishClaimStatusChanged(ctx context.Context, event *models.ClaimStatusChangedEvent) error
}

// ClaimService owns the operator-facing claim workflow: listing, status
// transitions, stats and claim text.
type ClaimService struct {
	store     ClaimStore
	cache     StatsCache
	publisher ClaimLifecyclePublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewClaimService creates a claim service. cache and publisher may be nil.
func NewClaimService(store ClaimStore, cache StatsCache, publisher ClaimLifecyclePublisher) *ClaimService {
	return &ClaimService{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// ListClaims returns a filtered page of claimable items with the total count.
func (s *ClaimService) ListClaims(ctx context.Context, filter store.ClaimFilter) ([]models.ClaimableItem, int, error) {
	return s.store.ListClaimableItems(ctx, filter)
}

// GetClaim retrieves one claimable item.
func (s *ClaimService) GetClaim(ctx context.Context, id int64) (*models.ClaimableItem, error) {
	return s.store.GetClaimableItemByID(ctx, id)
}

// UpdateClaimStatus moves a claim to the target status. Any status may
// follow any other (operator discretion); entering CLAIMED stamps the
// submission date, entering REIMBURSED stamps the reimbursement date,
// neither is ever overwritten.
func (s *ClaimService) UpdateClaimStatus(ctx context.Context, id int64, newStatus, notes string) (*models.ClaimableItem, error) {
	ctx, span := util.StartSpan(ctx, "ClaimService.UpdateClaimStatus")
	defer span.End()

	if !models.ValidClaimStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClaimStatus, newStatus)
	}

	item, err := s.store.GetClaimableItemByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := item.Status
	item.Status = newStatus
	if notes != "" {
		item.Notes = notes
	}

	now := s.now()
	if newStatus == models.ClaimStatusClaimed && item.ClaimSubmittedDate == nil {
		item.ClaimSubmittedDate = &now
	}
	if newStatus == models.ClaimStatusReimbursed && item.ReimbursementDate == nil {
		item.ReimbursementDate = &now
	}

	if err := s.store.UpdateClaimableItemStatus(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update claim status: %w", err)
	}

	util.ClaimStatusTransitionsTotal.WithLabelValues(newStatus).Inc()
	if s.cache != nil {
		s.cache.InvalidateStats(ctx)
	}
	s.logger.Info("Claim status updated",
		zap.Int64("claim_id", id),
		zap.String("from", oldStatus),
		zap.String("to", newStatus))

	if s.publisher != nil {
		event := &models.ClaimStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeClaimStatusChanged,
				Timestamp: now,
			},
			ClaimID:   id,
			OldStatus: oldStatus,
			NewStatus: newStatus,
		}
		if err := s.publisher.PublishClaimStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish ClaimStatusChanged event", zap.Error(err))
		}
	}

	return item, nil
}

// Stats returns aggregate counts and sums per category and lifecycle bucket.
func (s *ClaimService) Stats(ctx context.Context) ([]models.ClaimStats, error) {
	if s.cache != nil {
		if stats, ok := s.cache.GetStats(ctx); ok {
			return stats, nil
		}
	}

	stats, err := s.store.GetClaimStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetStats(ctx, stats)
	}
	return stats, nil
}

// RecentSyncLogs returns the newest sync audit entries.
func (s *ClaimService) RecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.GetRecentSyncLogs(ctx, limit)
}

// ClaimText renders the operator-facing claim text for a claimable item.
func (s *ClaimService) ClaimText(ctx context.Context, id int64) (string, error) {
	item, err := s.store.GetClaimableItemByID(ctx, id)
	if err != nil {
		return "", err
	}
	return GenerateClaimTextForItem(item), nil
}

// GenerateClaimText renders the claim text for a ledger event.
func GenerateClaimText(e *models.LedgerEvent) string {
	qty := e.UnreconciledQuantity
	if qty < 0 {
		qty = -qty
	}
	return claimText(e.FNSKU, e.ASIN, e.FulfillmentCenter, e.EventDate, qty)
}

// GenerateClaimTextForItem renders the claim text for a claimable item.
func GenerateClaimTextForItem(item *models.ClaimableItem) string {
	qty := item.Quantity
	if qty < 0 {
		qty = -qty
	}
	return claimText(item.FNSKU, item.ASIN, item.FulfillmentCenter, item.EventDate, qty)
}

func claimText(fnsku, asin, fc string, eventDate time.Time, quantity int) string {
	if fc == "" {
		fc = "Unknown"
	}
	return fmt.Sprintf("FNSKU %s (ASIN %s) lost in FC %s on %s. Quantity unreconciled: %d. Please review and reimburse.",
		fnsku, asin, fc, eventDate.Format("2006-01-02"), quantity)
}
