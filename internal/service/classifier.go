package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/util"
)

// ClaimableAgeDays is how old an unreconciled event must be before it is
// considered claimable rather than still settling.
const ClaimableAgeDays = 7

// ClassifyEvent computes the lifecycle status of a ledger event. Rules are
// evaluated in order: positive transfers and receipts resolve immediately,
// fully reconciled events resolve, young events wait, the rest are claimable.
func ClassifyEvent(e *models.LedgerEvent, now time.Time) string {
	if e.EventType == models.EventTypeWhseTransfers && e.Quantity > 0 {
		return models.EventStatusResolved
	}
	if e.EventType == models.EventTypeReceipts && e.Quantity > 0 {
		return models.EventStatusResolved
	}
	if e.UnreconciledQuantity == 0 {
		return models.EventStatusResolved
	}
	if now.Sub(e.EventDate) < ClaimableAgeDays*24*time.Hour {
		return models.EventStatusWaiting
	}
	return models.EventStatusClaimable
}

// OperatorOwnedStatus reports whether a status was set by explicit operator
// action. Automatic recomputation must never overwrite these.
func OperatorOwnedStatus(status string) bool {
	switch status {
	case models.EventStatusClaimInitiated, models.EventStatusClaimed,
		models.EventStatusPaid, models.EventStatusInvalid:
		return true
	}
	return false
}

// RefresherStore is the slice of the store the refresher needs.
type RefresherStore interface {
	ListWaitingEventsBefore(ctx context.Context, cutoff time.Time) ([]models.LedgerEvent, error)
	ListClaimableEventsFullyReconciled(ctx context.Context) ([]models.LedgerEvent, error)
	UpdateLedgerEventStatus(ctx context.Context, id int64, status string) error
	DeleteResolvedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatusRefresher promotes ledger events along the lifecycle as time passes
// or reconciliation catches up. Every pass is idempotent.
type StatusRefresher struct {
	store         RefresherStore
	retentionDays int
	logger        *zap.Logger
	now           func() time.Time
}

// NewStatusRefresher creates a refresher. retentionDays bounds how long
// RESOLVED events are kept; zero disables cleanup.
func NewStatusRefresher(store RefresherStore, retentionDays int) *StatusRefresher {
	return &StatusRefresher{
		store:         store,
		retentionDays: retentionDays,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// Refresh runs one pass: WAITING events past the age threshold with
// unreconciled units become CLAIMABLE, CLAIMABLE events that reconciled
// fully become RESOLVED. Returns the number of promotions per transition.
func (r *StatusRefresher) Refresh(ctx context.Context) (promoted, resolved int, err error) {
	ctx, span := util.StartSpan(ctx, "StatusRefresher.Refresh")
	defer span.End()

	cutoff := r.now().Add(-ClaimableAgeDays * 24 * time.Hour)

	waiting, err := r.store.ListWaitingEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range waiting {
		if err := r.store.UpdateLedgerEventStatus(ctx, e.ID, models.EventStatusClaimable); err != nil {
			r.logger.Error("Failed to promote event to CLAIMABLE",
				zap.Int64("event_id", e.ID), zap.Error(err))
			continue
		}
		promoted++
		util.EventsReclassifiedTotal.WithLabelValues("waiting_to_claimable").Inc()
	}

	reconciled, err := r.store.ListClaimableEventsFullyReconciled(ctx)
	if err != nil {
		return promoted, 0, err
	}
	for _, e := range reconciled {
		if err := r.store.UpdateLedgerEventStatus(ctx, e.ID, models.EventStatusResolved); err != nil {
			r.logger.Error("Failed to resolve event",
				zap.Int64("event_id", e.ID), zap.Error(err))
			continue
		}
		resolved++
		util.EventsReclassifiedTotal.WithLabelValues("claimable_to_resolved").Inc()
	}

	if promoted > 0 || resolved > 0 {
		r.logger.Info("Status refresh completed",
			zap.Int("promoted", promoted),
			zap.Int("resolved", resolved))
	}
	return promoted, resolved, nil
}

// Cleanup deletes RESOLVED events older than the retention window.
func (r *StatusRefresher) Cleanup(ctx context.Context) (int64, error) {
	if r.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := r.now().AddDate(0, 0, -r.retentionDays)
	deleted, err := r.store.DeleteResolvedEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Info("Retention cleanup removed resolved events",
			zap.Int64("deleted", deleted))
	}
	return deleted, nil
}
