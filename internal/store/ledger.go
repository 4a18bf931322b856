package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"reimbursement-service/internal/models"
)

// GetLedgerEventByNaturalKey looks up an event by its natural key
// (fnsku, asin, event_date, event_type, reference_id, fulfillment_center).
func (s *Store) GetLedgerEventByNaturalKey(ctx context.Context, e *models.LedgerEvent) (*models.LedgerEvent, error) {
	var existing models.LedgerEvent
	err := s.db.GetContext(ctx, &existing, `
		SELECT * FROM ledger_events
		WHERE fnsku = $1 AND asin = $2 AND event_date = $3
		  AND event_type = $4 AND reference_id = $5 AND fulfillment_center = $6`,
		e.FNSKU, e.ASIN, e.EventDate, e.EventType, e.ReferenceID, e.FulfillmentCenter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// CreateLedgerEvent inserts a new ledger event.
func (s *Store) CreateLedgerEvent(ctx context.Context, e *models.LedgerEvent) error {
	query := `
		INSERT INTO ledger_events (fnsku, asin, sku, product_title, event_date, event_type,
			reference_id, quantity, fulfillment_center, disposition, reason,
			reconciled_quantity, unreconciled_quantity, country, raw_timestamp, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	return classify(s.db.GetContext(ctx, e, query,
		e.FNSKU, e.ASIN, e.SKU, e.ProductTitle, e.EventDate, e.EventType,
		e.ReferenceID, e.Quantity, e.FulfillmentCenter, e.Disposition, e.Reason,
		e.ReconciledQuantity, e.UnreconciledQuantity, e.Country, e.RawTimestamp, e.Status))
}

// UpdateLedgerEvent rewrites the mutable fields of an existing event.
func (s *Store) UpdateLedgerEvent(ctx context.Context, e *models.LedgerEvent) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE ledger_events
		SET quantity = $1, reconciled_quantity = $2, unreconciled_quantity = $3,
			disposition = $4, product_title = $5, status = $6, updated_at = NOW()
		WHERE id = $7`,
		e.Quantity, e.ReconciledQuantity, e.UnreconciledQuantity,
		e.Disposition, e.ProductTitle, e.Status, e.ID)
	return err
}

// UpdateLedgerEventStatus sets only the lifecycle status.
func (s *Store) UpdateLedgerEventStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE ledger_events SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAdjustmentEventsByReasons returns Adjustments events carrying one of
// the given reason codes with at least minUnreconciled unreconciled units.
func (s *Store) ListAdjustmentEventsByReasons(ctx context.Context, reasons []string, minUnreconciled int) ([]models.LedgerEvent, error) {
	query, args, err := sqlx.In(`
		SELECT * FROM ledger_events
		WHERE event_type = ? AND reason IN (?) AND unreconciled_quantity >= ?
		ORDER BY event_date`,
		models.EventTypeAdjustments, reasons, minUnreconciled)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var events []models.LedgerEvent
	err = s.db.SelectContext(ctx, &events, query, args...)
	return events, err
}

// HasCustomerReturnEvent reports whether a CustomerReturns ledger event for
// the fnsku exists at or after the given date.
func (s *Store) HasCustomerReturnEvent(ctx context.Context, fnsku string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM ledger_events
			WHERE fnsku = $1 AND event_type = $2 AND event_date >= $3)`,
		fnsku, models.EventTypeCustomerReturns, since)
	return exists, err
}

// ListWaitingEventsBefore returns WAITING events with an event date at or
// before the cutoff and unreconciled units remaining.
func (s *Store) ListWaitingEventsBefore(ctx context.Context, cutoff time.Time) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM ledger_events
		WHERE status = $1 AND event_date <= $2 AND unreconciled_quantity > 0
		ORDER BY event_date`,
		models.EventStatusWaiting, cutoff)
	return events, err
}

// ListClaimableEventsFullyReconciled returns CLAIMABLE events whose
// unreconciled quantity has since dropped to zero.
func (s *Store) ListClaimableEventsFullyReconciled(ctx context.Context) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := s.db.SelectContext(ctx, &events, `
		SELECT * FROM ledger_events
		WHERE status = $1 AND unreconciled_quantity = 0
		ORDER BY event_date`,
		models.EventStatusClaimable)
	return events, err
}

// DeleteResolvedEventsBefore removes RESOLVED events older than the cutoff.
// Retention cleanup is the only hard delete on this table.
func (s *Store) DeleteResolvedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM ledger_events WHERE status = $1 AND event_date < $2",
		models.EventStatusResolved, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetLedgerEventByID retrieves one event.
func (s *Store) GetLedgerEventByID(ctx context.Context, id int64) (*models.LedgerEvent, error) {
	var e models.LedgerEvent
	err := s.db.GetContext(ctx, &e, "SELECT * FROM ledger_events WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ledger event %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
