package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reimbursement-service/internal/models"
)

// CreateClaimableItem inserts a new claim candidate.
func (s *Store) CreateClaimableItem(ctx context.Context, item *models.ClaimableItem) error {
	query := `
		INSERT INTO claimable_items (fnsku, asin, sku, product_name, category, status,
			quantity, estimated_value, currency, fulfillment_center, event_date,
			reference_id, reason, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return classify(s.db.GetContext(ctx, item, query,
		item.FNSKU, item.ASIN, item.SKU, item.ProductName, item.Category, item.Status,
		item.Quantity, item.EstimatedValue, item.Currency, item.FulfillmentCenter,
		item.EventDate, item.ReferenceID, item.Reason, item.Notes))
}

// GetClaimableItemByID retrieves one claim.
func (s *Store) GetClaimableItemByID(ctx context.Context, id int64) (*models.ClaimableItem, error) {
	var item models.ClaimableItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM claimable_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: claim %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ClaimExists reports whether a claim for the fnsku and category already
// exists. Non-zero window bounds restrict the match to claims whose event
// date falls inside [windowStart, windowEnd].
func (s *Store) ClaimExists(ctx context.Context, fnsku, category string, windowStart, windowEnd time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM claimable_items
			WHERE fnsku = $1 AND category = $2
			  AND ($3::timestamptz = 'epoch'::timestamptz OR event_date >= $3)
			  AND ($4::timestamptz = 'epoch'::timestamptz OR event_date <= $4))`,
		fnsku, category, nonZeroOrEpoch(windowStart), nonZeroOrEpoch(windowEnd))
	return exists, err
}

func nonZeroOrEpoch(t time.Time) time.Time {
	if t.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// ClaimFilter narrows and pages the claim listing.
type ClaimFilter struct {
	Status   string
	Category string
	FNSKU    string
	SortBy   string // event_date, created_at, status, category
	SortDesc bool
	Limit    int
	Offset   int
}

// ListClaimableItems returns a filtered page of claims plus the total count
// matching the filter.
func (s *Store) ListClaimableItems(ctx context.Context, filter ClaimFilter) ([]models.ClaimableItem, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	n := 0
	add := func(clause string, value interface{}) {
		n++
		where += fmt.Sprintf(" AND %s = $%d", clause, n)
		args = append(args, value)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	if filter.Category != "" {
		add("category", filter.Category)
	}
	if filter.FNSKU != "" {
		add("fnsku", filter.FNSKU)
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM claimable_items "+where, args...); err != nil {
		return nil, 0, err
	}

	sortBy := "created_at"
	switch filter.SortBy {
	case "event_date", "status", "category", "created_at":
		sortBy = filter.SortBy
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT * FROM claimable_items %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		where, sortBy, dir, n+1, n+2)
	args = append(args, limit, filter.Offset)

	var items []models.ClaimableItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateClaimableItemStatus writes the status transition plus the lifecycle
// timestamps it implies.
func (s *Store) UpdateClaimableItemStatus(ctx context.Context, item *models.ClaimableItem) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE claimable_items
		SET status = $1, notes = $2, claim_submitted_date = $3,
			reimbursement_date = $4, updated_at = NOW()
		WHERE id = $5`,
		item.Status, item.Notes, item.ClaimSubmittedDate, item.ReimbursementDate, item.ID)
	return err
}

// GetClaimStats aggregates counts, quantities and estimated value per
// category and lifecycle bucket.
func (s *Store) GetClaimStats(ctx context.Context) ([]models.ClaimStats, error) {
	var stats []models.ClaimStats
	err := s.db.SelectContext(ctx, &stats, `
		SELECT category, status,
			COUNT(*) AS count,
			COALESCE(SUM(quantity), 0) AS total_quantity,
			COALESCE(SUM(estimated_value), 0) AS estimated_total
		FROM claimable_items
		GROUP BY category, status
		ORDER BY category, status`)
	return stats, err
}
