package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"reimbursement-service/internal/models"
)

// UpsertReimbursedItem creates or refreshes a reimbursement keyed by its
// provider id. Returns true when a new row was inserted.
func (s *Store) UpsertReimbursedItem(ctx context.Context, item *models.ReimbursedItem) (bool, error) {
	var existingID int64
	err := s.db.GetContext(ctx, &existingID,
		"SELECT id FROM reimbursed_items WHERE reimbursement_id = $1", item.ReimbursementID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if errors.Is(err, sql.ErrNoRows) {
		query := `
			INSERT INTO reimbursed_items (reimbursement_id, case_id, amazon_order_id, fnsku,
				asin, sku, product_name, condition, approval_date, quantity_cash,
				quantity_inventory, quantity_total, amount_per_unit, amount_total,
				currency_unit, original_reimbursement_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id, created_at`
		err := s.db.GetContext(ctx, item, query,
			item.ReimbursementID, item.CaseID, item.AmazonOrderID, item.FNSKU,
			item.ASIN, item.SKU, item.ProductName, item.Condition, item.ApprovalDate,
			item.QuantityCash, item.QuantityInventory, item.QuantityTotal,
			item.AmountPerUnit, item.AmountTotal, item.CurrencyUnit, item.OriginalReimbursementID)
		return err == nil, classify(err)
	}

	item.ID = existingID
	_, err = s.db.ExecContext(ctx, `
		UPDATE reimbursed_items
		SET quantity_cash = $1, quantity_inventory = $2, quantity_total = $3,
			amount_per_unit = $4, amount_total = $5, condition = $6
		WHERE id = $7`,
		item.QuantityCash, item.QuantityInventory, item.QuantityTotal,
		item.AmountPerUnit, item.AmountTotal, item.Condition, existingID)
	return false, err
}

// HasReimbursementFor reports whether a reimbursement already covers the
// fnsku, matched through asin or order id. A non-nil approvedAfter restricts
// the match to reimbursements approved at or after that date.
func (s *Store) HasReimbursementFor(ctx context.Context, fnsku, asin, orderID string, approvedAfter *time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM reimbursed_items
			WHERE fnsku = $1
			  AND (($2 <> '' AND asin = $2) OR ($3 <> '' AND amazon_order_id = $3))
			  AND ($4::timestamptz IS NULL OR approval_date >= $4))`
	var exists bool
	err := s.db.GetContext(ctx, &exists, query, fnsku, asin, orderID, approvedAfter)
	return exists, err
}

// UpsertCustomerReturn creates or refreshes a return keyed by
// (order_id, fnsku, return_date). Returns true when inserted.
func (s *Store) UpsertCustomerReturn(ctx context.Context, ret *models.CustomerReturn) (bool, error) {
	var existingID int64
	err := s.db.GetContext(ctx, &existingID, `
		SELECT id FROM customer_returns
		WHERE order_id = $1 AND fnsku = $2 AND return_date = $3`,
		ret.OrderID, ret.FNSKU, ret.ReturnDate)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if errors.Is(err, sql.ErrNoRows) {
		query := `
			INSERT INTO customer_returns (order_id, fnsku, asin, sku, return_date, quantity,
				fulfillment_center_id, detailed_disposition, reason, status,
				license_plate_number, customer_comments)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at`
		err := s.db.GetContext(ctx, ret, query,
			ret.OrderID, ret.FNSKU, ret.ASIN, ret.SKU, ret.ReturnDate, ret.Quantity,
			ret.FulfillmentCenterID, ret.DetailedDisposition, ret.Reason, ret.Status,
			ret.LicensePlateNumber, ret.CustomerComments)
		return err == nil, classify(err)
	}

	ret.ID = existingID
	_, err = s.db.ExecContext(ctx, `
		UPDATE customer_returns
		SET quantity = $1, detailed_disposition = $2, status = $3, customer_comments = $4
		WHERE id = $5`,
		ret.Quantity, ret.DetailedDisposition, ret.Status, ret.CustomerComments, existingID)
	return false, err
}

// ListCustomerReturnsByStatus returns all returns with the given status.
func (s *Store) ListCustomerReturnsByStatus(ctx context.Context, status string) ([]models.CustomerReturn, error) {
	var returns []models.CustomerReturn
	err := s.db.SelectContext(ctx, &returns,
		"SELECT * FROM customer_returns WHERE status = $1 ORDER BY return_date", status)
	return returns, err
}

// ListCustomerReturnsByDisposition returns all returns with the given
// detailed disposition.
func (s *Store) ListCustomerReturnsByDisposition(ctx context.Context, disposition string) ([]models.CustomerReturn, error) {
	var returns []models.CustomerReturn
	err := s.db.SelectContext(ctx, &returns,
		"SELECT * FROM customer_returns WHERE detailed_disposition = $1 ORDER BY return_date", disposition)
	return returns, err
}

// ReplaceUnsuppressedInventory clears the valuation snapshot and inserts the
// new one atomically. Latest snapshot wins, no incremental merge.
func (s *Store) ReplaceUnsuppressedInventory(ctx context.Context, records []models.UnsuppressedInventoryRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM unsuppressed_inventory"); err != nil {
		return err
	}

	for i := range records {
		r := &records[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO unsuppressed_inventory (fnsku, asin, sku, product_name, price,
				currency, quantity_available, synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.FNSKU, r.ASIN, r.SKU, r.ProductName, r.Price,
			r.Currency, r.QuantityAvailable, r.SyncedAt)
		if err != nil {
			return classify(err)
		}
	}

	return tx.Commit()
}

// GetLatestUnitPrice returns the snapshot price for an fnsku, or ErrNotFound
// when the snapshot has no price for it.
func (s *Store) GetLatestUnitPrice(ctx context.Context, fnsku string) (decimal.Decimal, string, error) {
	var row struct {
		Price    decimal.Decimal `db:"price"`
		Currency string          `db:"currency"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT price, currency FROM unsuppressed_inventory
		WHERE fnsku = $1 ORDER BY synced_at DESC LIMIT 1`, fnsku)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, "", ErrNotFound
	}
	if err != nil {
		return decimal.Zero, "", err
	}
	return row.Price, row.Currency, nil
}
