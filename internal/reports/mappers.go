package reports

import (
	"fmt"
	"time"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/provider"
)

// MapLedgerRow converts a ledger report row into a LedgerEvent. Column names
// are kebab-case with a camelCase fallback per field.
func MapLedgerRow(row provider.Row) (*models.LedgerEvent, error) {
	fnsku := row.Field("fnsku", "FNSKU")
	if fnsku == "" {
		return nil, fmt.Errorf("ledger row missing fnsku")
	}

	eventType := row.Field("event-type", "eventType")
	if eventType == "" {
		return nil, fmt.Errorf("ledger row missing event-type (fnsku=%s)", fnsku)
	}

	eventDate, err := parseDate(row.Field("date", "eventDate"), "date")
	if err != nil {
		return nil, fmt.Errorf("ledger row (fnsku=%s): %w", fnsku, err)
	}

	quantity, err := parseInt(row.Field("quantity", "Quantity"), "quantity")
	if err != nil {
		return nil, fmt.Errorf("ledger row (fnsku=%s): %w", fnsku, err)
	}
	reconciled, err := parseInt(row.Field("reconciled-quantity", "reconciledQuantity"), "reconciled-quantity")
	if err != nil {
		return nil, fmt.Errorf("ledger row (fnsku=%s): %w", fnsku, err)
	}
	unreconciled, err := parseInt(row.Field("unreconciled-quantity", "unreconciledQuantity"), "unreconciled-quantity")
	if err != nil {
		return nil, fmt.Errorf("ledger row (fnsku=%s): %w", fnsku, err)
	}

	return &models.LedgerEvent{
		FNSKU:                fnsku,
		ASIN:                 row.Field("asin", "ASIN"),
		SKU:                  row.Field("msku", "sku", "MSKU"),
		ProductTitle:         row.Field("title", "productTitle"),
		EventDate:            eventDate,
		EventType:            eventType,
		ReferenceID:          row.Field("reference-id", "referenceId"),
		Quantity:             quantity,
		FulfillmentCenter:    row.Field("fulfillment-center", "fulfillmentCenter"),
		Disposition:          row.Field("disposition", "Disposition"),
		Reason:               row.Field("reason", "Reason"),
		ReconciledQuantity:   reconciled,
		UnreconciledQuantity: unreconciled,
		Country:              row.Field("country", "Country"),
		RawTimestamp:         row.Field("date-and-time", "date", "eventDate"),
	}, nil
}

// MapReimbursementRow converts a reimbursements report row.
func MapReimbursementRow(row provider.Row) (*models.ReimbursedItem, error) {
	id := row.Field("reimbursement-id", "reimbursementId")
	if id == "" {
		return nil, fmt.Errorf("reimbursement row missing reimbursement-id")
	}

	approvalDate, err := parseDate(row.Field("approval-date", "approvalDate"), "approval-date")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}

	cash, err := parseInt(row.Field("quantity-reimbursed-cash", "quantityReimbursedCash"), "quantity-reimbursed-cash")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}
	inventory, err := parseInt(row.Field("quantity-reimbursed-inventory", "quantityReimbursedInventory"), "quantity-reimbursed-inventory")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}
	total, err := parseInt(row.Field("quantity-reimbursed-total", "quantityReimbursedTotal"), "quantity-reimbursed-total")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}

	perUnit, err := parseDecimal(row.Field("amount-per-unit", "amountPerUnit"), "amount-per-unit")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}
	amountTotal, err := parseDecimal(row.Field("amount-total", "amountTotal"), "amount-total")
	if err != nil {
		return nil, fmt.Errorf("reimbursement row (id=%s): %w", id, err)
	}

	return &models.ReimbursedItem{
		ReimbursementID:         id,
		CaseID:                  row.Field("case-id", "caseId"),
		AmazonOrderID:           row.Field("amazon-order-id", "amazonOrderId"),
		FNSKU:                   row.Field("fnsku", "FNSKU"),
		ASIN:                    row.Field("asin", "ASIN"),
		SKU:                     row.Field("sku", "SKU"),
		ProductName:             row.Field("product-name", "productName"),
		Condition:               row.Field("condition", "Condition"),
		ApprovalDate:            approvalDate,
		QuantityCash:            cash,
		QuantityInventory:       inventory,
		QuantityTotal:           total,
		AmountPerUnit:           perUnit,
		AmountTotal:             amountTotal,
		CurrencyUnit:            row.Field("currency-unit", "currencyUnit"),
		OriginalReimbursementID: row.Field("original-reimbursement-id", "originalReimbursementId"),
	}, nil
}

// MapCustomerReturnRow converts a customer returns report row.
func MapCustomerReturnRow(row provider.Row) (*models.CustomerReturn, error) {
	orderID := row.Field("order-id", "orderId")
	fnsku := row.Field("fnsku", "FNSKU")
	if orderID == "" || fnsku == "" {
		return nil, fmt.Errorf("return row missing order-id or fnsku (order=%q fnsku=%q)", orderID, fnsku)
	}

	returnDate, err := parseDate(row.Field("return-date", "returnDate"), "return-date")
	if err != nil {
		return nil, fmt.Errorf("return row (order=%s): %w", orderID, err)
	}
	quantity, err := parseInt(row.Field("quantity", "Quantity"), "quantity")
	if err != nil {
		return nil, fmt.Errorf("return row (order=%s): %w", orderID, err)
	}

	return &models.CustomerReturn{
		OrderID:             orderID,
		FNSKU:               fnsku,
		ASIN:                row.Field("asin", "ASIN"),
		SKU:                 row.Field("sku", "SKU"),
		ReturnDate:          returnDate,
		Quantity:            quantity,
		FulfillmentCenterID: row.Field("fulfillment-center-id", "fulfillmentCenterId"),
		DetailedDisposition: row.Field("detailed-disposition", "detailedDisposition"),
		Reason:              row.Field("reason", "Reason"),
		Status:              row.Field("status", "Status"),
		LicensePlateNumber:  row.Field("license-plate-number", "licensePlateNumber"),
		CustomerComments:    row.Field("customer-comments", "customerComments"),
	}, nil
}

// MapUnsuppressedInventoryRow converts an unsuppressed inventory report row.
func MapUnsuppressedInventoryRow(row provider.Row, syncedAt time.Time) (*models.UnsuppressedInventoryRecord, error) {
	fnsku := row.Field("fnsku", "FNSKU")
	if fnsku == "" {
		return nil, fmt.Errorf("inventory row missing fnsku")
	}

	price, err := parseDecimal(row.Field("your-price", "yourPrice", "price"), "your-price")
	if err != nil {
		return nil, fmt.Errorf("inventory row (fnsku=%s): %w", fnsku, err)
	}
	quantity, err := parseInt(row.Field("afn-fulfillable-quantity", "afnFulfillableQuantity", "quantity"), "afn-fulfillable-quantity")
	if err != nil {
		return nil, fmt.Errorf("inventory row (fnsku=%s): %w", fnsku, err)
	}

	return &models.UnsuppressedInventoryRecord{
		FNSKU:             fnsku,
		ASIN:              row.Field("asin", "ASIN"),
		SKU:               row.Field("sku", "SKU"),
		ProductName:       row.Field("product-name", "productName"),
		Price:             price,
		Currency:          row.Field("currency", "Currency"),
		QuantityAvailable: quantity,
		SyncedAt:          syncedAt,
	}, nil
}
