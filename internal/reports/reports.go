package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Report types requested from the provider
const (
	TypeLedger                = "GET_LEDGER_DETAIL_VIEW_DATA"
	TypeReimbursements        = "GET_FBA_REIMBURSEMENTS_DATA"
	TypeCustomerReturns       = "GET_FBA_FULFILLMENT_CUSTOMER_RETURNS_DATA"
	TypeUnsuppressedInventory = "GET_FBA_MYI_UNSUPPRESSED_INVENTORY_DATA"
)

// Sync step names, also used as sync_log sync types
const (
	StepReimbursements        = "reimbursements"
	StepCustomerReturns       = "customer_returns"
	StepInventoryLedger       = "inventory_ledger"
	StepUnsuppressedInventory = "unsuppressed_inventory"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseDate(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("field %q: empty date", field)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("field %q: unparseable date %q", field, value)
}

func parseInt(value, field string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("field %q: unparseable integer %q", field, value)
	}
	return n, nil
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %q: unparseable amount %q", field, value)
	}
	return d, nil
}
