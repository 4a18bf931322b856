package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent represents a single inventory movement reported by the
// warehouse provider. Natural key: (fnsku, asin, event_date, event_type,
// reference_id, fulfillment_center).
type LedgerEvent struct {
	ID                   int64     `db:"id" json:"id"`
	FNSKU                string    `db:"fnsku" json:"fnsku"`
	ASIN                 string    `db:"asin" json:"asin"`
	SKU                  string    `db:"sku" json:"sku"`
	ProductTitle         string    `db:"product_title" json:"product_title"`
	EventDate            time.Time `db:"event_date" json:"event_date"`
	EventType            string    `db:"event_type" json:"event_type"`
	ReferenceID          string    `db:"reference_id" json:"reference_id,omitempty"`
	Quantity             int       `db:"quantity" json:"quantity"`
	FulfillmentCenter    string    `db:"fulfillment_center" json:"fulfillment_center,omitempty"`
	Disposition          string    `db:"disposition" json:"disposition,omitempty"`
	Reason               string    `db:"reason" json:"reason,omitempty"`
	ReconciledQuantity   int       `db:"reconciled_quantity" json:"reconciled_quantity"`
	UnreconciledQuantity int       `db:"unreconciled_quantity" json:"unreconciled_quantity"`
	Country              string    `db:"country" json:"country"`
	RawTimestamp         string    `db:"raw_timestamp" json:"raw_timestamp"`
	Status               string    `db:"status" json:"status"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Ledger event types reported by the provider
const (
	EventTypeShipments       = "Shipments"
	EventTypeWhseTransfers   = "WhseTransfers"
	EventTypeAdjustments     = "Adjustments"
	EventTypeReceipts        = "Receipts"
	EventTypeCustomerReturns = "CustomerReturns"
)

// Ledger event lifecycle statuses
const (
	EventStatusWaiting        = "WAITING"
	EventStatusClaimable      = "CLAIMABLE"
	EventStatusClaimInitiated = "CLAIM_INITIATED"
	EventStatusClaimed        = "CLAIMED"
	EventStatusPaid           = "PAID"
	EventStatusInvalid        = "INVALID"
	EventStatusResolved       = "RESOLVED"
)

// ReimbursedItem is a reimbursement the provider has already paid out.
// Ground truth of recovered value, used to suppress duplicate claims.
type ReimbursedItem struct {
	ID                      int64           `db:"id" json:"id"`
	ReimbursementID         string          `db:"reimbursement_id" json:"reimbursement_id"`
	CaseID                  string          `db:"case_id" json:"case_id,omitempty"`
	AmazonOrderID           string          `db:"amazon_order_id" json:"amazon_order_id,omitempty"`
	FNSKU                   string          `db:"fnsku" json:"fnsku"`
	ASIN                    string          `db:"asin" json:"asin"`
	SKU                     string          `db:"sku" json:"sku"`
	ProductName             string          `db:"product_name" json:"product_name"`
	Condition               string          `db:"condition" json:"condition,omitempty"`
	ApprovalDate            time.Time       `db:"approval_date" json:"approval_date"`
	QuantityCash            int             `db:"quantity_cash" json:"quantity_cash"`
	QuantityInventory       int             `db:"quantity_inventory" json:"quantity_inventory"`
	QuantityTotal           int             `db:"quantity_total" json:"quantity_total"`
	AmountPerUnit           decimal.Decimal `db:"amount_per_unit" json:"amount_per_unit"`
	AmountTotal             decimal.Decimal `db:"amount_total" json:"amount_total"`
	CurrencyUnit            string          `db:"currency_unit" json:"currency_unit"`
	OriginalReimbursementID string          `db:"original_reimbursement_id" json:"original_reimbursement_id,omitempty"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
}

// CustomerReturn is a unit a customer sent back. Dedup key:
// (order_id, fnsku, return_date).
type CustomerReturn struct {
	ID                  int64     `db:"id" json:"id"`
	OrderID             string    `db:"order_id" json:"order_id"`
	FNSKU               string    `db:"fnsku" json:"fnsku"`
	ASIN                string    `db:"asin" json:"asin"`
	SKU                 string    `db:"sku" json:"sku"`
	ReturnDate          time.Time `db:"return_date" json:"return_date"`
	Quantity            int       `db:"quantity" json:"quantity"`
	FulfillmentCenterID string    `db:"fulfillment_center_id" json:"fulfillment_center_id,omitempty"`
	DetailedDisposition string    `db:"detailed_disposition" json:"detailed_disposition,omitempty"`
	Reason              string    `db:"reason" json:"reason,omitempty"`
	Status              string    `db:"status" json:"status,omitempty"`
	LicensePlateNumber  string    `db:"license_plate_number" json:"license_plate_number,omitempty"`
	CustomerComments    string    `db:"customer_comments" json:"customer_comments,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Return statuses and dispositions that drive claim detection
const (
	ReturnStatusUnitReturned         = "Unit returned to inventory"
	ReturnDispositionCustomerDamaged = "CUSTOMER_DAMAGED"
)

// UnsuppressedInventoryRecord is a pricing/quantity snapshot used only for
// claim valuation. The whole table is replaced on every sync.
type UnsuppressedInventoryRecord struct {
	ID                int64           `db:"id" json:"id"`
	FNSKU             string          `db:"fnsku" json:"fnsku"`
	ASIN              string          `db:"asin" json:"asin"`
	SKU               string          `db:"sku" json:"sku"`
	ProductName       string          `db:"product_name" json:"product_name"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Currency          string          `db:"currency" json:"currency"`
	QuantityAvailable int             `db:"quantity_available" json:"quantity_available"`
	SyncedAt          time.Time       `db:"synced_at" json:"synced_at"`
}

// ClaimableItem is a derived candidate reimbursement claim.
type ClaimableItem struct {
	ID                 int64            `db:"id" json:"id"`
	FNSKU              string           `db:"fnsku" json:"fnsku"`
	ASIN               string           `db:"asin" json:"asin"`
	SKU                string           `db:"sku" json:"sku"`
	ProductName        string           `db:"product_name" json:"product_name"`
	Category           string           `db:"category" json:"category"`
	Status             string           `db:"status" json:"status"`
	Quantity           int              `db:"quantity" json:"quantity"`
	EstimatedValue     *decimal.Decimal `db:"estimated_value" json:"estimated_value,omitempty"`
	Currency           string           `db:"currency" json:"currency"`
	FulfillmentCenter  string           `db:"fulfillment_center" json:"fulfillment_center,omitempty"`
	EventDate          time.Time        `db:"event_date" json:"event_date"`
	ReferenceID        string           `db:"reference_id" json:"reference_id,omitempty"`
	Reason             string           `db:"reason" json:"reason"`
	Notes              string           `db:"notes" json:"notes,omitempty"`
	ClaimSubmittedDate *time.Time       `db:"claim_submitted_date" json:"claim_submitted_date,omitempty"`
	ReimbursementDate  *time.Time       `db:"reimbursement_date" json:"reimbursement_date,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Claim categories
const (
	ClaimCategoryLostWarehouse             = "LOST_WAREHOUSE"
	ClaimCategoryDamagedWarehouse          = "DAMAGED_WAREHOUSE"
	ClaimCategoryCustomerReturnNotReceived = "CUSTOMER_RETURN_NOT_RECEIVED"
	ClaimCategoryCustomerReturnDamaged     = "CUSTOMER_RETURN_DAMAGED"
)

// Claim statuses
const (
	ClaimStatusPending    = "PENDING"
	ClaimStatusClaimable  = "CLAIMABLE"
	ClaimStatusClaimed    = "CLAIMED"
	ClaimStatusReimbursed = "REIMBURSED"
	ClaimStatusDenied     = "DENIED"
	ClaimStatusExpired    = "EXPIRED"
)

// ValidClaimStatus reports whether s is a known claim status.
func ValidClaimStatus(s string) bool {
	switch s {
	case ClaimStatusPending, ClaimStatusClaimable, ClaimStatusClaimed,
		ClaimStatusReimbursed, ClaimStatusDenied, ClaimStatusExpired:
		return true
	}
	return false
}

// SyncLog is one row in the append-only sync audit trail.
type SyncLog struct {
	ID               int64      `db:"id" json:"id"`
	SyncType         string     `db:"sync_type" json:"sync_type"`
	StartDate        time.Time  `db:"start_date" json:"start_date"`
	EndDate          time.Time  `db:"end_date" json:"end_date"`
	Status           string     `db:"status" json:"status"`
	RecordsProcessed int        `db:"records_processed" json:"records_processed"`
	RecordsAdded     int        `db:"records_added" json:"records_added"`
	RecordsUpdated   int        `db:"records_updated" json:"records_updated"`
	ErrorMessage     string     `db:"error_message" json:"error_message,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// Sync log statuses
const (
	SyncStatusSuccess        = "SUCCESS"
	SyncStatusPartialSuccess = "PARTIAL_SUCCESS"
	SyncStatusFailed         = "FAILED"
)

// ClaimStats aggregates claimable items per category and lifecycle bucket.
type ClaimStats struct {
	Category       string          `db:"category" json:"category"`
	Status         string          `db:"status" json:"status"`
	Count          int             `db:"count" json:"count"`
	TotalQuantity  int             `db:"total_quantity" json:"total_quantity"`
	EstimatedTotal decimal.Decimal `db:"estimated_total" json:"estimated_total"`
}
