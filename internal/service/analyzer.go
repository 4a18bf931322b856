package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/store"
	"reimbursement-service/internal/util"
)

// Adjustment reason codes that signal warehouse losses
var (
	lostReasonCodes    = []string{"M", "5"}
	damagedReasonCodes = []string{"D", "W"}
)

// claimWindowDays bounds the fnsku+category dedup window for warehouse
// passes: a second claim within this many days of an existing one is
// considered the same loss.
const claimWindowDays = 30

// AnalyzerStore is the store snapshot the detection passes read and write.
type AnalyzerStore interface {
	ListAdjustmentEventsByReasons(ctx context.Context, reasons []string, minUnreconciled int) ([]models.LedgerEvent, error)
	ListCustomerReturnsByStatus(ctx context.Context, status string) ([]models.CustomerReturn, error)
	ListCustomerReturnsByDisposition(ctx context.Context, disposition string) ([]models.CustomerReturn, error)
	HasCustomerReturnEvent(ctx context.Context, fnsku string, since time.Time) (bool, error)
	HasReimbursementFor(ctx context.Context, fnsku, asin, orderID string, approvedAfter *time.Time) (bool, error)
	ClaimExists(ctx context.Context, fnsku, category string, windowStart, windowEnd time.Time) (bool, error)
	GetLatestUnitPrice(ctx context.Context, fnsku string) (decimal.Decimal, string, error)
	CreateClaimableItem(ctx context.Context, item *models.ClaimableItem) error
}

// ClaimEventPublisher announces newly derived claims.
type ClaimEventPublisher interface {
	PublishClaimableItemCreated(ctx context.Context, event *models.ClaimableItemCreatedEvent) error
}

// AnalysisResult reports what each detection pass produced.
type AnalysisResult struct {
	CreatedByPass map[string]int `json:"created_by_pass"`
	TotalCreated  int            `json:"total_created"`
	Errors        []string       `json:"errors,omitempty"`
}

// ClaimAnalyzer derives claimable items from ledger events, customer returns
// and known reimbursements. The five passes are independent, idempotent and
// fault-isolated.
type ClaimAnalyzer struct {
	store     AnalyzerStore
	publisher ClaimEventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewClaimAnalyzer creates an analyzer. publisher may be nil.
func NewClaimAnalyzer(store AnalyzerStore, publisher ClaimEventPublisher) *ClaimAnalyzer {
	return &ClaimAnalyzer{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Analyze runs all five detection passes. A failing pass is recorded in the
// result and does not block the others.
func (a *ClaimAnalyzer) Analyze(ctx context.Context) *AnalysisResult {
	ctx, span := util.StartSpan(ctx, "ClaimAnalyzer.Analyze")
	defer span.End()

	result := &AnalysisResult{CreatedByPass: make(map[string]int)}

	passes := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"lost_warehouse", a.passLostWarehouse},
		{"damaged_warehouse", a.passDamagedWarehouse},
		{"refund_without_return", a.passRefundWithoutReturn},
		{"lost_customer_return", a.passLostCustomerReturn},
		{"damaged_customer_return", a.passDamagedCustomerReturn},
	}

	for _, pass := range passes {
		created, err := pass.run(ctx)
		result.CreatedByPass[pass.name] = created
		result.TotalCreated += created
		if err != nil {
			a.logger.Error("Claim detection pass failed",
				zap.String("pass", pass.name), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", pass.name, err))
		}
	}

	a.logger.Info("Claim analysis completed",
		zap.Int("total_created", result.TotalCreated),
		zap.Int("errors", len(result.Errors)))
	return result
}

// passLostWarehouse detects adjustments with lost-stock reason codes and
// unreconciled units remaining.
func (a *ClaimAnalyzer) passLostWarehouse(ctx context.Context) (int, error) {
	events, err := a.store.ListAdjustmentEventsByReasons(ctx, lostReasonCodes, 1)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range events {
		e := &events[i]
		ok, err := a.createWarehouseClaim(ctx, e, models.ClaimCategoryLostWarehouse,
			e.UnreconciledQuantity,
			fmt.Sprintf("Inventory adjustment with reason code %s reported %d unit(s) lost in the warehouse and never reconciled", e.Reason, e.UnreconciledQuantity),
			nil)
		if err != nil {
			a.logger.Error("Failed to create lost warehouse claim",
				zap.String("fnsku", e.FNSKU), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// passDamagedWarehouse detects adjustments with damaged-stock reason codes.
// No quantity filter: damage is claimable even when reconciliation caught up.
func (a *ClaimAnalyzer) passDamagedWarehouse(ctx context.Context) (int, error) {
	events, err := a.store.ListAdjustmentEventsByReasons(ctx, damagedReasonCodes, 0)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range events {
		e := &events[i]
		quantity := e.Quantity
		if quantity < 0 {
			quantity = -quantity
		}
		if quantity == 0 {
			quantity = e.UnreconciledQuantity
		}
		if quantity == 0 {
			quantity = 1
		}

		// Damaged-stock suppression also requires the reimbursement to
		// postdate the damage event.
		approvedAfter := e.EventDate
		ok, err := a.createWarehouseClaim(ctx, e, models.ClaimCategoryDamagedWarehouse,
			quantity,
			fmt.Sprintf("Inventory adjustment with reason code %s reported %d unit(s) damaged in the warehouse", e.Reason, quantity),
			&approvedAfter)
		if err != nil {
			a.logger.Error("Failed to create damaged warehouse claim",
				zap.String("fnsku", e.FNSKU), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// passRefundWithoutReturn is a documented placeholder. Detecting refunds
// that never produced a customer return needs order-level refund data the
// sync does not ingest yet, so this pass always reports zero.
func (a *ClaimAnalyzer) passRefundWithoutReturn(ctx context.Context) (int, error) {
	return 0, nil
}

// passLostCustomerReturn detects returns marked as returned to inventory
// lacking a corresponding CustomerReturns ledger event at or after the
// return date.
func (a *ClaimAnalyzer) passLostCustomerReturn(ctx context.Context) (int, error) {
	returns, err := a.store.ListCustomerReturnsByStatus(ctx, models.ReturnStatusUnitReturned)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range returns {
		r := &returns[i]
		received, err := a.store.HasCustomerReturnEvent(ctx, r.FNSKU, r.ReturnDate)
		if err != nil {
			a.logger.Error("Failed to check return receipt",
				zap.String("fnsku", r.FNSKU), zap.Error(err))
			continue
		}
		if received {
			continue
		}

		ok, err := a.createReturnClaim(ctx, r, models.ClaimCategoryCustomerReturnNotReceived,
			fmt.Sprintf("Customer return for order %s is marked %q but no matching inventory receipt was recorded", r.OrderID, r.Status))
		if err != nil {
			a.logger.Error("Failed to create lost return claim",
				zap.String("fnsku", r.FNSKU), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// passDamagedCustomerReturn detects returns the customer damaged.
func (a *ClaimAnalyzer) passDamagedCustomerReturn(ctx context.Context) (int, error) {
	returns, err := a.store.ListCustomerReturnsByDisposition(ctx, models.ReturnDispositionCustomerDamaged)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range returns {
		r := &returns[i]
		ok, err := a.createReturnClaim(ctx, r, models.ClaimCategoryCustomerReturnDamaged,
			fmt.Sprintf("Customer return for order %s came back with disposition %s", r.OrderID, r.DetailedDisposition))
		if err != nil {
			a.logger.Error("Failed to create damaged return claim",
				zap.String("fnsku", r.FNSKU), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// createWarehouseClaim applies suppression and dedup, then creates a claim
// for a ledger event candidate. Returns true when a claim was created.
func (a *ClaimAnalyzer) createWarehouseClaim(ctx context.Context, e *models.LedgerEvent, category string, quantity int, reason string, approvedAfter *time.Time) (bool, error) {
	suppressed, err := a.store.HasReimbursementFor(ctx, e.FNSKU, e.ASIN, "", approvedAfter)
	if err != nil {
		return false, err
	}
	if suppressed {
		util.ClaimsSuppressedTotal.WithLabelValues("reimbursed").Inc()
		return false, nil
	}

	windowStart := e.EventDate.AddDate(0, 0, -claimWindowDays)
	windowEnd := e.EventDate.AddDate(0, 0, claimWindowDays)
	exists, err := a.store.ClaimExists(ctx, e.FNSKU, category, windowStart, windowEnd)
	if err != nil {
		return false, err
	}
	if exists {
		util.ClaimsSuppressedTotal.WithLabelValues("existing_claim").Inc()
		return false, nil
	}

	item := &models.ClaimableItem{
		FNSKU:             e.FNSKU,
		ASIN:              e.ASIN,
		SKU:               e.SKU,
		ProductName:       e.ProductTitle,
		Category:          category,
		Status:            models.ClaimStatusClaimable,
		Quantity:          quantity,
		FulfillmentCenter: e.FulfillmentCenter,
		EventDate:         e.EventDate,
		ReferenceID:       e.ReferenceID,
		Reason:            reason,
	}
	a.estimateValue(ctx, item)

	return a.persistClaim(ctx, item)
}

// createReturnClaim applies suppression and dedup for a customer return
// candidate. Returns dedup by fnsku+category only, no date window.
func (a *ClaimAnalyzer) createReturnClaim(ctx context.Context, r *models.CustomerReturn, category, reason string) (bool, error) {
	suppressed, err := a.store.HasReimbursementFor(ctx, r.FNSKU, "", r.OrderID, nil)
	if err != nil {
		return false, err
	}
	if suppressed {
		util.ClaimsSuppressedTotal.WithLabelValues("reimbursed").Inc()
		return false, nil
	}

	exists, err := a.store.ClaimExists(ctx, r.FNSKU, category, time.Time{}, time.Time{})
	if err != nil {
		return false, err
	}
	if exists {
		util.ClaimsSuppressedTotal.WithLabelValues("existing_claim").Inc()
		return false, nil
	}

	item := &models.ClaimableItem{
		FNSKU:             r.FNSKU,
		ASIN:              r.ASIN,
		SKU:               r.SKU,
		Category:          category,
		Status:            models.ClaimStatusClaimable,
		Quantity:          r.Quantity,
		FulfillmentCenter: r.FulfillmentCenterID,
		EventDate:         r.ReturnDate,
		ReferenceID:       r.OrderID,
		Reason:            reason,
	}
	a.estimateValue(ctx, item)

	return a.persistClaim(ctx, item)
}

// estimateValue prices the claim from the latest inventory snapshot. The
// value stays unset, not zero, when no price is known.
func (a *ClaimAnalyzer) estimateValue(ctx context.Context, item *models.ClaimableItem) {
	price, currency, err := a.store.GetLatestUnitPrice(ctx, item.FNSKU)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("Failed to look up unit price",
				zap.String("fnsku", item.FNSKU), zap.Error(err))
		}
		return
	}
	if price.IsZero() {
		return
	}

	value := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	item.EstimatedValue = &value
	item.Currency = currency
}

func (a *ClaimAnalyzer) persistClaim(ctx context.Context, item *models.ClaimableItem) (bool, error) {
	if err := a.store.CreateClaimableItem(ctx, item); err != nil {
		return false, err
	}

	util.ClaimableItemsCreatedTotal.WithLabelValues(item.Category).Inc()
	a.logger.Info("Claimable item created",
		zap.String("fnsku", item.FNSKU),
		zap.String("category", item.Category),
		zap.Int("quantity", item.Quantity))

	if a.publisher != nil {
		event := &models.ClaimableItemCreatedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeClaimableItemCreated,
				Timestamp: a.now(),
			},
			ClaimID:  item.ID,
			FNSKU:    item.FNSKU,
			Category: item.Category,
			Quantity: item.Quantity,
		}
		if err := a.publisher.PublishClaimableItemCreated(ctx, event); err != nil {
			a.logger.Error("Failed to publish ClaimableItemCreated event", zap.Error(err))
		}
	}
	return true, nil
}
