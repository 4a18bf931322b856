package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"reimbursement-service/internal/models"
	"reimbursement-service/internal/provider"
	"reimbursement-service/internal/store"
)

// fakeStore is an in-memory stand-in for the sqlx store, implementing the
// narrow interfaces the services consume.
type fakeStore struct {
	events   []*models.LedgerEvent
	returns  []*models.CustomerReturn
	reimbs   []*models.ReimbursedItem
	claims   []*models.ClaimableItem
	invent   []models.UnsuppressedInventoryRecord
	syncLogs []models.SyncLog
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) GetLedgerEventByNaturalKey(_ context.Context, e *models.LedgerEvent) (*models.LedgerEvent, error) {
	for _, existing := range f.events {
		if existing.FNSKU == e.FNSKU && existing.ASIN == e.ASIN &&
			existing.EventDate.Equal(e.EventDate) && existing.EventType == e.EventType &&
			existing.ReferenceID == e.ReferenceID && existing.FulfillmentCenter == e.FulfillmentCenter {
			cp := *existing
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CreateLedgerEvent(ctx context.Context, e *models.LedgerEvent) error {
	if existing, err := f.GetLedgerEventByNaturalKey(ctx, e); err == nil && existing != nil {
		return fmt.Errorf("%w: ledger event", store.ErrDuplicate)
	}
	e.ID = f.id()
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeStore) UpdateLedgerEvent(_ context.Context, e *models.LedgerEvent) error {
	for _, existing := range f.events {
		if existing.ID == e.ID {
			existing.Quantity = e.Quantity
			existing.ReconciledQuantity = e.ReconciledQuantity
			existing.UnreconciledQuantity = e.UnreconciledQuantity
			existing.Disposition = e.Disposition
			existing.ProductTitle = e.ProductTitle
			existing.Status = e.Status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) UpdateLedgerEventStatus(_ context.Context, id int64, status string) error {
	for _, existing := range f.events {
		if existing.ID == id {
			existing.Status = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ListWaitingEventsBefore(_ context.Context, cutoff time.Time) ([]models.LedgerEvent, error) {
	var out []models.LedgerEvent
	for _, e := range f.events {
		if e.Status == models.EventStatusWaiting && !e.EventDate.After(cutoff) && e.UnreconciledQuantity > 0 {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListClaimableEventsFullyReconciled(_ context.Context) ([]models.LedgerEvent, error) {
	var out []models.LedgerEvent
	for _, e := range f.events {
		if e.Status == models.EventStatusClaimable && e.UnreconciledQuantity == 0 {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteResolvedEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var kept []*models.LedgerEvent
	var deleted int64
	for _, e := range f.events {
		if e.Status == models.EventStatusResolved && e.EventDate.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return deleted, nil
}

func (f *fakeStore) ListAdjustmentEventsByReasons(_ context.Context, reasons []string, minUnreconciled int) ([]models.LedgerEvent, error) {
	var out []models.LedgerEvent
	for _, e := range f.events {
		if e.EventType != models.EventTypeAdjustments || e.UnreconciledQuantity < minUnreconciled {
			continue
		}
		for _, r := range reasons {
			if e.Reason == r {
				out = append(out, *e)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ListCustomerReturnsByStatus(_ context.Context, status string) ([]models.CustomerReturn, error) {
	var out []models.CustomerReturn
	for _, r := range f.returns {
		if r.Status == status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ListCustomerReturnsByDisposition(_ context.Context, disposition string) ([]models.CustomerReturn, error) {
	var out []models.CustomerReturn
	for _, r := range f.returns {
		if r.DetailedDisposition == disposition {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) HasCustomerReturnEvent(_ context.Context, fnsku string, since time.Time) (bool, error) {
	for _, e := range f.events {
		if e.FNSKU == fnsku && e.EventType == models.EventTypeCustomerReturns && !e.EventDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasReimbursementFor(_ context.Context, fnsku, asin, orderID string, approvedAfter *time.Time) (bool, error) {
	for _, r := range f.reimbs {
		if r.FNSKU != fnsku {
			continue
		}
		matched := (asin != "" && r.ASIN == asin) || (orderID != "" && r.AmazonOrderID == orderID)
		if !matched {
			continue
		}
		if approvedAfter != nil && r.ApprovalDate.Before(*approvedAfter) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) ClaimExists(_ context.Context, fnsku, category string, windowStart, windowEnd time.Time) (bool, error) {
	for _, c := range f.claims {
		if c.FNSKU != fnsku || c.Category != category {
			continue
		}
		if !windowStart.IsZero() && c.EventDate.Before(windowStart) {
			continue
		}
		if !windowEnd.IsZero() && c.EventDate.After(windowEnd) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) GetLatestUnitPrice(_ context.Context, fnsku string) (decimal.Decimal, string, error) {
	for _, r := range f.invent {
		if r.FNSKU == fnsku {
			return r.Price, r.Currency, nil
		}
	}
	return decimal.Zero, "", store.ErrNotFound
}

func (f *fakeStore) CreateClaimableItem(_ context.Context, item *models.ClaimableItem) error {
	item.ID = f.id()
	cp := *item
	f.claims = append(f.claims, &cp)
	return nil
}

func (f *fakeStore) GetClaimableItemByID(_ context.Context, id int64) (*models.ClaimableItem, error) {
	for _, c := range f.claims {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: claim %d", store.ErrNotFound, id)
}

func (f *fakeStore) UpdateClaimableItemStatus(_ context.Context, item *models.ClaimableItem) error {
	for _, c := range f.claims {
		if c.ID == item.ID {
			c.Status = item.Status
			c.Notes = item.Notes
			c.ClaimSubmittedDate = item.ClaimSubmittedDate
			c.ReimbursementDate = item.ReimbursementDate
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) ListClaimableItems(_ context.Context, filter store.ClaimFilter) ([]models.ClaimableItem, int, error) {
	var out []models.ClaimableItem
	for _, c := range f.claims {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.FNSKU != "" && c.FNSKU != filter.FNSKU {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeStore) GetClaimStats(_ context.Context) ([]models.ClaimStats, error) {
	byKey := map[string]*models.ClaimStats{}
	for _, c := range f.claims {
		key := c.Category + "|" + c.Status
		s, ok := byKey[key]
		if !ok {
			s = &models.ClaimStats{Category: c.Category, Status: c.Status}
			byKey[key] = s
		}
		s.Count++
		s.TotalQuantity += c.Quantity
		if c.EstimatedValue != nil {
			s.EstimatedTotal = s.EstimatedTotal.Add(*c.EstimatedValue)
		}
	}
	var out []models.ClaimStats
	for _, s := range byKey {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) GetRecentSyncLogs(_ context.Context, limit int) ([]models.SyncLog, error) {
	if limit > len(f.syncLogs) {
		limit = len(f.syncLogs)
	}
	out := make([]models.SyncLog, limit)
	copy(out, f.syncLogs[len(f.syncLogs)-limit:])
	return out, nil
}

func (f *fakeStore) UpsertReimbursedItem(_ context.Context, item *models.ReimbursedItem) (bool, error) {
	for _, existing := range f.reimbs {
		if existing.ReimbursementID == item.ReimbursementID {
			*existing = *item
			return false, nil
		}
	}
	item.ID = f.id()
	cp := *item
	f.reimbs = append(f.reimbs, &cp)
	return true, nil
}

func (f *fakeStore) UpsertCustomerReturn(_ context.Context, ret *models.CustomerReturn) (bool, error) {
	for _, existing := range f.returns {
		if existing.OrderID == ret.OrderID && existing.FNSKU == ret.FNSKU && existing.ReturnDate.Equal(ret.ReturnDate) {
			*existing = *ret
			return false, nil
		}
	}
	ret.ID = f.id()
	cp := *ret
	f.returns = append(f.returns, &cp)
	return true, nil
}

func (f *fakeStore) ReplaceUnsuppressedInventory(_ context.Context, records []models.UnsuppressedInventoryRecord) error {
	f.invent = append([]models.UnsuppressedInventoryRecord(nil), records...)
	return nil
}

func (f *fakeStore) CreateSyncLog(_ context.Context, entry *models.SyncLog) error {
	entry.ID = f.id()
	f.syncLogs = append(f.syncLogs, *entry)
	return nil
}

// fakeFetcher serves canned report bodies per report type and fails the
// types listed in errs.
type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, reportType string, _, _ time.Time) (*provider.Table, error) {
	if err, ok := f.errs[reportType]; ok {
		return nil, err
	}
	body, ok := f.bodies[reportType]
	if !ok {
		return nil, fmt.Errorf("no fixture for report type %s", reportType)
	}
	return provider.ParseTable(body)
}

// fakePublisher records published events.
type fakePublisher struct {
	claimEvents  []*models.ClaimableItemCreatedEvent
	syncEvents   []*models.SyncCompletedEvent
	statusEvents []*models.ClaimStatusChangedEvent
}

func (p *fakePublisher) PublishClaimableItemCreated(_ context.Context, e *models.ClaimableItemCreatedEvent) error {
	p.claimEvents = append(p.claimEvents, e)
	return nil
}

func (p *fakePublisher) PublishSyncCompleted(_ context.Context, e *models.SyncCompletedEvent) error {
	p.syncEvents = append(p.syncEvents, e)
	return nil
}

func (p *fakePublisher) PublishClaimStatusChanged(_ context.Context, e *models.ClaimStatusChangedEvent) error {
	p.statusEvents = append(p.statusEvents, e)
	return nil
}

// fakeLocker hands the lock to one holder at a time.
type fakeLocker struct {
	held map[string]bool
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

// tsv joins tab-separated lines into a report body.
func tsv(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
