package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
)

type fakeRepo struct {
	rows         map[uuid.UUID]*models.InventoryItem
	logs         []models.InventoryLog
	availability map[uuid.UUID]bool
	drift        []AvailabilityDrift
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		rows:         make(map[uuid.UUID]*models.InventoryItem),
		availability: make(map[uuid.UUID]bool),
	}
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindForUpdate(ctx context.Context, menuItemIDs []uuid.UUID) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	for _, id := range menuItemIDs {
		if row, ok := f.rows[id]; ok {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateStock(ctx context.Context, menuItemID uuid.UUID, stockQty int) error {
	f.rows[menuItemID].StockQty = stockQty
	return nil
}

func (f *fakeRepo) AppendLog(ctx context.Context, entry models.InventoryLog) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeRepo) LogExists(ctx context.Context, changeType enums.InventoryChangeType, reference string) (bool, error) {
	for _, entry := range f.logs {
		if entry.ChangeType == changeType && entry.Reference != nil && *entry.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) SetMenuItemAvailability(ctx context.Context, menuItemID uuid.UUID, available bool) error {
	f.availability[menuItemID] = available
	return nil
}

func (f *fakeRepo) FindAvailabilityDrift(ctx context.Context, limit int) ([]AvailabilityDrift, error) {
	return f.drift, nil
}

func (f *fakeRepo) ListBelowThreshold(ctx context.Context, restaurantID uuid.UUID) ([]models.InventoryItem, error) {
	var out []models.InventoryItem
	for _, row := range f.rows {
		if row.RestaurantID == restaurantID && row.StockQty <= row.ReorderThreshold {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeRepo) seed(stock int) uuid.UUID {
	id := uuid.New()
	f.rows[id] = &models.InventoryItem{MenuItemID: id, RestaurantID: uuid.New(), StockQty: stock}
	return id
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newLedger(t *testing.T, repo *fakeRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Tx: passthroughTx{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestDeductFlipsAvailabilityAtZero(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(3)
	ledger := newLedger(t, repo)
	orderID := uuid.New()

	err := ledger.DeductForOrder(context.Background(), orderID, []Adjustment{{MenuItemID: itemID, Quantity: 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.rows[itemID].StockQty != 0 {
		t.Fatalf("expected 0 stock, got %d", repo.rows[itemID].StockQty)
	}
	if available, ok := repo.availability[itemID]; !ok || available {
		t.Fatalf("expected availability flipped to false")
	}
	if len(repo.logs) != 1 || repo.logs[0].Delta != -3 {
		t.Fatalf("expected one log with delta -3, got %+v", repo.logs)
	}
}

func TestDeductInsufficientStockAbortsWholeBatch(t *testing.T) {
	repo := newFakeRepo()
	plenty := repo.seed(10)
	scarce := repo.seed(3)
	ledger := newLedger(t, repo)

	err := ledger.DeductForOrder(context.Background(), uuid.New(), []Adjustment{
		{MenuItemID: plenty, Quantity: 2},
		{MenuItemID: scarce, Quantity: 4},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeExhausted) {
		t.Fatalf("expected RESOURCE_EXHAUSTED, got %v", err)
	}
	if repo.rows[plenty].StockQty != 10 || repo.rows[scarce].StockQty != 3 {
		t.Fatalf("no row may change when the batch aborts")
	}
	if len(repo.logs) != 0 {
		t.Fatalf("no log entries expected on abort")
	}
}

func TestDeductReplayIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(5)
	ledger := newLedger(t, repo)
	orderID := uuid.New()
	items := []Adjustment{{MenuItemID: itemID, Quantity: 2}}

	if err := ledger.DeductForOrder(context.Background(), orderID, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ledger.DeductForOrder(context.Background(), orderID, items); err != nil {
		t.Fatalf("replay should succeed: %v", err)
	}
	if repo.rows[itemID].StockQty != 3 {
		t.Fatalf("replay must not deduct twice, got %d", repo.rows[itemID].StockQty)
	}
	if len(repo.logs) != 1 {
		t.Fatalf("expected one log entry, got %d", len(repo.logs))
	}
}

func TestDeductUnknownItemFails(t *testing.T) {
	repo := newFakeRepo()
	ledger := newLedger(t, repo)

	err := ledger.DeductForOrder(context.Background(), uuid.New(), []Adjustment{{MenuItemID: uuid.New(), Quantity: 1}})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestRestockRestoresAvailability(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(0)
	ledger := newLedger(t, repo)
	orderID := uuid.New()

	err := ledger.RestockForOrder(context.Background(), orderID, []Adjustment{{MenuItemID: itemID, Quantity: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.rows[itemID].StockQty != 2 {
		t.Fatalf("expected stock 2, got %d", repo.rows[itemID].StockQty)
	}
	if available := repo.availability[itemID]; !available {
		t.Fatalf("expected availability flipped back to true")
	}

	// Replaying the same cancellation must not restock twice.
	if err := ledger.RestockForOrder(context.Background(), orderID, []Adjustment{{MenuItemID: itemID, Quantity: 2}}); err != nil {
		t.Fatalf("replay should succeed: %v", err)
	}
	if repo.rows[itemID].StockQty != 2 {
		t.Fatalf("replay must not restock twice, got %d", repo.rows[itemID].StockQty)
	}
}

func TestManualUpdateRecordsDelta(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(5)
	ledger := newLedger(t, repo)
	actorID := uuid.New()

	if err := ledger.ManualUpdate(context.Background(), itemID, 12, &actorID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.rows[itemID].StockQty != 12 {
		t.Fatalf("expected stock 12, got %d", repo.rows[itemID].StockQty)
	}
	if len(repo.logs) != 1 || repo.logs[0].Delta != 7 || repo.logs[0].ChangeType != enums.InventoryChangeManualUpdate {
		t.Fatalf("expected manual_update log with delta 7, got %+v", repo.logs)
	}
	if repo.logs[0].ActorID == nil || *repo.logs[0].ActorID != actorID {
		t.Fatalf("expected actor recorded on manual update")
	}
}

func TestManualUpdateSameValueIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(5)
	ledger := newLedger(t, repo)

	if err := ledger.ManualUpdate(context.Background(), itemID, 5, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.logs) != 0 {
		t.Fatalf("no-op update must not log")
	}
}

func TestReplenishRejectsNonPositive(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(5)
	ledger := newLedger(t, repo)

	err := ledger.Replenish(context.Background(), itemID, 0, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestReconcileAvailability(t *testing.T) {
	repo := newFakeRepo()
	staleAvailable := uuid.New()
	staleUnavailable := uuid.New()
	repo.drift = []AvailabilityDrift{
		{MenuItemID: staleAvailable, StockQty: 0, IsAvailable: true},
		{MenuItemID: staleUnavailable, StockQty: 4, IsAvailable: false},
	}
	ledger := newLedger(t, repo)

	fixed, err := ledger.ReconcileAvailability(context.Background(), 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixed != 2 {
		t.Fatalf("expected 2 corrections, got %d", fixed)
	}
	if repo.availability[staleAvailable] {
		t.Fatalf("zero-stock item must be flagged unavailable")
	}
	if !repo.availability[staleUnavailable] {
		t.Fatalf("stocked item must be flagged available")
	}
}

func TestDeductValidation(t *testing.T) {
	repo := newFakeRepo()
	itemID := repo.seed(5)
	ledger := newLedger(t, repo)

	cases := []struct {
		name  string
		items []Adjustment
	}{
		{name: "empty batch", items: nil},
		{name: "zero quantity", items: []Adjustment{{MenuItemID: itemID, Quantity: 0}}},
		{name: "duplicate item", items: []Adjustment{{MenuItemID: itemID, Quantity: 1}, {MenuItemID: itemID, Quantity: 2}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ledger.DeductForOrder(context.Background(), uuid.New(), tc.items)
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
}
