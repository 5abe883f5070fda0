package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
)

type memRepo struct {
	items   map[uuid.UUID]*models.PayoutItem
	batches map[uuid.UUID]*models.PayoutBatch
}

func newMemRepo() *memRepo {
	return &memRepo{
		items:   make(map[uuid.UUID]*models.PayoutItem),
		batches: make(map[uuid.UUID]*models.PayoutBatch),
	}
}

func (m *memRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memRepo) FindPendingTopups(ctx context.Context, olderThan time.Time, restaurantIDs []uuid.UUID) ([]models.PayoutItem, error) {
	allowed := make(map[uuid.UUID]bool)
	for _, id := range restaurantIDs {
		allowed[id] = true
	}
	var out []models.PayoutItem
	for _, item := range m.items {
		if item.Status != enums.PayoutItemStatusPending || item.OrderID == nil {
			continue
		}
		if !item.CreatedAt.Before(olderThan) {
			continue
		}
		if len(restaurantIDs) > 0 && !allowed[item.RestaurantID] {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (m *memRepo) CreateBatch(ctx context.Context, batch *models.PayoutBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	m.batches[batch.ID] = batch
	return nil
}

func (m *memRepo) CreateAggregate(ctx context.Context, item *models.PayoutItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	m.items[item.ID] = item
	return nil
}

func (m *memRepo) AttachChildren(ctx context.Context, childIDs []uuid.UUID, parentID, batchID uuid.UUID) (int64, error) {
	var attached int64
	for _, id := range childIDs {
		item := m.items[id]
		if item == nil || item.Status != enums.PayoutItemStatusPending {
			continue
		}
		parent := parentID
		batch := batchID
		item.ParentItemID = &parent
		item.PayoutBatchID = &batch
		item.Status = enums.PayoutItemStatusBatched
		attached++
	}
	return attached, nil
}

func (m *memRepo) ClaimDueAggregates(ctx context.Context, now time.Time, limit int) ([]models.PayoutItem, error) {
	var claimed []models.PayoutItem
	for _, item := range m.items {
		if len(claimed) >= limit {
			break
		}
		if item.OrderID != nil || item.ParentItemID != nil {
			continue
		}
		if item.Status != enums.PayoutItemStatusBatched {
			continue
		}
		if item.NextAttemptAt != nil && item.NextAttemptAt.After(now) {
			continue
		}
		item.Status = enums.PayoutItemStatusProcessing
		lockedAt := now
		item.LockedAt = &lockedAt
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

func (m *memRepo) RequeueStalled(ctx context.Context, stalledBefore time.Time) (int, error) {
	count := 0
	for _, item := range m.items {
		if item.OrderID != nil || item.ParentItemID != nil {
			continue
		}
		if item.Status != enums.PayoutItemStatusProcessing {
			continue
		}
		if item.LockedAt == nil || !item.LockedAt.Before(stalledBefore) {
			continue
		}
		item.Status = enums.PayoutItemStatusBatched
		item.LockedAt = nil
		count++
	}
	return count, nil
}

func (m *memRepo) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	item := m.items[id]
	if item == nil {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.PayoutItemStatus); ok {
		item.Status = status
	}
	if transferID, ok := updates["transfer_id"].(string); ok {
		item.TransferID = &transferID
	}
	if attempts, ok := updates["attempt_count"].(int); ok {
		item.AttemptCount = attempts
	}
	if lastError, ok := updates["last_error"].(string); ok {
		item.LastError = &lastError
	}
	if next, ok := updates["next_attempt_at"].(time.Time); ok {
		item.NextAttemptAt = &next
	}
	if locked, ok := updates["locked_at"]; ok && locked == nil {
		item.LockedAt = nil
	}
	return nil
}

func (m *memRepo) UpdateChildrenStatus(ctx context.Context, parentID uuid.UUID, status enums.PayoutItemStatus) error {
	for _, item := range m.items {
		if item.ParentItemID != nil && *item.ParentItemID == parentID {
			item.Status = status
		}
	}
	return nil
}

func (m *memRepo) CountUnsettledInBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	for _, item := range m.items {
		if item.OrderID != nil || item.ParentItemID != nil {
			continue
		}
		if item.PayoutBatchID == nil || *item.PayoutBatchID != batchID {
			continue
		}
		if item.Status != enums.PayoutItemStatusPaid && item.Status != enums.PayoutItemStatusFailed {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) CountFailedInBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	var count int64
	for _, item := range m.items {
		if item.OrderID != nil || item.ParentItemID != nil {
			continue
		}
		if item.PayoutBatchID != nil && *item.PayoutBatchID == batchID && item.Status == enums.PayoutItemStatusFailed {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) UpdateBatch(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	batch := m.batches[id]
	if batch == nil {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"].(enums.PayoutBatchStatus); ok {
		batch.Status = status
	}
	if completedAt, ok := updates["completed_at"].(time.Time); ok {
		batch.CompletedAt = &completedAt
	}
	return nil
}

func (m *memRepo) FindBatch(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error) {
	batch, ok := m.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return batch, nil
}

func (m *memRepo) seedTopup(restaurantID uuid.UUID, amount string, age time.Duration) *models.PayoutItem {
	orderID := uuid.New()
	item := &models.PayoutItem{
		ID:           uuid.New(),
		RestaurantID: restaurantID,
		OrderID:      &orderID,
		Reason:       models.PayoutReasonPlatformTopup,
		Amount:       d(amount),
		Currency:     enums.CurrencyNGN,
		Status:       enums.PayoutItemStatusPending,
		CreatedAt:    time.Now().Add(-age),
	}
	m.items[item.ID] = item
	return item
}

func (m *memRepo) snapshot() (map[uuid.UUID]models.PayoutItem, map[uuid.UUID]models.PayoutBatch) {
	items := make(map[uuid.UUID]models.PayoutItem, len(m.items))
	for id, item := range m.items {
		items[id] = *item
	}
	batches := make(map[uuid.UUID]models.PayoutBatch, len(m.batches))
	for id, batch := range m.batches {
		batches[id] = *batch
	}
	return items, batches
}

func (m *memRepo) restore(items map[uuid.UUID]models.PayoutItem, batches map[uuid.UUID]models.PayoutBatch) {
	m.items = make(map[uuid.UUID]*models.PayoutItem, len(items))
	for id := range items {
		item := items[id]
		m.items[id] = &item
	}
	m.batches = make(map[uuid.UUID]*models.PayoutBatch, len(batches))
	for id := range batches {
		batch := batches[id]
		m.batches[id] = &batch
	}
}

func (m *memRepo) aggregates() []*models.PayoutItem {
	var out []*models.PayoutItem
	for _, item := range m.items {
		if item.OrderID == nil && item.ParentItemID == nil {
			out = append(out, item)
		}
	}
	return out
}

// memTx mirrors the real runner's rollback: a closure error restores the
// store to its pre-transaction state.
type memTx struct {
	repo *memRepo
}

func (m memTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	items, batches := m.repo.snapshot()
	if err := fn(&gorm.DB{}); err != nil {
		m.repo.restore(items, batches)
		return err
	}
	return nil
}

type memOutbox struct {
	events []outbox.DomainEvent
}

func (m *memOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	m.events = append(m.events, event)
	return nil
}

type memRestaurants struct {
	restaurants map[uuid.UUID]*models.Restaurant
}

func (m *memRestaurants) Get(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	restaurant, ok := m.restaurants[restaurantID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return restaurant, nil
}

func (m *memRestaurants) seed(withBank bool) uuid.UUID {
	id := uuid.New()
	restaurant := &models.Restaurant{ID: id, OwnerUserID: uuid.New(), Name: "Mama Put"}
	if withBank {
		bankCode := "044"
		accountNumber := "0690000031"
		restaurant.BankCode = &bankCode
		restaurant.AccountNumber = &accountNumber
	}
	if m.restaurants == nil {
		m.restaurants = make(map[uuid.UUID]*models.Restaurant)
	}
	m.restaurants[id] = restaurant
	return id
}

type memGateway struct {
	transfer  *flutterwave.Transfer
	err       error
	callCount int
}

func (m *memGateway) InitiateTransfer(ctx context.Context, params flutterwave.TransferParams) (*flutterwave.Transfer, error) {
	m.callCount++
	if m.err != nil {
		return nil, m.err
	}
	return m.transfer, nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newAggregator(t *testing.T, repo *memRepo, restaurants *memRestaurants, ob *memOutbox) Aggregator {
	t.Helper()
	agg, err := NewAggregator(AggregatorParams{
		Repo:        repo,
		Tx:          memTx{repo: repo},
		Restaurants: restaurants,
		Outbox:      ob,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return agg
}

func TestSweepGroupsPerRestaurant(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	restaurantA := restaurants.seed(true)
	restaurantB := restaurants.seed(true)
	repo.seedTopup(restaurantA, "30", 2*time.Hour)
	repo.seedTopup(restaurantA, "20", 2*time.Hour)
	repo.seedTopup(restaurantB, "15", 2*time.Hour)
	ob := &memOutbox{}

	result, err := newAggregator(t, repo, restaurants, ob).Sweep(context.Background(), SweepFilters{MinItemAge: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID == nil || result.Aggregates != 2 || result.ItemsSwept != 3 {
		t.Fatalf("unexpected result %+v", result)
	}

	aggregates := repo.aggregates()
	if len(aggregates) != 2 {
		t.Fatalf("expected 2 aggregates, got %d", len(aggregates))
	}
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, agg := range aggregates {
		totals[agg.RestaurantID] = agg.Amount
		if agg.Status != enums.PayoutItemStatusBatched {
			t.Fatalf("aggregate must start batched, got %s", agg.Status)
		}
	}
	if !totals[restaurantA].Equal(d("50")) || !totals[restaurantB].Equal(d("15")) {
		t.Fatalf("unexpected aggregate totals %+v", totals)
	}
	batch := repo.batches[*result.BatchID]
	if !batch.Total.Equal(d("65")) || batch.ItemCount != 2 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	for _, item := range repo.items {
		if item.OrderID == nil {
			continue
		}
		if item.Status != enums.PayoutItemStatusBatched || item.ParentItemID == nil {
			t.Fatalf("child must be re-pointed and batched, got %+v", item)
		}
	}
	if len(ob.events) != 2 {
		t.Fatalf("expected a payout.batch_created per restaurant, got %d", len(ob.events))
	}
}

func TestSweepSkipsRestaurantsWithoutBankDetails(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	banked := restaurants.seed(true)
	unbanked := restaurants.seed(false)
	repo.seedTopup(banked, "30", 2*time.Hour)
	pending := repo.seedTopup(unbanked, "40", 2*time.Hour)

	result, err := newAggregator(t, repo, restaurants, &memOutbox{}).Sweep(context.Background(), SweepFilters{MinItemAge: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SkippedRest != 1 || result.Aggregates != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if repo.items[pending.ID].Status != enums.PayoutItemStatusPending {
		t.Fatalf("unbanked restaurant's items must stay pending")
	}
}

func TestSweepHonorsMinAgeAndMinTotal(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	young := restaurants.seed(true)
	small := restaurants.seed(true)
	repo.seedTopup(young, "100", 10*time.Minute)
	repo.seedTopup(small, "5", 2*time.Hour)

	result, err := newAggregator(t, repo, restaurants, &memOutbox{}).Sweep(context.Background(), SweepFilters{
		MinItemAge: time.Hour,
		MinTotal:   d("10"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BatchID != nil || result.Aggregates != 0 {
		t.Fatalf("nothing eligible, got %+v", result)
	}
}

// claimingRepo marks one candidate as taken right after the sweep's
// unlocked read, standing in for a second sweep committing first.
type claimingRepo struct {
	*memRepo
	contested uuid.UUID
}

func (r *claimingRepo) FindPendingTopups(ctx context.Context, olderThan time.Time, restaurantIDs []uuid.UUID) ([]models.PayoutItem, error) {
	items, err := r.memRepo.FindPendingTopups(ctx, olderThan, restaurantIDs)
	if err != nil {
		return nil, err
	}
	if item := r.memRepo.items[r.contested]; item != nil {
		item.Status = enums.PayoutItemStatusBatched
	}
	return items, nil
}

func TestSweepAbortsWhenItemsClaimedConcurrently(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	restaurantID := restaurants.seed(true)
	contested := repo.seedTopup(restaurantID, "30", 2*time.Hour)
	untouched := repo.seedTopup(restaurantID, "20", 2*time.Hour)

	agg, err := NewAggregator(AggregatorParams{
		Repo:        &claimingRepo{memRepo: repo, contested: contested.ID},
		Tx:          memTx{repo: repo},
		Restaurants: restaurants,
		Outbox:      &memOutbox{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = agg.Sweep(context.Background(), SweepFilters{MinItemAge: time.Hour})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if len(repo.batches) != 0 {
		t.Fatalf("aborted sweep must not leave a batch behind")
	}
	if len(repo.aggregates()) != 0 {
		t.Fatalf("aborted sweep must not leave aggregates behind")
	}
	if repo.items[untouched.ID].Status != enums.PayoutItemStatusPending {
		t.Fatalf("unclaimed item must stay pending for the next sweep")
	}
}

func workerConfig() config.PayoutConfig {
	return config.PayoutConfig{
		WorkerConcurrency: 2,
		MaxAttempts:       3,
		VisibilityTimeout: 5 * time.Minute,
		PollInterval:      time.Second,
	}
}

func newWorker(t *testing.T, repo *memRepo, gateway *memGateway, restaurants *memRestaurants, ob *memOutbox) *Worker {
	t.Helper()
	worker, err := NewWorker(WorkerParams{
		Repo:        repo,
		Tx:          memTx{repo: repo},
		Gateway:     gateway,
		Restaurants: restaurants,
		Outbox:      ob,
		Config:      workerConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return worker
}

func sweptFixture(t *testing.T, repo *memRepo, restaurants *memRestaurants) uuid.UUID {
	t.Helper()
	restaurantID := restaurants.seed(true)
	repo.seedTopup(restaurantID, "30", 2*time.Hour)
	repo.seedTopup(restaurantID, "20", 2*time.Hour)
	result, err := newAggregator(t, repo, restaurants, &memOutbox{}).Sweep(context.Background(), SweepFilters{MinItemAge: time.Hour})
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	return *result.BatchID
}

func TestWorkerSettlesAggregateAndCompletesBatch(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	batchID := sweptFixture(t, repo, restaurants)
	gateway := &memGateway{transfer: &flutterwave.Transfer{ID: 777}}
	ob := &memOutbox{}
	worker := newWorker(t, repo, gateway, restaurants, ob)

	processed, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 aggregate processed, got %d", processed)
	}

	for _, agg := range repo.aggregates() {
		if agg.Status != enums.PayoutItemStatusPaid {
			t.Fatalf("aggregate must be paid, got %s", agg.Status)
		}
		if agg.TransferID == nil || *agg.TransferID != "777" {
			t.Fatalf("transfer id must be recorded")
		}
	}
	for _, item := range repo.items {
		if item.OrderID != nil && item.Status != enums.PayoutItemStatusPaid {
			t.Fatalf("children must follow the aggregate to paid")
		}
	}
	batch := repo.batches[batchID]
	if batch.Status != enums.PayoutBatchStatusCompleted || batch.CompletedAt == nil {
		t.Fatalf("batch must complete when every aggregate is paid, got %+v", batch)
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventPayoutBatchSettled {
		t.Fatalf("expected payout.batch_settled emission")
	}
}

func TestWorkerRetriesWithBackoffThenFails(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	batchID := sweptFixture(t, repo, restaurants)
	gateway := &memGateway{err: errors.New("transfer rejected")}
	worker := newWorker(t, repo, gateway, restaurants, &memOutbox{})

	// First two passes requeue with growing backoff.
	for attempt := 1; attempt <= 2; attempt++ {
		if _, err := worker.RunOnce(context.Background()); err == nil {
			t.Fatalf("attempt %d should surface the transfer error", attempt)
		}
		agg := repo.aggregates()[0]
		if agg.Status != enums.PayoutItemStatusBatched || agg.AttemptCount != attempt {
			t.Fatalf("attempt %d: expected requeued aggregate, got %+v", attempt, agg)
		}
		// Clear the backoff so the next pass claims it again.
		agg.NextAttemptAt = nil
	}

	// Third failure is terminal.
	if _, err := worker.RunOnce(context.Background()); err == nil {
		t.Fatalf("terminal attempt should surface the transfer error")
	}
	agg := repo.aggregates()[0]
	if agg.Status != enums.PayoutItemStatusFailed || agg.AttemptCount != 3 {
		t.Fatalf("expected terminal failure, got %+v", agg)
	}
	if agg.LastError == nil || *agg.LastError == "" {
		t.Fatalf("last error must be recorded")
	}
	for _, item := range repo.items {
		if item.OrderID != nil && item.Status != enums.PayoutItemStatusFailed {
			t.Fatalf("children must follow the aggregate to failed")
		}
	}
	if repo.batches[batchID].Status != enums.PayoutBatchStatusFailed {
		t.Fatalf("batch with a failed aggregate must be failed")
	}
	if gateway.callCount != 3 {
		t.Fatalf("expected 3 transfer attempts, got %d", gateway.callCount)
	}
}

func TestWorkerRequeuesStalledAggregates(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	sweptFixture(t, repo, restaurants)

	// Simulate a crashed worker holding the claim past the visibility timeout.
	agg := repo.aggregates()[0]
	agg.Status = enums.PayoutItemStatusProcessing
	stale := time.Now().Add(-time.Hour)
	agg.LockedAt = &stale

	gateway := &memGateway{transfer: &flutterwave.Transfer{ID: 888}}
	worker := newWorker(t, repo, gateway, restaurants, &memOutbox{})

	processed, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("stalled aggregate must be requeued and processed, got %d", processed)
	}
	if repo.aggregates()[0].Status != enums.PayoutItemStatusPaid {
		t.Fatalf("requeued aggregate must settle")
	}
}

func TestWorkerIdleWhenNothingDue(t *testing.T) {
	repo := newMemRepo()
	restaurants := &memRestaurants{}
	worker := newWorker(t, repo, &memGateway{}, restaurants, &memOutbox{})

	processed, err := worker.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected idle pass, got %d", processed)
	}
}
