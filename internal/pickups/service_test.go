package pickups

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/config"
	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
)

type memRepo struct {
	pickups map[uuid.UUID]*models.OrderPickup
	orders  map[uuid.UUID]*models.Order
}

func newMemRepo() *memRepo {
	return &memRepo{
		pickups: make(map[uuid.UUID]*models.OrderPickup),
		orders:  make(map[uuid.UUID]*models.Order),
	}
}

func (m *memRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memRepo) CreatePickup(ctx context.Context, pickup *models.OrderPickup) error {
	if pickup.ID == uuid.Nil {
		pickup.ID = uuid.New()
	}
	m.pickups[pickup.OrderID] = pickup
	return nil
}

func (m *memRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	pickup, ok := m.pickups[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *pickup
	return &copied, nil
}

func (m *memRepo) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	return m.FindByOrderID(ctx, orderID)
}

func (m *memRepo) UpdatePickup(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	for _, pickup := range m.pickups {
		if pickup.ID != id {
			continue
		}
		if verified, ok := updates["verified"].(bool); ok {
			pickup.Verified = verified
		}
		if verifiedBy, ok := updates["verified_by"].(uuid.UUID); ok {
			pickup.VerifiedBy = &verifiedBy
		}
		if verifiedAt, ok := updates["verified_at"].(time.Time); ok {
			pickup.VerifiedAt = &verifiedAt
		}
		if attempts, ok := updates["attempts_count"].(int); ok {
			pickup.AttemptsCount = attempts
		}
	}
	return nil
}

func (m *memRepo) DeletePickup(ctx context.Context, id uuid.UUID) error {
	for orderID, pickup := range m.pickups {
		if pickup.ID == id {
			delete(m.pickups, orderID)
		}
	}
	return nil
}

func (m *memRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (m *memRepo) snapshot() map[uuid.UUID]models.OrderPickup {
	copied := make(map[uuid.UUID]models.OrderPickup, len(m.pickups))
	for orderID, pickup := range m.pickups {
		copied[orderID] = *pickup
	}
	return copied
}

func (m *memRepo) restore(snapshot map[uuid.UUID]models.OrderPickup) {
	m.pickups = make(map[uuid.UUID]*models.OrderPickup, len(snapshot))
	for orderID, pickup := range snapshot {
		restored := pickup
		m.pickups[orderID] = &restored
	}
}

func (m *memRepo) seedPaidOrder() uuid.UUID {
	id := uuid.New()
	m.orders[id] = &models.Order{
		ID:            id,
		CustomerID:    uuid.New(),
		RestaurantID:  uuid.New(),
		Status:        enums.OrderStatusPaid,
		PaymentStatus: enums.PaymentStatusPaid,
	}
	return id
}

// memTx mirrors real transaction semantics: an error from fn rolls the
// repo back to its pre-transaction state.
type memTx struct {
	repo *memRepo
}

func (m memTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	snapshot := m.repo.snapshot()
	if err := fn(&gorm.DB{}); err != nil {
		m.repo.restore(snapshot)
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

func testConfig() config.PickupConfig {
	return config.PickupConfig{
		Secret:      "pickup-test-secret",
		Issuer:      "chopnow-test",
		TTL:         30 * time.Minute,
		MaxAttempts: 3,
	}
}

func newPickupService(t *testing.T, repo *memRepo, ob *memOutbox, now func() time.Time) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     memTx{repo: repo},
		Outbox: ob,
		Config: testConfig(),
		Now:    now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestIssueStoresHashNotCode(t *testing.T) {
	repo := newMemRepo()
	ob := &memOutbox{}
	svc := newPickupService(t, repo, ob, nil)
	orderID := repo.seedPaidOrder()

	cred, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cred.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", cred.Code)
	}
	stored := repo.pickups[orderID]
	if stored.CodeHash == cred.Code {
		t.Fatalf("plaintext code must never be persisted")
	}
	if stored.CodeHash != hashCode(cred.Code) {
		t.Fatalf("stored hash must match the issued code")
	}
	if len(ob.events) != 1 || ob.events[0].EventType != enums.EventOrderPickupCreated {
		t.Fatalf("expected order.pickup_created emission")
	}
}

func TestIssueRequiresPaidOrder(t *testing.T) {
	repo := newMemRepo()
	svc := newPickupService(t, repo, &memOutbox{}, nil)
	orderID := uuid.New()
	repo.orders[orderID] = &models.Order{
		ID:            orderID,
		Status:        enums.OrderStatusAwaitingPayment,
		PaymentStatus: enums.PaymentStatusInitiated,
	}

	_, err := svc.Issue(context.Background(), orderID)
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT, got %v", err)
	}
}

func TestIssueIsIdempotentWhileUnexpired(t *testing.T) {
	repo := newMemRepo()
	ob := &memOutbox{}
	svc := newPickupService(t, repo, ob, nil)
	orderID := repo.seedPaidOrder()

	first, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("reissue should succeed: %v", err)
	}
	if second.PickupID != first.PickupID {
		t.Fatalf("unexpired credential must be reused")
	}
	if second.Code != "" {
		t.Fatalf("plaintext code must only be revealed at first issuance")
	}
	if len(ob.events) != 1 {
		t.Fatalf("reissue must not re-emit, got %d events", len(ob.events))
	}
}

func TestIssueReplacesExpiredCredential(t *testing.T) {
	repo := newMemRepo()
	current := time.Now()
	svc := newPickupService(t, repo, &memOutbox{}, func() time.Time { return current })
	orderID := repo.seedPaidOrder()

	first, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(time.Hour)
	second, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("reissue after expiry should succeed: %v", err)
	}
	if second.PickupID == first.PickupID {
		t.Fatalf("expired credential must be replaced")
	}
	if second.Code == "" {
		t.Fatalf("replacement must mint a fresh code")
	}
}

func TestVerifyWithCode(t *testing.T) {
	repo := newMemRepo()
	svc := newPickupService(t, repo, &memOutbox{}, nil)
	orderID := repo.seedPaidOrder()
	cred, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	actorID := uuid.New()
	if err := svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: actorID, Code: cred.Code}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.pickups[orderID]
	if !stored.Verified || stored.VerifiedBy == nil || *stored.VerifiedBy != actorID || stored.VerifiedAt == nil {
		t.Fatalf("verification must record who and when, got %+v", stored)
	}

	// Second redemption is rejected.
	err = svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: actorID, Code: cred.Code})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT on replay, got %v", err)
	}
}

func TestVerifyWithToken(t *testing.T) {
	repo := newMemRepo()
	svc := newPickupService(t, repo, &memOutbox{}, nil)
	orderID := repo.seedPaidOrder()
	cred, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: uuid.New(), Token: cred.Token}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVerifyTokenForWrongOrderBurnsAttempt(t *testing.T) {
	repo := newMemRepo()
	svc := newPickupService(t, repo, &memOutbox{}, nil)
	orderA := repo.seedPaidOrder()
	orderB := repo.seedPaidOrder()
	credA, err := svc.Issue(context.Background(), orderA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Issue(context.Background(), orderB); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Verify(context.Background(), VerifyInput{OrderID: orderB, ActorID: uuid.New(), Token: credA.Token})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
	if repo.pickups[orderB].AttemptsCount != 1 {
		t.Fatalf("mismatch must burn an attempt")
	}
}

func TestVerifyAttemptCap(t *testing.T) {
	repo := newMemRepo()
	svc := newPickupService(t, repo, &memOutbox{}, nil)
	orderID := repo.seedPaidOrder()
	cred, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < testConfig().MaxAttempts; i++ {
		err := svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: uuid.New(), Code: "000000"})
		if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("attempt %d: expected UNAUTHORIZED, got %v", i, err)
		}
		if got := repo.pickups[orderID].AttemptsCount; got != i+1 {
			t.Fatalf("attempt %d: expected counter %d to survive the denial, got %d", i, i+1, got)
		}
	}

	// Cap reached: even the right code is rejected.
	err = svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: uuid.New(), Code: cred.Code})
	if !pkgerrors.HasCode(err, pkgerrors.CodeExhausted) {
		t.Fatalf("expected RESOURCE_EXHAUSTED at cap, got %v", err)
	}
	if repo.pickups[orderID].Verified {
		t.Fatalf("capped credential must never verify")
	}
}

func TestVerifyExpiredCredential(t *testing.T) {
	repo := newMemRepo()
	current := time.Now()
	svc := newPickupService(t, repo, &memOutbox{}, func() time.Time { return current })
	orderID := repo.seedPaidOrder()
	cred, err := svc.Issue(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current = current.Add(time.Hour)
	err = svc.Verify(context.Background(), VerifyInput{OrderID: orderID, ActorID: uuid.New(), Code: cred.Code})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected STATE_CONFLICT on expired credential, got %v", err)
	}
}

func TestMaskCode(t *testing.T) {
	if masked := maskCode("123456"); masked != "****56" {
		t.Fatalf("unexpected mask %q", masked)
	}
}
