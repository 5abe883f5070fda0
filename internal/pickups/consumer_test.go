package pickups

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/logger"
	"github.com/chopnow/chopnow-backend/pkg/outbox"
	"github.com/chopnow/chopnow-backend/pkg/outbox/payloads"
)

type fakePickupService struct {
	issued []uuid.UUID
	err    error
}

func (f *fakePickupService) Issue(ctx context.Context, orderID uuid.UUID) (*IssuedCredential, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, orderID)
	return &IssuedCredential{PickupID: uuid.New(), OrderID: orderID}, nil
}

func (f *fakePickupService) Verify(ctx context.Context, input VerifyInput) error { return nil }

func (f *fakePickupService) Get(ctx context.Context, orderID uuid.UUID) (*models.OrderPickup, error) {
	return nil, nil
}

type fakeGuard struct {
	processed map[uuid.UUID]bool
	deleted   []uuid.UUID
}

func (f *fakeGuard) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	if f.processed[eventID] {
		return true, nil
	}
	if f.processed == nil {
		f.processed = make(map[uuid.UUID]bool)
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeGuard) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	f.deleted = append(f.deleted, eventID)
	delete(f.processed, eventID)
	return nil
}

func mustPickupConsumer(t *testing.T, svc Service, guard *fakeGuard) *Consumer {
	t.Helper()
	consumer, err := NewConsumer(svc, guard, logger.New(logger.Options{
		ServiceName: "pickups-test",
		Level:       logger.ParseLevel("debug"),
		Output:      io.Discard,
	}))
	if err != nil {
		t.Fatalf("failed to build consumer: %v", err)
	}
	return consumer
}

func paymentSuccessEnvelope(t *testing.T, eventID, orderID uuid.UUID) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payloads.PaymentSuccessEvent{OrderID: orderID})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID.String(),
		OccurredAt: time.Now(),
		Data:       data,
	}
}

func TestProcessIssuesOnPaymentSuccess(t *testing.T) {
	svc := &fakePickupService{}
	guard := &fakeGuard{processed: make(map[uuid.UUID]bool)}
	consumer := mustPickupConsumer(t, svc, guard)

	orderID := uuid.New()
	envelope := paymentSuccessEnvelope(t, uuid.New(), orderID)
	if err := consumer.Process(context.Background(), enums.EventPaymentSuccess, envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.issued) != 1 || svc.issued[0] != orderID {
		t.Fatalf("expected one issuance for %s, got %+v", orderID, svc.issued)
	}
}

func TestProcessDropsReplayAfterVerification(t *testing.T) {
	svc := &fakePickupService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "pickup already verified")}
	guard := &fakeGuard{processed: make(map[uuid.UUID]bool)}
	consumer := mustPickupConsumer(t, svc, guard)

	envelope := paymentSuccessEnvelope(t, uuid.New(), uuid.New())
	if err := consumer.Process(context.Background(), enums.EventPaymentSuccess, envelope); err != nil {
		t.Fatalf("settled pickup must ack the replay, got %v", err)
	}
	if len(guard.deleted) != 0 {
		t.Fatalf("guard key must stay marked; the event is settled")
	}
}

func TestProcessReleasesGuardOnIssueFailure(t *testing.T) {
	svc := &fakePickupService{err: errors.New("db down")}
	guard := &fakeGuard{processed: make(map[uuid.UUID]bool)}
	consumer := mustPickupConsumer(t, svc, guard)

	eventID := uuid.New()
	envelope := paymentSuccessEnvelope(t, eventID, uuid.New())
	if err := consumer.Process(context.Background(), enums.EventPaymentSuccess, envelope); err == nil {
		t.Fatalf("expected error surfaced for redelivery")
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != eventID {
		t.Fatalf("guard key must be released so the broker can retry")
	}
}

func TestProcessIgnoresUnrelatedEvents(t *testing.T) {
	svc := &fakePickupService{}
	guard := &fakeGuard{processed: make(map[uuid.UUID]bool)}
	consumer := mustPickupConsumer(t, svc, guard)

	envelope := paymentSuccessEnvelope(t, uuid.New(), uuid.New())
	if err := consumer.Process(context.Background(), enums.EventOrderCreated, envelope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(svc.issued) != 0 {
		t.Fatalf("unrelated events must be ignored")
	}
}
