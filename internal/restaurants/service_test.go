package restaurants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
	"github.com/chopnow/chopnow-backend/pkg/flutterwave"
)

type stubRepo struct {
	restaurant *models.Restaurant
	updates    map[string]any
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	if s.restaurant == nil || s.restaurant.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.restaurant
	return &copied, nil
}

func (s *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

type stubGateway struct {
	subaccount *flutterwave.Subaccount
	calls      int
}

func (s *stubGateway) CreateSubaccount(ctx context.Context, params flutterwave.SubaccountParams) (*flutterwave.Subaccount, error) {
	s.calls++
	return s.subaccount, nil
}

func TestOwnerUserID(t *testing.T) {
	ownerID := uuid.New()
	repo := &stubRepo{restaurant: &models.Restaurant{ID: uuid.New(), OwnerUserID: ownerID}}
	svc, err := NewService(ServiceParams{Repo: repo, Gateway: &stubGateway{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.OwnerUserID(context.Background(), repo.restaurant.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, got)
	}

	_, err = svc.OwnerUserID(context.Background(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestSetBankDetailsProvisionsSubaccount(t *testing.T) {
	repo := &stubRepo{restaurant: &models.Restaurant{ID: uuid.New(), Name: "Mama Put"}}
	gateway := &stubGateway{subaccount: &flutterwave.Subaccount{SubaccountID: "RS_123"}}
	svc, err := NewService(ServiceParams{Repo: repo, Gateway: gateway})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.SetBankDetails(context.Background(), BankDetailsInput{
		RestaurantID:  repo.restaurant.ID,
		BankCode:      "044",
		AccountNumber: "0690000031",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gateway.calls != 1 {
		t.Fatalf("expected one subaccount provisioning call")
	}
	if updated.SubaccountID == nil || *updated.SubaccountID != "RS_123" {
		t.Fatalf("subaccount id must be stored")
	}
	if repo.updates["subaccount_id"] != "RS_123" {
		t.Fatalf("update must persist the subaccount id, got %+v", repo.updates)
	}
}

func TestSetBankDetailsValidates(t *testing.T) {
	repo := &stubRepo{restaurant: &models.Restaurant{ID: uuid.New()}}
	svc, err := NewService(ServiceParams{Repo: repo, Gateway: &stubGateway{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.SetBankDetails(context.Background(), BankDetailsInput{RestaurantID: repo.restaurant.ID})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
