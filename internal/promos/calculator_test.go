package promos

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestSplitWithoutPromo(t *testing.T) {
	result, err := Split(d("250"), nil, d("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.CustomerPays.Equal(d("250")) {
		t.Fatalf("expected customer pays 250, got %s", result.CustomerPays)
	}
	if !result.PlatformFee.Equal(d("25")) {
		t.Fatalf("expected fee 25, got %s", result.PlatformFee)
	}
	if !result.RestaurantShare.Equal(d("225")) || !result.PlatformShare.Equal(d("25")) {
		t.Fatalf("unexpected split %s/%s", result.RestaurantShare, result.PlatformShare)
	}
	if !result.PlatformTopup.IsZero() {
		t.Fatalf("expected no topup, got %s", result.PlatformTopup)
	}
}

func TestSplitSharedPromoScenario(t *testing.T) {
	// Two items (qty 2 @ 100, qty 1 @ 50) gross 250 with a 10% shared promo
	// at 50% restaurant share.
	promo := &models.PromoCode{
		DiscountType:       enums.PromoDiscountPercentage,
		Value:              d("10"),
		Scope:              enums.PromoScopeShared,
		RestaurantSharePct: d("50"),
	}
	result, err := Split(d("250"), promo, d("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Discount.Equal(d("25")) {
		t.Fatalf("expected discount 25, got %s", result.Discount)
	}
	if !result.RestaurantDiscount.Equal(d("12.5")) || !result.PlatformDiscount.Equal(d("12.5")) {
		t.Fatalf("unexpected discount split %s/%s", result.RestaurantDiscount, result.PlatformDiscount)
	}
	if !result.CustomerPays.Equal(d("225")) {
		t.Fatalf("expected customer pays 225, got %s", result.CustomerPays)
	}
	if !result.RestaurantDiscount.Add(result.PlatformDiscount).Equal(result.Discount) {
		t.Fatalf("discount split does not sum to discount")
	}
	if !result.RestaurantShare.Add(result.PlatformShare).Equal(result.CustomerPays) {
		t.Fatalf("settlement split does not sum to customer payment")
	}
}

func TestSplitPlatformPromoCreatesTopup(t *testing.T) {
	// Platform absorbs a discount larger than its fee income; the difference
	// becomes a deferred obligation.
	promo := &models.PromoCode{
		DiscountType: enums.PromoDiscountFixed,
		Value:        d("50"),
		Scope:        enums.PromoScopePlatform,
	}
	result, err := Split(d("200"), promo, d("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.CustomerPays.Equal(d("150")) {
		t.Fatalf("expected customer pays 150, got %s", result.CustomerPays)
	}
	// Restaurant entitled to 200 - 20 = 180 but only 150 was collected.
	if !result.RestaurantShare.Equal(d("150")) {
		t.Fatalf("expected restaurant share 150, got %s", result.RestaurantShare)
	}
	if !result.PlatformTopup.Equal(d("30")) {
		t.Fatalf("expected topup 30, got %s", result.PlatformTopup)
	}
	if !result.PlatformShare.IsZero() {
		t.Fatalf("expected zero platform share, got %s", result.PlatformShare)
	}
}

func TestSplitRestaurantPromoNoTopup(t *testing.T) {
	promo := &models.PromoCode{
		DiscountType: enums.PromoDiscountFixed,
		Value:        d("40"),
		Scope:        enums.PromoScopeRestaurant,
	}
	result, err := Split(d("200"), promo, d("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.RestaurantDiscount.Equal(d("40")) || !result.PlatformDiscount.IsZero() {
		t.Fatalf("restaurant should absorb the full discount")
	}
	if !result.PlatformTopup.IsZero() {
		t.Fatalf("expected no topup, got %s", result.PlatformTopup)
	}
	if !result.PlatformShare.Equal(d("20")) {
		t.Fatalf("platform fee should be intact, got %s", result.PlatformShare)
	}
}

func TestSplitClampsDiscountToGross(t *testing.T) {
	promo := &models.PromoCode{
		DiscountType: enums.PromoDiscountFixed,
		Value:        d("500"),
		Scope:        enums.PromoScopePlatform,
	}
	result, err := Split(d("100"), promo, d("0.10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Discount.Equal(d("100")) {
		t.Fatalf("discount should clamp to gross, got %s", result.Discount)
	}
	if !result.CustomerPays.IsZero() {
		t.Fatalf("customer should pay zero, got %s", result.CustomerPays)
	}
}

func TestSplitRejectsNegativeInputs(t *testing.T) {
	if _, err := Split(d("-1"), nil, d("0.10")); err == nil {
		t.Fatalf("expected error for negative gross")
	}
	if _, err := Split(d("100"), nil, d("1.5")); err == nil {
		t.Fatalf("expected error for fee rate above 1")
	}
}

func TestValidateFailsClosed(t *testing.T) {
	restaurantID := uuid.New()
	otherID := uuid.New()
	now := time.Now()
	expired := now.Add(-time.Hour)

	tests := []struct {
		name  string
		promo *models.PromoCode
		code  pkgerrors.Code
	}{
		{"nil promo", nil, pkgerrors.CodeNotFound},
		{"inactive", &models.PromoCode{Active: false}, pkgerrors.CodeValidation},
		{"expired", &models.PromoCode{Active: true, ExpiresAt: &expired, Scope: enums.PromoScopePlatform}, pkgerrors.CodeValidation},
		{"usage cap", &models.PromoCode{Active: true, MaxUses: 5, UsesCount: 5, Scope: enums.PromoScopePlatform}, pkgerrors.CodeExhausted},
		{"restaurant mismatch", &models.PromoCode{Active: true, Scope: enums.PromoScopeRestaurant, RestaurantID: &otherID}, pkgerrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.promo, restaurantID, now)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !pkgerrors.HasCode(err, tt.code) {
				t.Fatalf("expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestValidateAllowsMatchingRestaurant(t *testing.T) {
	restaurantID := uuid.New()
	promo := &models.PromoCode{
		Active:       true,
		Scope:        enums.PromoScopeShared,
		RestaurantID: &restaurantID,
		MaxUses:      10,
		UsesCount:    3,
	}
	if err := Validate(promo, restaurantID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
