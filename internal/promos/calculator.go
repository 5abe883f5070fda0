package promos

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/chopnow-backend/pkg/db/models"
	"github.com/chopnow/chopnow-backend/pkg/enums"
	pkgerrors "github.com/chopnow/chopnow-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// SplitResult is the money breakdown for one order at acceptance time.
// All amounts are rounded to 2 decimals; RestaurantDiscount + PlatformDiscount
// always equals Discount, and RestaurantShare + PlatformShare always equals
// CustomerPays.
type SplitResult struct {
	Gross              decimal.Decimal
	Discount           decimal.Decimal
	CustomerPays       decimal.Decimal
	RestaurantDiscount decimal.Decimal
	PlatformDiscount   decimal.Decimal
	PlatformFee        decimal.Decimal
	RestaurantShare    decimal.Decimal
	PlatformShare      decimal.Decimal
	PlatformTopup      decimal.Decimal
}

// Split computes the customer discount, the cost-sharing between restaurant
// and platform, and the deferred platform top-up. promo may be nil for orders
// without a code; validation of the promo's applicability happens at
// redemption, not here.
func Split(gross decimal.Decimal, promo *models.PromoCode, feeRate decimal.Decimal) (SplitResult, error) {
	if gross.IsNegative() {
		return SplitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "gross amount cannot be negative")
	}
	if feeRate.IsNegative() || feeRate.GreaterThan(decimal.NewFromInt(1)) {
		return SplitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "fee rate must be between 0 and 1")
	}

	gross = gross.Round(2)
	fee := gross.Mul(feeRate).Round(2)

	discount := decimal.Zero
	restaurantDiscount := decimal.Zero
	if promo != nil {
		switch promo.DiscountType {
		case enums.PromoDiscountPercentage:
			discount = gross.Mul(promo.Value).Div(hundred)
		case enums.PromoDiscountFixed:
			discount = promo.Value
		default:
			return SplitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown promo discount type")
		}
		if discount.IsNegative() {
			discount = decimal.Zero
		}
		if discount.GreaterThan(gross) {
			discount = gross
		}
		discount = discount.Round(2)

		switch promo.Scope {
		case enums.PromoScopeRestaurant:
			restaurantDiscount = discount
		case enums.PromoScopePlatform:
			restaurantDiscount = decimal.Zero
		case enums.PromoScopeShared:
			restaurantDiscount = discount.Mul(promo.RestaurantSharePct).Div(hundred).Round(2)
		default:
			return SplitResult{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown promo scope")
		}
	}
	platformDiscount := discount.Sub(restaurantDiscount)

	customerPays := gross.Sub(discount)

	// What the restaurant is entitled to keep: gross minus the platform fee
	// minus the share of the discount it agreed to absorb. When the customer
	// payment cannot cover that, the rest becomes a deferred platform top-up.
	entitled := gross.Sub(fee).Sub(restaurantDiscount)
	if entitled.IsNegative() {
		entitled = decimal.Zero
	}

	restaurantShare := entitled
	topup := decimal.Zero
	if entitled.GreaterThan(customerPays) {
		restaurantShare = customerPays
		topup = entitled.Sub(customerPays)
	}
	platformShare := customerPays.Sub(restaurantShare)

	return SplitResult{
		Gross:              gross,
		Discount:           discount,
		CustomerPays:       customerPays,
		RestaurantDiscount: restaurantDiscount,
		PlatformDiscount:   platformDiscount,
		PlatformFee:        fee,
		RestaurantShare:    restaurantShare,
		PlatformShare:      platformShare,
		PlatformTopup:      topup,
	}, nil
}

// Validate applies the fail-closed redemption rules without mutating state.
func Validate(promo *models.PromoCode, restaurantID uuid.UUID, now time.Time) error {
	if promo == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	}
	if !promo.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo code is inactive")
	}
	if promo.ExpiresAt != nil && !promo.ExpiresAt.After(now) {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo code has expired")
	}
	if promo.MaxUses > 0 && promo.UsesCount >= promo.MaxUses {
		return pkgerrors.New(pkgerrors.CodeExhausted, "promo code usage cap reached")
	}
	if promo.Scope != enums.PromoScopePlatform {
		if promo.RestaurantID == nil || *promo.RestaurantID != restaurantID {
			return pkgerrors.New(pkgerrors.CodeValidation, "promo code not valid for this restaurant")
		}
	}
	return nil
}
