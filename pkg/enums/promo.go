package enums

import "fmt"

// PromoDiscountType distinguishes percentage from fixed-value promos.
type PromoDiscountType string

const (
	PromoDiscountPercentage PromoDiscountType = "percentage"
	PromoDiscountFixed      PromoDiscountType = "fixed"
)

// IsValid reports whether the value is a known PromoDiscountType.
func (p PromoDiscountType) IsValid() bool {
	return p == PromoDiscountPercentage || p == PromoDiscountFixed
}

// ParsePromoDiscountType converts raw input into a PromoDiscountType.
func ParsePromoDiscountType(value string) (PromoDiscountType, error) {
	switch PromoDiscountType(value) {
	case PromoDiscountPercentage, PromoDiscountFixed:
		return PromoDiscountType(value), nil
	default:
		return "", fmt.Errorf("invalid promo discount type %q", value)
	}
}

// PromoScope identifies who funds the discount.
type PromoScope string

const (
	PromoScopeRestaurant PromoScope = "restaurant"
	PromoScopePlatform   PromoScope = "platform"
	PromoScopeShared     PromoScope = "shared"
)

// IsValid reports whether the value is a known PromoScope.
func (p PromoScope) IsValid() bool {
	switch p {
	case PromoScopeRestaurant, PromoScopePlatform, PromoScopeShared:
		return true
	default:
		return false
	}
}

// ParsePromoScope converts raw input into a PromoScope.
func ParsePromoScope(value string) (PromoScope, error) {
	scope := PromoScope(value)
	if !scope.IsValid() {
		return "", fmt.Errorf("invalid promo scope %q", value)
	}
	return scope, nil
}
