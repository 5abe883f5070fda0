package pickups

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/chopnow/chopnow-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// CredentialClaims is the typed JWT handed to the customer at pickup time.
type CredentialClaims struct {
	OrderID uuid.UUID `json:"order_id"`
	Code    string    `json:"code"`
	jwt.RegisteredClaims
}

// MintCredentialToken issues the signed pickup token for an order.
func MintCredentialToken(cfg config.PickupConfig, now time.Time, orderID uuid.UUID, code string, expiresAt time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("pickup token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("pickup token issuer is required")
	}

	claims := CredentialClaims{
		OrderID: orderID,
		Code:    code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing pickup token: %w", err)
	}
	return signed, nil
}

// ParseCredentialToken validates the pickup token and returns typed claims.
func ParseCredentialToken(cfg config.PickupConfig, tokenString string) (*CredentialClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("pickup token secret is required")
	}

	claims := &CredentialClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
