package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// PayLinkClaims bind a pay-link token to one payment of one order. The
// signed expiry mirrors the payment row's ExpiresAt; settlement checks
// expiry lazily rather than running timers.
type PayLinkClaims struct {
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	jwt.RegisteredClaims
}

// GeneratePayLink creates a signed token granting access to settle one
// payment, valid for the given duration.
func (m *JWTManager) GeneratePayLink(paymentID, orderID string, ttl time.Duration) (string, error) {
	claims := &PayLinkClaims{
		PaymentID: paymentID,
		OrderID:   orderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign pay link: %w", err)
	}

	return tokenString, nil
}

// ValidatePayLink parses a pay-link token. Expired tokens fail here; the
// reconciler additionally checks the stored expiry so revoked or re-issued
// links cannot settle stale payments.
func (m *JWTManager) ValidatePayLink(tokenString string) (*PayLinkClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&PayLinkClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
	)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*PayLinkClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
