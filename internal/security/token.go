package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal carried inside both token kinds.
type Identity struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

type TokenClaims struct {
	User Identity `json:"user"`
	jwt.RegisteredClaims
}

// SignAccessToken issues a short-lived stateless token for the identity.
func SignAccessToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	return signToken(secret, identity, ttl)
}

// SignRefreshToken issues a long-lived token. The caller is expected to
// persist the returned value so it can be revoked server-side.
func SignRefreshToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	return signToken(secret, identity, ttl)
}

func signToken(secret string, identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		User: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   identity.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// ParseToken verifies signature, algorithm and the exp claim. The exp claim
// is the single authoritative expiry; nothing else in the payload is
// re-checked against the clock.
func ParseToken(tokenStr string, secret string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
