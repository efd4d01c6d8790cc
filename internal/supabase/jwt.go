package supabase

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyLocal checks an HS256 access token against the project's JWT secret
// and returns the user encoded in its claims.
func VerifyLocal(token, secret string) (*User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	user := &User{
		ID:           stringClaim(claims, "sub"),
		Email:        stringClaim(claims, "email"),
		Phone:        stringClaim(claims, "phone"),
		Role:         stringClaim(claims, "role"),
		AppMetadata:  mapClaim(claims, "app_metadata"),
		UserMetadata: mapClaim(claims, "user_metadata"),
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		user.Aud = aud[0]
	}
	if user.ID == "" {
		return nil, fmt.Errorf("jwt missing subject")
	}
	return user, nil
}

// TokenExpiry returns the exp claim of token. When secret is non-empty the
// signature is verified first; expiry itself is not enforced so callers can
// decide how close to expiry is too close.
func TokenExpiry(token, secret string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if secret == "" {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return time.Time{}, fmt.Errorf("jwt parse: %w", err)
		}
	} else {
		parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithoutClaimsValidation())
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}); err != nil {
			return time.Time{}, fmt.Errorf("jwt parse: %w", err)
		}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("jwt missing exp")
	}
	return claims.ExpiresAt.Time, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func mapClaim(claims jwt.MapClaims, key string) map[string]interface{} {
	if m, ok := claims[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}
