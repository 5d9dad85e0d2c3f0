package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"roadtrip-server/utils/errors"
)

type ctxKey string

const travelerIDKey ctxKey = "travelerID"

// TravelerIDFromContext returns the authenticated traveler, if any.
func TravelerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(travelerIDKey).(string)
	return id, ok && id != ""
}

// WithTravelerID returns ctx carrying travelerID.
func WithTravelerID(ctx context.Context, travelerID string) context.Context {
	return context.WithValue(ctx, travelerIDKey, travelerID)
}

// JWTMiddleware rejects requests without a valid bearer token.
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			travelerID, err := travelerFromRequest(r, jwtSecret)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTravelerID(r.Context(), travelerID)))
		})
	}
}

// OptionalJWTMiddleware attaches the traveler when a valid token is present
// and lets anonymous requests through. An invalid token is still rejected.
func OptionalJWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			travelerID, err := travelerFromRequest(r, jwtSecret)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTravelerID(r.Context(), travelerID)))
		})
	}
}

func travelerFromRequest(r *http.Request, jwtSecret string) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return "", errors.ErrUnauthorized
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewAPIError("INVALID_TOKEN", "Unexpected signing method", http.StatusUnauthorized)
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.ErrUnauthorized
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.ErrUnauthorized
	}
	travelerID, ok := claims["travelerID"].(string)
	if !ok || travelerID == "" {
		return "", errors.ErrUnauthorized
	}
	return travelerID, nil
}
