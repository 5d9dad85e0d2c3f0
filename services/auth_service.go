package services

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
)

var errInvalidCredentials = apperrors.NewAPIError("INVALID_CREDENTIALS", "Invalid username or password", http.StatusUnauthorized)

const minPasswordLen = 8

// Register creates a traveler account and returns its public ID.
func (s *TravelerService) Register(ctx context.Context, username, email, password string) (string, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(username) < 3 || len(username) > 32 {
		return "", apperrors.ErrInvalidInput.WithDetails("username must be 3 to 32 characters")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperrors.ErrInvalidInput.WithDetails("invalid email address")
	}
	if len(password) < minPasswordLen {
		return "", apperrors.ErrInvalidInput.WithDetails("password must be at least %d characters", minPasswordLen)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}

	traveler := &models.Traveler{
		PublicID:     uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, traveler); err != nil {
		if errors.Is(err, ErrTravelerExists) {
			return "", apperrors.ErrConflict.WithDetails("username or email already registered")
		}
		return "", apperrors.Wrap(err, "DB_ERROR", "failed to create traveler", http.StatusInternalServerError)
	}

	s.cacheTraveler(ctx, traveler)
	s.logger.Info("traveler registered", "traveler_id", traveler.PublicID)
	return traveler.PublicID, nil
}

// Login authenticates a traveler and returns a signed JWT.
func (s *TravelerService) Login(ctx context.Context, username, password string) (string, error) {
	traveler, err := s.store.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, ErrTravelerNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", apperrors.Wrap(err, "DB_ERROR", "failed to load traveler", http.StatusInternalServerError)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(traveler.PasswordHash), []byte(password)); err != nil {
		return "", errInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		travelerClaimID:   traveler.PublicID,
		travelerClaimName: traveler.Username,
		"exp":             s.now().Add(s.tokenTTL).Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperrors.Wrap(err, "JWT_ERROR", "failed to generate token", http.StatusInternalServerError)
	}

	s.cacheTraveler(ctx, traveler)
	return tokenString, nil
}
