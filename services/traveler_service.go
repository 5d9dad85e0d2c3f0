package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

const (
	travelerKeyPrefix  = "traveler:"
	travelerGeoKey     = "travelers:geo"
	travelerCacheTTL   = 24 * time.Hour
	travelerClaimID    = "travelerID"
	travelerClaimName  = "username"
	defaultTokenExpiry = 24 * time.Hour
)

// TravelerService manages traveler accounts, tokens and last known
// positions.
type TravelerService struct {
	store       TravelerStore
	redisClient *redis.Client
	jwtSecret   []byte
	tokenTTL    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewTravelerService builds the service. redisClient may be nil.
func NewTravelerService(store TravelerStore, redisClient *redis.Client, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *TravelerService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenExpiry
	}
	return &TravelerService{
		store:       store,
		redisClient: redisClient,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// GetTraveler retrieves a traveler from Redis or the store.
func (s *TravelerService) GetTraveler(ctx context.Context, publicID string) (*models.Traveler, error) {
	if s.redisClient != nil {
		if data, err := s.redisClient.Get(ctx, travelerKeyPrefix+publicID).Bytes(); err == nil {
			var traveler models.Traveler
			if err := json.Unmarshal(data, &traveler); err == nil {
				return &traveler, nil
			}
		}
	}

	traveler, err := s.store.FindByPublicID(ctx, publicID)
	if errors.Is(err, ErrTravelerNotFound) {
		return nil, apperrors.ErrNotFound.WithDetails("traveler %s", publicID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "DB_ERROR", "failed to load traveler", http.StatusInternalServerError)
	}
	s.cacheTraveler(ctx, traveler)
	return traveler, nil
}

// UpdateLocation records where a traveler is now.
func (s *TravelerService) UpdateLocation(ctx context.Context, publicID string, lat, lon float64) error {
	if publicID == "" {
		return apperrors.ErrUnauthorized
	}
	if !geo.ValidCoordinates(lat, lon) {
		return apperrors.ErrInvalidInput.WithDetails("invalid coordinates: lat=%v, lon=%v", lat, lon)
	}

	location := models.GeoPoint{Latitude: lat, Longitude: lon}
	err := s.store.SetLastLocation(ctx, publicID, location)
	if errors.Is(err, ErrTravelerNotFound) {
		return apperrors.ErrNotFound.WithDetails("traveler %s", publicID)
	}
	if err != nil {
		return apperrors.Wrap(err, "DB_ERROR", "failed to update location", http.StatusInternalServerError)
	}

	if s.redisClient != nil {
		if err := s.redisClient.GeoAdd(ctx, travelerGeoKey, &redis.GeoLocation{
			Name:      publicID,
			Longitude: lon,
			Latitude:  lat,
		}).Err(); err != nil {
			s.logger.Warn("failed to index traveler location", "traveler_id", publicID, "error", err)
		}
		s.redisClient.Del(ctx, travelerKeyPrefix+publicID)
	}

	s.logger.Debug("traveler location updated", "traveler_id", publicID, "lat", lat, "lon", lon)
	return nil
}

// LastLocation returns the most recent position reported by a traveler.
func (s *TravelerService) LastLocation(ctx context.Context, publicID string) (*models.GeoPoint, error) {
	if s.redisClient != nil {
		positions, err := s.redisClient.GeoPos(ctx, travelerGeoKey, publicID).Result()
		if err == nil && len(positions) == 1 && positions[0] != nil {
			return &models.GeoPoint{Latitude: positions[0].Latitude, Longitude: positions[0].Longitude}, nil
		}
	}

	traveler, err := s.GetTraveler(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if traveler.LastLocation == nil {
		return nil, apperrors.ErrNotFound.WithDetails("no location reported for traveler %s", publicID)
	}
	loc := *traveler.LastLocation
	return &loc, nil
}

func (s *TravelerService) cacheTraveler(ctx context.Context, traveler *models.Traveler) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(traveler)
	if err != nil {
		return
	}
	s.redisClient.Set(ctx, travelerKeyPrefix+traveler.PublicID, data, travelerCacheTTL)
}
