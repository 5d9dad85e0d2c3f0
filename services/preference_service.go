package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
)

const (
	preferenceKeyPrefix = "preferences:"
	preferenceCacheTTL  = 24 * time.Hour
)

// PreferenceStore persists preference snapshots by traveler. Load returns
// (nil, nil) for a traveler with nothing stored.
type PreferenceStore interface {
	Load(ctx context.Context, travelerID string) (*models.PreferenceSnapshot, error)
	Save(ctx context.Context, snapshot models.PreferenceSnapshot) error
}

// MongoPreferenceStore keeps one document per traveler.
type MongoPreferenceStore struct {
	collection *mongo.Collection
}

func NewMongoPreferenceStore(collection *mongo.Collection) *MongoPreferenceStore {
	return &MongoPreferenceStore{collection: collection}
}

// EnsureIndexes creates the unique traveler_id index.
func (s *MongoPreferenceStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "traveler_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoPreferenceStore) Load(ctx context.Context, travelerID string) (*models.PreferenceSnapshot, error) {
	var snap models.PreferenceSnapshot
	err := s.collection.FindOne(ctx, bson.M{"traveler_id": travelerID}).Decode(&snap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return &snap, nil
}

func (s *MongoPreferenceStore) Save(ctx context.Context, snapshot models.PreferenceSnapshot) error {
	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"traveler_id": snapshot.TravelerID},
		snapshot,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// MemoryPreferenceStore is a PreferenceStore for running without MongoDB.
type MemoryPreferenceStore struct {
	mu    sync.Mutex
	snaps map[string]models.PreferenceSnapshot
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{snaps: make(map[string]models.PreferenceSnapshot)}
}

func (s *MemoryPreferenceStore) Load(_ context.Context, travelerID string) (*models.PreferenceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[travelerID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *MemoryPreferenceStore) Save(_ context.Context, snapshot models.PreferenceSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snapshot.TravelerID] = snapshot
	return nil
}

// PreferenceService owns the live preference state of each traveler. State
// is loaded lazily (Redis first, then the store) and written through on
// every change.
type PreferenceService struct {
	store       PreferenceStore
	redisClient *redis.Client
	logger      *slog.Logger

	mu        sync.Mutex
	travelers map[string]*models.CategoryPreference
}

// NewPreferenceService builds the service. redisClient may be nil.
func NewPreferenceService(store PreferenceStore, redisClient *redis.Client, logger *slog.Logger) *PreferenceService {
	return &PreferenceService{
		store:       store,
		redisClient: redisClient,
		logger:      logger,
		travelers:   make(map[string]*models.CategoryPreference),
	}
}

// ForTraveler returns the live preferences of travelerID, loading them on
// first use.
func (s *PreferenceService) ForTraveler(ctx context.Context, travelerID string) (*models.CategoryPreference, error) {
	travelerID = strings.TrimSpace(travelerID)
	if travelerID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	s.mu.Lock()
	pref, ok := s.travelers[travelerID]
	s.mu.Unlock()
	if ok {
		return pref, nil
	}

	snap, err := s.load(ctx, travelerID)
	if err != nil {
		return nil, err
	}
	loaded := models.NewCategoryPreference()
	if snap != nil {
		loaded.Restore(*snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another request may have loaded it meanwhile; keep the first.
	if existing, ok := s.travelers[travelerID]; ok {
		return existing, nil
	}
	s.travelers[travelerID] = loaded
	return loaded, nil
}

// Like records a positive signal for poi and persists the result.
func (s *PreferenceService) Like(ctx context.Context, travelerID string, poi models.POI) (models.PreferenceSnapshot, error) {
	pref, err := s.ForTraveler(ctx, travelerID)
	if err != nil {
		return models.PreferenceSnapshot{}, err
	}
	pref.LikePOI(poi)
	return s.persist(ctx, travelerID, pref)
}

// Dislike records a negative signal for poi and persists the result.
func (s *PreferenceService) Dislike(ctx context.Context, travelerID string, poi models.POI) (models.PreferenceSnapshot, error) {
	pref, err := s.ForTraveler(ctx, travelerID)
	if err != nil {
		return models.PreferenceSnapshot{}, err
	}
	pref.DislikePOI(poi)
	return s.persist(ctx, travelerID, pref)
}

// Snapshot returns the current preferences of travelerID.
func (s *PreferenceService) Snapshot(ctx context.Context, travelerID string) (models.PreferenceSnapshot, error) {
	pref, err := s.ForTraveler(ctx, travelerID)
	if err != nil {
		return models.PreferenceSnapshot{}, err
	}
	snap := pref.Snapshot()
	snap.TravelerID = travelerID
	return snap, nil
}

func (s *PreferenceService) load(ctx context.Context, travelerID string) (*models.PreferenceSnapshot, error) {
	if s.redisClient != nil {
		data, err := s.redisClient.Get(ctx, preferenceKeyPrefix+travelerID).Bytes()
		switch {
		case err == nil:
			var snap models.PreferenceSnapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
			s.logger.Warn("discarding corrupt cached preferences", "traveler_id", travelerID)
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("preference cache read failed", "traveler_id", travelerID, "error", err)
		}
	}

	if s.store == nil {
		return nil, nil
	}
	snap, err := s.store.Load(ctx, travelerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "DB_ERROR", "failed to load preferences", apperrors.ErrInternal.Status)
	}
	if snap != nil {
		s.cache(ctx, *snap)
	}
	return snap, nil
}

func (s *PreferenceService) persist(ctx context.Context, travelerID string, pref *models.CategoryPreference) (models.PreferenceSnapshot, error) {
	snap := pref.Snapshot()
	snap.TravelerID = travelerID
	if s.store != nil {
		if err := s.store.Save(ctx, snap); err != nil {
			return snap, apperrors.Wrap(err, "DB_ERROR", "failed to save preferences", apperrors.ErrInternal.Status)
		}
	}
	s.cache(ctx, snap)
	return snap, nil
}

func (s *PreferenceService) cache(ctx context.Context, snap models.PreferenceSnapshot) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, preferenceKeyPrefix+snap.TravelerID, data, preferenceCacheTTL).Err(); err != nil {
		s.logger.Warn("preference cache write failed", "traveler_id", snap.TravelerID, "error", err)
	}
}
