package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadtrip-server/models"
)

var (
	ErrTravelerNotFound = errors.New("traveler not found")
	ErrTravelerExists   = errors.New("traveler already exists")
)

// TravelerStore persists traveler accounts.
type TravelerStore interface {
	Create(ctx context.Context, traveler *models.Traveler) error
	FindByUsername(ctx context.Context, username string) (*models.Traveler, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Traveler, error)
	SetLastLocation(ctx context.Context, publicID string, location models.GeoPoint) error
}

// MongoTravelerStore keeps travelers in a MongoDB collection.
type MongoTravelerStore struct {
	collection *mongo.Collection
}

func NewMongoTravelerStore(collection *mongo.Collection) *MongoTravelerStore {
	return &MongoTravelerStore{collection: collection}
}

// EnsureIndexes makes usernames, emails and public IDs unique.
func (s *MongoTravelerStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "public_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

func (s *MongoTravelerStore) Create(ctx context.Context, traveler *models.Traveler) error {
	_, err := s.collection.InsertOne(ctx, traveler)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTravelerExists
	}
	if err != nil {
		return fmt.Errorf("insert traveler: %w", err)
	}
	return nil
}

func (s *MongoTravelerStore) FindByUsername(ctx context.Context, username string) (*models.Traveler, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

func (s *MongoTravelerStore) FindByPublicID(ctx context.Context, publicID string) (*models.Traveler, error) {
	return s.findOne(ctx, bson.M{"public_id": publicID})
}

func (s *MongoTravelerStore) SetLastLocation(ctx context.Context, publicID string, location models.GeoPoint) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"public_id": publicID},
		bson.M{"$set": bson.M{"last_location": location}},
	)
	if err != nil {
		return fmt.Errorf("update traveler location: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrTravelerNotFound
	}
	return nil
}

func (s *MongoTravelerStore) findOne(ctx context.Context, filter bson.M) (*models.Traveler, error) {
	var traveler models.Traveler
	err := s.collection.FindOne(ctx, filter).Decode(&traveler)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTravelerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find traveler: %w", err)
	}
	return &traveler, nil
}

// MemoryTravelerStore is a TravelerStore for running without MongoDB.
type MemoryTravelerStore struct {
	mu        sync.RWMutex
	byPublic  map[string]models.Traveler
	usernames map[string]string
	emails    map[string]string
}

func NewMemoryTravelerStore() *MemoryTravelerStore {
	return &MemoryTravelerStore{
		byPublic:  make(map[string]models.Traveler),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
	}
}

func (s *MemoryTravelerStore) Create(_ context.Context, traveler *models.Traveler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(traveler.Email)
	if _, ok := s.usernames[traveler.Username]; ok {
		return ErrTravelerExists
	}
	if _, ok := s.emails[email]; ok && email != "" {
		return ErrTravelerExists
	}
	s.byPublic[traveler.PublicID] = *traveler
	s.usernames[traveler.Username] = traveler.PublicID
	if email != "" {
		s.emails[email] = traveler.PublicID
	}
	return nil
}

func (s *MemoryTravelerStore) FindByUsername(_ context.Context, username string) (*models.Traveler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernames[username]
	if !ok {
		return nil, ErrTravelerNotFound
	}
	t := s.byPublic[id]
	return &t, nil
}

func (s *MemoryTravelerStore) FindByPublicID(_ context.Context, publicID string) (*models.Traveler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byPublic[publicID]
	if !ok {
		return nil, ErrTravelerNotFound
	}
	return &t, nil
}

func (s *MemoryTravelerStore) SetLastLocation(_ context.Context, publicID string, location models.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byPublic[publicID]
	if !ok {
		return ErrTravelerNotFound
	}
	t.LastLocation = &location
	s.byPublic[publicID] = t
	return nil
}
