package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

const (
	catalogGeoKey    = "pois:geo"
	catalogKeyPrefix = "poi:"
	catalogPageSize  = 50
)

// GeoService serves a curated POI catalog. MongoDB is the system of record;
// Redis holds a geo index plus one hash per POI for radius queries. A nil
// collection runs the catalog from the seed file alone.
type GeoService struct {
	collection  *mongo.Collection
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewGeoService(collection *mongo.Collection, redisClient *redis.Client, logger *slog.Logger) *GeoService {
	return &GeoService{
		collection:  collection,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (s *GeoService) Name() string        { return "catalog" }
func (s *GeoService) Kind() models.Source { return models.SourceRemote }

// Candidates answers a discovery query from the Redis index.
func (s *GeoService) Candidates(ctx context.Context, q SourceQuery) ([]models.POI, error) {
	pois, err := s.FindNearby(ctx, q.Origin, q.RadiusMeters, q.Category, q.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w: %w", ErrSourceUnavailable, err)
	}
	return pois, nil
}

// FindNearby returns catalog POIs within radiusMeters of origin, closest
// first. An empty category matches everything.
func (s *GeoService) FindNearby(ctx context.Context, origin models.GeoPoint, radiusMeters float64, category string, limit int) ([]models.POI, error) {
	if limit <= 0 || limit > catalogPageSize {
		limit = catalogPageSize
	}
	category = NormalizeCategory(category)

	// Category filtering happens after the geo query, so over-fetch.
	geoResults, err := s.redisClient.GeoRadius(ctx, catalogGeoKey, origin.Longitude, origin.Latitude, &redis.GeoRadiusQuery{
		Radius:    radiusMeters,
		Unit:      "m",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
		Count:     catalogPageSize * 4,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius: %w", err)
	}

	results := make([]models.POI, 0, min(len(geoResults), limit))
	for _, geoResult := range geoResults {
		if len(results) >= limit {
			break
		}
		poiJSON, err := s.redisClient.HGet(ctx, catalogKeyPrefix+geoResult.Name, "data").Result()
		if err != nil {
			s.logger.Warn("catalog entry missing", "poi_id", geoResult.Name, "error", err)
			continue
		}
		var poi models.POI
		if err := json.Unmarshal([]byte(poiJSON), &poi); err != nil {
			s.logger.Warn("catalog entry corrupt", "poi_id", geoResult.Name, "error", err)
			continue
		}
		if category != "" && !strings.EqualFold(poi.Category, category) {
			continue
		}
		poi.Source = models.SourceRemote
		poi.DistanceMeters = geoResult.Dist
		results = append(results, poi)
	}

	s.logger.Debug("catalog nearby lookup",
		"category", category,
		"radius", radiusMeters,
		"results", len(results),
	)
	return results, nil
}

// Seed loads the catalog. If MongoDB is configured and empty it is filled
// from path first; the Redis index is then rebuilt from MongoDB. Without
// MongoDB the index is built straight from path.
func (s *GeoService) Seed(ctx context.Context, path string) error {
	if s.collection == nil {
		if path == "" {
			return nil
		}
		pois, err := readCatalogFile(path)
		if err != nil {
			return err
		}
		return s.Index(ctx, pois)
	}

	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count catalog: %w", err)
	}
	if count == 0 && path != "" {
		s.logger.Info("catalog empty, seeding", "path", path)
		pois, err := readCatalogFile(path)
		if err != nil {
			return err
		}
		docs := make([]any, 0, len(pois))
		for _, poi := range pois {
			docs = append(docs, poi)
		}
		if len(docs) > 0 {
			result, err := s.collection.InsertMany(ctx, docs)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			s.logger.Info("seeded catalog", "inserted", len(result.InsertedIDs))
		}
	}

	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	defer cursor.Close(ctx)
	var pois []models.POI
	if err := cursor.All(ctx, &pois); err != nil {
		return fmt.Errorf("decode catalog: %w", err)
	}
	return s.Index(ctx, pois)
}

// Index replaces the Redis geo index with pois.
func (s *GeoService) Index(ctx context.Context, pois []models.POI) error {
	if err := s.redisClient.Del(ctx, catalogGeoKey).Err(); err != nil {
		return fmt.Errorf("reset geo index: %w", err)
	}

	indexed := 0
	for _, poi := range pois {
		if poi.ID == "" || !geo.ValidCoordinates(poi.Location.Latitude, poi.Location.Longitude) {
			s.logger.Warn("skipping catalog entry", "poi_id", poi.ID, "name", poi.Name)
			continue
		}
		poi.Category = NormalizeCategory(poi.Category)
		poi.Source = models.SourceRemote
		poiJSON, err := json.Marshal(poi)
		if err != nil {
			s.logger.Warn("failed to marshal catalog entry", "poi_id", poi.ID, "error", err)
			continue
		}

		_, err = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, catalogKeyPrefix+poi.ID, "data", poiJSON)
			pipe.GeoAdd(ctx, catalogGeoKey, &redis.GeoLocation{
				Name:      poi.ID,
				Longitude: poi.Location.Longitude,
				Latitude:  poi.Location.Latitude,
			})
			return nil
		})
		if err != nil {
			return fmt.Errorf("index %s: %w", poi.ID, err)
		}
		indexed++
	}

	s.logger.Info("indexed catalog", "count", indexed)
	return nil
}

func readCatalogFile(path string) ([]models.POI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var pois []models.POI
	if err := json.Unmarshal(data, &pois); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	return pois, nil
}
