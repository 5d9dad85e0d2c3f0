package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/logger"
	"roadtrip-server/models"
)

func newSeededCatalog(t *testing.T) *GeoService {
	t.Helper()
	client, _ := newTestRedis(t)
	svc := NewGeoService(nil, client, logger.Discard())
	require.NoError(t, svc.Seed(context.Background(), filepath.Join("testdata", "catalog.json")))
	return svc
}

func TestGeoService_FindNearby(t *testing.T) {
	svc := newSeededCatalog(t)

	pois, err := svc.FindNearby(context.Background(), lostLake, 1000, "", 10)
	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, "cat-lost-lake-resort", pois[0].ID)
	assert.Equal(t, "cat-lost-lake-butte", pois[1].ID)
	assert.Less(t, pois[0].DistanceMeters, pois[1].DistanceMeters)
	assert.Equal(t, "hotel", pois[0].Category, "categories are normalized when indexed")
	assert.Equal(t, models.SourceRemote, pois[0].Source)
}

func TestGeoService_CategoryFilterAndLimit(t *testing.T) {
	svc := newSeededCatalog(t)
	ctx := context.Background()

	parks, err := svc.FindNearby(ctx, lostLake, 30000, "hiking", 10)
	require.NoError(t, err)
	require.Len(t, parks, 2)
	assert.Equal(t, "cat-lost-lake-butte", parks[0].ID)
	assert.Equal(t, "cat-tamanawas-falls", parks[1].ID)

	one, err := svc.FindNearby(ctx, lostLake, 30000, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestGeoService_Candidates(t *testing.T) {
	svc := newSeededCatalog(t)

	pois, err := svc.Candidates(context.Background(), SourceQuery{
		Origin:       lostLake,
		Category:     "hotel",
		RadiusMeters: 8000,
		MaxResults:   5,
	})
	require.NoError(t, err)
	require.Len(t, pois, 1)
	assert.Equal(t, "Lost Lake Resort", pois[0].Name)
}

func TestGeoService_UnavailableRedis(t *testing.T) {
	client, mr := newTestRedis(t)
	svc := NewGeoService(nil, client, logger.Discard())
	mr.Close()

	_, err := svc.Candidates(context.Background(), SourceQuery{Origin: lostLake, RadiusMeters: 1000})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestGeoService_SeedMissingFile(t *testing.T) {
	client, _ := newTestRedis(t)
	svc := NewGeoService(nil, client, logger.Discard())

	assert.Error(t, svc.Seed(context.Background(), filepath.Join("testdata", "missing.json")))
	assert.NoError(t, svc.Seed(context.Background(), ""))
}
