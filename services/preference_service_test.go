package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/logger"
	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
)

type failingStore struct{}

func (failingStore) Load(context.Context, string) (*models.PreferenceSnapshot, error) {
	return nil, errors.New("mongo down")
}

func (failingStore) Save(context.Context, models.PreferenceSnapshot) error {
	return errors.New("mongo down")
}

func TestPreferenceService_LikeDislikePersist(t *testing.T) {
	store := NewMemoryPreferenceStore()
	client, mr := newTestRedis(t)
	svc := NewPreferenceService(store, client, logger.Discard())
	ctx := context.Background()

	falls := models.POI{ID: "r-falls", Name: "Tamanawas Falls", Category: "park"}
	resort := models.POI{ID: "r-resort", Name: "Lost Lake Resort", Category: "hotel"}

	_, err := svc.Like(ctx, "trav-1", falls)
	require.NoError(t, err)
	snap, err := svc.Dislike(ctx, "trav-1", resort)
	require.NoError(t, err)

	assert.Equal(t, "trav-1", snap.TravelerID)
	assert.Equal(t, []string{"park"}, snap.Preferred)
	assert.Equal(t, []string{"hotel"}, snap.Avoided)
	assert.Equal(t, []string{"r-resort"}, snap.DislikedPOIs)

	stored, err := store.Load(ctx, "trav-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, snap, *stored)

	assert.True(t, mr.Exists("preferences:trav-1"))
	assert.Equal(t, 24*time.Hour, mr.TTL("preferences:trav-1"))
}

func TestPreferenceService_LoadsFromCacheThenStore(t *testing.T) {
	store := NewMemoryPreferenceStore()
	require.NoError(t, store.Save(context.Background(), models.PreferenceSnapshot{
		TravelerID: "trav-2", Preferred: []string{"museum"},
	}))
	client, mr := newTestRedis(t)
	ctx := context.Background()

	// A fresh service, as after a restart, loads from the store.
	pref, err := NewPreferenceService(store, client, logger.Discard()).ForTraveler(ctx, "trav-2")
	require.NoError(t, err)
	assert.True(t, pref.IsPreferred("museum"))
	assert.True(t, mr.Exists("preferences:trav-2"), "store hits are cached")

	// With the store failing, the Redis copy still answers.
	pref, err = NewPreferenceService(failingStore{}, client, logger.Discard()).ForTraveler(ctx, "trav-2")
	require.NoError(t, err)
	assert.True(t, pref.IsPreferred("museum"))
}

func TestPreferenceService_SameInstancePerTraveler(t *testing.T) {
	svc := NewPreferenceService(NewMemoryPreferenceStore(), nil, logger.Discard())
	ctx := context.Background()

	a, err := svc.ForTraveler(ctx, "trav-3")
	require.NoError(t, err)
	b, err := svc.ForTraveler(ctx, "trav-3")
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := svc.ForTraveler(ctx, "trav-4")
	require.NoError(t, err)
	assert.NotSame(t, a, other)
}

func TestPreferenceService_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewPreferenceService(nil, nil, logger.Discard()).ForTraveler(ctx, " ")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	svc := NewPreferenceService(failingStore{}, nil, logger.Discard())
	_, err = svc.Like(ctx, "trav-5", models.POI{ID: "x", Category: "cafe"})
	require.Error(t, err)
	var apiErr *apperrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "DB_ERROR", apiErr.Code)
}
