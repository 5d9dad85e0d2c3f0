package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/logger"
	"roadtrip-server/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "failed to load fixture %s", name)
	return data
}

func newTestPlacesClient(t *testing.T, apiKey string, handler http.HandlerFunc) *PlacesClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewPlacesClient(PlacesConfig{APIKey: apiKey, BaseURL: server.URL, RPS: 100, Burst: 100}, logger.Discard())
}

func TestPlacesClient_Candidates(t *testing.T) {
	fixture := loadFixture(t, "nearby_lost_lake.json")

	var gotQuery map[string]string
	client := newTestPlacesClient(t, "test-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nearbysearch/json", r.URL.Path)
		gotQuery = map[string]string{
			"location": r.URL.Query().Get("location"),
			"radius":   r.URL.Query().Get("radius"),
			"type":     r.URL.Query().Get("type"),
			"key":      r.URL.Query().Get("key"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(fixture)
	})

	pois, err := client.Candidates(context.Background(), SourceQuery{
		Origin:       lostLake,
		Category:     "attraction",
		RadiusMeters: 8000,
		MaxResults:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, "45.497900,-121.820900", gotQuery["location"])
	assert.Equal(t, "8000", gotQuery["radius"])
	assert.Equal(t, "tourist_attraction", gotQuery["type"])
	assert.Equal(t, "test-key", gotQuery["key"])

	// The permanently closed store is dropped; exclusion is not the client's job.
	require.Len(t, pois, 3)
	resort := pois[0]
	assert.Equal(t, "ChIJlostlakeresort", resort.ID)
	assert.Equal(t, "hotel", resort.Category)
	assert.Equal(t, models.SourceRemote, resort.Source)
	assert.Equal(t, 1423, resort.ReviewCount)
	require.NotNil(t, resort.PriceLevel)
	assert.Equal(t, 2, *resort.PriceLevel)
	require.Len(t, resort.Photos, 1)
	assert.Contains(t, resort.Photos[0], "photo_reference=ref-lake-1")
	assert.Equal(t, "gas_station", pois[1].Category)
	assert.Equal(t, "park", pois[2].Category)
}

func TestPlacesClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		statusCode int
		wantErr    error
	}{
		{"request denied", `{"status":"REQUEST_DENIED","error_message":"bad key"}`, http.StatusOK, ErrRequestDenied},
		{"over query limit", `{"status":"OVER_QUERY_LIMIT"}`, http.StatusOK, ErrOverQueryLimit},
		{"http 429", ``, http.StatusTooManyRequests, ErrOverQueryLimit},
		{"server error", ``, http.StatusBadGateway, ErrPlacesServer},
		{"unknown status", `{"status":"UNKNOWN_ERROR"}`, http.StatusOK, ErrPlacesServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestPlacesClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Candidates(context.Background(), SourceQuery{Origin: lostLake, Category: "cafe", RadiusMeters: 1000})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPlacesClient_ZeroResults(t *testing.T) {
	client := newTestPlacesClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	pois, err := client.Candidates(context.Background(), SourceQuery{Origin: models.GeoPoint{Latitude: 0, Longitude: -160}, RadiusMeters: 1000})
	require.NoError(t, err)
	assert.Empty(t, pois)
}

func TestPlacesClient_MissingAPIKey(t *testing.T) {
	called := false
	client := newTestPlacesClient(t, "", func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := client.Candidates(context.Background(), SourceQuery{Origin: lostLake, RadiusMeters: 1000})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestPlacesClient_UnmappedCategoryUsesKeyword(t *testing.T) {
	var keyword, placeType string
	client := newTestPlacesClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		keyword = r.URL.Query().Get("keyword")
		placeType = r.URL.Query().Get("type")
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS"}`))
	})
	_, err := client.Candidates(context.Background(), SourceQuery{Origin: lostLake, Category: "Waterfalls", RadiusMeters: 99999})
	require.NoError(t, err)
	assert.Equal(t, "Waterfalls", keyword)
	assert.Empty(t, placeType)
}

func TestPlacesClient_Details(t *testing.T) {
	client := newTestPlacesClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/details/json", r.URL.Path)
		assert.Equal(t, "ChIJlostlakeresort", r.URL.Query().Get("place_id"))
		_, _ = w.Write([]byte(`{"status":"OK","result":{
			"place_id":"ChIJlostlakeresort","name":"Lost Lake Resort",
			"formatted_address":"9000 Lost Lake Rd, Hood River, OR 97031",
			"formatted_phone_number":"(541) 386-6366","rating":4.5,"user_ratings_total":1423,
			"editorial_summary":{"overview":"Rustic cabins and campsites on a mountain lake."},
			"opening_hours":{"open_now":true}}}`))
	})

	d, err := client.Details(context.Background(), "ChIJlostlakeresort")
	require.NoError(t, err)
	assert.Equal(t, "Lost Lake Resort", d.Name)
	assert.Equal(t, "(541) 386-6366", d.Phone)
	assert.Equal(t, "Rustic cabins and campsites on a mountain lake.", d.Summary)
	require.NotNil(t, d.OpenNow)
	assert.True(t, *d.OpenNow)

	_, err = client.Details(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidPlaceReq)
}
