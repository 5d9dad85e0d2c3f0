package services

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip-server/models"
)

var lostLake = models.GeoPoint{Latitude: 45.4979, Longitude: -121.8209}

func intPtr(v int) *int { return &v }

func newTestEngine(t *testing.T) *RankingEngine {
	t.Helper()
	engine, err := NewRankingEngine(DefaultWeights())
	require.NoError(t, err)
	return engine
}

func rankingFixture() []models.POI {
	return []models.POI{
		{ID: "a", Name: "Lost Lake Lodge", Category: "hotel", Rating: 4.6, ReviewCount: 320,
			Location: models.GeoPoint{Latitude: 45.5005, Longitude: -121.8190}, Photos: []string{"p1"}},
		{ID: "b", Name: "Tamanawas Falls", Category: "attraction", Rating: 4.8, ReviewCount: 2100,
			Location: models.GeoPoint{Latitude: 45.3960, Longitude: -121.5710}},
		{ID: "c", Name: "Hood River Cafe", Category: "cafe", Rating: 4.2, ReviewCount: 45, PriceLevel: intPtr(1),
			Location: models.GeoPoint{Latitude: 45.7054, Longitude: -121.5215}},
		{ID: "d", Name: "Unrated Trailhead", Category: "park",
			Location: models.GeoPoint{Latitude: 45.4980, Longitude: -121.8200}},
		{ID: "e", Name: "Cloud Cap Overlook", Category: "viewpoint", Rating: 3.9, ReviewCount: 8,
			Location: models.GeoPoint{Latitude: 45.4010, Longitude: -121.6530}},
	}
}

func TestNewWeights_Normalizes(t *testing.T) {
	w, err := NewWeights(3, 2.5, 2, 1.5, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, w.sum(), 1e-12)
	assert.InDelta(t, 0.30, w.Rating, 1e-12)
	assert.InDelta(t, 0.10, w.ReviewCount, 1e-12)

	_, err = NewWeights(0, 0, 0, 0, 0)
	assert.Error(t, err)
	_, err = NewWeights(-1, 1, 1, 1, 1)
	assert.Error(t, err)
}

func TestNewRankingEngine_ZeroWeightsUseDefaults(t *testing.T) {
	engine, err := NewRankingEngine(Weights{})
	require.NoError(t, err)
	assert.InDelta(t, DefaultWeights().Rating, engine.Weights().Rating, 1e-12)
}

func TestRank_ComponentScores(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		poi  models.POI
		want ScoreBreakdown
	}{
		{
			name: "unknown rating and no reviews",
			poi:  models.POI{Name: "Nowhere", Category: "park"},
			want: ScoreBreakdown{Rating: 0, Proximity: 1, Popularity: 0, Category: 0.6, ReviewCount: 0.2,
				Weighted: 0.36, Bonus: 0, Final: 0.36},
		},
		{
			name: "every bonus, capped at one",
			poi: models.POI{Name: "Best", Category: "park", Rating: 5, ReviewCount: 1000,
				Photos: []string{"x"}, PriceLevel: intPtr(2)},
			want: ScoreBreakdown{Rating: 1, Proximity: 1, Popularity: 1, Category: 0.6, ReviewCount: 1,
				Weighted: 0.94, Bonus: 0.19, Final: 1.0},
		},
		{
			name: "expensive place gets no affordability bonus",
			poi:  models.POI{Name: "Pricey", Category: "park", Rating: 4.0, ReviewCount: 21, PriceLevel: intPtr(4)},
			want: ScoreBreakdown{Rating: 0.8, Proximity: 1, Category: 0.6, ReviewCount: 0.6, Bonus: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Explain(tt.poi, 0, nil)
			assert.InDelta(t, tt.want.Rating, got.Rating, 1e-9)
			assert.InDelta(t, tt.want.Proximity, got.Proximity, 1e-9)
			assert.InDelta(t, tt.want.Category, got.Category, 1e-9)
			assert.InDelta(t, tt.want.ReviewCount, got.ReviewCount, 1e-9)
			assert.InDelta(t, tt.want.Bonus, got.Bonus, 1e-9)
			if tt.want.Final != 0 {
				assert.InDelta(t, tt.want.Final, got.Final, 1e-9)
			}
		})
	}
}

func TestRank_PopularityIsLogScaled(t *testing.T) {
	engine := newTestEngine(t)
	hundred := engine.Explain(models.POI{ReviewCount: 100}, 0, nil).Popularity
	thousand := engine.Explain(models.POI{ReviewCount: 1000}, 0, nil).Popularity
	huge := engine.Explain(models.POI{ReviewCount: 500000}, 0, nil).Popularity

	assert.InDelta(t, 0.668, hundred, 0.001)
	assert.InDelta(t, 1.0, thousand, 1e-9)
	assert.Equal(t, 1.0, huge)
}

func TestReviewCountBucket(t *testing.T) {
	cases := map[int]float64{0: 0.2, 5: 0.2, 6: 0.4, 20: 0.4, 21: 0.6, 50: 0.6, 51: 0.8, 100: 0.8, 101: 1.0, 9000: 1.0}
	for n, want := range cases {
		assert.Equal(t, want, reviewCountBucket(n), "reviewCount=%d", n)
	}
}

func TestRank_ScoresBoundedAndSorted(t *testing.T) {
	engine := newTestEngine(t)
	ranked := engine.Rank(rankingFixture(), lostLake, nil)

	require.Len(t, ranked, 5)
	for i, p := range ranked {
		assert.GreaterOrEqual(t, p.Score, 0.0)
		assert.LessOrEqual(t, p.Score, 1.0)
		assert.GreaterOrEqual(t, p.DistanceMeters, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Score, p.Score)
		}
	}
	// The lodge next door collects every bonus and hits the cap.
	assert.Equal(t, "Lost Lake Lodge", ranked[0].Name)
	assert.Equal(t, 1.0, ranked[0].Score)
	assert.Equal(t, "Tamanawas Falls", ranked[1].Name)
}

func TestRank_Deterministic(t *testing.T) {
	engine := newTestEngine(t)
	first := engine.Rank(rankingFixture(), lostLake, nil)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := rankingFixture()
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		again := engine.Rank(shuffled, lostLake, nil)
		assert.Equal(t, first, again)
	}
}

func TestRank_TieBreaks(t *testing.T) {
	engine := newTestEngine(t)
	// All at the origin, all capped at 1.0.
	candidates := []models.POI{
		{ID: "3", Name: "Beta", Rating: 5, ReviewCount: 1000, Photos: []string{"x"}, Location: lostLake},
		{ID: "2", Name: "Alpha", Rating: 5, ReviewCount: 1000, Photos: []string{"x"}, Location: lostLake},
		{ID: "1", Name: "Gamma", Rating: 5, ReviewCount: 2000, Photos: []string{"x"}, Location: lostLake},
	}
	ranked := engine.Rank(candidates, lostLake, nil)

	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"Gamma", "Alpha", "Beta"}, []string{ranked[0].Name, ranked[1].Name, ranked[2].Name})
	for _, p := range ranked {
		assert.Equal(t, 1.0, p.Score)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	engine := newTestEngine(t)
	in := rankingFixture()
	_ = engine.Rank(in, lostLake, nil)
	for _, p := range in {
		assert.Zero(t, p.Score)
		assert.Zero(t, p.DistanceMeters)
	}
	assert.Empty(t, engine.Rank(nil, lostLake, nil))
}

func TestRankingEngine_DislikeLowersCategoryScore(t *testing.T) {
	engine := newTestEngine(t)
	disliked := models.POI{ID: "x", Name: "Greasy Spoon", Category: "restaurant"}
	other := models.POI{ID: "y", Name: "Mountain Diner", Category: "restaurant", Rating: 4.0, ReviewCount: 30}

	before := engine.Explain(other, 0, nil)
	assert.Equal(t, 0.6, before.Category)

	engine.OnDisliked(disliked)
	after := engine.Explain(other, 0, nil)
	assert.Equal(t, 0.2, after.Category)
	assert.Less(t, after.Final, before.Final)

	// Liking moves the category from avoided to preferred.
	engine.OnLiked(other)
	assert.Equal(t, 1.0, engine.CategoryScore("restaurant", nil))
	engine.OnDisliked(disliked)
	assert.Equal(t, 0.2, engine.CategoryScore("Restaurant", nil))
}

func TestRankingEngine_ExplicitPreferences(t *testing.T) {
	engine := newTestEngine(t)
	traveler := models.NewCategoryPreference()
	traveler.Like("cafe")

	assert.Equal(t, 1.0, engine.CategoryScore("cafe", traveler))
	// Session preferences are untouched.
	assert.Equal(t, 0.6, engine.CategoryScore("cafe", nil))

	ranked := engine.Rank(rankingFixture(), lostLake, traveler)
	ranked2 := engine.Rank(rankingFixture(), lostLake, nil)
	var withPref, without float64
	for _, p := range ranked {
		if p.ID == "c" {
			withPref = p.Score
		}
	}
	for _, p := range ranked2 {
		if p.ID == "c" {
			without = p.Score
		}
	}
	assert.Greater(t, withPref, without)
}
