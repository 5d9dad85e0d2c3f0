package services

import (
	"fmt"
	"math"
	"sort"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// Weights are the relative importance of the five ranking components. They
// always sum to 1.0.
type Weights struct {
	Rating             float64 `json:"rating"`
	Proximity          float64 `json:"proximity"`
	Popularity         float64 `json:"popularity"`
	CategoryPreference float64 `json:"category_preference"`
	ReviewCount        float64 `json:"review_count"`
}

// DefaultWeights returns the stock 0.30/0.25/0.20/0.15/0.10 weighting.
func DefaultWeights() Weights {
	return Weights{
		Rating:             0.30,
		Proximity:          0.25,
		Popularity:         0.20,
		CategoryPreference: 0.15,
		ReviewCount:        0.10,
	}
}

// NewWeights validates and re-normalizes the given weights so they sum to 1.0.
func NewWeights(rating, proximity, popularity, category, reviewCount float64) (Weights, error) {
	w := Weights{rating, proximity, popularity, category, reviewCount}
	for _, v := range []float64{rating, proximity, popularity, category, reviewCount} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Weights{}, fmt.Errorf("ranking weights must be finite and non-negative (got %+v)", w)
		}
	}
	sum := w.sum()
	if sum == 0 {
		return Weights{}, fmt.Errorf("ranking weights must not all be zero")
	}
	return Weights{
		Rating:             rating / sum,
		Proximity:          proximity / sum,
		Popularity:         popularity / sum,
		CategoryPreference: category / sum,
		ReviewCount:        reviewCount / sum,
	}, nil
}

func (w Weights) sum() float64 {
	return w.Rating + w.Proximity + w.Popularity + w.CategoryPreference + w.ReviewCount
}

// Category component scores.
const (
	preferredCategoryScore = 1.0
	neutralCategoryScore   = 0.6
	avoidedCategoryScore   = 0.2
)

// Additive bonuses applied after weighting.
const (
	highRatingBonus     = 0.10
	manyReviewsBonus    = 0.05
	photosBonus         = 0.02
	affordabilityBonus  = 0.02
	highRatingThreshold = 4.5
	manyReviewsMin      = 100
	affordablePriceMax  = 2
)

// ScoreBreakdown exposes every component of a POI's score.
type ScoreBreakdown struct {
	Rating      float64 `json:"rating"`
	Proximity   float64 `json:"proximity"`
	Popularity  float64 `json:"popularity"`
	Category    float64 `json:"category"`
	ReviewCount float64 `json:"review_count"`
	Weighted    float64 `json:"weighted"`
	Bonus       float64 `json:"bonus"`
	Final       float64 `json:"final"`
}

// RankingEngine scores and orders candidates. It owns the session's category
// preferences, which like/dislike signals update between calls.
type RankingEngine struct {
	weights Weights
	session *models.CategoryPreference
}

// NewRankingEngine creates an engine. Weights are re-normalized; zero-value
// weights select the defaults.
func NewRankingEngine(weights Weights) (*RankingEngine, error) {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	normalized, err := NewWeights(weights.Rating, weights.Proximity, weights.Popularity,
		weights.CategoryPreference, weights.ReviewCount)
	if err != nil {
		return nil, err
	}
	return &RankingEngine{
		weights: normalized,
		session: models.NewCategoryPreference(),
	}, nil
}

// mustDefaultRanker builds an engine with DefaultWeights and panics if they
// are ever edited into an invalid set.
func mustDefaultRanker() *RankingEngine {
	e, err := NewRankingEngine(DefaultWeights())
	if err != nil {
		panic(fmt.Sprintf("default ranking weights: %v", err))
	}
	return e
}

// Weights returns the normalized weights in use.
func (e *RankingEngine) Weights() Weights {
	return e.weights
}

// SessionPreferences returns the engine-owned preference state.
func (e *RankingEngine) SessionPreferences() *models.CategoryPreference {
	return e.session
}

// OnLiked prefers poi's category for future rankings.
func (e *RankingEngine) OnLiked(poi models.POI) {
	e.session.LikePOI(poi)
}

// OnDisliked avoids poi's category for future rankings.
func (e *RankingEngine) OnDisliked(poi models.POI) {
	e.session.DislikePOI(poi)
}

// CategoryScore returns the category component for category under pref
// (nil selects the session preferences).
func (e *RankingEngine) CategoryScore(category string, pref *models.CategoryPreference) float64 {
	if pref == nil {
		pref = e.session
	}
	switch {
	case pref.IsPreferred(category):
		return preferredCategoryScore
	case pref.IsAvoided(category):
		return avoidedCategoryScore
	default:
		return neutralCategoryScore
	}
}

// Rank scores every candidate against origin and returns a new slice sorted
// by descending score. Ties fall back to review count (desc), name, then ID,
// so the order is fully deterministic. Candidates keep their DistanceMeters
// and Score populated. The input slice is not modified.
func (e *RankingEngine) Rank(candidates []models.POI, origin models.GeoPoint, pref *models.CategoryPreference) []models.POI {
	ranked := models.ClonePOIs(candidates)
	if len(ranked) == 0 {
		return ranked
	}

	maxDistance := 0.0
	for i := range ranked {
		ranked[i].DistanceMeters = geo.Haversine(origin.Latitude, origin.Longitude,
			ranked[i].Location.Latitude, ranked[i].Location.Longitude)
		maxDistance = math.Max(maxDistance, ranked[i].DistanceMeters)
	}
	if len(ranked) <= 1 {
		maxDistance = 0
	}

	for i := range ranked {
		ranked[i].Score = e.score(ranked[i], maxDistance, pref).Final
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	return ranked
}

// Explain returns the score breakdown of poi. maxDistance is the farthest
// candidate distance in the batch; 0 scores proximity as 1.0.
func (e *RankingEngine) Explain(poi models.POI, maxDistance float64, pref *models.CategoryPreference) ScoreBreakdown {
	return e.score(poi, maxDistance, pref)
}

func (e *RankingEngine) score(poi models.POI, maxDistance float64, pref *models.CategoryPreference) ScoreBreakdown {
	b := ScoreBreakdown{
		Rating:      clamp01(poi.Rating / 5.0),
		Proximity:   1.0,
		Popularity:  clamp01(math.Log(float64(max(poi.ReviewCount, 0))+1) / math.Log(1001)),
		Category:    e.CategoryScore(poi.Category, pref),
		ReviewCount: reviewCountBucket(poi.ReviewCount),
	}
	if maxDistance > 0 {
		b.Proximity = clamp01(1 - poi.DistanceMeters/maxDistance)
	}

	w := e.weights
	b.Weighted = w.Rating*b.Rating +
		w.Proximity*b.Proximity +
		w.Popularity*b.Popularity +
		w.CategoryPreference*b.Category +
		w.ReviewCount*b.ReviewCount

	if poi.Rating >= highRatingThreshold {
		b.Bonus += highRatingBonus
	}
	if poi.ReviewCount >= manyReviewsMin {
		b.Bonus += manyReviewsBonus
	}
	if len(poi.Photos) > 0 {
		b.Bonus += photosBonus
	}
	if poi.PriceLevel != nil && *poi.PriceLevel <= affordablePriceMax {
		b.Bonus += affordabilityBonus
	}

	b.Final = math.Min(1.0, math.Max(0, b.Weighted+b.Bonus))
	return b
}

func reviewCountBucket(n int) float64 {
	switch {
	case n <= 5:
		return 0.2
	case n <= 20:
		return 0.4
	case n <= 50:
		return 0.6
	case n <= 100:
		return 0.8
	default:
		return 1.0
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
