package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// Sentinel errors for places API operations.
var (
	ErrMissingAPIKey   = errors.New("places: API key not configured")
	ErrRequestDenied   = errors.New("places: request denied")
	ErrOverQueryLimit  = errors.New("places: over query limit")
	ErrInvalidPlaceReq = errors.New("places: invalid request")
	ErrPlaceNotFound   = errors.New("places: not found")
	ErrPlacesServer    = errors.New("places: server error")
)

const (
	defaultPlacesBaseURL = "https://maps.googleapis.com/maps/api/place"
	placesMaxRadius      = 50000.0
	placesPageSize       = 20
)

// categoryPlaceTypes maps taxonomy categories to Places API types.
var categoryPlaceTypes = map[string]string{
	"restaurant":    "restaurant",
	"cafe":          "cafe",
	"bar":           "bar",
	"attraction":    "tourist_attraction",
	"park":          "park",
	"museum":        "museum",
	"hotel":         "lodging",
	"campground":    "campground",
	"gas_station":   "gas_station",
	"shopping":      "shopping_mall",
	"hospital":      "hospital",
	"parking":       "parking",
	"entertainment": "amusement_park",
}

// placeTypeCategories maps Places API types back onto the taxonomy.
var placeTypeCategories = map[string]string{
	"restaurant":         "restaurant",
	"meal_takeaway":      "restaurant",
	"food":               "restaurant",
	"cafe":               "cafe",
	"bakery":             "cafe",
	"bar":                "bar",
	"night_club":         "bar",
	"tourist_attraction": "attraction",
	"point_of_interest":  "attraction",
	"park":               "park",
	"natural_feature":    "park",
	"museum":             "museum",
	"art_gallery":        "museum",
	"lodging":            "hotel",
	"campground":         "campground",
	"rv_park":            "campground",
	"gas_station":        "gas_station",
	"shopping_mall":      "shopping",
	"store":              "shopping",
	"hospital":           "hospital",
	"pharmacy":           "hospital",
	"parking":            "parking",
	"amusement_park":     "entertainment",
	"movie_theater":      "entertainment",
}

// PlacesConfig configures PlacesClient.
type PlacesConfig struct {
	APIKey  string
	BaseURL string
	RPS     float64
	Burst   int
	Timeout time.Duration
}

// PlacesClient is a rate-limited Google Places API client and the REMOTE
// candidate source.
type PlacesClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewPlacesClient(cfg PlacesConfig, logger *slog.Logger) *PlacesClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPlacesBaseURL
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PlacesClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:  logger,
	}
}

func (c *PlacesClient) Name() string        { return "places-api" }
func (c *PlacesClient) Kind() models.Source { return models.SourceRemote }

// Candidates runs a Nearby Search around the query origin.
func (c *PlacesClient) Candidates(ctx context.Context, q SourceQuery) ([]models.POI, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.6f,%.6f", q.Origin.Latitude, q.Origin.Longitude))
	params.Set("radius", strconv.Itoa(int(min(max(q.RadiusMeters, 1), placesMaxRadius))))
	if t, ok := categoryPlaceTypes[q.Category]; ok {
		params.Set("type", t)
	} else if q.Category != "" {
		params.Set("keyword", q.Category)
	}

	body, err := c.get(ctx, "/nearbysearch/json", params)
	if err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}

	var resp nearbyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("nearby search: decode: %w", err)
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return nil, fmt.Errorf("nearby search: %w", err)
	}

	limit := q.MaxResults
	if limit <= 0 || limit > placesPageSize {
		limit = placesPageSize
	}
	pois := make([]models.POI, 0, min(len(resp.Results), limit))
	for _, r := range resp.Results {
		if len(pois) >= limit {
			break
		}
		if poi, ok := r.toPOI(c.photoURL, q.Category); ok {
			pois = append(pois, poi)
		}
	}

	c.logger.Debug("places nearby search",
		"category", q.Category,
		"radius", q.RadiusMeters,
		"results", len(pois),
	)
	return pois, nil
}

// PlaceDetails is the subset of the Details endpoint the assistant reads.
type PlaceDetails struct {
	PlaceID     string
	Name        string
	Address     string
	Phone       string
	Website     string
	Rating      float64
	ReviewCount int
	Summary     string
	OpenNow     *bool
}

// Details fetches one place by ID.
func (c *PlacesClient) Details(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, ErrInvalidPlaceReq
	}
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "place_id,name,formatted_address,formatted_phone_number,website,rating,user_ratings_total,editorial_summary,opening_hours")

	body, err := c.get(ctx, "/details/json", params)
	if err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}
	var resp detailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("place details: decode: %w", err)
	}
	if err := statusError(resp.Status, resp.ErrorMessage); err != nil {
		return nil, fmt.Errorf("place details: %w", err)
	}
	if resp.Status == "ZERO_RESULTS" {
		return nil, ErrPlaceNotFound
	}

	r := resp.Result
	d := &PlaceDetails{
		PlaceID:     r.PlaceID,
		Name:        r.Name,
		Address:     r.FormattedAddress,
		Phone:       r.FormattedPhoneNumber,
		Website:     r.Website,
		Rating:      r.Rating,
		ReviewCount: r.UserRatingsTotal,
		Summary:     r.EditorialSummary.Overview,
	}
	if r.OpeningHours != nil {
		open := r.OpeningHours.OpenNow
		d.OpenNow = &open
	}
	return d, nil
}

// get executes a rate-limited GET against the API.
func (c *PlacesClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("key", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPlaceNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrOverQueryLimit
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrRequestDenied
	case resp.StatusCode >= 500:
		return nil, ErrPlacesServer
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func (c *PlacesClient) photoURL(ref string) string {
	params := url.Values{}
	params.Set("maxwidth", "800")
	params.Set("photo_reference", ref)
	params.Set("key", c.apiKey)
	return c.baseURL + "/photo?" + params.Encode()
}

func statusError(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "REQUEST_DENIED":
		return fmt.Errorf("%w: %s", ErrRequestDenied, message)
	case "OVER_QUERY_LIMIT":
		return ErrOverQueryLimit
	case "INVALID_REQUEST":
		return fmt.Errorf("%w: %s", ErrInvalidPlaceReq, message)
	case "NOT_FOUND":
		return ErrPlaceNotFound
	default:
		return fmt.Errorf("%w: status %q", ErrPlacesServer, status)
	}
}

// Raw API response types.

type nearbyResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level"`
	Types            []string `json:"types"`
	BusinessStatus   string   `json:"business_status"`
	Photos           []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		PlaceID              string  `json:"place_id"`
		Name                 string  `json:"name"`
		FormattedAddress     string  `json:"formatted_address"`
		FormattedPhoneNumber string  `json:"formatted_phone_number"`
		Website              string  `json:"website"`
		Rating               float64 `json:"rating"`
		UserRatingsTotal     int     `json:"user_ratings_total"`
		EditorialSummary     struct {
			Overview string `json:"overview"`
		} `json:"editorial_summary"`
		OpeningHours *struct {
			OpenNow bool `json:"open_now"`
		} `json:"opening_hours"`
	} `json:"result"`
}

func (r placeResult) toPOI(photoURL func(string) string, requestedCategory string) (models.POI, bool) {
	lat, lng := r.Geometry.Location.Lat, r.Geometry.Location.Lng
	if strings.TrimSpace(r.Name) == "" || r.BusinessStatus == "CLOSED_PERMANENTLY" || !geo.ValidCoordinates(lat, lng) {
		return models.POI{}, false
	}

	category := requestedCategory
	for _, t := range r.Types {
		if c, ok := placeTypeCategories[t]; ok && c != "attraction" {
			category = c
			break
		}
	}
	if category == "" {
		category = "attraction"
	}

	photos := make([]string, 0, len(r.Photos))
	for _, p := range r.Photos {
		if p.PhotoReference != "" {
			photos = append(photos, photoURL(p.PhotoReference))
		}
	}

	return models.POI{
		ID:          r.PlaceID,
		Name:        strings.TrimSpace(r.Name),
		Category:    category,
		Location:    models.GeoPoint{Latitude: lat, Longitude: lng},
		Rating:      clampRating(r.Rating),
		ReviewCount: max(r.UserRatingsTotal, 0),
		PriceLevel:  r.PriceLevel,
		Source:      models.SourceRemote,
		Photos:      photos,
		Address:     r.Vicinity,
		Tags:        r.Types,
	}, true
}
