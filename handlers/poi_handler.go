package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

const (
	defaultNearbyRadius = 3000
	defaultNearbyLimit  = 20
)

// Discoverer runs discovery requests.
type Discoverer interface {
	Discover(ctx context.Context, req models.DiscoveryRequest) (*models.DiscoveryResult, error)
}

// CatalogFinder looks up catalog POIs around a point.
type CatalogFinder interface {
	FindNearby(ctx context.Context, origin models.GeoPoint, radiusMeters float64, category string, limit int) ([]models.POI, error)
}

// PreferenceLoader returns a traveler's live preferences.
type PreferenceLoader interface {
	ForTraveler(ctx context.Context, travelerID string) (*models.CategoryPreference, error)
}

// LocationLookup returns a traveler's last reported position.
type LocationLookup interface {
	LastLocation(ctx context.Context, travelerID string) (*models.GeoPoint, error)
}

type POIHandler struct {
	discoverer        Discoverer
	catalog           CatalogFinder
	preferences       PreferenceLoader
	locations         LocationLookup
	defaultMaxResults int
}

type NearbyPOIResponse struct {
	NearbyPOIs []models.POI `json:"nearby_pois"`
	Count      int          `json:"count"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	Radius     float64      `json:"radius"`
}

// NewPOIHandler wires the POI endpoints. catalog, preferences and locations
// may be nil.
func NewPOIHandler(d Discoverer, catalog CatalogFinder, preferences PreferenceLoader, locations LocationLookup, defaultMaxResults int) *POIHandler {
	return &POIHandler{
		discoverer:        d,
		catalog:           catalog,
		preferences:       preferences,
		locations:         locations,
		defaultMaxResults: defaultMaxResults,
	}
}

// Discover handles GET /pois/discover. Without lat/lon an authenticated
// traveler is searched around their last reported location.
func (h *POIHandler) Discover(w http.ResponseWriter, r *http.Request) {
	travelerID, authenticated := middleware.TravelerIDFromContext(r.Context())

	origin, err := h.origin(r, travelerID, authenticated)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	req := models.DiscoveryRequest{
		Origin:   origin,
		Category: r.URL.Query().Get("category"),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("strategy")); raw != "" {
		strategy, err := models.ParseStrategy(raw)
		if err != nil {
			middleware.WriteError(w, errors.ErrInvalidRequest.WithDetails("%v", err))
			return
		}
		req.Strategy = strategy
	}
	if req.MaxResults, err = queryInt(r, "max_results", h.defaultMaxResults); err != nil {
		middleware.WriteError(w, err)
		return
	}
	if req.RadiusMeters, _, err = queryFloat(r, "radius"); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if authenticated && h.preferences != nil {
		pref, err := h.preferences.ForTraveler(r.Context(), travelerID)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		req.Preferences = pref
	}

	result, err := h.discoverer.Discover(r.Context(), req)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return
		}
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *POIHandler) origin(r *http.Request, travelerID string, authenticated bool) (models.GeoPoint, error) {
	lat, hasLat, err := queryFloat(r, "lat")
	if err != nil {
		return models.GeoPoint{}, err
	}
	lon, hasLon, err := queryFloat(r, "lon")
	if err != nil {
		return models.GeoPoint{}, err
	}
	if hasLat && hasLon {
		return models.GeoPoint{Latitude: lat, Longitude: lon}, nil
	}
	if hasLat || hasLon || !authenticated || h.locations == nil {
		return models.GeoPoint{}, errors.ErrInvalidRequest.WithDetails("lat and lon are required")
	}
	loc, err := h.locations.LastLocation(r.Context(), travelerID)
	if err != nil {
		if stderrors.Is(err, errors.ErrNotFound) {
			return models.GeoPoint{}, errors.ErrInvalidRequest.WithDetails("lat and lon are required, no last location on record")
		}
		return models.GeoPoint{}, err
	}
	return *loc, nil
}

// GetNearbyPOIs handles GET /pois/nearby, a direct catalog lookup.
func (h *POIHandler) GetNearbyPOIs(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		middleware.WriteError(w, errors.ErrUnavailable.WithDetails("catalog is not configured"))
		return
	}
	lat, hasLat, err := queryFloat(r, "lat")
	if err == nil && !hasLat {
		err = errors.ErrInvalidInput.WithDetails("lat is required")
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	lon, hasLon, err := queryFloat(r, "lon")
	if err == nil && !hasLon {
		err = errors.ErrInvalidInput.WithDetails("lon is required")
	}
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !geo.ValidCoordinates(lat, lon) {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("invalid coordinates: lat=%v, lon=%v", lat, lon))
		return
	}
	radius, _, err := queryFloat(r, "radius")
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if radius <= 0 {
		radius = defaultNearbyRadius
	}
	limit, err := queryInt(r, "limit", defaultNearbyLimit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	origin := models.GeoPoint{Latitude: lat, Longitude: lon}
	pois, err := h.catalog.FindNearby(r.Context(), origin, radius, r.URL.Query().Get("type"), limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NearbyPOIResponse{
		NearbyPOIs: pois,
		Count:      len(pois),
		Lat:        lat,
		Lon:        lon,
		Radius:     radius,
	})
}
