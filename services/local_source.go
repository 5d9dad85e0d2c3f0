package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// localPOINamespace seeds the name-based UUIDs given to model-generated POIs,
// which have no provider place ID.
var localPOINamespace = uuid.MustParse("6f1c3f0e-5a0b-4d5e-9a59-3c1b7d2e8f41")

// LocalSource asks a language model for nearby places. It is fast but less
// authoritative than a places API: no place IDs and possibly stale details.
type LocalSource struct {
	model  LanguageModel
	logger *slog.Logger
}

func NewLocalSource(model LanguageModel, logger *slog.Logger) *LocalSource {
	return &LocalSource{model: model, logger: logger}
}

func (s *LocalSource) Name() string        { return "language-model" }
func (s *LocalSource) Kind() models.Source { return models.SourceLocal }

// localPlace is one element of the JSON array the prompt asks for.
type localPlace struct {
	Name          string   `json:"name"`
	Category      string   `json:"category"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"review_count"`
	PriceLevel    *int     `json:"price_level"`
	Description   string   `json:"description"`
	ReviewSummary string   `json:"review_summary"`
	Address       string   `json:"address"`
	Photos        []string `json:"photos"`
}

// Candidates prompts the model and decodes the places it lists.
func (s *LocalSource) Candidates(ctx context.Context, q SourceQuery) ([]models.POI, error) {
	if s.model == nil {
		return nil, fmt.Errorf("no language model configured: %w", ErrSourceUnavailable)
	}

	text, err := s.model.Generate(ctx, buildLocalPrompt(q))
	if err != nil {
		return nil, fmt.Errorf("language model: %w: %w", ErrSourceUnavailable, err)
	}

	places, err := decodeLocalPlaces(text)
	if err != nil {
		s.logger.Debug("local source returned no usable places", "error", err)
		return nil, nil
	}

	pois := make([]models.POI, 0, len(places))
	for _, p := range places {
		poi, ok := p.toPOI(q.Category)
		if !ok {
			continue
		}
		pois = append(pois, poi)
		if q.MaxResults > 0 && len(pois) >= q.MaxResults {
			break
		}
	}
	return pois, nil
}

func buildLocalPrompt(q SourceQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a road-trip guide. List up to %d real, independently owned %s places ", max(q.MaxResults, 1), categoryPhrase(q.Category))
	fmt.Fprintf(&b, "within %.0f km of latitude %.5f, longitude %.5f.\n", q.RadiusMeters/1000, q.Origin.Latitude, q.Origin.Longitude)
	b.WriteString("Skip chain restaurants, chain hotels and gas stations.\n")
	b.WriteString("Respond with only a JSON array. Each element must have: ")
	b.WriteString(`"name", "category", "latitude", "longitude", "rating" (0-5), "review_count", `)
	b.WriteString(`"price_level" (0-4 or null), "description", "review_summary".`)
	return b.String()
}

func categoryPhrase(category string) string {
	if category == "" {
		return "interesting"
	}
	return strings.ReplaceAll(strings.ToLower(category), "_", " ")
}

// decodeLocalPlaces takes the first '[' to the last ']' of the reply.
func decodeLocalPlaces(text string) ([]localPlace, error) {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "[")
	end := strings.LastIndex(trimmed, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model reply")
	}
	var places []localPlace
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &places); err != nil {
		return nil, fmt.Errorf("decoding model places: %w", err)
	}
	return places, nil
}

func (p localPlace) toPOI(requestedCategory string) (models.POI, bool) {
	name := strings.TrimSpace(p.Name)
	if name == "" || !geo.ValidCoordinates(p.Latitude, p.Longitude) {
		return models.POI{}, false
	}
	if p.Latitude == 0 && p.Longitude == 0 {
		// Null Island: the model left coordinates out.
		return models.POI{}, false
	}

	category := NormalizeCategory(p.Category)
	if category == "" {
		category = requestedCategory
	}

	var price *int
	if p.PriceLevel != nil && *p.PriceLevel >= 0 && *p.PriceLevel <= 4 {
		level := *p.PriceLevel
		price = &level
	}

	return models.POI{
		ID:            LocalPOIID(name, p.Latitude, p.Longitude),
		Name:          name,
		Category:      category,
		Location:      models.GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude},
		Rating:        clampRating(p.Rating),
		ReviewCount:   max(p.ReviewCount, 0),
		PriceLevel:    price,
		Source:        models.SourceLocal,
		Photos:        nonEmpty(p.Photos),
		Description:   strings.TrimSpace(p.Description),
		ReviewSummary: strings.TrimSpace(p.ReviewSummary),
		Address:       strings.TrimSpace(p.Address),
	}, true
}

// LocalPOIID derives a stable ID from a place's name and location rounded to
// about 100 m, so the same place generated twice keeps its ID.
func LocalPOIID(name string, lat, lon float64) string {
	key := fmt.Sprintf("%s|%.3f|%.3f", strings.ToLower(strings.TrimSpace(name)), lat, lon)
	return "local-" + uuid.NewSHA1(localPOINamespace, []byte(key)).String()
}

func clampRating(r float64) float64 {
	if r < 0 || r != r {
		return 0
	}
	if r > 5 {
		return 5
	}
	return r
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
