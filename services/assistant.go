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
	"strings"
	"time"

	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

// Tool names the assistant understands.
const (
	ToolSearchPOI      = "search_poi"
	ToolGetPOIDetails  = "get_poi_details"
	ToolSearchInternet = "search_internet"
	ToolGetDirections  = "get_directions"
)

// Discoverer runs discovery requests. DiscoveryOrchestrator implements it.
type Discoverer interface {
	Discover(ctx context.Context, req models.DiscoveryRequest) (*models.DiscoveryResult, error)
}

// PlaceDetailer looks up a single place. PlacesClient implements it.
type PlaceDetailer interface {
	Details(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// WebSearcher answers a free-text query with a short text snippet.
type WebSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// AskRequest is one user utterance plus where the user is.
type AskRequest struct {
	Text   string           `json:"text"`
	Origin *models.GeoPoint `json:"origin,omitempty"`
}

// AskResponse is the assistant's answer. Tool fields are set only when the
// model requested a tool.
type AskResponse struct {
	Answer        string       `json:"answer"`
	Tool          string       `json:"tool,omitempty"`
	ToolResult    string       `json:"tool_result,omitempty"`
	POIs          []models.POI `json:"pois,omitempty"`
	DirectionsURL string       `json:"directions_url,omitempty"`
}

// Assistant routes a user's request through the language model and the tools
// it may call.
type Assistant struct {
	model      LanguageModel
	discoverer Discoverer
	details    PlaceDetailer
	search     WebSearcher
	logger     *slog.Logger
	maxResults int
}

// NewAssistant wires the assistant. details and search may be nil; the
// matching tools then report that they are unavailable.
func NewAssistant(model LanguageModel, discoverer Discoverer, details PlaceDetailer, search WebSearcher, logger *slog.Logger) *Assistant {
	return &Assistant{
		model:      model,
		discoverer: discoverer,
		details:    details,
		search:     search,
		logger:     logger,
		maxResults: 5,
	}
}

// Ask answers req. Tool failures are reported in the answer text; only an
// empty request or a failing first model call is an error.
func (a *Assistant) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, apperrors.ErrInvalidInput.WithDetails("text is required")
	}
	if req.Origin != nil && !geo.ValidCoordinates(req.Origin.Latitude, req.Origin.Longitude) {
		return nil, apperrors.ErrInvalidInput.WithDetails("invalid coordinates: lat=%v, lon=%v", req.Origin.Latitude, req.Origin.Longitude)
	}
	if a.model == nil {
		return nil, apperrors.ErrUnavailable.WithDetails("no language model configured")
	}

	reply, err := a.model.Generate(ctx, buildAssistantPrompt(text, req.Origin))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnavailable.Code, "assistant unavailable", apperrors.ErrUnavailable.Status)
	}

	parsed := ParseModelResponse(reply)
	if !parsed.IsToolCall() {
		return &AskResponse{Answer: parsed.Text}, nil
	}

	call := parsed.ToolCall
	resp, ok := a.runTool(ctx, call, req.Origin)
	if !ok {
		// Unknown tool: the reply is just text that happens to look like JSON.
		return &AskResponse{Answer: parsed.Text}, nil
	}
	resp.Tool = call.Name

	a.logger.Info("assistant tool call", "tool", call.Name, "parameters", call.Parameters)

	summary, err := a.model.Generate(ctx, buildSummaryPrompt(text, call.Name, resp.ToolResult))
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			a.logger.Warn("assistant summary failed, returning raw tool output", "tool", call.Name, "error", err)
		}
		resp.Answer = resp.ToolResult
		return resp, nil
	}
	resp.Answer = strings.TrimSpace(summary)
	return resp, nil
}

func (a *Assistant) runTool(ctx context.Context, call *ToolCall, origin *models.GeoPoint) (*AskResponse, bool) {
	switch call.Name {
	case ToolSearchPOI:
		return a.searchPOI(ctx, call, origin), true
	case ToolGetPOIDetails:
		return a.poiDetails(ctx, call), true
	case ToolSearchInternet:
		return a.searchInternet(ctx, call), true
	case ToolGetDirections:
		return a.directions(call, origin), true
	default:
		return nil, false
	}
}

func (a *Assistant) searchPOI(ctx context.Context, call *ToolCall, origin *models.GeoPoint) *AskResponse {
	if origin == nil {
		return &AskResponse{ToolResult: "I need your current location to search nearby places."}
	}
	if a.discoverer == nil {
		return &AskResponse{ToolResult: "Place search is not available right now."}
	}

	req := models.DiscoveryRequest{
		Origin:     *origin,
		Category:   call.StringParam("category"),
		MaxResults: a.maxResults,
	}
	if s := call.StringParam("strategy"); s != "" {
		if strategy, err := models.ParseStrategy(s); err == nil {
			req.Strategy = strategy
		}
	}
	if n, ok := call.FloatParam("max_results"); ok && n >= 1 {
		req.MaxResults = min(int(n), 20)
	}

	result, err := a.discoverer.Discover(ctx, req)
	if err != nil {
		a.logger.Warn("assistant place search failed", "error", err)
		return &AskResponse{ToolResult: "Place search failed."}
	}
	if len(result.POIs) == 0 {
		return &AskResponse{ToolResult: fmt.Sprintf("No %s places found nearby.", categoryPhrase(result.Category))}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d places:\n", len(result.POIs))
	for i, p := range result.POIs {
		fmt.Fprintf(&b, "%d. %s (%s), %.1f km away, rated %.1f from %d reviews",
			i+1, p.Name, p.Category, p.DistanceMeters/1000, p.Rating, p.ReviewCount)
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	return &AskResponse{ToolResult: strings.TrimSpace(b.String()), POIs: result.POIs}
}

func (a *Assistant) poiDetails(ctx context.Context, call *ToolCall) *AskResponse {
	placeID := call.StringParam("place_id")
	if placeID == "" {
		return &AskResponse{ToolResult: "Which place? No place ID was given."}
	}
	if a.details == nil {
		return &AskResponse{ToolResult: "Place details are not available right now."}
	}

	d, err := a.details.Details(ctx, placeID)
	if err != nil {
		if errors.Is(err, ErrPlaceNotFound) {
			return &AskResponse{ToolResult: "I couldn't find that place."}
		}
		a.logger.Warn("assistant place details failed", "place_id", placeID, "error", err)
		return &AskResponse{ToolResult: "Place details lookup failed."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s", d.Name)
	if d.Address != "" {
		fmt.Fprintf(&b, ", %s", d.Address)
	}
	fmt.Fprintf(&b, ". Rated %.1f from %d reviews.", d.Rating, d.ReviewCount)
	if d.OpenNow != nil {
		if *d.OpenNow {
			b.WriteString(" Open now.")
		} else {
			b.WriteString(" Closed now.")
		}
	}
	if d.Phone != "" {
		fmt.Fprintf(&b, " Phone %s.", d.Phone)
	}
	if d.Summary != "" {
		fmt.Fprintf(&b, " %s", d.Summary)
	}
	return &AskResponse{ToolResult: b.String()}
}

func (a *Assistant) searchInternet(ctx context.Context, call *ToolCall) *AskResponse {
	query := call.StringParam("query")
	if query == "" {
		return &AskResponse{ToolResult: "What should I search for?"}
	}
	if a.search == nil {
		return &AskResponse{ToolResult: "Web search is not available right now."}
	}
	text, err := a.search.Search(ctx, query)
	if err != nil {
		a.logger.Warn("assistant web search failed", "query", query, "error", err)
		return &AskResponse{ToolResult: "Web search failed."}
	}
	if text == "" {
		return &AskResponse{ToolResult: fmt.Sprintf("No results for %q.", query)}
	}
	return &AskResponse{ToolResult: text}
}

func (a *Assistant) directions(call *ToolCall, origin *models.GeoPoint) *AskResponse {
	destination := call.StringParam("destination")
	lat, hasLat := call.FloatParam("latitude")
	lon, hasLon := call.FloatParam("longitude")
	hasCoords := hasLat && hasLon && geo.ValidCoordinates(lat, lon)

	if destination == "" && !hasCoords {
		return &AskResponse{ToolResult: "Where would you like to go?"}
	}

	target := destination
	if hasCoords {
		target = fmt.Sprintf("%.6f,%.6f", lat, lon)
	}
	params := url.Values{}
	params.Set("api", "1")
	params.Set("destination", target)
	if origin != nil {
		params.Set("origin", fmt.Sprintf("%.6f,%.6f", origin.Latitude, origin.Longitude))
	}
	mapsURL := "https://www.google.com/maps/dir/?" + params.Encode()

	label := destination
	if label == "" {
		label = target
	}
	result := fmt.Sprintf("Directions to %s: %s", label, mapsURL)
	if origin != nil && hasCoords {
		km := geo.Haversine(origin.Latitude, origin.Longitude, lat, lon) / 1000
		result = fmt.Sprintf("%s is %.1f km away in a straight line. Directions: %s", label, km, mapsURL)
	}
	return &AskResponse{ToolResult: result, DirectionsURL: mapsURL}
}

func buildAssistantPrompt(text string, origin *models.GeoPoint) string {
	var b strings.Builder
	b.WriteString("You are a road-trip assistant. Answer briefly.\n")
	if origin != nil {
		fmt.Fprintf(&b, "The user is at latitude %.5f, longitude %.5f.\n", origin.Latitude, origin.Longitude)
	}
	b.WriteString("If a tool helps, reply with only a JSON object {\"name\": <tool>, \"parameters\": {...}}. Tools:\n")
	b.WriteString(`- search_poi {"category": string, "strategy"?: string, "max_results"?: number}: find places nearby` + "\n")
	b.WriteString(`- get_poi_details {"place_id": string}: details of one place` + "\n")
	b.WriteString(`- search_internet {"query": string}: look something up on the web` + "\n")
	b.WriteString(`- get_directions {"destination": string, "latitude"?: number, "longitude"?: number}: route to a place` + "\n")
	b.WriteString("Otherwise answer in plain text.\n\n")
	fmt.Fprintf(&b, "User: %s", text)
	return b.String()
}

func buildSummaryPrompt(text, tool, result string) string {
	return fmt.Sprintf("You are a road-trip assistant. The user asked: %q\n"+
		"The %s tool returned:\n%s\n\n"+
		"Answer the user in two or three spoken sentences. Do not output JSON.", text, tool, result)
}

const defaultDuckDuckGoURL = "https://api.duckduckgo.com/"

// DuckDuckGoSearcher is a WebSearcher over the DuckDuckGo Instant Answer API.
type DuckDuckGoSearcher struct {
	http    *http.Client
	baseURL string
}

func NewDuckDuckGoSearcher(baseURL string, timeout time.Duration) *DuckDuckGoSearcher {
	if baseURL == "" {
		baseURL = defaultDuckDuckGoURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DuckDuckGoSearcher{http: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

type instantAnswer struct {
	Heading       string `json:"Heading"`
	Answer        string `json:"Answer"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Definition    string `json:"Definition"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// Search returns the best snippet for query, or "" when there is none.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("web search: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var ia instantAnswer
	if err := json.Unmarshal(body, &ia); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	switch {
	case ia.Answer != "":
		return ia.Answer, nil
	case ia.AbstractText != "":
		if ia.AbstractURL != "" {
			return fmt.Sprintf("%s (%s)", ia.AbstractText, ia.AbstractURL), nil
		}
		return ia.AbstractText, nil
	case ia.Definition != "":
		return ia.Definition, nil
	}

	var lines []string
	for _, t := range ia.RelatedTopics {
		if t.Text != "" {
			lines = append(lines, t.Text)
		}
		if len(lines) == 3 {
			break
		}
	}
	return strings.Join(lines, "\n"), nil
}
