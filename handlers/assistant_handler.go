package handlers

import (
	"context"
	"net/http"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/services"
	"roadtrip-server/utils/errors"
)

type asker interface {
	Ask(ctx context.Context, req services.AskRequest) (*services.AskResponse, error)
}

type AssistantHandler struct {
	assistant asker
	locations LocationLookup
}

// NewAssistantHandler wires POST /assistant/ask. locations may be nil.
func NewAssistantHandler(assistant asker, locations LocationLookup) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, locations: locations}
}

// Ask handles POST /assistant/ask with a {text, lat, lon} body. When the
// body carries no position, an authenticated traveler's last location is
// used if one is on record.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Text string   `json:"text"`
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
	}
	if !decodeBody(w, r, &input) {
		return
	}

	req := services.AskRequest{Text: input.Text}
	switch {
	case input.Lat != nil && input.Lon != nil:
		req.Origin = &models.GeoPoint{Latitude: *input.Lat, Longitude: *input.Lon}
	case input.Lat != nil || input.Lon != nil:
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("lat and lon must be given together"))
		return
	default:
		req.Origin = h.lastLocation(r)
	}

	resp, err := h.assistant.Ask(r.Context(), req)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AssistantHandler) lastLocation(r *http.Request) *models.GeoPoint {
	travelerID, ok := middleware.TravelerIDFromContext(r.Context())
	if !ok || h.locations == nil {
		return nil
	}
	loc, err := h.locations.LastLocation(r.Context(), travelerID)
	if err != nil {
		return nil
	}
	return loc
}
