package handlers

import (
	"context"
	"net/http"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
)

type travelerService interface {
	GetTraveler(ctx context.Context, publicID string) (*models.Traveler, error)
	UpdateLocation(ctx context.Context, publicID string, lat, lon float64) error
}

type TravelerHandler struct {
	travelers travelerService
}

func NewTravelerHandler(travelers travelerService) *TravelerHandler {
	return &TravelerHandler{travelers: travelers}
}

// Me handles GET /travelers/me.
func (h *TravelerHandler) Me(w http.ResponseWriter, r *http.Request) {
	travelerID, ok := middleware.TravelerIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	traveler, err := h.travelers.GetTraveler(r.Context(), travelerID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, traveler)
}

// PingLocation handles POST /travelers/location with a {lat, lon} body.
func (h *TravelerHandler) PingLocation(w http.ResponseWriter, r *http.Request) {
	travelerID, ok := middleware.TravelerIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}

	var input struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if !decodeBody(w, r, &input) {
		return
	}
	if input.Lat == nil || input.Lon == nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("lat and lon are required"))
		return
	}

	if err := h.travelers.UpdateLocation(r.Context(), travelerID, *input.Lat, *input.Lon); err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Location updated", "travelerID": travelerID})
}
