package handlers

import (
	"context"
	"net/http"
	"strings"

	"roadtrip-server/middleware"
	"roadtrip-server/models"
	"roadtrip-server/utils/errors"
)

type preferenceService interface {
	Snapshot(ctx context.Context, travelerID string) (models.PreferenceSnapshot, error)
	Like(ctx context.Context, travelerID string, poi models.POI) (models.PreferenceSnapshot, error)
	Dislike(ctx context.Context, travelerID string, poi models.POI) (models.PreferenceSnapshot, error)
}

type PreferenceHandler struct {
	preferences preferenceService
}

func NewPreferenceHandler(preferences preferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

// Get handles GET /preferences.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	travelerID, ok := middleware.TravelerIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	snap, err := h.preferences.Snapshot(r.Context(), travelerID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Like handles POST /preferences/like with a POI body.
func (h *PreferenceHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.preferences.Like)
}

// Dislike handles POST /preferences/dislike with a POI body.
func (h *PreferenceHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.preferences.Dislike)
}

func (h *PreferenceHandler) record(w http.ResponseWriter, r *http.Request,
	apply func(context.Context, string, models.POI) (models.PreferenceSnapshot, error)) {
	travelerID, ok := middleware.TravelerIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, errors.ErrUnauthorized)
		return
	}
	var poi models.POI
	if !decodeBody(w, r, &poi) {
		return
	}
	if strings.TrimSpace(poi.Category) == "" && strings.TrimSpace(poi.ID) == "" {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("poi needs an id or a category"))
		return
	}

	snap, err := apply(r.Context(), travelerID, poi)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
