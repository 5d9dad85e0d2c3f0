package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"roadtrip-server/middleware"
	"roadtrip-server/utils/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, errors.ErrInvalidInput.WithDetails("malformed JSON body"))
		return false
	}
	return true
}

// queryFloat parses an optional float parameter. ok is false when the
// parameter is absent.
func queryFloat(r *http.Request, name string) (value float64, ok bool, err error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, nil
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.ErrInvalidRequest.WithDetails("%s must be a number (got %q)", name, raw)
	}
	return value, true, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ErrInvalidRequest.WithDetails("%s must be an integer (got %q)", name, raw)
	}
	return n, nil
}
