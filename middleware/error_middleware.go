package middleware

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"roadtrip-server/utils/errors"
)

// ErrorMiddleware recovers from panics and answers with a standardized JSON
// error.
func ErrorMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", "panic", rec, "method", r.Method, "path", r.URL.Path)
					WriteError(w, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON APIError response. Errors that are not
// APIErrors become 500s.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) {
		apiErr = errors.Wrap(err, "UNKNOWN_ERROR", "Unexpected error", errors.ErrInternal.Status)
	}
	if apiErr.Status >= 500 {
		slog.Default().Error("server error", "code", apiErr.Code, "message", apiErr.Message, "details", apiErr.Details)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
