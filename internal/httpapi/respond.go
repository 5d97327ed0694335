package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/portcullis-auth/portcullis/internal/auth"
	"github.com/portcullis-auth/portcullis/internal/ldap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeDirectoryError maps adapter errors to response codes. Wrong
// credentials are 401, unknown principals 404, malformed input 400.
// Everything else, including exhausted directory attempts, is a generic
// 500: clients never see directory internals, the log does.
func (a *API) writeDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, ldap.ErrMalformedRequest):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, ldap.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.logger.Error("directory request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"unavailable", ldap.IsUnavailable(err),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
