package httputil

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Content types written by the helpers
const (
	ContentTypeJSON   = "application/json"
	ContentTypeJSONLD = "application/ld+json; charset=utf-8"
)

// WriteJSONLD writes a JSON-LD document with the given status code
func WriteJSONLD(w http.ResponseWriter, status int, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, "failed to encode response")
		return err
	}
	w.Header().Set("Content-Type", ContentTypeJSONLD)
	w.WriteHeader(status)
	_, err = w.Write(body)
	return err
}

// WriteErrorMessage writes a plain JSON error, used before a resource is
// known and hydra errors can be rendered
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
