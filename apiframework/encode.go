package apiframework

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Encode writes v as JSON with the given status.
func Encode[T any](w http.ResponseWriter, _ *http.Request, status int, v T) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads a JSON request body into T.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, ErrEmptyRequest
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return v, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, ct)
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, ErrEmptyRequestBody
		}
		return v, fmt.Errorf("%w: decode json: %v", ErrBadRequest, err)
	}
	return v, nil
}

// GetPathParam returns the named path wildcard. description documents the
// parameter for the API reference generator.
func GetPathParam(r *http.Request, name string, description string) string {
	return r.PathValue(name)
}

// GetQueryParam returns the query value or defaultValue when absent.
func GetQueryParam(r *http.Request, name, defaultValue, description string) string {
	if !r.URL.Query().Has(name) {
		return defaultValue
	}
	return r.URL.Query().Get(name)
}
