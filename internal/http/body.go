package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 4 << 20

// ReadBody reads the whole request body up to maxBytes and puts a fresh
// reader back on r, so signature checks and handlers can both see it.
func ReadBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Request("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, apperr.Request("failed to read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// ReadJSON decodes a JSON request body into dst.
func ReadJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	body, err := ReadBody(w, r, maxBytes)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.Request("invalid JSON body: %v", err)
	}
	return nil
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
