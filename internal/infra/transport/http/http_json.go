package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mkrupp/homecase-users/internal/domain"
)

// ErrInvalidJSON is returned when a request body is not a non-empty JSON object.
var ErrInvalidJSON = errors.New("invalid json")

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	return nil
}

// WriteMessage writes {"message": msg} with the given status.
func WriteMessage(w http.ResponseWriter, status int, msg string) error {
	return WriteJSON(w, status, domain.MessageResponse{Message: msg})
}

// DecodeJSON reads at most maxBytes of the request body into dst.
// Returns ErrInvalidJSON if the body is empty, not an object, an empty object,
// malformed, or does not fit dst's field types.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.Join(ErrInvalidJSON, fmt.Errorf("read body: %w", err))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	if len(fields) == 0 {
		return ErrInvalidJSON
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.Join(ErrInvalidJSON, err)
	}

	return nil
}
