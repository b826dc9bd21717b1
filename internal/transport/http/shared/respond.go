// Package shared centralizes JSON response envelopes so every handler
// returns errors the same way.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "backtrail/pkg/domain-errors"
)

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError translates a domain error into the JSON error envelope. Uncoded
// errors collapse to a generic internal error so infrastructure detail never
// leaks to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	message := "operation could not be completed, retry"
	var de *dErrors.Error
	if errors.As(err, &de) && de.Code != dErrors.CodeInternal && de.Code != dErrors.CodeUnavailable {
		message = de.Message
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}
