package security

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// WriteJSON writes v with the request correlation id echoed in the headers.
func WriteJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if cid := CorrelationIDFromContext(r.Context()); cid != "" {
		w.Header().Set(CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteJSONError(w http.ResponseWriter, r *http.Request, status int, code string) {
	WriteJSON(w, r, status, ErrorResponse{
		Error:         code,
		CorrelationID: CorrelationIDFromContext(r.Context()),
	})
}
