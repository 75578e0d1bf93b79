package httpx

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	// QuoteID points at a recoverable orphaned header after a partial write.
	QuoteID string `json:"quote_id,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// best-effort error response; avoid writing partial JSON
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		// nothing we can do at this point
		_ = err
	}
}

func JSONError(w http.ResponseWriter, status int, msg string, details any) {
	JSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// JSONPartialWrite reports a soft failure: the quote header exists without
// items and can be resumed through the edit path.
func JSONPartialWrite(w http.ResponseWriter, quoteID string) {
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "partial_write", QuoteID: quoteID})
}
