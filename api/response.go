package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Skryldev/users-service/schema"
)

const (
	HeaderContentType   = "Content-Type"
	HeaderLocation      = "Location"
	HeaderRequestID     = "X-Request-ID"
	HeaderTotalCount    = "X-Total-Count"
	ContentTypeJSONUTF8 = "application/json; charset=utf-8"
	ContentTypeHTMLUTF8 = "text/html; charset=utf-8"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string              `json:"error"`
	Fields []schema.FieldError `json:"fields,omitempty"`
}

// RespondWithJSON writes payload as JSON with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("api: marshal response", "error", err)
		w.Header().Set(HeaderContentType, ContentTypeJSONUTF8)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set(HeaderContentType, ContentTypeJSONUTF8)
	w.WriteHeader(status)
	_, _ = w.Write(response)
}
