package api

import (
	_ "embed"
	"net/http"
)

var (
	//go:embed openapi.json
	openAPIDocument []byte

	//go:embed docs.html
	docsPage []byte
)

// handleOpenAPI serves the OpenAPI 3 description of the routes.
func handleOpenAPI(w http.ResponseWriter, _ *http.Request) error {
	return writeStatic(w, ContentTypeJSONUTF8, openAPIDocument)
}

// handleDocs serves a Swagger UI page that renders /openapi.json.
func handleDocs(w http.ResponseWriter, _ *http.Request) error {
	return writeStatic(w, ContentTypeHTMLUTF8, docsPage)
}

func writeStatic(w http.ResponseWriter, contentType string, body []byte) error {
	w.Header().Set(HeaderContentType, contentType)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(body)
	return err
}
