// openapi.go — GET /api/openapi.json: встроенный OpenAPI-документ в JSON.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// NewOpenAPIHandler сериализует документ один раз и отдаёт его на каждый запрос.
func NewOpenAPIHandler(doc *openapi3.T) (http.HandlerFunc, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("сериализация OpenAPI: %w", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}, nil
}
