//go:build swagger

package httpapi

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "llmed/internal/httpapi/docs"
)

// MountSwagger serves the Swagger UI at /swagger/ backed by the registered
// docs in internal/httpapi/docs.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
