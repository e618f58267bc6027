package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"linkage/internal/platform/config"
)

const corsMaxAge = 86400

// CORS answers browser preflights and sets Access-Control-* headers for the
// configured origins. An empty list or "*" allows every origin.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         corsMaxAge,
	})
}
