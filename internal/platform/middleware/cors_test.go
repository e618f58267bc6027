package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"linkage/internal/platform/config"
)

func corsRouter(origins ...string) http.Handler {
	r := chi.NewRouter()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: origins}))
	r.Post("/identify", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func preflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/identify", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	return req
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		origin      string
		allowOrigin string
	}{
		{name: "any origin by default", origins: nil, origin: "https://shop.example.com", allowOrigin: "*"},
		{name: "wildcard", origins: []string{"*"}, origin: "https://shop.example.com", allowOrigin: "*"},
		{name: "listed origin", origins: []string{"https://shop.example.com", "https://admin.example.com"}, origin: "https://admin.example.com", allowOrigin: "https://admin.example.com"},
		{name: "unlisted origin", origins: []string{"https://shop.example.com"}, origin: "https://evil.example.com", allowOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := corsRouter(tt.origins...)

			t.Run("preflight", func(t *testing.T) {
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, preflight(tt.origin))

				assert.Less(t, rr.Code, http.StatusMultipleChoices)
				assert.Equal(t, tt.allowOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
				if tt.allowOrigin != "" {
					assert.Equal(t, http.MethodPost, rr.Header().Get("Access-Control-Allow-Methods"))
					assert.Equal(t, "Content-Type", rr.Header().Get("Access-Control-Allow-Headers"))
				}
			})

			t.Run("actual request", func(t *testing.T) {
				req := httptest.NewRequest(http.MethodPost, "/identify", nil)
				req.Header.Set("Origin", tt.origin)
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, req)

				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, tt.allowOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			})
		})
	}
}

func TestCORSRejectsDisallowedMethod(t *testing.T) {
	req := preflight("https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	rr := httptest.NewRecorder()
	corsRouter("*").ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
