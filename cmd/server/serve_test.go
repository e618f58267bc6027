package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkage/internal/platform/config"
)

func TestBuildAppInMemory(t *testing.T) {
	cfg := config.Config{
		Server:  config.Server{Addr: ":0", RequestTimeout: time.Second, ShutdownGrace: time.Second},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}},
		Storage: config.StorageMemory,
		Lock:    config.LockConfig{Backend: config.LockLocal},
		Tx:      config.TxConfig{Timeout: time.Second, MaxAttempts: 3},
	}
	require.NoError(t, cfg.Validate())

	a, err := buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.close()

	req := httptest.NewRequest(http.MethodPost, "/identify",
		strings.NewReader(`{"email":"lorraine@hillvalley.edu","phoneNumber":"123456"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"primaryContactId":1`)

	preflight := httptest.NewRequest(http.MethodOptions, "/identify", nil)
	preflight.Header.Set("Origin", "https://shop.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr = httptest.NewRecorder()
	a.router.ServeHTTP(rr, preflight)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://shop.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = httptest.NewRecorder()
	a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	a.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "identify")
}
