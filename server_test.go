package main

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeworks_backend/config"
)

func TestRequireDatabaseGatesRoutesUntilConnected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config.SetDB(nil)
	r := gin.New()
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(requireDatabase)
	r.GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]int{"/healthz": http.StatusNoContent, "/items": http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", path, want, w.Code)
		}
	}
}

func TestCorsFromEnv(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://shop.example.com , ,https://admin.example.com")
	cfg := corsFromEnv()
	if cfg.AllowAllOrigins || !slices.Equal(cfg.AllowOrigins, []string{"https://shop.example.com", "https://admin.example.com"}) {
		t.Fatalf("unexpected production origins %v", cfg.AllowOrigins)
	}
	if !slices.Contains(cfg.AllowHeaders, "Idempotency-Key") {
		t.Fatalf("Idempotency-Key not allowed: %v", cfg.AllowHeaders)
	}

	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	if cfg := corsFromEnv(); cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 0 {
		t.Fatalf("empty production allowlist should allow nothing, got %v", cfg.AllowOrigins)
	}

	t.Setenv("GO_ENV", "development")
	if cfg := corsFromEnv(); !cfg.AllowAllOrigins {
		t.Fatalf("development should allow all origins")
	}
}
