package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JvSe/deep-logs/internal/api/middleware"
	"github.com/JvSe/deep-logs/internal/config"
	"github.com/JvSe/deep-logs/internal/database"
	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	services.PasswordHashCost = bcrypt.MinCost
}

func setupRouter(t *testing.T, mutate func(*config.Config)) (*gin.Engine, *Components, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir, err := os.MkdirTemp("", "deep_logs_router_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	cfg := config.Default()
	cfg.DataDir = tempDir
	cfg.DatabasePath = filepath.Join(tempDir, "test.db")
	cfg.LogLevel = "SILENT"
	cfg.ReconcileInterval = 0
	if mutate != nil {
		mutate(cfg)
	}

	db, err := database.Open(database.Options{
		Driver:   cfg.DatabaseDriver,
		Path:     cfg.DatabasePath,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}

	router, components, err := SetupRouter(db, cfg)
	if err != nil {
		t.Fatalf("Failed to set up router: %v", err)
	}
	t.Cleanup(func() {
		components.Reconciler.Stop()
		database.Close(db)
		os.RemoveAll(tempDir)
	})
	return router, components, db
}

func request(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, router *gin.Engine, db *gorm.DB, role models.UserRole) string {
	t.Helper()
	users := services.NewUserService(db)
	email := string(role) + "@example.com"
	if _, err := users.CreateUser(context.Background(), email, "secret123", "", role); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	w := request(router, http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "secret123",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Login failed: %d", w.Code)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c.Value
		}
	}
	t.Fatal("No session cookie")
	return ""
}

func TestHealth(t *testing.T) {
	router, _, _ := setupRouter(t, nil)

	w := request(router, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func TestIngest_RequiresAPIKey(t *testing.T) {
	router, components, _ := setupRouter(t, nil)
	event := map[string]string{"level": "INFO", "message": "boot"}

	w := request(router, http.MethodPost, "/api/logs", event, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	w = request(router, http.MethodPost, "/api/logs", event, map[string]string{middleware.APIKeyHeader: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with a wrong key, got %d", w.Code)
	}

	w = request(router, http.MethodPost, "/api/logs", event, map[string]string{
		middleware.APIKeyHeader: components.DefaultKey.Secret,
	})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 with the key, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIngest_DeviceKeysRecordedAndRevocable(t *testing.T) {
	router, components, db := setupRouter(t, nil)
	ctx := context.Background()

	fleet, err := components.DeviceKeys.Create(ctx, "android-fleet")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	event := map[string]string{"level": "WARNING", "message": "low battery"}

	w := request(router, http.MethodPost, "/api/logs", event, map[string]string{middleware.APIKeyHeader: fleet.Secret})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var stored models.Log
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("Failed to read stored log: %v", err)
	}
	if stored.Source == nil || *stored.Source != "android-fleet" {
		t.Errorf("Expected source android-fleet, got %v", stored.Source)
	}

	if err := components.DeviceKeys.Revoke(ctx, "android-fleet"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	w = request(router, http.MethodPost, "/api/logs", event, map[string]string{middleware.APIKeyHeader: fleet.Secret})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 after revocation, got %d", w.Code)
	}

	// other keys keep working
	w = request(router, http.MethodPost, "/api/logs", event, map[string]string{middleware.APIKeyHeader: components.DefaultKey.Secret})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201 with the default key, got %d", w.Code)
	}

	body := request(router, http.MethodGet, "/metrics", nil, nil).Body.String()
	for _, want := range []string{
		`deep_logs_ingest_requests_by_key_total{key="android-fleet"} 1`,
		`deep_logs_ingest_requests_by_key_total{key="default"} 1`,
		`deep_logs_ingest_events_total{status="unauthorized"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestSetupRouter_ImportsLegacyKeyFile(t *testing.T) {
	legacyDir := t.TempDir()
	legacy := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if err := os.WriteFile(filepath.Join(legacyDir, services.LegacyDeviceKeyFile), []byte(legacy+"\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	router, components, _ := setupRouter(t, func(cfg *config.Config) {
		cfg.DataDir = legacyDir
	})
	if components.DefaultKey == nil || components.DefaultKey.Secret != legacy {
		t.Fatalf("Expected the legacy secret as default key, got %+v", components.DefaultKey)
	}

	w := request(router, http.MethodPost, "/api/logs", map[string]string{"level": "INFO", "message": "still here"},
		map[string]string{middleware.APIKeyHeader: legacy})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected devices with the old key to keep working, got %d", w.Code)
	}
}

func TestIngest_RateLimited(t *testing.T) {
	router, components, _ := setupRouter(t, func(cfg *config.Config) {
		cfg.IngestRateLimit = 0.001
		cfg.IngestBurst = 2
	})
	headers := map[string]string{middleware.APIKeyHeader: components.DefaultKey.Secret}
	event := map[string]string{"level": "INFO", "message": "tick"}

	for i := 0; i < 2; i++ {
		if w := request(router, http.MethodPost, "/api/logs", event, headers); w.Code != http.StatusCreated {
			t.Fatalf("Request %d: expected 201, got %d", i, w.Code)
		}
	}
	if w := request(router, http.MethodPost, "/api/logs", event, headers); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

func TestDashboardRoutes_RequireSession(t *testing.T) {
	router, _, db := setupRouter(t, nil)

	for _, path := range []string{"/api/logs", "/api/logs/summary", "/api/log-summary"} {
		if w := request(router, http.MethodGet, path, nil, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", path, w.Code)
		}
	}

	token := login(t, router, db, models.UserRoleViewer)
	auth := map[string]string{middleware.AuthorizationHeader: middleware.BearerPrefix + token}
	for _, path := range []string{"/api/logs", "/api/logs/summary", "/api/log-summary"} {
		if w := request(router, http.MethodGet, path, nil, auth); w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, w.Code)
		}
	}
}

func TestRebuild_AdminOnly(t *testing.T) {
	router, _, db := setupRouter(t, nil)

	viewer := login(t, router, db, models.UserRoleViewer)
	w := request(router, http.MethodPost, "/api/logs/summary/rebuild", nil,
		map[string]string{middleware.AuthorizationHeader: middleware.BearerPrefix + viewer})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for viewer, got %d", w.Code)
	}

	admin := login(t, router, db, models.UserRoleAdmin)
	w = request(router, http.MethodPost, "/api/logs/summary/rebuild", nil,
		map[string]string{middleware.AuthorizationHeader: middleware.BearerPrefix + admin})
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for admin, got %d", w.Code)
	}
}

func TestMetrics_CountIngestOutcomes(t *testing.T) {
	router, components, _ := setupRouter(t, nil)
	headers := map[string]string{middleware.APIKeyHeader: components.DefaultKey.Secret}

	request(router, http.MethodPost, "/api/logs", map[string]string{"level": "CRITICAL", "message": "oom"}, headers)
	request(router, http.MethodPost, "/api/logs", map[string]string{"level": "TRACE", "message": "x"}, headers)

	w := request(router, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`deep_logs_ingest_events_total{status="accepted"} 1`,
		`deep_logs_ingest_events_total{status="invalid"} 1`,
		`deep_logs_ingest_events_by_level_total{level="CRITICAL"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestCORSConfig(t *testing.T) {
	for _, origins := range []string{"*", "", "https://a.example.com, *"} {
		cfg := corsConfig(origins)
		if !cfg.AllowAllOrigins || cfg.AllowCredentials {
			t.Errorf("%q: wildcard origins must not allow credentials, got %+v", origins, cfg)
		}
	}

	cfg := corsConfig("https://a.example.com, https://b.example.com")
	if cfg.AllowAllOrigins || !cfg.AllowCredentials || len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "https://b.example.com" {
		t.Errorf("Unexpected CORS config: %+v", cfg)
	}
}

func TestCORS_CredentialedDashboardOrigin(t *testing.T) {
	router, _, _ := setupRouter(t, func(cfg *config.Config) {
		cfg.CORSOrigins = "https://dash.example.com"
	})

	w := request(router, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://dash.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Expected the dashboard origin echoed, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed, got %q", got)
	}

	w = request(router, http.MethodGet, "/health", nil, map[string]string{"Origin": "https://evil.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Unlisted origin must not be allowed, got %q", got)
	}
}
