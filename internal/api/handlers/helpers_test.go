package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JvSe/deep-logs/internal/api/middleware"
	"github.com/JvSe/deep-logs/internal/database"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
	services.PasswordHashCost = bcrypt.MinCost
}

type testServer struct {
	router   *gin.Engine
	db       *gorm.DB
	users    *services.UserService
	sessions *middleware.SessionManager
	cleanup  func()
}

// newTestServer wires the handlers against a fresh SQLite database
func newTestServer() (*testServer, error) {
	tempDir, err := os.MkdirTemp("", "deep_logs_handlers_test_*")
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver:   database.DriverSQLite,
		Path:     filepath.Join(tempDir, "test.db"),
		LogLevel: "SILENT",
	})
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	summaryService := services.NewSummaryService(db, nil)
	logService := services.NewLogService(db, summaryService, nil)
	userService := services.NewUserService(db)
	sessions := middleware.NewSessionManager("test-secret", time.Hour)

	logHandler := NewLogHandler(logService)
	summaryHandler := NewSummaryHandler(summaryService)
	authHandler := NewAuthHandler(userService, sessions, false)

	router := gin.New()
	router.POST("/api/logs", logHandler.CreateLog)
	router.GET("/api/logs", logHandler.ListLogs)
	router.GET("/api/logs/summary", summaryHandler.ListSummaries)
	router.GET("/api/logs/:id", logHandler.GetLog)
	router.POST("/api/logs/summary/rebuild", summaryHandler.Rebuild)
	router.POST("/api/auth/login", authHandler.Login)
	router.POST("/api/auth/logout", authHandler.Logout)
	router.GET("/api/auth/logout", authHandler.Logout)
	router.GET("/api/auth/me", middleware.SessionMiddleware(sessions), authHandler.Me)

	return &testServer{
		router:   router,
		db:       db,
		users:    userService,
		sessions: sessions,
		cleanup: func() {
			database.Close(db)
			os.RemoveAll(tempDir)
		},
	}, nil
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := newTestServer()
	if err != nil {
		t.Fatalf("Failed to set up server: %v", err)
	}
	t.Cleanup(s.cleanup)
	return s
}

func (s *testServer) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}
