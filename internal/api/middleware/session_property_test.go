package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_SessionTokenValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	sessions := NewSessionManager("test-secret-key", time.Hour)

	properties.Property("issued_token_round_trips", prop.ForAll(
		func(userID uint, email string) bool {
			token, expiresAt, err := sessions.Issue(Session{UserID: userID, Email: email, Role: "viewer"})
			if err != nil || !expiresAt.After(time.Now()) {
				return false
			}

			s, err := sessions.Validate(token)
			if err != nil {
				return false
			}
			return s.UserID == userID && s.Email == email && s.Role == "viewer"
		},
		gen.UIntRange(1, 10000),
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) > 0 }),
	))

	properties.Property("garbage_token_rejected", prop.ForAll(
		func(invalidToken string) bool {
			_, err := sessions.Validate(invalidToken)
			return err != nil
		},
		gen.AlphaString(),
	))

	properties.Property("tokens_from_different_secrets_rejected", prop.ForAll(
		func(userID uint) bool {
			other := NewSessionManager("different-secret", time.Hour)
			token, _, err := other.Issue(Session{UserID: userID, Email: "x@example.com"})
			if err != nil {
				return false
			}
			_, err = sessions.Validate(token)
			return errors.Is(err, ErrInvalidToken)
		},
		gen.UIntRange(1, 10000),
	))

	properties.TestingRun(t)
}

func TestSessionManager_ExpiredToken(t *testing.T) {
	sessions := NewSessionManager("secret", time.Minute)
	sessions.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := sessions.Issue(Session{UserID: 1, Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	sessions.now = time.Now
	if _, err := sessions.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate err = %v, want ErrTokenExpired", err)
	}
}

func TestSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sessions := NewSessionManager("secret", time.Hour)
	token, _, err := sessions.Issue(Session{UserID: 7, Email: "ops@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	router := gin.New()
	router.Use(SessionMiddleware(sessions))
	router.GET("/me", func(c *gin.Context) {
		s, ok := GetSession(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": s.UserID, "email": s.Email})
	})

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		}, http.StatusOK},
		{"bearer header", func(r *http.Request) {
			r.Header.Set(AuthorizationHeader, BearerPrefix+token)
		}, http.StatusOK},
		{"tampered cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token + "x"})
		}, http.StatusUnauthorized},
		{"basic auth", func(r *http.Request) {
			r.Header.Set(AuthorizationHeader, "Basic "+token)
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
