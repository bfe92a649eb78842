package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/huangang/soundvault/internal/models"
	"github.com/huangang/soundvault/internal/services"
	"github.com/huangang/soundvault/pkg/logger"
	"github.com/huangang/soundvault/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	users map[string]*models.User
	err   error
	calls int
}

func (s *stubAuthenticator) Authenticate(token string) (*models.User, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.users[token]; ok {
		return user, nil
	}
	return nil, services.ErrInvalidAccessToken
}

func newGatedRouter(authn Authenticator) *gin.Engine {
	router := gin.New()
	router.Use(SessionRequired(authn))
	router.GET("/protected", func(c *gin.Context) {
		user := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "logged_id": c.GetUint(logger.UserIDKey)})
	})
	return router
}

func decodeErrors(t *testing.T, w *httptest.ResponseRecorder) []response.FieldError {
	t.Helper()
	var body response.ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", w.Body.String(), err)
	}
	if len(body.Errors) == 0 {
		t.Fatalf("error body has no entries: %s", w.Body.String())
	}
	return body.Errors
}

func TestSessionRequired_MissingCredential(t *testing.T) {
	authn := &stubAuthenticator{}
	router := newGatedRouter(authn)

	testCases := []string{"", "Basic dXNlcjpwYXNz", "Bearer", "Bearer "}
	for _, header := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", header, http.StatusUnauthorized, w.Code)
			continue
		}
		fe := decodeErrors(t, w)[0]
		if fe.Field != "token" || fe.Message != "Access token is missing" || fe.Type != response.TypeAuthentication {
			t.Errorf("header %q: unexpected error %+v", header, fe)
		}
	}
	if authn.calls != 0 {
		t.Errorf("authenticator called %d times for missing credentials", authn.calls)
	}
}

func TestSessionRequired_InvalidToken(t *testing.T) {
	router := newGatedRouter(&stubAuthenticator{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
	fe := decodeErrors(t, w)[0]
	if fe.Field != "token" || fe.Message != "Invalid or expired access token" {
		t.Errorf("unexpected error %+v", fe)
	}
}

func TestSessionRequired_StoreFailureIsInternal(t *testing.T) {
	router := newGatedRouter(&stubAuthenticator{err: errors.New("database is locked")})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
}

func TestSessionRequired_BearerAndCookie(t *testing.T) {
	authn := &stubAuthenticator{users: map[string]*models.User{
		"header-token": {ID: 7, Role: models.RoleArtist},
		"cookie-token": {ID: 9, Role: models.RoleArtistManager},
	}}
	router := newGatedRouter(authn)

	testCases := []struct {
		name     string
		prepare  func(r *http.Request)
		expected uint
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer header-token") }, 7},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer header-token") }, 7},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"}) }, 9},
		{"cookie wins over header", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "cookie-token"})
			r.Header.Set("Authorization", "Bearer header-token")
		}, 9},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/protected", nil)
			tc.prepare(req)
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
			}
			var body struct {
				UserID   uint `json:"user_id"`
				LoggedID uint `json:"logged_id"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.UserID != tc.expected || body.LoggedID != tc.expected {
				t.Errorf("got user %d (logged %d), expected %d", body.UserID, body.LoggedID, tc.expected)
			}
		})
	}
}

func TestCurrentUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if user := CurrentUser(c); user != nil {
		t.Errorf("expected nil for missing user, got %+v", user)
	}

	c.Set(ContextCurrentUser, "not a user")
	if user := CurrentUser(c); user != nil {
		t.Errorf("expected nil for wrong type, got %+v", user)
	}

	c.Set(ContextCurrentUser, &models.User{ID: 42})
	if user := CurrentUser(c); user == nil || user.ID != 42 {
		t.Errorf("expected user 42, got %+v", user)
	}
}

func TestClientInfo(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request, _ = http.NewRequest("GET", "/", nil)
	c.Request.RemoteAddr = "192.0.2.10:5555"
	c.Request.Header.Set("User-Agent", "soundvault-test")
	c.Set(logger.RequestIDKey, "req-1")

	info := ClientInfo(c)
	if info.IP != "192.0.2.10" || info.UserAgent != "soundvault-test" || info.RequestID != "req-1" {
		t.Errorf("ClientInfo() = %+v", info)
	}
}
