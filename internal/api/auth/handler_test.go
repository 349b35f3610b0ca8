package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ats-scanner/config"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	secret = []byte("test-secret")
	now    = time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC)
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier struct {
	claims *GoogleClaims
}

func (s stubVerifier) Verify(_ context.Context, raw string) (*GoogleClaims, error) {
	if raw != "good-token" || s.claims == nil {
		return nil, errors.New("invalid id_token")
	}
	return s.claims, nil
}

func newRouter(t *testing.T, db *gorm.DB, opts ...Option) *gin.Engine {
	t.Helper()
	h := NewHandler(db, secret, append([]Option{WithClock(func() time.Time { return now })}, opts...)...)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/google", h.GoogleSignIn)
	r.GET("/auth/google", h.GoogleStart)
	r.GET("/auth/google/callback", h.GoogleCallback)
	r.POST("/auth/change-password", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			var u users.User
			require.NoError(t, db.Where("username = ?", id).First(&u).Error)
			c.Set("user_id", u.ID)
		}
		c.Next()
	}, h.ChangePassword)
	return r
}

func post(r *gin.Engine, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) tokenResponse {
	t.Helper()
	var out tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func claimsOf(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	return parsed.Claims.(jwt.MapClaims)
}

func TestRegisterAndLogin(t *testing.T) {
	db := testutil.NewDB(t)
	r := newRouter(t, db)

	w := post(r, "/auth/register", `{"username":"jane","email":"Jane@Example.com","password":"hunter22x"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decodeToken(t, w)
	assert.Equal(t, "jane@example.com", reg.User.Email)
	assert.Equal(t, users.RoleUser, reg.User.Role)

	claims := claimsOf(t, reg.Token)
	assert.Equal(t, float64(reg.User.ID), claims["user_id"])
	assert.Equal(t, float64(now.Add(TokenTTL).Unix()), claims["exp"])

	var stored users.User
	require.NoError(t, db.First(&stored, reg.User.ID).Error)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, "hunter22x", *stored.PasswordHash)

	for _, body := range []string{
		`{"username_or_email":"jane","password":"hunter22x"}`,
		`{"email":"jane@example.com","password":"hunter22x"}`,
	} {
		w = post(r, "/auth/login", body)
		require.Equal(t, http.StatusOK, w.Code, body)
		assert.Equal(t, reg.User.ID, decodeToken(t, w).User.ID)
	}

	w = post(r, "/auth/login", `{"username_or_email":"jane","password":"wrong-pass1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(r, "/auth/login", `{"username_or_email":"nobody","password":"wrong-pass1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var history []users.LoginHistory
	require.NoError(t, db.Order("id").Find(&history).Error)
	require.Len(t, history, 4)
	assert.True(t, history[0].IsSuccessful)
	assert.Equal(t, reg.User.ID, *history[0].UserID)
	assert.Equal(t, "192.0.2.1", history[0].IPAddress)
	assert.False(t, history[2].IsSuccessful)
	assert.Nil(t, history[3].UserID)
	assert.Equal(t, "nobody", history[3].Email)
}

func TestRegisterValidation(t *testing.T) {
	db := testutil.NewDB(t)
	r := newRouter(t, db)
	require.Equal(t, http.StatusCreated,
		post(r, "/auth/register", `{"username":"jane","email":"jane@example.com","password":"hunter22x"}`).Code)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "weak password", body: `{"username":"bob","email":"bob@example.com","password":"short"}`, want: http.StatusBadRequest},
		{name: "letters only", body: `{"username":"bob","email":"bob@example.com","password":"abcdefghij"}`, want: http.StatusBadRequest},
		{name: "bad email", body: `{"username":"bob","email":"bob","password":"hunter22x"}`, want: http.StatusBadRequest},
		{name: "duplicate username", body: `{"username":"jane","email":"other@example.com","password":"hunter22x"}`, want: http.StatusConflict},
		{name: "duplicate email", body: `{"username":"bob","email":"JANE@example.com","password":"hunter22x"}`, want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(r, "/auth/register", tt.body).Code)
		})
	}
}

func TestChangePassword(t *testing.T) {
	db := testutil.NewDB(t)
	r := newRouter(t, db)
	require.Equal(t, http.StatusCreated,
		post(r, "/auth/register", `{"username":"jane","email":"jane@example.com","password":"hunter22x"}`).Code)

	w := post(r, "/auth/change-password", `{"old_password":"hunter22x","new_password":"better99y"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/change-password", `{"old_password":"nope","new_password":"better99y"}`, "X-Test-User", "jane")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/change-password", `{"old_password":"hunter22x","new_password":"weak"}`, "X-Test-User", "jane")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/auth/change-password", `{"old_password":"hunter22x","new_password":"better99y"}`, "X-Test-User", "jane")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/login", `{"username_or_email":"jane","password":"hunter22x"}`).Code)
	assert.Equal(t, http.StatusOK, post(r, "/auth/login", `{"username_or_email":"jane","password":"better99y"}`).Code)
}

func TestGoogleSignIn(t *testing.T) {
	db := testutil.NewDB(t)
	verifier := stubVerifier{claims: &GoogleClaims{Sub: "g-123456789", Email: "Jane@Example.com", Name: "jane"}}
	r := newRouter(t, db, WithGoogle(config.GoogleConfig{ClientID: "cid"}, verifier))

	// An existing local account with the same email gets linked.
	require.Equal(t, http.StatusCreated,
		post(r, "/auth/register", `{"username":"jane","email":"jane@example.com","password":"hunter22x"}`).Code)

	w := post(r, "/auth/google", `{"id_token":"good-token"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	linked := decodeToken(t, w)
	assert.Equal(t, "jane", linked.User.Username)

	var u users.User
	require.NoError(t, db.First(&u, linked.User.ID).Error)
	require.NotNil(t, u.GoogleSub)
	assert.Equal(t, "g-123456789", *u.GoogleSub)
	assert.True(t, u.HasPassword(), "linking keeps the local password")

	w = post(r, "/auth/google", `{"credential":"bad-token"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(r, "/auth/google", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleSignInCreatesAccount(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.NewUser(t, db, 0) // takes username "user1"
	verifier := stubVerifier{claims: &GoogleClaims{Sub: "sub-abcdefghij", Email: "user1@gmail.com"}}
	r := newRouter(t, db, WithGoogle(config.GoogleConfig{ClientID: "cid"}, verifier))

	w := post(r, "/auth/google", `{"id_token":"good-token"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decodeToken(t, w)
	assert.Equal(t, "user1-cdefghij", created.User.Username)

	var u users.User
	require.NoError(t, db.First(&u, created.User.ID).Error)
	assert.Equal(t, users.ProviderGoogle, u.AuthProvider)
	assert.False(t, u.HasPassword())

	w = post(r, "/auth/login", `{"email":"user1@gmail.com","password":"whatever1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Google")

	w = post(r, "/auth/google", `{"id_token":"good-token"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.User.ID, decodeToken(t, w).User.ID)
}

func TestGoogleNotConfigured(t *testing.T) {
	r := newRouter(t, testutil.NewDB(t))
	assert.Equal(t, http.StatusServiceUnavailable, post(r, "/auth/google", `{"id_token":"x"}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGoogleRedirectFlowState(t *testing.T) {
	cfg := config.GoogleConfig{ClientID: "cid", ClientSecret: "cs", RedirectURL: "http://localhost:8080/auth/google/callback"}
	r := newRouter(t, testutil.NewDB(t), WithGoogle(cfg, stubVerifier{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "accounts.google.com")
	assert.Contains(t, w.Header().Get("Set-Cookie"), "oauth_state=")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=forged&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "real"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
