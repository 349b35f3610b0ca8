package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"ats-scanner/internal/domain/users"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const googleIssuer = "https://accounts.google.com"

type GoogleClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

// IDTokenVerifier checks a Google ID token and returns its claims.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*GoogleClaims, error)
}

// oidcVerifier discovers Google's keys on first use and keeps the verifier.
// A failed discovery is retried on the next call.
type oidcVerifier struct {
	clientID string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewGoogleVerifier(clientID string) IDTokenVerifier {
	return &oidcVerifier{clientID: clientID}
}

func (v *oidcVerifier) load(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	return v.verifier, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleClaims, error) {
	verifier, err := v.load(ctx)
	if err != nil {
		return nil, err
	}
	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.New("invalid id_token")
	}

	var claims GoogleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.New("failed to decode token claims")
	}
	if claims.Email == "" || claims.Sub == "" {
		return nil, errors.New("token missing required claims")
	}
	return &claims, nil
}

func (h *Handler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.google.ClientID,
		ClientSecret: h.google.ClientSecret,
		RedirectURL:  h.google.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		Endpoint:     google.Endpoint,
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// POST /auth/google
func (h *Handler) GoogleSignIn(c *gin.Context) {
	if h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	var body struct {
		IDToken    string `json:"id_token"`
		Credential string `json:"credential"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	raw := body.IDToken
	if raw == "" {
		raw = body.Credential
	}
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token is required"})
		return
	}

	user, token, ok := h.googleLogin(c, raw)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserResponse(user)})
}

// GET /auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	if !h.google.RedirectFlowEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	secure := strings.HasPrefix(h.google.RedirectURL, "https://")
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("oauth_state", state, 300, "/", "", secure, true)

	c.Redirect(http.StatusFound, h.oauthConfig().AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GET /auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	if !h.google.RedirectFlowEnabled() || h.verifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in is not configured"})
		return
	}

	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}
	cookieState, err := c.Cookie("oauth_state")
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie("oauth_state", "", -1, "/", "", false, true)

	tok, err := h.oauthConfig().Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("google code exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing id_token"})
		return
	}

	_, token, ok := h.googleLogin(c, raw)
	if !ok {
		return
	}

	if h.google.FrontendRedirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": token})
		return
	}
	c.Redirect(http.StatusFound, h.google.FrontendRedirect+"?token="+token)
}

// googleLogin verifies the ID token, finds or creates the account and issues
// a session token. It writes the error response itself when ok is false.
func (h *Handler) googleLogin(c *gin.Context, rawIDToken string) (users.User, string, bool) {
	claims, err := h.verifier.Verify(c.Request.Context(), rawIDToken)
	if err != nil {
		h.recordLogin(c, nil, "", users.ProviderGoogle, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return users.User{}, "", false
	}

	user, err := h.findOrCreateGoogleUser(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("google user upsert failed", zap.String("email", claims.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return users.User{}, "", false
	}

	token, err := IssueToken(h.secret, user, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return users.User{}, "", false
	}

	h.recordLogin(c, &user, claims.Email, users.ProviderGoogle, true)
	return user, token, true
}

func (h *Handler) findOrCreateGoogleUser(ctx context.Context, gc *GoogleClaims) (users.User, error) {
	db := h.db.WithContext(ctx)
	var user users.User

	err := db.Where("google_sub = ?", gc.Sub).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, err
	}

	email := strings.ToLower(gc.Email)
	err = db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.GoogleSub == nil {
			sub := gc.Sub
			user.GoogleSub = &sub
			if err := db.Model(&user).Update("google_sub", sub).Error; err != nil {
				return users.User{}, err
			}
		}
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return users.User{}, err
	}

	username, err := h.freeUsername(ctx, firstNonEmpty(gc.Name, strings.Split(email, "@")[0]), gc.Sub)
	if err != nil {
		return users.User{}, err
	}
	sub := gc.Sub
	user = users.User{
		Username:     username,
		Email:        email,
		AuthProvider: users.ProviderGoogle,
		GoogleSub:    &sub,
		Role:         users.RoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		return users.User{}, err
	}
	return user, nil
}

// freeUsername returns base, or base with a suffix from the Google subject
// when base is already taken.
func (h *Handler) freeUsername(ctx context.Context, base, sub string) (string, error) {
	base = truncate(strings.TrimSpace(base), 40)
	var n int64
	if err := h.db.WithContext(ctx).Model(&users.User{}).Where("username = ?", base).Count(&n).Error; err != nil {
		return "", err
	}
	if n == 0 {
		return base, nil
	}
	if len(sub) > 8 {
		sub = sub[len(sub)-8:]
	}
	return base + "-" + sub, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
