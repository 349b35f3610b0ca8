package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"ats-scanner/config"
	"ats-scanner/internal/domain/users"
	"ats-scanner/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func isEmailValid(email string) bool {
	return emailPattern.MatchString(email)
}

type Handler struct {
	db       *gorm.DB
	secret   []byte
	google   config.GoogleConfig
	verifier IDTokenVerifier
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Handler)

func WithLogger(log *zap.Logger) Option {
	return func(h *Handler) { h.logger = logger.OrNop(log) }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithGoogle enables Google sign-in. When verifier is nil the ID token is
// checked against Google's published keys.
func WithGoogle(cfg config.GoogleConfig, verifier IDTokenVerifier) Option {
	return func(h *Handler) {
		h.google = cfg
		h.verifier = verifier
	}
}

func NewHandler(db *gorm.DB, secret []byte, opts ...Option) *Handler {
	h := &Handler{
		db:     db,
		secret: secret,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.verifier == nil && h.google.Enabled() {
		h.verifier = NewGoogleVerifier(h.google.ClientID)
	}
	return h
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

// POST /auth/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Username string `json:"username" binding:"required,max=50"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	if !isPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters long and contain both letters and numbers"})
		return
	}
	if !isEmailValid(input.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}

	ctx := c.Request.Context()
	var taken int64
	if err := h.db.WithContext(ctx).Model(&users.User{}).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Count(&taken).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		return
	}
	if taken > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	hash := string(hashed)

	user := users.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: &hash,
		AuthProvider: users.ProviderLocal,
		Role:         users.RoleUser,
	}
	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		// Lost a race against a concurrent registration.
		h.logger.Warn("user insert failed", zap.String("email", input.Email), zap.Error(err))
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		return
	}

	token, err := IssueToken(h.secret, user, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	h.logger.Info("user registered", zap.Uint("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": toUserResponse(user)})
}

// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		UsernameOrEmail string `json:"username_or_email"`
		Email           string `json:"email"`
		Password        string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	identity := strings.TrimSpace(input.UsernameOrEmail)
	if identity == "" {
		identity = strings.TrimSpace(input.Email)
	}
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username_or_email is required"})
		return
	}

	var user users.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ? OR username = ?", strings.ToLower(identity), identity).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.recordLogin(c, nil, identity, users.ProviderLocal, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if !user.HasPassword() {
		h.recordLogin(c, &user, identity, users.ProviderLocal, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(input.Password)); err != nil {
		h.recordLogin(c, &user, identity, users.ProviderLocal, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := IssueToken(h.secret, user, h.now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	h.recordLogin(c, &user, identity, users.ProviderLocal, true)
	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserResponse(user)})
}

// POST /auth/change-password
func (h *Handler) ChangePassword(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 8 characters with letters and numbers"})
		return
	}

	ctx := c.Request.Context()
	var user users.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if !user.HasPassword() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "This account does not have a password. Sign in with Google.",
		})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(body.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := h.db.WithContext(ctx).Model(&user).Update("password_hash", string(hashed)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// recordLogin writes the audit row for a sign-in attempt. Failures to write
// it never block the login itself.
func (h *Handler) recordLogin(c *gin.Context, u *users.User, identity, provider string, ok bool) {
	row := users.LoginHistory{
		Email:        identity,
		LoginTime:    h.now().UTC(),
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		AuthProvider: provider,
		IsSuccessful: ok,
	}
	if u != nil {
		row.UserID = &u.ID
		row.Email = u.Email
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&row).Error; err != nil {
		h.logger.Warn("login history write failed", zap.String("email", row.Email), zap.Error(err))
	}
}
