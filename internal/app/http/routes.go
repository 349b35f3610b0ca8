package routes

import (
	"net/http"
	"time"

	adminapi "ats-scanner/internal/api/admin"
	authapi "ats-scanner/internal/api/auth"
	"ats-scanner/internal/api/billing"
	"ats-scanner/internal/api/plans"
	"ats-scanner/internal/api/resume"
	stripewebhooks "ats-scanner/internal/api/stripewebhook"
	"ats-scanner/internal/api/usage"
	"ats-scanner/internal/api/users"
	"ats-scanner/internal/app/http/middleware"
	plandomain "ats-scanner/internal/domain/plans"
	userdomain "ats-scanner/internal/domain/users"
	"ats-scanner/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handlers groups the endpoint handlers the router dispatches to.
type Handlers struct {
	Auth    *authapi.Handler
	Usage   *usage.Handler
	Resume  *resume.Handler
	Users   *users.Handler
	Billing *billing.Handler
	Plans   *plans.Handler
	Admin   *adminapi.Handler
	Webhook *stripewebhooks.Handler

	// Policies resolves the caller's capabilities for gated routes.
	Policies middleware.PolicySource
}

type Settings struct {
	JWTSecret      []byte
	CORSOrigin     string
	TrustedProxies []string
}

// NewRouter builds the engine with the shared middleware chain and every route.
func NewRouter(s Settings, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	log = logger.OrNop(log)

	r := gin.New()
	if err := r.SetTrustedProxies(s.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{s.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterRoutes(r, s.JWTSecret, h)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, secret []byte, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/webhook/stripe", h.Webhook.StripeWebhook)
	r.GET("/plans", h.Plans.ListPlans)

	// Resume bodies are scored verbatim, so the input sanitizer stays off here.
	resumes := r.Group("/resume")
	resumes.Use(middleware.OptionalAuth(secret))
	resumes.GET("/usage-status", h.Usage.Status)
	// /scan meters itself; record-scan is for uploads scored elsewhere.
	resumes.POST("/record-scan", h.Usage.RecordScan)
	resumes.POST("/scan", h.Resume.Scan)
	resumes.POST("/scan/bulk",
		middleware.AuthMiddleware(secret),
		middleware.RequireCapability(h.Policies, plandomain.FeatureBulkUpload),
		h.Resume.BulkScan)
	resumes.GET("/history", middleware.AuthMiddleware(secret), h.Resume.History)

	auth := r.Group("/auth")
	auth.Use(middleware.SanitizeInput(middleware.CredentialFields...))
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/google", h.Auth.GoogleSignIn)
	auth.GET("/google", h.Auth.GoogleStart)
	auth.GET("/google/callback", h.Auth.GoogleCallback)
	auth.POST("/change-password", middleware.AuthMiddleware(secret), h.Auth.ChangePassword)

	r.GET("/me", middleware.AuthMiddleware(secret), h.Users.GetCurrentUser)

	payment := r.Group("/payment")
	payment.Use(middleware.AuthMiddleware(secret), middleware.SanitizeInput())
	payment.POST("/create-payment-intent", h.Billing.CreatePaymentIntent)
	payment.POST("/create-subscription", h.Billing.CreateSubscription)
	payment.POST("/confirm-payment", h.Billing.ConfirmPayment)
	payment.GET("/subscription-status", h.Billing.SubscriptionStatus)
	payment.POST("/cancel-subscription", h.Billing.CancelSubscription)
	payment.GET("/payment-methods", h.Billing.PaymentMethods)
	payment.GET("/history", h.Billing.PaymentHistory)
	payment.POST("/billing-portal", h.Billing.BillingPortal)

	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(secret), middleware.RequireRole(userdomain.RoleAdmin))
	admin.GET("/users", h.Admin.ListAllUsers)
	admin.GET("/user/:id", h.Admin.GetUserDetails)
	admin.GET("/payments", h.Admin.ListAllPayments)
	admin.GET("/stats", h.Admin.GetAdminStats)
	admin.POST("/sync-plans", h.Plans.SyncPlans)
}
