package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ats-scanner/config"
	adminapi "ats-scanner/internal/api/admin"
	authapi "ats-scanner/internal/api/auth"
	"ats-scanner/internal/api/billing"
	"ats-scanner/internal/api/plans"
	"ats-scanner/internal/api/resume"
	stripewebhooks "ats-scanner/internal/api/stripewebhook"
	"ats-scanner/internal/api/usage"
	"ats-scanner/internal/api/users"
	"ats-scanner/internal/ai"
	"ats-scanner/internal/ai/gemini"
	routes "ats-scanner/internal/app/http"
	plandomain "ats-scanner/internal/domain/plans"
	"ats-scanner/internal/infra/stripe"
	"ats-scanner/internal/membership"
	"ats-scanner/internal/quota"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	shutdownTimeout    = 15 * time.Second
	scorerMaxLogLength = 500
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "", "listen port (default from PORT, then 8080)")
	if err := viper.BindPFlag("PORT", serveCmd.Flags().Lookup("port")); err != nil {
		log.Fatalf("binding port flag: %v", err)
	}
}

func serve(ctx context.Context) error {
	cfg, db, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if !cfg.Log.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; billing webhooks will be rejected")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := routes.NewRouter(routes.Settings{
		JWTSecret:      []byte(cfg.JWTSecret),
		CORSOrigin:     cfg.CORSOrigin,
		TrustedProxies: cfg.TrustedProxies,
	}, buildHandlers(ctx, cfg, db, logger), logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting the ats-scanner", zap.String("version", version), zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildHandlers(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger) routes.Handlers {
	provider := stripe.NewProvider(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	ledger := quota.NewLedger(db, quota.WithLogger(log.Named("quota")))

	memberships := membership.NewService(db, provider,
		membership.WithLogger(log.Named("membership")),
		membership.WithReturnURL(cfg.AppURL),
	)
	reconciler := membership.NewReconciler(db, membership.WithLogger(log.Named("reconciler")))

	authOpts := []authapi.Option{authapi.WithLogger(log.Named("auth"))}
	if cfg.Google.Enabled() {
		authOpts = append(authOpts, authapi.WithGoogle(cfg.Google, nil))
	}

	return routes.Handlers{
		Auth:     authapi.NewHandler(db, []byte(cfg.JWTSecret), authOpts...),
		Usage:    usage.NewHandler(ledger, cfg.AnonymousFreeLimit, log),
		Resume:   resume.NewHandler(db, ledger, newScorer(ctx, cfg.Gemini, log), cfg.AnonymousFreeLimit, log.Named("resume")),
		Users:    users.NewHandler(db, ledger, nil, log),
		Billing:  billing.NewHandler(memberships, log.Named("billing")),
		Plans:    plans.NewHandler(plandomain.NewCatalog(db), provider, cfg.Stripe.Currency, log.Named("plans")),
		Admin:    adminapi.NewHandler(db, nil, log.Named("admin")),
		Webhook:  stripewebhooks.NewHandler(cfg.Stripe.WebhookSecret, db, reconciler, log.Named("webhook")),
		Policies: memberships,
	}
}

// newScorer returns nil when no Gemini key is configured; scan routes then
// answer 503.
func newScorer(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) ai.Scorer {
	if cfg.APIKey == "" {
		log.Warn("GEMINI_API_KEY is not set; resume scoring is disabled")
		return nil
	}

	generator, err := gemini.NewGenerator(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Error("gemini client unavailable; resume scoring is disabled", zap.Error(err))
		return nil
	}

	scorerLog := log.With(zap.String("provider", "gemini"), zap.String("model", generator.Model()))
	return gemini.NewScorer(generator, scorerLog, scorerMaxLogLength)
}
