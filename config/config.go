package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	CORSOrigin     string
	AppURL         string
	TrustedProxies []string

	// Scans an anonymous address gets per reset period.
	AnonymousFreeLimit int

	Stripe StripeConfig
	Google GoogleConfig
	Gemini GeminiConfig
	Log    LogConfig
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
}

// Enabled reports whether Google ID-token sign-in can be offered.
func (g GoogleConfig) Enabled() bool { return g.ClientID != "" }

// RedirectFlowEnabled reports whether the oauth2 code flow is fully configured.
func (g GoogleConfig) RedirectFlowEnabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RedirectURL != ""
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type LogConfig struct {
	JSON  bool
	Debug bool
}

// required lists the keys the server refuses to start without.
var required = []string{"DB_URL", "JWT_SECRET", "STRIPE_SECRET_KEY"}

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("CORS_ORIGIN", "http://localhost:5173")
	viper.SetDefault("APP_URL", "http://localhost:5173")
	viper.SetDefault("ANONYMOUS_FREE_LIMIT", 3)
	viper.SetDefault("STRIPE_CURRENCY", "usd")
	viper.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	viper.SetDefault("LOG_JSON", false)
	viper.SetDefault("LOG_DEBUG", false)
}

// Load reads .env (when present) and the process environment into a Config.
// Values bound to viper by CLI flags take precedence over the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Port:               viper.GetString("PORT"),
		DatabaseURL:        viper.GetString("DB_URL"),
		JWTSecret:          viper.GetString("JWT_SECRET"),
		CORSOrigin:         viper.GetString("CORS_ORIGIN"),
		AppURL:             strings.TrimRight(viper.GetString("APP_URL"), "/"),
		TrustedProxies:     splitList(viper.GetString("TRUSTED_PROXIES")),
		AnonymousFreeLimit: viper.GetInt("ANONYMOUS_FREE_LIMIT"),
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(viper.GetString("STRIPE_CURRENCY")),
		},
		Google: GoogleConfig{
			ClientID:         viper.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret:     viper.GetString("GOOGLE_CLIENT_SECRET"),
			RedirectURL:      viper.GetString("GOOGLE_REDIRECT_URL"),
			FrontendRedirect: viper.GetString("GOOGLE_FRONTEND_REDIRECT"),
		},
		Gemini: GeminiConfig{
			APIKey: viper.GetString("GEMINI_API_KEY"),
			Model:  viper.GetString("GEMINI_MODEL"),
		},
		Log: LogConfig{
			JSON:  viper.GetBool("LOG_JSON"),
			Debug: viper.GetBool("LOG_DEBUG"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails on every missing required key at once.
func (c *Config) Validate() error {
	values := map[string]string{
		"DB_URL":            c.DatabaseURL,
		"JWT_SECRET":        c.JWTSecret,
		"STRIPE_SECRET_KEY": c.Stripe.SecretKey,
	}

	var errs []error
	for _, key := range required {
		if strings.TrimSpace(values[key]) == "" {
			errs = append(errs, fmt.Errorf("missing required environment variable: %s", key))
		}
	}
	if c.AnonymousFreeLimit <= 0 {
		errs = append(errs, fmt.Errorf("ANONYMOUS_FREE_LIMIT must be positive, got %d", c.AnonymousFreeLimit))
	}
	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
