package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Symptom analysis providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`

	GeminiAPIKey     string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel      string `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL    string `mapstructure:"GEMINI_BASE_URL"`
	OpenAIAPIKey     string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel      string `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL    string `mapstructure:"OPENAI_BASE_URL"`
	SymptomsProvider string `mapstructure:"SYMPTOMS_PROVIDER"`

	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	FunctionBodyLimit string        `mapstructure:"FUNCTION_BODY_LIMIT"`
	APIBodyLimit      string        `mapstructure:"API_BODY_LIMIT"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`

	UploadDir      string `mapstructure:"UPLOAD_DIR"`
	UploadMaxBytes int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	UploadBaseURL  string `mapstructure:"UPLOAD_BASE_URL"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "CORS_ORIGINS",
	"AUTH_JWT_SECRET", "AUTH_JWKS_URL", "AUTH_ISSUER", "AUTH_AUDIENCE",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL",
	"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "SYMPTOMS_PROVIDER",
	"REQUEST_TIMEOUT", "FUNCTION_BODY_LIMIT", "API_BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"UPLOAD_DIR", "UPLOAD_MAX_BYTES", "UPLOAD_BASE_URL",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads the environment, overlaid on an optional .env file in the working
// directory.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("SYMPTOMS_PROVIDER", ProviderOpenAI)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("FUNCTION_BODY_LIMIT", "15M")
	v.SetDefault("API_BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("UPLOAD_MAX_BYTES", 10<<20)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.SymptomsProvider = strings.ToLower(strings.TrimSpace(cfg.SymptomsProvider))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Missing provider
// keys are not errors; they surface per request and in Warnings.
func (c *Config) Validate() error {
	if c.IsProduction() && c.AuthJWTSecret == "" && c.AuthJWKSURL == "" && c.AuthIssuer == "" {
		return fmt.Errorf("AUTH_JWT_SECRET, AUTH_JWKS_URL or AUTH_ISSUER is required in production")
	}

	switch c.SymptomsProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("SYMPTOMS_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.SymptomsProvider)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}

// Warnings lists settings that let the server start but disable features.
func (c *Config) Warnings() []string {
	var w []string
	if c.IsDev() {
		w = append(w, "running in development mode: anonymous requests act as the dev user")
	}
	if c.GeminiAPIKey == "" {
		w = append(w, "GEMINI_API_KEY is not set: extraction functions will fail")
	}
	if c.SymptomsProvider == ProviderOpenAI && c.OpenAIAPIKey == "" {
		w = append(w, "OPENAI_API_KEY is not set: analyze-symptoms will fail")
	}
	return w
}
