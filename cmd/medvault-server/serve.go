package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/domain/extraction"
	"github.com/medvault/medvault/internal/domain/report"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/db"
	"github.com/medvault/medvault/internal/platform/llm/gemini"
	"github.com/medvault/medvault/internal/platform/llm/openai"
	"github.com/medvault/medvault/internal/platform/middleware"
	"github.com/medvault/medvault/internal/platform/telemetry"
)

const (
	uploadsPath = "/api/v1/uploads"
	// Room for the multipart envelope around a maximum-size file.
	multipartOverhead = 64 << 10
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// serverDeps are the backends newServer mounts. DB may be nil, in which case
// /health/db is not served.
type serverDeps struct {
	DB        db.Pinger
	PoolStats telemetry.PoolStats
	Reports   report.Repository
	Blobs     blobstore.BlobStore
	Extractor extraction.Provider
	Symptoms  extraction.Provider
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return err
	}

	extractor, symptoms, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		return err
	}

	poolStats := func() (int32, int32, int32) {
		st := pool.Stat()
		return st.AcquiredConns(), st.IdleConns(), st.TotalConns()
	}
	e := newServer(cfg, logger, serverDeps{
		DB:        pool,
		PoolStats: poolStats,
		Reports:   report.NewRepoPG(pool),
		Blobs:     blobs,
		Extractor: extractor,
		Symptoms:  symptoms,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Str("version", version).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.UploadDir == "" {
		return blobstore.NewInMemoryBlobStore(cfg.UploadMaxBytes), nil
	}
	store, err := blobstore.NewFSBlobStore(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return store, nil
}

// buildProviders returns the Gemini provider used for image and report
// extraction, and the provider SYMPTOMS_PROVIDER selects for symptom
// analysis. Missing keys are not an error here; each request reports them.
func buildProviders(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (extraction.Provider, extraction.Provider, error) {
	gc, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		return extraction.Provider{}, extraction.Provider{}, err
	}
	extractor := extraction.Provider{Name: config.ProviderGemini, KeyEnv: "GEMINI_API_KEY", Generator: gc}

	if cfg.SymptomsProvider == config.ProviderGemini {
		return extractor, extractor, nil
	}
	oc := openai.NewClient(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.RequestTimeout,
	}, logger)
	return extractor, extraction.Provider{Name: config.ProviderOpenAI, KeyEnv: "OPENAI_API_KEY", Generator: oc}, nil
}

// authMiddleware verifies bearer tokens. In development, requests without a
// token act as auth.DevUserID.
func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthJWTSecret != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthJWTSecret)
	}
	verify := auth.JWTMiddleware(jwtCfg)
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(verify)
	}
	return verify
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	apiLimit := middleware.BodyLimit(cfg.APIBodyLimit, cfg.FunctionBodyLimit)
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(cfg.UploadMaxBytes+multipartOverhead, 10), cfg.FunctionBodyLimit)

	metrics := telemetry.NewMetrics()
	if deps.PoolStats != nil {
		metrics.SetPoolStats(deps.PoolStats)
	}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.Audit(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		// Functions answer CORS themselves.
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, middleware.FunctionsPrefix)
		},
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		api, uploads := apiLimit(next), uploadLimit(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, uploadsPath) {
				return uploads(c)
			}
			return api(c)
		}
	})
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, nil))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"version": version})
	})
	if deps.DB != nil {
		e.GET("/health/db", db.HealthHandler(deps.DB))
	}
	e.GET(telemetry.MetricsPath, metrics.Handler())

	authMW := authMiddleware(cfg)
	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		Skipper: func(c echo.Context) bool {
			return c.Request().Method == http.MethodOptions
		},
	})

	// Extraction functions
	extractionSvc := extraction.NewService(deps.Extractor, deps.Symptoms, logger)
	extractionHandler := extraction.NewHandler(extractionSvc, logger)
	extractionHandler.SetObserver(metrics)
	extractionHandler.RegisterRoutes(e.Group("/functions/v1"), authMW, rateLimit)

	// Authenticated API
	apiV1 := e.Group("/api/v1")
	apiV1.Use(authMW, rateLimit)

	report.NewHandler(report.NewService(deps.Reports, logger)).RegisterRoutes(apiV1)
	if deps.Blobs != nil {
		blobstore.NewBlobHandler(deps.Blobs, cfg.UploadBaseURL, logger).RegisterRoutes(apiV1)
	}

	return e
}
