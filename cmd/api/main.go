package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/services"
	httphandlers "streamgate/internal/handlers/http"
	"streamgate/internal/infrastructure/cdn"
	"streamgate/internal/infrastructure/identity"
	"streamgate/internal/infrastructure/middleware"
	"streamgate/internal/infrastructure/monitoring"
	"streamgate/internal/infrastructure/repositories"
	"streamgate/internal/infrastructure/signing"
	"streamgate/internal/jobs"
	"streamgate/pkg/config"
	"streamgate/pkg/logger"
	"streamgate/pkg/tracing"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	configPath := os.Getenv("STREAMGATE_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		// Logger is not configured yet.
		zap.NewExample().Sugar().Fatalw("failed to load configuration", "path", configPath, "error", err)
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repoFactory, err := repositories.NewRepositoryFactory(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	store := repoFactory.RecordStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := monitoring.NewPrometheusCollector(registry)

	signer := signing.New(cfg, log)
	collector.SetSigner(signer.Mode(), signing.Ready(signer) == nil)

	cdnAdmin := cdn.New(cfg, collector, log)
	identityProvider, err := identity.New(ctx, cfg, store.Profiles, log)
	if err != nil {
		log.Fatalw("failed to initialize identity provider", "error", err)
	}

	urls := services.NewURLBuilderFromConfig(cfg)
	entitlements := services.NewEntitlementService(store, cfg.Access.LookupTimeout, log)
	accessService := services.NewAccessGrantService(entitlements, signer, urls, accessConfig(cfg), collector, log)
	progressService := services.NewProgressService(entitlements, store.Progress, cfg.Access.LookupTimeout, log)
	catalogService := services.NewCatalogService(store, cdnAdmin, urls, cfg.Access.LookupTimeout, log)
	libraryService := services.NewLibraryService(store, entitlements, cfg.Access.LookupTimeout, log)

	var sweeper *jobs.EnrollmentSweeper
	if cfg.Jobs.EnrollmentSweep.Enabled {
		sweeper = jobs.NewEnrollmentSweeper(store.Enrollments, cfg.Jobs.EnrollmentSweep.Retention, cfg.Database.QueryTimeout, collector, log)
		if lock := repoFactory.CreateSweepLock(10 * time.Minute); lock != nil {
			sweeper.UseGuard(lock)
		}
		if err := sweeper.Start(cfg.Jobs.EnrollmentSweep.Schedule); err != nil {
			log.Fatalw("failed to schedule enrollment sweeper", "error", err)
		}
	}

	checker := monitoring.NewHealthChecker()
	checker.AddSignerCheck(signer)
	checker.AddBackendCheck("record_store", repoFactory.HealthCheck, 2*time.Second)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Fatalw("invalid trusted proxies", "error", err)
	}
	router.Use(
		middleware.RecoveryMiddleware(log),
		middleware.RequestIDMiddleware(),
		middleware.TracingMiddleware(),
		middleware.AccessLogMiddleware(logger.NewContextLogger(zapLogger)),
		middleware.CORSMiddleware(cfg.Identity.AllowedOrigins),
		middleware.ErrorHandlerMiddleware(log),
		middleware.NewHTTPRateLimitMiddleware(cfg),
	)

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		gatherer = registry
	}
	httphandlers.NewHealthHandler(checker, gatherer).RegisterRoutes(&router.RouterGroup)

	grantLimiter := middleware.NewGrantRateLimitMiddleware(cfg, repoFactory.CreateGrantLimiter(), log)
	api := router.Group("/api/v1", middleware.AuthMiddleware(identityProvider))
	httphandlers.NewAccessHandler(accessService, progressService, grantLimiter).RegisterRoutes(api)
	httphandlers.NewLibraryHandler(libraryService).RegisterRoutes(api)

	admin := api.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
	httphandlers.NewAdminHandler(catalogService).RegisterRoutes(admin)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("starting streamgate",
			"address", cfg.Server.Address,
			"cdn_provider", cdnAdmin.Provider(),
			"signing_mode", signer.Mode(),
			"identity_mode", cfg.Identity.Mode,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		log.Errorw("server failed", "error", err)
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("error force closing server", "error", closeErr)
		}
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}
	if err := repoFactory.Close(); err != nil {
		log.Errorw("error closing repository factory", "error", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("error shutting down tracer provider", "error", err)
	}

	log.Info("streamgate stopped")
}

func accessConfig(cfg *config.Config) services.AccessConfig {
	ac := services.AccessConfig{
		DefaultTTL: cfg.Access.DefaultTTL,
		MaxTTL:     cfg.Access.MaxTTL,
	}
	if len(cfg.Access.AllowedCountries) > 0 || cfg.Access.Downloadable {
		ac.Restrictions = &domain.AccessRestrictions{
			AllowedCountries: cfg.Access.AllowedCountries,
			Downloadable:     cfg.Access.Downloadable,
		}
	}
	return ac
}
