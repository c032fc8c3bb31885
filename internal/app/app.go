package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/makerforge/print-api/internal/appwrite"
	"github.com/makerforge/print-api/internal/domain/customer"
	"github.com/makerforge/print-api/internal/domain/order"
	"github.com/makerforge/print-api/internal/domain/pricing"
	"github.com/makerforge/print-api/internal/handler"
	appwritestore "github.com/makerforge/print-api/internal/storage/appwrite"
	"github.com/makerforge/print-api/pkg/health"
	"github.com/makerforge/print-api/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Platform client shared by every repository.
	client := appwrite.New(appwrite.Config{
		Endpoint: cfg.Appwrite.Endpoint,
		Project:  cfg.Appwrite.Project,
		Key:      cfg.Appwrite.Key,
	}, nil)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("appwrite", 5*time.Second, health.PingCheck(client))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	customerRepo := appwritestore.NewCustomerRepository(client, cfg.Appwrite.Database)
	stlRepo := appwritestore.NewSTLRepository(client, cfg.Appwrite.Database)
	orderRepo := appwritestore.NewOrderRepository(client, cfg.Appwrite.Database)
	fileStore := appwritestore.NewFileStore(client, cfg.Appwrite.Bucket)

	// Domain services.
	pricingCfg := pricing.DefaultConfig()
	pricingCfg.Strict = cfg.Pricing.Strict
	engine := pricing.NewEngine(pricingCfg, lg.Named("pricing"))

	resolver := customer.NewResolver(customerRepo, lg.Named("resolver"))
	if err := resolver.Warm(ctx); err != nil {
		// Warmup only primes the known-email filter; checkout works without it.
		lg.Warn("customer filter warmup failed", zap.Error(err))
	}

	orderService := order.NewService(resolver, customerRepo, stlRepo, orderRepo, engine)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.Config{
			Project:        cfg.Appwrite.Project,
			MaxUploadFiles: cfg.Upload.MaxFiles,
			MaxFileSize:    cfg.Upload.MaxFileSize,
			SecureCookies:  cfg.CORS.SecureCookies,
		},
		orderService, resolver, stlRepo, engine, fileStore, client,
	)

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	instrumented := otelhttp.NewHandler(mux, "print-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
