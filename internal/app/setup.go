// Package app contains the application setup for the storefront service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/banerjeearin/storefront/internal/cart"
	"github.com/banerjeearin/storefront/internal/config"
	"github.com/banerjeearin/storefront/internal/platform/server"
	"github.com/banerjeearin/storefront/internal/platform/telemetry"
	"github.com/banerjeearin/storefront/internal/shopify"
	"github.com/banerjeearin/storefront/internal/transport/rest"
	"github.com/banerjeearin/storefront/internal/transport/ws"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Dependencies struct {
	Client         *shopify.Client
	Carts          *cart.Manager
	MeterProvider  *sdkmetric.MeterProvider
	MetricsHandler http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

// SetupDependencies builds the object graph: metrics pipeline, storefront
// client, identifier storage and the session cart manager.
func SetupDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	mp, registry, err := telemetry.NewMeterProvider("storefront")
	if err != nil {
		return nil, err
	}

	client := shopify.New(shopify.Config{
		Domain:     cfg.Shopify.Domain,
		Token:      cfg.Shopify.Token,
		APIVersion: cfg.Shopify.APIVersion,
		Timeout:    cfg.Shopify.Timeout,
		Breaker: shopify.BreakerConfig{
			ConsecutiveFailures: cfg.Shopify.Breaker.ConsecutiveFailures,
			ErrorRatePercent:    cfg.Shopify.Breaker.ErrorRatePercent,
			OpenTimeout:         cfg.Shopify.Breaker.OpenTimeout,
		},
	}, logger)
	if !client.Configured() {
		logger.Warn("Storefront API credentials are not configured; cart and catalog calls will fail until they are set")
	}

	var ids cart.IDStore
	if cfg.Cart.IDFile != "" {
		ids = cart.NewFileIDStore(cfg.Cart.IDFile)
	} else {
		ids = cart.NewMemoryIDStore()
	}

	return &Dependencies{
		Client:         client,
		Carts:          cart.NewManager(client, ids, logger),
		MeterProvider:  mp,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	}, nil
}

// SetupHttpHandler initializes the HTTP routes for the storefront service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger, deps.AllowedOrigins)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the storefront service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	apiHandler := rest.NewHandler(deps.Carts, deps.Client, deps.Logger)
	apiHandler.RegisterRoutes(mux)

	wsHandler := ws.NewHandler(deps.Carts, deps.AllowedOrigins, deps.Logger)
	mux.Get("/ws/cart", wsHandler.ServeHTTP)

	mux.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
}

// SetupHttpServer creates and configures an HTTP server for the storefront service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {

	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}
