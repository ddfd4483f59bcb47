// Package app wires configuration, the backend client, the commerce state
// stores and the HTTP transport into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/okstore/commerce-client/internal/backend"
	"github.com/okstore/commerce-client/internal/cart"
	"github.com/okstore/commerce-client/internal/checkout"
	"github.com/okstore/commerce-client/internal/config"
	"github.com/okstore/commerce-client/internal/infrastructure"
	custommiddleware "github.com/okstore/commerce-client/internal/middleware"
	"github.com/okstore/commerce-client/internal/reveal"
	transport "github.com/okstore/commerce-client/internal/transport/http"
	"github.com/okstore/commerce-client/internal/verify"
	"github.com/okstore/commerce-client/internal/websocket"
	"github.com/okstore/commerce-client/pkg/contracts"
)

const appName = "okstore-commerce-client"

// Application is the dependency container for the commerce client.
type Application struct {
	Config *config.Config
	Logger *slog.Logger
	OTel   *infrastructure.OTelProviders
	Router *chi.Mux
	Server *http.Server

	Backend *backend.Client
	Verify  *verify.Provider
	Store   *cart.Store
	Session *checkout.Session
	Hub     *websocket.Hub
}

// NewApplication creates an application instance with all dependencies wired.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	app := &Application{
		Config: cfg,
		Logger: logger,
		OTel:   otelProviders,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the service graph: backend client, verification
// provider, cart store, checkout session and the websocket hub, with state
// changes fanned out to UI clients.
func (a *Application) initializeServices() {
	a.Backend = backend.NewClient(backend.Config{
		BaseURL:   a.Config.Backend.BaseURL,
		Timeout:   a.Config.Backend.Timeout,
		RateLimit: a.Config.Backend.RateLimit,
		RateBurst: a.Config.Backend.RateBurst,
	}, a.Logger)

	a.Verify = verify.NewProvider(a.Config.Verify.Endpoint, a.Config.Verify.Timeout, a.Logger)
	a.Store = cart.NewStore(a.Backend, a.Logger)
	a.Session = checkout.NewSession(a.Backend, a.Verify, a.Logger)
	a.Hub = websocket.NewHub(a.Logger)

	a.Store.Subscribe(a.Hub.BroadcastCartUpdate)
	a.Session.Observe(func(tr checkout.Transition) {
		a.Hub.BroadcastCheckoutTransition(tr)
		// The server clears the session cart when the order is placed; the
		// local mirror follows.
		if tr.To == checkout.StageCompleted {
			a.Store.Clear()
		}
	})
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	// WebSocket route stays outside the logging group; the wrapped response
	// writer breaks the upgrade.
	r.HandleFunc("/ws", a.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(custommiddleware.Tracing)
		r.Use(custommiddleware.StructuredLogger(a.Logger))
		r.Use(custommiddleware.Recoverer(a.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Get("/health", a.handleHealth)
			r.Mount("/cart", transport.NewCartHandler(a.Store, a.Logger).Routes())
			r.Mount("/checkout", transport.NewCheckoutHandler(a.Session, a.Logger).Routes())
			r.Mount("/keys", transport.NewKeysHandler(a.Backend, NewSystemClipboard(), a.Logger,
				reveal.WithWindows(a.Config.Reveal.Window, a.Config.Reveal.CopiedWindow),
			).Routes())
			r.Mount("/pricing", transport.NewPricingHandler(a.Logger).Routes())
		})
	})

	r.Handle("/metrics", transport.MetricsHandler())

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

func (a *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":    "ok",
		"app":       appName,
		"version":   contracts.GetVersionInfo(),
		"timestamp": time.Now(),
	})
}

func (a *Application) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWS(a.Hub, w, r, a.Logger)
}

// Start starts the hub, the HTTP server and the initial cart hydration.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", appName),
		slog.Int("port", a.Config.Server.Port),
		slog.String("backend", a.Config.Backend.BaseURL),
		slog.String("level", a.Config.Logging.Level),
	)

	go a.Hub.Run()

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	// Hydrate the cart mirror in the background; the UI renders an empty
	// cart until the first snapshot lands.
	go func() {
		hydrateCtx, hydrateCancel := context.WithTimeout(ctx, 30*time.Second)
		defer hydrateCancel()
		if err := a.Store.Refresh(hydrateCtx); err != nil {
			a.Logger.WarnContext(hydrateCtx, "initial cart hydration failed",
				slog.String("error", err.Error()))
		}
	}()

	url := fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)
	a.Logger.InfoContext(ctx, "application started", slog.String("address", url))

	go func() {
		if err := openBrowser(url); err != nil {
			a.Logger.WarnContext(ctx, "could not open browser",
				slog.String("url", url),
				slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.Hub.Stop()

	if err := a.OTel.Shutdown(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down tracing", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}

// openBrowser opens the default browser to the given URL.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
