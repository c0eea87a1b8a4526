// Package app owns runtime wiring and HTTP server lifecycle for the bridge.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/turbobackend/mcpbridge/internal/config"
	"github.com/turbobackend/mcpbridge/internal/httpapi"
	"github.com/turbobackend/mcpbridge/internal/keyauth"
	"github.com/turbobackend/mcpbridge/internal/runtimewire"
)

type App struct {
	cfg               config.Config
	runtime           *runtimewire.Runtime
	server            *http.Server
	cancelServerScope context.CancelFunc
	ready             atomic.Bool
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new app config: %w", err)
	}

	runtime, err := runtimewire.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("new app runtime: %w", err)
	}

	return NewWithRuntime(cfg, logger, runtime)
}

// NewWithRuntime builds the app around an existing runtime. Tests and
// deployments with external substrates wire their own.
func NewWithRuntime(cfg config.Config, logger *slog.Logger, runtime *runtimewire.Runtime) (*App, error) {
	if logger == nil {
		return nil, errors.New("new app: nil logger")
	}
	if runtime == nil {
		return nil, errors.New("new app: nil runtime")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new app config: %w", err)
	}

	serverScopeCtx, cancelServerScope := context.WithCancel(context.Background())
	a := &App{
		cfg:               cfg,
		runtime:           runtime,
		cancelServerScope: cancelServerScope,
	}

	apiRouter := http.Handler(httpapi.NewRouter(runtime))
	if cfg.AuthToken != "" {
		resolver := keyauth.NewStaticResolver(map[string]keyauth.Identity{
			cfg.AuthToken: {
				ProjectID: "local-project",
				UserID:    "local-user",
				KeyID:     "local-key",
			},
		})
		apiRouter = keyauth.Middleware(resolver, httpapi.RejectUnauthorized)(apiRouter)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/readyz", a.handleReadyz)
	mux.Handle("/", apiRouter)
	handler := requestLoggingMiddleware(logger)(mux)

	a.server = &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return serverScopeCtx
		},
	}

	return a, nil
}

func (a *App) Start() error {
	a.ready.Store(true)

	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	a.ready.Store(false)
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown: nil context")
	}
	a.ready.Store(false)
	a.cancelServerScope()

	shutdownErr := a.server.Shutdown(ctx)
	if closeErr := a.runtime.Close(); closeErr != nil && shutdownErr == nil {
		shutdownErr = closeErr
	}
	return shutdownErr
}

// Handler exposes the full middleware-wrapped handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}

func (a *App) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !a.ready.Load() || a.runtime == nil {
		writePlain(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writePlain(w, http.StatusOK, "ready")
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
