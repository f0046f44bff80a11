// ABOUTME: Gateway orchestrator that runs one supervised session per configured account
// ABOUTME: Owns the store, command registry, dispatcher and the HTTP status server lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/2389/ergo/internal/builtins"
	"github.com/2389/ergo/internal/chat"
	"github.com/2389/ergo/internal/command"
	"github.com/2389/ergo/internal/config"
	"github.com/2389/ergo/internal/dedupe"
	"github.com/2389/ergo/internal/session"
	"github.com/2389/ergo/internal/store"
)

// Gateway wires configuration, transport and storage into running sessions.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *command.Registry
	dispatcher  *command.Dispatcher
	manager     *session.Manager
	supervisors []*session.Supervisor
	httpServer  *http.Server
	logger      *slog.Logger

	// flood drops repeated identical commands; nil when disabled
	flood *dedupe.Guard

	// wait replaces the supervisors' backoff clock in tests
	wait session.WaitFunc

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customises a Gateway built by New.
type Option func(*Gateway)

// WithStore uses s instead of opening the configured database.
func WithStore(s store.Store) Option {
	return func(g *Gateway) { g.store = s }
}

// WithWait replaces the reconnect backoff clock of every supervisor.
func WithWait(wait session.WaitFunc) Option {
	return func(g *Gateway) { g.wait = wait }
}

// initStore creates and returns a store based on config and environment.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("ERGO_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// New creates a gateway for every account in cfg, dialing through dialer.
func New(cfg *config.Config, dialer chat.Dialer, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:  cfg,
		manager: session.NewManager(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(gw)
	}

	if gw.store == nil {
		s, err := initStore(cfg)
		if err != nil {
			return nil, err
		}
		gw.store = s
	}

	gw.registry = command.NewRegistry(logger.With("component", "registry"))
	if err := builtins.Register(gw.registry, cfg.CommandNames()); err != nil {
		_ = gw.store.Close()
		return nil, fmt.Errorf("registering commands: %w", err)
	}

	dispatcherCfg := command.DispatcherConfig{
		Registry: gw.registry,
		Logger:   logger.With("component", "dispatcher"),
		Timeout:  cfg.Dispatch.Timeout,
		Recorder: invocationRecorder{store: gw.store},
	}
	if cfg.Chat.FloodWindow > 0 {
		gw.flood = dedupe.New(cfg.Chat.FloodWindow)
		dispatcherCfg.Flood = gw.flood
	}
	gw.dispatcher = command.NewDispatcher(dispatcherCfg)

	prefixes := session.Prefixes{
		Private: cfg.Chat.PrefixPrivate,
		Group:   cfg.Chat.PrefixGroup,
		Clan:    cfg.Chat.PrefixClan,
	}
	backoff := session.Backoff{
		Initial:    cfg.Supervisor.BackoffInitial,
		Max:        cfg.Supervisor.BackoffMax,
		Multiplier: cfg.Supervisor.BackoffMultiplier,
	}
	sessionLogger := logger.With("component", "session")

	for _, acc := range cfg.AO.Accounts {
		s := session.New(session.Config{
			Account: chat.Account{
				Username: acc.Username,
				Password: acc.Password,
				Host:     acc.Host,
				Port:     acc.Port,
			},
			Character:       acc.Character,
			Dimension:       acc.Dimension,
			Prefixes:        prefixes,
			ClanChannelName: cfg.Chat.ClanChannelName,
		})
		gw.supervisors = append(gw.supervisors, session.NewSupervisor(session.SupervisorConfig{
			Session:     s,
			Dialer:      dialer,
			Dispatcher:  gw.dispatcher,
			Logger:      sessionLogger,
			Backoff:     backoff,
			Limiter:     session.NewLimiter(cfg.Chat.SendRate, cfg.Chat.SendBurst),
			Manager:     gw.manager,
			Transitions: transitionRecorder{store: gw.store},
			Wait:        gw.wait,
		}))
	}

	if cfg.Server.HTTPAddr != "" {
		gw.httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           gw.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	logger.Info("gateway configured",
		"sessions", len(gw.supervisors),
		"commands", gw.registry.Names(),
		"http_addr", cfg.Server.HTTPAddr,
	)
	return gw, nil
}

// Handler returns the HTTP status API.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	mux.HandleFunc("/api/sessions", g.handleListSessions)
	mux.HandleFunc("/api/sessions/stream", g.handleSessionStream)
	mux.HandleFunc("/api/sessions/{name}/events", g.handleSessionEvents)
	mux.HandleFunc("/api/invocations", g.handleListInvocations)
	mux.HandleFunc("/api/commands", g.handleListCommands)
	return mux
}

// Registry returns the command registry shared by all sessions.
func (g *Gateway) Registry() *command.Registry { return g.registry }

// Manager returns the session status table.
func (g *Gateway) Manager() *session.Manager { return g.manager }

// Store returns the audit store.
func (g *Gateway) Store() store.Store { return g.store }

// Run starts the HTTP server and every session, and blocks until all sessions
// have ended. Sessions are independent: a fatal session does not stop the
// others. Returns nil on shutdown, or the joined errors if every session
// ended fatally.
func (g *Gateway) Run(ctx context.Context) error {
	var httpErrCh chan error
	if g.httpServer != nil {
		ln, err := net.Listen("tcp", g.httpServer.Addr)
		if err != nil {
			_ = g.Shutdown(context.Background())
			return fmt.Errorf("listening on HTTP address: %w", err)
		}
		httpErrCh = g.startHTTP(ln)
	}

	g.logger.Info("starting sessions", "count", len(g.supervisors))

	errs := make([]error, len(g.supervisors))
	var eg errgroup.Group
	for i, sv := range g.supervisors {
		eg.Go(func() error {
			errs[i] = sv.Run(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	fatal := lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(fatal) > 0 {
		g.logger.Warn("sessions ended fatally", "fatal", len(fatal), "total", len(errs))
	}

	shutdownErr := g.gracefulShutdown()
	if httpErrCh != nil {
		if err := <-httpErrCh; err != nil {
			g.logger.Error("HTTP server error", "error", err)
		}
	}

	if len(fatal) > 0 && len(fatal) == len(errs) {
		return errors.Join(fatal...)
	}
	return shutdownErr
}

// startHTTP serves the status API on ln. The channel yields the server's
// terminal error (nil on a clean shutdown) and is then closed.
func (g *Gateway) startHTTP(ln net.Listener) chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()
	return errCh
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and releases resources. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")

		// Ends open status streams so the HTTP server can drain.
		g.manager.Close()

		var errs []error
		if g.httpServer != nil {
			errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
		}
		if g.flood != nil {
			g.flood.Close()
		}
		errs = appendCloseError(errs, "store close", g.store.Close())

		g.shutdownErr = errors.Join(errs...)
	})
	return g.shutdownErr
}
