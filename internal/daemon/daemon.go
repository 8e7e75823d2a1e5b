package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/judgepay-labs/judgepay/internal/api"
	"github.com/judgepay-labs/judgepay/internal/app/token"
	"github.com/judgepay-labs/judgepay/internal/health"
	"github.com/judgepay-labs/judgepay/internal/infra/ledger"
	_ "github.com/judgepay-labs/judgepay/internal/infra/metrics" // Register Prometheus metrics
	"github.com/judgepay-labs/judgepay/internal/infra/sqlite"
)

// Daemon is the JudgePay runtime. It wires storage, the token ledger, the
// escrow engine, and the HTTP API together.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Tokens *token.Service
	Ledger *ledger.Engine
	Server *api.Server
	Health *health.Checker
	cancel context.CancelFunc
}

// New creates a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dir := cfg.Ledger.Dir
	if dir == "" {
		dir = judgepayHome()
	}

	db, err := sqlite.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tokens := token.NewService(db)
	engine := ledger.NewEngine(db, tokens)

	checker := health.NewChecker(db)

	srv := api.NewServer(engine, tokens)
	srv.SetHealth(checker)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config: cfg,
		DB:     db,
		Tokens: tokens,
		Ledger: engine,
		Server: srv,
		Health: checker,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Invariant checks run for the life of the server.
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("JudgePay serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
