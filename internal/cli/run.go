package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/netsync/internal/authority"
	"github.com/roach88/netsync/internal/config"
	"github.com/roach88/netsync/internal/metrics"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/store"
	"github.com/roach88/netsync/internal/transport/ws"
	"github.com/roach88/netsync/internal/wire"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	URL        string
	Database   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to a server and replicate",
		Long: `Connect to a replication server and run the client session.

The session loads its classes from the configured schema directory,
journals everything it receives and sends to SQLite, ticks prediction
at the configured rate and serves Prometheus metrics when metrics.addr
is set.

Example:
  netsync run --config ./netsync.yaml
  netsync run --config ./netsync.yaml --url ws://localhost:7777/sync --db ./journal.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.URL, "url", "", "override transport.url")
	cmd.Flags().StringVar(&opts.Database, "db", "", "override journal.path")

	return cmd
}

func runClient(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.URL != "" {
		cfg.Transport.URL = opts.URL
	}
	if opts.Database != "" {
		cfg.Journal.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if cfg.Transport.URL == "" {
		return NewExitError(ExitCommandError, "transport.url is required")
	}

	slog.SetDefault(cfg.Log.NewLogger(cmd.ErrOrStderr()))

	slog.Info("loading schemas", "dir", cfg.SchemasDir)
	factory, err := loadFactory(cfg.SchemasDir, cfg.OwnerField)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schemas", err)
	}
	slog.Info("schemas loaded", "classes", len(factory.Classes()))

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sessOpts := cfg.SessionOptions()

	if cfg.Journal.Path != "" {
		slog.Info("opening journal", "path", cfg.Journal.Path)
		st, err := store.Open(cfg.Journal.Path, cfg.Journal.StoreOptions()...)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		sessOpts = append(sessOpts, session.WithJournal(st))
	}

	if cfg.Metrics.Addr != "" {
		collector := metrics.New(true)
		sessOpts = append(sessOpts, session.WithMetrics(collector))
		srv := serveMetrics(cfg.Metrics.Addr, collector)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wsOpts := []ws.Option{
		ws.WithSendBuffer(cfg.Transport.SendBuffer),
		ws.WithReadTimeout(cfg.Transport.ReadTimeout),
		ws.WithResultHandler(func(callID uint64, reducer string, ok bool, msg string) {
			if !ok {
				slog.Warn("server rejected call", "call_id", callID, "reducer", reducer, "message", msg)
			}
		}),
	}
	if cfg.Transport.ValidateFrames {
		v, err := wire.NewValidator()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to compile frame schema", err)
		}
		wsOpts = append(wsOpts, ws.WithValidator(v))
	}

	client, err := ws.Dial(ctx, cfg.Transport.URL, wsOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}
	defer client.Close()

	sess, err := session.New(authority.ClientID(cfg.ClientID), factory, client, sessOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}
	if err := client.Start(sess); err != nil {
		return WrapExitError(ExitCommandError, "failed to start transport", err)
	}

	go tickLoop(ctx, sess, cfg.TickInterval())
	go func() {
		select {
		case <-client.Done():
			if err := client.Err(); err != nil {
				slog.Error("transport closed", "error", err)
			}
			sess.Stop()
		case <-ctx.Done():
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Session %s started as client %d.\n", sess.ID(), cfg.ClientID)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "session error", err)
	}
	if err := client.Err(); err != nil {
		return WrapExitError(ExitFailure, "transport error", err)
	}

	slog.Info("session stopped gracefully", "session", sess.ID())
	return nil
}

// tickLoop enqueues a prediction tick every interval until ctx ends.
func tickLoop(ctx context.Context, sess *session.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sess.Enqueue(session.TickEvent()) {
				return
			}
		}
	}
}

func serveMetrics(addr string, collector *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
