package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/nestq/internal/ir"
	"github.com/roach88/nestq/internal/metrics"
	chiTransport "github.com/roach88/nestq/internal/transport/chi"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	StoreOptions
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compile, index and search over HTTP",
		Long: `Start the HTTP API.

Endpoints:
  POST   /_compile     compile a query, return explain and IR
  POST   /_search      compile and run a query (?size=n)
  POST   /_index       index a JSON array of documents
  DELETE /_doc/{id}    remove a document's block
  GET    /_stats       store statistics
  GET    /healthz      store health
  GET    /metrics      Prometheus metrics

The server stops gracefully on SIGINT or SIGTERM.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd, nil)
		},
	}

	cmd.Flags().StringVar(&opts.MappingPath, "mapping", "", "mapping file (overrides mapping.path)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "store path (overrides store.path)")
	cmd.Flags().IntVar(&opts.Port, "port", -1, "listen port (overrides http.port, 0 picks a free port)")

	return cmd
}

// runServe serves until ctx is done. When ready is non-nil it receives
// the bound address once the listener is up.
func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command, ready chan<- string) error {
	pr := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	env, err := newEnvironment(opts.RootOptions, opts.StoreOptions, "", pr)
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.openStore(pr); err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return pr.fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("register metrics: %v", err), nil)
	}

	logger := env.log
	server := chiTransport.NewServer(env.parser, env.executor(), env.indexer(), env.store, logger)

	port := env.cfg.HTTP.Port
	if opts.Port >= 0 {
		port = opts.Port
	}
	srv := &http.Server{
		Handler:      chiTransport.NewRouter(server, logger),
		ReadTimeout:  time.Duration(env.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(env.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return pr.fail(ExitUsage, ErrCodeGeneric, fmt.Sprintf("listen: %v", err), nil)
	}

	logger.Info("Starting HTTP server",
		zap.String("version", ir.Version),
		zap.String("addr", ln.Addr().String()),
		zap.String("db", env.cfg.Store.Path),
		zap.String("mapping", env.cfg.Mapping.Path),
	)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return wrapFailure(ExitFailure, "HTTP server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(env.cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return wrapFailure(ExitFailure, "shutdown", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
