package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/profitpilot/internal/adapter/driving/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and session event stream",
		Long: `Serve restores the session state, fetches the broker catalog, and serves the
JSON API under /api/v1 until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				opts.cfg.ListenAddr = listen
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides PROFITPILOT_LISTEN_ADDR)")
	return cmd
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger
	logger.Info("config loaded",
		"api_base_url", cfg.APIBaseURL,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"http_timeout", cfg.HTTPTimeout,
	)

	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return opts.withApp(ctx, func(a *app) error {
		// 2. Restore session state and start the catalog fetch.
		a.session.Initialize(ctx)

		// 3. Create HTTP handler and register API routes.
		h := httphandler.NewHandler(a.session, a.auth, logger)

		// A start request makes two sequential remote calls.
		srv := &http.Server{
			Handler:           httphandler.NewServeMux(h, logger),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      2*cfg.HTTPTimeout + 10*time.Second,
			IdleTimeout:       120 * time.Second,
		}

		ln, err := net.Listen("tcp", cfg.ListenAddr)
		if err != nil {
			return err
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("http server starting", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		// 4. Log startup complete.
		logger.Info("profitpilot started", "listen_addr", ln.Addr().String())

		// 5. Wait for shutdown signal or server failure.
		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				return err
			}
		}
		logger.Info("shutting down")

		// 6. Graceful shutdown with 10s timeout to drain in-flight requests.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}

		// 7. Log shutdown complete.
		logger.Info("shutdown complete")
		return nil
	})
}
