package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"noteenvelope-sync/internal/handler"
	"noteenvelope-sync/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the device: local API plus background sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, logger := opts.Config, opts.Logger

	n, err := openNode(ctx, cfg, logger)
	if err != nil {
		return err
	}
	shutdown := n.run(ctx)
	defer shutdown()

	if cfg.Sync.SeedDefaults {
		if err := service.SeedDefaults(ctx, n.engine, n.store); err != nil {
			return err
		}
	}
	if err := n.sync.Start(ctx); err != nil {
		return err
	}

	router := handler.NewRouter(handler.Handlers{
		Notes:     handler.NewNoteHandler(n.notes, logger),
		Envelopes: handler.NewEnvelopeHandler(n.envelopes, logger),
		Labels:    handler.NewLabelHandler(n.labels, logger),
		Sync:      handler.NewSyncHandler(n.sync, n.conflicts, n.devices, logger),
		Transfer:  handler.NewTransferHandler(n.transfer, logger),
	}, handler.RouterConfig{
		APIToken:       cfg.Server.APIToken,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		Metrics:        promhttp.HandlerFor(n.registry, promhttp.HandlerOpts{}),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("starting noteenvelope",
		"addr", srv.Addr, "env", cfg.Server.Env, "device_id", n.deviceID,
		"store", cfg.Storage.Driver, "data_dir", cfg.Storage.DataDir)
	return listenUntilDone(ctx, srv, opts)
}

// listenUntilDone serves until ctx is cancelled and then drains requests.
func listenUntilDone(ctx context.Context, srv *http.Server, opts *RootOptions) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	opts.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	opts.Logger.Info("server stopped gracefully")
	return nil
}
