package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/holdfast"
	httpAdapter "github.com/aretw0/holdfast/internal/adapters/http"
	"github.com/aretw0/holdfast/internal/presentation/tui"
	"github.com/aretw0/holdfast/pkg/observability"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long:  `Starts the session registry, the lock coordinator and the janitor, exposing the REST API and the realtime channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, b, err := newService(ctx)
		if err != nil {
			return err
		}
		defer b.close()

		if err := svc.Start(ctx); err != nil {
			return err
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(os.Stdout, holdfast.Version)
		}

		reg := observability.NewRegistry()
		srv := &http.Server{
			Addr: cfg.Addr,
			Handler: httpAdapter.NewHandler(svc,
				httpAdapter.WithAPIKey(cfg.APIKey),
				httpAdapter.WithGatherer(reg),
				httpAdapter.WithLogger(logger.With("component", "http")),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}
		if cfg.APIKey == "" {
			logger.Warn("No API key configured, REST routes are unauthenticated")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("Starting holdfast server", "addr", srv.Addr, "store", cfg.StoreDriver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return svc.Janitor().Run(gctx, cfg.SweepInterval)
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down")
			svc.Close()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			return nil
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("Holdfast server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().String("api-key", "", "Shared secret required in the X-Api-Key header")
}
