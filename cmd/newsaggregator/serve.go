package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the article API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, logger, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer application.Close()

			httpCfg := application.Config().HTTP
			server := &http.Server{
				Addr:              httpCfg.Addr,
				Handler:           application.Handler(),
				ReadTimeout:       httpCfg.ReadTimeout,
				ReadHeaderTimeout: httpCfg.ReadTimeout,
				WriteTimeout:      httpCfg.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", httpCfg.Addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}
