package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mongo-migrations/internal/handler"
)

// serveCmd はマイグレーション状況を参照するHTTPサーバーを起動する。
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only migration status API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			return withApp(ctx, func(ctx context.Context, a *app) error {
				router := handler.NewRouter(handler.NewMigrationHandler(a.status))

				server := &http.Server{
					Addr:              ":" + a.cfg.Port,
					Handler:           router,
					ReadHeaderTimeout: 10 * time.Second,
				}

				// Graceful shutdown
				go func() {
					<-ctx.Done()

					a.logger.Info("shutting down server...")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					defer cancel()
					if err := server.Shutdown(shutdownCtx); err != nil {
						a.logger.Error("server shutdown error", "error", err)
					}
				}()

				a.logger.Info("starting server", "port", a.cfg.Port, "database", a.cfg.DatabaseName)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("server error", "error", err)
					return err
				}
				a.logger.Info("server stopped")
				return nil
			})
		},
	}
}
