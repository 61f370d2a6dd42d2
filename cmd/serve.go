package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/wagner/internal/handlers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Wagner API server",
		Long: `Starts the Wagner HTTP API on the specified port.

The API manages books and pages, runs OCR and translation on uploaded page
scans, and serves stored scans and cropped content blocks.`,
		Example: `  # Start server on the configured port (PORT, default 5000)
  wagner serve

  # Start server on custom port with debug logging
  wagner serve --port 3000 --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if port == "" {
				port = a.cfg.Port
			}

			handler := handlers.New(a.store, a.gateway, a.pipeline, handlers.Options{
				Version:               Version,
				UploadsDir:            a.cfg.UploadsDir,
				MaxUploadBytes:        a.cfg.MaxUploadBytes,
				CORSOrigin:            a.cfg.CORSOrigin,
				RateLimitEvery:        a.cfg.RateLimitEvery,
				RateLimitBurst:        a.cfg.RateLimitBurst,
				TrustedProxies:        a.cfg.TrustedProxies,
				AllowPrivateImageURLs: a.cfg.AllowPrivateImageURLs,
				MaxConcurrentOCR:      a.cfg.MaxConcurrentOCR,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go handler.RunLimiterCleanup(ctx, 5*time.Minute)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Wagner API available", "addr", addr, "url", "http://localhost"+addr, "database", a.store.Path())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (defaults to PORT)")

	return cmd
}
