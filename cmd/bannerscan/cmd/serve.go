package cmd

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

	"github.com/MeKo-Tech/bannerscan/internal/server"
	"github.com/MeKo-Tech/bannerscan/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for results and batch runs",
	Long: `Start an HTTP server over the result directory.

The server provides the following endpoints:
  GET  /health                 - Health check
  GET  /api/v1/summary         - summary.json as last written
  POST /api/v1/summary/rebuild - Recompute the summary
  GET  /api/v1/records         - All records (?status=ok|failed)
  GET  /api/v1/records/{id}    - Record of one image
  GET  /api/v1/batch           - Status of the running or last batch
  POST /api/v1/batch           - Start a batch below the input root
  GET  /api/v1/progress        - WebSocket stream of batch progress
  GET  /metrics                - Prometheus metrics

Examples:
  bannerscan serve
  bannerscan serve --port 8080 --out-dir results
  bannerscan serve --host 0.0.0.0 --input-root /srv/images`,
	RunE: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	applyPipelineFlags(cfg, cmd)
	overrideString(cmd, "host", &cfg.Server.Host)
	overrideInt(cmd, "port", &cfg.Server.Port)
	overrideString(cmd, "cors-origin", &cfg.Server.CORSOrigin)
	overrideInt(cmd, "request-timeout", &cfg.Server.TimeoutSec)
	overrideInt(cmd, "shutdown-timeout", &cfg.Server.ShutdownTimeout)
	overrideString(cmd, "input-root", &cfg.Server.InputRoot)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	bc := cfg.ToBatchConfig()
	srv, err := server.NewServer(server.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		CORSOrigin: cfg.Server.CORSOrigin,
		TimeoutSec: cfg.Server.TimeoutSec,
		InputRoot:  cfg.Server.InputRoot,
		Batch:      bc,
		Version:    version.Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	// Write timeouts would cut WebSocket streams; handlers bound their own work.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.TimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "addr", httpServer.Addr, "output_dir", bc.OutputDir, "input_root", cfg.Server.InputRoot)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			_ = srv.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	// Stop the running batch and close progress streams before draining
	// HTTP, so that hijacked WebSocket connections do not hold shutdown.
	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addPipelineFlags(serveCmd)

	f := serveCmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origin")
	f.Int("request-timeout", 30, "request timeout in seconds")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.String("input-root", ".", "directory batch requests are resolved against (empty disables batches)")
}
