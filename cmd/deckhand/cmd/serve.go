package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deckhand-ai/deckhand/internal/api"
	"github.com/deckhand-ai/deckhand/internal/config"
	"github.com/deckhand-ai/deckhand/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the deckhand REST API with SSE progress streaming.

Examples:
  # Start with defaults (127.0.0.1:8419)
  deckhand serve

  # Bind to all interfaces on a custom port
  deckhand serve --host 0.0.0.0 --port 3000`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"host address to bind to (default from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0,
		"port to listen on (default from config)")
}

func runServe(_ *cobra.Command, _ []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	artifacts, err := store.NewArtifactStore(rt.cfg.Storage.Dir, logger)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}
	history, err := store.NewHistoryStore(rt.cfg.Storage.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() {
		if closeErr := history.Close(); closeErr != nil {
			logger.Warn("closing history store", slog.String("error", closeErr.Error()))
		}
	}()

	server := api.NewServer(rt.pipeline, rt.models, rt.policies, artifacts, history, rt.bus,
		api.WithLogger(logger),
		api.WithCORSOrigins(rt.cfg.Server.CORSOrigins),
	)

	host := serveHost
	if host == "" {
		host = rt.cfg.Server.Host
	}
	port := servePort
	if port == 0 {
		port = rt.cfg.Server.Port
	}

	httpServer := &http.Server{
		Addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:     server.Handler(),
		ReadTimeout: rt.cfg.Server.ReadTimeout,
	}

	// Watch the config file so edits are noticed while running. A full
	// rebuild of the pipeline needs a restart; the watcher validates the
	// new file and says so.
	if path := configWatchPath(); path != "" {
		watcher, werr := config.NewWatcher(path, logger, func(_ *config.Config) {
			logger.Info("config file changed, restart to apply", slog.String("path", path))
		})
		if werr != nil {
			logger.Warn("config watcher unavailable", slog.String("error", werr.Error()))
		} else {
			defer watcher.Close()
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", httpServer.Addr),
			slog.Int("models", len(rt.models.List())),
		)
		if serveErr := httpServer.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// configWatchPath returns the file to watch: the explicit --config path, or
// a .deckhand.yaml in the working directory when one exists.
func configWatchPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(".deckhand.yaml"); err == nil {
		return ".deckhand.yaml"
	}
	return ""
}
