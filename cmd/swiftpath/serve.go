package main

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

	"github.com/sagarc03/swiftpath/config"
	"github.com/sagarc03/swiftpath/connect"
	gateway "github.com/sagarc03/swiftpath/http"
	"github.com/sagarc03/swiftpath/keybackend"
)

const accessPrivate = "private"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the configured backend over HTTP",
	Long: `Start an HTTP gateway in front of the configured backend.

The gateway speaks the protocol used by the "remote" backend, so another
swiftpath can browse this one with --backend remote. Reads and writes are
public or private independently (auth.read, auth.write); private requests
must carry a presigned URL issued for one of auth.keys.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 5708, "HTTP server port (env: SWIFTPATH_SERVER_PORT)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	backend, err := connect.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	handlerConfig, err := newHandlerConfig(cfg)
	if err != nil {
		return err
	}
	handler := gateway.NewHandler(handlerConfig, backend)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
	}()

	slog.Info("starting server", "addr", addr, "backend", backend.Name(),
		"read", cfg.Auth.Read, "write", cfg.Auth.Write)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newHandlerConfig builds the verifiers for the private sides. A private
// side without any keys is refused since nobody could use it.
func newHandlerConfig(cfg *config.Config) (*gateway.HandlerConfig, error) {
	hc := &gateway.HandlerConfig{CORS: cfg.CORS}
	if cfg.Auth.Read != accessPrivate && cfg.Auth.Write != accessPrivate {
		return hc, nil
	}

	store, err := keybackend.NewSecretStore(cfg.Auth.Keys)
	if err != nil {
		return nil, fmt.Errorf("load access keys: %w", err)
	}
	if store.Len() == 0 {
		return nil, errors.New("private access requires at least one key in auth.keys")
	}
	slog.Info("loaded access keys", "count", store.Len(), "access_keys", store.AccessKeys())

	verifier := gateway.NewSignatureVerifier(cfg.Auth.AWS, store)
	if cfg.Auth.Read == accessPrivate {
		hc.ReadVerifier = verifier
	}
	if cfg.Auth.Write == accessPrivate {
		hc.WriteVerifier = verifier
	}
	return hc, nil
}
