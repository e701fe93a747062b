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

	"cloud.google.com/go/firestore"
	"github.com/spf13/cobra"

	"github.com/alimasry/go-undo-ot/config"
	"github.com/alimasry/go-undo-ot/server"
	"github.com/alimasry/go-undo-ot/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "undo-ot",
		Short:        "Document server with operational-transform undo and redo",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		path string
		o    config.Overrides
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve documents over WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path, o)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&path, "config", "", "path to a TOML config file")
	cmd.Flags().StringVar(&o.Addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&o.Backend, "store", "", "document store: memory or firestore")
	cmd.Flags().StringVar(&o.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	st, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := server.NewHub(st, logger)
	go hub.Run()
	defer hub.Close()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: server.NewHandler(hub)}
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore builds the configured document store. The returned func flushes
// and releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.DocumentStore, func(), error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		cached := store.NewCachedStore(store.NewFirestoreStore(client, cfg.Collection), cfg.FlushInterval)
		return cached, func() {
			cached.Close()
			client.Close()
		}, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}
