package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OmorFaruk63/blogauth/internal/httpapi"
	"github.com/OmorFaruk63/blogauth/metrics/export/prometheus"
	"github.com/OmorFaruk63/blogauth/oauth"
	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(c *cli) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply database migrations before serving")
	return cmd
}

func serve(ctx context.Context, c *cli, migrate bool) error {
	cfg, logger := c.cfg, c.logger

	if err := initSentry(cfg); err != nil {
		return fmt.Errorf("init sentry: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := a.store.Migrate(ctx); err != nil {
			return err
		}
	}
	if err := a.seedAdmin(ctx); err != nil {
		return err
	}

	opts := httpapi.Options{
		Engine:        a.engine,
		Logger:        logger,
		BaseURL:       cfg.App.BaseURL,
		SecureCookies: cfg.Production(),
		TrustProxy:    cfg.HTTP.TrustProxy,
	}
	if cfg.GoogleEnabled() {
		google, err := oauth.NewGoogle(cfg.GoogleOAuthConfig())
		if err != nil {
			return err
		}
		opts.Google = google
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = prometheus.New(a.engine, map[string]string{"env": cfg.Env}).Handler()
	}

	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(opts), cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
