package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/partnerhub-api/internal/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "partnerhub",
		Short: "Partner collaboration notification service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		SilenceUsage: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the API, realtime gateway, reminder producer and digest scheduler",
		RunE:  runServe,
	}

	digestCmd = &cobra.Command{
		Use:   "digest",
		Short: "Send one round of daily digests and exit",
		RunE:  runDigest,
	}

	migrateOnly bool
)

func init() {
	serveCmd.Flags().BoolVar(&migrateOnly, "migrate-only", false, "apply database migrations and exit")
	rootCmd.AddCommand(serveCmd, digestCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	if migrateOnly {
		a.log.Info("Migrations applied")
		return nil
	}

	a.reminders.Start()
	a.digest.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("port", cfg.Port).Info("Starting HTTP server")
		errCh <- a.http.Listen(":" + cfg.Port)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		a.log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			a.log.WithError(err).Error("HTTP server stopped")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.shutdown(ctx)
}

func runDigest(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	stats := a.digest.Run(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "eligible=%d sent=%d skipped=%d failed=%d\n",
		stats.Eligible, stats.Sent, stats.Skipped, stats.Failed)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		return err
	}
	if stats.Failed > 0 {
		return errors.New("some digests failed")
	}
	return nil
}
