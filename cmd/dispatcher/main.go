// Package main is the entrypoint for the one-shot reminder dispatcher.
// Run it from cron; each invocation makes a single delivery pass.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/replyreminder/replyreminder/internal/cache"
	"github.com/replyreminder/replyreminder/internal/config"
	"github.com/replyreminder/replyreminder/internal/dispatcher"
	"github.com/replyreminder/replyreminder/internal/logging"
	"github.com/replyreminder/replyreminder/internal/messenger"
)

const (
	Version = "0.1.0"
	appName = "replyreminder-dispatcher"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "dispatcher",
		Short: "Deliver unsent reminders once",
		Long: `Fetches every unsent reminder from the reminder API, sends each to its
recipient through the Messenger Send API and marks it sent.

Delivery and acknowledgement failures are logged and retried on the next
run; they never make the command fail.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List and log reminders without sending or acknowledging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(parent context.Context, dryRun bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDispatcher()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	httpClient := messenger.NewHTTPClient(cfg.HTTPTimeout)
	chat := messenger.NewClient(messenger.Config{
		GraphURL:        cfg.MessengerGraphURL,
		PageAccessToken: cfg.PageAccessToken,
		HTTPClient:      httpClient,
		Logger:          logger,
	})
	api := dispatcher.NewAPIClient(cfg.ReminderServiceURL, cfg.ServiceToken, httpClient)

	opts := dispatcher.Options{DryRun: dryRun}
	if cfg.LockEnabled() {
		cacheClient, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis %s: %s", logging.RedactURL(cfg.RedisURL), logging.SanitizeError(err, cfg.RedisURL))
		}
		defer cacheClient.Close()
		opts.Locker = &dispatcher.RedisLocker{Cache: cacheClient, TTL: cfg.LockTTL}
	}

	res := dispatcher.New(api, chat, opts, logger).Run(ctx)
	if res.Skipped {
		logger.Info("run skipped", slog.String("run_id", res.RunID))
	}
	return nil
}
