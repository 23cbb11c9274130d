package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/messenger"
	"github.com/custodia-labs/shopbot/internal/adapters/driving/webhook"
	"github.com/custodia-labs/shopbot/internal/core/services"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// shutdownTimeout bounds how long in-flight replies may take on exit.
const shutdownTimeout = 30 * time.Second

// ErrMessengerNotConfigured is returned when serve is missing credentials.
var ErrMessengerNotConfigured = errors.New(
	"messenger is not configured: set messenger.verify_token and messenger.page_access_token")

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assistant behind a network front end",
}

var serveMessengerCmd = &cobra.Command{
	Use:   "messenger",
	Short: "Serve the messaging webhook",
	Long: `Listens for messaging-platform webhook calls. GET requests complete the
subscription handshake; POST requests carry user messages, which are
answered asynchronously through the Send API.

Stale products and chunks are reconciled in the background every
reconcile.interval while the server runs.`,
	Args: cobra.NoArgs,
	RunE: runServeMessenger,
}

func init() {
	serveMessengerCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default messenger.addr)")
	serveCmd.AddCommand(serveMessengerCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServeMessenger(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck // best effort on exit

	cfg := svc.Settings.Messenger
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if !cfg.IsConfigured() {
		return ErrMessengerNotConfigured
	}

	sender, err := messenger.NewSender(messenger.Config{
		PageAccessToken: cfg.PageAccessToken,
		GraphURL:        cfg.GraphURL,
		SendsPerSecond:  cfg.SendsPerSecond,
	})
	if err != nil {
		return err
	}

	server := webhook.NewServer(cfg.Addr, webhook.NewHandler(svc.Chat, sender, cfg.VerifyToken))
	if err := server.Start(); err != nil {
		return err
	}
	cmd.Printf("Webhook listening on %s\n", server.Addr())

	return serveUntilSignal(cmd.Context(), svc, func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down webhook")
		return server.Stop(shutdownCtx)
	})
}

// serveUntilSignal runs fn next to the background reconcile scheduler until
// an interrupt arrives or either returns an error.
func serveUntilSignal(parent context.Context, svc *Services, fn func(ctx context.Context) error) error {
	logger.SetTimestamps(true)
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	scheduler := services.NewScheduler(svc.Ingest, svc.Settings.Reconcile.Interval)
	g.Go(func() error {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("reconcile scheduler: %w", err)
		}
		return nil
	})
	g.Go(func() error { return fn(ctx) })
	return g.Wait()
}
