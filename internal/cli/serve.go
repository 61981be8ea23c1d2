package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/iattom/internal/config"
	"github.com/harun/iattom/internal/logger"
	"github.com/harun/iattom/internal/tracing"
	"github.com/harun/iattom/pkg/commandqueue"
	"github.com/harun/iattom/pkg/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long: `Run the WhatsApp webhook server in the foreground.
Inbound messages are answered in arrival order per contact. SIGINT or SIGTERM
stops accepting requests and waits for queued replies.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	l, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer l.Close()
	log := l.Zerolog()

	for _, warning := range config.NewValidator().ValidateConfig(cfg) {
		log.Warn().Err(warning).Msg("Configuration warning")
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(tracing.DefaultServiceName); err != nil {
			log.Warn().Err(err).Msg("Tracing disabled")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tracing.ShutdownOpenTelemetry(ctx)
			}()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{}, log)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := webhook.NewServer(webhook.ServerOptions{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		VerifyToken:        cfg.WhatsApp.VerifyToken,
		AppSecret:          cfg.WhatsApp.AppSecret,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		ShutdownTimeout:    time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second,
	}, webhook.Deps{
		Dispatcher: a.dispatcher,
		Queue:      commandqueue.New(commandqueue.Options{MaxConcurrent: cfg.Server.MaxConcurrentLanes}, log),
		Files:      a.files(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}

	if err := loader.Watch(log, a.reload); err != nil {
		log.Debug().Err(err).Msg("Config reload disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	return server.Stop(context.Background())
}
