package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/medical-scheduling/internal/config"
	"github.com/spec-kit/medical-scheduling/internal/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "medsched",
		Short:        "Medical appointment scheduling services",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newGatewayCmd(),
		newAuthCmd(),
		newSchedulerCmd(),
		newMigrateCmd(),
	)
	return rootCmd
}

// bootstrap loads configuration and the service logger.
func bootstrap(service string) (*config.Config, *zap.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, service)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	return cfg, logger
}

// listenAddr resolves the bind address: --port, then APP_PORT, then the
// service default.
func listenAddr(cfg *config.Config, flagPort, defaultPort string) string {
	port := defaultPort
	if _, set := os.LookupEnv("APP_PORT"); set {
		port = cfg.App.Port
	}
	if flagPort != "" {
		port = flagPort
	}
	return cfg.App.Host + ":" + port
}

// serve runs app until SIGINT/SIGTERM.
func serve(app *fiber.App, addr string, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForShutdown(logger):
	}
	return app.ShutdownWithContext(context.Background())
}

func waitForShutdown(logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		close(done)
	}()
	return done
}
