package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/server"
	"github.com/jonathan/autopublisher/internal/server/middleware"
	"github.com/jonathan/autopublisher/internal/server/ratelimit"
	"github.com/jonathan/autopublisher/internal/workflow"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that accepts workflows, publishes directly and reports platform status.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from PORT or 8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	broker, err := openBroker(cfg, logger)
	if err != nil {
		return err
	}
	defer broker.Close() //nolint:errcheck

	publicationLog, err := openPublicationLog(ctx, cfg, logger)
	if err != nil {
		return err
	}

	jwtCfg, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to load JWT config: %w", err)
	}
	var tokens middleware.TokenValidator
	if jwtCfg != nil {
		tokens = server.NewJWTService(jwtCfg).AsTokenValidator()
	} else {
		logger.Warn("API_JWT_SECRET not set, API authentication disabled")
	}

	deps := server.Dependencies{
		Workflows:   workflow.NewDispatcher(broker, logger),
		Publishing:  newPublishingService(cfg, logger, publicationLog),
		Tokens:      tokens,
		RateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Logger:      logger,
	}
	if publicationLog != nil {
		defer publicationLog.Close()
		deps.Publications = publicationLog
	}

	srv := server.New(server.Config{
		Port:        cfg.Port,
		CORSOrigins: cfg.CORSAllowedOrigins,
	}, deps)
	return srv.Start(ctx)
}
