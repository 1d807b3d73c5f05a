package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evaly-service/internal/app"
	"evaly-service/internal/config"
	"evaly-service/internal/logger"
	"evaly-service/internal/metrics"
	transport "evaly-service/internal/transport/http"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server and the job scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg)
	defer log.Sync()

	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwtSecret is empty; every token signed with an empty key will be accepted")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	if err := seedOrganizers(ctx, cfg, b.repos.Organizers, log); err != nil {
		return err
	}

	services := app.NewServices(b.repos, b.scheduler, log,
		app.WithMarkAsGoneAfter(config.TTLDuration(cfg.Presence.MarkAsGone, app.MarkAsGoneAfter)),
		app.WithPresenceListLimit(cfg.Presence.ListLimit),
	)
	go b.runner.Run(ctx, services.HandleJob)

	metrics.Init()
	handler := transport.NewHandler(services, transport.NewAuthenticator(cfg.Auth.JWTSecret, services.Callers), log.Named("http"))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting evaly service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
