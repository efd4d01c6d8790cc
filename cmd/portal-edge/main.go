// Command portal-edge serves the multi-tenant portal edge: hostname based
// tenant routing, session cookie refresh, and the local receipt and
// exchange-rate APIs.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/R3E-Network/tenant_portal/internal/config"
	"github.com/R3E-Network/tenant_portal/internal/logging"
	"github.com/R3E-Network/tenant_portal/internal/portal"
)

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New("portal-edge", cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(map[string]interface{}{
		"env":         cfg.AppEnv,
		"root_domain": cfg.RootDomain,
		"upstream":    cfg.UpstreamURL,
	}).Info("starting portal edge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := portal.NewApplication(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build application")
	}

	runErr := app.Run(ctx)
	if runErr != nil {
		logger.WithError(runErr).Error("server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown incomplete")
	}
	logger.Info("portal edge stopped")

	if runErr != nil {
		cancel()
		log.Fatalf("portal edge: %v", runErr)
	}
}
