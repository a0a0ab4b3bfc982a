package main

import (
	"context"
	"runtime"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/orchestrator"
	"crowdscope.io/annotate/pkg/zerolog_config"
)

// Orchestrator entry: runs the ingest binary to load task data, then keeps
// the API binary serving until a shutdown signal arrives.
func main() {
	cfg := config.Load()

	zerolog_config.SetAppPrefix("annotate-orch")
	zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs")

	log.Info().Str("task", cfg.TaskName).Msg("Starting annotate orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalHandler := orchestrator.NewSignalHandler()
	signalHandler.HandleSignals(ctx, cancel)

	binExt := ""
	if runtime.GOOS == "windows" {
		binExt = ".exe"
	}

	serviceManager := orchestrator.NewServiceManager()

	if err := serviceManager.StartIngestService(ctx, binExt); err != nil {
		log.Fatal().Err(err).Msg("Failed to start ingest service")
	}

	if err := serviceManager.StartAPIService(ctx, binExt); err != nil {
		log.Fatal().Err(err).Msg("Failed to start API service")
	}

	serviceManager.WaitForServices(ctx)

	log.Info().Msg("Orchestrator exiting")
}
