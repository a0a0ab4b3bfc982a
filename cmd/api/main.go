package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/api"
	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/metrics"
	"crowdscope.io/annotate/internal/store"
	"crowdscope.io/annotate/pkg/zerolog_config"
)

func main() {
	cfg := config.Load()

	zerolog_config.SetAppPrefix("annotate-api")
	zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs")

	log.Info().Str("task", cfg.TaskName).Msg("Starting annotate-api service")

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}
	defer st.Close()

	metrics.StartSystemMetrics(30 * time.Second)

	server, err := api.NewServer(context.Background(), cfg, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build annotation server")
	}

	router := server.SetupRoutes()

	log.Info().
		Str("port", cfg.APIPort).
		Msg("API Server starting")

	if err := http.ListenAndServe(":"+cfg.APIPort, router); err != nil {
		log.Fatal().
			Err(err).
			Msg("Failed to start API server")
	}
}
