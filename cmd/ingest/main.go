package main

import (
	"context"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/ingest"
	"crowdscope.io/annotate/internal/store"
	"crowdscope.io/annotate/pkg/zerolog_config"
)

func main() {
	cfg := config.Load()

	zerolog_config.SetAppPrefix("annotate-ingest")
	zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs")

	log.Info().Str("task", cfg.TaskName).Msg("Starting annotate-ingest service")

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open blob store")
	}
	defer st.Close()

	loader := ingest.NewLoader(cfg, st)
	if err := loader.IngestAll(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ingest task data")
	}

	log.Info().Msg("Task data ingestion completed successfully")
}
