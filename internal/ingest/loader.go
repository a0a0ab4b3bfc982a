package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/interview"
	"crowdscope.io/annotate/internal/metrics"
	"crowdscope.io/annotate/internal/store"
)

// Loader pushes the task's local source files into the blob store so the API
// service can run against it.
type Loader struct {
	cfg   config.Config
	store store.Store
}

// SourceConfig defines one source to ingest
type SourceConfig struct {
	Name      string
	LocalPath string
	Key       string // blob key, or key prefix when Dir is true
	Dir       bool
	Optional  bool
}

func NewLoader(cfg config.Config, s store.Store) *Loader {
	return &Loader{cfg: cfg, store: s}
}

// IngestAll loads every configured source. The question tree is validated
// before upload; a malformed tree aborts the run.
func (l *Loader) IngestAll(ctx context.Context) error {
	sources := []SourceConfig{
		{
			Name:      "Dataset",
			LocalPath: filepath.Join(l.cfg.IngestDataDir, filepath.Base(l.cfg.DatasetKey)),
			Key:       l.cfg.DatasetKey,
		},
		{
			Name:      "QuestionTree",
			LocalPath: filepath.Join(l.cfg.IngestStaticDir, filepath.Base(l.cfg.QuestionTreeKey)),
			Key:       l.cfg.QuestionTreeKey,
		},
		{
			Name:      "Images",
			LocalPath: filepath.Join(l.cfg.IngestStaticDir, "images"),
			Key:       l.cfg.ImagePrefix,
			Dir:       true,
		},
	}
	if l.cfg.AddQualifications {
		sources = append(sources,
			SourceConfig{
				Name:      "Qualifications",
				LocalPath: filepath.Join(l.cfg.IngestDataDir, filepath.Base(l.cfg.QualificationKey)),
				Key:       l.cfg.QualificationKey,
			},
			SourceConfig{
				Name:      "QualificationImages",
				LocalPath: filepath.Join(l.cfg.IngestStaticDir, "qualification_images"),
				Key:       l.cfg.QualificationImages,
				Dir:       true,
				Optional:  true,
			},
		)
	}

	for _, source := range sources {
		log.Info().Str("source", source.Name).Str("path", source.LocalPath).Msg("Starting ingestion")

		if err := l.ingestSource(ctx, source); err != nil {
			return fmt.Errorf("failed to ingest %s: %w", source.Name, err)
		}

		log.Info().Str("source", source.Name).Msg("Completed ingestion")
	}

	return nil
}

// ingestSource uploads one file or directory of files.
func (l *Loader) ingestSource(ctx context.Context, source SourceConfig) error {
	startTime := time.Now()

	if !source.Dir {
		data, err := os.ReadFile(source.LocalPath)
		if err != nil {
			if source.Optional && os.IsNotExist(err) {
				log.Warn().Str("source", source.Name).Msg("Optional source missing, skipping")
				return nil
			}
			metrics.RecordIngestion(source.Name, startTime, "failed", 0, 1)
			return fmt.Errorf("failed to read %s: %w", source.LocalPath, err)
		}

		if source.Name == "QuestionTree" {
			if _, err := interview.ParseTree(data, l.cfg.MaxTreeDepth); err != nil {
				metrics.RecordIngestion(source.Name, startTime, "failed", 0, 1)
				return err
			}
		}

		if err := l.store.Put(ctx, source.Key, data); err != nil {
			metrics.RecordIngestion(source.Name, startTime, "failed", 0, 1)
			return err
		}
		metrics.RecordIngestion(source.Name, startTime, "success", 1, 0)
		return nil
	}

	entries, err := os.ReadDir(source.LocalPath)
	if err != nil {
		if source.Optional && os.IsNotExist(err) {
			log.Warn().Str("source", source.Name).Msg("Optional source missing, skipping")
			return nil
		}
		metrics.RecordIngestion(source.Name, startTime, "failed", 0, 1)
		return fmt.Errorf("failed to read directory %s: %w", source.LocalPath, err)
	}

	stored, failed := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(source.LocalPath, entry.Name()))
		if err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("Failed to read image")
			failed++
			continue
		}
		if err := l.store.Put(ctx, source.Key+entry.Name(), data); err != nil {
			log.Error().Err(err).Str("file", entry.Name()).Msg("Failed to store image")
			failed++
			continue
		}
		stored++
	}

	status := "success"
	if failed > 0 {
		status = "partial"
	}
	metrics.RecordIngestion(source.Name, startTime, status, stored, failed)

	log.Info().
		Str("source", source.Name).
		Int("stored", stored).
		Int("failed", failed).
		Msg("Directory ingestion finished")

	if stored == 0 && failed > 0 {
		return fmt.Errorf("all %d files under %s failed to ingest", failed, source.LocalPath)
	}
	return nil
}
