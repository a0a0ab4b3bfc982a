package api

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/assign"
	"crowdscope.io/annotate/internal/catalog"
	"crowdscope.io/annotate/internal/config"
	"crowdscope.io/annotate/internal/interview"
	"crowdscope.io/annotate/internal/ledger"
	"crowdscope.io/annotate/internal/recorder"
	"crowdscope.io/annotate/internal/store"
)

// Server wires the annotation pipeline behind the HTTP adapter. The catalog
// and question tree are loaded once at startup and cached for the process
// lifetime; every interaction is one synchronous pass through the core.
type Server struct {
	cfg      config.Config
	store    store.Store
	catalog  *catalog.Catalog
	tree     *interview.Tree
	ledger   *ledger.Ledger
	engine   *assign.Engine
	recorder *recorder.Recorder
	sessions *interview.Registry
}

// NewServer loads the catalog and question tree from the store and builds the
// pipeline. A malformed tree aborts startup.
func NewServer(ctx context.Context, cfg config.Config, s store.Store) (*Server, error) {
	filters := catalog.Filters{
		Language:    cfg.Language,
		ImagePrefix: cfg.ImagePrefix,
		HeadLimit:   cfg.DebugItemLimit,
	}
	if cfg.AddQualifications {
		filters.QualificationKey = cfg.QualificationKey
		filters.QualificationImagePrefix = cfg.QualificationImages
	}

	cat, err := catalog.Load(ctx, s, cfg.DatasetKey, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	treeData, err := s.Get(ctx, cfg.QuestionTreeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read question tree %s: %w", cfg.QuestionTreeKey, err)
	}
	tree, err := interview.ParseTree(treeData, cfg.MaxTreeDepth)
	if err != nil {
		return nil, err
	}

	led := ledger.New(s, cfg.DoneKey, cfg.AnnotatorsPerItem)
	engine := assign.NewEngine(s, led, cfg.ProgressPrefix, cfg.MaxPerWorker)

	log.Info().
		Str("task", cfg.TaskName).
		Int("catalog_items", cat.Len()).
		Int("branches", len(tree.Branches)).
		Int("annotators_per_item", cfg.AnnotatorsPerItem).
		Msg("Annotation server ready")

	return &Server{
		cfg:      cfg,
		store:    s,
		catalog:  cat,
		tree:     tree,
		ledger:   led,
		engine:   engine,
		recorder: recorder.New(engine, led),
		sessions: interview.NewRegistry(),
	}, nil
}
