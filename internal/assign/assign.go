package assign

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/dgryski/go-farm"
	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/catalog"
	"crowdscope.io/annotate/internal/ledger"
	"crowdscope.io/annotate/internal/metrics"
	"crowdscope.io/annotate/internal/store"
)

// ErrNoEligibleItems means every catalog item is already saturated. Terminal
// for the worker, not retried.
var ErrNoEligibleItems = errors.New("no eligible items to assign")

// Engine assigns each worker a fixed batch of items. Assignment is
// deterministic in the worker ID and idempotent: once a progress file exists
// it is always reused, so saturation is only ever checked at creation time.
type Engine struct {
	store          store.Store
	ledger         *ledger.Ledger
	progressPrefix string
	maxPerWorker   int
}

func NewEngine(s store.Store, l *ledger.Ledger, progressPrefix string, maxPerWorker int) *Engine {
	return &Engine{
		store:          s,
		ledger:         l,
		progressPrefix: progressPrefix,
		maxPerWorker:   maxPerWorker,
	}
}

// ProgressKey returns the blob key of a worker's progress file.
func (e *Engine) ProgressKey(workerID string) string {
	return fmt.Sprintf("%sprogress_%s.csv", e.progressPrefix, workerID)
}

// Seed derives the worker's sampling seed: a stable 64-bit hash of the worker
// ID reduced into the positive 31-bit range.
func Seed(workerID string) int64 {
	return int64(farm.Hash64([]byte(workerID)) % (1 << 31))
}

// Assign returns the worker's batch, creating and persisting it on first
// call. Re-invocation returns the persisted batch unchanged.
func (e *Engine) Assign(ctx context.Context, workerID string, cat *catalog.Catalog) (*Batch, error) {
	key := e.ProgressKey(workerID)

	data, err := e.store.Get(ctx, key)
	if err == nil {
		batch, err := DecodeBatch(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode existing batch for %s: %w", workerID, err)
		}
		log.Debug().
			Str("worker", workerID).
			Int("size", batch.Len()).
			Msg("Reusing persisted batch")
		return batch, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to read batch for %s: %w", workerID, err)
	}

	saturated, err := e.ledger.Saturated(ctx)
	if err != nil {
		return nil, err
	}
	var qualifications, pool []catalog.Item
	skipped := 0
	for _, it := range cat.Items() {
		if saturated[it.ID] {
			skipped++
			continue
		}
		if it.Qualification {
			qualifications = append(qualifications, it)
		} else {
			pool = append(pool, it)
		}
	}
	metrics.RecordSaturatedSkips(skipped)
	if len(qualifications)+len(pool) == 0 {
		return nil, ErrNoEligibleItems
	}

	rng := rand.New(rand.NewSource(Seed(workerID)))

	// Sample without replacement from the non-qualification pool, then
	// interleave the qualification items with a seeded shuffle.
	n := e.maxPerWorker
	if len(pool) < n {
		n = len(pool)
	}
	selected := make([]catalog.Item, 0, n+len(qualifications))
	for _, idx := range rng.Perm(len(pool))[:n] {
		selected = append(selected, pool[idx])
	}
	selected = append(selected, qualifications...)
	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})

	batch := &Batch{WorkerID: workerID}
	for _, it := range selected {
		batch.Entries = append(batch.Entries, Entry{
			ItemID:    it.ID,
			WorkerID:  workerID,
			ImageName: it.ImageName,
		})
	}

	// Persist before returning so a re-visit sees the same batch.
	encoded, err := batch.Encode()
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, key, encoded); err != nil {
		return nil, fmt.Errorf("failed to persist batch for %s: %w", workerID, err)
	}

	log.Info().
		Str("worker", workerID).
		Int("size", batch.Len()).
		Int("qualifications", len(qualifications)).
		Int("excluded_saturated", skipped).
		Msg("Batch assigned")

	return batch, nil
}

// Save rewrites the worker's progress file in full.
func (e *Engine) Save(ctx context.Context, batch *Batch) error {
	encoded, err := batch.Encode()
	if err != nil {
		return err
	}
	if err := e.store.Put(ctx, e.ProgressKey(batch.WorkerID), encoded); err != nil {
		return fmt.Errorf("failed to persist batch for %s: %w", batch.WorkerID, err)
	}
	return nil
}
