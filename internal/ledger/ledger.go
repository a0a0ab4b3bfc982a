package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/store"
)

// Ledger is the global completion log: one line per finished annotation, item
// IDs repeating once per annotator. An item is saturated once its line count
// reaches the configured annotators-per-item threshold.
//
// Appends are read-modify-write with no lock; concurrent submissions may
// overshoot the threshold slightly, which is accepted.
type Ledger struct {
	store     store.Store
	key       string
	threshold int
}

func New(s store.Store, key string, annotatorsPerItem int) *Ledger {
	return &Ledger{store: s, key: key, threshold: annotatorsPerItem}
}

// Counts reads the ledger and returns per-item completion counts. A missing
// blob is an empty ledger, not an error.
func (l *Ledger) Counts(ctx context.Context) (map[string]int, error) {
	data, err := l.store.Get(ctx, l.key)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read completion ledger: %w", err)
	}

	counts := make(map[string]int)
	for _, line := range strings.Split(string(data), "\n") {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		counts[id]++
	}
	return counts, nil
}

// Saturated returns the set of items whose completion count has reached the
// threshold. The read is point-in-time; items saturated later are not
// retracted from batches already assigned.
func (l *Ledger) Saturated(ctx context.Context) (map[string]bool, error) {
	counts, err := l.Counts(ctx)
	if err != nil {
		return nil, err
	}
	saturated := make(map[string]bool)
	for id, c := range counts {
		if c >= l.threshold {
			saturated[id] = true
		}
	}
	return saturated, nil
}

// IsSaturated reports whether one item has reached the threshold.
func (l *Ledger) IsSaturated(ctx context.Context, itemID string) (bool, error) {
	counts, err := l.Counts(ctx)
	if err != nil {
		return false, err
	}
	return counts[itemID] >= l.threshold, nil
}

// RecordCompletion appends exactly one line for the item.
func (l *Ledger) RecordCompletion(ctx context.Context, itemID string) error {
	if err := store.AppendLine(ctx, l.store, l.key, itemID); err != nil {
		return fmt.Errorf("failed to record completion for %s: %w", itemID, err)
	}
	log.Debug().
		Str("item", itemID).
		Msg("Completion recorded in ledger")
	return nil
}

// Threshold returns the annotators-per-item setting.
func (l *Ledger) Threshold() int {
	return l.threshold
}
