package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/assign"
	"crowdscope.io/annotate/internal/interview"
	"crowdscope.io/annotate/internal/ledger"
)

// Recorder merges a finished interview into a label record, marks the batch
// entry done, and appends the item to the completion ledger.
type Recorder struct {
	engine *assign.Engine
	ledger *ledger.Ledger
}

func New(engine *assign.Engine, l *ledger.Ledger) *Recorder {
	return &Recorder{engine: engine, ledger: l}
}

// Submit persists one completed item. An empty answer list means the adapter
// allowed a confirm it should not have; the call is a silent no-op. The batch
// is rewritten before the ledger line is appended, so a crash in between
// loses at most one ledger entry per crashing worker (accepted at-least-once
// window).
func (r *Recorder) Submit(ctx context.Context, batch *assign.Batch, itemID string, session *interview.Session) error {
	if len(session.Answers) == 0 {
		log.Warn().
			Str("worker", batch.WorkerID).
			Str("item", itemID).
			Msg("Ignoring submission with no confirmed answers")
		return nil
	}

	label, err := json.Marshal(session.Answers)
	if err != nil {
		return fmt.Errorf("failed to serialize label for %s: %w", itemID, err)
	}

	if err := batch.MarkDone(itemID, string(label)); err != nil {
		return err
	}
	if err := r.engine.Save(ctx, batch); err != nil {
		return err
	}
	if err := r.ledger.RecordCompletion(ctx, itemID); err != nil {
		return err
	}

	log.Info().
		Str("worker", batch.WorkerID).
		Str("item", itemID).
		Int("answers", len(session.Answers)).
		Bool("short_circuited", session.ShortCircuited()).
		Int("done", batch.DoneCount()).
		Int("total", batch.Len()).
		Msg("Annotation submitted")

	return nil
}
