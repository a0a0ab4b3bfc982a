package recorder

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdscope.io/annotate/internal/assign"
	"crowdscope.io/annotate/internal/catalog"
	"crowdscope.io/annotate/internal/interview"
	"crowdscope.io/annotate/internal/ledger"
	"crowdscope.io/annotate/internal/store"
)

const (
	datasetKey = "data/dataset.csv"
	doneKey    = "data/done_test.txt"
)

type fixture struct {
	store    *store.MemoryStore
	ledger   *ledger.Ledger
	engine   *assign.Engine
	recorder *Recorder
	batch    *assign.Batch
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, datasetKey, []byte(""+
		"item_id,text,image_name\n"+
		"A,text a,a.jpg\n"+
		"B,text b,b.jpg\n")))

	cat, err := catalog.Load(ctx, s, datasetKey, catalog.Filters{})
	require.NoError(t, err)

	l := ledger.New(s, doneKey, 3)
	engine := assign.NewEngine(s, l, "data/worker_progress/test/", 5)
	batch, err := engine.Assign(ctx, "w1", cat)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Len())

	return &fixture{
		store:    s,
		ledger:   l,
		engine:   engine,
		recorder: New(engine, l),
		batch:    batch,
	}
}

func session(answers ...interview.Triple) *interview.Session {
	return &interview.Session{
		ID:       "s1",
		WorkerID: "w1",
		ItemID:   "A",
		Answers:  answers,
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	triples := []interview.Triple{
		{Question: "Q1", Answer: "Yes"},
		{Question: "Q2", Answer: "No", Explanation: "fabricated"},
	}
	require.NoError(t, f.recorder.Submit(ctx, f.batch, "A", session(triples...)))

	// The ledger got exactly one line for the item.
	counts, err := f.ledger.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 1}, counts)

	// The persisted batch carries the serialized label.
	data, err := f.store.Get(ctx, f.engine.ProgressKey("w1"))
	require.NoError(t, err)
	persisted, err := assign.DecodeBatch(data)
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.DoneCount())

	var entry assign.Entry
	for _, e := range persisted.Entries {
		if e.ItemID == "A" {
			entry = e
		}
	}
	require.True(t, entry.Done)

	var got []interview.Triple
	require.NoError(t, json.Unmarshal([]byte(entry.Label), &got))
	assert.Equal(t, triples, got)

	// A fresh worker visit sees the recorded progress, not a new batch.
	ctx2 := context.Background()
	reloaded, err := f.engine.Assign(ctx2, "w1", nil)
	require.NoError(t, err)
	next, ok := reloaded.NextPending()
	require.True(t, ok)
	assert.NotEqual(t, "A", next.ItemID)
}

func TestSubmitEmptyAnswersIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	require.NoError(t, f.recorder.Submit(ctx, f.batch, "A", session()))

	counts, err := f.ledger.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts, "nothing appended to the ledger")

	data, err := f.store.Get(ctx, f.engine.ProgressKey("w1"))
	require.NoError(t, err)
	persisted, err := assign.DecodeBatch(data)
	require.NoError(t, err)
	assert.Equal(t, 0, persisted.DoneCount(), "batch left untouched")
}

func TestSubmitUnknownItem(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	err := f.recorder.Submit(ctx, f.batch, "Z", session(interview.Triple{Question: "Q1", Answer: "Yes"}))
	assert.Error(t, err)

	counts, err := f.ledger.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts, "failed mark never reaches the ledger")
}
