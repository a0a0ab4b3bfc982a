package assign

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Entry is one row of a worker's progress file.
type Entry struct {
	ItemID    string
	WorkerID  string
	Done      bool
	Label     string // serialized answer list, set when Done
	ImageName string
}

// Batch is the ordered item set assigned to one worker. The item set and
// order are fixed at creation; only the Done/Label fields of entries change.
type Batch struct {
	WorkerID string
	Entries  []Entry
}

// NextPending returns the earliest entry not yet done, in batch order.
func (b *Batch) NextPending() (Entry, bool) {
	for _, e := range b.Entries {
		if !e.Done {
			return e, true
		}
	}
	return Entry{}, false
}

// DoneCount returns how many entries are completed.
func (b *Batch) DoneCount() int {
	n := 0
	for _, e := range b.Entries {
		if e.Done {
			n++
		}
	}
	return n
}

// Len returns the batch size.
func (b *Batch) Len() int {
	return len(b.Entries)
}

// MarkDone flags one entry as completed and attaches its label.
func (b *Batch) MarkDone(itemID, label string) error {
	for i := range b.Entries {
		if b.Entries[i].ItemID == itemID {
			b.Entries[i].Done = true
			b.Entries[i].Label = label
			return nil
		}
	}
	return fmt.Errorf("item %s is not in the batch for worker %s", itemID, b.WorkerID)
}

// Contains reports whether the item is part of the batch.
func (b *Batch) Contains(itemID string) bool {
	for _, e := range b.Entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}

var batchHeader = []string{"item_id", "worker_id", "done", "label", "image_name"}

// Encode serializes the batch as the persisted progress CSV. The whole file
// is rewritten on every submission.
func (b *Batch) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(batchHeader); err != nil {
		return nil, fmt.Errorf("failed to write batch header: %w", err)
	}
	for _, e := range b.Entries {
		done := ""
		if e.Done {
			done = "true"
		}
		if err := w.Write([]string{e.ItemID, e.WorkerID, done, e.Label, e.ImageName}); err != nil {
			return nil, fmt.Errorf("failed to write batch row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush batch csv: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBatch parses a persisted progress CSV.
func DecodeBatch(data []byte) (*Batch, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch csv: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("batch csv has no header")
	}

	b := &Batch{}
	for _, rec := range records[1:] {
		if len(rec) < 5 {
			continue
		}
		e := Entry{
			ItemID:    rec[0],
			WorkerID:  rec[1],
			Done:      strings.EqualFold(rec[2], "true"),
			Label:     rec[3],
			ImageName: rec[4],
		}
		b.Entries = append(b.Entries, e)
		b.WorkerID = e.WorkerID
	}
	return b, nil
}
