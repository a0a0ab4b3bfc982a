package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"crowdscope.io/annotate/internal/store"
)

var (
	// ErrDataUnavailable means the backing store could not serve the dataset.
	ErrDataUnavailable = errors.New("dataset unavailable")
	// ErrEmptyCatalog means filtering left zero eligible items.
	ErrEmptyCatalog = errors.New("catalog is empty after filtering")
)

// Item is one unit of annotatable work. Immutable once loaded.
type Item struct {
	ID            string
	Text          string
	Context       string
	ImageName     string
	Language      string
	Qualification bool
}

// Catalog is the filtered, keyed dataset for one task. Safe for concurrent
// reads; never mutated after Load returns.
type Catalog struct {
	items []Item
	byID  map[string]int
}

// Filters controls which dataset rows survive the load.
type Filters struct {
	Language         string // keep rows whose language tag matches; empty keeps all
	ImagePrefix      string // require the image blob to exist under this prefix
	QualificationKey string // optional disjoint qualification CSV
	QualificationImagePrefix string
	HeadLimit        int // keep only the first N rows after filtering; 0 = unlimited
}

// Load reads the dataset CSV from the store, applies the filters, and unions
// in the qualification sub-catalog when configured. Read-only; the result is
// cached process-wide by the caller.
func Load(ctx context.Context, s store.Store, datasetKey string, filters Filters) (*Catalog, error) {
	items, err := loadCSV(ctx, s, datasetKey, filters.Language, filters.ImagePrefix, false)
	if err != nil {
		return nil, err
	}
	if filters.HeadLimit > 0 && len(items) > filters.HeadLimit {
		items = items[:filters.HeadLimit]
	}

	if filters.QualificationKey != "" {
		quals, err := loadCSV(ctx, s, filters.QualificationKey, "", filters.QualificationImagePrefix, true)
		if err != nil && !errors.Is(err, ErrEmptyCatalog) {
			return nil, err
		}
		items = append(items, quals...)
	}

	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}

	cat := &Catalog{
		items: items,
		byID:  make(map[string]int, len(items)),
	}
	for i, it := range items {
		cat.byID[it.ID] = i
	}

	log.Info().
		Int("items", len(items)).
		Str("dataset", datasetKey).
		Msg("Catalog loaded")

	return cat, nil
}

// loadCSV reads one tabular blob and applies language / image-existence /
// image-dedup filters.
func loadCSV(ctx context.Context, s store.Store, key, language, imagePrefix string, qualification bool) ([]Item, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, key, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDataUnavailable, key, err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyCatalog
	}

	col := columnIndex(records[0])
	if col.id < 0 || col.text < 0 || col.image < 0 {
		return nil, fmt.Errorf("%w: %s: missing required columns", ErrDataUnavailable, key)
	}

	var available map[string]bool
	if imagePrefix != "" {
		keys, err := s.List(ctx, imagePrefix)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s: %v", ErrDataUnavailable, imagePrefix, err)
		}
		available = make(map[string]bool, len(keys))
		for _, k := range keys {
			available[path.Base(k)] = true
		}
	}

	seenImages := make(map[string]bool)
	var items []Item
	for _, rec := range records[1:] {
		it := Item{
			ID:            field(rec, col.id),
			Text:          anonymizeLinks(field(rec, col.text)),
			Context:       anonymizeLinks(field(rec, col.note)),
			ImageName:     field(rec, col.image),
			Qualification: qualification,
		}
		if col.lang >= 0 {
			it.Language = field(rec, col.lang)
		}
		if it.ID == "" || it.ImageName == "" {
			continue
		}
		if language != "" && it.Language != language {
			continue
		}
		if available != nil && !available[it.ImageName] {
			continue
		}
		if seenImages[it.ImageName] {
			continue
		}
		seenImages[it.ImageName] = true
		items = append(items, it)
	}

	if len(items) == 0 {
		return nil, ErrEmptyCatalog
	}
	return items, nil
}

type columns struct {
	id, text, note, image, lang int
}

func columnIndex(header []string) columns {
	col := columns{id: -1, text: -1, note: -1, image: -1, lang: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "tweet_id", "item_id", "id":
			col.id = i
		case "full_text", "text":
			col.text = i
		case "note", "context":
			col.note = i
		case "image_name", "image":
			col.image = i
		case "language_present", "language":
			col.lang = i
		}
	}
	return col
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Items returns the catalog in load order.
func (c *Catalog) Items() []Item {
	return c.items
}

// Get looks an item up by ID.
func (c *Catalog) Get(id string) (Item, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Len returns the item count.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Qualifications returns the IDs of all qualification items, in load order.
func (c *Catalog) Qualifications() []string {
	var ids []string
	for _, it := range c.items {
		if it.Qualification {
			ids = append(ids, it.ID)
		}
	}
	return ids
}
