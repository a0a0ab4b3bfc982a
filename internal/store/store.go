package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// Store is the durable blob store the annotation pipeline runs against.
// Keys are slash-separated paths, values are opaque byte blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// AppendLine appends one line to a text blob via read-modify-write, creating
// the blob when absent. There is no CAS; concurrent appenders may each win,
// which the completion ledger accepts (at-least-once counting).
func AppendLine(ctx context.Context, s Store, key, line string) error {
	data, err := s.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to read %s before append: %w", key, err)
	}
	data = append(data, []byte(line+"\n")...)
	if err := s.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write %s after append: %w", key, err)
	}
	return nil
}
