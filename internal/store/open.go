package store

import (
	"fmt"

	"crowdscope.io/annotate/internal/config"
)

// Open builds the Store selected by the config.
func Open(cfg config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case "couchbase":
		return NewCouchbaseStore(cfg.CouchbaseURL, cfg.CouchbaseUsername, cfg.CouchbasePassword, cfg.CouchbaseBucket)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
