package store

import (
	"context"
	"fmt"
	"strings"
)

// Open returns the Store selected by databaseURL:
//
//	memory                     in-process, not persisted
//	sqlite:<path>              SQLite file
//	postgres://... postgresql://...  PostgreSQL
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case databaseURL == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(databaseURL, "sqlite:")
		if path == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		return OpenSQLite(ctx, path)
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return OpenPostgres(ctx, databaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q", databaseURL)
	}
}
