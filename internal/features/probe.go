package features

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// CountFeatures opens dbPath read-only and counts its features. It never
// creates the file; a missing database returns an error matching
// os.ErrNotExist.
func CountFeatures(ctx context.Context, dbPath string) (int, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("database path %s is a directory", dbPath)
	}
	db, err := sql.Open("sqlite", dsn(dbPath, true))
	if err != nil {
		return 0, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRowContext(ensureContext(ctx), "SELECT COUNT(*) FROM features").Scan(&count); err != nil {
		return 0, fmt.Errorf("count features: %w", err)
	}
	return count, nil
}

// HasFeatures reports whether dbPath holds a readable features table with at
// least one row, so callers can tell whether the backlog still needs seeding
// before the daemon is up.
func HasFeatures(ctx context.Context, dbPath string) bool {
	count, err := CountFeatures(ctx, dbPath)
	return err == nil && count > 0
}
