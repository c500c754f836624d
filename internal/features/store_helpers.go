package features

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const featureColumns = "id, priority, category, name, description, steps, passes, created_at, updated_at"

func scanFeature(scanner interface{ Scan(dest ...any) error }) (*Feature, error) {
	var (
		f          Feature
		stepsRaw   sql.NullString
		passes     int64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&f.ID,
		&f.Priority,
		&f.Category,
		&f.Name,
		&f.Description,
		&stepsRaw,
		&passes,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	f.Passes = passes != 0
	f.Steps = []string{}
	if stepsRaw.Valid && strings.TrimSpace(stepsRaw.String) != "" {
		if err := json.Unmarshal([]byte(stepsRaw.String), &f.Steps); err != nil {
			return nil, fmt.Errorf("decode steps for feature %d: %w", f.ID, err)
		}
	}
	f.CreatedAt = parseTimeString(createdRaw)
	f.UpdatedAt = parseTimeString(updatedRaw)
	return &f, nil
}

func parseTimeString(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw.String); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", raw.String); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func encodeSteps(steps []string) (string, error) {
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(data), nil
}

func nextPriority(ctx context.Context, tx *sql.Tx) (int64, error) {
	var maxPriority int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(priority), 0) FROM features").Scan(&maxPriority); err != nil {
		return 0, fmt.Errorf("read max priority: %w", err)
	}
	return maxPriority + 1, nil
}

func getFeature(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id int64) (*Feature, error) {
	f, err := scanFeature(q.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, storeErr("get feature", err)
	}
	return f, nil
}
