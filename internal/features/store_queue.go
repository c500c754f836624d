package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Create validates input and appends a pending feature at MAX(priority)+1.
func (s *Store) Create(ctx context.Context, input NewFeature) (*Feature, error) {
	normalized, err := input.Validate()
	if err != nil {
		return nil, err
	}
	steps, err := encodeSteps(normalized.Steps)
	if err != nil {
		return nil, err
	}

	ctx = ensureContext(ctx)
	var created *Feature
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		priority, err := nextPriority(ctx, tx)
		if err != nil {
			return err
		}
		now := timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO features (priority, category, name, description, steps, passes, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			priority, normalized.Category, normalized.Name, normalized.Description, steps, now, now,
		)
		if err != nil {
			return fmt.Errorf("insert feature: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		created, err = getFeature(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, classify("create feature", err)
	}
	return created, nil
}

// CreateBulk validates every input, then inserts all of them in one
// transaction with contiguous priorities starting at MAX(priority)+1, in input
// order. Nothing is written when any item is invalid.
func (s *Store) CreateBulk(ctx context.Context, inputs []NewFeature) (int, error) {
	normalized, err := validateAll(inputs)
	if err != nil {
		return 0, err
	}
	encoded := make([]string, len(normalized))
	for i, item := range normalized {
		if encoded[i], err = encodeSteps(item.Steps); err != nil {
			return 0, err
		}
	}

	ctx = ensureContext(ctx)
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		start, err := nextPriority(ctx, tx)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO features (priority, category, name, description, steps, passes, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, 0, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		now := timestamp()
		for i, item := range normalized {
			if _, err := stmt.ExecContext(ctx, start+int64(i), item.Category, item.Name, item.Description, encoded[i], now, now); err != nil {
				return fmt.Errorf("insert feature %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify("bulk create features", err)
	}
	return len(normalized), nil
}

// Next returns the pending feature with the smallest (priority, id).
func (s *Store) Next(ctx context.Context) (*Feature, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+featureColumns+` FROM features WHERE passes = 0 ORDER BY priority ASC, id ASC LIMIT 1`)
	f, err := scanFeature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPendingWork
	}
	if err != nil {
		return nil, storeErr("next feature", err)
	}
	return f, nil
}

// Get fetches a feature by id.
func (s *Store) Get(ctx context.Context, id int64) (*Feature, error) {
	return getFeature(ensureContext(ctx), s.db, id)
}

// List returns one filtered page of features ordered by (priority, id), or a
// random sample when q.Random is set (the offset is ignored in that mode).
func (s *Store) List(ctx context.Context, q ListQuery) (ListPage, error) {
	ctx = ensureContext(ctx)
	limit := q.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(q.Offset, 0)

	var (
		where []string
		args  []any
	)
	if q.Passes != nil {
		where = append(where, "passes = ?")
		args = append(args, boolToInt(*q.Passes))
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}
	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	page := ListPage{Features: []Feature{}, Limit: limit, Offset: offset}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM features"+filter, args...).Scan(&page.Total); err != nil {
		return ListPage{}, storeErr("count features", err)
	}

	query := `SELECT ` + featureColumns + ` FROM features` + filter
	if q.Random {
		query += " ORDER BY RANDOM() LIMIT ?"
		args = append(args, limit)
	} else {
		query += " ORDER BY priority ASC, id ASC LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ListPage{}, storeErr("list features", err)
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return ListPage{}, storeErr("scan feature", err)
		}
		page.Features = append(page.Features, *f)
	}
	if err := rows.Err(); err != nil {
		return ListPage{}, storeErr("iterate features", err)
	}
	return page, nil
}

// Skip moves a pending feature to MAX(priority)+1. Other rows are untouched
// and the passes flag does not change.
func (s *Store) Skip(ctx context.Context, id int64) (SkipResult, error) {
	ctx = ensureContext(ctx)
	var result SkipResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getFeature(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Passes {
			return fmt.Errorf("%w: cannot skip a feature that is already passing", ErrInvalidState)
		}
		priority, err := nextPriority(ctx, tx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE features SET priority = ?, updated_at = ? WHERE id = ?`,
			priority, timestamp(), id,
		); err != nil {
			return fmt.Errorf("update priority: %w", err)
		}
		result = SkipResult{ID: current.ID, Name: current.Name, OldPriority: current.Priority, NewPriority: priority}
		return nil
	})
	if err != nil {
		return SkipResult{}, classify("skip feature", err)
	}
	return result, nil
}

// Delete removes a feature. Remaining priorities are not renumbered.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return storeErr("delete feature", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("delete feature", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// classify leaves domain errors as they are and tags everything else as a
// store failure.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrValidation), errors.Is(err, ErrStore):
		return err
	default:
		return storeErr(op, err)
	}
}
