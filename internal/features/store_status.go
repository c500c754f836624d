package features

import (
	"context"
	"database/sql"
	"fmt"
)

// SetPasses records the pass/fail status of a feature. Setting the current
// value again is a no-op apart from returning the feature; updated_at only
// moves when the value changes.
func (s *Store) SetPasses(ctx context.Context, id int64, passes bool) (*Feature, error) {
	ctx = ensureContext(ctx)
	value := boolToInt(passes)
	var updated *Feature
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE features
             SET passes = ?, updated_at = CASE WHEN passes <> ? THEN ? ELSE updated_at END
             WHERE id = ?`,
			value, value, timestamp(), id,
		)
		if err != nil {
			return fmt.Errorf("update passes: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return notFound(id)
		}
		updated, err = getFeature(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, classify("set passes", err)
	}
	return updated, nil
}

// PassingSet returns every passing feature ordered by (priority, id).
func (s *Store) PassingSet(ctx context.Context) ([]PassingFeature, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, name FROM features WHERE passes = 1 ORDER BY priority ASC, id ASC`)
	if err != nil {
		return nil, storeErr("list passing features", err)
	}
	defer rows.Close()

	out := []PassingFeature{}
	for rows.Next() {
		var p PassingFeature
		if err := rows.Scan(&p.ID, &p.Category, &p.Name); err != nil {
			return nil, storeErr("scan passing feature", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate passing features", err)
	}
	return out, nil
}

// Stats counts passing and total features.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var passing, total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(passes), 0), COUNT(*) FROM features`,
	).Scan(&passing, &total); err != nil {
		return Stats{}, storeErr("feature stats", err)
	}
	return NewStats(passing, total), nil
}
