package store

import (
	"context"
	"fmt"
	"strings"
)

// List returns every row of the table, ordered by primary key.
// Ordering is deterministic: ORDER BY key COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the table has no rows.
func (s *Store) List(ctx context.Context, t *Table) ([]Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s COLLATE BINARY ASC",
		strings.Join(t.Columns(), ", "), t.name, t.key)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		row, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.name, err)
	}

	return out, nil
}

// Get returns one row by key outside any session. found is false when no row matches.
func (s *Store) Get(ctx context.Context, t *Table, key any) (Row, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(t.Columns(), ", "), t.name, t.key)

	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, false, fmt.Errorf("query %s: %w", t.name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, false, rows.Err()
	}
	row, err := t.scan(rows)
	if err != nil {
		return nil, false, fmt.Errorf("scan %s: %w", t.name, err)
	}
	return row, true, nil
}

// Count returns the number of rows in the table.
func (s *Store) Count(ctx context.Context, t *Table) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n, nil
}
