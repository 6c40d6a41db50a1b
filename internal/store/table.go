package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tourneyq/internal/batch"
)

var (
	// ErrUnknownColumn is returned when a field names a column the table does not declare.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrImmutableKey is returned when an update tries to change the primary key.
	ErrImmutableKey = errors.New("primary key cannot be changed")

	// ErrMissingKey is returned when a create omits the key of a table that does not generate keys.
	ErrMissingKey = errors.New("missing primary key")

	// ErrNotFound is returned when a row vanished between lookup and write,
	// or a custom handler references a missing row.
	ErrNotFound = errors.New("not found")
)

// ColumnType is the storage class a column accepts.
type ColumnType int

const (
	// Text columns accept strings, time.Time (stored as RFC 3339) and nil.
	Text ColumnType = iota
	// Integer columns accept Go integer types, integral floats and nil.
	Integer
)

// Column declares one writable column.
type Column struct {
	Name string
	Type ColumnType

	// Normalize stores string values in Unicode NFC so visually identical
	// tags and names compare equal.
	Normalize bool
}

// Row is a record read from or written to a Table, keyed by column name.
type Row map[string]any

// Table is a batch.Repository over one SQLite table.
//
// Column names are never taken from input: only declared columns can appear
// in generated SQL, and anything else is rejected with ErrUnknownColumn.
type Table struct {
	entity      string
	name        string
	key         string
	generateKey bool
	columns     []Column
}

// Tournament tables.
var (
	Players = &Table{
		entity:      "player",
		name:        "players",
		key:         "id",
		generateKey: true,
		columns: []Column{
			{Name: "id", Type: Text},
			{Name: "tag", Type: Text, Normalize: true},
			{Name: "display_name", Type: Text, Normalize: true},
			{Name: "rating", Type: Integer},
			{Name: "wins", Type: Integer},
			{Name: "losses", Type: Integer},
			{Name: "created_at", Type: Text},
		},
	}

	Tournaments = &Table{
		entity:      "tournament",
		name:        "tournaments",
		key:         "id",
		generateKey: true,
		columns: []Column{
			{Name: "id", Type: Text},
			{Name: "name", Type: Text, Normalize: true},
			{Name: "game", Type: Text, Normalize: true},
			{Name: "starts_at", Type: Text},
			{Name: "status", Type: Text},
		},
	}

	Matches = &Table{
		entity:      "match",
		name:        "matches",
		key:         "id",
		generateKey: true,
		columns: []Column{
			{Name: "id", Type: Text},
			{Name: "tournament_id", Type: Text},
			{Name: "round", Type: Integer},
			{Name: "player1_id", Type: Text},
			{Name: "player2_id", Type: Text},
			{Name: "winner_id", Type: Text},
			{Name: "score", Type: Text},
		},
	}
)

// Tables returns the tournament tables in dependency order.
func Tables() []*Table {
	return []*Table{Players, Tournaments, Matches}
}

// TableFor returns the table for an entity name.
func TableFor(entity string) (*Table, bool) {
	for _, t := range Tables() {
		if t.entity == entity {
			return t, true
		}
	}
	return nil, false
}

// Entity returns the entity name used in batch files and logs.
func (t *Table) Entity() string { return t.entity }

// Name returns the SQL table name.
func (t *Table) Name() string { return t.name }

// Key returns the primary key column.
func (t *Table) Key() string { return t.key }

// Columns returns the declared column names in declaration order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Create inserts fields as a new row and returns it.
// A missing key is generated as a UUIDv7 when the table generates keys.
func (t *Table) Create(ctx context.Context, s batch.Session, fields batch.Fields) (any, error) {
	ss, err := sessionFrom(s)
	if err != nil {
		return nil, err
	}

	values, err := t.coerce(fields)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t.entity, err)
	}
	if !values.Has(t.key) {
		if !t.generateKey {
			return nil, fmt.Errorf("create %s: %w", t.entity, ErrMissingKey)
		}
		values = append(batch.Fields{batch.F(t.key, uuid.Must(uuid.NewV7()).String())}, values...)
	}

	names := values.Names()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(names, ", "), placeholders)

	if _, err := ss.exec(ctx, query, args(values)...); err != nil {
		return nil, fmt.Errorf("create %s: %w", t.entity, err)
	}
	return Row(values.Map()), nil
}

// GetByKey reads the row with the given key. found is false when no row matches.
func (t *Table) GetByKey(ctx context.Context, s batch.Session, key any) (any, bool, error) {
	ss, err := sessionFrom(s)
	if err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", strings.Join(t.Columns(), ", "), t.name, t.key)
	rows, err := ss.query(ctx, query, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", t.entity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("get %s: %w", t.entity, err)
		}
		return nil, false, nil
	}
	row, err := t.scan(rows)
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", t.entity, err)
	}
	return row, true, nil
}

// Update writes fields onto the row previously returned by GetByKey.
func (t *Table) Update(ctx context.Context, s batch.Session, record any, fields batch.Fields) error {
	ss, err := sessionFrom(s)
	if err != nil {
		return err
	}
	row, key, err := t.recordKey(record)
	if err != nil {
		return err
	}

	values, err := t.coerce(fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.entity, err)
	}

	var sets []string
	var params []any
	for _, f := range values {
		if f.Name == t.key {
			if fmt.Sprint(f.Value) != fmt.Sprint(key) {
				return fmt.Errorf("update %s: %w", t.entity, ErrImmutableKey)
			}
			continue
		}
		sets = append(sets, f.Name+" = ?")
		params = append(params, f.Value)
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.name, strings.Join(sets, ", "), t.key)
	res, err := ss.exec(ctx, query, append(params, key)...)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.entity, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("update %s %v: %w", t.entity, key, err)
	}

	for _, f := range values {
		row[f.Name] = f.Value
	}
	return nil
}

// Delete removes the row previously returned by GetByKey.
func (t *Table) Delete(ctx context.Context, s batch.Session, record any) error {
	ss, err := sessionFrom(s)
	if err != nil {
		return err
	}
	_, key, err := t.recordKey(record)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.key)
	res, err := ss.exec(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.entity, err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("delete %s %v: %w", t.entity, key, err)
	}
	return nil
}

func (t *Table) recordKey(record any) (Row, any, error) {
	row, ok := record.(Row)
	if !ok {
		return nil, nil, fmt.Errorf("%s: unexpected record type %T", t.entity, record)
	}
	key, ok := row[t.key]
	if !ok || key == nil {
		return nil, nil, fmt.Errorf("%s: record has no %s", t.entity, t.key)
	}
	return row, key, nil
}

// coerce validates field names against the declared columns and converts
// values to the column's storage class. Input order is preserved.
func (t *Table) coerce(fields batch.Fields) (batch.Fields, error) {
	out := make(batch.Fields, 0, len(fields))
	for _, f := range fields {
		col, ok := t.column(f.Name)
		if !ok {
			return nil, fmt.Errorf("%w %q for %s", ErrUnknownColumn, f.Name, t.entity)
		}
		v, err := coerceValue(col, f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		out = append(out, batch.F(col.Name, v))
	}
	return out, nil
}

func coerceValue(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch col.Type {
	case Integer:
		return toInt64(v)
	default:
		switch s := v.(type) {
		case string:
			if col.Normalize {
				return norm.NFC.String(s), nil
			}
			return s, nil
		case time.Time:
			return s.UTC().Format(time.RFC3339), nil
		case fmt.Stringer:
			return s.String(), nil
		default:
			return nil, fmt.Errorf("expected text, got %T", v)
		}
	}
}

// toInt64 converts Go integer types and integral floats (as decoded from YAML/JSON).
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", n)
		}
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func (t *Table) scan(rows *sql.Rows) (Row, error) {
	values := make([]any, len(t.columns))
	ptrs := make([]any, len(t.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(Row, len(t.columns))
	for i, c := range t.columns {
		if b, ok := values[i].([]byte); ok {
			row[c.Name] = string(b)
			continue
		}
		row[c.Name] = values[i]
	}
	return row, nil
}

func args(fields batch.Fields) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f.Value
	}
	return out
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
