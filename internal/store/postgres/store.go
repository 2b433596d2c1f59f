// Package postgres implements record.Store on PostgreSQL with pgx.
//
// Table and column names come from the registered family definitions and are
// always quoted; every value is bound as a query parameter. Only columns a
// table declares are written, so unknown keys in a record's fields are
// dropped rather than interpolated.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/relief/internal/record"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store is a record.Store backed by PostgreSQL.
type Store struct {
	db DBTX
}

// New creates a store over db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

var _ record.Store = (*Store)(nil)

// FindByNaturalKey implements record.Store.
func (s *Store) FindByNaturalKey(ctx context.Context, t record.Table, key record.Key) (*record.Record, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("find %s: empty natural key", t.Name)
	}
	query, args := buildFindQuery(t, key, true)
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s by %s: %w", t.Name, key, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// FindCandidates implements record.Store.
func (s *Store) FindCandidates(ctx context.Context, t record.Table, key record.Key) ([]record.Record, error) {
	query, args := buildFindQuery(t, key, false)
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find %s candidates by %s: %w", t.Name, key, err)
	}
	return recs, nil
}

// FindByID implements record.Store.
func (s *Store) FindByID(ctx context.Context, t record.Table, id string) (*record.Record, error) {
	return s.FindByNaturalKey(ctx, t, record.Key{{Column: "id", Value: id}})
}

// Insert implements record.Store.
func (s *Store) Insert(ctx context.Context, t record.Table, rec record.Record, mode record.InsertMode) (string, bool, error) {
	if rec.ID == "" {
		return "", false, fmt.Errorf("insert %s: missing id", t.Name)
	}
	query, args := buildInsertQuery(t, rec, mode)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return "", false, fmt.Errorf("insert %s: %w", t.Name, err)
	}
	return rec.ID, tag.RowsAffected() > 0, nil
}

// Update implements record.Store.
func (s *Store) Update(ctx context.Context, t record.Table, id string, fields record.Fields) error {
	query, args, ok := buildUpdateQuery(t, id, fields)
	if !ok {
		return nil
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", t.Name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", t.Name, id, record.ErrNotFound)
	}
	return nil
}

// TransitionStatus implements record.Store.
func (s *Store) TransitionStatus(ctx context.Context, t record.Table, id string, state any) error {
	if t.Lifecycle.Kind == record.LifecycleNone {
		return fmt.Errorf("transition %s: table has no lifecycle column", t.Name)
	}
	fields := record.Fields{t.Lifecycle.Column: state}
	if t.HasColumn("updated_at") {
		fields["updated_at"] = time.Now()
	}
	return s.Update(ctx, t, id, fields)
}

// ListActive implements record.Store.
func (s *Store) ListActive(ctx context.Context, t record.Table) ([]record.Record, error) {
	query, args := buildListQuery(t, false)
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.Name, err)
	}
	return recs, nil
}

// ListDeleted implements record.Store.
func (s *Store) ListDeleted(ctx context.Context, t record.Table) ([]record.Record, error) {
	if t.Lifecycle.Kind == record.LifecycleNone {
		return nil, nil
	}
	query, args := buildListQuery(t, true)
	recs, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deleted %s: %w", t.Name, err)
	}
	return recs, nil
}

// query runs a select built by this package and scans the rows.
func (s *Store) query(ctx context.Context, query string, args ...any) ([]record.Record, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	var out []record.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		rec, err := scanRecord(fds, values)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// scanRecord maps a row whose first two columns are id and created_at.
func scanRecord(fds []pgconn.FieldDescription, values []any) (record.Record, error) {
	if len(values) < 2 || len(fds) != len(values) {
		return record.Record{}, errors.New("unexpected row shape")
	}

	rec := record.Record{Fields: record.Fields{}}
	rec.ID = fmt.Sprint(values[0])
	if ts, ok := values[1].(time.Time); ok {
		rec.CreatedAt = ts
	}

	for i := 2; i < len(values); i++ {
		v, err := normalizeValue(fds[i].DataTypeOID, values[i])
		if err != nil {
			return record.Record{}, fmt.Errorf("column %s: %w", fds[i].Name, err)
		}
		if v != nil {
			rec.Fields[fds[i].Name] = v
		}
	}
	return rec, nil
}

// normalizeValue converts what pgx decodes into the value types record.Fields
// documents.
func normalizeValue(oid uint32, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	if oid == pgtype.JSONOID || oid == pgtype.JSONBOID {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(data), nil
	}

	switch t := v.(type) {
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil {
			return nil, err
		}
		if !f.Valid {
			return nil, nil
		}
		return f.Float64, nil
	case [16]byte:
		return uuid.UUID(t).String(), nil
	default:
		return v, nil
	}
}
