// Package memstore provides an in-memory record.Store.
//
// It backs the engine tests and the STORE_DRIVER=memory development mode.
// Tables are created lazily on first write; every read returns copies so callers
// cannot mutate stored state.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/relief/internal/record"
)

type row struct {
	rec record.Record
	seq int64
}

// Store is a mutex-guarded map of tables to rows keyed by id.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string]*row
	seq    int64

	// Now stamps created_at for records inserted without one.
	Now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tables: make(map[string]map[string]*row),
		Now:    time.Now,
	}
}

var _ record.Store = (*Store)(nil)

func (s *Store) table(name string) map[string]*row {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]*row)
		s.tables[name] = t
	}
	return t
}

// sortedByID returns the table rows in primary key order.
func (s *Store) sortedByID(name string) []*row {
	t := s.tables[name]
	rows := make([]*row, 0, len(t))
	for _, r := range t {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].rec.ID < rows[j].rec.ID })
	return rows
}

// FindByNaturalKey implements record.Store.
func (s *Store) FindByNaturalKey(ctx context.Context, t record.Table, key record.Key) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("find %s: empty natural key", t.Name)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.sortedByID(t.Name) {
		if matches(r.rec, key) {
			rec := clone(r.rec)
			return &rec, nil
		}
	}
	return nil, nil
}

// FindCandidates implements record.Store.
func (s *Store) FindCandidates(ctx context.Context, t record.Table, key record.Key) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Record
	for _, r := range s.sortedByID(t.Name) {
		if matches(r.rec, key) {
			out = append(out, clone(r.rec))
		}
	}
	return out, nil
}

// FindByID implements record.Store.
func (s *Store) FindByID(ctx context.Context, t record.Table, id string) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.tables[t.Name][id]
	if !ok {
		return nil, nil
	}
	rec := clone(r.rec)
	return &rec, nil
}

// Insert implements record.Store.
func (s *Store) Insert(ctx context.Context, t record.Table, rec record.Record, mode record.InsertMode) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if rec.ID == "" {
		return "", false, fmt.Errorf("insert %s: missing id", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tbl := s.table(t.Name)
	if _, exists := tbl[rec.ID]; exists {
		if mode == record.InsertOrIgnore {
			return rec.ID, false, nil
		}
		return "", false, fmt.Errorf("insert %s: duplicate key value violates unique constraint (id=%s)", t.Name, rec.ID)
	}

	stored := clone(rec)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.Now()
	}
	s.seq++
	tbl[rec.ID] = &row{rec: stored, seq: s.seq}
	return rec.ID, true, nil
}

// Update implements record.Store.
func (s *Store) Update(ctx context.Context, t record.Table, id string, fields record.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.tables[t.Name][id]
	if !ok {
		return fmt.Errorf("update %s %s: %w", t.Name, id, record.ErrNotFound)
	}
	for k, v := range fields {
		r.rec.Fields[k] = v
	}
	return nil
}

// TransitionStatus implements record.Store.
func (s *Store) TransitionStatus(ctx context.Context, t record.Table, id string, state any) error {
	if t.Lifecycle.Kind == record.LifecycleNone {
		return fmt.Errorf("transition %s: table has no lifecycle column", t.Name)
	}
	return s.Update(ctx, t, id, record.Fields{t.Lifecycle.Column: state})
}

// ListActive implements record.Store.
func (s *Store) ListActive(ctx context.Context, t record.Table) ([]record.Record, error) {
	return s.list(ctx, t, func(rec record.Record) bool { return !t.Lifecycle.IsDeleted(rec) })
}

// ListDeleted implements record.Store.
func (s *Store) ListDeleted(ctx context.Context, t record.Table) ([]record.Record, error) {
	if t.Lifecycle.Kind == record.LifecycleNone {
		return nil, nil
	}
	return s.list(ctx, t, t.Lifecycle.IsDeleted)
}

func (s *Store) list(ctx context.Context, t record.Table, keep func(record.Record) bool) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []*row
	for _, r := range s.tables[t.Name] {
		if keep(r.rec) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = clone(r.rec)
	}
	return out, nil
}

// Count returns the number of rows in a table regardless of lifecycle state.
func (s *Store) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[table])
}

// All returns every row of a table in primary key order.
func (s *Store) All(table string) []record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.sortedByID(table)
	out := make([]record.Record, len(rows))
	for i, r := range rows {
		out[i] = clone(r.rec)
	}
	return out
}

func clone(rec record.Record) record.Record {
	out := rec
	if rec.Fields != nil {
		out.Fields = rec.Fields.Clone()
	} else {
		out.Fields = record.Fields{}
	}
	return out
}

func matches(rec record.Record, key record.Key) bool {
	for _, part := range key {
		var v any
		if part.Column == "id" {
			v = rec.ID
		} else {
			v = rec.Fields[part.Column]
		}
		if !equalValues(v, part.Value) {
			return false
		}
	}
	return true
}

// equalValues compares scalar column values, treating numeric kinds alike.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return as == bs
	}
	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		return ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	default:
		return 0, false
	}
}
