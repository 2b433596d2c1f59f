// Package record defines the narrow record-access contract the reconciliation
// engine consumes. Implementations live under internal/store.
package record

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrNotFound is returned by Update and TransitionStatus when the id does not exist.
var ErrNotFound = errors.New("record not found")

// Fields maps persisted column names to values.
//
// Values are one of: nil, string, float64, int64, bool, time.Time or
// json.RawMessage. Stores normalize what they read back to these types.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Record is one persisted row.
type Record struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
}

// String returns the column value formatted as a string, or "" when absent.
func (r Record) String(col string) string {
	v, ok := r.Fields[col]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns the column value as a float64 when it is numeric.
func (r Record) Float(col string) (float64, bool) {
	switch t := r.Fields[col].(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// LifecycleKind describes how a table represents soft deletion.
type LifecycleKind int

const (
	// LifecycleNone marks tables without a trash state.
	LifecycleNone LifecycleKind = iota
	// LifecycleStatus marks tables whose status column holds a deleted value.
	LifecycleStatus
	// LifecycleFlag marks tables where a boolean column set to true is the "deleted" side.
	LifecycleFlag
)

// Lifecycle names the column and value that mean "deleted".
type Lifecycle struct {
	Kind    LifecycleKind
	Column  string
	Deleted any // "deleted" for status tables, true for flag tables
}

// IsDeleted reports whether rec is in the deleted state.
func (l Lifecycle) IsDeleted(rec Record) bool {
	switch l.Kind {
	case LifecycleStatus:
		return rec.String(l.Column) == fmt.Sprint(l.Deleted)
	case LifecycleFlag:
		b, _ := rec.Fields[l.Column].(bool)
		return b
	default:
		return false
	}
}

// Table describes a persisted entity table.
type Table struct {
	Name      string
	Columns   []string // persisted columns other than id and created_at
	Lifecycle Lifecycle
}

// HasColumn reports whether col is one of the table's persisted columns.
func (t Table) HasColumn(col string) bool {
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// KeyPart is one column=value equality in a natural key.
type KeyPart struct {
	Column string
	Value  any
}

// Key is a conjunction of column equalities.
type Key []KeyPart

// String renders the key for log and error messages.
func (k Key) String() string {
	s := ""
	for i, p := range k {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", p.Column, p.Value)
	}
	return s
}

// InsertMode controls conflict handling on insert.
type InsertMode int

const (
	// InsertPlain fails on an id conflict.
	InsertPlain InsertMode = iota
	// InsertOrIgnore turns an id conflict into a no-op.
	InsertOrIgnore
)

// Store is the record-access interface consumed by the engine.
//
// Lookups return the first match by primary key order. FindByNaturalKey and
// FindByID return (nil, nil) when nothing matches.
type Store interface {
	FindByNaturalKey(ctx context.Context, t Table, key Key) (*Record, error)
	FindCandidates(ctx context.Context, t Table, key Key) ([]Record, error)
	FindByID(ctx context.Context, t Table, id string) (*Record, error)

	// Insert stores rec and reports whether a row was written. With
	// InsertOrIgnore an existing id yields (id, false, nil).
	Insert(ctx context.Context, t Table, rec Record, mode InsertMode) (string, bool, error)
	Update(ctx context.Context, t Table, id string, fields Fields) error
	TransitionStatus(ctx context.Context, t Table, id string, state any) error

	// ListActive and ListDeleted return records newest first.
	ListActive(ctx context.Context, t Table) ([]Record, error)
	ListDeleted(ctx context.Context, t Table) ([]Record, error)
}
