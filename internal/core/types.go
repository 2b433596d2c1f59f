package core

import (
	"time"

	"github.com/JonMunkholm/relief/internal/record"
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldNumeric
	FieldInteger
	FieldBool
	FieldJSON
	FieldTimestamp
)

// FieldSpec defines how one logical field maps between CSV headers and a
// persisted column.
type FieldSpec struct {
	Key        string    // Logical field key, unique within a family
	Column     string    // Persisted column; empty for lookup-only fields
	Label      string    // Plain header used by exports
	Template   string    // Hint-bearing header used by templates; defaults to Label
	Aliases    []string  // Extra accepted headers, tried after Template and Label
	Type       FieldType // Expected data type
	Required   bool      // Row is rejected when the value is missing or invalid
	EnumValues []string  // Valid values for FieldEnum, compared case-insensitively
	Default    any       // Applied on insert when the cell is empty
	ExportOnly bool      // Written by exports, never read on import

	// SummaryKeys names the object keys joined as "first:second" when a JSON
	// list of objects is flattened for export.
	SummaryKeys [2]string

	Normalizer func(string) string // Optional transformation before parsing
}

// Headers returns the candidate headers in lookup priority order.
func (f FieldSpec) Headers() []string {
	out := make([]string, 0, 2+len(f.Aliases))
	seen := make(map[string]bool, cap(out))
	for _, h := range append([]string{f.TemplateHeader(), f.Label}, f.Aliases...) {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

// TemplateHeader returns the template header, falling back to the export label.
func (f FieldSpec) TemplateHeader() string {
	if f.Template != "" {
		return f.Template
	}
	return f.Label
}

// RelatedPolicy controls what happens when a related entity is missing.
type RelatedPolicy int

const (
	// MustExist turns a missing related entity into a row error.
	MustExist RelatedPolicy = iota
	// FindOrCreate inserts the related entity when it is missing.
	FindOrCreate
)

// Relation describes a single cross-family reference resolved by natural key.
type Relation struct {
	Field       string        // Lookup-only field carrying the related natural key
	Column      string        // Column that stores the related record id
	Family      string        // Related family key
	MatchColumn string        // Natural key column on the related table
	Policy      RelatedPolicy // MustExist or FindOrCreate

	// Seed builds the fields of a created record under FindOrCreate. It receives
	// the referring row's resolved values.
	Seed func(name string, v *Values) record.Fields
}

// Definition contains everything needed to reconcile one resource family.
type Definition struct {
	Key   string // Family key used in routes: "grids"
	Label string // Display name

	Table  record.Table
	Fields []FieldSpec

	// NaturalKeys lists column sets tried in order; the first set whose values
	// are all present is used for matching.
	NaturalKeys [][]string

	Related *Relation

	// ExplicitID makes the row's id column a match key and reuses it on insert.
	ExplicitID bool

	// UpdateInPlace updates a match even when skipDuplicates is requested.
	// With ExplicitID set, only an id match qualifies.
	UpdateInPlace bool

	// Trash enables the trash export/import variants.
	Trash bool

	// TrashSkipDeleted always skips a trash import row whose match is already deleted.
	TrashSkipDeleted bool

	// TrashProximity requires coordinate proximity for name matches in trash imports.
	TrashProximity bool

	// Flagged makes the normal view list the lifecycle's deleted side
	// (blacklisted users).
	Flagged bool

	// Check runs after field validation for rules spanning several fields.
	Check func(v *Values) error

	// NewReconciler overrides the data-driven reconciler.
	NewReconciler func(b Batch) Reconciler
}

// Field returns the FieldSpec of a logical field key.
func (d Definition) Field(key string) (FieldSpec, bool) {
	for _, f := range d.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ImportFields returns the fields read on import, in template order.
func (d Definition) ImportFields() []FieldSpec {
	out := make([]FieldSpec, 0, len(d.Fields))
	for _, f := range d.Fields {
		if !f.ExportOnly {
			out = append(out, f)
		}
	}
	return out
}

// TemplateHeaders returns the header line of a blank import template.
func (d Definition) TemplateHeaders() []string {
	fields := d.ImportFields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.TemplateHeader()
	}
	return out
}

// ExportHeaders returns the header line of an export.
func (d Definition) ExportHeaders() []string {
	out := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		out[i] = f.Label
	}
	return out
}

// Actor identifies the caller of an operation.
type Actor struct {
	ID   string
	Role string
}

// Operation is the kind of batch operation being authorized or audited.
type Operation string

const (
	OpImport   Operation = "import"
	OpExport   Operation = "export"
	OpTemplate Operation = "template"
)

// ImportOptions controls one import batch.
type ImportOptions struct {
	SkipDuplicates bool
	Trash          bool
}

// Result is the outcome of an import batch.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// addError appends a row error prefixed with the CSV line number.
func (r *Result) addError(line int, msg string) {
	r.Errors = append(r.Errors, rowError(line, msg))
}

// ExportResult is a serialized export plus its row count.
type ExportResult struct {
	Family   string
	Trash    bool
	Rows     int
	Data     []byte
	Exported time.Time
}

// FamilyInfo describes a registered family for listings.
type FamilyInfo struct {
	Key      string   `json:"key"`
	Label    string   `json:"label"`
	Trash    bool     `json:"trash"`
	Template []string `json:"template"`
}
