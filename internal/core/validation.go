package core

// validation.go resolves decoded CSV rows into typed field values.
//
// Each field carries an ordered list of candidate headers (template header,
// export label, aliases). The lookup table is built once per batch from the
// document header, so per-row work is an index walk. The first non-empty
// candidate wins.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/relief/internal/record"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field label
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects every problem found in one row.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	parts := make([]string, len(e))
	for i, ve := range e {
		parts[i] = ve.Error()
	}
	return strings.Join(parts, "; ")
}

// Values holds the resolved fields of one row.
type Values struct {
	Line    int
	ID      string            // Explicit id from the row, if any
	Fields  record.Fields     // Persisted column values; empty cells are absent
	Lookups map[string]string // Lookup-only fields by key
}

// Lookup returns a lookup-only field value.
func (v *Values) Lookup(key string) string {
	return v.Lookups[key]
}

// Float returns a numeric column value.
func (v *Values) Float(col string) (float64, bool) {
	return record.Record{Fields: v.Fields}.Float(col)
}

// String returns a column value formatted as text.
func (v *Values) String(col string) string {
	return record.Record{Fields: v.Fields}.String(col)
}

// FieldResolver maps rows of one document to Values for one family.
type FieldResolver struct {
	fields     []FieldSpec
	candidates [][]int // header positions per field, in priority order
}

// NewFieldResolver builds the header lookup table for doc.
func NewFieldResolver(def Definition, doc *Document) *FieldResolver {
	fields := def.ImportFields()
	fr := &FieldResolver{
		fields:     fields,
		candidates: make([][]int, len(fields)),
	}
	for i, f := range fields {
		for _, h := range f.Headers() {
			if pos, ok := doc.index[h]; ok {
				fr.candidates[i] = append(fr.candidates[i], pos)
			}
		}
	}
	return fr
}

// Resolve validates a row and converts its cells. All problems in the row are
// reported together.
func (fr *FieldResolver) Resolve(row Row) (*Values, error) {
	v := &Values{
		Line:    row.Line,
		Fields:  record.Fields{},
		Lookups: map[string]string{},
	}
	var errs ValidationErrors

	if len(row.Extra) > 0 {
		errs = append(errs, ValidationError{
			Message: fmt.Sprintf("unexpected values beyond the header: %s", strings.Join(row.Extra, ", ")),
		})
	}

	for i, spec := range fr.fields {
		if len(fr.candidates[i]) == 0 {
			if spec.Required {
				errs = append(errs, ValidationError{
					Field:   spec.Label,
					Message: fmt.Sprintf("missing required column %q", spec.TemplateHeader()),
				})
			}
			continue
		}

		raw := ""
		for _, pos := range fr.candidates[i] {
			if pos < len(row.Values) {
				if cell := CleanCell(row.Values[pos]); cell != "" {
					raw = cell
					break
				}
			}
		}

		if spec.Normalizer != nil && raw != "" {
			raw = spec.Normalizer(raw)
		}

		if raw == "" {
			if spec.Required {
				errs = append(errs, ValidationError{
					Field:   spec.Label,
					Message: "required field is empty",
				})
			}
			continue
		}

		val, err := convertCell(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{Field: spec.Label, Value: raw, Message: err.Error()})
			continue
		}

		switch {
		case spec.Column == "id":
			v.ID = raw
		case spec.Column == "":
			v.Lookups[spec.Key] = raw
		default:
			v.Fields[spec.Column] = val
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return v, nil
}

// convertCell converts a non-empty cell according to its field type.
func convertCell(raw string, spec FieldSpec) (any, error) {
	switch spec.Type {
	case FieldNumeric:
		f, ok := ParseNumber(raw)
		if !ok {
			if spec.Required {
				return nil, fmt.Errorf("invalid number %q", raw)
			}
			return float64(0), nil
		}
		return f, nil

	case FieldInteger:
		n, ok := ParseInteger(raw)
		if !ok {
			if spec.Required {
				return nil, fmt.Errorf("invalid number %q", raw)
			}
			return int64(0), nil
		}
		return n, nil

	case FieldBool:
		b, ok := ParseBool(raw)
		if !ok {
			return nil, fmt.Errorf("must be %s/%s, yes/no, true/false, or 1/0", BoolTrue, BoolFalse)
		}
		return b, nil

	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, raw) {
				return ev, nil
			}
		}
		return nil, fmt.Errorf("invalid enum value %q (allowed: %s)", raw, strings.Join(spec.EnumValues, ", "))

	case FieldJSON:
		return ParseJSONField(raw, spec), nil

	default:
		return raw, nil
	}
}

// applyDefaults fills empty fields that declare a default.
func applyDefaults(def Definition, fields record.Fields) {
	for _, f := range def.Fields {
		if f.Column == "" || f.Column == "id" || f.Default == nil {
			continue
		}
		if _, ok := fields[f.Column]; !ok {
			fields[f.Column] = f.Default
		}
	}
}
