package core

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/relief/internal/record"
)

// Exporter serializes a family's records to BOM-prefixed CSV. Exports never
// write to the store.
type Exporter struct {
	store record.Store
	loc   *time.Location
	now   func() time.Time
}

// NewExporter creates an exporter that renders timestamps in loc.
func NewExporter(store record.Store, loc *time.Location) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{store: store, loc: loc, now: time.Now}
}

// Export returns the family's active records, or its deleted records when
// trash is set, newest first.
func (x *Exporter) Export(ctx context.Context, family string, trash bool) (ExportResult, error) {
	def, err := Lookup(family)
	if err != nil {
		return ExportResult{}, err
	}
	if trash && !def.Trash {
		return ExportResult{}, ErrTrashUnsupported
	}

	var recs []record.Record
	if trash || def.Flagged {
		recs, err = x.store.ListDeleted(ctx, def.Table)
	} else {
		recs, err = x.store.ListActive(ctx, def.Table)
	}
	if err != nil {
		return ExportResult{}, fmt.Errorf("list %s: %w", def.Key, err)
	}

	related, err := x.relatedNames(ctx, def, recs)
	if err != nil {
		return ExportResult{}, err
	}

	rows := make([][]string, len(recs))
	for i, rec := range recs {
		row := make([]string, len(def.Fields))
		for j, f := range def.Fields {
			row[j] = x.cell(def, f, rec, related)
		}
		rows[i] = row
	}

	text, err := EncodeCSV(def.ExportHeaders(), rows)
	if err != nil {
		return ExportResult{}, err
	}

	return ExportResult{
		Family:   def.Key,
		Trash:    trash,
		Rows:     len(rows),
		Data:     []byte(AddBOM(text)),
		Exported: x.now().In(x.loc),
	}, nil
}

// Filename names the download: family, an optional _trash marker and the
// export time, e.g. grids_trash_20240501_080000.csv.
func (r ExportResult) Filename() string {
	name := r.Family
	if r.Trash {
		name += "_trash"
	}
	return fmt.Sprintf("%s_%s.csv", name, r.Exported.Format("20060102_150405"))
}

// relatedNames projects related ids back to their natural keys.
func (x *Exporter) relatedNames(ctx context.Context, def Definition, recs []record.Record) (map[string]string, error) {
	rel := def.Related
	if rel == nil {
		return nil, nil
	}
	relDef, err := Lookup(rel.Family)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	for _, rec := range recs {
		id := rec.String(rel.Column)
		if id == "" {
			continue
		}
		if _, done := names[id]; done {
			continue
		}
		target, err := x.store.FindByID(ctx, relDef.Table, id)
		if err != nil {
			return nil, fmt.Errorf("look up %s %s: %w", relDef.Label, id, err)
		}
		if target != nil {
			names[id] = target.String(rel.MatchColumn)
		} else {
			names[id] = ""
		}
	}
	return names, nil
}

// cell formats one field of rec for export.
func (x *Exporter) cell(def Definition, f FieldSpec, rec record.Record, related map[string]string) string {
	if def.Related != nil && f.Key == def.Related.Field {
		return related[rec.String(def.Related.Column)]
	}

	switch f.Column {
	case "":
		return ""
	case "id":
		return rec.ID
	case "created_at":
		return FormatTimestamp(rec.CreatedAt, x.loc)
	}

	v, ok := rec.Fields[f.Column]
	if !ok || v == nil {
		if f.Type == FieldBool {
			return FormatBool(false)
		}
		return ""
	}

	switch f.Type {
	case FieldTimestamp:
		return FormatTimestamp(v, x.loc)
	case FieldBool:
		b, ok := v.(bool)
		if !ok {
			return ""
		}
		return FormatBool(b)
	case FieldJSON:
		return SummarizeJSON(v, f)
	default:
		return rec.String(f.Column)
	}
}

// Template returns a BOM-prefixed CSV holding only the family's template headers.
func Template(family string) ([]byte, error) {
	def, err := Lookup(family)
	if err != nil {
		return nil, err
	}
	text, err := EncodeCSV(def.TemplateHeaders(), nil)
	if err != nil {
		return nil, err
	}
	return []byte(AddBOM(text)), nil
}
