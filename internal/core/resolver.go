package core

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/JonMunkholm/relief/internal/record"
)

// Match is the outcome of a natural-key lookup.
type Match struct {
	Record  *record.Record // nil when nothing matched
	ByID    bool           // matched through an explicit id
	Deleted bool           // matched record is in the deleted lifecycle state
}

// Found reports whether a record matched.
func (m Match) Found() bool {
	return m.Record != nil
}

// Resolver performs natural-key and related-entity lookups and the writes
// that follow a reconciliation decision.
type Resolver struct {
	store     record.Store
	newID     func() string
	now       func() time.Time
	proximity float64
}

// ResolveRelated resolves the family's related entity, storing its id in
// v.Fields. An active match is preferred over a deleted one. MustExist
// relations accept a deleted match and fail with ErrRelatedNotFound when there
// is none; FindOrCreate relations insert a new active entity unless an active
// one exists.
func (r *Resolver) ResolveRelated(ctx context.Context, def Definition, v *Values) error {
	rel := def.Related
	if rel == nil {
		return nil
	}
	name := v.Lookup(rel.Field)
	if name == "" {
		return nil
	}

	relDef, err := Lookup(rel.Family)
	if err != nil {
		return err
	}

	cands, err := r.store.FindCandidates(ctx, relDef.Table, record.Key{{Column: rel.MatchColumn, Value: name}})
	if err != nil {
		return fmt.Errorf("look up %s %q: %w", relDef.Label, name, err)
	}
	for _, c := range cands {
		if !relDef.Table.Lifecycle.IsDeleted(c) {
			v.Fields[rel.Column] = c.ID
			return nil
		}
	}

	if rel.Policy == MustExist {
		if len(cands) > 0 {
			v.Fields[rel.Column] = cands[0].ID
			return nil
		}
		return fmt.Errorf("%w: %s %q", ErrRelatedNotFound, relDef.Label, name)
	}

	fields := record.Fields{rel.MatchColumn: name}
	if rel.Seed != nil {
		fields = rel.Seed(name, v)
	}
	applyDefaults(relDef, fields)
	r.touch(relDef.Table, fields)

	id, _, err := r.store.Insert(ctx, relDef.Table, record.Record{ID: r.newID(), Fields: fields}, record.InsertPlain)
	if err != nil {
		return fmt.Errorf("create %s %q: %w", relDef.Label, name, err)
	}
	v.Fields[rel.Column] = id
	return nil
}

// NaturalKey returns the first key set in def.NaturalKeys whose values are all
// present in v.
func (r *Resolver) NaturalKey(def Definition, v *Values) (record.Key, bool) {
	for _, cols := range def.NaturalKeys {
		key := make(record.Key, 0, len(cols))
		for _, col := range cols {
			var val any
			if col == "id" {
				if v.ID != "" {
					val = v.ID
				}
			} else {
				val = v.Fields[col]
			}
			if val == nil || val == "" {
				key = nil
				break
			}
			key = append(key, record.KeyPart{Column: col, Value: val})
		}
		if key != nil {
			return key, true
		}
	}
	return nil, false
}

// FindMatch looks up the canonical existing record for v, in any lifecycle
// state. Explicit-id families try the id first. In trash imports, families
// with TrashProximity only accept name matches whose coordinates are close.
func (r *Resolver) FindMatch(ctx context.Context, def Definition, v *Values, trash bool) (Match, error) {
	if def.ExplicitID && v.ID != "" {
		rec, err := r.store.FindByID(ctx, def.Table, v.ID)
		if err != nil {
			return Match{}, fmt.Errorf("look up id %s: %w", v.ID, err)
		}
		if rec != nil {
			return r.match(def, rec, true), nil
		}
	}

	key, ok := r.NaturalKey(def, v)
	if !ok {
		return Match{}, nil
	}

	if trash && def.TrashProximity {
		cands, err := r.store.FindCandidates(ctx, def.Table, key)
		if err != nil {
			return Match{}, fmt.Errorf("look up %s: %w", key, err)
		}
		for i := range cands {
			if r.near(&cands[i], v) {
				return r.match(def, &cands[i], false), nil
			}
		}
		return Match{}, nil
	}

	rec, err := r.store.FindByNaturalKey(ctx, def.Table, key)
	if err != nil {
		return Match{}, fmt.Errorf("look up %s: %w", key, err)
	}
	if rec == nil {
		return Match{}, nil
	}
	return r.match(def, rec, false), nil
}

func (r *Resolver) match(def Definition, rec *record.Record, byID bool) Match {
	return Match{Record: rec, ByID: byID, Deleted: def.Table.Lifecycle.IsDeleted(*rec)}
}

// near reports whether both coordinate pairs are within the proximity
// tolerance. A side without coordinates always counts as near.
func (r *Resolver) near(rec *record.Record, v *Values) bool {
	lat1, ok1 := rec.Float("center_lat")
	lng1, ok2 := rec.Float("center_lng")
	lat2, ok3 := v.Float("center_lat")
	lng2, ok4 := v.Float("center_lng")
	if !(ok1 && ok2) || !(ok3 && ok4) {
		return true
	}
	return math.Abs(lat1-lat2) <= r.proximity && math.Abs(lng1-lng2) <= r.proximity
}

// Insert writes v as a new record. Defaults are applied, deleted puts the
// record in the lifecycle's deleted state, and reuseID keeps the row's
// explicit id when present.
func (r *Resolver) Insert(ctx context.Context, def Definition, v *Values, deleted, reuseID bool, mode record.InsertMode) (bool, error) {
	fields := v.Fields.Clone()
	applyDefaults(def, fields)
	if deleted {
		fields[def.Table.Lifecycle.Column] = def.Table.Lifecycle.Deleted
	}
	r.touch(def.Table, fields)

	id := r.newID()
	if reuseID && v.ID != "" {
		id = v.ID
	}

	_, written, err := r.store.Insert(ctx, def.Table, record.Record{ID: id, Fields: fields}, mode)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	return written, nil
}

// Update writes v's fields onto an existing record. keepState leaves the
// lifecycle column untouched.
func (r *Resolver) Update(ctx context.Context, def Definition, id string, v *Values, keepState bool) error {
	fields := v.Fields.Clone()
	if keepState && def.Table.Lifecycle.Column != "" {
		delete(fields, def.Table.Lifecycle.Column)
	}
	r.touch(def.Table, fields)
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.Update(ctx, def.Table, id, fields); err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return nil
}

// Transition moves an existing record to the lifecycle's deleted state.
func (r *Resolver) Transition(ctx context.Context, def Definition, id string) error {
	if err := r.store.TransitionStatus(ctx, def.Table, id, def.Table.Lifecycle.Deleted); err != nil {
		return fmt.Errorf("transition: %w", err)
	}
	return nil
}

// touch stamps updated_at on tables that carry it.
func (r *Resolver) touch(t record.Table, fields record.Fields) {
	if t.HasColumn("updated_at") {
		fields["updated_at"] = r.now()
	}
}
