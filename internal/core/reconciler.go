package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/relief/internal/record"
)

// Outcome is the terminal state of a row that did not fail.
type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
)

// Reconciler implements the per-row steps for one family. The engine selects
// one per batch.
type Reconciler interface {
	Validate(row Row) (*Values, error)
	ResolveRelated(ctx context.Context, v *Values) error
	FindDuplicate(ctx context.Context, v *Values, opts ImportOptions) (Match, error)
	ApplyWrite(ctx context.Context, v *Values, m Match, opts ImportOptions) (Outcome, error)
}

// Batch is what a reconciler is built from.
type Batch struct {
	Def      Definition
	Fields   *FieldResolver
	Resolver *Resolver
}

// NewDefinitionReconciler returns the data-driven reconciler used by every
// family that does not supply its own.
func NewDefinitionReconciler(b Batch) Reconciler {
	return &definitionReconciler{Batch: b}
}

type definitionReconciler struct {
	Batch
}

func (d *definitionReconciler) Validate(row Row) (*Values, error) {
	v, err := d.Fields.Resolve(row)
	if err != nil {
		return nil, err
	}
	if d.Def.Check != nil {
		if err := d.Def.Check(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (d *definitionReconciler) ResolveRelated(ctx context.Context, v *Values) error {
	return d.Resolver.ResolveRelated(ctx, d.Def, v)
}

func (d *definitionReconciler) FindDuplicate(ctx context.Context, v *Values, opts ImportOptions) (Match, error) {
	return d.Resolver.FindMatch(ctx, d.Def, v, opts.Trash)
}

func (d *definitionReconciler) ApplyWrite(ctx context.Context, v *Values, m Match, opts ImportOptions) (Outcome, error) {
	dec := Decide(d.Def, m, opts)

	switch dec.Action {
	case ActionSkip:
		return OutcomeSkipped, nil

	case ActionTransition:
		if err := d.Resolver.Transition(ctx, d.Def, m.Record.ID); err != nil {
			return 0, err
		}
		return OutcomeUpdated, nil

	case ActionUpdate:
		if err := d.Resolver.Update(ctx, d.Def, m.Record.ID, v, dec.KeepState); err != nil {
			return 0, err
		}
		return OutcomeUpdated, nil

	case ActionInsert:
		mode := record.InsertPlain
		if dec.Deleted {
			mode = record.InsertOrIgnore
		}
		written, err := d.Resolver.Insert(ctx, d.Def, v, dec.Deleted, dec.ReuseID, mode)
		if err != nil {
			return 0, err
		}
		if !written {
			return OutcomeSkipped, nil
		}
		return OutcomeImported, nil

	default:
		return 0, fmt.Errorf("unhandled action %s", dec.Action)
	}
}
