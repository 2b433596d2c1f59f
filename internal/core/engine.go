package core

// engine.go runs the reconciliation loop for one import batch.
//
// Rows are processed sequentially so later rows observe earlier rows' writes
// (an area created for row 3 is found by row 9). Per row the steps are
// validate, resolve the related entity, look up the natural key, decide, and
// write. Any failure becomes a row error and the loop continues. The only
// batch-level failures are an unknown family, an unsupported trash variant,
// a payload that does not parse, and cancellation of ctx.

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/relief/internal/logging"
	"github.com/JonMunkholm/relief/internal/record"
)

// DefaultAreaProximity is the coordinate tolerance, in degrees, for area
// matches in trash imports.
const DefaultAreaProximity = 0.01

// Engine reconciles CSV batches against a record store.
type Engine struct {
	store     record.Store
	newID     func() string
	now       func() time.Time
	proximity float64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

// WithClock replaces time.Now for updated_at stamps.
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) { e.now = fn }
}

// WithAreaProximity sets the trash-import coordinate tolerance.
func WithAreaProximity(degrees float64) EngineOption {
	return func(e *Engine) { e.proximity = degrees }
}

// NewEngine creates an engine over store.
func NewEngine(store record.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		newID:     func() string { return uuid.NewString() },
		now:       time.Now,
		proximity: DefaultAreaProximity,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ImportReader normalizes r and imports it. See Import.
func (e *Engine) ImportReader(ctx context.Context, family string, r io.Reader, opts ImportOptions) (Result, error) {
	text, err := ReadText(r, 0)
	if err != nil {
		return Result{}, err
	}
	return e.Import(ctx, family, text, opts)
}

// Import reconciles BOM-free or BOM-prefixed CSV text into the family's table.
//
// When ctx is cancelled mid-batch, the partial result is returned together
// with the context error; rows already written stay written.
func (e *Engine) Import(ctx context.Context, family string, text string, opts ImportOptions) (Result, error) {
	def, err := Lookup(family)
	if err != nil {
		return Result{}, err
	}
	if opts.Trash && !def.Trash {
		return Result{}, ErrTrashUnsupported
	}

	doc, err := DecodeCSV(StripBOM(text))
	if err != nil {
		return Result{}, err
	}

	rec := e.reconcilerFor(def, doc)
	logger := logging.WithFields(ctx,
		"family", def.Key,
		"trash", opts.Trash,
		"skip_duplicates", opts.SkipDuplicates,
	)

	start := time.Now()
	res := Result{}

	for _, row := range doc.Rows {
		if err := ctx.Err(); err != nil {
			logger.Warn("import cancelled", "line", row.Line, "imported", res.Imported, "skipped", res.Skipped)
			return res, err
		}

		outcome, err := processRow(ctx, rec, row, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return res, ctxErr
			}
			res.addError(row.Line, err.Error())
			logger.Debug("row rejected", "line", row.Line, "error", err)
			continue
		}

		switch outcome {
		case OutcomeImported, OutcomeUpdated:
			res.Imported++
		case OutcomeSkipped:
			res.Skipped++
		}
	}

	logger.Info("import completed",
		"rows", len(doc.Rows),
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) reconcilerFor(def Definition, doc *Document) Reconciler {
	b := Batch{
		Def:    def,
		Fields: NewFieldResolver(def, doc),
		Resolver: &Resolver{
			store:     e.store,
			newID:     e.newID,
			now:       e.now,
			proximity: e.proximity,
		},
	}
	if def.NewReconciler != nil {
		return def.NewReconciler(b)
	}
	return NewDefinitionReconciler(b)
}

// processRow walks one row through the reconciliation states.
func processRow(ctx context.Context, rec Reconciler, row Row, opts ImportOptions) (Outcome, error) {
	v, err := rec.Validate(row)
	if err != nil {
		return 0, err
	}
	if err := rec.ResolveRelated(ctx, v); err != nil {
		return 0, err
	}
	m, err := rec.FindDuplicate(ctx, v, opts)
	if err != nil {
		return 0, err
	}
	return rec.ApplyWrite(ctx, v, m, opts)
}
