// Package core is the CSV reconciliation engine behind the relief data tools.
//
// It has no knowledge of HTTP or the database driver. Records are read and
// written through [record.Store], so the same code runs against PostgreSQL,
// the in-memory store used by tests, or anything else implementing that
// contract.
//
// # Families
//
// Each resource family (grids, disaster areas, volunteer registrations, supply
// donations, users, the blacklist and announcements) is a [Definition]
// registered at init time with [Register]. A definition lists its fields in
// export order, the natural keys used to recognise an existing record, an
// optional related family, and the lifecycle that marks a record as deleted:
//
//	core.Register(core.Definition{
//	    Key:   "disaster_areas",
//	    Label: "災區",
//	    Table: record.Table{Name: "disaster_areas", Lifecycle: statusLifecycle},
//	    Fields: []core.FieldSpec{
//	        {Key: "name", Column: "name", Label: "災區名稱", Template: "災區名稱（必填）", Required: true},
//	    },
//	    NaturalKeys: [][]string{{"name"}},
//	    Trash:       true,
//	})
//
// # Import
//
// [Engine.Import] decodes the payload once, then walks the rows in order:
// validate, resolve the related entity, look up the natural key, decide what
// to do with a match ([Decide]), write. A failing row adds "row N: message"
// to [Result.Errors] and the batch moves on. Only an unknown family, a trash
// request for a family without a trash variant, an unparsable payload, or a
// cancelled context fail the whole batch.
//
// Trash imports use the same rows to move active records into the deleted
// state instead of inserting duplicates.
//
// # Export
//
// [Exporter.Export] writes a BOM-prefixed CSV of the active or deleted side of
// a family, newest first, with timestamps in the configured zone, booleans as
// 是/否 and JSON lists flattened into the same summary the importer accepts.
//
// # Service
//
// [Service] is what the HTTP and CLI surfaces call. It consults the
// [Authorizer] before any work, caps concurrent imports with an
// [ImportLimiter], enforces the payload size limit and reports each completed
// batch to an [AuditSink].
//
// # Error Handling
//
// Top-level failures are sentinel errors ([ErrUnknownFamily],
// [ErrTrashUnsupported], [ErrForbidden], [ErrMalformedCSV], [ErrTooManyImports])
// wrapped with context. [MapError] turns any error into a user message with a
// support code:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL006: Validation errors (numbers, required fields, enums)
//   - FILE001-FILE005: File errors (size, quoting, encoding)
//   - IMP001-IMP003: Import errors (busy, cancelled, timed out)
//   - FAM001-FAM002: Family errors (unknown family, no trash variant)
//   - AUTH001-AUTH002: Authorization errors
package core
