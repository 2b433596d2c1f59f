package postgres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/relief/internal/record"
)

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// selectList returns the column list of a record select: id and created_at
// first, then the table's declared columns.
func selectList(t record.Table) string {
	cols := make([]string, 0, 2+len(t.Columns))
	cols = append(cols, quoteIdentifier("id"), quoteIdentifier("created_at"))
	for _, c := range t.Columns {
		cols = append(cols, quoteIdentifier(c))
	}
	return strings.Join(cols, ", ")
}

// buildFindQuery builds a natural-key lookup in primary key order. With first
// set only the canonical match is returned.
func buildFindQuery(t record.Table, key record.Key, first bool) (string, []any) {
	conditions := make([]string, len(key))
	args := make([]any, len(key))
	for i, part := range key {
		conditions[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(part.Column), i+1)
		args[i] = part.Value
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		selectList(t),
		quoteIdentifier(t.Name),
		strings.Join(conditions, " AND "),
		quoteIdentifier("id"),
	)
	if first {
		query += " LIMIT 1"
	}
	return query, args
}

// writableColumns returns the declared columns present in fields, sorted so
// generated SQL is stable.
func writableColumns(t record.Table, fields record.Fields) []string {
	var cols []string
	for _, c := range t.Columns {
		if _, ok := fields[c]; ok {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

// buildInsertQuery builds the insert for rec. A zero CreatedAt leaves the
// column to its database default.
func buildInsertQuery(t record.Table, rec record.Record, mode record.InsertMode) (string, []any) {
	cols := []string{quoteIdentifier("id")}
	args := []any{rec.ID}

	if !rec.CreatedAt.IsZero() {
		cols = append(cols, quoteIdentifier("created_at"))
		args = append(args, rec.CreatedAt)
	}
	for _, c := range writableColumns(t, rec.Fields) {
		cols = append(cols, quoteIdentifier(c))
		args = append(args, rec.Fields[c])
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(t.Name),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	)
	if mode == record.InsertOrIgnore {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteIdentifier("id"))
	}
	return query, args
}

// buildUpdateQuery builds an update of the declared columns in fields. It
// reports false when there is nothing to write.
func buildUpdateQuery(t record.Table, id string, fields record.Fields) (string, []any, bool) {
	cols := writableColumns(t, fields)
	if len(cols) == 0 {
		return "", nil, false
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	args = append(args, id)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", quoteIdentifier(c), i+2)
		args = append(args, fields[c])
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1",
		quoteIdentifier(t.Name),
		strings.Join(sets, ", "),
		quoteIdentifier("id"),
	)
	return query, args, true
}

// buildListQuery lists one side of the table's lifecycle, newest first.
// Tables without a lifecycle list every row as active.
func buildListQuery(t record.Table, deleted bool) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM %s", selectList(t), quoteIdentifier(t.Name))

	var args []any
	if lc := t.Lifecycle; lc.Kind != record.LifecycleNone {
		op := "IS DISTINCT FROM"
		if deleted {
			op = "="
		}
		query += fmt.Sprintf(" WHERE %s %s $1", quoteIdentifier(lc.Column), op)
		args = append(args, lc.Deleted)
	}

	query += fmt.Sprintf(" ORDER BY %s DESC, %s DESC", quoteIdentifier("created_at"), quoteIdentifier("id"))
	return query, args
}
