package core

// convert.go provides conversion between CSV cell text and stored values.
//
// These functions handle the messy reality of spreadsheet-edited data:
//   - Thousands separators and accounting negatives in numbers
//   - Localized boolean tokens (是/否) alongside yes/no, true/false, 1/0
//   - Excel formula prefixes (="value")
//   - JSON fields that come back either as JSON text or as the flattened
//     summary an export produced
//
// Parse functions report ok=false for empty or invalid input.

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ExportTimeLayout is the timestamp layout used by exports.
const ExportTimeLayout = "2006-01-02 15:04:05"

// Localized boolean tokens written by exports.
const (
	BoolTrue  = "是"
	BoolFalse = "否"
)

// summarySeparator joins flattened JSON list items.
const summarySeparator = ";"

// ParseNumber converts a string to float64.
// Handles thousands separators and accounting format (parentheses for negative).
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInteger converts a string to int64. Values with a fractional part are rejected.
func ParseInteger(s string) (int64, bool) {
	f, ok := ParseNumber(s)
	// float64(math.MaxInt64) rounds up to 2^63, so compare against 2^63 directly.
	if !ok || f != math.Trunc(f) || f >= 1<<63 || f < -(1<<63) {
		return 0, false
	}
	return int64(f), true
}

// ParseBool converts a string to bool.
// Accepts 是/否, true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case BoolTrue, "true", "t", "yes", "y", "1":
		return true, true
	case BoolFalse, "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

// FormatBool renders a boolean as its localized token.
func FormatBool(b bool) string {
	if b {
		return BoolTrue
	}
	return BoolFalse
}

// ParseJSONField converts a JSON-bearing cell into a stored JSON value.
//
// Cells that look like JSON and parse are kept verbatim. Cells that look like
// JSON but do not parse are kept as an opaque JSON string. Anything else is
// read as an export summary: items separated by ";" where each item is
// "first:second" or "first" for lists of objects, or a plain string for
// lists of strings.
func ParseJSONField(raw string, spec FieldSpec) json.RawMessage {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if looksLikeJSON(raw) {
		if json.Valid([]byte(raw)) {
			return json.RawMessage(raw)
		}
		return mustMarshal(raw)
	}

	var items []any
	for _, part := range strings.Split(raw, summarySeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		items = append(items, summaryItem(part, spec.SummaryKeys))
	}
	if items == nil {
		items = []any{}
	}
	return mustMarshal(items)
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

func summaryItem(part string, keys [2]string) any {
	if keys[0] == "" {
		return part
	}

	name, second, hasSecond := strings.Cut(part, ":")
	obj := map[string]any{keys[0]: strings.TrimSpace(name)}
	if hasSecond && keys[1] != "" {
		second = strings.TrimSpace(second)
		if n, ok := ParseNumber(second); ok {
			obj[keys[1]] = n
		} else {
			obj[keys[1]] = second
		}
	}
	return obj
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// SummarizeJSON flattens a stored JSON value for export. Arrays become a
// ";"-joined summary, a JSON string becomes its text, other JSON is returned
// as raw text and null becomes empty.
func SummarizeJSON(v any, spec FieldSpec) string {
	data, ok := jsonBytes(v)
	if !ok || len(data) == 0 {
		return ""
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data)
	}

	switch t := decoded.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := summarizeItem(item, spec.SummaryKeys); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, summarySeparator)
	default:
		return string(data)
	}
}

func summarizeItem(item any, keys [2]string) string {
	switch t := item.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		nameKey := keys[0]
		if nameKey == "" {
			nameKey = "name"
		}
		name := scalarText(t[nameKey])
		if name == "" {
			return string(mustMarshal(t))
		}
		if keys[1] != "" {
			if second := scalarText(t[keys[1]]); second != "" {
				return name + ":" + second
			}
		}
		return name
	default:
		return string(mustMarshal(t))
	}
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return string(mustMarshal(t))
	}
}

// jsonBytes returns the JSON encoding of a stored value.
func jsonBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case json.RawMessage:
		return t, true
	case []byte:
		return t, true
	case string:
		if t == "" {
			return nil, false
		}
		if json.Valid([]byte(t)) {
			return []byte(t), true
		}
		return mustMarshal(t), true
	default:
		b, err := json.Marshal(t)
		return b, err == nil
	}
}

// FormatTimestamp renders a stored timestamp in loc using ExportTimeLayout.
// Absent or unparsable values render as empty.
func FormatTimestamp(v any, loc *time.Location) string {
	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case *time.Time:
		if x == nil {
			return ""
		}
		t = *x
	case string:
		parsed, ok := parseTimestamp(x)
		if !ok {
			return ""
		}
		t = parsed
	default:
		return ""
	}
	if t.IsZero() {
		return ""
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ExportTimeLayout)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	ExportTimeLayout,
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return strings.TrimSpace(s)
}
