package core

import (
	"testing"

	"github.com/JonMunkholm/relief/internal/record"
)

var siteLifecycle = record.Lifecycle{Kind: record.LifecycleStatus, Column: "status", Deleted: "deleted"}

// siteDefinition is a small family exercising every field type.
func siteDefinition() Definition {
	return Definition{
		Key:   "test_sites",
		Label: "站點",
		Table: record.Table{Name: "test_sites", Lifecycle: siteLifecycle},
		Fields: []FieldSpec{
			{Key: "id", Column: "id", Label: "ID"},
			{Key: "code", Column: "code", Label: "代碼", Template: "代碼（必填）", Aliases: []string{"code"}, Required: true},
			{Key: "region", Label: "區域"},
			{Key: "lat", Column: "lat", Label: "緯度", Template: "緯度（必填）", Type: FieldNumeric, Required: true},
			{Key: "weight", Column: "weight", Label: "重量", Type: FieldNumeric},
			{Key: "count", Column: "count", Label: "人數", Type: FieldInteger},
			{Key: "pinned", Column: "pinned", Label: "置頂", Type: FieldBool},
			{Key: "status", Column: "status", Label: "狀態", Type: FieldEnum, EnumValues: []string{"open", "closed", "deleted"}, Default: "open"},
			{Key: "tags", Column: "tags", Label: "標籤", Type: FieldJSON},
			{Key: "created_at", Column: "created_at", Label: "建立時間", ExportOnly: true},
		},
		NaturalKeys: [][]string{{"code"}},
		Trash:       true,
	}
}

// registerForTest registers defs and clears the registry when the test ends.
func registerForTest(t testing.TB, defs ...Definition) {
	t.Helper()
	Clear()
	for _, def := range defs {
		Register(def)
	}
	t.Cleanup(Clear)
}

// mustDecode decodes text or fails the test.
func mustDecode(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := DecodeCSV(text)
	if err != nil {
		t.Fatalf("DecodeCSV() error = %v", err)
	}
	return doc
}
