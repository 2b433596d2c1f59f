package families

import (
	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/record"
)

func init() {
	registerAnnouncements()
}

func registerAnnouncements() {
	core.Register(core.Definition{
		Key:   Announcements,
		Label: "公告",
		Table: record.Table{Name: "announcements", Lifecycle: statusLifecycle},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "ID"},
			{Key: "title", Column: "title", Label: "標題", Template: "標題（必填）", Required: true},
			{Key: "content", Column: "content", Label: "內容", Template: "內容（必填）", Required: true},
			{Key: "category", Column: "category", Label: "分類"},
			{Key: "is_pinned", Column: "is_pinned", Label: "置頂", Type: core.FieldBool},
			{
				Key:         "external_links",
				Column:      "external_links",
				Label:       "相關連結",
				Type:        core.FieldJSON,
				SummaryKeys: [2]string{"name", "url"},
			},
			{Key: "contact_phone", Column: "contact_phone", Label: "聯絡電話"},
			{Key: "sort_order", Column: "sort_order", Label: "排序", Type: core.FieldInteger},
			{Key: "status", Column: "status", Label: "狀態", Default: "active"},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
			{Key: "updated_at", Column: "updated_at", Label: "更新時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		// Titles match exactly and in any status.
		NaturalKeys:      [][]string{{"title"}},
		UpdateInPlace:    true,
		Trash:            true,
		TrashSkipDeleted: true,
	})
}
