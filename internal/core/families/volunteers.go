package families

import (
	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/record"
)

func init() {
	registerVolunteerRegistrations()
	registerSupplyDonations()
}

// gridRelation resolves a must-exist grid by code, in any status.
var gridRelation = core.Relation{
	Field:       "grid_code",
	Column:      "grid_id",
	Family:      Grids,
	MatchColumn: "code",
	Policy:      core.MustExist,
}

func registerVolunteerRegistrations() {
	rel := gridRelation

	core.Register(core.Definition{
		Key:   VolunteerRegistrations,
		Label: "志工報名",
		Table: record.Table{Name: "volunteer_registrations"},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "ID"},
			{Key: "grid_code", Label: "網格代碼", Template: "網格代碼（必填）", Required: true},
			{Key: "volunteer_name", Column: "volunteer_name", Label: "志工姓名", Template: "志工姓名（必填）", Required: true},
			{Key: "volunteer_phone", Column: "volunteer_phone", Label: "聯絡電話", Template: "聯絡電話（必填）", Required: true},
			{Key: "volunteer_email", Column: "volunteer_email", Label: "電子郵件"},
			{
				Key:        "status",
				Column:     "status",
				Label:      "報名狀態",
				Template:   "報名狀態（pending/confirmed/arrived/completed/cancelled）",
				Type:       core.FieldEnum,
				EnumValues: []string{"pending", "confirmed", "arrived", "completed", "cancelled"},
				Default:    "pending",
			},
			{Key: "available_time", Column: "available_time", Label: "可服務時間"},
			{Key: "skills", Column: "skills", Label: "專長", Type: core.FieldJSON},
			{Key: "equipment", Column: "equipment", Label: "攜帶裝備", Type: core.FieldJSON},
			{Key: "notes", Column: "notes", Label: "備註"},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		NaturalKeys: [][]string{{"volunteer_phone", "grid_id"}},
		Related:     &rel,
	})
}

func registerSupplyDonations() {
	rel := gridRelation

	core.Register(core.Definition{
		Key:   SupplyDonations,
		Label: "物資捐贈",
		Table: record.Table{Name: "supply_donations", Lifecycle: statusLifecycle},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "捐贈ID", Template: "捐贈ID（更新時填寫）", Aliases: []string{"ID"}},
			{Key: "grid_code", Label: "網格代碼", Template: "網格代碼（必填）", Required: true},
			{Key: "donor_name", Column: "donor_name", Label: "捐贈者姓名", Template: "捐贈者姓名（必填）", Required: true},
			{Key: "donor_phone", Column: "donor_phone", Label: "捐贈者電話", Template: "捐贈者電話（必填）", Required: true},
			{Key: "donor_email", Column: "donor_email", Label: "捐贈者電子郵件"},
			{Key: "name", Column: "name", Label: "物資名稱", Template: "物資名稱（必填）", Required: true},
			{Key: "quantity", Column: "quantity", Label: "數量", Template: "數量（必填）", Type: core.FieldNumeric, Required: true},
			{Key: "unit", Column: "unit", Label: "單位"},
			{Key: "delivery_method", Column: "delivery_method", Label: "運送方式"},
			{Key: "delivery_time", Column: "delivery_time", Label: "預計送達時間"},
			{Key: "notes", Column: "notes", Label: "備註"},
			{Key: "status", Column: "status", Label: "狀態", Default: "pledged"},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		NaturalKeys:   [][]string{{"donor_phone", "name", "grid_id"}},
		Related:       &rel,
		ExplicitID:    true,
		UpdateInPlace: true,
		Trash:         true,
	})
}
