package families

import (
	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/record"
)

func init() {
	registerDisasterAreas()
	registerGrids()
}

func registerDisasterAreas() {
	core.Register(core.Definition{
		Key:   DisasterAreas,
		Label: "災區",
		Table: record.Table{Name: "disaster_areas", Lifecycle: statusLifecycle},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "ID"},
			{Key: "name", Column: "name", Label: "災區名稱", Template: "災區名稱（必填）", Required: true},
			{Key: "county", Column: "county", Label: "縣市", Normalizer: NormalizeCounty},
			{Key: "township", Column: "township", Label: "鄉鎮"},
			{Key: "center_lat", Column: "center_lat", Label: "緯度", Template: "緯度（必填）", Type: core.FieldNumeric, Required: true},
			{Key: "center_lng", Column: "center_lng", Label: "經度", Template: "經度（必填）", Type: core.FieldNumeric, Required: true},
			{Key: "description", Column: "description", Label: "描述"},
			{Key: "status", Column: "status", Label: "狀態", Default: "active"},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
			{Key: "updated_at", Column: "updated_at", Label: "更新時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		NaturalKeys:    [][]string{{"name"}},
		Trash:          true,
		TrashProximity: true,
	})
}

func registerGrids() {
	core.Register(core.Definition{
		Key:   Grids,
		Label: "網格",
		Table: record.Table{Name: "grids", Lifecycle: statusLifecycle},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "ID"},
			{Key: "code", Column: "code", Label: "網格代碼", Template: "網格代碼（必填）", Required: true},
			{Key: "grid_type", Column: "grid_type", Label: "類型", Template: "類型（必填）", Required: true},
			{Key: "area_name", Label: "災區名稱", Template: "災區名稱（必填）", Required: true},
			{Key: "center_lat", Column: "center_lat", Label: "緯度", Template: "緯度（必填）", Type: core.FieldNumeric, Required: true},
			{Key: "center_lng", Column: "center_lng", Label: "經度", Template: "經度（必填）", Type: core.FieldNumeric, Required: true},
			{Key: "volunteer_needed", Column: "volunteer_needed", Label: "需求志工人數", Type: core.FieldInteger},
			{Key: "volunteer_registered", Column: "volunteer_registered", Label: "已報名志工人數", Type: core.FieldInteger},
			{Key: "meeting_point", Column: "meeting_point", Label: "集合地點"},
			{Key: "risks_notes", Column: "risks_notes", Label: "注意事項"},
			{Key: "contact_info", Column: "contact_info", Label: "聯絡資訊"},
			{
				Key:         "supplies_needed",
				Column:      "supplies_needed",
				Label:       "物資需求",
				Type:        core.FieldJSON,
				SummaryKeys: [2]string{"name", "quantity"},
			},
			{Key: "bounds", Column: "bounds", Label: "範圍", Type: core.FieldJSON},
			{
				Key:        "status",
				Column:     "status",
				Label:      "狀態",
				Template:   "狀態（open/closed/completed）",
				Type:       core.FieldEnum,
				EnumValues: []string{"open", "closed", "completed", "deleted"},
				Default:    "open",
			},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
			{Key: "updated_at", Column: "updated_at", Label: "更新時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		NaturalKeys: [][]string{{"code"}},
		Related: &core.Relation{
			Field:       "area_name",
			Column:      "area_id",
			Family:      DisasterAreas,
			MatchColumn: "name",
			Policy:      core.FindOrCreate,
			Seed:        seedArea,
		},
		Trash: true,
	})
}

// seedArea builds an area for a grid that names one not yet known. The area
// starts active at the grid's coordinates.
func seedArea(name string, v *core.Values) record.Fields {
	fields := record.Fields{"name": name}
	for _, col := range []string{"center_lat", "center_lng"} {
		if val, ok := v.Fields[col]; ok {
			fields[col] = val
		}
	}
	return fields
}
