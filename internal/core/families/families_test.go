package families_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/core/families"
	"github.com/JonMunkholm/relief/internal/record"
	"github.com/JonMunkholm/relief/internal/store/memstore"
)

// harness bundles an engine and exporter over one in-memory store.
type harness struct {
	t        *testing.T
	store    *memstore.Store
	engine   *core.Engine
	exporter *core.Exporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()

	clock := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	n := 0
	engine := core.NewEngine(store, core.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%03d", n)
	}))

	return &harness{
		t:        t,
		store:    store,
		engine:   engine,
		exporter: core.NewExporter(store, time.FixedZone("UTC+8", 8*60*60)),
	}
}

func (h *harness) importCSV(family, text string, opts core.ImportOptions) core.Result {
	h.t.Helper()
	res, err := h.engine.Import(context.Background(), family, text, opts)
	if err != nil {
		h.t.Fatalf("Import(%s) error = %v", family, err)
	}
	return res
}

func (h *harness) export(family string, trash bool) core.ExportResult {
	h.t.Helper()
	res, err := h.exporter.Export(context.Background(), family, trash)
	if err != nil {
		h.t.Fatalf("Export(%s) error = %v", family, err)
	}
	return res
}

func (h *harness) find(table, col string, val any) *record.Record {
	h.t.Helper()
	rec, err := h.store.FindByNaturalKey(context.Background(), record.Table{Name: table}, record.Key{{Column: col, Value: val}})
	if err != nil {
		h.t.Fatal(err)
	}
	return rec
}

const gridHeader = "網格代碼（必填）,類型（必填）,災區名稱（必填）,緯度（必填）,經度（必填）\n"

// ============================================================================
// Grids and areas
// ============================================================================

func TestGridImport_CreatesArea(t *testing.T) {
	h := newHarness(t)

	res := h.importCSV(families.Grids, gridHeader+"A1,residential,TestArea,23.98,121.60\n", core.ImportOptions{})

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"imported":1,"skipped":0}` {
		t.Errorf("result JSON = %s, want {\"imported\":1,\"skipped\":0}", data)
	}

	if got := h.store.Count("disaster_areas"); got != 1 {
		t.Fatalf("areas = %d, want 1", got)
	}
	area := h.store.All("disaster_areas")[0]
	if area.Fields["name"] != "TestArea" || area.Fields["status"] != "active" {
		t.Errorf("area fields = %v, want TestArea active", area.Fields)
	}
	if area.Fields["center_lat"] != 23.98 || area.Fields["center_lng"] != 121.60 {
		t.Errorf("area coordinates = %v,%v, want the grid's", area.Fields["center_lat"], area.Fields["center_lng"])
	}

	grid := h.find("grids", "code", "A1")
	if grid == nil {
		t.Fatal("grid A1 not stored")
	}
	if grid.Fields["area_id"] != area.ID {
		t.Errorf("grid area_id = %v, want %s", grid.Fields["area_id"], area.ID)
	}
	if grid.Fields["status"] != "open" || grid.Fields["grid_type"] != "residential" {
		t.Errorf("grid fields = %v, want residential and status open", grid.Fields)
	}
}

func TestGridImport_AreaCreatedOnce(t *testing.T) {
	h := newHarness(t)

	input := gridHeader +
		"A1,residential,光復鄉,23.65,121.42\n" +
		"A2,residential,光復鄉,23.66,121.43\n" +
		"B1,road,鳳林鎮,23.74,121.45\n"
	res := h.importCSV(families.Grids, input, core.ImportOptions{})
	if res.Imported != 3 {
		t.Fatalf("Imported = %d (%v), want 3", res.Imported, res.Errors)
	}
	if got := h.store.Count("disaster_areas"); got != 2 {
		t.Errorf("areas = %d, want 2", got)
	}

	a1 := h.find("grids", "code", "A1")
	a2 := h.find("grids", "code", "A2")
	if a1.Fields["area_id"] != a2.Fields["area_id"] {
		t.Errorf("A1 and A2 reference different areas: %v, %v", a1.Fields["area_id"], a2.Fields["area_id"])
	}
}

func TestGridImport_PartialFailure(t *testing.T) {
	h := newHarness(t)

	input := gridHeader +
		"A1,residential,TestArea,23.98,121.60\n" +
		"A2,,TestArea,23.98,121.60\n" +
		"A3,residential,TestArea,north,121.60\n" +
		"A4,residential,TestArea,23.97,121.61\n"
	res := h.importCSV(families.Grids, input, core.ImportOptions{})

	want := core.Result{
		Imported: 2,
		Errors: []string{
			"row 3: 類型: required field is empty",
			`row 4: 緯度: invalid number "north"`,
		},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if got := h.store.Count("grids"); got != 2 {
		t.Errorf("grids = %d, want 2", got)
	}
}

func TestGridImport_JSONFields(t *testing.T) {
	h := newHarness(t)

	input := "網格代碼,類型,災區名稱,緯度,經度,物資需求,範圍\n" +
		`A1,residential,TestArea,23.98,121.6,水:10;鏟子:5,"{""north"":24}"` + "\n"
	if res := h.importCSV(families.Grids, input, core.ImportOptions{}); res.Imported != 1 {
		t.Fatalf("Imported = %d (%v), want 1", res.Imported, res.Errors)
	}

	exported := string(h.export(families.Grids, false).Data)
	if !strings.Contains(exported, `水:10;鏟子:5,"{""north"":24}",open`) {
		t.Errorf("export = %q, want flattened supplies and raw bounds", exported)
	}
}

func TestRoundTrip_SkipsEverything(t *testing.T) {
	for _, family := range []string{families.Grids, families.DisasterAreas} {
		t.Run(family, func(t *testing.T) {
			h := newHarness(t)
			seed := gridHeader +
				"A1,residential,光復鄉,23.65,121.42\n" +
				"A2,road,鳳林鎮,23.74,121.45\n"
			h.importCSV(families.Grids, seed, core.ImportOptions{})

			before := h.store.Count("grids") + h.store.Count("disaster_areas")
			exported := h.export(family, false)

			res := h.importCSV(family, string(exported.Data), core.ImportOptions{SkipDuplicates: true})
			if res.Imported != 0 || res.Skipped != exported.Rows || len(res.Errors) != 0 {
				t.Errorf("re-import = %+v, want all %d rows skipped", res, exported.Rows)
			}
			if after := h.store.Count("grids") + h.store.Count("disaster_areas"); after != before {
				t.Errorf("store rows = %d, want %d", after, before)
			}
		})
	}
}

func TestTrashImport_TransitionsInsteadOfDuplicating(t *testing.T) {
	h := newHarness(t)
	h.importCSV(families.Grids, gridHeader+"A1,residential,TestArea,23.98,121.60\nA2,residential,TestArea,23.97,121.61\n", core.ImportOptions{})

	exported := h.export(families.Grids, false)
	res := h.importCSV(families.Grids, string(exported.Data), core.ImportOptions{Trash: true})
	if res.Imported != 2 {
		t.Fatalf("trash import = %+v, want 2 imported", res)
	}

	if got := h.store.Count("grids"); got != 2 {
		t.Errorf("grids = %d, want 2", got)
	}
	for _, g := range h.store.All("grids") {
		if g.Fields["status"] != "deleted" {
			t.Errorf("grid %s status = %v, want deleted", g.ID, g.Fields["status"])
		}
	}
	if rows := h.export(families.Grids, false).Rows; rows != 0 {
		t.Errorf("active export rows = %d, want 0", rows)
	}
	if rows := h.export(families.Grids, true).Rows; rows != 2 {
		t.Errorf("trash export rows = %d, want 2", rows)
	}

	// Restoring the same trash file again changes nothing with skip.
	res = h.importCSV(families.Grids, string(h.export(families.Grids, true).Data), core.ImportOptions{Trash: true, SkipDuplicates: true})
	if res.Skipped != 2 {
		t.Errorf("repeat trash import = %+v, want 2 skipped", res)
	}
}

func TestTrashImport_UnknownRowsLandDeleted(t *testing.T) {
	h := newHarness(t)

	input := "ID,網格代碼,類型,災區名稱,緯度,經度,狀態\n" +
		"old-grid,Z9,residential,TestArea,23.9,121.5,deleted\n"
	res := h.importCSV(families.Grids, input, core.ImportOptions{Trash: true})
	if res.Imported != 1 {
		t.Fatalf("trash import = %+v, want 1 imported", res)
	}

	grid := h.find("grids", "code", "Z9")
	if grid == nil || grid.ID != "old-grid" || grid.Fields["status"] != "deleted" {
		t.Errorf("grid = %+v, want old-grid in deleted state", grid)
	}
}

func TestTrashImport_AreaProximity(t *testing.T) {
	h := newHarness(t)
	header := "災區名稱,緯度,經度\n"
	h.importCSV(families.DisasterAreas, header+"光復鄉,23.65,121.42\n", core.ImportOptions{})

	res := h.importCSV(families.DisasterAreas, header+"光復鄉,25.0,121.5\n", core.ImportOptions{Trash: true})
	if res.Imported != 1 || h.store.Count("disaster_areas") != 2 {
		t.Fatalf("far trash row = %+v with %d areas, want a separate deleted area", res, h.store.Count("disaster_areas"))
	}

	res = h.importCSV(families.DisasterAreas, header+"光復鄉,23.655,121.425\n", core.ImportOptions{Trash: true})
	if res.Imported != 1 || h.store.Count("disaster_areas") != 2 {
		t.Fatalf("near trash row = %+v with %d areas, want a transition", res, h.store.Count("disaster_areas"))
	}
	if rows := h.export(families.DisasterAreas, false).Rows; rows != 0 {
		t.Errorf("active areas = %d, want 0", rows)
	}
}

func TestAreaImport_NormalizesCounty(t *testing.T) {
	h := newHarness(t)
	h.importCSV(families.DisasterAreas, "災區名稱,縣市,緯度,經度\n光復鄉,台東縣,23.65,121.42\n", core.ImportOptions{})

	area := h.find("disaster_areas", "name", "光復鄉")
	if area == nil || area.Fields["county"] != "臺東縣" {
		t.Errorf("area = %+v, want county 臺東縣", area)
	}
}

// ============================================================================
// Volunteers and supplies
// ============================================================================

func TestVolunteerImport_GridMustExist(t *testing.T) {
	h := newHarness(t)
	header := "網格代碼（必填）,志工姓名（必填）,聯絡電話（必填）,專長\n"

	res := h.importCSV(families.VolunteerRegistrations, header+"Z9,林志工,0912000111,急救\n", core.ImportOptions{})
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "related entity not found") {
		t.Fatalf("errors = %v, want related entity not found", res.Errors)
	}
	if h.store.Count("grids") != 0 || h.store.Count("volunteer_registrations") != 0 {
		t.Error("must-exist lookup created records")
	}

	h.importCSV(families.Grids, gridHeader+"Z9,residential,TestArea,23.98,121.60\n", core.ImportOptions{})
	h.importCSV(families.Grids, gridHeader+"Z9,residential,TestArea,23.98,121.60\n", core.ImportOptions{Trash: true})

	// A deleted grid still resolves.
	res = h.importCSV(families.VolunteerRegistrations, header+"Z9,林志工,0912000111,急救;搬運\n", core.ImportOptions{})
	if res.Imported != 1 {
		t.Fatalf("Imported = %d (%v), want 1", res.Imported, res.Errors)
	}

	reg := h.store.All("volunteer_registrations")[0]
	if reg.Fields["status"] != "pending" {
		t.Errorf("status = %v, want pending", reg.Fields["status"])
	}
	if skills := string(reg.Fields["skills"].(json.RawMessage)); skills != `["急救","搬運"]` {
		t.Errorf("skills = %s, want [\"急救\",\"搬運\"]", skills)
	}

	res = h.importCSV(families.VolunteerRegistrations, header+"Z9,林志工,0912000111,\n", core.ImportOptions{SkipDuplicates: true})
	if res.Skipped != 1 {
		t.Errorf("duplicate phone and grid = %+v, want skipped", res)
	}

	if _, err := h.engine.Import(context.Background(), families.VolunteerRegistrations, header, core.ImportOptions{Trash: true}); err == nil {
		t.Error("trash import of volunteer registrations succeeded, want ErrTrashUnsupported")
	}
}

func TestSupplyImport_ExplicitIDUpdatesInPlace(t *testing.T) {
	h := newHarness(t)
	h.importCSV(families.Grids, gridHeader+"A1,residential,TestArea,23.98,121.60\n", core.ImportOptions{})

	header := "捐贈ID（更新時填寫）,網格代碼（必填）,捐贈者姓名（必填）,捐贈者電話（必填）,物資名稱（必填）,數量（必填）\n"
	res := h.importCSV(families.SupplyDonations, header+",A1,王小明,0912,水,10\n", core.ImportOptions{})
	if res.Imported != 1 {
		t.Fatalf("Imported = %d (%v), want 1", res.Imported, res.Errors)
	}
	donation := h.store.All("supply_donations")[0]
	if donation.Fields["status"] != "pledged" {
		t.Errorf("status = %v, want pledged", donation.Fields["status"])
	}

	// Same natural key without an id honours skip.
	res = h.importCSV(families.SupplyDonations, header+",A1,王小明,0912,水,30\n", core.ImportOptions{SkipDuplicates: true})
	if res.Skipped != 1 {
		t.Errorf("natural key duplicate = %+v, want skipped", res)
	}

	// The explicit id updates even with skip.
	res = h.importCSV(families.SupplyDonations, header+donation.ID+",A1,王小明,0912,水,20\n", core.ImportOptions{SkipDuplicates: true})
	if res.Imported != 1 {
		t.Errorf("explicit id = %+v, want updated", res)
	}
	if q := h.store.All("supply_donations")[0].Fields["quantity"]; q != float64(20) {
		t.Errorf("quantity = %v, want 20", q)
	}

	// Unknown explicit ids are inserted with that id.
	res = h.importCSV(families.SupplyDonations, header+"sup-7,A1,陳大華,0922,毛毯,5\n", core.ImportOptions{})
	if res.Imported != 1 || h.find("supply_donations", "id", "sup-7") == nil {
		t.Errorf("new explicit id = %+v, want inserted as sup-7", res)
	}
}

func TestSupplyTrashImport_ReusesID(t *testing.T) {
	h := newHarness(t)
	h.importCSV(families.Grids, gridHeader+"A1,residential,TestArea,23.98,121.60\n", core.ImportOptions{})

	input := "捐贈ID,網格代碼,捐贈者姓名,捐贈者電話,物資名稱,數量,狀態\n" +
		"sup-1,A1,王小明,0912,水,10,deleted\n"
	res := h.importCSV(families.SupplyDonations, input, core.ImportOptions{Trash: true})
	if res.Imported != 1 {
		t.Fatalf("trash import = %+v, want 1 imported", res)
	}

	// A deleted match without skip updates its fields but stays deleted.
	res = h.importCSV(families.SupplyDonations, strings.Replace(input, ",10,", ",12,", 1), core.ImportOptions{Trash: true})
	if res.Imported != 1 {
		t.Fatalf("repeat trash import = %+v, want 1 imported", res)
	}
	rec := h.find("supply_donations", "id", "sup-1")
	if rec.Fields["status"] != "deleted" || rec.Fields["quantity"] != float64(12) {
		t.Errorf("donation = %v, want deleted with quantity 12", rec.Fields)
	}
	if got := h.store.Count("supply_donations"); got != 1 {
		t.Errorf("donations = %d, want 1", got)
	}
}

// ============================================================================
// Users and blacklist
// ============================================================================

func TestUserImport(t *testing.T) {
	h := newHarness(t)

	res := h.importCSV(families.Users, "姓名,電子郵件,角色\nAlice,Alice@Example.org,admin\nBob,,\n,,user\n", core.ImportOptions{})
	if res.Imported != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v, want 2 imported and 1 error", res)
	}
	if !strings.Contains(res.Errors[0], "row 4:") {
		t.Errorf("error = %q, want row 4", res.Errors[0])
	}

	alice := h.find("users", "email", "alice@example.org")
	if alice == nil || alice.Fields["role"] != "admin" {
		t.Fatalf("alice = %+v, want lower-cased email and admin role", alice)
	}

	// Email wins over name; the name key is used only when email is empty.
	res = h.importCSV(families.Users, "姓名,電子郵件\nAlicia,ALICE@example.org\nBob,\n", core.ImportOptions{SkipDuplicates: true})
	if res.Skipped != 2 {
		t.Errorf("re-import = %+v, want 2 skipped", res)
	}
	if got := h.store.Count("users"); got != 2 {
		t.Errorf("users = %d, want 2", got)
	}

	if _, err := h.engine.Import(context.Background(), families.Users, "姓名\nx\n", core.ImportOptions{Trash: true}); err == nil {
		t.Error("trash import of users succeeded, want ErrTrashUnsupported")
	}
}

func TestBlacklistImport(t *testing.T) {
	h := newHarness(t)
	h.importCSV(families.Users, "姓名,電子郵件\nAlice,alice@example.org\nBob,bob@example.org\n", core.ImportOptions{})

	input := "使用者ID,電子郵件\n" +
		",ALICE@example.org\n" +
		"u-99,new@example.org\n" +
		",ghost@example.org\n"
	res := h.importCSV(families.Blacklist, input, core.ImportOptions{})
	if res.Imported != 2 || len(res.Errors) != 1 {
		t.Fatalf("result = %+v, want 2 imported and 1 error", res)
	}
	if want := `row 4: related entity not found: 使用者 "ghost@example.org"`; res.Errors[0] != want {
		t.Errorf("error = %q, want %q", res.Errors[0], want)
	}

	created := h.find("users", "id", "u-99")
	if created == nil || created.Fields["is_blacklisted"] != true || created.Fields["role"] != "user" {
		t.Errorf("created user = %+v, want blacklisted with role user", created)
	}
	if alice := h.find("users", "email", "alice@example.org"); alice.Fields["is_blacklisted"] != true {
		t.Errorf("alice = %v, want blacklisted", alice.Fields)
	}

	if rows := h.export(families.Users, false).Rows; rows != 1 {
		t.Errorf("users export rows = %d, want 1 (Bob)", rows)
	}
	if rows := h.export(families.Blacklist, false).Rows; rows != 2 {
		t.Errorf("blacklist export rows = %d, want 2", rows)
	}

	res = h.importCSV(families.Blacklist, input, core.ImportOptions{SkipDuplicates: true})
	if res.Skipped != 2 || len(res.Errors) != 1 {
		t.Errorf("re-import = %+v, want 2 skipped and 1 error", res)
	}

	res = h.importCSV(families.Blacklist, "姓名\nnobody\n", core.ImportOptions{})
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "使用者ID or 電子郵件 is required") {
		t.Errorf("row without id or email = %+v, want a row error", res)
	}
}

// ============================================================================
// Announcements
// ============================================================================

func TestAnnouncementImport(t *testing.T) {
	h := newHarness(t)
	header := "標題（必填）,內容（必填）,置頂,相關連結\n"

	h.importCSV(families.Announcements, header+"停水通知,明日停水,是,公所:https://example.gov.tw\n", core.ImportOptions{})

	// A duplicate title updates in place even with skip.
	res := h.importCSV(families.Announcements, header+"停水通知,改為後天,否,\n", core.ImportOptions{SkipDuplicates: true})
	if res.Imported != 1 || res.Skipped != 0 {
		t.Errorf("duplicate title = %+v, want updated", res)
	}
	ann := h.find("announcements", "title", "停水通知")
	if ann.Fields["content"] != "改為後天" || ann.Fields["is_pinned"] != false {
		t.Errorf("announcement = %v, want updated content and unpinned", ann.Fields)
	}
	if _, ok := ann.Fields["updated_at"].(time.Time); !ok {
		t.Errorf("updated_at = %v, want a timestamp", ann.Fields["updated_at"])
	}

	exported := string(h.export(families.Announcements, false).Data)
	if !strings.Contains(exported, "停水通知,改為後天,,否,公所:https://example.gov.tw,") {
		t.Errorf("export = %q, want pinned 否 and flattened links", exported)
	}

	res = h.importCSV(families.Announcements, header+"停水通知,x,,\n", core.ImportOptions{Trash: true})
	if res.Imported != 1 {
		t.Errorf("trash import = %+v, want transition", res)
	}

	// A deleted match is always skipped, with or without skip.
	res = h.importCSV(families.Announcements, header+"停水通知,y,,\n", core.ImportOptions{Trash: true})
	if res.Skipped != 1 {
		t.Errorf("repeat trash import = %+v, want skipped", res)
	}
	if ann := h.find("announcements", "title", "停水通知"); ann.Fields["content"] != "改為後天" {
		t.Errorf("content = %v, want untouched by skipped row", ann.Fields["content"])
	}
}

// ============================================================================
// Registry
// ============================================================================

func TestFamiliesRegistered(t *testing.T) {
	want := map[string]bool{
		families.Announcements:          true,
		families.Blacklist:              false,
		families.DisasterAreas:          true,
		families.Grids:                  true,
		families.SupplyDonations:        true,
		families.Users:                  false,
		families.VolunteerRegistrations: false,
	}

	got := map[string]bool{}
	for _, info := range core.Families() {
		got[info.Key] = info.Trash
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("families mismatch (-want +got):\n%s", diff)
	}
}

func TestGridTemplate(t *testing.T) {
	data, err := core.Template(families.Grids)
	if err != nil {
		t.Fatal(err)
	}
	header := strings.TrimSuffix(core.StripBOM(string(data)), "\n")
	if !strings.HasPrefix(header, "ID,網格代碼（必填）,類型（必填）,災區名稱（必填）,緯度（必填）,經度（必填）,") {
		t.Errorf("template header = %q", header)
	}
	if strings.Contains(header, "建立時間") {
		t.Errorf("template header = %q, want export-only columns left out", header)
	}
}
