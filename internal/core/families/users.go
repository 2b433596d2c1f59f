package families

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/relief/internal/core"
	"github.com/JonMunkholm/relief/internal/record"
)

func init() {
	registerUsers()
	registerBlacklist()
}

var roleField = core.FieldSpec{
	Key:        "role",
	Column:     "role",
	Label:      "角色",
	Template:   "角色（user/grid_manager/admin/super_admin）",
	Type:       core.FieldEnum,
	EnumValues: []string{core.RoleUser, core.RoleGridManager, core.RoleAdmin, core.RoleSuperAdmin},
	Default:    core.RoleUser,
}

func registerUsers() {
	core.Register(core.Definition{
		Key:   Users,
		Label: "使用者",
		Table: record.Table{Name: "users", Lifecycle: blacklistFlag},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "使用者ID", Aliases: []string{"ID"}},
			{Key: "name", Column: "name", Label: "姓名"},
			{Key: "email", Column: "email", Label: "電子郵件", Normalizer: NormalizeEmail},
			{Key: "phone", Column: "phone", Label: "電話"},
			roleField,
			{Key: "is_blacklisted", Column: "is_blacklisted", Label: "黑名單", Type: core.FieldBool},
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		// Email identifies a user; the name is only used when email is empty.
		NaturalKeys: [][]string{{"email"}, {"name"}},
		ExplicitID:  true,
		Check: func(v *core.Values) error {
			if v.String("name") == "" && v.String("email") == "" {
				return errors.New("姓名 or 電子郵件 is required")
			}
			return nil
		},
	})
}

func registerBlacklist() {
	core.Register(core.Definition{
		Key:   Blacklist,
		Label: "黑名單",
		Table: record.Table{Name: "users", Lifecycle: blacklistFlag},
		Fields: []core.FieldSpec{
			{Key: "id", Column: "id", Label: "使用者ID", Aliases: []string{"ID"}},
			{Key: "name", Column: "name", Label: "姓名"},
			{Key: "email", Column: "email", Label: "電子郵件", Normalizer: NormalizeEmail},
			{Key: "phone", Column: "phone", Label: "電話"},
			roleField,
			{Key: "created_at", Column: "created_at", Label: "建立時間", Type: core.FieldTimestamp, ExportOnly: true},
		},
		NaturalKeys:   [][]string{{"email"}},
		ExplicitID:    true,
		Flagged:       true,
		NewReconciler: newBlacklistReconciler,
	})
}

// blacklistReconciler sets the blacklist flag on users found by id or email.
// A user missing from the store is created blacklisted, but only when the row
// carries an id to create it with.
type blacklistReconciler struct {
	core.Batch
}

func newBlacklistReconciler(b core.Batch) core.Reconciler {
	return &blacklistReconciler{Batch: b}
}

func (b *blacklistReconciler) Validate(row core.Row) (*core.Values, error) {
	v, err := b.Fields.Resolve(row)
	if err != nil {
		return nil, err
	}
	if v.ID == "" && v.String("email") == "" {
		return nil, errors.New("使用者ID or 電子郵件 is required")
	}
	return v, nil
}

func (b *blacklistReconciler) ResolveRelated(context.Context, *core.Values) error {
	return nil
}

func (b *blacklistReconciler) FindDuplicate(ctx context.Context, v *core.Values, _ core.ImportOptions) (core.Match, error) {
	return b.Resolver.FindMatch(ctx, b.Def, v, false)
}

func (b *blacklistReconciler) ApplyWrite(ctx context.Context, v *core.Values, m core.Match, opts core.ImportOptions) (core.Outcome, error) {
	if !m.Found() {
		if v.ID == "" {
			return 0, fmt.Errorf("%w: 使用者 %q", core.ErrRelatedNotFound, v.String("email"))
		}
		if _, err := b.Resolver.Insert(ctx, b.Def, v, true, true, record.InsertPlain); err != nil {
			return 0, err
		}
		return core.OutcomeImported, nil
	}

	if opts.SkipDuplicates && m.Deleted {
		return core.OutcomeSkipped, nil
	}

	lc := b.Def.Table.Lifecycle
	v.Fields[lc.Column] = lc.Deleted
	if err := b.Resolver.Update(ctx, b.Def, m.Record.ID, v, false); err != nil {
		return 0, err
	}
	return core.OutcomeUpdated, nil
}
