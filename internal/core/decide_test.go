package core

import (
	"testing"

	"github.com/JonMunkholm/relief/internal/record"
)

func TestDecide(t *testing.T) {
	plain := siteDefinition()

	explicit := siteDefinition()
	explicit.ExplicitID = true
	explicit.UpdateInPlace = true

	inPlace := siteDefinition()
	inPlace.UpdateInPlace = true
	inPlace.TrashSkipDeleted = true

	active := Match{Record: &record.Record{ID: "r1"}}
	activeByID := Match{Record: &record.Record{ID: "r1"}, ByID: true}
	deleted := Match{Record: &record.Record{ID: "r1"}, Deleted: true}

	tests := []struct {
		name string
		def  Definition
		m    Match
		opts ImportOptions
		want Decision
	}{
		// Normal imports
		{
			name: "no match inserts",
			def:  plain,
			want: Decision{Action: ActionInsert},
		},
		{
			name: "no match on explicit-id family reuses id",
			def:  explicit,
			want: Decision{Action: ActionInsert, ReuseID: true},
		},
		{
			name: "match updates without skip",
			def:  plain,
			m:    active,
			want: Decision{Action: ActionUpdate},
		},
		{
			name: "match skipped with skip",
			def:  plain,
			m:    active,
			opts: ImportOptions{SkipDuplicates: true},
			want: Decision{Action: ActionSkip},
		},
		{
			name: "deleted match is still a match",
			def:  plain,
			m:    deleted,
			opts: ImportOptions{SkipDuplicates: true},
			want: Decision{Action: ActionSkip},
		},
		{
			name: "update-in-place ignores skip",
			def:  inPlace,
			m:    active,
			opts: ImportOptions{SkipDuplicates: true},
			want: Decision{Action: ActionUpdate},
		},
		{
			name: "explicit id match updates in place",
			def:  explicit,
			m:    activeByID,
			opts: ImportOptions{SkipDuplicates: true},
			want: Decision{Action: ActionUpdate},
		},
		{
			name: "natural key match on explicit-id family honours skip",
			def:  explicit,
			m:    active,
			opts: ImportOptions{SkipDuplicates: true},
			want: Decision{Action: ActionSkip},
		},

		// Trash imports
		{
			name: "trash no match inserts deleted",
			def:  plain,
			opts: ImportOptions{Trash: true},
			want: Decision{Action: ActionInsert, Deleted: true, ReuseID: true},
		},
		{
			name: "trash active match transitions",
			def:  plain,
			m:    active,
			opts: ImportOptions{Trash: true, SkipDuplicates: true},
			want: Decision{Action: ActionTransition},
		},
		{
			name: "trash deleted match updates keeping state",
			def:  plain,
			m:    deleted,
			opts: ImportOptions{Trash: true},
			want: Decision{Action: ActionUpdate, KeepState: true},
		},
		{
			name: "trash deleted match skipped with skip",
			def:  plain,
			m:    deleted,
			opts: ImportOptions{Trash: true, SkipDuplicates: true},
			want: Decision{Action: ActionSkip},
		},
		{
			name: "trash deleted match always skipped when configured",
			def:  inPlace,
			m:    deleted,
			opts: ImportOptions{Trash: true},
			want: Decision{Action: ActionSkip},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.def, tt.m, tt.opts)
			if got != tt.want {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAction_String(t *testing.T) {
	tests := map[Action]string{
		ActionInsert:     "insert",
		ActionUpdate:     "update",
		ActionTransition: "transition",
		ActionSkip:       "skip",
		Action(99):       "unknown",
	}
	for action, want := range tests {
		if got := action.String(); got != want {
			t.Errorf("Action(%d).String() = %q, want %q", int(action), got, want)
		}
	}
}
