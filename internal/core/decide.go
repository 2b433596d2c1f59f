package core

// Action is the write a reconciliation decision calls for.
type Action int

const (
	// ActionInsert creates a new record.
	ActionInsert Action = iota
	// ActionUpdate overwrites the matched record's mutable fields.
	ActionUpdate
	// ActionTransition moves the matched record to the deleted state.
	ActionTransition
	// ActionSkip leaves the store untouched.
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionTransition:
		return "transition"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision is the duplicate decision for one row.
type Decision struct {
	Action Action

	// Deleted inserts the record in the deleted state (trash imports).
	Deleted bool

	// KeepState leaves the lifecycle column untouched on update.
	KeepState bool

	// ReuseID inserts with the row's explicit id.
	ReuseID bool
}

// Decide applies the duplicate policy of def to a lookup result.
//
// Normal imports insert when nothing matched. A match is skipped when
// skipDuplicates is set, unless the family updates in place; otherwise it is
// updated, so a repeated key later in the same batch overwrites the earlier
// row.
//
// Trash imports transition an active match, skip or update a deleted match,
// and insert unmatched rows directly in the deleted state.
func Decide(def Definition, m Match, opts ImportOptions) Decision {
	if opts.Trash {
		return decideTrash(def, m, opts)
	}

	if !m.Found() {
		return Decision{Action: ActionInsert, ReuseID: def.ExplicitID}
	}

	inPlace := def.UpdateInPlace && (!def.ExplicitID || m.ByID)
	if opts.SkipDuplicates && !inPlace {
		return Decision{Action: ActionSkip}
	}
	return Decision{Action: ActionUpdate}
}

func decideTrash(def Definition, m Match, opts ImportOptions) Decision {
	if !m.Found() {
		return Decision{Action: ActionInsert, Deleted: true, ReuseID: true}
	}
	if !m.Deleted {
		return Decision{Action: ActionTransition}
	}
	if opts.SkipDuplicates || def.TrashSkipDeleted {
		return Decision{Action: ActionSkip}
	}
	return Decision{Action: ActionUpdate, KeepState: true}
}
