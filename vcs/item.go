package vcs

import "fmt"

type (
	// ItemState is a read-only view of the state of a tracked item as an
	// ordered list of deltas.
	ItemState interface {
		TrackedID() string
		LogicType() string
		NumDeltas() int
		Delta(i int) Delta
		DeltaData(i int) DeltaData
	}

	// TrackedItem is a live, versioned entity of a project: a track, the
	// timeline or the project info. ResetStateTo replaces the state of the
	// item with the given state; it is all-or-nothing, so an error leaves the
	// item untouched.
	TrackedItem interface {
		ItemState
		ResetStateTo(state ItemState) error
	}

	// ItemsSource is the project as seen by the version control. TrackedItems
	// returns a snapshot of the current items; InitTrackedItem creates a new
	// item from a full state and DeleteTrackedItem removes one. OnResetState
	// is called once after a checkout or reset has changed the items.
	ItemsSource interface {
		TrackedItems() []TrackedItem
		InitTrackedItem(state ItemState) error
		DeleteTrackedItem(id string) error
		OnResetState()
	}

	// ChangeType tells how a RevisionItem changes the item it refers to.
	ChangeType int

	// RevisionItem is an immutable record of the state of an item, or of the
	// changes to it. Added items carry the full state of a new item, removed
	// items the last known state of a deleted item and changed items only the
	// deltas that changed.
	RevisionItem struct {
		Type   ChangeType
		ID     string
		Logic  string
		Deltas []Delta
		Data   []DeltaData
	}
)

const (
	ItemAdded ChangeType = iota
	ItemRemoved
	ItemChanged
)

var changeTypeNames = [...]string{"added", "removed", "changed"}

func (c ChangeType) String() string {
	if c < 0 || int(c) >= len(changeTypeNames) {
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
	return changeTypeNames[c]
}

func parseChangeType(s string) (ChangeType, error) {
	for i, n := range changeTypeNames {
		if n == s {
			return ChangeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown change type %q", s)
}

func (r *RevisionItem) TrackedID() string { return r.ID }
func (r *RevisionItem) LogicType() string { return r.Logic }
func (r *RevisionItem) NumDeltas() int    { return len(r.Deltas) }

func (r *RevisionItem) Delta(i int) Delta {
	if i < 0 || i >= len(r.Deltas) {
		return Delta{}
	}
	return r.Deltas[i]
}

func (r *RevisionItem) DeltaData(i int) DeltaData {
	if i < 0 || i >= len(r.Data) {
		return nil
	}
	return r.Data[i]
}

func (r *RevisionItem) add(l *Layout, t DeltaType, data DeltaData) {
	r.Deltas = append(r.Deltas, Delta{Type: t, Description: l.Describe(t, data)})
	r.Data = append(r.Data, data)
}

// withType returns a shallow copy of r with a different change type.
func (r *RevisionItem) withType(t ChangeType) *RevisionItem {
	ret := *r
	ret.Type = t
	return &ret
}
