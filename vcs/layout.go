package vcs

import (
	"errors"
	"fmt"

	"github.com/vsariola/midivcs"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

type (
	// DiffLogic computes and merges changes between states of one logic type.
	//
	// Diff returns a changed RevisionItem holding only the deltas of live that
	// differ from state, or nil if there are none. Merge folds the changes
	// of a changed RevisionItem into a full state and returns the resulting
	// state.
	DiffLogic interface {
		Diff(state, live ItemState) (*RevisionItem, error)
		Merge(state, changes ItemState) (*RevisionItem, error)
	}

	// Layout describes the fixed, ordered deltas of one logic type: scalar
	// deltas first, then list deltas. Layout implements DiffLogic for the
	// logic type.
	Layout struct {
		LogicType string
		Scalars   []ScalarDelta
		Lists     []ListDelta
	}

	// ScalarDelta describes a scalar delta; Name is used in descriptions.
	ScalarDelta struct {
		Type DeltaType
		Name string
	}

	// ListDelta describes a list delta. Its full state is stored under the
	// State delta type, and diffs between states under the Added, Removed and
	// Changed types. The only implementation is List.
	ListDelta interface {
		StateType() DeltaType
		Describe(t DeltaType, data DeltaData) Description
		Empty() DeltaData
		owns(t DeltaType) bool
		diffTypes() (added, removed, changed DeltaType)
		words() (one, many string)
		decode(n *yaml.Node) (DeltaData, error)
		diff(state, live DeltaData) (added, removed, changed DeltaData)
		merge(state, added, removed, changed DeltaData) DeltaData
	}

	// List is the ListDelta for items of type E. One, Many and None are the
	// words used in descriptions: "1 note", "3 notes", "empty sequence".
	List[E midivcs.Element[E]] struct {
		State, Added, Removed, Changed DeltaType
		One, Many, None                string
	}

	// Schema maps logic types to their layouts. A schema is built once, when
	// the program starts, and is not modified afterwards.
	Schema map[string]*Layout
)

// ErrUnknownDelta is returned when decoding a delta type that is not part of
// the layout; such deltas are skipped when loading.
var ErrUnknownDelta = errors.New("unknown delta type")

func (l List[E]) StateType() DeltaType { return l.State }
func (l List[E]) Empty() DeltaData     { return Items[E]{} }

func (l List[E]) owns(t DeltaType) bool {
	return t == l.State || t == l.Added || t == l.Removed || t == l.Changed
}

func (l List[E]) Describe(t DeltaType, data DeltaData) Description {
	n := 0
	if data != nil {
		n = data.Len()
	}
	d := CountDescription(n, l.One, l.Many, l.None)
	switch t {
	case l.State:
	case l.Added:
		d.Template = addedTemplate
	case l.Removed:
		d.Template = removedTemplate
	case l.Changed:
		d.Template = changedTemplate
	}
	return d
}

func (l List[E]) decode(n *yaml.Node) (DeltaData, error) {
	var items []E
	if err := n.Decode(&items); err != nil {
		return nil, err
	}
	return Items[E](items), nil
}

func (l List[E]) diff(state, live DeltaData) (added, removed, changed DeltaData) {
	s, _ := state.(Items[E])
	v, _ := live.(Items[E])
	a, r, c := DiffItems(s, v)
	return a, r, c
}

func (l List[E]) merge(state, added, removed, changed DeltaData) DeltaData {
	s, _ := state.(Items[E])
	a, _ := added.(Items[E])
	r, _ := removed.(Items[E])
	c, _ := changed.(Items[E])
	return MergeItems(s, a, r, c)
}

// DiffItems matches the items of state and live by id. Items only in live are
// added, items only in state are removed, and items present in both but with
// different values are changed (the live values are returned).
func DiffItems[E midivcs.Element[E]](state, live Items[E]) (added, removed, changed Items[E]) {
	before := make(map[midivcs.ID]E, len(state))
	for _, e := range state {
		before[e.GetID()] = e
	}
	seen := make(map[midivcs.ID]bool, len(live))
	for _, e := range live {
		seen[e.GetID()] = true
		old, ok := before[e.GetID()]
		switch {
		case !ok:
			added = append(added, e)
		case old != e:
			changed = append(changed, e)
		}
	}
	for _, e := range state {
		if !seen[e.GetID()] {
			removed = append(removed, e)
		}
	}
	return
}

// MergeItems applies the changes to state: removed ids are dropped, changed
// ids replaced and added items appended, keeping the result ordered by beat.
// The relative order of items at the same beat is kept, with added items
// after the existing ones.
func MergeItems[E midivcs.Element[E]](state, added, removed, changed Items[E]) Items[E] {
	drop := make(map[midivcs.ID]bool, len(removed))
	for _, e := range removed {
		drop[e.GetID()] = true
	}
	replace := make(map[midivcs.ID]E, len(changed))
	for _, e := range changed {
		replace[e.GetID()] = e
	}
	ret := make(Items[E], 0, len(state)+len(added))
	for _, e := range state {
		if drop[e.GetID()] {
			continue
		}
		if c, ok := replace[e.GetID()]; ok {
			e = c
		}
		ret = append(ret, e)
	}
	ret = append(ret, added...)
	slices.SortStableFunc(ret, func(a, b E) int {
		switch {
		case a.GetBeat() < b.GetBeat():
			return -1
		case a.GetBeat() > b.GetBeat():
			return 1
		}
		return 0
	})
	return ret
}

// NumDeltas returns the number of full state deltas of the layout.
func (l *Layout) NumDeltas() int { return len(l.Scalars) + len(l.Lists) }

// DeltaType returns the type of the i-th full state delta.
func (l *Layout) DeltaType(i int) DeltaType {
	if i < len(l.Scalars) {
		return l.Scalars[i].Type
	}
	return l.Lists[i-len(l.Scalars)].StateType()
}

// Describe returns the description of a delta of this layout.
func (l *Layout) Describe(t DeltaType, data DeltaData) Description {
	for _, s := range l.Scalars {
		if s.Type == t {
			v := ""
			if data != nil {
				v = fmt.Sprint(data)
			}
			return ValueDescription(s.Name, v)
		}
	}
	for _, list := range l.Lists {
		if list.owns(t) {
			return list.Describe(t, data)
		}
	}
	return Description{Name: string(t)}
}

// Decode decodes the payload of a delta of type t. Delta types that are not
// part of the layout return an error wrapping ErrUnknownDelta.
func (l *Layout) Decode(t DeltaType, n *yaml.Node) (DeltaData, error) {
	for _, s := range l.Scalars {
		if s.Type == t {
			var v string
			if err := n.Decode(&v); err != nil {
				return nil, fmt.Errorf("delta %s: %w", t, err)
			}
			return Scalar(v), nil
		}
	}
	for _, list := range l.Lists {
		if list.owns(t) {
			d, err := list.decode(n)
			if err != nil {
				return nil, fmt.Errorf("delta %s: %w", t, err)
			}
			return d, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", l.LogicType, t, ErrUnknownDelta)
}

// Diff implements DiffLogic.
func (l *Layout) Diff(state, live ItemState) (*RevisionItem, error) {
	if state.LogicType() != l.LogicType || live.LogicType() != l.LogicType {
		return nil, fmt.Errorf("cannot diff %s against %s with the %s logic", live.LogicType(), state.LogicType(), l.LogicType)
	}
	ret := &RevisionItem{Type: ItemChanged, ID: live.TrackedID(), Logic: l.LogicType}
	for _, s := range l.Scalars {
		after, ok := Find(live, s.Type)
		if !ok {
			continue
		}
		if before, ok := Find(state, s.Type); ok && before.Equal(after) {
			continue
		}
		ret.add(l, s.Type, after)
	}
	for _, list := range l.Lists {
		after, ok := Find(live, list.StateType())
		if !ok {
			continue
		}
		before, ok := Find(state, list.StateType())
		if !ok {
			before = list.Empty()
		}
		if before.Equal(after) {
			continue
		}
		added, removed, changed := list.diff(before, after)
		a, r, c := list.diffTypes()
		for _, d := range []struct {
			t        DeltaType
			data     DeltaData
			template string
		}{{a, added, addedTemplate}, {r, removed, removedTemplate}, {c, changed, changedTemplate}} {
			if d.data.Len() > 0 {
				desc := Description{Template: d.template, Count: d.data.Len()}
				desc.One, desc.Many = list.words()
				ret.Deltas = append(ret.Deltas, Delta{Type: d.t, Description: desc})
				ret.Data = append(ret.Data, d.data)
			}
		}
	}
	if len(ret.Deltas) == 0 {
		return nil, nil
	}
	return ret, nil
}

func (l List[E]) diffTypes() (added, removed, changed DeltaType) {
	return l.Added, l.Removed, l.Changed
}

func (l List[E]) words() (one, many string) { return l.One, l.Many }

// Merge implements DiffLogic. A scalar present in changes replaces the one in
// state. A list present in changes in its full state form replaces the list
// of state, unless the full state shares its type with the added form; the
// added, removed and changed forms are then applied on top. Deltas of state
// not touched by changes are carried over as they are.
func (l *Layout) Merge(state, changes ItemState) (*RevisionItem, error) {
	if state.LogicType() != l.LogicType || changes.LogicType() != l.LogicType {
		return nil, fmt.Errorf("cannot merge %s into %s with the %s logic", changes.LogicType(), state.LogicType(), l.LogicType)
	}
	ret := &RevisionItem{Type: ItemAdded, ID: state.TrackedID(), Logic: l.LogicType}
	for _, s := range l.Scalars {
		if d, ok := Find(changes, s.Type); ok {
			ret.add(l, s.Type, d)
		} else if d, ok := Find(state, s.Type); ok {
			ret.add(l, s.Type, d)
		}
	}
	for _, list := range l.Lists {
		a, r, c := list.diffTypes()
		base, ok := Find(state, list.StateType())
		if !ok {
			base = list.Empty()
		}
		if a != list.StateType() {
			if full, ok := Find(changes, list.StateType()); ok {
				base = full
			}
		}
		added, _ := Find(changes, a)
		removed, _ := Find(changes, r)
		changed, _ := Find(changes, c)
		ret.add(l, list.StateType(), list.merge(base, added, removed, changed))
	}
	return ret, nil
}

// Capture copies the full state of item into a standalone RevisionItem.
func (l *Layout) Capture(item ItemState) *RevisionItem {
	ret := &RevisionItem{Type: ItemAdded, ID: item.TrackedID(), Logic: item.LogicType()}
	for i := 0; i < item.NumDeltas(); i++ {
		ret.add(l, item.Delta(i).Type, item.DeltaData(i))
	}
	return ret
}

// Logic returns the DiffLogic of the logic type.
func (s Schema) Logic(logicType string) (DiffLogic, error) {
	l, ok := s[logicType]
	if !ok {
		return nil, fmt.Errorf("unknown logic type %q", logicType)
	}
	return l, nil
}
