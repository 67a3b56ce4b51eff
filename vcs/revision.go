package vcs

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

type (
	// Revision is one commit of the history: the changed items, with a
	// message, author and timestamp. Revisions form a tree rooted at the
	// empty root revision. The ID is a KSUID, so ids sort by creation time.
	Revision struct {
		ID        string
		Message   string
		Author    string
		Timestamp time.Time
		Items     []*RevisionItem

		parent   *Revision
		children []*Revision
	}

	// Snapshot is the full state of every item at some revision, built by
	// replaying the revisions from the root.
	Snapshot struct {
		items map[string]*RevisionItem
		order []string
	}

	// Head is the revision the live project is based on, together with the
	// snapshot of that revision.
	Head struct {
		revision *Revision
		snapshot *Snapshot
	}
)

func (r *Revision) Parent() *Revision     { return r.parent }
func (r *Revision) Children() []*Revision { return r.children }
func (r *Revision) IsEmpty() bool         { return len(r.Items) == 0 }

// Item returns the item of the revision with the given id.
func (r *Revision) Item(id string) (*RevisionItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return nil, false
}

// path returns the revisions from the root to r, both included.
func (r *Revision) path() []*Revision {
	var ret []*Revision
	for p := r; p != nil; p = p.parent {
		ret = append(ret, p)
	}
	slices.Reverse(ret)
	return ret
}

func newSnapshot() *Snapshot {
	return &Snapshot{items: map[string]*RevisionItem{}}
}

// buildSnapshot replays the history from the root up to rev.
func buildSnapshot(rev *Revision, schema Schema) (*Snapshot, error) {
	s := newSnapshot()
	for _, r := range rev.path() {
		if err := s.apply(r, schema); err != nil {
			return nil, fmt.Errorf("revision %s: %w", r.ID, err)
		}
	}
	return s, nil
}

func (s *Snapshot) Len() int { return len(s.order) }

// Item returns the full state of the item with the given id.
func (s *Snapshot) Item(id string) (*RevisionItem, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Items returns the full states of all the items, in the order they were
// first added.
func (s *Snapshot) Items() []*RevisionItem {
	ret := make([]*RevisionItem, 0, len(s.order))
	for _, id := range s.order {
		ret = append(ret, s.items[id])
	}
	return ret
}

func (s *Snapshot) clone() *Snapshot {
	ret := &Snapshot{items: make(map[string]*RevisionItem, len(s.items)), order: slices.Clone(s.order)}
	for k, v := range s.items {
		ret.items[k] = v
	}
	return ret
}

func (s *Snapshot) put(item *RevisionItem) {
	if _, ok := s.items[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

func (s *Snapshot) remove(id string) {
	if _, ok := s.items[id]; !ok {
		return
	}
	delete(s.items, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
}

// apply folds the items of rev into the snapshot.
func (s *Snapshot) apply(rev *Revision, schema Schema) error {
	for _, item := range rev.Items {
		switch item.Type {
		case ItemAdded:
			s.put(item)
		case ItemRemoved:
			s.remove(item.ID)
		case ItemChanged:
			state, ok := s.items[item.ID]
			if !ok {
				return fmt.Errorf("changed item %s is not part of the snapshot", item.ID)
			}
			logic, err := schema.Logic(item.Logic)
			if err != nil {
				return err
			}
			merged, err := logic.Merge(state, item)
			if err != nil {
				return err
			}
			s.put(merged)
		}
	}
	return nil
}

func (h *Head) Revision() *Revision { return h.revision }
func (h *Head) Snapshot() *Snapshot { return h.snapshot }

// moveTo rebuilds the snapshot for rev and points the head to it.
func (h *Head) moveTo(rev *Revision, schema Schema) error {
	s, err := buildSnapshot(rev, schema)
	if err != nil {
		return err
	}
	h.revision = rev
	h.snapshot = s
	return nil
}

// diffStates computes the changes turning the items of base into the live
// items: added items carry their full state, removed items the state they had
// in base, and changed items the changed deltas only.
func diffStates(base *Snapshot, live []*RevisionItem, schema Schema) ([]*RevisionItem, error) {
	var ret []*RevisionItem
	seen := make(map[string]bool, len(live))
	for _, item := range live {
		seen[item.ID] = true
		state, ok := base.Item(item.ID)
		if !ok {
			ret = append(ret, item.withType(ItemAdded))
			continue
		}
		logic, err := schema.Logic(item.Logic)
		if err != nil {
			return nil, err
		}
		d, err := logic.Diff(state, item)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, err)
		}
		if d != nil {
			ret = append(ret, d)
		}
	}
	for _, state := range base.Items() {
		if !seen[state.ID] {
			ret = append(ret, state.withType(ItemRemoved))
		}
	}
	return ret, nil
}
