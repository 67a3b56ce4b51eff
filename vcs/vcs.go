package vcs

import (
	"fmt"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// VersionControl keeps the revision history of a project and moves the
// project between revisions. The methods taking or returning live items
// (Capture, Status, Commit, Checkout, ResetChanges, CherryPick) must be called
// from the goroutine owning the project; StatusOf only works on captured
// states and can be called from any goroutine, e.g. from a Worker.
type VersionControl struct {
	mu        sync.Mutex
	source    ItemsSource
	schema    Schema
	root      *Revision
	revisions map[string]*Revision
	order     []*Revision
	head      Head
	author    string
	log       *zap.Logger

	stashes    []*Revision
	quickStash *Revision
}

// New returns a VersionControl with an empty history: just the root revision,
// which is also the head. A nil logger disables logging.
func New(source ItemsSource, schema Schema, log *zap.Logger) *VersionControl {
	if log == nil {
		log = zap.NewNop()
	}
	root := &Revision{ID: ksuid.New().String(), Message: "root", Timestamp: time.Now()}
	v := &VersionControl{
		source:    source,
		schema:    schema,
		root:      root,
		revisions: map[string]*Revision{root.ID: root},
		order:     []*Revision{root},
		head:      Head{revision: root, snapshot: newSnapshot()},
		log:       log.Named("vcs"),
	}
	return v
}

// SetAuthor sets the author recorded in the following commits.
func (v *VersionControl) SetAuthor(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.author = name
}

func (v *VersionControl) Root() *Revision {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.root
}

func (v *VersionControl) Head() *Revision {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.head.revision
}

// HeadSnapshot returns the full item states of the head revision.
func (v *VersionControl) HeadSnapshot() *Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.head.snapshot
}

// Revision returns the revision with the given id.
func (v *VersionControl) Revision(id string) (*Revision, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revision(id)
}

func (v *VersionControl) revision(id string) (*Revision, error) {
	r, ok := v.revisions[id]
	if !ok {
		return nil, fault.New(fmt.Sprintf("revision %s not found", id), ftag.With(ftag.NotFound))
	}
	return r, nil
}

// Log returns the revisions from the head back to the root.
func (v *VersionControl) Log() []*Revision {
	v.mu.Lock()
	defer v.mu.Unlock()
	var ret []*Revision
	for r := v.head.revision; r != nil; r = r.parent {
		ret = append(ret, r)
	}
	return ret
}

// Capture copies the current state of every live item. Items of unknown
// logic types are left out.
func (v *VersionControl) Capture() []*RevisionItem {
	items := v.source.TrackedItems()
	ret := make([]*RevisionItem, 0, len(items))
	for _, item := range items {
		l, ok := v.schema[item.LogicType()]
		if !ok {
			v.log.Warn("item with unknown logic type is not versioned",
				zap.String("id", item.TrackedID()), zap.String("logic", item.LogicType()))
			continue
		}
		ret = append(ret, l.Capture(item))
	}
	return ret
}

// Status returns the changes of the live project against the head as an
// uncommitted revision.
func (v *VersionControl) Status() (*Revision, error) {
	return v.StatusOf(v.Capture())
}

// StatusOf returns the changes of the captured states against the head as an
// uncommitted revision.
func (v *VersionControl) StatusOf(live []*RevisionItem) (*Revision, error) {
	start := time.Now()
	defer func() { diffDuration.Observe(time.Since(start).Seconds()) }()
	v.mu.Lock()
	defer v.mu.Unlock()
	items, err := diffStates(v.head.snapshot, live, v.schema)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not compute status"), ftag.With(ftag.Internal))
	}
	return &Revision{Author: v.author, Timestamp: time.Now(), Items: items, parent: v.head.revision}, nil
}

// Commit records the pending changes of the items with the given ids, or of
// all items if no ids are given, as a new child revision of the head, and
// moves the head to it. Changes of other items stay pending.
func (v *VersionControl) Commit(message string, ids ...string) (*Revision, error) {
	pending, err := v.Status()
	if err != nil {
		return nil, err
	}
	items := filterItems(pending.Items, ids)
	if len(items) == 0 {
		return nil, fault.New("nothing to commit", ftag.With(ftag.InvalidArgument))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	rev := &Revision{
		ID:        ksuid.New().String(),
		Message:   message,
		Author:    v.author,
		Timestamp: time.Now(),
		Items:     items,
		parent:    v.head.revision,
	}
	snapshot := v.head.snapshot.clone()
	if err := snapshot.apply(rev, v.schema); err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not apply commit"), ftag.With(ftag.Internal))
	}
	v.head.revision.children = append(v.head.revision.children, rev)
	v.revisions[rev.ID] = rev
	v.order = append(v.order, rev)
	v.head = Head{revision: rev, snapshot: snapshot}
	commitsTotal.Inc()
	v.log.Info("committed", zap.String("revision", rev.ID), zap.Int("items", len(items)), zap.String("message", message))
	return rev, nil
}

// Checkout resets the live project to the state of the given revision and
// makes it the head. Uncommitted changes are lost.
func (v *VersionControl) Checkout(id string) error {
	v.mu.Lock()
	rev, err := v.revision(id)
	if err != nil {
		v.mu.Unlock()
		return err
	}
	snapshot, err := buildSnapshot(rev, v.schema)
	v.mu.Unlock()
	if err != nil {
		return fault.Wrap(err, fmsg.With("could not rebuild revision"), ftag.With(ftag.Internal))
	}
	if err := v.resetTo(snapshot, nil); err != nil {
		return err
	}
	v.mu.Lock()
	v.head = Head{revision: rev, snapshot: snapshot}
	v.mu.Unlock()
	checkoutsTotal.Inc()
	v.log.Info("checked out", zap.String("revision", id))
	return nil
}

// ResetChanges reverts the uncommitted changes of the items with the given
// ids, or of all items if no ids are given.
func (v *VersionControl) ResetChanges(ids ...string) error {
	return v.resetTo(v.HeadSnapshot(), ids)
}

// CherryPick applies the changes of a revision on top of the live items with
// the given ids, or all the items of the revision if no ids are given. The
// result is left uncommitted.
func (v *VersionControl) CherryPick(id string, ids ...string) error {
	rev, err := v.Revision(id)
	if err != nil {
		return err
	}
	return v.applyRevision(rev, ids)
}

// applyRevision merges the items of rev into the live items: added items are
// created or reset, removed items deleted and changed items merged with the
// live state.
func (v *VersionControl) applyRevision(rev *Revision, ids []string) error {
	live := map[string]TrackedItem{}
	for _, item := range v.source.TrackedItems() {
		live[item.TrackedID()] = item
	}
	var err error
	for _, item := range filterItems(rev.Items, ids) {
		target, exists := live[item.ID]
		switch item.Type {
		case ItemAdded:
			if exists {
				err = target.ResetStateTo(item)
			} else {
				err = v.source.InitTrackedItem(item)
			}
		case ItemRemoved:
			if exists {
				err = v.source.DeleteTrackedItem(item.ID)
			}
		case ItemChanged:
			if !exists {
				v.log.Warn("applied item does not exist", zap.String("id", item.ID), zap.String("revision", rev.ID))
				continue
			}
			var logic DiffLogic
			if logic, err = v.schema.Logic(item.Logic); err == nil {
				var merged *RevisionItem
				if merged, err = logic.Merge(v.schema[item.Logic].Capture(target), item); err == nil {
					err = target.ResetStateTo(merged)
				}
			}
		}
		if err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not apply item %s", item.ID)))
		}
	}
	v.source.OnResetState()
	return nil
}

// DiffRevisions returns the changes turning the state at revision from into
// the state at revision to.
func (v *VersionControl) DiffRevisions(from, to string) (*Revision, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, err := v.revision(from)
	if err != nil {
		return nil, err
	}
	b, err := v.revision(to)
	if err != nil {
		return nil, err
	}
	sa, err := buildSnapshot(a, v.schema)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.Internal))
	}
	sb, err := buildSnapshot(b, v.schema)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.Internal))
	}
	items, err := diffStates(sa, sb.Items(), v.schema)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(ftag.Internal))
	}
	return &Revision{Items: items, parent: a}, nil
}

// resetTo makes the live items listed in ids (all if empty) match the
// snapshot: extra items are deleted, missing ones created and changed ones
// reset. Unchanged items are not touched.
func (v *VersionControl) resetTo(snapshot *Snapshot, ids []string) error {
	selected := func(id string) bool {
		if len(ids) == 0 {
			return true
		}
		for _, i := range ids {
			if i == id {
				return true
			}
		}
		return false
	}
	seen := map[string]bool{}
	for _, item := range v.source.TrackedItems() {
		id := item.TrackedID()
		seen[id] = true
		if !selected(id) {
			continue
		}
		state, ok := snapshot.Item(id)
		if !ok {
			if err := v.source.DeleteTrackedItem(id); err != nil {
				return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not delete item %s", id)))
			}
			continue
		}
		l, ok := v.schema[item.LogicType()]
		if !ok {
			continue
		}
		if d, err := l.Diff(state, item); err == nil && d == nil {
			continue
		}
		if err := item.ResetStateTo(state); err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not reset item %s", id)))
		}
	}
	for _, state := range snapshot.Items() {
		if seen[state.ID] || !selected(state.ID) {
			continue
		}
		if err := v.source.InitTrackedItem(state); err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not create item %s", state.ID)))
		}
	}
	v.source.OnResetState()
	return nil
}

func filterItems(items []*RevisionItem, ids []string) []*RevisionItem {
	if len(ids) == 0 {
		return items
	}
	var ret []*RevisionItem
	for _, item := range items {
		for _, id := range ids {
			if item.ID == id {
				ret = append(ret, item)
				break
			}
		}
	}
	return ret
}
