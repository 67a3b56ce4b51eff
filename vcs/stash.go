package vcs

import (
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Stash records the pending changes of the items with the given ids, or of
// all items if no ids are given, as a stash: a revision kept outside of the
// revision tree. Unless keep is set, the stashed changes are reverted.
func (v *VersionControl) Stash(message string, keep bool, ids ...string) (*Revision, error) {
	pending, err := v.Status()
	if err != nil {
		return nil, err
	}
	items := filterItems(pending.Items, ids)
	if len(items) == 0 {
		return nil, fault.New("nothing to stash", ftag.With(ftag.InvalidArgument))
	}
	v.mu.Lock()
	rev := &Revision{ID: ksuid.New().String(), Message: message, Author: v.author, Timestamp: time.Now(), Items: items}
	v.stashes = append(v.stashes, rev)
	v.mu.Unlock()
	stashesTotal.Inc()
	v.log.Info("stashed", zap.String("stash", rev.ID), zap.Int("items", len(items)), zap.String("message", message))
	if keep {
		return rev, nil
	}
	if err := v.ResetChanges(itemIDs(items)...); err != nil {
		return nil, err
	}
	return rev, nil
}

// Stashes returns the stashes, oldest first. The quick stash is not included.
func (v *VersionControl) Stashes() []*Revision {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.stashes)
}

// ApplyStash applies the changes of a stash on top of the live items, the
// same way as CherryPick. The stash is dropped unless keep is set.
func (v *VersionControl) ApplyStash(id string, keep bool) error {
	v.mu.Lock()
	i := v.stashIndex(id)
	if i < 0 {
		v.mu.Unlock()
		return fault.New(fmt.Sprintf("stash %s not found", id), ftag.With(ftag.NotFound))
	}
	rev := v.stashes[i]
	v.mu.Unlock()
	if err := v.applyRevision(rev, nil); err != nil {
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not apply stash %s", id)))
	}
	if !keep {
		v.DropStash(id)
	}
	v.log.Info("applied stash", zap.String("stash", id), zap.Bool("kept", keep))
	return nil
}

// DropStash removes a stash without applying it.
func (v *VersionControl) DropStash(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	i := v.stashIndex(id)
	if i < 0 {
		return fault.New(fmt.Sprintf("stash %s not found", id), ftag.With(ftag.NotFound))
	}
	v.stashes = slices.Delete(v.stashes, i, i+1)
	return nil
}

func (v *VersionControl) stashIndex(id string) int {
	return slices.IndexFunc(v.stashes, func(r *Revision) bool { return r.ID == id })
}

func (v *VersionControl) HasQuickStash() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quickStash != nil
}

// QuickStashAll moves all pending changes to the quick stash and reverts
// them. There is only one quick stash; it must be applied before stashing
// again.
func (v *VersionControl) QuickStashAll() error {
	if v.HasQuickStash() {
		return fault.New("the quick stash is already in use", ftag.With(ftag.AlreadyExists))
	}
	pending, err := v.Status()
	if err != nil {
		return err
	}
	if pending.IsEmpty() {
		return fault.New("nothing to stash", ftag.With(ftag.InvalidArgument))
	}
	v.mu.Lock()
	pending.ID = ksuid.New().String()
	pending.Message = "quick stash"
	pending.parent = nil
	v.quickStash = pending
	v.mu.Unlock()
	stashesTotal.Inc()
	return v.ResetChanges()
}

// ApplyQuickStash applies the quick stash on top of the live items and
// empties it.
func (v *VersionControl) ApplyQuickStash() error {
	v.mu.Lock()
	rev := v.quickStash
	v.mu.Unlock()
	if rev == nil {
		return fault.New("the quick stash is empty", ftag.With(ftag.NotFound))
	}
	if err := v.applyRevision(rev, nil); err != nil {
		return fault.Wrap(err, fmsg.With("could not apply the quick stash"))
	}
	v.mu.Lock()
	v.quickStash = nil
	v.mu.Unlock()
	return nil
}

// QuickAmend folds the pending changes of the given items into the head
// revision: the head records their full live state, and they are no longer
// pending. The root revision cannot be amended.
func (v *VersionControl) QuickAmend(ids ...string) error {
	if len(ids) == 0 {
		return fault.New("no items to amend", ftag.With(ftag.InvalidArgument))
	}
	live := map[string]*RevisionItem{}
	for _, item := range v.Capture() {
		live[item.ID] = item
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	head := v.head.revision
	if head == v.root {
		return fault.New("cannot amend the root revision", ftag.With(ftag.InvalidArgument))
	}
	items := slices.Clone(head.Items)
	for _, id := range ids {
		state, ok := live[id]
		if !ok {
			return fault.New(fmt.Sprintf("no item %s to amend", id), ftag.With(ftag.NotFound))
		}
		state = state.withType(ItemAdded)
		if i := slices.IndexFunc(items, func(r *RevisionItem) bool { return r.ID == id }); i >= 0 {
			items[i] = state
		} else {
			items = append(items, state)
		}
	}
	amended := *head
	amended.Items = items
	snapshot, err := buildSnapshot(&amended, v.schema)
	if err != nil {
		return fault.Wrap(err, fmsg.With("could not amend the head"), ftag.With(ftag.Internal))
	}
	head.Items = items
	v.head.snapshot = snapshot
	v.log.Info("amended", zap.String("revision", head.ID), zap.Strings("items", ids))
	return nil
}

func itemIDs(items []*RevisionItem) []string {
	ret := make([]string, len(items))
	for i, item := range items {
		ret[i] = item.ID
	}
	return ret
}
