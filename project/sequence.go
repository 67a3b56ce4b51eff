package project

import (
	"fmt"
	"iter"

	"github.com/vsariola/midivcs"
	"golang.org/x/exp/slices"
)

// Sequence is the ordered, de-duplicated collection of events (or clips) of
// one kind owned by a tracked item. Events are ordered by beat; events at the
// same beat keep their insertion order.
//
// Every mutation comes in two flavours. With undoable set, the mutation is
// wrapped in an action and performed through the project's undo stack; the
// action calls back the non-undoable flavour, which mutates the sequence and
// notifies the project's listeners. Failures (unknown id, invalid beat, an
// event equal in everything but the id already stored) are reported by a
// false return and leave the sequence untouched.
type Sequence[E midivcs.Element[E]] struct {
	store   store[E]
	item    string
	project *Project
}

func newSequence[E midivcs.Element[E]](p *Project, item string) *Sequence[E] {
	return &Sequence[E]{store: newStore[E](), item: item, project: p}
}

// sequenceFor returns the sequence of kind E owned by the tracked item, or
// nil if there is no such item or it does not have such sequence.
func sequenceFor[E midivcs.Element[E]](p *Project, item string) *Sequence[E] {
	owner, ok := p.sequenceOwner(item)
	if !ok {
		return nil
	}
	s, _ := owner.sequence(kindOf[E]()).(*Sequence[E])
	return s
}

func kindOf[E midivcs.Element[E]]() midivcs.Kind {
	var zero E
	return zero.Kind()
}

func (s *Sequence[E]) Kind() midivcs.Kind { return kindOf[E]() }
func (s *Sequence[E]) ItemID() string     { return s.item }
func (s *Sequence[E]) Len() int           { return s.store.len() }
func (s *Sequence[E]) At(i int) E         { return s.store.items[i] }

// Find returns the event with the given id.
func (s *Sequence[E]) Find(id midivcs.ID) (E, bool) { return s.store.get(id) }

// IndexOf returns the position of the event with the given id, or -1.
func (s *Sequence[E]) IndexOf(id midivcs.ID) int {
	e, ok := s.store.get(id)
	if !ok {
		return -1
	}
	i, _ := s.store.position(e)
	return i
}

// All iterates the events in order.
func (s *Sequence[E]) All() iter.Seq[E] {
	return func(yield func(E) bool) {
		for _, e := range s.store.items {
			if !yield(e) {
				return
			}
		}
	}
}

// Events returns a copy of the events, in order.
func (s *Sequence[E]) Events() []E { return slices.Clone(s.store.items) }

// FirstBeat returns the beat of the first event, or 0 if the sequence is
// empty.
func (s *Sequence[E]) FirstBeat() float32 {
	first, _ := s.store.beatRange()
	return first
}

// LastBeat returns the beat where the last event ends, or 0 if the sequence
// is empty.
func (s *Sequence[E]) LastBeat() float32 {
	_, last := s.store.beatRange()
	return last
}

func (s *Sequence[E]) Checkpoint()       { s.project.Checkpoint() }
func (s *Sequence[E]) Undo() bool        { return s.project.Undo() }
func (s *Sequence[E]) Redo() bool        { return s.project.Redo() }
func (s *Sequence[E]) ClearUndoHistory() { s.project.ClearUndoHistory() }

// Insert stores e. An empty id is replaced with a fresh one; the stored
// event is returned.
func (s *Sequence[E]) Insert(e E, undoable bool) (E, bool) {
	if !midivcs.ValidBeat(e.GetBeat()) {
		return e, false
	}
	if e.GetID() == "" {
		e = e.WithID(s.store.newID())
	}
	if undoable {
		return e, s.project.perform(&eventInsert[E]{Item: s.item, Event: e, p: s.project})
	}
	return e, s.insert(e)
}

// Remove removes the event with the id of e.
func (s *Sequence[E]) Remove(e E, undoable bool) bool {
	stored, ok := s.store.get(e.GetID())
	if !ok {
		return false
	}
	if undoable {
		return s.project.perform(&eventRemove[E]{Item: s.item, Event: stored, p: s.project})
	}
	return s.remove(stored.GetID())
}

// Change replaces the stored event with the id of before with after. The id
// of after is ignored.
func (s *Sequence[E]) Change(before, after E, undoable bool) bool {
	stored, ok := s.store.get(before.GetID())
	if !ok {
		return false
	}
	after = after.WithID(stored.GetID())
	if undoable {
		return s.project.perform(&eventChange[E]{Item: s.item, Before: stored, After: after, p: s.project})
	}
	return s.change(after)
}

// InsertGroup stores all the events, or none of them. Empty ids are replaced
// with fresh ones.
func (s *Sequence[E]) InsertGroup(es []E, undoable bool) bool {
	if len(es) == 0 {
		return false
	}
	es = slices.Clone(es)
	taken := map[midivcs.ID]bool{}
	for i, e := range es {
		if e.GetID() == "" {
			es[i] = e.WithID(midivcs.NewID(func(id midivcs.ID) bool { return taken[id] || s.store.has(id) }))
		}
		taken[es[i].GetID()] = true
	}
	if undoable {
		return s.project.perform(&eventGroupInsert[E]{Item: s.item, Events: es, p: s.project})
	}
	return s.insertGroup(es)
}

// RemoveGroup removes all the events, or none of them if any is missing.
func (s *Sequence[E]) RemoveGroup(es []E, undoable bool) bool {
	if len(es) == 0 {
		return false
	}
	stored := make([]E, len(es))
	for i, e := range es {
		var ok bool
		if stored[i], ok = s.store.get(e.GetID()); !ok {
			return false
		}
	}
	if undoable {
		return s.project.perform(&eventGroupRemove[E]{Item: s.item, Events: stored, p: s.project})
	}
	return s.removeGroup(stored)
}

// ChangeGroup replaces the stored events with the ids of before with the
// corresponding events of after. before and after must have the same length;
// anything else is a programming error and panics. An id listed twice in
// before fails the whole group.
func (s *Sequence[E]) ChangeGroup(before, after []E, undoable bool) bool {
	if len(before) != len(after) {
		panic(fmt.Sprintf("ChangeGroup: %d events before, %d after", len(before), len(after)))
	}
	if len(before) == 0 || repeatsID(before) {
		return false
	}
	stored := make([]E, len(before))
	changed := make([]E, len(after))
	for i, e := range before {
		var ok bool
		if stored[i], ok = s.store.get(e.GetID()); !ok {
			return false
		}
		changed[i] = after[i].WithID(e.GetID())
	}
	if undoable {
		return s.project.perform(&eventGroupChange[E]{Item: s.item, Before: stored, After: changed, p: s.project})
	}
	return s.changeGroup(changed)
}

// Reset removes all the events without undo. The ordinals of the removed ids
// are kept.
func (s *Sequence[E]) Reset() {
	s.store.clear()
	s.project.dispatcher.changeLayer(s.item, s.Kind())
	s.project.updateBeatRange()
}

func (s *Sequence[E]) insert(e E) bool {
	if e.GetID() == "" || !midivcs.ValidBeat(e.GetBeat()) || s.store.has(e.GetID()) || s.store.duplicate(e, "") {
		return false
	}
	s.store.put(e)
	s.project.dispatcher.addEvent(s.item, e)
	s.project.updateBeatRange()
	return true
}

func (s *Sequence[E]) remove(id midivcs.ID) bool {
	e, ok := s.store.get(id)
	if !ok {
		return false
	}
	s.project.dispatcher.removeEvent(s.item, e)
	s.store.delete(id)
	s.project.updateBeatRange()
	s.project.dispatcher.postRemoveEvent(s.item, s.Kind())
	return true
}

func (s *Sequence[E]) change(after E) bool {
	old, ok := s.store.get(after.GetID())
	if !ok || !midivcs.ValidBeat(after.GetBeat()) || s.store.duplicate(after, after.GetID()) {
		return false
	}
	if midivcs.SameContent(old, after) {
		return true
	}
	s.store.replace(after)
	s.project.dispatcher.changeEvent(s.item, old, after)
	s.project.updateBeatRange()
	return true
}

func (s *Sequence[E]) insertGroup(es []E) bool {
	ids := make(map[midivcs.ID]bool, len(es))
	contents := make(map[E]bool, len(es))
	for _, e := range es {
		c := e.WithID("")
		if e.GetID() == "" || !midivcs.ValidBeat(e.GetBeat()) || s.store.has(e.GetID()) || s.store.duplicate(e, "") ||
			ids[e.GetID()] || contents[c] {
			return false
		}
		ids[e.GetID()] = true
		contents[c] = true
	}
	for _, e := range es {
		s.store.put(e)
	}
	s.project.dispatcher.changeLayer(s.item, s.Kind())
	s.project.updateBeatRange()
	return true
}

func (s *Sequence[E]) removeGroup(es []E) bool {
	for _, e := range es {
		if !s.store.has(e.GetID()) {
			return false
		}
	}
	for _, e := range es {
		s.store.delete(e.GetID())
	}
	s.project.dispatcher.changeLayer(s.item, s.Kind())
	s.project.updateBeatRange()
	return true
}

func (s *Sequence[E]) changeGroup(after []E) bool {
	if repeatsID(after) {
		return false
	}
	olds := make([]E, 0, len(after))
	for _, e := range after {
		old, ok := s.store.get(e.GetID())
		if !ok || !midivcs.ValidBeat(e.GetBeat()) {
			return false
		}
		olds = append(olds, old)
	}
	for _, old := range olds {
		s.store.delete(old.GetID())
	}
	for i, e := range after {
		if s.store.has(e.GetID()) || s.store.duplicate(e, "") {
			// roll back: the group would have produced duplicates
			for _, done := range after[:i] {
				s.store.delete(done.GetID())
			}
			for _, old := range olds {
				s.store.put(old)
			}
			return false
		}
		s.store.put(e)
	}
	s.project.dispatcher.changeLayer(s.item, s.Kind())
	s.project.updateBeatRange()
	return true
}

func repeatsID[E midivcs.Element[E]](es []E) bool {
	seen := make(map[midivcs.ID]bool, len(es))
	for _, e := range es {
		if seen[e.GetID()] {
			return true
		}
		seen[e.GetID()] = true
	}
	return false
}

// silentImport appends e without undo, notifications or sorting; it returns
// false and skips e if it is invalid or already stored. finishImport must be
// called after the last silentImport.
func (s *Sequence[E]) silentImport(e E) bool {
	if e.GetID() == "" {
		e = e.WithID(s.store.newID())
	}
	if !midivcs.ValidBeat(e.GetBeat()) || s.store.has(e.GetID()) || s.store.duplicate(e, "") {
		return false
	}
	s.store.appendUnsorted(e)
	return true
}

func (s *Sequence[E]) finishImport() {
	s.store.sort()
	s.project.updateBeatRange()
	s.project.dispatcher.changeLayer(s.item, s.Kind())
}

// resetTo replaces the events with es, silently, and fires one
// notification.
func (s *Sequence[E]) resetTo(es []E) {
	s.load(es)
	s.project.updateBeatRange()
	s.project.dispatcher.changeLayer(s.item, s.Kind())
}

// load replaces the events with es without any notification.
func (s *Sequence[E]) load(es []E) {
	s.store.clear()
	for _, e := range es {
		s.silentImport(e)
	}
	s.store.sort()
}

// ShiftBeatGroup moves the events by delta beats.
func ShiftBeatGroup[E midivcs.Element[E]](s *Sequence[E], es []E, delta float32, undoable bool) bool {
	after := make([]E, len(es))
	for i, e := range es {
		after[i] = e.WithBeat(e.GetBeat() + delta)
	}
	return s.ChangeGroup(es, after, undoable)
}

// TransposeGroup moves the notes by delta semitones.
func TransposeGroup(s *Sequence[midivcs.Note], notes []midivcs.Note, delta int, undoable bool) bool {
	after := make([]midivcs.Note, len(notes))
	for i, n := range notes {
		after[i] = n.WithDeltaKey(delta)
	}
	return s.ChangeGroup(notes, after, undoable)
}
