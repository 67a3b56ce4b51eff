// Package project implements the editable, versioned MIDI project: tracks
// with their sequences and patterns, the timeline, the project info, the
// undoable actions on all of them and the persistence of the whole.
package project

import (
	"fmt"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/undo"
	"github.com/vsariola/midivcs/vcs"
	"go.uber.org/zap"
)

// Project is one open document. It is owned by a single goroutine: all the
// mutations, the undo stack and the notifications run on it. The only state
// shared with other goroutines is the list of tracked items, which the
// version control may enumerate from a background goroutine; it is guarded by
// a readers-writer lock.
type Project struct {
	mu     sync.RWMutex
	tracks []Track

	id         string
	info       *Info
	timeline   *Timeline
	undo       *undo.Stack
	dispatcher Dispatcher
	log        *zap.Logger

	first, last float32
}

// sequenceOwner is a tracked item owning sequences.
type sequenceOwner interface {
	sequence(kind midivcs.Kind) any
}

// New returns an empty project. A nil logger disables logging.
func New(limits undo.Limits, log *zap.Logger) *Project {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Project{id: uuid.NewString(), log: log.Named("project")}
	p.undo = undo.NewStack(limits, log)
	p.info = newInfo(p)
	p.timeline = newTimeline(p)
	return p
}

func (p *Project) ID() string                 { return p.id }
func (p *Project) Info() *Info                { return p.info }
func (p *Project) Timeline() *Timeline        { return p.timeline }
func (p *Project) UndoStack() *undo.Stack     { return p.undo }
func (p *Project) Dispatcher() *Dispatcher    { return &p.dispatcher }
func (p *Project) Checkpoint()                { p.undo.BeginNewTransaction("") }
func (p *Project) Undo() bool                 { return p.undo.Undo() }
func (p *Project) Redo() bool                 { return p.undo.Redo() }
func (p *Project) ClearUndoHistory()          { p.undo.ClearHistory() }
func (p *Project) perform(a undo.Action) bool { return p.undo.Perform(a) }

// BeginTransaction starts a new named transaction: the following undoable
// edits are undone together.
func (p *Project) BeginTransaction(name string) { p.undo.BeginNewTransaction(name) }

// Tracks returns a copy of the track list.
func (p *Project) Tracks() []Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ret := make([]Track, len(p.tracks))
	copy(ret, p.tracks)
	return ret
}

// Track returns the track with the given id.
func (p *Project) Track(id string) (Track, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tracks {
		if t.ID() == id {
			return t, true
		}
	}
	return nil, false
}

func (p *Project) sequenceOwner(item string) (sequenceOwner, bool) {
	if item == TimelineID {
		return p.timeline, true
	}
	t, ok := p.Track(item)
	return t, ok
}

// BeatRange returns the range covered by all the tracks and the timeline.
func (p *Project) BeatRange() (first, last float32) { return p.first, p.last }

// updateBeatRange recomputes the project range and notifies the listeners.
func (p *Project) updateBeatRange() {
	first, last, ok := p.timeline.beatRange()
	for _, t := range p.Tracks() {
		f, l := t.FirstBeat(), t.LastBeat()
		if !ok {
			first, last, ok = f, l, true
			continue
		}
		first, last = min(first, f), max(last, l)
	}
	p.first, p.last = first, last
	p.dispatcher.changeBeatRange(first, last)
}

// AddPianoTrack creates a piano track with one clip at beat 0.
func (p *Project) AddPianoTrack(path string, undoable bool) (*PianoTrack, bool) {
	t, ok := p.addTrack(newTrackRecord(PianoLogic, path), undoable)
	if !ok {
		return nil, false
	}
	return t.(*PianoTrack), true
}

// AddAutomationTrack creates an automation track for a MIDI controller, with
// one clip at beat 0.
func (p *Project) AddAutomationTrack(path string, controller int, undoable bool) (*AutomationTrack, bool) {
	rec := newTrackRecord(AutomationLogic, path)
	rec.Controller = clamp(controller, 0, MaxController)
	t, ok := p.addTrack(rec, undoable)
	if !ok {
		return nil, false
	}
	return t.(*AutomationTrack), true
}

func (p *Project) addTrack(rec trackRecord, undoable bool) (Track, bool) {
	var ok bool
	if undoable {
		ok = p.perform(&trackInsert{Track: rec, p: p})
	} else {
		ok = p.insertTrack(rec)
	}
	if !ok {
		return nil, false
	}
	return p.Track(rec.ID)
}

// RemoveTrack removes the track with the given id.
func (p *Project) RemoveTrack(id string, undoable bool) bool {
	t, ok := p.Track(id)
	if !ok {
		return false
	}
	if !undoable {
		return p.deleteTrack(id)
	}
	return p.perform(&trackRemove{Track: t.record(), p: p})
}

// insertTrack builds a track from its record and adds it to the project.
func (p *Project) insertTrack(rec trackRecord) bool {
	if _, exists := p.Track(rec.ID); exists {
		return false
	}
	t, err := p.buildTrack(rec)
	if err != nil {
		p.log.Warn("could not build track", zap.String("track", rec.ID), zap.Error(err))
		return false
	}
	p.registerTrack(t)
	return true
}

func (p *Project) registerTrack(t Track) {
	p.mu.Lock()
	p.tracks = append(p.tracks, t)
	p.mu.Unlock()
	p.dispatcher.addTrack(t)
	p.updateBeatRange()
}

func (p *Project) deleteTrack(id string) bool {
	p.mu.Lock()
	var removed Track
	for i, t := range p.tracks {
		if t.ID() == id {
			removed = t
			p.tracks = append(p.tracks[:i], p.tracks[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	if removed == nil {
		return false
	}
	p.dispatcher.removeTrack(removed)
	p.updateBeatRange()
	return true
}

// TrackedItems implements vcs.ItemsSource: the info, the timeline and the
// tracks, in this order.
func (p *Project) TrackedItems() []vcs.TrackedItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ret := make([]vcs.TrackedItem, 0, len(p.tracks)+2)
	ret = append(ret, p.info, p.timeline)
	for _, t := range p.tracks {
		ret = append(ret, t)
	}
	return ret
}

// InitTrackedItem implements vcs.ItemsSource. The info and the timeline
// always exist, so their states are just applied.
func (p *Project) InitTrackedItem(state vcs.ItemState) error {
	switch state.TrackedID() {
	case InfoID:
		return p.info.ResetStateTo(state)
	case TimelineID:
		return p.timeline.ResetStateTo(state)
	}
	if _, exists := p.Track(state.TrackedID()); exists {
		return fault.New(fmt.Sprintf("track %s already exists", state.TrackedID()), ftag.With(ftag.AlreadyExists))
	}
	switch state.LogicType() {
	case PianoLogic, AutomationLogic:
	default:
		return fault.New(fmt.Sprintf("unknown track type %q", state.LogicType()), ftag.With(ftag.InvalidArgument))
	}
	rec := newTrackRecord(state.LogicType(), "")
	rec.ID = state.TrackedID()
	t, err := p.buildTrack(rec)
	if err != nil {
		return fault.Wrap(err, ftag.With(ftag.Internal))
	}
	if err := t.ResetStateTo(state); err != nil {
		return fault.Wrap(err, ftag.With(ftag.InvalidArgument))
	}
	p.registerTrack(t)
	return nil
}

// DeleteTrackedItem implements vcs.ItemsSource. The info and the timeline
// cannot be deleted; they are reset to their defaults instead.
func (p *Project) DeleteTrackedItem(id string) error {
	switch id {
	case InfoID:
		p.info.reset()
		return nil
	case TimelineID:
		p.timeline.reset()
		return nil
	}
	if !p.deleteTrack(id) {
		return fault.New(fmt.Sprintf("track %s not found", id), ftag.With(ftag.NotFound))
	}
	return nil
}

// OnResetState implements vcs.ItemsSource. The undo history refers to states
// that may no longer exist, so it is dropped.
func (p *Project) OnResetState() {
	p.undo.ClearHistory()
	p.updateBeatRange()
	p.dispatcher.reloadProject()
}

// Clear removes all the tracks, the markers and the info, and drops the undo
// history.
func (p *Project) Clear() {
	for _, t := range p.Tracks() {
		p.deleteTrack(t.ID())
	}
	p.timeline.reset()
	p.info.reset()
	p.undo.ClearHistory()
	p.dispatcher.reloadProject()
}
