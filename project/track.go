package project

import (
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/vcs"
)

type (
	// Track is a versioned track of a project: either a *PianoTrack or an
	// *AutomationTrack. The id of a track is a UUID, immutable after
	// creation; the path is a slash separated name used for grouping, it is
	// not required to be unique.
	Track interface {
		vcs.TrackedItem
		ID() string
		Path() string
		Colour() midivcs.Colour
		Instrument() string
		Channel() int
		Mute() bool
		Pattern() *Pattern
		FirstBeat() float32
		LastBeat() float32

		SetPath(path string, undoable bool) bool
		SetColour(c midivcs.Colour, undoable bool) bool
		SetInstrument(id string, undoable bool) bool
		SetChannel(ch int, undoable bool) bool
		SetMute(mute bool, undoable bool) bool

		base() *MidiTrack
		sequence(kind midivcs.Kind) any
		record() trackRecord
	}

	// MidiTrack is the state common to all the tracks.
	MidiTrack struct {
		id         string
		path       string
		colour     midivcs.Colour
		instrument string
		channel    int
		mute       bool
		pattern    *Pattern
		project    *Project
		self       Track
	}

	PianoTrack struct {
		MidiTrack
		notes *Sequence[midivcs.Note]
	}

	// AutomationTrack is a track of automation points for one MIDI
	// controller.
	AutomationTrack struct {
		MidiTrack
		controller int
		events     *Sequence[midivcs.AutomationEvent]
	}
)

const (
	MinChannel    = 1
	MaxChannel    = 16
	MaxController = 127
)

func (t *MidiTrack) ID() string             { return t.id }
func (t *MidiTrack) TrackedID() string      { return t.id }
func (t *MidiTrack) Path() string           { return t.path }
func (t *MidiTrack) Colour() midivcs.Colour { return t.colour }
func (t *MidiTrack) Instrument() string     { return t.instrument }
func (t *MidiTrack) Channel() int           { return t.channel }
func (t *MidiTrack) Mute() bool             { return t.mute }
func (t *MidiTrack) Pattern() *Pattern      { return t.pattern }
func (t *MidiTrack) base() *MidiTrack       { return t }

func (t *MidiTrack) SetPath(path string, undoable bool) bool {
	return setTrackProperty(t, pathProperty, path, undoable)
}

func (t *MidiTrack) SetColour(c midivcs.Colour, undoable bool) bool {
	return setTrackProperty(t, colourProperty, c, undoable)
}

func (t *MidiTrack) SetInstrument(id string, undoable bool) bool {
	return setTrackProperty(t, instrumentProperty, id, undoable)
}

func (t *MidiTrack) SetChannel(ch int, undoable bool) bool {
	return setTrackProperty(t, channelProperty, clamp(ch, MinChannel, MaxChannel), undoable)
}

func (t *MidiTrack) SetMute(mute bool, undoable bool) bool {
	return setTrackProperty(t, muteProperty, mute, undoable)
}

func (t *MidiTrack) scalar(d vcs.DeltaType) vcs.DeltaData {
	switch d {
	case PathDelta:
		return vcs.Scalar(t.path)
	case ColourDelta:
		return vcs.ColourScalar(t.colour)
	case InstrumentDelta:
		return vcs.Scalar(t.instrument)
	case ChannelDelta:
		return vcs.IntScalar(t.channel)
	case MuteDelta:
		return vcs.BoolScalar(t.mute)
	case ClipsAdded:
		return vcs.Items[midivcs.Clip](t.pattern.Events())
	}
	return nil
}

// resetCommon decodes the deltas common to all the tracks. Unknown delta
// types are ignored.
func (t *MidiTrack) resetCommon(r *stateReset, typ vcs.DeltaType, data vcs.DeltaData) error {
	switch typ {
	case ClipsAdded:
		clips, err := itemsOf[midivcs.Clip](data)
		if err != nil {
			return err
		}
		r.add(func() bool {
			if !vcs.Items[midivcs.Clip](t.pattern.store.items).Equal(vcs.Items[midivcs.Clip](clips)) {
				t.pattern.resetTo(clips)
			}
			return false
		})
	case PathDelta:
		s, err := scalarOf(data)
		if err != nil {
			return err
		}
		resetScalar(r, &t.path, s.String())
	case InstrumentDelta:
		s, err := scalarOf(data)
		if err != nil {
			return err
		}
		resetScalar(r, &t.instrument, s.String())
	case ColourDelta:
		s, err := scalarOf(data)
		if err != nil {
			return err
		}
		c, err := s.Colour()
		if err != nil {
			return err
		}
		resetScalar(r, &t.colour, c)
	case ChannelDelta:
		s, err := scalarOf(data)
		if err != nil {
			return err
		}
		ch, err := s.Int()
		if err != nil {
			return err
		}
		resetScalar(r, &t.channel, clamp(ch, MinChannel, MaxChannel))
	case MuteDelta:
		s, err := scalarOf(data)
		if err != nil {
			return err
		}
		m, err := s.Bool()
		if err != nil {
			return err
		}
		resetScalar(r, &t.mute, m)
	}
	return nil
}

// finishReset applies a validated reset and notifies about changed
// properties.
func (t *MidiTrack) finishReset(r *stateReset) {
	if r.apply() {
		t.project.dispatcher.changeTrackProperties(t.self)
	}
}

func (t *PianoTrack) LogicType() string              { return PianoLogic }
func (t *PianoTrack) NumDeltas() int                 { return layoutOf(PianoLogic).NumDeltas() }
func (t *PianoTrack) Delta(i int) vcs.Delta          { return delta(PianoLogic, i, t.data) }
func (t *PianoTrack) DeltaData(i int) vcs.DeltaData  { return deltaData(PianoLogic, i, t.data) }
func (t *PianoTrack) Notes() *Sequence[midivcs.Note] { return t.notes }
func (t *PianoTrack) FirstBeat() float32             { f, _ := t.beatRange(); return f }
func (t *PianoTrack) LastBeat() float32              { _, l := t.beatRange(); return l }

func (t *PianoTrack) beatRange() (first, last float32) {
	return beatRangeWith(t.notes.FirstBeat(), t.notes.LastBeat(), t.pattern)
}

func (t *PianoTrack) data(d vcs.DeltaType) vcs.DeltaData {
	if d == NotesAdded {
		return vcs.Items[midivcs.Note](t.notes.Events())
	}
	return t.scalar(d)
}

func (t *PianoTrack) sequence(kind midivcs.Kind) any {
	switch kind {
	case midivcs.NoteKind:
		return t.notes
	case midivcs.ClipKind:
		return t.pattern
	}
	return nil
}

// ResetStateTo implements vcs.TrackedItem. Deltas missing from the state are
// left as they are; unknown delta types are ignored.
func (t *PianoTrack) ResetStateTo(state vcs.ItemState) error {
	if err := checkLogic(state, PianoLogic); err != nil {
		return err
	}
	var r stateReset
	for i := 0; i < state.NumDeltas(); i++ {
		typ, data := state.Delta(i).Type, state.DeltaData(i)
		if typ == NotesAdded {
			notes, err := itemsOf[midivcs.Note](data)
			if err != nil {
				return err
			}
			resetList(&r, t.notes, notes)
			continue
		}
		if err := t.resetCommon(&r, typ, data); err != nil {
			return err
		}
	}
	t.finishReset(&r)
	return nil
}

func (t *AutomationTrack) LogicType() string             { return AutomationLogic }
func (t *AutomationTrack) NumDeltas() int                { return layoutOf(AutomationLogic).NumDeltas() }
func (t *AutomationTrack) Delta(i int) vcs.Delta         { return delta(AutomationLogic, i, t.data) }
func (t *AutomationTrack) DeltaData(i int) vcs.DeltaData { return deltaData(AutomationLogic, i, t.data) }
func (t *AutomationTrack) Controller() int               { return t.controller }
func (t *AutomationTrack) FirstBeat() float32            { f, _ := t.beatRange(); return f }
func (t *AutomationTrack) LastBeat() float32             { _, l := t.beatRange(); return l }

func (t *AutomationTrack) Events() *Sequence[midivcs.AutomationEvent] { return t.events }

func (t *AutomationTrack) SetController(c int, undoable bool) bool {
	return setTrackProperty(&t.MidiTrack, controllerProperty, clamp(c, 0, MaxController), undoable)
}

func (t *AutomationTrack) beatRange() (first, last float32) {
	return beatRangeWith(t.events.FirstBeat(), t.events.LastBeat(), t.pattern)
}

func (t *AutomationTrack) data(d vcs.DeltaType) vcs.DeltaData {
	switch d {
	case AutomationAdded:
		return vcs.Items[midivcs.AutomationEvent](t.events.Events())
	case ControllerDelta:
		return vcs.IntScalar(t.controller)
	}
	return t.scalar(d)
}

func (t *AutomationTrack) sequence(kind midivcs.Kind) any {
	switch kind {
	case midivcs.AutomationKind:
		return t.events
	case midivcs.ClipKind:
		return t.pattern
	}
	return nil
}

// ResetStateTo implements vcs.TrackedItem. Deltas missing from the state are
// left as they are; unknown delta types are ignored.
func (t *AutomationTrack) ResetStateTo(state vcs.ItemState) error {
	if err := checkLogic(state, AutomationLogic); err != nil {
		return err
	}
	var r stateReset
	for i := 0; i < state.NumDeltas(); i++ {
		typ, data := state.Delta(i).Type, state.DeltaData(i)
		switch typ {
		case AutomationAdded:
			events, err := itemsOf[midivcs.AutomationEvent](data)
			if err != nil {
				return err
			}
			resetList(&r, t.events, events)
		case ControllerDelta:
			s, err := scalarOf(data)
			if err != nil {
				return err
			}
			c, err := s.Int()
			if err != nil {
				return err
			}
			resetScalar(&r, &t.controller, clamp(c, 0, MaxController))
		default:
			if err := t.resetCommon(&r, typ, data); err != nil {
				return err
			}
		}
	}
	t.finishReset(&r)
	return nil
}

func clamp(v, lo, hi int) int { return min(max(v, lo), hi) }
