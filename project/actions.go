package project

import (
	"fmt"

	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/undo"
	"gopkg.in/yaml.v3"
)

// Rough memory cost of the actions, in units, for bounding the undo history.
const (
	eventUnits  = 32
	trackUnits  = 128
	scalarUnits = 16
)

type (
	// Event actions refer to their sequence by the id of the tracked item
	// owning it (a track or the timeline) and the kind of the events. Events
	// are referred to by their ids.

	eventInsert[E midivcs.Element[E]] struct {
		Item  string
		Event E
		p     *Project
	}

	eventRemove[E midivcs.Element[E]] struct {
		Item  string
		Event E
		p     *Project
	}

	eventChange[E midivcs.Element[E]] struct {
		Item   string
		Before E
		After  E
		p      *Project
	}

	eventGroupInsert[E midivcs.Element[E]] struct {
		Item   string
		Events []E
		p      *Project
	}

	eventGroupRemove[E midivcs.Element[E]] struct {
		Item   string
		Events []E
		p      *Project
	}

	eventGroupChange[E midivcs.Element[E]] struct {
		Item   string
		Before []E
		After  []E
		p      *Project
	}

	trackInsert struct {
		Track trackRecord
		p     *Project
	}

	trackRemove struct {
		Track trackRecord
		p     *Project
	}

	// trackProperty describes one scalar property of a track for the
	// undoable setters.
	trackProperty[T comparable] struct {
		tag       string
		coalesces bool
		get       func(t *MidiTrack) T
		set       func(t *MidiTrack, v T) bool
	}

	trackChange[T comparable] struct {
		Track  string
		Before T
		After  T
		prop   *trackProperty[T]
		p      *Project
	}

	infoChange struct {
		Field  InfoField
		Before string
		After  string
		p      *Project
	}

	// attachable is an action that needs the project to resolve its target
	// after being decoded.
	attachable[A any] interface {
		*A
		undo.Action
		attach(p *Project)
	}

	actionDecoder func(p *Project, n *yaml.Node) (undo.Action, error)
)

var (
	pathProperty = &trackProperty[string]{
		tag: "trackRename", coalesces: true,
		get: func(t *MidiTrack) string { return t.path },
		set: func(t *MidiTrack, v string) bool { t.path = v; return true },
	}
	colourProperty = &trackProperty[midivcs.Colour]{
		tag: "trackColour", coalesces: true,
		get: func(t *MidiTrack) midivcs.Colour { return t.colour },
		set: func(t *MidiTrack, v midivcs.Colour) bool { t.colour = v; return true },
	}
	instrumentProperty = &trackProperty[string]{
		tag: "trackInstrument", coalesces: true,
		get: func(t *MidiTrack) string { return t.instrument },
		set: func(t *MidiTrack, v string) bool { t.instrument = v; return true },
	}
	channelProperty = &trackProperty[int]{
		tag: "trackChannel", coalesces: true,
		get: func(t *MidiTrack) int { return t.channel },
		set: func(t *MidiTrack, v int) bool { t.channel = clamp(v, MinChannel, MaxChannel); return true },
	}
	muteProperty = &trackProperty[bool]{
		tag: "trackMute",
		get: func(t *MidiTrack) bool { return t.mute },
		set: func(t *MidiTrack, v bool) bool { t.mute = v; return true },
	}
	controllerProperty = &trackProperty[int]{
		tag: "trackController", coalesces: true,
		get: func(t *MidiTrack) int {
			if a, ok := t.self.(*AutomationTrack); ok {
				return a.controller
			}
			return 0
		},
		set: func(t *MidiTrack, v int) bool {
			a, ok := t.self.(*AutomationTrack)
			if ok {
				a.controller = clamp(v, 0, MaxController)
			}
			return ok
		},
	}
)

// actionDecoders is the closed table of all the action tags a project can
// decode. It is built once and never modified.
var actionDecoders = buildActionDecoders()

func buildActionDecoders() map[string]actionDecoder {
	m := map[string]actionDecoder{
		"trackInsert": decodeAction[trackInsert],
		"trackRemove": decodeAction[trackRemove],
		"infoChange":  decodeAction[infoChange],
	}
	addEventDecoders[midivcs.Note](m)
	addEventDecoders[midivcs.AutomationEvent](m)
	addEventDecoders[midivcs.AnnotationEvent](m)
	addEventDecoders[midivcs.TimeSignatureEvent](m)
	addEventDecoders[midivcs.KeySignatureEvent](m)
	addEventDecoders[midivcs.Clip](m)
	addPropertyDecoder(m, pathProperty)
	addPropertyDecoder(m, colourProperty)
	addPropertyDecoder(m, instrumentProperty)
	addPropertyDecoder(m, channelProperty)
	addPropertyDecoder(m, muteProperty)
	addPropertyDecoder(m, controllerProperty)
	return m
}

func addEventDecoders[E midivcs.Element[E]](m map[string]actionDecoder) {
	k := kindOf[E]().String()
	m[k+"Insert"] = decodeAction[eventInsert[E]]
	m[k+"Remove"] = decodeAction[eventRemove[E]]
	m[k+"Change"] = decodeAction[eventChange[E]]
	m[k+"GroupInsert"] = decodeAction[eventGroupInsert[E]]
	m[k+"GroupRemove"] = decodeAction[eventGroupRemove[E]]
	m[k+"GroupChange"] = decodeAction[eventGroupChange[E]]
}

func addPropertyDecoder[T comparable](m map[string]actionDecoder, prop *trackProperty[T]) {
	m[prop.tag] = func(p *Project, n *yaml.Node) (undo.Action, error) {
		a := &trackChange[T]{prop: prop, p: p}
		if err := n.Decode(a); err != nil {
			return nil, err
		}
		return a, nil
	}
}

func decodeAction[A any, PA attachable[A]](p *Project, n *yaml.Node) (undo.Action, error) {
	a := PA(new(A))
	if err := n.Decode(a); err != nil {
		return nil, err
	}
	a.attach(p)
	return a, nil
}

// DecodeAction implements undo.Decoder.
func (p *Project) DecodeAction(tag string, data *yaml.Node) (undo.Action, error) {
	d, ok := actionDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("%q: %w", tag, undo.ErrUnknownTag)
	}
	return d(p, data)
}

func (a *eventInsert[E]) attach(p *Project)      { a.p = p }
func (a *eventInsert[E]) Tag() string            { return kindOf[E]().String() + "Insert" }
func (a *eventInsert[E]) SizeInUnits() int       { return eventUnits }
func (a *eventRemove[E]) attach(p *Project)      { a.p = p }
func (a *eventRemove[E]) Tag() string            { return kindOf[E]().String() + "Remove" }
func (a *eventRemove[E]) SizeInUnits() int       { return eventUnits }
func (a *eventChange[E]) attach(p *Project)      { a.p = p }
func (a *eventChange[E]) Tag() string            { return kindOf[E]().String() + "Change" }
func (a *eventChange[E]) SizeInUnits() int       { return 2 * eventUnits }
func (a *eventGroupInsert[E]) attach(p *Project) { a.p = p }
func (a *eventGroupInsert[E]) Tag() string       { return kindOf[E]().String() + "GroupInsert" }
func (a *eventGroupInsert[E]) SizeInUnits() int  { return len(a.Events) * eventUnits }
func (a *eventGroupRemove[E]) attach(p *Project) { a.p = p }
func (a *eventGroupRemove[E]) Tag() string       { return kindOf[E]().String() + "GroupRemove" }
func (a *eventGroupRemove[E]) SizeInUnits() int  { return len(a.Events) * eventUnits }
func (a *eventGroupChange[E]) attach(p *Project) { a.p = p }
func (a *eventGroupChange[E]) Tag() string       { return kindOf[E]().String() + "GroupChange" }
func (a *eventGroupChange[E]) SizeInUnits() int  { return (len(a.Before) + len(a.After)) * eventUnits }

func (a *eventInsert[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.insert(a.Event) })
}

func (a *eventInsert[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.remove(a.Event.GetID()) })
}

func (a *eventRemove[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.remove(a.Event.GetID()) })
}

func (a *eventRemove[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.insert(a.Event) })
}

func (a *eventChange[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.change(a.After) })
}

func (a *eventChange[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.change(a.Before) })
}

func (a *eventGroupInsert[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.insertGroup(a.Events) })
}

func (a *eventGroupInsert[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.removeGroup(a.Events) })
}

func (a *eventGroupRemove[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.removeGroup(a.Events) })
}

func (a *eventGroupRemove[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.insertGroup(a.Events) })
}

func (a *eventGroupChange[E]) Perform() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.changeGroup(a.After) })
}

func (a *eventGroupChange[E]) Undo() bool {
	return withSequence(a.p, a.Item, func(s *Sequence[E]) bool { return s.changeGroup(a.Before) })
}

// Coalesce merges consecutive changes of the same event.
func (a *eventChange[E]) Coalesce(next undo.Action) (undo.Action, bool) {
	n, ok := next.(*eventChange[E])
	if !ok || n.Item != a.Item || midivcs.KeyOf(n.Before) != midivcs.KeyOf(a.After) {
		return nil, false
	}
	return &eventChange[E]{Item: a.Item, Before: a.Before, After: n.After, p: a.p}, true
}

// Coalesce merges consecutive changes of the same group of events, e.g. the
// steps of dragging a selection.
func (a *eventGroupChange[E]) Coalesce(next undo.Action) (undo.Action, bool) {
	n, ok := next.(*eventGroupChange[E])
	if !ok || n.Item != a.Item || len(n.Before) != len(a.After) {
		return nil, false
	}
	for i := range a.After {
		if midivcs.KeyOf(a.After[i]) != midivcs.KeyOf(n.Before[i]) {
			return nil, false
		}
	}
	return &eventGroupChange[E]{Item: a.Item, Before: a.Before, After: n.After, p: a.p}, true
}

func withSequence[E midivcs.Element[E]](p *Project, item string, f func(s *Sequence[E]) bool) bool {
	if p == nil {
		return false
	}
	s := sequenceFor[E](p, item)
	return s != nil && f(s)
}

func (a *trackInsert) attach(p *Project) { a.p = p }
func (a *trackInsert) Tag() string       { return "trackInsert" }
func (a *trackInsert) SizeInUnits() int  { return a.Track.sizeInUnits() }
func (a *trackInsert) Perform() bool     { return a.p.insertTrack(a.Track) }
func (a *trackInsert) Undo() bool        { return a.p.deleteTrack(a.Track.ID) }
func (a *trackRemove) attach(p *Project) { a.p = p }
func (a *trackRemove) Tag() string       { return "trackRemove" }
func (a *trackRemove) SizeInUnits() int  { return a.Track.sizeInUnits() }
func (a *trackRemove) Perform() bool     { return a.p.deleteTrack(a.Track.ID) }
func (a *trackRemove) Undo() bool        { return a.p.insertTrack(a.Track) }

func (a *trackChange[T]) Tag() string      { return a.prop.tag }
func (a *trackChange[T]) SizeInUnits() int { return scalarUnits }
func (a *trackChange[T]) Perform() bool    { return a.apply(a.After) }
func (a *trackChange[T]) Undo() bool       { return a.apply(a.Before) }

func (a *trackChange[T]) apply(v T) bool {
	t, ok := a.p.Track(a.Track)
	if !ok {
		return false
	}
	b := t.base()
	if !a.prop.set(b, v) {
		return false
	}
	a.p.dispatcher.changeTrackProperties(t)
	return true
}

// Coalesce merges consecutive changes of the same property of the same
// track, e.g. the steps of dragging a colour picker.
func (a *trackChange[T]) Coalesce(next undo.Action) (undo.Action, bool) {
	n, ok := next.(*trackChange[T])
	if !ok || !a.prop.coalesces || n.prop != a.prop || n.Track != a.Track {
		return nil, false
	}
	return &trackChange[T]{Track: a.Track, Before: a.Before, After: n.After, prop: a.prop, p: a.p}, true
}

// setTrackProperty is the common implementation of the track setters.
func setTrackProperty[T comparable](t *MidiTrack, prop *trackProperty[T], v T, undoable bool) bool {
	if prop.get(t) == v {
		return false
	}
	if undoable {
		return t.project.perform(&trackChange[T]{Track: t.id, Before: prop.get(t), After: v, prop: prop, p: t.project})
	}
	if !prop.set(t, v) {
		return false
	}
	t.project.dispatcher.changeTrackProperties(t.self)
	return true
}

func (a *infoChange) attach(p *Project) { a.p = p }
func (a *infoChange) Tag() string       { return "infoChange" }
func (a *infoChange) SizeInUnits() int  { return scalarUnits + len(a.Before) + len(a.After) }
func (a *infoChange) Perform() bool     { return a.p.info.set(a.Field, a.After) }
func (a *infoChange) Undo() bool        { return a.p.info.set(a.Field, a.Before) }

// Coalesce merges consecutive edits of the same field, e.g. typing.
func (a *infoChange) Coalesce(next undo.Action) (undo.Action, bool) {
	n, ok := next.(*infoChange)
	if !ok || n.Field != a.Field {
		return nil, false
	}
	return &infoChange{Field: a.Field, Before: a.Before, After: n.After, p: a.p}, true
}
