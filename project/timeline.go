package project

import (
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/vcs"
)

// Timeline holds the project wide markers: annotations, time signatures and
// key signatures. There is exactly one timeline per project.
type Timeline struct {
	annotations    *Sequence[midivcs.AnnotationEvent]
	timeSignatures *Sequence[midivcs.TimeSignatureEvent]
	keySignatures  *Sequence[midivcs.KeySignatureEvent]
}

func newTimeline(p *Project) *Timeline {
	return &Timeline{
		annotations:    newSequence[midivcs.AnnotationEvent](p, TimelineID),
		timeSignatures: newSequence[midivcs.TimeSignatureEvent](p, TimelineID),
		keySignatures:  newSequence[midivcs.KeySignatureEvent](p, TimelineID),
	}
}

func (t *Timeline) Annotations() *Sequence[midivcs.AnnotationEvent]       { return t.annotations }
func (t *Timeline) TimeSignatures() *Sequence[midivcs.TimeSignatureEvent] { return t.timeSignatures }
func (t *Timeline) KeySignatures() *Sequence[midivcs.KeySignatureEvent]   { return t.keySignatures }

func (t *Timeline) sequence(kind midivcs.Kind) any {
	switch kind {
	case midivcs.AnnotationKind:
		return t.annotations
	case midivcs.TimeSignatureKind:
		return t.timeSignatures
	case midivcs.KeySignatureKind:
		return t.keySignatures
	}
	return nil
}

func (t *Timeline) beatRange() (first, last float32, ok bool) {
	type ranged interface {
		Len() int
		FirstBeat() float32
		LastBeat() float32
	}
	for _, s := range []ranged{t.annotations, t.timeSignatures, t.keySignatures} {
		if s.Len() == 0 {
			continue
		}
		if !ok {
			first, last, ok = s.FirstBeat(), s.LastBeat(), true
			continue
		}
		first, last = min(first, s.FirstBeat()), max(last, s.LastBeat())
	}
	return first, last, ok
}

// TimeSignatureAt returns the time signature in effect at beat, or 4/4 if
// there is none before it.
func (t *Timeline) TimeSignatureAt(beat float32) midivcs.TimeSignatureEvent {
	ret := midivcs.NewTimeSignatureEvent(0, 4, 4)
	for e := range t.timeSignatures.All() {
		if e.Beat > beat {
			break
		}
		ret = e
	}
	return ret
}

func (t *Timeline) TrackedID() string { return TimelineID }
func (t *Timeline) LogicType() string { return TimelineLogic }
func (t *Timeline) NumDeltas() int    { return layoutOf(TimelineLogic).NumDeltas() }

func (t *Timeline) Delta(i int) vcs.Delta         { return delta(TimelineLogic, i, t.data) }
func (t *Timeline) DeltaData(i int) vcs.DeltaData { return deltaData(TimelineLogic, i, t.data) }

func (t *Timeline) data(d vcs.DeltaType) vcs.DeltaData {
	switch d {
	case AnnotationsAdded:
		return vcs.Items[midivcs.AnnotationEvent](t.annotations.Events())
	case TimeSignaturesAdded:
		return vcs.Items[midivcs.TimeSignatureEvent](t.timeSignatures.Events())
	case KeySignaturesAdded:
		return vcs.Items[midivcs.KeySignatureEvent](t.keySignatures.Events())
	}
	return nil
}

// ResetStateTo implements vcs.TrackedItem.
func (t *Timeline) ResetStateTo(state vcs.ItemState) error {
	if err := checkLogic(state, TimelineLogic); err != nil {
		return err
	}
	var r stateReset
	for i := 0; i < state.NumDeltas(); i++ {
		data := state.DeltaData(i)
		switch state.Delta(i).Type {
		case AnnotationsAdded:
			es, err := itemsOf[midivcs.AnnotationEvent](data)
			if err != nil {
				return err
			}
			resetList(&r, t.annotations, es)
		case TimeSignaturesAdded:
			es, err := itemsOf[midivcs.TimeSignatureEvent](data)
			if err != nil {
				return err
			}
			resetList(&r, t.timeSignatures, es)
		case KeySignaturesAdded:
			es, err := itemsOf[midivcs.KeySignatureEvent](data)
			if err != nil {
				return err
			}
			resetList(&r, t.keySignatures, es)
		}
	}
	r.apply()
	return nil
}

// reset removes all the markers.
func (t *Timeline) reset() {
	t.annotations.Reset()
	t.timeSignatures.Reset()
	t.keySignatures.Reset()
}
