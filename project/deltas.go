package project

import (
	"fmt"

	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/vcs"
)

// Logic types of the tracked items.
const (
	PianoLogic      = "piano"
	AutomationLogic = "automation"
	TimelineLogic   = "timeline"
	InfoLogic       = "info"
)

// Fixed ids of the tracked items that exist once per project.
const (
	TimelineID = "timeline"
	InfoID     = "info"
)

const (
	PathDelta       vcs.DeltaType = "path"
	ColourDelta     vcs.DeltaType = "colour"
	InstrumentDelta vcs.DeltaType = "instrument"
	ChannelDelta    vcs.DeltaType = "channel"
	MuteDelta       vcs.DeltaType = "mute"
	ControllerDelta vcs.DeltaType = "controller"

	NotesAdded   vcs.DeltaType = "notesAdded"
	NotesRemoved vcs.DeltaType = "notesRemoved"
	NotesChanged vcs.DeltaType = "notesChanged"

	AutomationAdded   vcs.DeltaType = "automationAdded"
	AutomationRemoved vcs.DeltaType = "automationRemoved"
	AutomationChanged vcs.DeltaType = "automationChanged"

	ClipsAdded   vcs.DeltaType = "clipsAdded"
	ClipsRemoved vcs.DeltaType = "clipsRemoved"
	ClipsChanged vcs.DeltaType = "clipsChanged"

	AnnotationsAdded   vcs.DeltaType = "annotationsAdded"
	AnnotationsRemoved vcs.DeltaType = "annotationsRemoved"
	AnnotationsChanged vcs.DeltaType = "annotationsChanged"

	TimeSignaturesAdded   vcs.DeltaType = "timeSignaturesAdded"
	TimeSignaturesRemoved vcs.DeltaType = "timeSignaturesRemoved"
	TimeSignaturesChanged vcs.DeltaType = "timeSignaturesChanged"

	KeySignaturesAdded   vcs.DeltaType = "keySignaturesAdded"
	KeySignaturesRemoved vcs.DeltaType = "keySignaturesRemoved"
	KeySignaturesChanged vcs.DeltaType = "keySignaturesChanged"

	TitleDelta       vcs.DeltaType = "title"
	AuthorDelta      vcs.DeltaType = "author"
	DescriptionDelta vcs.DeltaType = "description"
	LicenseDelta     vcs.DeltaType = "license"
	TemperamentDelta vcs.DeltaType = "temperament"
)

var (
	trackScalars = []vcs.ScalarDelta{
		{Type: PathDelta, Name: "path"},
		{Type: ColourDelta, Name: "colour"},
		{Type: InstrumentDelta, Name: "instrument"},
		{Type: ChannelDelta, Name: "channel"},
		{Type: MuteDelta, Name: "mute"},
	}

	clipList = vcs.List[midivcs.Clip]{
		State: ClipsAdded, Added: ClipsAdded, Removed: ClipsRemoved, Changed: ClipsChanged,
		One: "clip", Many: "clips", None: "empty pattern",
	}

	schema = vcs.Schema{
		PianoLogic: {
			LogicType: PianoLogic,
			Scalars:   trackScalars,
			Lists: []vcs.ListDelta{
				vcs.List[midivcs.Note]{
					State: NotesAdded, Added: NotesAdded, Removed: NotesRemoved, Changed: NotesChanged,
					One: "note", Many: "notes", None: "empty sequence",
				},
				clipList,
			},
		},
		AutomationLogic: {
			LogicType: AutomationLogic,
			Scalars:   append(trackScalars[:len(trackScalars):len(trackScalars)], vcs.ScalarDelta{Type: ControllerDelta, Name: "controller"}),
			Lists: []vcs.ListDelta{
				vcs.List[midivcs.AutomationEvent]{
					State: AutomationAdded, Added: AutomationAdded, Removed: AutomationRemoved, Changed: AutomationChanged,
					One: "event", Many: "events", None: "empty sequence",
				},
				clipList,
			},
		},
		TimelineLogic: {
			LogicType: TimelineLogic,
			Lists: []vcs.ListDelta{
				vcs.List[midivcs.AnnotationEvent]{
					State: AnnotationsAdded, Added: AnnotationsAdded, Removed: AnnotationsRemoved, Changed: AnnotationsChanged,
					One: "annotation", Many: "annotations", None: "no annotations",
				},
				vcs.List[midivcs.TimeSignatureEvent]{
					State: TimeSignaturesAdded, Added: TimeSignaturesAdded, Removed: TimeSignaturesRemoved, Changed: TimeSignaturesChanged,
					One: "time signature", Many: "time signatures", None: "no time signatures",
				},
				vcs.List[midivcs.KeySignatureEvent]{
					State: KeySignaturesAdded, Added: KeySignaturesAdded, Removed: KeySignaturesRemoved, Changed: KeySignaturesChanged,
					One: "key signature", Many: "key signatures", None: "no key signatures",
				},
			},
		},
		InfoLogic: {
			LogicType: InfoLogic,
			Scalars: []vcs.ScalarDelta{
				{Type: TitleDelta, Name: "title"},
				{Type: AuthorDelta, Name: "author"},
				{Type: DescriptionDelta, Name: "description"},
				{Type: LicenseDelta, Name: "license"},
				{Type: TemperamentDelta, Name: "temperament"},
			},
		},
	}
)

// Schema returns the diff logics of all the tracked items of a project.
func Schema() vcs.Schema { return schema }

// layoutOf returns the layout of a logic type; the logic types used by the
// tracked items are always part of the schema.
func layoutOf(logic string) *vcs.Layout { return schema[logic] }

// delta returns the i-th delta of an item of the given logic type, whose
// payloads are produced by data.
func delta(logic string, i int, data func(vcs.DeltaType) vcs.DeltaData) vcs.Delta {
	l := layoutOf(logic)
	t := l.DeltaType(i)
	return vcs.Delta{Type: t, Description: l.Describe(t, data(t))}
}

func deltaData(logic string, i int, data func(vcs.DeltaType) vcs.DeltaData) vcs.DeltaData {
	return data(layoutOf(logic).DeltaType(i))
}

// stateReset collects the changes of a ResetStateTo call. All the deltas of
// the new state are decoded and validated first; the item is only mutated by
// apply, once everything has been validated.
type stateReset struct {
	steps   []func() bool
	changed bool
}

func (r *stateReset) add(step func() bool) { r.steps = append(r.steps, step) }

// apply runs the steps and reports whether any scalar step changed a value.
func (r *stateReset) apply() bool {
	for _, s := range r.steps {
		if s() {
			r.changed = true
		}
	}
	return r.changed
}

func checkLogic(state vcs.ItemState, logic string) error {
	if state.LogicType() != logic {
		return fmt.Errorf("cannot reset a %s item to a %s state", logic, state.LogicType())
	}
	return nil
}

func scalarOf(data vcs.DeltaData) (vcs.Scalar, error) {
	s, ok := data.(vcs.Scalar)
	if !ok {
		return "", fmt.Errorf("expected a scalar, got %T", data)
	}
	return s, nil
}

func itemsOf[E midivcs.Element[E]](data vcs.DeltaData) ([]E, error) {
	if data == nil {
		return nil, nil
	}
	items, ok := data.(vcs.Items[E])
	if !ok {
		return nil, fmt.Errorf("expected a list of %s, got %T", kindOf[E](), data)
	}
	return items, nil
}

// resetScalar adds a step assigning the decoded scalar to *field if it
// differs.
func resetScalar[T comparable](r *stateReset, field *T, v T) {
	r.add(func() bool {
		if *field == v {
			return false
		}
		*field = v
		return true
	})
}

// resetList adds a step replacing the events of s, if they differ.
func resetList[E midivcs.Element[E]](r *stateReset, s *Sequence[E], items []E) {
	r.add(func() bool {
		if !vcs.Items[E](s.store.items).Equal(vcs.Items[E](items)) {
			s.resetTo(items)
		}
		return false
	})
}
