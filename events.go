package midivcs

const (
	MaxKey          = 127
	MinNoteLength   = float32(1) / 16
	DefaultVelocity = float32(0.8)
)

// Note is a single note of a piano sequence. Beat and Length are in beats
// (quarter notes), Key is a MIDI key number and Velocity is normalized to
// 0..1. The MIDI channel of a note is a property of the track, not of the
// note.
type Note struct {
	ID       ID
	Beat     float32
	Key      int
	Length   float32
	Velocity float32
}

// NewNote returns a note with an empty id and all the fields clamped to
// their valid ranges.
func NewNote(beat float32, key int, length, velocity float32) Note {
	return Note{
		Beat:     beat,
		Key:      clamp(key, 0, MaxKey),
		Length:   max(length, MinNoteLength),
		Velocity: clamp(velocity, 0, 1),
	}
}

func (n Note) GetID() ID                    { return n.ID }
func (n Note) GetBeat() float32             { return n.Beat }
func (n Note) GetEndBeat() float32          { return n.Beat + n.Length }
func (n Note) Kind() Kind                   { return NoteKind }
func (n Note) WithID(id ID) Note            { n.ID = id; return n }
func (n Note) WithBeat(beat float32) Note   { n.Beat = beat; return n }
func (n Note) WithKey(key int) Note         { n.Key = clamp(key, 0, MaxKey); return n }
func (n Note) WithLength(l float32) Note    { n.Length = max(l, MinNoteLength); return n }
func (n Note) WithVelocity(v float32) Note  { n.Velocity = clamp(v, 0, 1); return n }
func (n Note) WithDeltaBeat(d float32) Note { n.Beat = max(n.Beat+d, 0); return n }
func (n Note) WithDeltaKey(d int) Note      { return n.WithKey(n.Key + d) }

// AutomationEvent is a point of an automation curve. Value is normalized to
// 0..1; Curvature shapes the segment towards the next point, 0.5 being
// linear.
type AutomationEvent struct {
	ID        ID
	Beat      float32
	Value     float32
	Curvature float32
}

const DefaultCurvature = float32(0.5)

// NewAutomationEvent returns an automation point with linear curvature. The
// beat is rounded to 1/1000th of a beat.
func NewAutomationEvent(beat, value float32) AutomationEvent {
	return AutomationEvent{
		Beat:      RoundBeat(beat),
		Value:     clamp(value, 0, 1),
		Curvature: DefaultCurvature,
	}
}

func (a AutomationEvent) GetID() ID           { return a.ID }
func (a AutomationEvent) GetBeat() float32    { return a.Beat }
func (a AutomationEvent) GetEndBeat() float32 { return a.Beat }
func (a AutomationEvent) Kind() Kind          { return AutomationKind }

func (a AutomationEvent) WithID(id ID) AutomationEvent { a.ID = id; return a }

func (a AutomationEvent) WithBeat(beat float32) AutomationEvent {
	a.Beat = RoundBeat(beat)
	return a
}

func (a AutomationEvent) WithValue(v float32) AutomationEvent {
	a.Value = clamp(v, 0, 1)
	return a
}

func (a AutomationEvent) WithCurvature(c float32) AutomationEvent {
	a.Curvature = clamp(c, 0, 1)
	return a
}

// AnnotationEvent is a text marker on the timeline.
type AnnotationEvent struct {
	ID     ID
	Beat   float32
	Text   string
	Colour Colour
	Length float32 `yaml:",omitempty"`
}

func NewAnnotationEvent(beat float32, text string, colour Colour) AnnotationEvent {
	return AnnotationEvent{Beat: beat, Text: text, Colour: colour}
}

func (a AnnotationEvent) GetID() ID           { return a.ID }
func (a AnnotationEvent) GetBeat() float32    { return a.Beat }
func (a AnnotationEvent) GetEndBeat() float32 { return a.Beat + a.Length }
func (a AnnotationEvent) Kind() Kind          { return AnnotationKind }

func (a AnnotationEvent) WithID(id ID) AnnotationEvent          { a.ID = id; return a }
func (a AnnotationEvent) WithBeat(beat float32) AnnotationEvent { a.Beat = beat; return a }
func (a AnnotationEvent) WithText(text string) AnnotationEvent  { a.Text = text; return a }

func (a AnnotationEvent) WithLength(l float32) AnnotationEvent {
	a.Length = max(l, 0)
	return a
}
