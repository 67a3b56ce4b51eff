package midivcs

import (
	"fmt"
	"math"
)

type (
	// ID identifies an event or a clip inside the container that holds it.
	// IDs are short random base62 strings, see NewID; they are unique only
	// within one sequence or pattern.
	ID string

	// Kind is the discriminant of a stored item. Together with the ID, it
	// forms the identity key of the item: two items with the same kind and id
	// are the same item, whatever their other fields are.
	Kind int

	// Key is the identity key of a stored item.
	Key struct {
		Kind Kind
		ID   ID
	}

	// Placed is anything that sits at a beat position inside a container:
	// all the events and the clips.
	Placed interface {
		GetID() ID
		GetBeat() float32
		Kind() Kind
	}

	// Event is one musical data point in a sequence: a note, an automation
	// point, an annotation or a time/key signature marker.
	Event interface {
		Placed
		GetEndBeat() float32
	}

	// Element constrains the value types that can be stored in the ordered,
	// id indexed containers. Elements are comparable values, so "the stored
	// item matching this value" can be found without pointer identity.
	// WithID and WithBeat return modified copies.
	Element[E any] interface {
		comparable
		Placed
		WithID(id ID) E
		WithBeat(beat float32) E
	}
)

const (
	NoteKind Kind = iota
	AutomationKind
	AnnotationKind
	TimeSignatureKind
	KeySignatureKind
	ClipKind
)

var kindNames = [...]string{"note", "automation", "annotation", "timeSignature", "keySignature", "clip"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// KeyOf returns the identity key of p.
func KeyOf(p Placed) Key { return Key{Kind: p.Kind(), ID: p.GetID()} }

// ValidBeat reports whether beat can be used as a position on the timeline:
// it has to be finite and non-negative.
func ValidBeat(beat float32) bool {
	f := float64(beat)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && beat >= 0
}

// RoundBeat rounds beat to the nearest 1/1000th of a beat.
func RoundBeat(beat float32) float32 {
	return float32(math.Round(float64(beat)*1000) / 1000)
}

// SameContent reports whether a and b are equal in every field except their
// ids.
func SameContent[E Element[E]](a, b E) bool {
	return a.WithID("") == b.WithID("")
}

func clamp[T int | float32](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
