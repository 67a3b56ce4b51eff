package midivcs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultNumerator   = 4
	DefaultDenominator = 4
)

// TimeSignatureEvent marks a meter change on the timeline.
type TimeSignatureEvent struct {
	ID          ID
	Beat        float32
	Numerator   int
	Denominator int
}

// NewTimeSignatureEvent returns a time signature with the numerator clamped
// to 2..64 and the denominator rounded up to a power of two and clamped to
// 2..32.
func NewTimeSignatureEvent(beat float32, numerator, denominator int) TimeSignatureEvent {
	return TimeSignatureEvent{
		Beat:        beat,
		Numerator:   clamp(numerator, 2, 64),
		Denominator: clamp(powerOfTwoAtLeast(denominator), 2, 32),
	}
}

// ParseTimeSignature parses meter strings like "3/4", "7-8" or "6|8". If the
// string does not have exactly two parts, the default 4/4 is returned along
// with an error.
func ParseTimeSignature(s string) (numerator, denominator int, err error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '\\' || r == '|' || r == '-'
	})
	if len(parts) != 2 {
		return DefaultNumerator, DefaultDenominator, fmt.Errorf("invalid time signature %q", s)
	}
	n, err := strconv.Atoi(strings.Trim(parts[0], " '\""))
	if err != nil {
		return DefaultNumerator, DefaultDenominator, fmt.Errorf("invalid time signature numerator: %w", err)
	}
	d, err := strconv.Atoi(strings.Trim(parts[1], " '\""))
	if err != nil {
		return DefaultNumerator, DefaultDenominator, fmt.Errorf("invalid time signature denominator: %w", err)
	}
	ts := NewTimeSignatureEvent(0, n, d)
	return ts.Numerator, ts.Denominator, nil
}

func powerOfTwoAtLeast(v int) int {
	if v <= 1 {
		return 1
	}
	return int(math.Pow(2, math.Ceil(math.Log2(float64(v)))))
}

func (t TimeSignatureEvent) GetID() ID           { return t.ID }
func (t TimeSignatureEvent) GetBeat() float32    { return t.Beat }
func (t TimeSignatureEvent) GetEndBeat() float32 { return t.Beat }
func (t TimeSignatureEvent) Kind() Kind          { return TimeSignatureKind }
func (t TimeSignatureEvent) String() string      { return fmt.Sprintf("%d/%d", t.Numerator, t.Denominator) }

func (t TimeSignatureEvent) WithID(id ID) TimeSignatureEvent          { t.ID = id; return t }
func (t TimeSignatureEvent) WithBeat(beat float32) TimeSignatureEvent { t.Beat = beat; return t }

// BarLength returns the length of one bar in beats (quarter notes).
func (t TimeSignatureEvent) BarLength() float32 {
	return float32(t.Numerator) * 4 / float32(t.Denominator)
}

var keyNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// KeySignatureEvent marks a key change on the timeline. RootKey is a
// chromatic index 0..11 (0 = C) and Scale is the scale name, e.g. "major".
type KeySignatureEvent struct {
	ID      ID
	Beat    float32
	RootKey int
	Scale   string
}

func NewKeySignatureEvent(beat float32, rootKey int, scale string) KeySignatureEvent {
	return KeySignatureEvent{Beat: beat, RootKey: ((rootKey % 12) + 12) % 12, Scale: scale}
}

func (k KeySignatureEvent) GetID() ID           { return k.ID }
func (k KeySignatureEvent) GetBeat() float32    { return k.Beat }
func (k KeySignatureEvent) GetEndBeat() float32 { return k.Beat }
func (k KeySignatureEvent) Kind() Kind          { return KeySignatureKind }

func (k KeySignatureEvent) WithID(id ID) KeySignatureEvent          { k.ID = id; return k }
func (k KeySignatureEvent) WithBeat(beat float32) KeySignatureEvent { k.Beat = beat; return k }

func (k KeySignatureEvent) String() string {
	return keyNames[((k.RootKey%12)+12)%12] + ", " + k.Scale
}
