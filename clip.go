package midivcs

// Clip places the content of a track's sequence at a position of the
// timeline. Key transposes the notes of the instance (-128..128) and
// Velocity scales their velocities (0..1). Clips are compared by value, and
// identified by their id inside the pattern holding them.
type Clip struct {
	ID       ID
	Beat     float32
	Key      int     `yaml:",omitempty"`
	Velocity float32 `yaml:",omitempty"`
	Mute     bool    `yaml:",omitempty"`
}

// NewClip returns an unmuted, untransposed clip with full velocity.
func NewClip(beat float32) Clip {
	return Clip{Beat: beat, Velocity: 1}
}

func (c Clip) GetID() ID            { return c.ID }
func (c Clip) GetBeat() float32     { return c.Beat }
func (c Clip) Kind() Kind           { return ClipKind }
func (c Clip) WithID(id ID) Clip    { c.ID = id; return c }
func (c Clip) WithMute(m bool) Clip { c.Mute = m; return c }

func (c Clip) WithBeat(beat float32) Clip { c.Beat = beat; return c }

func (c Clip) WithDeltaKey(d int) Clip {
	c.Key = clamp(c.Key+d, -128, 128)
	return c
}

func (c Clip) WithVelocity(v float32) Clip {
	c.Velocity = clamp(v, 0, 1)
	return c
}
