package midivcs

import (
	"fmt"
	"strconv"
	"strings"
)

// Colour is a 32-bit ARGB colour. It is serialized as an eight digit hex
// string, e.g. "ff3050a0".
type Colour uint32

const DefaultColour Colour = 0xffa0a0a0

func (c Colour) String() string { return fmt.Sprintf("%08x", uint32(c)) }

// ParseColour parses a hex colour: six digits are taken as an opaque RGB
// colour, eight digits as ARGB. A leading '#' is allowed.
func ParseColour(s string) (Colour, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return 0, fmt.Errorf("invalid colour %q: expected 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(s) == 6 {
		v |= 0xff000000
	}
	return Colour(v), nil
}

func (c Colour) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *Colour) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseColour(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
