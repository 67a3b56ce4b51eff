package project

import "github.com/vsariola/midivcs"

// Pattern is the arrangement of a track: the clips placing the track's
// sequence on the timeline. It has the same vocabulary as any sequence,
// keyed by clip id.
type Pattern = Sequence[midivcs.Clip]

// defaultClip is the clip at beat 0 that new tracks start with. Patterns
// emptied later stay empty, also when saved and loaded or checked out.
func defaultClip() midivcs.Clip {
	return midivcs.NewClip(0).WithID(midivcs.NewID(func(midivcs.ID) bool { return false }))
}

// beatRangeWith combines the range of a sequence with the clip placements
// of a pattern. Without clips, the offsets are zero.
func beatRangeWith(firstBeat, lastBeat float32, p *Pattern) (first, last float32) {
	return firstBeat + p.FirstBeat(), lastBeat + p.LastBeat()
}
