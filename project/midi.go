package project

import (
	"cmp"
	"fmt"
	"io"
	"math"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/vsariola/midivcs"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const DefaultResolution = 960

type (
	// midiFile is the content of a standard MIDI file, converted to beats.
	midiFile struct {
		tracks         []midiTrack
		timeSignatures []midivcs.TimeSignatureEvent
		markers        []midivcs.AnnotationEvent
		skipped        int
	}

	midiTrack struct {
		name    string
		channel int
		notes   []midivcs.Note
		cc      map[int][]midivcs.AutomationEvent
	}

	noteStart struct {
		tick     int64
		velocity uint8
	}

	// timedTrack collects messages at absolute ticks and turns them into an
	// SMF track. At equal ticks, note offs come before everything else.
	timedTrack struct {
		events []timedEvent
	}

	timedEvent struct {
		tick int64
		off  bool
		msg  []byte
	}
)

// readMidi parses a whole SMF. Notes are built from note on/off pairs; note
// offs without a matching note on and notes left open at the end of a track
// are skipped.
func readMidi(r io.Reader) (*midiFile, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("could not parse MIDI file"), ftag.With(ftag.InvalidArgument))
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || ticks.Resolution() == 0 {
		return nil, fault.New("only metric time formats are supported", ftag.With(ftag.InvalidArgument))
	}
	res := float64(ticks.Resolution())
	beat := func(tick int64) float32 { return float32(float64(tick) / res) }
	f := &midiFile{}
	for _, track := range s.Tracks {
		mt := midiTrack{cc: map[int][]midivcs.AutomationEvent{}}
		open := map[[2]uint8][]noteStart{}
		var tick int64
		for _, ev := range track {
			tick += int64(ev.Delta)
			var ch, key, vel, cc, val, num, den, cpt, dsqpq uint8
			var text string
			switch msg := ev.Message; {
			case msg.GetNoteStart(&ch, &key, &vel):
				k := [2]uint8{ch, key}
				open[k] = append(open[k], noteStart{tick: tick, velocity: vel})
				mt.useChannel(ch)
			case msg.GetNoteEnd(&ch, &key):
				k := [2]uint8{ch, key}
				starts := open[k]
				if len(starts) == 0 {
					f.skipped++
					continue
				}
				start := starts[0]
				open[k] = starts[1:]
				n := midivcs.NewNote(beat(start.tick), int(key), beat(tick-start.tick), float32(start.velocity)/127)
				mt.notes = append(mt.notes, n)
			case msg.GetControlChange(&ch, &cc, &val):
				mt.cc[int(cc)] = append(mt.cc[int(cc)], midivcs.NewAutomationEvent(beat(tick), float32(val)/127))
				mt.useChannel(ch)
			case msg.GetMetaTimeSig(&num, &den, &cpt, &dsqpq):
				f.timeSignatures = append(f.timeSignatures, midivcs.NewTimeSignatureEvent(beat(tick), int(num), int(den)))
			case msg.GetMetaMarker(&text):
				f.markers = append(f.markers, midivcs.NewAnnotationEvent(beat(tick), text, midivcs.DefaultColour))
			case msg.GetMetaTrackName(&text):
				mt.name = text
			}
		}
		for _, starts := range open {
			f.skipped += len(starts)
		}
		f.tracks = append(f.tracks, mt)
	}
	return f, nil
}

func (t *midiTrack) useChannel(ch uint8) {
	if t.channel == 0 {
		t.channel = int(ch) + 1
	}
}

// ImportMidi replaces the project with the content of a standard MIDI file.
// Each SMF track with notes becomes a piano track, and each controller used
// in it an automation track; time signatures and markers go to the timeline.
// The file is parsed before the project is touched. The import is not
// undoable and clears the undo history.
func (p *Project) ImportMidi(r io.Reader) error {
	f, err := readMidi(r)
	if err != nil {
		return err
	}
	p.ClearUndoHistory()
	p.Checkpoint()
	p.Clear()
	for i, mt := range f.tracks {
		name := mt.name
		if name == "" {
			name = fmt.Sprintf("track %d", i+1)
		}
		if len(mt.notes) > 0 {
			rec := newTrackRecord(PianoLogic, name)
			rec.Channel = mt.channel
			rec.Notes = mt.notes
			p.insertTrack(rec)
		}
		controllers := make([]int, 0, len(mt.cc))
		for cc := range mt.cc {
			controllers = append(controllers, cc)
		}
		slices.Sort(controllers)
		for _, cc := range controllers {
			rec := newTrackRecord(AutomationLogic, fmt.Sprintf("%s/cc%d", name, cc))
			rec.Channel = mt.channel
			rec.Controller = cc
			rec.Automation = mt.cc[cc]
			p.insertTrack(rec)
		}
	}
	p.timeline.timeSignatures.load(f.timeSignatures)
	p.timeline.annotations.load(f.markers)
	p.updateBeatRange()
	p.dispatcher.changeLayer(TimelineID, midivcs.TimeSignatureKind)
	p.dispatcher.changeLayer(TimelineID, midivcs.AnnotationKind)
	p.log.Info("MIDI file imported", zap.Int("tracks", len(p.Tracks())), zap.Int("skipped", f.skipped))
	return nil
}

// ImportMidi replaces the notes of the track with all the notes of a
// standard MIDI file. The file is parsed before the track is touched.
func (t *PianoTrack) ImportMidi(r io.Reader) error {
	f, err := readMidi(r)
	if err != nil {
		return err
	}
	var notes []midivcs.Note
	for _, mt := range f.tracks {
		notes = append(notes, mt.notes...)
	}
	f.skipped += importInto(t.notes, notes)
	t.project.log.Info("MIDI notes imported", zap.String("track", t.id), zap.Int("notes", t.notes.Len()), zap.Int("skipped", f.skipped))
	return nil
}

// ImportMidi replaces the events of the track with the control changes of a
// standard MIDI file for the controller of the track.
func (t *AutomationTrack) ImportMidi(r io.Reader) error {
	f, err := readMidi(r)
	if err != nil {
		return err
	}
	var events []midivcs.AutomationEvent
	for _, mt := range f.tracks {
		events = append(events, mt.cc[t.controller]...)
	}
	f.skipped += importInto(t.events, events)
	t.project.log.Info("MIDI automation imported", zap.String("track", t.id), zap.Int("events", t.events.Len()), zap.Int("skipped", f.skipped))
	return nil
}

// importInto clears the undo history and replaces the events of s silently,
// with one range and one layer notification at the end. It returns the
// number of events that were skipped as invalid or duplicate.
func importInto[E midivcs.Element[E]](s *Sequence[E], es []E) int {
	s.ClearUndoHistory()
	s.Checkpoint()
	s.store.clear()
	skipped := 0
	for _, e := range es {
		if !s.silentImport(e) {
			skipped++
		}
	}
	s.finishImport()
	return skipped
}

// ExportMidi writes the project as an SMF1 file: a conductor track with the
// time signatures and markers, then one track per unmuted track. The clips
// of each track are expanded with their transposition and velocity; muted
// clips are skipped.
func (p *Project) ExportMidi(w io.Writer, resolution int) error {
	if resolution <= 0 || resolution > math.MaxInt16 {
		return fault.New(fmt.Sprintf("invalid resolution %d", resolution), ftag.With(ftag.InvalidArgument))
	}
	tick := func(beat float32) int64 { return int64(math.Round(float64(beat) * float64(resolution))) }
	s := smf.NewSMF1()
	s.TimeFormat = smf.MetricTicks(resolution)

	var conductor timedTrack
	if title := p.info.Title(); title != "" {
		conductor.add(0, false, smf.MetaTrackSequenceName(title))
	}
	for ts := range p.timeline.timeSignatures.All() {
		conductor.add(tick(ts.Beat), false, smf.MetaMeter(uint8(ts.Numerator), uint8(ts.Denominator)))
	}
	for a := range p.timeline.annotations.All() {
		conductor.add(tick(a.Beat), false, smf.MetaMarker(a.Text))
	}
	if err := s.Add(conductor.track()); err != nil {
		return fault.Wrap(err, ftag.With(ftag.Internal))
	}

	exported := 0
	for _, t := range p.Tracks() {
		if t.Mute() {
			continue
		}
		var tt timedTrack
		tt.add(0, false, smf.MetaTrackSequenceName(t.Path()))
		ch := uint8(t.Channel() - 1)
		for clip := range t.Pattern().All() {
			if clip.Mute {
				continue
			}
			switch t := t.(type) {
			case *PianoTrack:
				for n := range t.notes.All() {
					key := n.Key + clip.Key
					if key < 0 || key > midivcs.MaxKey {
						continue
					}
					vel := clamp(int(math.Round(float64(n.Velocity*clip.Velocity*127))), 1, 127)
					start := tick(clip.Beat + n.Beat)
					tt.add(start, false, midi.NoteOn(ch, uint8(key), uint8(vel)))
					tt.add(start+max(tick(n.Length), 1), true, midi.NoteOff(ch, uint8(key)))
				}
			case *AutomationTrack:
				for e := range t.events.All() {
					val := uint8(math.Round(float64(e.Value) * 127))
					tt.add(tick(clip.Beat+e.Beat), false, midi.ControlChange(ch, uint8(t.controller), val))
				}
			}
		}
		if err := s.Add(tt.track()); err != nil {
			return fault.Wrap(err, fmsg.With(fmt.Sprintf("could not add track %s", t.ID())), ftag.With(ftag.Internal))
		}
		exported++
	}
	if _, err := s.WriteTo(w); err != nil {
		return fault.Wrap(err, fmsg.With("could not write MIDI file"))
	}
	p.log.Info("MIDI file exported", zap.Int("tracks", exported), zap.Int("resolution", resolution))
	return nil
}

func (t *timedTrack) add(tick int64, off bool, msg []byte) {
	t.events = append(t.events, timedEvent{tick: tick, off: off, msg: msg})
}

func (t *timedTrack) track() smf.Track {
	slices.SortStableFunc(t.events, func(a, b timedEvent) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		switch {
		case a.off && !b.off:
			return -1
		case b.off && !a.off:
			return 1
		}
		return 0
	})
	var ret smf.Track
	var last int64
	for _, e := range t.events {
		ret.Add(uint32(e.tick-last), e.msg)
		last = e.tick
	}
	ret.Close(0)
	return ret
}
