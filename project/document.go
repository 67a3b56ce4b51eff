package project

import (
	"errors"
	"fmt"
	"io"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/google/uuid"
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/undo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type (
	// document is the serialized form of a project.
	document struct {
		ID       string
		Info     map[InfoField]string     `yaml:",omitempty"`
		Timeline timelineRecord           `yaml:",omitempty"`
		Tracks   []trackRecord            `yaml:",omitempty"`
		Undo     []undo.TransactionRecord `yaml:",omitempty"`
	}

	timelineRecord struct {
		Annotations    flowList[midivcs.AnnotationEvent]    `yaml:"annotations,omitempty"`
		TimeSignatures flowList[midivcs.TimeSignatureEvent] `yaml:"timeSignatures,omitempty"`
		KeySignatures  flowList[midivcs.KeySignatureEvent]  `yaml:"keySignatures,omitempty"`
	}

	// trackRecord is the serialized form of a track, used both in documents
	// and as the payload of the track insert/remove actions.
	trackRecord struct {
		Type       string
		ID         string
		Path       string `yaml:",omitempty"`
		Colour     midivcs.Colour
		Instrument string `yaml:",omitempty"`
		Channel    int
		Mute       bool                              `yaml:",omitempty"`
		Controller int                               `yaml:",omitempty"`
		Notes      flowList[midivcs.Note]            `yaml:",omitempty"`
		Automation flowList[midivcs.AutomationEvent] `yaml:",omitempty"`
		Clips      flowList[midivcs.Clip]            `yaml:",omitempty"`
	}

	// flowList is written as a block sequence with one flow mapping per
	// element, so that each event takes one line.
	flowList[E any] []E
)

func (l flowList[E]) MarshalYAML() (interface{}, error) {
	var n yaml.Node
	if err := n.Encode([]E(l)); err != nil {
		return nil, err
	}
	for _, c := range n.Content {
		c.Style = yaml.FlowStyle
	}
	return &n, nil
}

func newTrackRecord(logic, path string) trackRecord {
	return trackRecord{
		Type:    logic,
		ID:      uuid.NewString(),
		Path:    path,
		Colour:  midivcs.DefaultColour,
		Channel: MinChannel,
		Clips:   flowList[midivcs.Clip]{defaultClip()},
	}
}

func (r *trackRecord) sizeInUnits() int {
	return trackUnits + (len(r.Notes)+len(r.Automation)+len(r.Clips))*eventUnits
}

// buildTrack creates a detached track from its record. The track is not
// added to the project and no listener is notified.
func (p *Project) buildTrack(rec trackRecord) (Track, error) {
	if rec.ID == "" {
		return nil, errors.New("track without id")
	}
	base := MidiTrack{
		id:         rec.ID,
		path:       rec.Path,
		colour:     rec.Colour,
		instrument: rec.Instrument,
		channel:    clamp(rec.Channel, MinChannel, MaxChannel),
		mute:       rec.Mute,
		project:    p,
		pattern:    newSequence[midivcs.Clip](p, rec.ID),
	}
	base.pattern.load(rec.Clips)
	switch rec.Type {
	case PianoLogic:
		t := &PianoTrack{MidiTrack: base, notes: newSequence[midivcs.Note](p, rec.ID)}
		t.self = t
		t.notes.load(rec.Notes)
		return t, nil
	case AutomationLogic:
		t := &AutomationTrack{
			MidiTrack:  base,
			controller: clamp(rec.Controller, 0, MaxController),
			events:     newSequence[midivcs.AutomationEvent](p, rec.ID),
		}
		t.self = t
		t.events.load(rec.Automation)
		return t, nil
	}
	return nil, fmt.Errorf("unknown track type %q", rec.Type)
}

func (t *MidiTrack) baseRecord(logic string) trackRecord {
	return trackRecord{
		Type:       logic,
		ID:         t.id,
		Path:       t.path,
		Colour:     t.colour,
		Instrument: t.instrument,
		Channel:    t.channel,
		Mute:       t.mute,
		Clips:      t.pattern.Events(),
	}
}

func (t *PianoTrack) record() trackRecord {
	rec := t.baseRecord(PianoLogic)
	rec.Notes = t.notes.Events()
	return rec
}

func (t *AutomationTrack) record() trackRecord {
	rec := t.baseRecord(AutomationLogic)
	rec.Controller = t.controller
	rec.Automation = t.events.Events()
	return rec
}

func (t *Timeline) record() timelineRecord {
	return timelineRecord{
		Annotations:    t.annotations.Events(),
		TimeSignatures: t.timeSignatures.Events(),
		KeySignatures:  t.keySignatures.Events(),
	}
}

func (t *Timeline) load(rec timelineRecord) {
	t.annotations.load(rec.Annotations)
	t.timeSignatures.load(rec.TimeSignatures)
	t.keySignatures.load(rec.KeySignatures)
}

// load replaces the fields with the known fields of values; missing fields
// get their defaults.
func (i *Info) load(values map[InfoField]string) {
	i.fields = map[InfoField]string{TemperamentDelta: DefaultTemperament}
	for f, v := range values {
		if isInfoField(f) {
			i.put(f, v)
		}
	}
}

// MarshalYAML writes the project with its undo history.
func (p *Project) MarshalYAML() (interface{}, error) {
	doc := document{ID: p.id, Info: p.info.fields, Timeline: p.timeline.record()}
	for _, t := range p.Tracks() {
		doc.Tracks = append(doc.Tracks, t.record())
	}
	history, err := p.undo.Marshal()
	if err != nil {
		return nil, err
	}
	doc.Undo = history
	return doc, nil
}

// UnmarshalYAML replaces the project with the one in the node. The document
// is validated before the project is touched. An undo history that cannot be
// decoded is dropped with a warning; the project itself still loads.
func (p *Project) UnmarshalYAML(node *yaml.Node) error {
	var doc document
	if err := node.Decode(&doc); err != nil {
		return fault.Wrap(err, fmsg.With("malformed project document"), ftag.With(ftag.InvalidArgument))
	}
	tracks := make([]Track, 0, len(doc.Tracks))
	seen := make(map[string]bool, len(doc.Tracks))
	for _, rec := range doc.Tracks {
		if seen[rec.ID] {
			return fault.New(fmt.Sprintf("duplicate track id %s", rec.ID), ftag.With(ftag.InvalidArgument))
		}
		seen[rec.ID] = true
		t, err := p.buildTrack(rec)
		if err != nil {
			return fault.Wrap(err, fmsg.With("invalid track"), ftag.With(ftag.InvalidArgument))
		}
		tracks = append(tracks, t)
	}
	p.mu.Lock()
	p.tracks = tracks
	p.mu.Unlock()
	if doc.ID != "" {
		p.id = doc.ID
	}
	p.info.load(doc.Info)
	p.timeline.load(doc.Timeline)
	if err := p.undo.Unmarshal(doc.Undo, p); err != nil {
		p.log.Warn("dropping unreadable undo history", zap.Error(err))
	}
	p.updateBeatRange()
	p.dispatcher.reloadProject()
	p.log.Debug("project loaded", zap.String("id", p.id), zap.Int("tracks", len(tracks)))
	return nil
}

// Save writes the project document to w.
func (p *Project) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fault.Wrap(err, fmsg.With("could not save project"))
	}
	return enc.Close()
}

// Load replaces the project with the document read from r.
func (p *Project) Load(r io.Reader) error {
	if err := yaml.NewDecoder(r).Decode(p); err != nil {
		if ftag.Get(err) == ftag.InvalidArgument {
			return err
		}
		return fault.Wrap(err, fmsg.With("could not read project"), ftag.With(ftag.InvalidArgument))
	}
	return nil
}
