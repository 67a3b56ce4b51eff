package project_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/Southclaws/fault/ftag"
	"github.com/vsariola/midivcs"
	"github.com/vsariola/midivcs/project"
	"github.com/vsariola/midivcs/undo"
	"github.com/vsariola/midivcs/vcs"
	"gopkg.in/yaml.v3"
)

// recorder counts the notifications it receives.
type recorder struct {
	project.NopListener
	added, removed, postRemoved, changed, layers, ranges, reloads int
}

func (r *recorder) OnAddEvent(string, midivcs.Placed)                    { r.added++ }
func (r *recorder) OnRemoveEvent(string, midivcs.Placed)                 { r.removed++ }
func (r *recorder) OnPostRemoveEvent(string, midivcs.Kind)               { r.postRemoved++ }
func (r *recorder) OnChangeEvent(string, midivcs.Placed, midivcs.Placed) { r.changed++ }
func (r *recorder) OnChangeLayer(string, midivcs.Kind)                   { r.layers++ }
func (r *recorder) OnChangeBeatRange(float32, float32)                   { r.ranges++ }
func (r *recorder) OnReloadProject()                                     { r.reloads++ }

func newPiano(t *testing.T) (*project.Project, *project.PianoTrack) {
	t.Helper()
	p := project.New(undo.DefaultLimits(), nil)
	track, ok := p.AddPianoTrack("lead", false)
	if !ok {
		t.Fatalf("could not add a piano track")
	}
	return p, track
}

// dump serializes the project without its undo history.
func dump(t *testing.T, p *project.Project) string {
	t.Helper()
	var b bytes.Buffer
	if err := p.Save(&b); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(b.Bytes(), &doc); err != nil {
		t.Fatalf("saved document does not parse: %v", err)
	}
	delete(doc, "undo")
	out, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("could not re-marshal document: %v", err)
	}
	return string(out)
}

func TestInsertRejectsDuplicates(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	n := midivcs.NewNote(0, 60, 1, 0.8)
	if _, ok := notes.Insert(n, false); !ok {
		t.Fatalf("first insert failed")
	}
	if _, ok := notes.Insert(n, false); ok {
		t.Errorf("inserting an equal note succeeded")
	}
	if notes.Len() != 1 {
		t.Errorf("expected 1 note, got %d", notes.Len())
	}
	if _, ok := notes.Insert(midivcs.NewNote(-1, 60, 1, 0.8), false); ok {
		t.Errorf("inserting a note at a negative beat succeeded")
	}
}

func TestSortOrderKeepsInsertionOrderForTies(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	var keys []int
	for i, beat := range []float32{2, 1, 2, 0, 1, 2} {
		key := 60 + i
		if _, ok := notes.Insert(midivcs.NewNote(beat, key, 1, 0.8), true); !ok {
			t.Fatalf("insert %d failed", i)
		}
	}
	for n := range notes.All() {
		keys = append(keys, n.Key)
	}
	if want := []int{63, 61, 64, 60, 62, 65}; !reflect.DeepEqual(keys, want) {
		t.Errorf("order of keys: got %v, want %v", keys, want)
	}
	// undoing the removal of a tied note puts it back to its place
	second, _ := notes.Find(notes.At(1).ID)
	notes.Checkpoint()
	if !notes.Remove(second, true) || !notes.Undo() {
		t.Fatalf("remove/undo failed")
	}
	if notes.At(1) != second {
		t.Errorf("after undo, expected %v at index 1, got %v", second, notes.At(1))
	}
}

func TestIndexConsistency(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	var inserted []midivcs.Note
	for i := 0; i < 8; i++ {
		n, ok := notes.Insert(midivcs.NewNote(float32(7-i), 60+i, 1, 0.5), true)
		if !ok {
			t.Fatalf("insert %d failed", i)
		}
		inserted = append(inserted, n)
	}
	notes.Change(inserted[0], inserted[0].WithBeat(3.5), true)
	notes.Remove(inserted[3], true)
	project.ShiftBeatGroup(notes, []midivcs.Note{inserted[1], inserted[2]}, 10, true)
	for i := 0; i < notes.Len(); i++ {
		e := notes.At(i)
		if found, ok := notes.Find(e.ID); !ok || found != e {
			t.Errorf("note %v at %d not found by id", e, i)
		}
		if idx := notes.IndexOf(e.ID); idx != i {
			t.Errorf("IndexOf(%s) = %d, want %d", e.ID, idx, i)
		}
		if i > 0 && notes.At(i-1).Beat > e.Beat {
			t.Errorf("notes out of order at %d", i)
		}
	}
	if _, ok := notes.Find(inserted[3].ID); ok {
		t.Errorf("removed note still found by id")
	}
}

func TestInsertUndoRedo(t *testing.T) {
	p, track := newPiano(t)
	notes := track.Notes()
	n, ok := notes.Insert(midivcs.Note{Beat: 0, Key: 60, Length: 1, Velocity: 0.8}, true)
	if !ok {
		t.Fatalf("insert failed")
	}
	if !notes.Undo() {
		t.Fatalf("undo failed")
	}
	if notes.Len() != 0 {
		t.Errorf("expected empty sequence after undo, got %d notes", notes.Len())
	}
	if !p.UndoStack().CanRedo() {
		t.Errorf("expected redo to be available")
	}
	if !notes.Redo() {
		t.Fatalf("redo failed")
	}
	if notes.Len() != 1 || notes.At(0) != n {
		t.Errorf("after redo, expected [%v], got %v", n, notes.Events())
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	p := project.New(undo.DefaultLimits(), nil)
	before := dump(t, p)
	steps := []func() bool{
		func() bool {
			_, ok := p.AddPianoTrack("bass", true)
			return ok
		},
		func() bool {
			_, ok := p.Tracks()[0].(*project.PianoTrack).Notes().Insert(midivcs.NewNote(1, 36, 2, 0.7), true)
			return ok
		},
		func() bool { return p.Tracks()[0].SetColour(0xff102030, true) },
		func() bool { return p.Tracks()[0].SetMute(true, true) },
		func() bool {
			_, ok := p.Timeline().TimeSignatures().Insert(midivcs.NewTimeSignatureEvent(4, 3, 4), true)
			return ok
		},
		func() bool { return p.Info().Set(project.TitleDelta, "round trip", true) },
		func() bool {
			_, ok := p.AddAutomationTrack("bass/cutoff", 74, true)
			return ok
		},
		func() bool { return p.RemoveTrack(p.Tracks()[0].ID(), true) },
	}
	for i, step := range steps {
		p.Checkpoint()
		if !step() {
			t.Fatalf("step %d failed", i)
		}
	}
	after := dump(t, p)
	for i := range steps {
		if !p.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if got := dump(t, p); got != before {
		t.Errorf("undoing everything did not restore the project:\n%s\nwant:\n%s", got, before)
	}
	for i := range steps {
		if !p.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if got := dump(t, p); got != after {
		t.Errorf("redoing everything did not restore the project:\n%s\nwant:\n%s", got, after)
	}
}

func TestColourChangesCoalesce(t *testing.T) {
	p, track := newPiano(t)
	original := track.Colour()
	p.BeginTransaction("colour")
	track.SetColour(0xff112233, true)
	track.SetColour(0xff445566, true)
	stack := p.UndoStack()
	if n := stack.Transaction(stack.NextIndex() - 1).NumActions(); n != 1 {
		t.Fatalf("expected 1 action in the transaction, got %d", n)
	}
	if !p.Undo() {
		t.Fatalf("undo failed")
	}
	if track.Colour() != original {
		t.Errorf("undo restored %v, want %v", track.Colour(), original)
	}
}

func TestMuteChangesDoNotCoalesce(t *testing.T) {
	p, track := newPiano(t)
	p.Checkpoint()
	track.SetMute(true, true)
	track.SetMute(false, true)
	stack := p.UndoStack()
	if n := stack.Transaction(stack.NextIndex() - 1).NumActions(); n != 2 {
		t.Errorf("expected 2 actions in the transaction, got %d", n)
	}
}

func TestEvictionKeepsRecentTransactions(t *testing.T) {
	p := project.New(undo.Limits{MaxUnits: 100, MinTransactions: 2, MaxSerialized: 10}, nil)
	track, _ := p.AddPianoTrack("lead", false)
	for i := 0; i < 10; i++ {
		p.Checkpoint()
		track.Notes().Insert(midivcs.NewNote(float32(i), 60, 1, 0.5), true)
	}
	stack := p.UndoStack()
	if stack.NumTransactions() < 2 {
		t.Errorf("expected at least 2 transactions, got %d", stack.NumTransactions())
	}
	if stack.TotalUnits() > 100 {
		t.Errorf("expected at most 100 units, got %d", stack.TotalUnits())
	}
	for stack.CanUndo() {
		p.Undo()
	}
	if n := track.Notes().Len(); n != 10-stack.NumTransactions() {
		t.Errorf("undoing all retained transactions left %d notes, expected the oldest %d", n, 10-stack.NumTransactions())
	}
}

func TestGroupChangeThenDeltas(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	if !notes.InsertGroup([]midivcs.Note{
		midivcs.NewNote(0, 60, 1, 0.5),
		midivcs.NewNote(1, 62, 1, 0.5),
		midivcs.NewNote(2, 64, 1, 0.5),
	}, true) {
		t.Fatalf("insert group failed")
	}
	before := notes.Events()
	after := make([]midivcs.Note, len(before))
	for i, n := range before {
		after[i] = n.WithVelocity(0.9)
	}
	if !notes.ChangeGroup(before, after, true) {
		t.Fatalf("change group failed")
	}
	data, ok := vcs.Find(track, project.NotesAdded)
	if !ok {
		t.Fatalf("track has no notes delta")
	}
	items := data.(vcs.Items[midivcs.Note])
	if len(items) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(items))
	}
	for i, n := range items {
		if n.Velocity != 0.9 || n.Beat != float32(i) {
			t.Errorf("note %d: got %+v", i, n)
		}
	}
}

func TestChangeGroupLengthMismatchPanics(t *testing.T) {
	_, track := newPiano(t)
	defer func() {
		if recover() == nil {
			t.Errorf("expected a panic")
		}
	}()
	track.Notes().ChangeGroup(make([]midivcs.Note, 2), make([]midivcs.Note, 1), false)
}

func TestChangeGroupIsAllOrNothing(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	a, _ := notes.Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	b, _ := notes.Insert(midivcs.NewNote(1, 60, 1, 0.5), false)
	// moving both to the same place would make them equal
	if notes.ChangeGroup([]midivcs.Note{a, b}, []midivcs.Note{a.WithBeat(4), b.WithBeat(4)}, false) {
		t.Fatalf("change group producing duplicates succeeded")
	}
	if got := notes.Events(); !reflect.DeepEqual(got, []midivcs.Note{a, b}) {
		t.Errorf("failed change group modified the sequence: %v", got)
	}
}

func TestChangeGroupRejectsRepeatedIDs(t *testing.T) {
	_, track := newPiano(t)
	notes := track.Notes()
	a, _ := notes.Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	for _, undoable := range []bool{false, true} {
		if notes.ChangeGroup([]midivcs.Note{a, a}, []midivcs.Note{a.WithKey(61), a.WithKey(62)}, undoable) {
			t.Errorf("change group listing the same note twice succeeded (undoable %v)", undoable)
		}
		if notes.Len() != 1 {
			t.Fatalf("expected 1 note, got %d", notes.Len())
		}
		if got, ok := notes.Find(a.ID); !ok || got != a || notes.At(0) != a {
			t.Errorf("failed change group modified the note: %v", notes.Events())
		}
	}
}

func TestNoteChangesCoalesce(t *testing.T) {
	p, track := newPiano(t)
	notes := track.Notes()
	n, _ := notes.Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	p.BeginTransaction("drag")
	notes.Change(n, n.WithBeat(1), true)
	notes.Change(n, n.WithBeat(2), true)
	notes.Change(n, n.WithBeat(2), true)
	stack := p.UndoStack()
	if c := stack.Transaction(stack.NextIndex() - 1).NumActions(); c != 1 {
		t.Fatalf("expected 1 action in the transaction, got %d", c)
	}
	if !p.Undo() {
		t.Fatalf("undo failed")
	}
	if got := notes.At(0); got != n {
		t.Errorf("undo restored %v, want %v", got, n)
	}
}

func TestClearedInfoFieldIsNotSaved(t *testing.T) {
	p := project.New(undo.DefaultLimits(), nil)
	before := dump(t, p)
	p.Checkpoint()
	p.Info().Set(project.TitleDelta, "temporary", true)
	p.Checkpoint()
	p.Info().Set(project.TemperamentDelta, "19edo", true)
	p.Undo()
	p.Undo()
	if got := dump(t, p); got != before {
		t.Errorf("undo left traces in the document:\n%s\nwant:\n%s", got, before)
	}
	p.Info().Set(project.TitleDelta, "kept", false)
	p.Info().Set(project.TitleDelta, "", false)
	p.Info().Set(project.TemperamentDelta, "", false)
	if got := dump(t, p); got != before || strings.Contains(got, "title") {
		t.Errorf("clearing the fields left traces in the document:\n%s", got)
	}
	if got := p.Info().Temperament(); got != project.DefaultTemperament {
		t.Errorf("cleared temperament is %q, want %q", got, project.DefaultTemperament)
	}
}

func TestNotifications(t *testing.T) {
	p, track := newPiano(t)
	r := &recorder{}
	p.Dispatcher().AddListener(r)
	notes := track.Notes()
	n, _ := notes.Insert(midivcs.NewNote(0, 60, 1, 0.5), true)
	notes.Change(n, n.WithKey(61), true)
	notes.Remove(n, true)
	notes.InsertGroup([]midivcs.Note{midivcs.NewNote(0, 60, 1, 0.5), midivcs.NewNote(1, 60, 1, 0.5)}, true)
	if r.added != 1 || r.changed != 1 || r.removed != 1 || r.postRemoved != 1 {
		t.Errorf("unexpected notifications %+v", *r)
	}
	if r.layers != 1 {
		t.Errorf("expected one layer notification for the group, got %d", r.layers)
	}
	if r.ranges != 4 {
		t.Errorf("expected 4 beat range notifications, got %d", r.ranges)
	}
	if first, last := p.BeatRange(); first != 0 || last != 2 {
		t.Errorf("beat range: got %v..%v, want 0..2", first, last)
	}
}

func TestPatternOffsetsBeatRange(t *testing.T) {
	p, track := newPiano(t)
	track.Notes().Insert(midivcs.NewNote(1, 60, 1, 0.5), false)
	clip := track.Pattern().At(0)
	if !track.Pattern().Change(clip, clip.WithBeat(8), true) {
		t.Fatalf("moving the clip failed")
	}
	if first, last := p.BeatRange(); first != 9 || last != 10 {
		t.Errorf("beat range: got %v..%v, want 9..10", first, last)
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	p, piano := newPiano(t)
	piano.Notes().InsertGroup([]midivcs.Note{midivcs.NewNote(0, 60, 1, 0.5), midivcs.NewNote(0.5, 67, 0.25, 1)}, false)
	piano.SetColour(0xff00ff00, false)
	piano.SetChannel(10, false)
	piano.SetInstrument("drums", false)
	piano.SetMute(true, false)
	piano.Pattern().Insert(midivcs.NewClip(16).WithDeltaKey(5), false)
	auto, _ := p.AddAutomationTrack("lead/mod", 1, false)
	auto.Events().Insert(midivcs.NewAutomationEvent(2, 0.25), false)
	auto.Events().Insert(midivcs.NewAutomationEvent(3, 0.75).WithCurvature(0.1), false)
	p.Timeline().Annotations().Insert(midivcs.NewAnnotationEvent(0, "intro", midivcs.DefaultColour), false)
	p.Timeline().TimeSignatures().Insert(midivcs.NewTimeSignatureEvent(0, 7, 8), false)
	p.Timeline().KeySignatures().Insert(midivcs.NewKeySignatureEvent(0, 2, "dorian"), false)
	p.Info().Set(project.TitleDelta, "Delta", false)
	p.Info().Set(project.AuthorDelta, "someone", false)

	fresh := project.New(undo.DefaultLimits(), nil)
	for _, item := range p.TrackedItems() {
		if err := fresh.InitTrackedItem(item); err != nil {
			t.Fatalf("init %s: %v", item.TrackedID(), err)
		}
	}
	freshItems := fresh.TrackedItems()
	if len(freshItems) != len(p.TrackedItems()) {
		t.Fatalf("expected %d items, got %d", len(p.TrackedItems()), len(freshItems))
	}
	for i, item := range p.TrackedItems() {
		logic, err := project.Schema().Logic(item.LogicType())
		if err != nil {
			t.Fatal(err)
		}
		diff, err := logic.Diff(item, freshItems[i])
		if err != nil {
			t.Fatal(err)
		}
		if diff != nil {
			t.Errorf("%s differs after the round trip: %v", item.TrackedID(), diff.Deltas)
		}
	}
	copied, _ := fresh.Track(piano.ID())
	if copied.Channel() != 10 || copied.Instrument() != "drums" || !copied.Mute() || copied.Pattern().Len() != 2 {
		t.Errorf("scalars or clips not restored: %+v", copied)
	}
}

func TestEmptyPatternStaysEmpty(t *testing.T) {
	p, piano := newPiano(t)
	piano.Notes().Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	if !piano.Pattern().Remove(piano.Pattern().At(0), true) || piano.Pattern().Len() != 0 {
		t.Fatalf("removing the only clip failed")
	}
	state := project.Schema()[project.PianoLogic].Capture(piano)

	fresh := project.New(undo.DefaultLimits(), nil)
	if err := fresh.InitTrackedItem(state); err != nil {
		t.Fatal(err)
	}
	copied, _ := fresh.Track(piano.ID())
	if n := copied.Pattern().Len(); n != 0 {
		t.Errorf("track created from a state without clips has %d clips", n)
	}

	other, _ := fresh.AddPianoTrack("other", false)
	if err := other.ResetStateTo(state); err != nil {
		t.Fatal(err)
	}
	if n := other.Pattern().Len(); n != 0 {
		t.Errorf("track reset to a state without clips has %d clips", n)
	}

	var b bytes.Buffer
	if err := p.Save(&b); err != nil {
		t.Fatal(err)
	}
	loaded := project.New(undo.DefaultLimits(), nil)
	if err := loaded.Load(&b); err != nil {
		t.Fatal(err)
	}
	restored, _ := loaded.Track(piano.ID())
	if n := restored.Pattern().Len(); n != 0 {
		t.Errorf("loaded track has %d clips, want 0", n)
	}

	v := vcs.New(p, project.Schema(), nil)
	rev, err := v.Commit("no clips")
	if err != nil {
		t.Fatal(err)
	}
	piano.Pattern().Insert(midivcs.NewClip(4), false)
	for i := 0; i < 2; i++ {
		if err := v.Checkout(rev.ID); err != nil {
			t.Fatal(err)
		}
		if status, _ := v.Status(); !status.IsEmpty() {
			t.Errorf("checkout %d left pending changes: %v", i, status.Items)
		}
		if n := piano.Pattern().Len(); n != 0 {
			t.Errorf("checkout %d restored %d clips, want 0", i, n)
		}
	}
}

func TestResetStateToWrongLogicFails(t *testing.T) {
	p, piano := newPiano(t)
	if err := piano.ResetStateTo(p.Timeline()); err == nil {
		t.Errorf("resetting a piano track to a timeline state succeeded")
	}
}

func TestVersionControl(t *testing.T) {
	p, piano := newPiano(t)
	v := vcs.New(p, project.Schema(), nil)
	piano.Notes().Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	first, err := v.Commit("first")
	if err != nil {
		t.Fatal(err)
	}
	status, err := v.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !status.IsEmpty() {
		t.Errorf("unchanged project has pending changes: %v", status.Items)
	}

	n := piano.Notes().At(0)
	piano.Notes().Change(n, n.WithKey(64), true)
	status, err = v.Status()
	if err != nil {
		t.Fatal(err)
	}
	if len(status.Items) != 1 || status.Items[0].ID != piano.ID() {
		t.Fatalf("expected only the piano track to change, got %v", status.Items)
	}
	if d := status.Items[0].Deltas; len(d) != 1 || d[0].Type != project.NotesChanged {
		t.Errorf("expected only %s, got %v", project.NotesChanged, d)
	}
	if _, err := v.Commit("second"); err != nil {
		t.Fatal(err)
	}
	p.AddAutomationTrack("lead/volume", 7, true)
	if err := v.Checkout(first.ID); err != nil {
		t.Fatal(err)
	}
	if len(p.Tracks()) != 1 {
		t.Fatalf("expected 1 track after checkout, got %d", len(p.Tracks()))
	}
	restored, _ := p.Track(piano.ID())
	if k := restored.(*project.PianoTrack).Notes().At(0).Key; k != 60 {
		t.Errorf("expected key 60 after checkout, got %d", k)
	}
	if p.UndoStack().CanUndo() {
		t.Errorf("checkout kept the undo history")
	}
	if _, err := v.Commit("nothing"); ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("empty commit: got %v", err)
	}
}

func TestInitExistingTrackFails(t *testing.T) {
	p, piano := newPiano(t)
	if err := p.InitTrackedItem(piano); ftag.Get(err) != ftag.AlreadyExists {
		t.Errorf("expected AlreadyExists, got %v", err)
	}
	if err := p.DeleteTrackedItem("nope"); ftag.Get(err) != ftag.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestSaveLoadKeepsUndo(t *testing.T) {
	p, piano := newPiano(t)
	p.Checkpoint()
	piano.Notes().Insert(midivcs.NewNote(0, 60, 1, 0.5), true)
	p.Checkpoint()
	piano.SetPath("lead/renamed", true)
	var b bytes.Buffer
	if err := p.Save(&b); err != nil {
		t.Fatal(err)
	}
	loaded := project.New(undo.DefaultLimits(), nil)
	if err := loaded.Load(bytes.NewReader(b.Bytes())); err != nil {
		t.Fatal(err)
	}
	if got, want := dump(t, loaded), dump(t, p); got != want {
		t.Fatalf("loaded project differs:\n%s\nwant:\n%s", got, want)
	}
	if loaded.UndoStack().NumTransactions() != 2 {
		t.Fatalf("expected 2 transactions, got %d", loaded.UndoStack().NumTransactions())
	}
	if !loaded.Undo() || !loaded.Undo() {
		t.Fatalf("undo on the loaded project failed")
	}
	track, _ := loaded.Track(piano.ID())
	if track.Path() != "lead" || track.(*project.PianoTrack).Notes().Len() != 0 {
		t.Errorf("undo did not restore the track: path %q", track.Path())
	}
}

func TestLoadSkipsUnknownActions(t *testing.T) {
	doc := `id: x
tracks:
  - type: piano
    id: t1
    colour: ff808080
    channel: 1
    notes:
      - {id: a, beat: 0, key: 60, length: 1, velocity: 0.5}
undo:
  - name: future
    actions:
      - tag: hologramInsert
        data: {item: t1}
  - actions:
      - tag: noteInsert
        data:
          item: t1
          event: {id: a, beat: 0, key: 60, length: 1, velocity: 0.5}
`
	p := project.New(undo.DefaultLimits(), nil)
	if err := p.Load(strings.NewReader(doc)); err != nil {
		t.Fatal(err)
	}
	if n := p.UndoStack().NumTransactions(); n != 1 {
		t.Fatalf("expected 1 transaction, got %d", n)
	}
	if !p.Undo() {
		t.Fatalf("undo failed")
	}
	track, _ := p.Track("t1")
	if n := track.(*project.PianoTrack).Notes().Len(); n != 0 {
		t.Errorf("expected no notes after undo, got %d", n)
	}
	if track.Pattern().Len() != 1 {
		t.Errorf("expected the default clip, got %d clips", track.Pattern().Len())
	}
}

func TestLoadRejectsMalformedDocuments(t *testing.T) {
	for _, doc := range []string{
		"tracks: [{type: piano, id: a}, {type: piano, id: a}]",
		"tracks: [{type: theremin, id: a}]",
		"tracks: {}",
	} {
		p := project.New(undo.DefaultLimits(), nil)
		if err := p.Load(strings.NewReader(doc)); ftag.Get(err) != ftag.InvalidArgument {
			t.Errorf("%q: expected InvalidArgument, got %v", doc, err)
		}
	}
}

func TestMidiRoundTrip(t *testing.T) {
	p, piano := newPiano(t)
	want := []midivcs.Note{
		midivcs.NewNote(0, 60, 1, 0.8),
		midivcs.NewNote(0.5, 64, 0.5, 0.25),
		midivcs.NewNote(2, 67, 2, 1),
	}
	piano.Notes().InsertGroup(want, false)
	p.Timeline().TimeSignatures().Insert(midivcs.NewTimeSignatureEvent(0, 3, 4), false)
	p.Timeline().Annotations().Insert(midivcs.NewAnnotationEvent(4, "verse", midivcs.DefaultColour), false)
	var b bytes.Buffer
	if err := p.ExportMidi(&b, project.DefaultResolution); err != nil {
		t.Fatal(err)
	}
	imported := project.New(undo.DefaultLimits(), nil)
	r := &recorder{}
	imported.Dispatcher().AddListener(r)
	if err := imported.ImportMidi(bytes.NewReader(b.Bytes())); err != nil {
		t.Fatal(err)
	}
	tracks := imported.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	got := tracks[0].(*project.PianoTrack).Notes().Events()
	if len(got) != len(want) {
		t.Fatalf("expected %d notes, got %d", len(want), len(got))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Beat != w.Beat || g.Key != w.Key || g.Length != w.Length || abs(g.Velocity-w.Velocity) > 1.0/127 {
			t.Errorf("note %d: got %+v, want %+v", i, g, w)
		}
	}
	if ts := imported.Timeline().TimeSignatureAt(1); ts.Numerator != 3 || ts.Denominator != 4 {
		t.Errorf("time signature: got %d/%d", ts.Numerator, ts.Denominator)
	}
	if a := imported.Timeline().Annotations(); a.Len() != 1 || a.At(0).Text != "verse" || a.At(0).Beat != 4 {
		t.Errorf("markers: got %v", a.Events())
	}
	if imported.UndoStack().CanUndo() {
		t.Errorf("import left undoable transactions")
	}
}

func TestImportMalformedMidiDoesNotMutate(t *testing.T) {
	p, piano := newPiano(t)
	piano.Notes().Insert(midivcs.NewNote(0, 60, 1, 0.5), false)
	if err := p.ImportMidi(strings.NewReader("not a midi file")); ftag.Get(err) != ftag.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
	if err := piano.ImportMidi(strings.NewReader("MThd")); err == nil {
		t.Errorf("expected an error")
	}
	if len(p.Tracks()) != 1 || piano.Notes().Len() != 1 {
		t.Errorf("failed import modified the project")
	}
}

func TestTrackImportFiresOneLayerNotification(t *testing.T) {
	src, piano := newPiano(t)
	for i := 0; i < 4; i++ {
		piano.Notes().Insert(midivcs.NewNote(float32(i), 60+i, 1, 0.5), false)
	}
	var b bytes.Buffer
	if err := src.ExportMidi(&b, 480); err != nil {
		t.Fatal(err)
	}
	p, target := newPiano(t)
	r := &recorder{}
	p.Dispatcher().AddListener(r)
	if err := target.ImportMidi(bytes.NewReader(b.Bytes())); err != nil {
		t.Fatal(err)
	}
	if target.Notes().Len() != 4 {
		t.Errorf("expected 4 notes, got %d", target.Notes().Len())
	}
	if r.layers != 1 || r.ranges != 1 || r.added != 0 {
		t.Errorf("unexpected notifications %+v", *r)
	}
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
