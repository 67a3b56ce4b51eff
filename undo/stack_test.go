package undo_test

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/vsariola/midivcs/undo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

type document struct {
	values   map[string]int
	failUndo bool
}

func newDocument() *document {
	return &document{values: map[string]int{}}
}

// setValue changes one value of the document; consecutive changes of the
// same key coalesce.
type setValue struct {
	doc    *document
	Key    string
	Before int
	After  int
	Units  int
}

func (a *setValue) Perform() bool {
	if a.doc.values[a.Key] != a.Before {
		return false
	}
	a.doc.values[a.Key] = a.After
	return true
}

func (a *setValue) Undo() bool {
	if a.doc.failUndo || a.doc.values[a.Key] != a.After {
		return false
	}
	a.doc.values[a.Key] = a.Before
	return true
}

func (a *setValue) SizeInUnits() int { return a.Units }
func (a *setValue) Tag() string      { return "setValue" }

func (a *setValue) Coalesce(next undo.Action) (undo.Action, bool) {
	n, ok := next.(*setValue)
	if !ok || n.Key != a.Key {
		return nil, false
	}
	return &setValue{doc: a.doc, Key: a.Key, Before: a.Before, After: n.After, Units: a.Units}, true
}

type decoder struct {
	doc *document
}

func (d decoder) DecodeAction(tag string, data *yaml.Node) (undo.Action, error) {
	if tag != "setValue" {
		return nil, fmt.Errorf("%s: %w", tag, undo.ErrUnknownTag)
	}
	a := &setValue{doc: d.doc}
	if err := data.Decode(a); err != nil {
		return nil, err
	}
	return a, nil
}

func set(s *undo.Stack, d *document, key string, value, units int) bool {
	return s.Perform(&setValue{doc: d, Key: key, Before: d.values[key], After: value, Units: units})
}

func TestPerformUndoRedo(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	for i := 1; i <= 5; i++ {
		s.BeginNewTransaction("")
		if !set(s, d, "a", i, 1) {
			t.Fatalf("perform %d failed", i)
		}
	}
	for i := 4; i >= 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo failed at %d", i)
		}
		if d.values["a"] != i {
			t.Errorf("after undo expected %d, got %d", i, d.values["a"])
		}
	}
	if s.CanUndo() {
		t.Errorf("expected nothing left to undo")
	}
	for i := 1; i <= 5; i++ {
		if !s.Redo() {
			t.Fatalf("redo failed at %d", i)
		}
		if d.values["a"] != i {
			t.Errorf("after redo expected %d, got %d", i, d.values["a"])
		}
	}
	if s.CanRedo() {
		t.Errorf("expected nothing left to redo")
	}
}

func TestFailedPerformIsNotRecorded(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	if s.Perform(&setValue{doc: d, Key: "a", Before: 42, After: 1}) {
		t.Fatalf("expected perform to fail")
	}
	if s.NumTransactions() != 0 || s.TotalUnits() != 0 {
		t.Errorf("failed action was recorded: %d transactions, %d units", s.NumTransactions(), s.TotalUnits())
	}
}

func TestNewActionClearsRedo(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("")
	set(s, d, "a", 2, 1)
	s.Undo()
	if !s.CanRedo() {
		t.Fatalf("expected redo to be available")
	}
	set(s, d, "b", 1, 1)
	if s.CanRedo() {
		t.Errorf("redo history survived a new action")
	}
	if s.NumTransactions() != 2 {
		t.Errorf("expected 2 transactions, got %d", s.NumTransactions())
	}
}

func TestCoalescing(t *testing.T) {
	d := newDocument()
	d.values["colour"] = 1
	s := undo.NewStack(undo.DefaultLimits(), nil)
	s.BeginNewTransaction("colour")
	set(s, d, "colour", 2, 10)
	set(s, d, "colour", 3, 10)
	if got := s.NumActionsInCurrentTransaction(); got != 1 {
		t.Fatalf("expected 1 coalesced action, got %d", got)
	}
	if s.TotalUnits() != 10 {
		t.Errorf("expected 10 units after coalescing, got %d", s.TotalUnits())
	}
	s.Undo()
	if d.values["colour"] != 1 {
		t.Errorf("undo restored %d, expected the value before the first change", d.values["colour"])
	}
	s.Redo()
	if d.values["colour"] != 3 {
		t.Errorf("redo restored %d, expected 3", d.values["colour"])
	}
}

func TestCoalescingOnlyWithLastAction(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	set(s, d, "b", 1, 1)
	set(s, d, "a", 2, 1)
	if got := s.NumActionsInCurrentTransaction(); got != 3 {
		t.Errorf("expected 3 actions, got %d", got)
	}
}

func TestNewTransactionDoesNotCoalesce(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("")
	set(s, d, "a", 2, 1)
	if s.NumTransactions() != 2 {
		t.Errorf("expected 2 transactions, got %d", s.NumTransactions())
	}
}

func TestEviction(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.Limits{MaxUnits: 100, MinTransactions: 2, MaxSerialized: 10}, nil)
	for i := 1; i <= 10; i++ {
		s.BeginNewTransaction(fmt.Sprintf("t%d", i))
		set(s, d, "a", i, 20)
		if s.TotalUnits() > 100 {
			t.Errorf("total units %d over the cap after transaction %d", s.TotalUnits(), i)
		}
	}
	if s.NumTransactions() != 5 {
		t.Fatalf("expected 5 transactions, got %d", s.NumTransactions())
	}
	for i := 0; i < 5; i++ {
		if got, want := s.Transaction(i).Name(), fmt.Sprintf("t%d", i+6); got != want {
			t.Errorf("transaction %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestEvictionKeepsMinimum(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.Limits{MaxUnits: 100, MinTransactions: 2, MaxSerialized: 10}, nil)
	for i := 1; i <= 10; i++ {
		s.BeginNewTransaction("")
		set(s, d, "a", i, 500)
	}
	if s.NumTransactions() != 2 {
		t.Errorf("expected the minimum of 2 transactions, got %d", s.NumTransactions())
	}
	s.Undo()
	s.Undo()
	if d.values["a"] != 8 {
		t.Errorf("expected the two most recent transactions retained, value is %d", d.values["a"])
	}
}

func TestFailedUndoClearsHistory(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("")
	set(s, d, "a", 2, 1)
	d.failUndo = true
	if s.Undo() {
		t.Fatalf("expected undo to fail")
	}
	if s.NumTransactions() != 0 || s.CanUndo() || s.CanRedo() {
		t.Errorf("history was not discarded")
	}
}

type reentrant struct {
	stack  *undo.Stack
	inner  bool
	called bool
}

func (r *reentrant) Perform() bool {
	r.called = true
	r.inner = r.stack.Perform(&reentrant{stack: r.stack})
	return true
}
func (r *reentrant) Undo() bool       { return true }
func (r *reentrant) SizeInUnits() int { return 1 }
func (r *reentrant) Tag() string      { return "reentrant" }

func TestReentrantPerformFails(t *testing.T) {
	s := undo.NewStack(undo.DefaultLimits(), nil)
	r := &reentrant{stack: s}
	if !s.Perform(r) {
		t.Fatalf("outer perform should succeed")
	}
	if r.inner {
		t.Errorf("nested perform should have failed")
	}
	if s.NumActionsInCurrentTransaction() != 1 {
		t.Errorf("expected only the outer action recorded")
	}
}

// historyWalker undoes and redoes from inside its own Perform and Undo.
type historyWalker struct {
	stack              *undo.Stack
	undone, redone     bool
	performs, reverted int
}

func (w *historyWalker) Perform() bool {
	w.performs++
	w.undone = w.stack.Undo()
	w.redone = w.stack.Redo()
	return true
}

func (w *historyWalker) Undo() bool {
	w.reverted++
	w.undone = w.stack.Undo()
	return true
}

func (w *historyWalker) SizeInUnits() int { return 1 }
func (w *historyWalker) Tag() string      { return "historyWalker" }

func TestReentrantUndoRedoFails(t *testing.T) {
	core, logs := observer.New(zapcore.DPanicLevel)
	s := undo.NewStack(undo.DefaultLimits(), zap.New(core))
	d := newDocument()
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("walk")
	w := &historyWalker{stack: s}
	if !s.Perform(w) {
		t.Fatalf("outer perform should succeed")
	}
	if w.undone || w.redone || w.performs != 1 {
		t.Errorf("nested undo or redo should have failed: %+v", w)
	}
	if d.values["a"] != 1 {
		t.Errorf("nested undo reverted another transaction")
	}
	if !s.Undo() || w.reverted != 1 || w.undone {
		t.Errorf("outer undo should succeed and the nested one fail: %+v", w)
	}
	if n := logs.FilterMessageSnippet("from inside an action").Len(); n != 3 {
		t.Errorf("expected 3 logged reentrant calls, got %d", n)
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.Limits{MaxUnits: 1000, MinTransactions: 1, MaxSerialized: 3}, nil)
	for i := 1; i <= 5; i++ {
		s.BeginNewTransaction(fmt.Sprintf("t%d", i))
		set(s, d, fmt.Sprintf("k%d", i), i, 1)
	}
	records, err := s.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Name != "t5" || records[2].Name != "t3" {
		t.Errorf("expected the most recent transaction first, got %s..%s", records[0].Name, records[2].Name)
	}
	out, err := yaml.Marshal(records)
	if err != nil {
		t.Fatalf("yaml marshal failed: %v", err)
	}
	var loaded []undo.TransactionRecord
	if err := yaml.Unmarshal(out, &loaded); err != nil {
		t.Fatalf("yaml unmarshal failed: %v", err)
	}
	d2 := newDocument()
	for k, v := range d.values {
		d2.values[k] = v
	}
	s2 := undo.NewStack(undo.DefaultLimits(), nil)
	if err := s2.Unmarshal(loaded, decoder{d2}); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if s2.NumTransactions() != 3 || s2.UndoName() != "t5" {
		t.Fatalf("unexpected history: %d transactions, undo name %q", s2.NumTransactions(), s2.UndoName())
	}
	for s2.CanUndo() {
		if !s2.Undo() {
			t.Fatalf("undo of a loaded transaction failed")
		}
	}
	want := map[string]int{"k1": 1, "k2": 2, "k3": 0, "k4": 0, "k5": 0}
	if !reflect.DeepEqual(d2.values, want) {
		t.Errorf("expected %v after undoing loaded history, got %v", want, d2.values)
	}
}

func TestUnmarshalSkipsUnknownTags(t *testing.T) {
	var data yaml.Node
	if err := data.Encode(map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	records := []undo.TransactionRecord{
		{Name: "legacy", Actions: []undo.ActionRecord{{Tag: "removedLongAgo", Data: data}}},
	}
	s := undo.NewStack(undo.DefaultLimits(), nil)
	if err := s.Unmarshal(records, decoder{newDocument()}); err != nil {
		t.Fatalf("unknown tags should be skipped, got %v", err)
	}
	if s.NumTransactions() != 0 {
		t.Errorf("empty transaction should be dropped, got %d", s.NumTransactions())
	}
}

type brokenDecoder struct{}

func (brokenDecoder) DecodeAction(tag string, data *yaml.Node) (undo.Action, error) {
	return nil, errors.New("broken")
}

func TestUnmarshalError(t *testing.T) {
	var data yaml.Node
	data.Encode(1)
	records := []undo.TransactionRecord{{Actions: []undo.ActionRecord{{Tag: "x", Data: data}}}}
	s := undo.NewStack(undo.DefaultLimits(), nil)
	if err := s.Unmarshal(records, brokenDecoder{}); err == nil {
		t.Errorf("expected an error")
	}
	if s.NumTransactions() != 0 {
		t.Errorf("history should be empty after a failed load")
	}
}

func TestMergeTransactionsUpTo(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	s.BeginNewTransaction("drag")
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("step")
	set(s, d, "b", 1, 1)
	s.BeginNewTransaction("step")
	set(s, d, "c", 1, 1)
	if !s.MergeTransactionsUpTo("drag") {
		t.Fatalf("merge failed")
	}
	if s.NumTransactions() != 1 || s.Transaction(0).NumActions() != 3 {
		t.Fatalf("expected one transaction with 3 actions")
	}
	s.Undo()
	if d.values["a"] != 0 || d.values["b"] != 0 || d.values["c"] != 0 {
		t.Errorf("merged transaction not undone as a whole: %v", d.values)
	}
	if s.MergeTransactionsUpTo("missing") {
		t.Errorf("merge with an unknown name should fail")
	}
}

func TestUndoCurrentTransactionOnly(t *testing.T) {
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	s.BeginNewTransaction("")
	if s.UndoCurrentTransactionOnly() {
		t.Errorf("nothing open, should not undo")
	}
	set(s, d, "a", 2, 1)
	set(s, d, "b", 2, 1)
	if !s.UndoCurrentTransactionOnly() {
		t.Fatalf("expected the open transaction to be reverted")
	}
	if d.values["a"] != 1 || d.values["b"] != 0 {
		t.Errorf("unexpected values %v", d.values)
	}
	if s.CanRedo() {
		t.Errorf("cancelled transaction should not be redoable")
	}
}

func TestDisplayName(t *testing.T) {
	if got := undo.DisplayName("noteGroupChange"); got != "Note Group Change" {
		t.Errorf("got %q", got)
	}
	d := newDocument()
	s := undo.NewStack(undo.DefaultLimits(), nil)
	set(s, d, "a", 1, 1)
	if got := s.UndoName(); got != "Set Value" {
		t.Errorf("expected a name derived from the action tag, got %q", got)
	}
}
