package undo

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

type (
	// Limits bound the size of an undo history. The oldest transactions are
	// evicted while the total size exceeds MaxUnits, but never so that fewer
	// than MinTransactions would remain. MaxSerialized caps the number of
	// transactions written by Marshal.
	Limits struct {
		MaxUnits        int
		MinTransactions int
		MaxSerialized   int
	}

	// Transaction is a named, ordered group of actions that are undone and
	// redone together.
	Transaction struct {
		name    string
		actions []Action
	}

	// Stack is an ordered log of transactions with a cursor: the
	// transactions before the cursor have been performed and can be undone,
	// the ones after it have been undone and can be redone. Performing a new
	// action drops everything after the cursor.
	//
	// Stack is not safe for concurrent use; all the calls are expected to
	// come from the goroutine owning the document.
	Stack struct {
		transactions   []*Transaction
		nextIndex      int
		totalUnits     int
		newTransaction bool
		pendingName    string
		reentrant      bool
		limits         Limits
		log            *zap.Logger
	}
)

// DefaultLimits returns the limits used when nothing else is configured.
func DefaultLimits() Limits {
	return Limits{MaxUnits: 30000, MinTransactions: 30, MaxSerialized: 10}
}

// NewStack returns an empty Stack. A nil logger disables logging.
func NewStack(limits Limits, log *zap.Logger) *Stack {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stack{limits: limits, newTransaction: true, log: log.Named("undo")}
}

// Name returns the name given to the transaction when it was begun.
func (t *Transaction) Name() string { return t.name }

// NumActions returns the number of actions in the transaction.
func (t *Transaction) NumActions() int { return len(t.actions) }

// Action returns the i-th action of the transaction, or nil if i is out of
// range.
func (t *Transaction) Action(i int) Action {
	if i < 0 || i >= len(t.actions) {
		return nil
	}
	return t.actions[i]
}

// SizeInUnits returns the sum of the sizes of the actions.
func (t *Transaction) SizeInUnits() int {
	total := 0
	for _, a := range t.actions {
		total += a.SizeInUnits()
	}
	return total
}

// DisplayName returns the name of the transaction, or a name derived from its
// first action if it was begun without a name.
func (t *Transaction) DisplayName() string {
	if t.name != "" || len(t.actions) == 0 {
		return t.name
	}
	return DisplayName(t.actions[0].Tag())
}

func (t *Transaction) perform() bool {
	for _, a := range t.actions {
		if !a.Perform() {
			return false
		}
	}
	return true
}

func (t *Transaction) undo() bool {
	for i := len(t.actions) - 1; i >= 0; i-- {
		if !t.actions[i].Undo() {
			return false
		}
	}
	return true
}

// BeginNewTransaction closes the current transaction: the next performed
// action starts a new one with the given name.
func (s *Stack) BeginNewTransaction(name string) {
	s.newTransaction = true
	s.pendingName = name
}

// Perform performs the action and records it. If the current transaction is
// still open, the action is first offered to the last action of that
// transaction for coalescing. Perform returns false if the action failed, in
// which case nothing is recorded, or if it was called from inside another
// action's Perform or Undo, which is a programming error.
func (s *Stack) Perform(a Action) bool {
	if s.reentrant {
		s.log.DPanic("action performed from inside another action", zap.String("tag", a.Tag()))
		return false
	}
	s.reentrant = true
	ok := a.Perform()
	s.reentrant = false
	if !ok {
		return false
	}
	actionsPerformedTotal.Inc()
	var current *Transaction
	if !s.newTransaction && s.nextIndex > 0 {
		current = s.transactions[s.nextIndex-1]
	}
	if current != nil && len(current.actions) > 0 {
		last := current.actions[len(current.actions)-1]
		if c, ok := last.(Coalescer); ok {
			if merged, ok := c.Coalesce(a); ok {
				s.totalUnits += merged.SizeInUnits() - last.SizeInUnits()
				current.actions[len(current.actions)-1] = merged
				actionsCoalescedTotal.Inc()
				s.clearFutureTransactions()
				return true
			}
		}
	}
	if current == nil {
		current = &Transaction{name: s.pendingName}
		s.transactions = slices.Insert(s.transactions, s.nextIndex, current)
		s.nextIndex++
		s.newTransaction = false
		s.pendingName = ""
	}
	current.actions = append(current.actions, a)
	s.totalUnits += a.SizeInUnits()
	s.clearFutureTransactions()
	return true
}

// clearFutureTransactions drops the redoable transactions and then evicts the
// oldest ones while the history is over its size cap.
func (s *Stack) clearFutureTransactions() {
	for len(s.transactions) > s.nextIndex {
		last := len(s.transactions) - 1
		s.totalUnits -= s.transactions[last].SizeInUnits()
		s.transactions[last] = nil
		s.transactions = s.transactions[:last]
	}
	for s.nextIndex > 0 && s.totalUnits > s.limits.MaxUnits && len(s.transactions) > s.limits.MinTransactions {
		s.totalUnits -= s.transactions[0].SizeInUnits()
		s.transactions = slices.Delete(s.transactions, 0, 1)
		s.nextIndex--
		transactionsEvictedTotal.Inc()
	}
	storedUnitsGauge.Set(float64(s.totalUnits))
}

// Undo reverts the transaction before the cursor, undoing its actions in
// reverse order. If any of them fails, the state of the document can no
// longer be trusted to match the history, so the whole history is
// discarded. Either way, the next action starts a new transaction.
func (s *Stack) Undo() bool {
	if s.reentrant {
		s.log.DPanic("undo called from inside an action")
		return false
	}
	if !s.CanUndo() {
		return false
	}
	t := s.transactions[s.nextIndex-1]
	s.reentrant = true
	ok := t.undo()
	s.reentrant = false
	if ok {
		s.nextIndex--
	} else {
		s.log.Error("undo failed, discarding the undo history",
			zap.String("transaction", t.DisplayName()),
			zap.Int("transactions", len(s.transactions)))
		historyResetsTotal.Inc()
		s.ClearHistory()
	}
	s.BeginNewTransaction("")
	return ok
}

// Redo performs again the transaction at the cursor, with the same fail-safe
// as Undo.
func (s *Stack) Redo() bool {
	if s.reentrant {
		s.log.DPanic("redo called from inside an action")
		return false
	}
	if !s.CanRedo() {
		return false
	}
	t := s.transactions[s.nextIndex]
	s.reentrant = true
	ok := t.perform()
	s.reentrant = false
	if ok {
		s.nextIndex++
	} else {
		s.log.Error("redo failed, discarding the undo history",
			zap.String("transaction", t.DisplayName()),
			zap.Int("transactions", len(s.transactions)))
		historyResetsTotal.Inc()
		s.ClearHistory()
	}
	s.BeginNewTransaction("")
	return ok
}

// UndoCurrentTransactionOnly reverts the open transaction, if there is one,
// and forgets it so that it cannot be redone. It is meant for cancelling an
// interaction that has been recording actions.
func (s *Stack) UndoCurrentTransactionOnly() bool {
	if s.newTransaction || !s.CanUndo() {
		return false
	}
	if !s.Undo() {
		return false
	}
	s.clearFutureTransactions()
	return true
}

// MergeTransactionsUpTo folds all the transactions from the most recent one
// named name up to the cursor into a single transaction. It returns false if
// no such transaction exists before the cursor.
func (s *Stack) MergeTransactionsUpTo(name string) bool {
	i := s.nextIndex - 1
	for ; i >= 0; i-- {
		if s.transactions[i].name == name {
			break
		}
	}
	if i < 0 {
		return false
	}
	target := s.transactions[i]
	for _, t := range s.transactions[i+1 : s.nextIndex] {
		target.actions = append(target.actions, t.actions...)
	}
	s.transactions = slices.Delete(s.transactions, i+1, s.nextIndex)
	s.nextIndex = i + 1
	return true
}

// ClearHistory forgets every transaction.
func (s *Stack) ClearHistory() {
	s.transactions = nil
	s.nextIndex = 0
	s.totalUnits = 0
	s.newTransaction = true
	s.pendingName = ""
	storedUnitsGauge.Set(0)
}

func (s *Stack) CanUndo() bool { return s.nextIndex > 0 }
func (s *Stack) CanRedo() bool { return s.nextIndex < len(s.transactions) }

// UndoName returns the display name of the transaction Undo would revert, or
// "" if there is none.
func (s *Stack) UndoName() string {
	if !s.CanUndo() {
		return ""
	}
	return s.transactions[s.nextIndex-1].DisplayName()
}

// RedoName returns the display name of the transaction Redo would perform, or
// "" if there is none.
func (s *Stack) RedoName() string {
	if !s.CanRedo() {
		return ""
	}
	return s.transactions[s.nextIndex].DisplayName()
}

// NumTransactions returns the number of stored transactions, both undoable
// and redoable.
func (s *Stack) NumTransactions() int { return len(s.transactions) }

// Transaction returns the i-th stored transaction, oldest first, or nil if i
// is out of range.
func (s *Stack) Transaction(i int) *Transaction {
	if i < 0 || i >= len(s.transactions) {
		return nil
	}
	return s.transactions[i]
}

// NextIndex returns the position of the cursor.
func (s *Stack) NextIndex() int { return s.nextIndex }

// NumActionsInCurrentTransaction returns the number of actions in the open
// transaction, or 0 if the next action will begin a new one.
func (s *Stack) NumActionsInCurrentTransaction() int {
	if s.newTransaction || s.nextIndex == 0 {
		return 0
	}
	return len(s.transactions[s.nextIndex-1].actions)
}

// TotalUnits returns the summed size of all the stored transactions.
func (s *Stack) TotalUnits() int { return s.totalUnits }

// Marshal returns the undoable part of the history as records, most recent
// transaction first, capped at Limits.MaxSerialized transactions. Redoable
// transactions are not written.
func (s *Stack) Marshal() ([]TransactionRecord, error) {
	records := make([]TransactionRecord, 0, min(s.nextIndex, s.limits.MaxSerialized))
	for i := s.nextIndex - 1; i >= 0 && len(records) < s.limits.MaxSerialized; i-- {
		t := s.transactions[i]
		r := TransactionRecord{Name: t.name, Actions: make([]ActionRecord, 0, len(t.actions))}
		for _, a := range t.actions {
			ar, err := encodeAction(a)
			if err != nil {
				return nil, fmt.Errorf("could not encode action %s: %w", a.Tag(), err)
			}
			r.Actions = append(r.Actions, ar)
		}
		records = append(records, r)
	}
	return records, nil
}

// Unmarshal replaces the history with the records, as written by Marshal.
// Records with unknown tags are skipped, and transactions left empty are
// dropped. The cursor is placed after the last transaction, so everything
// loaded can be undone.
func (s *Stack) Unmarshal(records []TransactionRecord, dec Decoder) error {
	s.ClearHistory()
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		t := &Transaction{name: r.Name}
		for j := range r.Actions {
			a, err := dec.DecodeAction(r.Actions[j].Tag, &r.Actions[j].Data)
			if errors.Is(err, ErrUnknownTag) {
				s.log.Warn("skipping unknown action", zap.String("tag", r.Actions[j].Tag))
				continue
			}
			if err != nil {
				s.ClearHistory()
				return fmt.Errorf("could not decode action %s: %w", r.Actions[j].Tag, err)
			}
			t.actions = append(t.actions, a)
		}
		if len(t.actions) == 0 {
			continue
		}
		s.transactions = append(s.transactions, t)
		s.totalUnits += t.SizeInUnits()
	}
	s.nextIndex = len(s.transactions)
	s.clearFutureTransactions()
	s.log.Debug("history loaded", zap.Int("transactions", len(s.transactions)), zap.Int("units", s.totalUnits))
	return nil
}
