package project

import (
	"cmp"

	"github.com/vsariola/midivcs"
	"golang.org/x/exp/slices"
)

// store keeps elements ordered by beat, ties broken by insertion order, with
// an index by id and an index by content. Ordinals are remembered per id even
// after an element is removed, so putting an element back (e.g. undoing its
// removal) restores its position among elements at the same beat.
type store[E midivcs.Element[E]] struct {
	items       []E
	byID        map[midivcs.ID]E
	byContent   map[E]midivcs.ID
	ordinals    map[midivcs.ID]uint64
	nextOrdinal uint64

	rangeValid  bool
	first, last float32
}

func newStore[E midivcs.Element[E]]() store[E] {
	return store[E]{
		byID:      map[midivcs.ID]E{},
		byContent: map[E]midivcs.ID{},
		ordinals:  map[midivcs.ID]uint64{},
	}
}

func (s *store[E]) len() int { return len(s.items) }

func (s *store[E]) get(id midivcs.ID) (E, bool) {
	e, ok := s.byID[id]
	return e, ok
}

func (s *store[E]) has(id midivcs.ID) bool {
	_, ok := s.byID[id]
	return ok
}

// duplicate returns true if an element other than the one with id skip has
// the same content as e.
func (s *store[E]) duplicate(e E, skip midivcs.ID) bool {
	id, ok := s.byContent[e.WithID("")]
	return ok && id != skip
}

func (s *store[E]) newID() midivcs.ID {
	return midivcs.NewID(s.has)
}

func (s *store[E]) ordinal(id midivcs.ID) uint64 {
	o, ok := s.ordinals[id]
	if !ok {
		o = s.nextOrdinal
		s.nextOrdinal++
		s.ordinals[id] = o
	}
	return o
}

func (s *store[E]) compare(a, b E) int {
	if c := cmp.Compare(a.GetBeat(), b.GetBeat()); c != 0 {
		return c
	}
	return cmp.Compare(s.ordinal(a.GetID()), s.ordinal(b.GetID()))
}

func (s *store[E]) position(e E) (int, bool) {
	return slices.BinarySearchFunc(s.items, e, s.compare)
}

// put stores e, which must have a fresh id.
func (s *store[E]) put(e E) {
	i, _ := s.position(e)
	s.items = slices.Insert(s.items, i, e)
	s.index(e)
}

func (s *store[E]) index(e E) {
	s.byID[e.GetID()] = e
	s.byContent[e.WithID("")] = e.GetID()
	s.rangeValid = false
}

func (s *store[E]) delete(id midivcs.ID) (E, bool) {
	e, ok := s.byID[id]
	if !ok {
		return e, false
	}
	if i, found := s.position(e); found {
		s.items = slices.Delete(s.items, i, i+1)
	}
	delete(s.byID, id)
	if s.byContent[e.WithID("")] == id {
		delete(s.byContent, e.WithID(""))
	}
	s.rangeValid = false
	return e, true
}

// replace swaps the element with the id of e for e, keeping its ordinal.
func (s *store[E]) replace(e E) (E, bool) {
	old, ok := s.delete(e.GetID())
	if ok {
		s.put(e)
	}
	return old, ok
}

// appendUnsorted adds e to the end without keeping the order; sort must be
// called once all the elements have been appended.
func (s *store[E]) appendUnsorted(e E) {
	s.ordinal(e.GetID())
	s.items = append(s.items, e)
	s.index(e)
}

func (s *store[E]) sort() {
	slices.SortStableFunc(s.items, s.compare)
}

func (s *store[E]) clear() {
	s.items = nil
	clear(s.byID)
	clear(s.byContent)
	s.rangeValid = false
}

func (s *store[E]) beatRange() (first, last float32) {
	if s.rangeValid {
		return s.first, s.last
	}
	s.first, s.last = 0, 0
	if len(s.items) > 0 {
		s.first = s.items[0].GetBeat()
		for _, e := range s.items {
			s.last = max(s.last, endBeat(e))
		}
	}
	s.rangeValid = true
	return s.first, s.last
}

func endBeat(p midivcs.Placed) float32 {
	if e, ok := p.(midivcs.Event); ok {
		return e.GetEndBeat()
	}
	return p.GetBeat()
}
