package vcs

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type (
	historyRecord struct {
		Head       string           `yaml:",omitempty"`
		Revisions  []revisionRecord `yaml:",omitempty"`
		Stashes    []revisionRecord `yaml:",omitempty"`
		QuickStash *revisionRecord  `yaml:"quickStash,omitempty"`
	}

	revisionRecord struct {
		ID        string
		Parent    string `yaml:",omitempty"`
		Message   string `yaml:",omitempty"`
		Author    string `yaml:",omitempty"`
		Timestamp time.Time
		Items     []itemRecord `yaml:",omitempty"`
	}

	itemRecord struct {
		Type   string
		ID     string
		Logic  string
		Deltas []deltaRecord `yaml:",omitempty"`
	}

	deltaRecord struct {
		Type DeltaType
		Data yaml.Node
	}
)

// MarshalYAML writes the whole revision tree, parents before children, the
// id of the head and the stashes.
func (v *VersionControl) MarshalYAML() (interface{}, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec := historyRecord{Head: v.head.revision.ID}
	for _, r := range v.order {
		rr, err := encodeRevision(r)
		if err != nil {
			return nil, err
		}
		rec.Revisions = append(rec.Revisions, rr)
	}
	for _, r := range v.stashes {
		rr, err := encodeRevision(r)
		if err != nil {
			return nil, err
		}
		rec.Stashes = append(rec.Stashes, rr)
	}
	if v.quickStash != nil {
		rr, err := encodeRevision(v.quickStash)
		if err != nil {
			return nil, err
		}
		rec.QuickStash = &rr
	}
	return rec, nil
}

func encodeRevision(r *Revision) (revisionRecord, error) {
	rr := revisionRecord{ID: r.ID, Message: r.Message, Author: r.Author, Timestamp: r.Timestamp}
	if r.parent != nil {
		rr.Parent = r.parent.ID
	}
	for _, item := range r.Items {
		ir := itemRecord{Type: item.Type.String(), ID: item.ID, Logic: item.Logic}
		for i, d := range item.Deltas {
			dr := deltaRecord{Type: d.Type}
			if err := dr.Data.Encode(item.Data[i]); err != nil {
				return rr, fmt.Errorf("revision %s, item %s: %w", r.ID, item.ID, err)
			}
			ir.Deltas = append(ir.Deltas, dr)
		}
		rr.Items = append(rr.Items, ir)
	}
	return rr, nil
}

// UnmarshalYAML replaces the history with the one in the node and moves the
// head to the stored head revision; the live project is not touched. Items of
// unknown logic types and deltas of unknown types are skipped, so that files
// written by newer versions can still be read.
func (v *VersionControl) UnmarshalYAML(node *yaml.Node) error {
	var rec historyRecord
	if err := node.Decode(&rec); err != nil {
		return err
	}
	if len(rec.Revisions) == 0 {
		return errors.New("history has no root revision")
	}
	revisions := make(map[string]*Revision, len(rec.Revisions))
	order := make([]*Revision, 0, len(rec.Revisions))
	var root *Revision
	for _, rr := range rec.Revisions {
		if _, ok := revisions[rr.ID]; ok {
			return fmt.Errorf("duplicate revision %s", rr.ID)
		}
		r, err := v.decodeRevision(rr)
		if err != nil {
			return err
		}
		if rr.Parent == "" {
			if root != nil {
				return fmt.Errorf("revision %s: history has more than one root", rr.ID)
			}
			root = r
		} else {
			p, ok := revisions[rr.Parent]
			if !ok {
				return fmt.Errorf("revision %s: parent %s must be stored before its children", rr.ID, rr.Parent)
			}
			r.parent = p
			p.children = append(p.children, r)
		}
		revisions[r.ID] = r
		order = append(order, r)
	}
	if root == nil {
		return errors.New("history has no root revision")
	}
	headID := rec.Head
	if headID == "" {
		headID = root.ID
	}
	headRev, ok := revisions[headID]
	if !ok {
		return fmt.Errorf("head revision %s not found", headID)
	}
	var head Head
	if err := head.moveTo(headRev, v.schema); err != nil {
		return err
	}
	var stashes []*Revision
	for _, rr := range rec.Stashes {
		r, err := v.decodeRevision(rr)
		if err != nil {
			return fmt.Errorf("stash: %w", err)
		}
		stashes = append(stashes, r)
	}
	var quick *Revision
	if rec.QuickStash != nil {
		r, err := v.decodeRevision(*rec.QuickStash)
		if err != nil {
			return fmt.Errorf("quick stash: %w", err)
		}
		quick = r
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.root = root
	v.revisions = revisions
	v.order = order
	v.head = head
	v.stashes = stashes
	v.quickStash = quick
	return nil
}

// decodeRevision decodes the fields and items of a revision; linking it to
// its parent is left to the caller.
func (v *VersionControl) decodeRevision(rr revisionRecord) (*Revision, error) {
	r := &Revision{ID: rr.ID, Message: rr.Message, Author: rr.Author, Timestamp: rr.Timestamp}
	for _, ir := range rr.Items {
		item, err := v.decodeItem(ir)
		if err != nil {
			return nil, fmt.Errorf("revision %s: %w", rr.ID, err)
		}
		if item != nil {
			r.Items = append(r.Items, item)
		}
	}
	return r, nil
}

func (v *VersionControl) decodeItem(ir itemRecord) (*RevisionItem, error) {
	t, err := parseChangeType(ir.Type)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", ir.ID, err)
	}
	l, ok := v.schema[ir.Logic]
	if !ok {
		v.log.Warn("skipping item of unknown logic type", zap.String("id", ir.ID), zap.String("logic", ir.Logic))
		return nil, nil
	}
	item := &RevisionItem{Type: t, ID: ir.ID, Logic: ir.Logic}
	for _, dr := range ir.Deltas {
		data, err := l.Decode(dr.Type, &dr.Data)
		if errors.Is(err, ErrUnknownDelta) {
			v.log.Warn("skipping unknown delta", zap.String("id", ir.ID), zap.String("delta", string(dr.Type)))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", ir.ID, err)
		}
		item.add(l, dr.Type, data)
	}
	return item, nil
}
