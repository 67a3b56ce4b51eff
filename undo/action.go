// Package undo implements a size-bounded undo/redo history of reversible,
// serializable actions grouped into transactions.
package undo

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type (
	// Action is a reversible unit of change. Perform applies the change and
	// Undo reverts it; both report success. An action must carry enough
	// "before" and "after" state to go in both directions, and refer to the
	// data it changes only through stable identifiers, so that an action
	// decoded from a saved document can find its target again.
	//
	// SizeInUnits is a rough cost estimate used to bound the memory used by
	// the undo history. Tag names the concrete action type in the serialized
	// form; the exported fields of the action are its payload.
	Action interface {
		Perform() bool
		Undo() bool
		SizeInUnits() int
		Tag() string
	}

	// Coalescer can be implemented by an Action to absorb the action that
	// comes right after it in the same transaction. Coalesce returns an action
	// equivalent to performing the receiver and then next, or false if the
	// two cannot be combined.
	Coalescer interface {
		Coalesce(next Action) (Action, bool)
	}

	// Decoder turns serialized action records back into actions. It should
	// return an error wrapping ErrUnknownTag for tags it does not know.
	Decoder interface {
		DecodeAction(tag string, data *yaml.Node) (Action, error)
	}

	// TransactionRecord is the serialized form of a Transaction.
	TransactionRecord struct {
		Name    string `yaml:",omitempty"`
		Actions []ActionRecord
	}

	// ActionRecord is the serialized form of an Action.
	ActionRecord struct {
		Tag  string
		Data yaml.Node
	}
)

// ErrUnknownTag is returned by decoders for action tags they do not know.
// Such records are skipped when loading the history: they are typically
// actions of an older version that no longer exist.
var ErrUnknownTag = errors.New("unknown action tag")

// DisplayName turns an action tag like "noteGroupChange" into a name
// suitable for menus, "Note Group Change".
func DisplayName(tag string) string {
	var b strings.Builder
	for i, r := range tag {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return cases.Title(language.English).String(b.String())
}

func encodeAction(a Action) (ActionRecord, error) {
	r := ActionRecord{Tag: a.Tag()}
	if err := r.Data.Encode(a); err != nil {
		return ActionRecord{}, err
	}
	return r, nil
}
