package vcs

import (
	"bytes"
	"strconv"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/vsariola/midivcs"
	"golang.org/x/exp/slices"
)

type (
	// DeltaType names one aspect of a tracked item's state, e.g. "colour" or
	// "notesAdded". Delta types are only compared within the same logic type.
	DeltaType string

	// Delta describes one delta of a tracked item. The description is
	// presentation metadata only; it plays no part in diffing or merging.
	Delta struct {
		Type        DeltaType
		Description Description
	}

	// Description is a lazily rendered summary of a delta. Template is a
	// text/template with the sprig functions available, executed with the
	// Description itself as data.
	Description struct {
		Template string
		Count    int
		One      string
		Many     string
		Empty    string
		Name     string
		Value    string
	}

	// DeltaData is the payload of one delta: either a Scalar or Items. The
	// set of implementations is closed.
	DeltaData interface {
		// Len returns the number of items in the payload; scalars have length
		// one.
		Len() int
		Equal(other DeltaData) bool
		deltaData()
	}

	// Scalar is the payload of a scalar delta. Booleans, integers and colours
	// are stored in their string form, so that any scalar payload can be
	// compared and serialized the same way.
	Scalar string

	// Items is the payload of a list delta: the events or clips of an item,
	// ordered by beat.
	Items[E midivcs.Element[E]] []E
)

const (
	countTemplate   = `{{if .Count}}{{.Count}} {{plural .One .Many .Count}}{{else}}{{.Empty}}{{end}}`
	addedTemplate   = `added {{.Count}} {{plural .One .Many .Count}}`
	removedTemplate = `removed {{.Count}} {{plural .One .Many .Count}}`
	changedTemplate = `changed {{.Count}} {{plural .One .Many .Count}}`
	valueTemplate   = `{{.Name}}{{if .Value}}: {{.Value | trunc 40}}{{end}}`
)

var templates sync.Map // string -> *template.Template

func (d Description) String() string {
	if d.Template == "" {
		return d.Name
	}
	var t *template.Template
	if v, ok := templates.Load(d.Template); ok {
		t = v.(*template.Template)
	} else {
		var err error
		t, err = template.New("delta").Funcs(sprig.TxtFuncMap()).Parse(d.Template)
		if err != nil {
			return d.Name
		}
		templates.Store(d.Template, t)
	}
	var b bytes.Buffer
	if err := t.Execute(&b, d); err != nil {
		return d.Name
	}
	return b.String()
}

// CountDescription describes a list of n items, e.g. "3 notes" or "empty
// sequence".
func CountDescription(n int, one, many, empty string) Description {
	return Description{Template: countTemplate, Count: n, One: one, Many: many, Empty: empty}
}

// ValueDescription describes a scalar, e.g. "colour: ff00ff00".
func ValueDescription(name, value string) Description {
	return Description{Template: valueTemplate, Name: name, Value: value}
}

func BoolScalar(b bool) Scalar                   { return Scalar(strconv.FormatBool(b)) }
func IntScalar(i int) Scalar                     { return Scalar(strconv.Itoa(i)) }
func ColourScalar(c midivcs.Colour) Scalar       { return Scalar(c.String()) }
func (s Scalar) Len() int                        { return 1 }
func (s Scalar) String() string                  { return string(s) }
func (s Scalar) Bool() (bool, error)             { return strconv.ParseBool(string(s)) }
func (s Scalar) Int() (int, error)               { return strconv.Atoi(string(s)) }
func (s Scalar) Colour() (midivcs.Colour, error) { return midivcs.ParseColour(string(s)) }
func (Scalar) deltaData()                        {}

func (s Scalar) Equal(other DeltaData) bool {
	o, ok := other.(Scalar)
	return ok && o == s
}

func (it Items[E]) Len() int { return len(it) }
func (Items[E]) deltaData()  {}

func (it Items[E]) Equal(other DeltaData) bool {
	o, ok := other.(Items[E])
	return ok && slices.Equal(it, o)
}

// Find returns the payload of the delta of type t in item.
func Find(item ItemState, t DeltaType) (DeltaData, bool) {
	for i := 0; i < item.NumDeltas(); i++ {
		if item.Delta(i).Type == t {
			return item.DeltaData(i), true
		}
	}
	return nil, false
}
