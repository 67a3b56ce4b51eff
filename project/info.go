package project

import (
	"strings"

	"github.com/vsariola/midivcs/vcs"
)

// InfoField names a field of the project info. The names double as the delta
// types of the info item.
type InfoField = vcs.DeltaType

const DefaultTemperament = "12edo"

// Info is the versioned metadata of a project.
type Info struct {
	fields  map[InfoField]string
	project *Project
}

func newInfo(p *Project) *Info {
	return &Info{fields: map[InfoField]string{TemperamentDelta: DefaultTemperament}, project: p}
}

func (i *Info) Title() string       { return i.fields[TitleDelta] }
func (i *Info) Author() string      { return i.fields[AuthorDelta] }
func (i *Info) Description() string { return i.fields[DescriptionDelta] }
func (i *Info) License() string     { return i.fields[LicenseDelta] }
func (i *Info) Temperament() string { return i.fields[TemperamentDelta] }

// Field returns the value of a field; unknown fields are empty.
func (i *Info) Field(f InfoField) string { return i.fields[f] }

// Set changes a field of the info. It fails for unknown fields and values
// equal to the current one. An empty value clears the field; a cleared
// temperament falls back to DefaultTemperament.
func (i *Info) Set(f InfoField, value string, undoable bool) bool {
	value = normalizeInfo(f, strings.TrimSpace(value))
	if !isInfoField(f) || i.fields[f] == value {
		return false
	}
	if undoable {
		return i.project.perform(&infoChange{Field: f, Before: i.fields[f], After: value, p: i.project})
	}
	return i.set(f, value)
}

func (i *Info) set(f InfoField, value string) bool {
	if !isInfoField(f) {
		return false
	}
	i.put(f, value)
	i.project.dispatcher.changeInfo(i)
	return true
}

// put stores a field, deleting it when empty, so that a cleared field looks
// the same as one never set.
func (i *Info) put(f InfoField, value string) {
	if value = normalizeInfo(f, value); value == "" {
		delete(i.fields, f)
		return
	}
	i.fields[f] = value
}

func normalizeInfo(f InfoField, value string) string {
	if value == "" && f == TemperamentDelta {
		return DefaultTemperament
	}
	return value
}

func isInfoField(f InfoField) bool {
	for _, s := range layoutOf(InfoLogic).Scalars {
		if s.Type == f {
			return true
		}
	}
	return false
}

func (i *Info) TrackedID() string { return InfoID }
func (i *Info) LogicType() string { return InfoLogic }
func (i *Info) NumDeltas() int    { return layoutOf(InfoLogic).NumDeltas() }

func (i *Info) Delta(n int) vcs.Delta         { return delta(InfoLogic, n, i.data) }
func (i *Info) DeltaData(n int) vcs.DeltaData { return deltaData(InfoLogic, n, i.data) }

func (i *Info) data(d vcs.DeltaType) vcs.DeltaData { return vcs.Scalar(i.fields[d]) }

// ResetStateTo implements vcs.TrackedItem.
func (i *Info) ResetStateTo(state vcs.ItemState) error {
	if err := checkLogic(state, InfoLogic); err != nil {
		return err
	}
	values := map[InfoField]string{}
	for n := 0; n < state.NumDeltas(); n++ {
		t := state.Delta(n).Type
		if !isInfoField(t) {
			continue
		}
		s, err := scalarOf(state.DeltaData(n))
		if err != nil {
			return err
		}
		values[t] = s.String()
	}
	changed := false
	for f, v := range values {
		if i.fields[f] != normalizeInfo(f, v) {
			i.put(f, v)
			changed = true
		}
	}
	if changed {
		i.project.dispatcher.changeInfo(i)
	}
	return nil
}

// reset restores the defaults.
func (i *Info) reset() {
	i.fields = map[InfoField]string{TemperamentDelta: DefaultTemperament}
	i.project.dispatcher.changeInfo(i)
}
