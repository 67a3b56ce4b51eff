package project

import "github.com/vsariola/midivcs"

type (
	// Listener receives the change notifications of a project. All the
	// notifications are delivered synchronously on the goroutine doing the
	// mutation, before the mutating call returns.
	//
	// For removals, OnRemoveEvent is called while the event is still stored
	// and OnPostRemoveEvent after it is gone. Group operations and imports do
	// not notify per event; they fire a single OnChangeLayer instead. Embed
	// NopListener to implement only some of the methods.
	Listener interface {
		OnAddEvent(item string, e midivcs.Placed)
		OnRemoveEvent(item string, e midivcs.Placed)
		OnPostRemoveEvent(item string, kind midivcs.Kind)
		OnChangeEvent(item string, before, after midivcs.Placed)
		OnChangeLayer(item string, kind midivcs.Kind)
		OnChangeBeatRange(first, last float32)
		OnAddTrack(t Track)
		OnRemoveTrack(t Track)
		OnChangeTrackProperties(t Track)
		OnChangeInfo(info *Info)
		OnReloadProject()
	}

	NopListener struct{}

	// Dispatcher fans the notifications out to the registered listeners. The
	// priority listener, typically the playback position tracker, always gets
	// each notification before the others.
	Dispatcher struct {
		priority  Listener
		listeners []Listener
	}
)

func (NopListener) OnAddEvent(string, midivcs.Placed)                    {}
func (NopListener) OnRemoveEvent(string, midivcs.Placed)                 {}
func (NopListener) OnPostRemoveEvent(string, midivcs.Kind)               {}
func (NopListener) OnChangeEvent(string, midivcs.Placed, midivcs.Placed) {}
func (NopListener) OnChangeLayer(string, midivcs.Kind)                   {}
func (NopListener) OnChangeBeatRange(float32, float32)                   {}
func (NopListener) OnAddTrack(Track)                                     {}
func (NopListener) OnRemoveTrack(Track)                                  {}
func (NopListener) OnChangeTrackProperties(Track)                        {}
func (NopListener) OnChangeInfo(*Info)                                   {}
func (NopListener) OnReloadProject()                                     {}

// SetPriorityListener sets the listener that is notified first. Passing nil
// clears it.
func (d *Dispatcher) SetPriorityListener(l Listener) { d.priority = l }

func (d *Dispatcher) AddListener(l Listener) {
	for _, x := range d.listeners {
		if x == l {
			return
		}
	}
	d.listeners = append(d.listeners, l)
}

func (d *Dispatcher) RemoveListener(l Listener) {
	for i, x := range d.listeners {
		if x == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

func (d *Dispatcher) each(f func(l Listener)) {
	if d.priority != nil {
		f(d.priority)
	}
	for _, l := range d.listeners {
		f(l)
	}
}

func (d *Dispatcher) addEvent(item string, e midivcs.Placed) {
	d.each(func(l Listener) { l.OnAddEvent(item, e) })
}

func (d *Dispatcher) removeEvent(item string, e midivcs.Placed) {
	d.each(func(l Listener) { l.OnRemoveEvent(item, e) })
}

func (d *Dispatcher) postRemoveEvent(item string, kind midivcs.Kind) {
	d.each(func(l Listener) { l.OnPostRemoveEvent(item, kind) })
}

func (d *Dispatcher) changeEvent(item string, before, after midivcs.Placed) {
	d.each(func(l Listener) { l.OnChangeEvent(item, before, after) })
}

func (d *Dispatcher) changeLayer(item string, kind midivcs.Kind) {
	d.each(func(l Listener) { l.OnChangeLayer(item, kind) })
}

func (d *Dispatcher) changeBeatRange(first, last float32) {
	d.each(func(l Listener) { l.OnChangeBeatRange(first, last) })
}

func (d *Dispatcher) addTrack(t Track)              { d.each(func(l Listener) { l.OnAddTrack(t) }) }
func (d *Dispatcher) removeTrack(t Track)           { d.each(func(l Listener) { l.OnRemoveTrack(t) }) }
func (d *Dispatcher) changeTrackProperties(t Track) { d.each(func(l Listener) { l.OnChangeTrackProperties(t) }) }
func (d *Dispatcher) changeInfo(i *Info)            { d.each(func(l Listener) { l.OnChangeInfo(i) }) }
func (d *Dispatcher) reloadProject()                { d.each(func(l Listener) { l.OnReloadProject() }) }
