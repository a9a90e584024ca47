// flightplan/delegate.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"slices"
	"sync"
)

// Delegate is notified when a FlightPlan changes. Notifications are
// batched: each category is reported at most once per outermost batch,
// after all of the batch's changes have been made. Delegates must not
// modify the flight plan from inside a callback.
type Delegate interface {
	Loaded()
	DepartureChanged()
	ArrivalChanged()
	CruiseChanged()
	// WaypointsChanged is called after leg course and distances have been
	// recomputed.
	WaypointsChanged()
	CurrentWaypointChanged()
	Cleared()
	Activated()
	Sequence()
	EndOfFlightPlan()
}

// BaseDelegate provides no-op implementations of all of the Delegate
// methods so that delegates only need to implement the notifications
// they care about.
type BaseDelegate struct{}

func (BaseDelegate) Loaded()                 {}
func (BaseDelegate) DepartureChanged()       {}
func (BaseDelegate) ArrivalChanged()         {}
func (BaseDelegate) CruiseChanged()          {}
func (BaseDelegate) WaypointsChanged()       {}
func (BaseDelegate) CurrentWaypointChanged() {}
func (BaseDelegate) Cleared()                {}
func (BaseDelegate) Activated()              {}
func (BaseDelegate) Sequence()               {}
func (BaseDelegate) EndOfFlightPlan()        {}

// DelegateFactory creates the delegates for new flight plans. Create may
// return nil if the factory isn't interested in a particular plan.
// Delegates that a factory created are handed back to it by
// FlightPlan.Close.
type DelegateFactory interface {
	CreateDelegate(fp *FlightPlan) Delegate
	DestroyDelegate(fp *FlightPlan, d Delegate)
}

// Registry holds the delegate factories that are consulted when a
// FlightPlan is created. Factories are run in registration order.
type Registry struct {
	mu        sync.Mutex
	factories []DelegateFactory
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a factory; registering the same factory twice is an
// error.
func (r *Registry) Register(f DelegateFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slices.Contains(r.factories, f) {
		return ErrDuplicateFactory
	}
	r.factories = append(r.factories, f)
	return nil
}

// Unregister removes a factory. It is a no-op if f isn't registered.
// Delegates already created by the factory remain attached to their
// flight plans.
func (r *Registry) Unregister(f DelegateFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories = slices.DeleteFunc(r.factories, func(g DelegateFactory) bool { return g == f })
}

func (r *Registry) Factories() []DelegateFactory {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.factories)
}

///////////////////////////////////////////////////////////////////////////
// Change batching

type dirtyFlags struct {
	loaded          bool
	departure       bool
	arrival         bool
	cruise          bool
	waypoints       bool
	currentWaypoint bool
}

func (d dirtyFlags) any() bool {
	return d.loaded || d.departure || d.arrival || d.cruise || d.waypoints || d.currentWaypoint
}

// lockDelegates starts a batch of changes. Batches nest; notifications
// are sent when the outermost batch ends.
func (fp *FlightPlan) lockDelegates() {
	if fp.lockDepth == 0 && fp.dirty.any() {
		panic("flight plan modified outside of a change batch")
	}
	fp.lockDepth++
	if fp.lockDepth > 10 {
		fp.lg.Warn("deeply nested flight plan change batch", "depth", fp.lockDepth)
	}
}

func (fp *FlightPlan) unlockDelegates() {
	if fp.lockDepth <= 0 {
		panic("unbalanced flight plan change batch")
	}
	if fp.lockDepth > 1 {
		fp.lockDepth--
		return
	}

	// Still locked while the notifications go out, so that anything a
	// notification marks dirty is flushed here as well.
	if fp.dirty.loaded {
		fp.dirty.loaded = false
		fp.notify(Delegate.Loaded)
	}
	if fp.dirty.departure {
		fp.dirty.departure = false
		fp.notify(Delegate.DepartureChanged)
	}
	if fp.dirty.arrival {
		fp.dirty.arrival = false
		fp.notify(Delegate.ArrivalChanged)
	}
	if fp.dirty.cruise {
		fp.dirty.cruise = false
		fp.notify(Delegate.CruiseChanged)
	}
	if fp.dirty.waypoints {
		fp.dirty.waypoints = false
		fp.rebuildLegData()
		fp.notify(Delegate.WaypointsChanged)
	}
	if fp.dirty.currentWaypoint {
		fp.dirty.currentWaypoint = false
		fp.notify(Delegate.CurrentWaypointChanged)
	}

	fp.lockDepth--
}

func (fp *FlightPlan) notify(f func(Delegate)) {
	for _, d := range fp.delegates {
		f(d)
	}
}

// Batch runs fn with notifications deferred until it returns, so that a
// sequence of edits is reported to delegates once.
func (fp *FlightPlan) Batch(fn func()) {
	fp.lockDelegates()
	defer fp.unlockDelegates()
	fn()
}

// AddDelegate attaches d to the flight plan. Adding the same delegate
// twice is a no-op.
func (fp *FlightPlan) AddDelegate(d Delegate) {
	if d == nil || slices.Contains(fp.delegates, d) {
		return
	}
	fp.delegates = append(fp.delegates, d)
}

func (fp *FlightPlan) RemoveDelegate(d Delegate) {
	fp.delegates = slices.DeleteFunc(fp.delegates, func(e Delegate) bool { return e == d })
	delete(fp.factoryDelegates, d)
}

// Close detaches all delegates, returning those made by a factory to
// that factory.
func (fp *FlightPlan) Close() {
	for _, d := range fp.delegates {
		if f, ok := fp.factoryDelegates[d]; ok {
			f.DestroyDelegate(fp, d)
		}
	}
	fp.delegates = nil
	clear(fp.factoryDelegates)
}

func (fp *FlightPlan) notifyCleared() {
	fp.notify(Delegate.Cleared)
}
