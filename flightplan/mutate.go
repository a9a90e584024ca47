// flightplan/mutate.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"log/slog"
	"slices"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/log"
	"github.com/mmp/fms/math"
)

func (fp *FlightPlan) logger() *log.Logger {
	if fp == nil {
		return nil
	}
	return fp.lg
}

func (fp *FlightPlan) findLegIndex(l *Leg) int {
	return slices.Index(fp.legs, l)
}

///////////////////////////////////////////////////////////////////////////
// Leg sequence

func (fp *FlightPlan) NumLegs() int { return len(fp.legs) }

// Legs returns a copy of the flight plan's leg slice.
func (fp *FlightPlan) Legs() []*Leg { return slices.Clone(fp.legs) }

// ForEachLeg calls f for each leg in order until f returns false.
func (fp *FlightPlan) ForEachLeg(f func(*Leg) bool) {
	for _, l := range fp.legs {
		if !f(l) {
			return
		}
	}
}

// InsertWaypoint inserts a single waypoint; see InsertWaypoints.
func (fp *FlightPlan) InsertWaypoint(wp av.Waypoint, index int) *Leg {
	if legs := fp.InsertWaypoints([]av.Waypoint{wp}, index); len(legs) > 0 {
		return legs[0]
	}
	return nil
}

// InsertWaypoints inserts wps before the leg at index, or appends them if
// index is -1 or past the end. Via waypoints inserted into a flight plan
// are expanded against the preceding leg's waypoint, or the SID's enroute
// fix at the start of the plan.
func (fp *FlightPlan) InsertWaypoints(wps []av.Waypoint, index int) []*Leg {
	if len(wps) == 0 {
		return nil
	}
	if index < 0 || index > len(fp.legs) {
		index = len(fp.legs)
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	var prev av.Waypoint
	if index > 0 {
		prev = fp.legs[index-1].waypoint
	} else if e := fp.sidEnrouteFix(); e != nil {
		// Airways at the start of the plan are joined from the SID.
		prev = av.NewNavaidWaypoint(e, nil)
	}

	var legs []*Leg
	for _, wp := range wps {
		if via, ok := wp.(*av.ViaWaypoint); ok && !fp.isRoute {
			if prev == nil {
				fp.lg.Error("can't expand a via waypoint at the start of the flight plan",
					slog.Any("waypoint", wp))
			} else if expanded, err := via.Expand(prev); err != nil {
				fp.lg.Error("unable to expand via waypoint", slog.Any("waypoint", wp), slog.Any("error", err))
			} else {
				for _, e := range expanded {
					legs = append(legs, newLeg(fp, e))
				}
				prev = expanded[len(expanded)-1]
				continue
			}
		}
		legs = append(legs, newLeg(fp, wp))
		prev = wp
	}

	fp.legs = slices.Insert(fp.legs, index, legs...)

	if fp.currentIndex >= index {
		fp.currentIndex += len(legs)
	}
	fp.dirty.waypoints = true

	return legs
}

// DeleteIndex removes the leg at index; negative indices count from the
// end. Removing the current leg reports a current waypoint change but
// leaves the current index unchanged.
func (fp *FlightPlan) DeleteIndex(index int) {
	if index < 0 {
		index += len(fp.legs)
	}
	if index < 0 || index >= len(fp.legs) {
		fp.lg.Warn("flight plan delete index out of range", slog.Int("index", index),
			slog.Int("legs", len(fp.legs)))
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	leg := fp.legs[index]
	fp.legs = slices.Delete(fp.legs, index, index+1)
	leg.parent = nil

	if fp.currentIndex == index {
		fp.dirty.currentWaypoint = true
	} else if fp.currentIndex > index {
		fp.currentIndex--
	}
	if fp.currentIndex >= len(fp.legs) {
		fp.currentIndex = len(fp.legs) - 1
	}
	fp.dirty.waypoints = true
}

// ClearAll removes all legs and every departure, arrival and cruise
// binding.
func (fp *FlightPlan) ClearAll() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.departure, fp.departureRunway = nil, nil
	fp.sid, fp.sidTransition = nil, ""
	fp.destination, fp.destinationRunway = nil, nil
	fp.star, fp.starTransition = nil, ""
	fp.approach, fp.approachTransition = nil, ""
	fp.alternate = nil
	fp.cruiseFlightLevel, fp.cruiseAltitudeFt, fp.cruiseAltitudeM = 0, 0, 0
	fp.cruiseMach, fp.cruiseKnots, fp.cruiseKPH = 0, 0, 0

	// Notifications come from ClearLegs, so a plan with no legs and no
	// current leg is reset without any.
	fp.ClearLegs()
}

// ClearLegs removes all legs and deactivates the flight plan.
func (fp *FlightPlan) ClearLegs() {
	if len(fp.legs) == 0 && fp.currentIndex < 0 {
		return
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.departure, fp.dirty.arrival, fp.dirty.cruise = true, true, true
	fp.dirty.waypoints, fp.dirty.currentWaypoint = true, true
	fp.currentIndex = -1
	for _, l := range fp.legs {
		l.parent = nil
	}
	fp.legs = nil

	fp.notifyCleared()
}

// ClearWaypointsWithFlag removes all legs whose waypoint has the given
// flag and returns how many were removed. If the current leg is removed,
// the flight plan has no current leg afterward.
func (fp *FlightPlan) ClearWaypointsWithFlag(flag av.WaypointFlags) int {
	var before int
	currentRemoved := false
	for i, l := range fp.legs {
		if l.waypoint.HasFlag(flag) {
			if i < fp.currentIndex {
				before++
			} else if i == fp.currentIndex {
				currentRemoved = true
			}
		}
	}

	n := len(fp.legs)
	legs := slices.DeleteFunc(slices.Clone(fp.legs), func(l *Leg) bool { return l.waypoint.HasFlag(flag) })
	removed := n - len(legs)
	if removed == 0 {
		return 0
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	for _, l := range fp.legs {
		if l.waypoint.HasFlag(flag) {
			l.parent = nil
		}
	}
	fp.legs = legs

	if currentRemoved {
		fp.currentIndex = -1
	} else if fp.currentIndex >= 0 {
		fp.currentIndex -= before
	}
	fp.dirty.waypoints = true
	if before > 0 || currentRemoved {
		fp.dirty.currentWaypoint = true
	}
	if len(fp.legs) == 0 {
		fp.notifyCleared()
	}
	return removed
}

// expandVias replaces each via waypoint with the airway waypoints it
// stands for. A via in the first leg can only be expanded from the SID's
// enroute fix. It reports whether anything changed. Expanding an
// already-expanded flight plan is a no-op.
func (fp *FlightPlan) expandVias() bool {
	changed := false
	for i := 0; i < len(fp.legs); i++ {
		via, ok := fp.legs[i].waypoint.(*av.ViaWaypoint)
		if !ok {
			continue
		}

		var prev av.Waypoint
		if i > 0 {
			prev = fp.legs[i-1].waypoint
		} else if e := fp.sidEnrouteFix(); e != nil {
			prev = av.NewNavaidWaypoint(e, nil)
		} else {
			continue
		}

		expanded, err := via.Expand(prev)
		if err != nil {
			// Fly direct to the exit fix rather than keeping a via that
			// an active flight plan can't follow.
			fp.lg.Error("unable to expand via waypoint", slog.Any("waypoint", via), slog.Any("error", err))
			direct := av.NewNavaidWaypoint(via.To(), fp)
			direct.SetFlag(via.Flags(), true)
			fp.legs[i].waypoint = direct
			changed = true
			continue
		}

		newLegs := make([]*Leg, len(expanded))
		for j, wp := range expanded {
			newLegs[j] = newLeg(fp, wp)
		}
		fp.legs[i].parent = nil
		fp.legs = slices.Replace(fp.legs, i, i+1, newLegs...)
		if fp.currentIndex > i {
			fp.currentIndex += len(newLegs) - 1
		}
		i += len(newLegs) - 1
		changed = true
	}
	return changed
}

///////////////////////////////////////////////////////////////////////////
// Current leg

func (fp *FlightPlan) CurrentIndex() int { return fp.currentIndex }

// IsActive reports whether the flight plan is being flown.
func (fp *FlightPlan) IsActive() bool {
	return !fp.isRoute && fp.currentIndex >= 0
}

// SetCurrentIndex sets the current leg; -1 means there is none.
func (fp *FlightPlan) SetCurrentIndex(index int) error {
	if index < -1 || index >= len(fp.legs) {
		return ErrInvalidIndex
	}
	if index == fp.currentIndex {
		return nil
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.currentIndex = index
	fp.dirty.currentWaypoint = true
	return nil
}

// Sequence tells the delegates that the aircraft has reached the current
// waypoint. Advancing the current leg is up to them.
func (fp *FlightPlan) Sequence() {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.notify(Delegate.Sequence)
}

// Finish ends the flight plan: there is no current leg afterward.
func (fp *FlightPlan) Finish() error {
	if fp.isRoute {
		return ErrIsRoute
	}
	if fp.currentIndex == -1 {
		return nil
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.currentIndex = -1
	fp.dirty.currentWaypoint = true
	fp.notify(Delegate.EndOfFlightPlan)
	return nil
}

// Activate makes the first leg current. Routes can't be activated.
func (fp *FlightPlan) Activate() {
	if fp.isRoute {
		fp.lg.Error("can't activate a route", slog.String("ident", fp.ident))
		return
	}
	if len(fp.legs) == 0 {
		fp.lg.Warn("can't activate an empty flight plan", slog.String("ident", fp.ident))
		return
	}

	fp.lockDelegates()
	fp.currentIndex = 0
	fp.dirty.currentWaypoint = true
	if fp.expandVias() {
		fp.dirty.waypoints = true
	}
	fp.unlockDelegates()

	fp.notify(Delegate.Activated)
}

func (fp *FlightPlan) LegAtIndex(index int) (*Leg, error) {
	if index < 0 || index >= len(fp.legs) {
		return nil, ErrInvalidIndex
	}
	return fp.legs[index], nil
}

func (fp *FlightPlan) legAt(index int) *Leg {
	if index < 0 || index >= len(fp.legs) {
		return nil
	}
	return fp.legs[index]
}

// CurrentLeg returns the leg being flown or nil if the flight plan isn't
// active.
func (fp *FlightPlan) CurrentLeg() *Leg { return fp.legAt(fp.currentIndex) }

func (fp *FlightPlan) PreviousLeg() *Leg {
	if fp.currentIndex <= 0 {
		return nil
	}
	return fp.legAt(fp.currentIndex - 1)
}

func (fp *FlightPlan) NextLeg() *Leg {
	if fp.currentIndex < 0 {
		return nil
	}
	return fp.legAt(fp.currentIndex + 1)
}

///////////////////////////////////////////////////////////////////////////
// Queries

// FindWaypointIndexAt returns the index of the first leg whose waypoint
// is at p, or -1.
func (fp *FlightPlan) FindWaypointIndexAt(p math.Point2LL) int {
	return slices.IndexFunc(fp.legs, func(l *Leg) bool { return l.waypoint.Matches(p) })
}

// FindWaypointIndex returns the index of the first leg whose waypoint
// refers to pos, or -1.
func (fp *FlightPlan) FindWaypointIndex(pos av.Positioned) int {
	if pos == nil {
		return -1
	}
	return slices.IndexFunc(fp.legs, func(l *Leg) bool { return l.waypoint.Source() == pos })
}

func (fp *FlightPlan) indexOfFirstWithFlag(flag av.WaypointFlags) int {
	return slices.IndexFunc(fp.legs, func(l *Leg) bool { return l.waypoint.HasFlag(flag) })
}

// IndexOfFirstNonDepartureWaypoint returns the index of the first leg
// that isn't part of the departure, or -1 if all are.
func (fp *FlightPlan) IndexOfFirstNonDepartureWaypoint() int {
	return slices.IndexFunc(fp.legs, func(l *Leg) bool { return !l.waypoint.HasFlag(av.WaypointFlagDeparture) })
}

func (fp *FlightPlan) IndexOfFirstArrivalWaypoint() int {
	return fp.indexOfFirstWithFlag(av.WaypointFlagArrival)
}

func (fp *FlightPlan) IndexOfFirstApproachWaypoint() int {
	return fp.indexOfFirstWithFlag(av.WaypointFlagApproach)
}

// IndexOfDestinationRunwayWaypoint returns the index of the last leg that
// ends at the destination runway, or -1.
func (fp *FlightPlan) IndexOfDestinationRunwayWaypoint() int {
	if fp.destinationRunway == nil {
		return -1
	}
	for i := len(fp.legs) - 1; i >= 0; i-- {
		if src := fp.legs[i].waypoint.Source(); src != nil && src == av.Positioned(fp.destinationRunway) {
			return i
		}
	}
	return -1
}
