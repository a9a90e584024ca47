// flightplan/leg.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"log/slog"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/props"
)

// Leg is one element of a flight plan: the waypoint flown to, restrictions
// that override the waypoint's own for this plan, and the course and
// distance to the waypoint, which are recomputed whenever the plan's
// waypoints change.
type Leg struct {
	parent   *FlightPlan
	waypoint av.Waypoint

	speedRestrict av.RouteRestriction
	speed         float32 // Mach numbers are stored as -(mach*100)
	altRestrict   av.RouteRestriction
	altitudeFt    float32
	holdCount     int

	courseDeg          float32
	distanceNM         float32
	distanceAlongRoute float32
}

func newLeg(fp *FlightPlan, wp av.Waypoint) *Leg {
	if wp == nil {
		panic("flight plan leg without a waypoint")
	}
	return &Leg{parent: fp, waypoint: wp}
}

func (l *Leg) cloneFor(fp *FlightPlan) *Leg {
	c := newLeg(fp, l.waypoint.Clone())
	c.speedRestrict, c.speed = l.speedRestrict, l.speed
	c.altRestrict, c.altitudeFt = l.altRestrict, l.altitudeFt
	c.holdCount = l.holdCount
	if wo, ok := c.waypoint.Owner().(*FlightPlan); ok && wo == l.parent {
		c.waypoint.SetOwner(fp)
	}
	return c
}

func (l *Leg) Waypoint() av.Waypoint { return l.waypoint }

// Owner returns the flight plan the leg belongs to; it is nil once the leg
// has been removed from its plan.
func (l *Leg) Owner() *FlightPlan { return l.parent }

// Index returns the leg's position in its flight plan or -1 if the leg
// has been removed from it.
func (l *Leg) Index() int {
	if l.parent == nil {
		return -1
	}
	return l.parent.findLegIndex(l)
}

// NextLeg returns the following leg in the flight plan, or nil.
func (l *Leg) NextLeg() *Leg {
	idx := l.Index()
	if idx == -1 || idx+1 >= len(l.parent.legs) {
		return nil
	}
	return l.parent.legs[idx+1]
}

func (l *Leg) CourseDeg() float32          { return l.courseDeg }
func (l *Leg) DistanceNM() float32         { return l.distanceNM }
func (l *Leg) DistanceAlongRoute() float32 { return l.distanceAlongRoute }
func (l *Leg) HoldCount() int              { return l.holdCount }

// AltitudeRestriction returns the leg's restriction if it has one and
// otherwise the waypoint's.
func (l *Leg) AltitudeRestriction() av.RouteRestriction {
	if l.altRestrict != av.RestrictNone {
		return l.altRestrict
	}
	return l.waypoint.AltitudeRestriction()
}

func (l *Leg) AltitudeFt() float32 {
	if l.altRestrict != av.RestrictNone {
		return l.altitudeFt
	}
	return l.waypoint.AltitudeFt()
}

func (l *Leg) SpeedRestriction() av.RouteRestriction {
	if l.speedRestrict != av.RestrictNone {
		return l.speedRestrict
	}
	return l.waypoint.SpeedRestriction()
}

// Speed returns the raw speed value, with Mach numbers encoded as
// negative values.
func (l *Leg) Speed() float32 {
	if l.speedRestrict != av.RestrictNone {
		return l.speed
	}
	return l.waypoint.Speed()
}

func (l *Leg) SpeedKnots() float32 {
	if r := l.SpeedRestriction(); r == av.RestrictNone || r.IsMachRestrict() {
		return 0
	}
	return l.Speed()
}

func (l *Leg) SpeedMach() float32 {
	if !l.SpeedRestriction().IsMachRestrict() {
		return 0
	}
	return -l.Speed() / 100
}

// SetSpeed sets the leg's speed restriction; v is a Mach number for Mach
// restrictions and knots otherwise. RestrictNone defers to the
// waypoint's restriction.
func (l *Leg) SetSpeed(v float32, r av.RouteRestriction) {
	l.speedRestrict = r
	if r.IsMachRestrict() {
		l.speed = -v * 100
	} else {
		l.speed = v
	}
}

func (l *Leg) SetAltitude(ft float32, r av.RouteRestriction) {
	l.altRestrict, l.altitudeFt = r, ft
}

// SetHoldCount makes the leg's waypoint a hold flown count times, or
// restores the original waypoint if count is zero. It returns false if
// the waypoint can't be converted.
func (l *Leg) SetHoldCount(count int) bool {
	if count <= 0 {
		l.holdCount = 0
		return l.ConvertWaypointFromHold()
	}
	if !l.ConvertWaypointToHold() {
		return false
	}
	l.holdCount = count
	l.MarkWaypointDirty()
	return true
}

// ConvertWaypointToHold replaces a basic or navaid waypoint with a hold at
// the same position: one minute legs, inbound on the leg's course.
func (l *Leg) ConvertWaypointToHold() bool {
	switch l.waypoint.Type() {
	case av.WaypointTypeHold:
		return true
	case av.WaypointTypeBasic, av.WaypointTypeNavaid:
	default:
		l.parent.logger().Warn("cannot convert waypoint to a hold", slog.Int("index", l.Index()),
			slog.Any("waypoint", l.waypoint))
		return false
	}

	hold := av.NewHoldWaypoint(l.waypoint, l.waypoint.Owner())
	hold.SetHoldTime(60)
	hold.SetHoldRadial(l.courseDeg)
	l.waypoint = hold
	l.MarkWaypointDirty()
	return true
}

// ConvertWaypointFromHold restores the waypoint a hold was created from.
// Holds read from a stored flight plan don't have one, in which case it
// returns false.
func (l *Leg) ConvertWaypointFromHold() bool {
	hold, ok := l.waypoint.(*av.HoldWaypoint)
	if !ok {
		return true
	}
	if orig := hold.Original(); orig != nil {
		l.waypoint = orig
		l.MarkWaypointDirty()
		return true
	}
	l.parent.logger().Warn("cannot convert hold back, the original waypoint was lost",
		slog.Int("index", l.Index()), slog.Any("waypoint", l.waypoint))
	return false
}

// MarkWaypointDirty reports a change to the leg's waypoint to the flight
// plan's delegates.
func (l *Leg) MarkWaypointDirty() {
	fp := l.parent
	if fp == nil {
		return
	}
	fp.lockDelegates()
	defer fp.unlockDelegates()
	fp.dirty.waypoints = true
}

// writeProperties adds the leg-specific overrides to the waypoint's
// stored record.
func (l *Leg) writeProperties(n *props.Node) {
	av.WriteRestrictions(n, l.altitudeFt, l.altRestrict, l.speed, l.speedRestrict)
	if l.holdCount > 0 {
		n.SetInt("hold-count", l.holdCount)
	}
}

func (l *Leg) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("waypoint", l.waypoint),
		slog.Float64("course", float64(l.courseDeg)),
		slog.Float64("distance_nm", float64(l.distanceNM)),
		slog.String("alt_restrict", l.AltitudeRestriction().String()),
		slog.Float64("altitude_ft", float64(l.AltitudeFt())),
		slog.String("speed_restrict", l.SpeedRestriction().String()),
		slog.Float64("speed", float64(l.Speed())))
}
