// flightplan/geometry.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
	"github.com/mmp/fms/util"
)

// RoutePath gives the flown geometry of a flight plan's legs. Leg i
// ends at the waypoint of leg i; TrackDeg and DistanceNM describe the
// path flown to get there.
type RoutePath interface {
	TrackDeg(i int) float32
	DistanceNM(i int) float32
	Position(i int) math.Point2LL
	// PositionAlong returns the point offsetNM from leg i's waypoint,
	// forward along the route for positive offsets and backward for
	// negative ones. The result is clamped to the ends of the route.
	PositionAlong(i int, offsetNM float32) math.Point2LL
}

// PathBuilder computes the RoutePath for a flight plan's current legs.
type PathBuilder func(fp *FlightPlan) RoutePath

// SetPathBuilder replaces the geometry provider; the default treats
// each leg as a great circle between consecutive waypoints.
func (fp *FlightPlan) SetPathBuilder(b PathBuilder) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.pathBuilder = b
	fp.dirty.waypoints = true
}

type pathLeg struct {
	from, to math.Point2LL
	track    float32
	dist     float32
}

type greatCirclePath struct {
	legs []pathLeg
}

// NewGreatCirclePath is the default PathBuilder. The first leg starts at
// the departure runway threshold or, failing that, the departure airport.
// Legs that start or end at a point without a position (a discontinuity)
// have zero length and keep the previous track.
func NewGreatCirclePath(fp *FlightPlan) RoutePath {
	p := &greatCirclePath{legs: make([]pathLeg, len(fp.legs))}

	from := fp.departurePosition()
	var track float32
	for i, l := range fp.legs {
		to := l.waypoint.Position()
		pl := pathLeg{from: from, to: to, track: track}
		if from.IsValid() && to.IsValid() {
			if d := math.NMDistance2LL(from, to); d > 0 {
				pl.dist = d
				pl.track = math.InitialCourse2LL(from, to)
			}
		}
		p.legs[i] = pl
		from, track = to, pl.track
	}
	return p
}

func (fp *FlightPlan) departurePosition() math.Point2LL {
	switch {
	case fp.departureRunway != nil:
		return fp.departureRunway.Threshold
	case fp.departure != nil:
		return fp.departure.Location
	default:
		return math.InvalidPoint2LL()
	}
}

func (p *greatCirclePath) valid(i int) bool { return i >= 0 && i < len(p.legs) }

func (p *greatCirclePath) TrackDeg(i int) float32 {
	if !p.valid(i) {
		return 0
	}
	return p.legs[i].track
}

func (p *greatCirclePath) DistanceNM(i int) float32 {
	if !p.valid(i) {
		return 0
	}
	return p.legs[i].dist
}

func (p *greatCirclePath) Position(i int) math.Point2LL {
	if !p.valid(i) {
		return math.InvalidPoint2LL()
	}
	return p.legs[i].to
}

func (p *greatCirclePath) PositionAlong(i int, offsetNM float32) math.Point2LL {
	if !p.valid(i) || !p.legs[i].to.IsValid() {
		return math.InvalidPoint2LL()
	}

	cur := p.legs[i].to
	if offsetNM >= 0 {
		remaining := offsetNM
		for j := i + 1; j < len(p.legs); j++ {
			l := p.legs[j]
			if l.dist == 0 {
				if !l.to.IsValid() {
					// Can't go past a discontinuity.
					return cur
				}
				continue
			}
			if remaining <= l.dist {
				return math.Offset2LL(l.from, math.InitialCourse2LL(l.from, l.to), remaining)
			}
			remaining -= l.dist
			cur = l.to
		}
		return cur
	}

	remaining := -offsetNM
	for j := i; j >= 0; j-- {
		l := p.legs[j]
		if l.dist == 0 {
			if !l.from.IsValid() {
				return cur
			}
			continue
		}
		if remaining <= l.dist {
			return math.Offset2LL(l.to, math.InitialCourse2LL(l.to, l.from), remaining)
		}
		remaining -= l.dist
		cur = l.from
	}
	return cur
}

func (fp *FlightPlan) path() RoutePath {
	return fp.pathBuilder(fp)
}

// rebuildLegData updates each leg's course and distances from the
// current geometry. Legs of the missed approach are included in the
// distance along the route but not in the total.
func (fp *FlightPlan) rebuildLegData() {
	path := fp.path()

	var along, total float32
	for i, l := range fp.legs {
		l.courseDeg = path.TrackDeg(i)
		l.distanceNM = path.DistanceNM(i)
		along += l.distanceNM
		l.distanceAlongRoute = along
		if !l.waypoint.HasFlag(av.WaypointFlagMiss) {
			total += l.distanceNM
		}
	}
	fp.totalDistanceNM = total
}

// TotalDistanceNM returns the length of the route up to the end of the
// approach.
func (fp *FlightPlan) TotalDistanceNM() float32 { return fp.totalDistanceNM }

// PointAlongRoute returns the point offsetNM along the route from the
// waypoint of leg index; negative offsets go backward.
func (fp *FlightPlan) PointAlongRoute(index int, offsetNM float32) math.Point2LL {
	return fp.path().PositionAlong(index, offsetNM)
}

// PointAlongRouteNorm is PointAlongRoute with the offset given as a
// fraction of a leg's length: positive values move into the following
// leg and negative values back along leg index itself.
func (fp *FlightPlan) PointAlongRouteNorm(index int, norm float32) math.Point2LL {
	path := fp.path()
	if math.Abs(norm) > 1 {
		fp.lg.Error("normalized route offset out of range", "index", index, "offset", norm)
		return path.Position(index)
	}

	var d float32
	if norm > 0 {
		d = path.DistanceNM(index + 1)
	} else {
		d = path.DistanceNM(index)
	}
	if d <= 0 {
		return path.Position(index)
	}
	return path.PositionAlong(index, d*norm)
}

// VicinityForInsertIndex returns a point near where a waypoint inserted
// at index will be, for disambiguating idents. An index of -1 or past the
// end means the waypoint will be appended.
func (fp *FlightPlan) VicinityForInsertIndex(index int) math.Point2LL {
	if index < 0 || index >= len(fp.legs) {
		if len(fp.legs) == 0 {
			return fp.departurePosition()
		}
		return fp.PointAlongRoute(len(fp.legs)-1, 0)
	}
	// Halfway along the leg the new waypoint will split.
	return fp.PointAlongRouteNorm(index, util.Select(index > 0, float32(-0.5), 0))
}
