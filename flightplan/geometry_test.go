// flightplan/geometry_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"slices"
	"testing"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
)

func near(a, b math.Point2LL, nm float32) bool {
	return a.IsValid() && b.IsValid() && math.NMDistance2LL(a, b) < nm
}

func TestLegGeometry(t *testing.T) {
	fp, _, db := newTestPlan(t)
	rwy := db.FindAirport("KJFK").Runway("04L")
	fp.SetDepartureRunway(rwy)

	dpk, hto, put := navaid(t, fp, "DPK"), navaid(t, fp, "HTO"), navaid(t, fp, "PUT")
	miss := navaid(t, fp, "MERIT")
	miss.SetFlag(av.WaypointFlagMiss, true)
	fp.InsertWaypoints([]av.Waypoint{dpk, hto, put, miss}, -1)

	legs := fp.Legs()
	d0 := math.NMDistance2LL(rwy.Threshold, dpk.Position())
	d1 := math.NMDistance2LL(dpk.Position(), hto.Position())
	d2 := math.NMDistance2LL(hto.Position(), put.Position())
	d3 := math.NMDistance2LL(put.Position(), miss.Position())

	for i, want := range []float32{d0, d1, d2, d3} {
		if math.Abs(legs[i].DistanceNM()-want) > 0.01 {
			t.Errorf("leg %d distance %f, want %f", i, legs[i].DistanceNM(), want)
		}
	}
	if c := math.InitialCourse2LL(dpk.Position(), hto.Position()); math.Abs(legs[1].CourseDeg()-c) > 0.01 {
		t.Errorf("leg 1 course %f, want %f", legs[1].CourseDeg(), c)
	}
	if math.Abs(legs[3].DistanceAlongRoute()-(d0+d1+d2+d3)) > 0.01 {
		t.Errorf("distance along route %f", legs[3].DistanceAlongRoute())
	}
	// The missed approach doesn't count toward the total.
	if math.Abs(fp.TotalDistanceNM()-(d0+d1+d2)) > 0.01 {
		t.Errorf("total %f, want %f", fp.TotalDistanceNM(), d0+d1+d2)
	}

	// Moving the departure changes the first leg.
	fp.SetDepartureRunway(db.FindAirport("KJFK").Runway("31L"))
	if math.Abs(fp.Legs()[0].DistanceNM()-d0) < 1e-4 {
		t.Errorf("first leg distance not updated for new runway")
	}
}

func TestDiscontinuityGeometry(t *testing.T) {
	fp, _, _ := newTestPlan(t)
	dpk, hto, put := navaid(t, fp, "DPK"), navaid(t, fp, "HTO"), navaid(t, fp, "PUT")
	fp.InsertWaypoints([]av.Waypoint{dpk, hto, av.NewDiscontinuity(fp), put}, -1)

	legs := fp.Legs()
	// No departure, so the first leg has no length.
	if legs[0].DistanceNM() != 0 {
		t.Errorf("first leg distance %f without a departure", legs[0].DistanceNM())
	}
	if legs[2].DistanceNM() != 0 || legs[3].DistanceNM() != 0 {
		t.Errorf("legs around the discontinuity have lengths %f, %f", legs[2].DistanceNM(), legs[3].DistanceNM())
	}
	if legs[2].CourseDeg() != legs[1].CourseDeg() {
		t.Errorf("discontinuity course %f, want previous %f", legs[2].CourseDeg(), legs[1].CourseDeg())
	}

	// Points along the route stop at the discontinuity.
	if p := fp.PointAlongRoute(1, 500); !near(p, hto.Position(), 0.01) {
		t.Errorf("point past the discontinuity %v, want HTO", p)
	}
	if p := fp.PointAlongRoute(2, 1); p.IsValid() {
		t.Errorf("point from the discontinuity %v, want invalid", p)
	}
}

func TestPointAlongRoute(t *testing.T) {
	fp, _, db := newTestPlan(t)
	dpk, hto, put := navaid(t, fp, "DPK"), navaid(t, fp, "HTO"), navaid(t, fp, "PUT")
	fp.InsertWaypoints([]av.Waypoint{dpk, hto, put}, -1)

	d1 := math.NMDistance2LL(dpk.Position(), hto.Position())
	d2 := math.NMDistance2LL(hto.Position(), put.Position())

	for _, tc := range []struct {
		name   string
		index  int
		offset float32
		from   math.Point2LL
		dist   float32
	}{
		{"forward within leg", 0, 5, dpk.Position(), 5},
		{"backward within leg", 1, -5, hto.Position(), 5},
		{"forward into the next leg", 0, d1 + 3, hto.Position(), 3},
		{"backward into the previous leg", 2, -(d2 + 4), hto.Position(), 4},
		{"zero", 1, 0, hto.Position(), 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := fp.PointAlongRoute(tc.index, tc.offset)
			if d := math.NMDistance2LL(p, tc.from); math.Abs(d-tc.dist) > 0.05 {
				t.Errorf("point is %f nm from reference, want %f", d, tc.dist)
			}
		})
	}

	// Offsets beyond the ends are clamped.
	if p := fp.PointAlongRoute(1, 10000); !near(p, put.Position(), 0.01) {
		t.Errorf("clamped forward point %v, want PUT", p)
	}
	if p := fp.PointAlongRoute(1, -10000); !near(p, dpk.Position(), 0.01) {
		t.Errorf("clamped backward point %v, want DPK", p)
	}
	if p := fp.PointAlongRoute(5, 1); p.IsValid() {
		t.Errorf("point for invalid index %v", p)
	}

	// Halfway along the DPK-HTO leg, both ways.
	mid := fp.PointAlongRouteNorm(1, -0.5)
	if d := math.NMDistance2LL(mid, dpk.Position()); math.Abs(d-d1/2) > 0.05 {
		t.Errorf("midpoint is %f nm from DPK, want %f", d, d1/2)
	}
	if p := fp.PointAlongRouteNorm(0, 0.5); !near(p, mid, 0.05) {
		t.Errorf("forward midpoint %v, want %v", p, mid)
	}
	if p := fp.PointAlongRouteNorm(1, 2); !near(p, hto.Position(), 0.01) {
		t.Errorf("out of range offset gave %v, want HTO", p)
	}

	// Vicinities for insertion.
	if p := fp.VicinityForInsertIndex(-1); !near(p, put.Position(), 0.01) {
		t.Errorf("append vicinity %v, want PUT", p)
	}
	if p := fp.VicinityForInsertIndex(1); !near(p, mid, 0.05) {
		t.Errorf("insert vicinity %v, want DPK-HTO midpoint", p)
	}
	empty := New(db, nil, nil)
	if empty.VicinityForInsertIndex(0).IsValid() {
		t.Errorf("empty plan without departure has a vicinity")
	}
	empty.SetDeparture(db.FindAirport("KJFK"))
	if p := empty.VicinityForInsertIndex(0); !near(p, db.FindAirport("KJFK").Location, 0.01) {
		t.Errorf("empty plan vicinity %v, want KJFK", p)
	}
}

// fixedPath gives every leg the same length.
type fixedPath struct {
	fp *FlightPlan
}

func (p fixedPath) TrackDeg(int) float32   { return 90 }
func (p fixedPath) DistanceNM(int) float32 { return 10 }

func (p fixedPath) Position(i int) math.Point2LL {
	if l := p.fp.legAt(i); l != nil {
		return l.Waypoint().Position()
	}
	return math.InvalidPoint2LL()
}

func (p fixedPath) PositionAlong(i int, _ float32) math.Point2LL { return p.Position(i) }

func TestSetPathBuilder(t *testing.T) {
	fp, rec, _ := newTestPlan(t)
	fp.InsertWaypoints([]av.Waypoint{navaid(t, fp, "DPK"), navaid(t, fp, "HTO"), navaid(t, fp, "PUT")}, -1)

	rec.reset()
	fp.SetPathBuilder(func(fp *FlightPlan) RoutePath { return fixedPath{fp: fp} })
	if !slices.Equal(rec.events, []string{"waypoints"}) {
		t.Errorf("events = %v", rec.events)
	}
	if fp.TotalDistanceNM() != 30 {
		t.Errorf("total %f, want 30", fp.TotalDistanceNM())
	}
	for _, l := range fp.Legs() {
		if l.CourseDeg() != 90 || l.DistanceNM() != 10 {
			t.Errorf("%s: course %f distance %f", l.Waypoint().Ident(), l.CourseDeg(), l.DistanceNM())
		}
	}
}
