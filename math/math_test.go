// math/math_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"testing"
)

func TestParseLatLong(t *testing.T) {
	type LL struct {
		str string
		pos Point2LL
	}
	latlongs := []LL{
		{str: "N040.37.58.400, W073.46.17.000", pos: Point2LL{-73.771385, 40.6328888}},
		{str: "N40.37.58.4,W73.46.17.000", pos: Point2LL{-73.771385, 40.6328888}},
		{str: "40.6328888, -73.771385", pos: Point2LL{-73.771385, 40.6328888}},
		{str: "S12.00.00.000,E033.30.00.000", pos: Point2LL{33.5, -12}},
	}

	for _, ll := range latlongs {
		p, err := ParseLatLong([]byte(ll.str))
		if err != nil {
			t.Errorf("%s: unexpected error parsing: %v", ll.str, err)
		} else if Abs(p[0]-ll.pos[0]) > 1e-4 || Abs(p[1]-ll.pos[1]) > 1e-4 {
			t.Errorf("%s: got %v, expected %v", ll.str, p, ll.pos)
		}
	}

	for _, bad := range []string{"", "N40.37.58.4", "40.1 -73.2", "N40.37.58,W73.46.17.000"} {
		if _, err := ParseLatLong([]byte(bad)); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestICAOLatLong(t *testing.T) {
	for _, c := range []struct {
		s  string
		ok bool
		p  Point2LL
	}{
		{"52N020W", true, Point2LL{-20, 52}},
		{"05S150E", true, Point2LL{150, -5}},
		{"5230N02015W", true, Point2LL{-20.25, 52.5}},
		{"4500S17030E", true, Point2LL{170.5, -45}},
		{"52X020W", false, Point2LL{}},
		{"5290N02015W", false, Point2LL{}},
		{"UL612", false, Point2LL{}},
		{"95N020W", false, Point2LL{}},
	} {
		p, ok := ParseICAOLatLong(c.s)
		if ok != c.ok {
			t.Errorf("%s: got ok %v, expected %v", c.s, ok, c.ok)
		} else if ok && (Abs(p[0]-c.p[0]) > 1e-5 || Abs(p[1]-c.p[1]) > 1e-5) {
			t.Errorf("%s: got %v, expected %v", c.s, p, c.p)
		}
		if ok {
			if s := p.ICAOString(); s != c.s {
				t.Errorf("%v: ICAOString gave %q, expected %q", p, s, c.s)
			}
		}
	}
}

func TestGreatCircle(t *testing.T) {
	// JFK to LHR, roughly 2999 nm with an initial course of about 51 degrees.
	jfk := Point2LL{-73.7789, 40.6398}
	lhr := Point2LL{-0.4614, 51.4775}

	if d := NMDistance2LL(jfk, lhr); Abs(d-2999) > 5 {
		t.Errorf("JFK-LHR distance %f, expected ~2999", d)
	}
	if c := InitialCourse2LL(jfk, lhr); Abs(c-51.4) > 1 {
		t.Errorf("JFK-LHR initial course %f, expected ~51.4", c)
	}
	if c := InitialCourse2LL(jfk, jfk); c != 0 {
		t.Errorf("coincident points gave course %f", c)
	}

	// Due north one degree of latitude is 60nm.
	p := Offset2LL(Point2LL{10, 45}, 0, 60)
	if Abs(p[0]-10) > 1e-4 || Abs(p[1]-46) > 0.01 {
		t.Errorf("offset north gave %v", p)
	}

	// Offsetting along the initial course by the distance should land
	// close to the destination.
	q := Offset2LL(jfk, InitialCourse2LL(jfk, lhr), NMDistance2LL(jfk, lhr))
	if d := NMDistance2LL(q, lhr); d > 1 {
		t.Errorf("offset landed %fnm from destination", d)
	}
}

func TestHeadings(t *testing.T) {
	for _, c := range [][2]float32{{-10, 350}, {360, 0}, {-360, 0}, {725, 5}, {180, 180}} {
		if h := NormalizeHeading(c[0]); Abs(h-c[1]) > 1e-4 {
			t.Errorf("NormalizeHeading(%f) = %f, expected %f", c[0], h, c[1])
		}
	}
	if d := HeadingDifference(350, 10); d != 20 {
		t.Errorf("HeadingDifference(350, 10) = %f", d)
	}
	if h := OppositeHeading(270); h != 90 {
		t.Errorf("OppositeHeading(270) = %f", h)
	}
}

func TestInvalidPoint(t *testing.T) {
	p := InvalidPoint2LL()
	if p.IsValid() {
		t.Errorf("invalid point reports valid")
	}
	if !(Point2LL{0, 0}).IsValid() {
		t.Errorf("zero point should be valid")
	}

	b, err := json.Marshal(p)
	if err != nil || string(b) != "null" {
		t.Errorf("invalid point marshaled as %s (%v)", string(b), err)
	}

	var q Point2LL
	if err := json.Unmarshal([]byte(`[-73.5, 40.25]`), &q); err != nil || q != (Point2LL{-73.5, 40.25}) {
		t.Errorf("array unmarshal gave %v, %v", q, err)
	}
	if err := json.Unmarshal([]byte(`"N040.15.00.000,W073.30.00.000"`), &q); err != nil ||
		Abs(q[0]+73.5) > 1e-4 || Abs(q[1]-40.25) > 1e-4 {
		t.Errorf("string unmarshal gave %v, %v", q, err)
	}
}
