// aviation/resolve_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"errors"
	"testing"

	"github.com/mmp/fms/math"
)

func TestWaypointFromString(t *testing.T) {
	db := loadTestDB(t)

	tests := []struct {
		in    string
		typ   string
		ident string
		pos   math.Point2LL
		alt   float32
		err   error
	}{
		{in: "-73.5,40.75", typ: WaypointTypeBasic, pos: math.Point2LL{-73.5, 40.75}},
		{in: "4045N07330W", typ: WaypointTypeBasic, ident: "4045N07330W", pos: math.Point2LL{-73.5, 40.75}},
		{in: "dpk", typ: WaypointTypeNavaid, ident: "DPK", pos: math.Point2LL{-73.3034, 40.7918}},
		{in: "ABCDE@12000", typ: WaypointTypeNavaid, ident: "ABCDE", pos: math.Point2LL{-72.85, 40.86}, alt: 12000},
		{in: "KJFK/04L", typ: WaypointTypeRunway, ident: "KJFK-04L", pos: math.Point2LL{-73.7907, 40.6220}},
		{in: "KJFK/13R", err: ErrUnknownRunway},
		{in: "EGLL/27L", err: ErrUnknownAirport},
		{in: "DPK/013/0", typ: WaypointTypeOffsetNavaid, ident: "DPK000000", pos: math.Point2LL{-73.3034, 40.7918}},
		{in: "NOPE", err: ErrUnknownNavaid},
		{in: "NOPE/090/10", err: ErrUnknownNavaid},
		{in: "DPK/ABC/10", err: ErrInvalidWaypointString},
		{in: "A/B/C/D", err: ErrInvalidWaypointString},
		{in: "200,10", err: ErrInvalidWaypointString},
		{in: "DPK@high", err: ErrInvalidWaypointString},
		{in: "  ", err: ErrInvalidWaypointString},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			w, err := WaypointFromString(db, tc.in, nearJFK)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Errorf("got error %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.Type() != tc.typ {
				t.Errorf("type = %s, want %s", w.Type(), tc.typ)
			}
			if tc.ident != "" && w.Ident() != tc.ident {
				t.Errorf("ident = %s, want %s", w.Ident(), tc.ident)
			}
			if d := math.MetersDistance2LL(w.Position(), tc.pos); d > 10 {
				t.Errorf("position %v is %.0fm from %v", w.Position(), d, tc.pos)
			}
			if tc.alt != 0 && (w.AltitudeRestriction() != RestrictAt || w.AltitudeFt() != tc.alt) {
				t.Errorf("altitude = %s %f, want at %f", w.AltitudeRestriction(), w.AltitudeFt(), tc.alt)
			}
		})
	}
}

func TestWaypointFromStringMagneticRadial(t *testing.T) {
	db := loadTestDB(t)

	// The variation at DPK is 13W, so the 103 magnetic radial is 090 true.
	w, err := WaypointFromString(db, "DPK/103/20", nearJFK)
	if err != nil {
		t.Fatal(err)
	}
	o, ok := w.(*OffsetNavaidWaypoint)
	if !ok {
		t.Fatalf("got %T, want *OffsetNavaidWaypoint", w)
	}
	if o.Radial() != 90 || o.DistanceNM() != 20 || o.Ident() != "DPK090020" {
		t.Errorf("radial %f distance %f ident %s", o.Radial(), o.DistanceNM(), o.Ident())
	}
	dpk := db.FindClosestWithIdent("DPK", nearJFK).Position()
	if math.Abs(w.Position().Latitude()-dpk.Latitude()) > 0.05 || w.Position().Longitude() <= dpk.Longitude() {
		t.Errorf("offset point %v is not east of DPK %v", w.Position(), dpk)
	}
}
