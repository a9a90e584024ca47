// flightplan/icao_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"errors"
	"testing"

	av "github.com/mmp/fms/aviation"
)

func TestParseICAORoute(t *testing.T) {
	db := loadTestDB(t)
	kjfk, kbos := db.FindAirport("KJFK"), db.FindAirport("KBOS")

	t.Run("direct and airway with STAR", func(t *testing.T) {
		fp := New(db, nil, nil)
		fp.SetDestination(kbos)
		if err := fp.ParseICAORoute("KJFK DCT DPK J42 PUT STAR"); err != nil {
			t.Fatalf("ParseICAORoute: %v", err)
		}
		if fp.Departure() != kjfk {
			t.Errorf("departure %v, want KJFK", fp.Departure())
		}
		expectIdents(t, fp, "DPK", "ABCDE", "HTO", "MERIT", "PUT")
		if fp.STAR() == nil || fp.STAR().Id != "OOSHN5" || fp.STARTransition() != nil {
			t.Errorf("STAR %v transition %v", fp.STAR(), fp.STARTransition())
		}

		s := fp.ICAORouteString()
		if s != "DCT DPK J42 PUT" {
			t.Errorf("ICAORouteString = %q", s)
		}

		// The string form reads back to the same legs.
		fp2 := New(db, nil, nil)
		fp2.SetDeparture(kjfk)
		if err := fp2.ParseICAORoute(s); err != nil {
			t.Fatalf("reparse %q: %v", s, err)
		}
		expectIdents(t, fp2, "DPK", "ABCDE", "HTO", "MERIT", "PUT")
	})

	t.Run("SID transition then airway", func(t *testing.T) {
		fp := New(db, nil, nil)
		if err := fp.ParseICAORoute("KJFK SID HTO J42 PUT"); err != nil {
			t.Fatalf("ParseICAORoute: %v", err)
		}
		if fp.SID() == nil || fp.SID().Id != "DEEZZ5" || fp.SIDTransition() == nil ||
			fp.SIDTransition().Id != "HTO" {
			t.Fatalf("SID %v transition %v", fp.SID(), fp.SIDTransition())
		}
		expectIdents(t, fp, "MERIT", "PUT")
		if s := fp.ICAORouteString(); s != "HTO J42 PUT" {
			t.Errorf("ICAORouteString = %q", s)
		}
	})

	t.Run("SID common route then airway", func(t *testing.T) {
		fp := New(db, nil, nil)
		if err := fp.ParseICAORoute("KJFK SID DPK J42 PUT"); err != nil {
			t.Fatalf("ParseICAORoute: %v", err)
		}
		if fp.SID() == nil || fp.SID().Id != "DEEZZ5" || fp.SIDTransition() != nil {
			t.Errorf("SID %v transition %v", fp.SID(), fp.SIDTransition())
		}
		expectIdents(t, fp, "ABCDE", "HTO", "MERIT", "PUT")
	})

	t.Run("route keeps the airway", func(t *testing.T) {
		r := NewRoute(db, nil, nil)
		if err := r.ParseICAORoute("KJFK DCT DPK J42 PUT"); err != nil {
			t.Fatalf("ParseICAORoute: %v", err)
		}
		if r.NumLegs() != 2 || r.Legs()[1].Waypoint().Type() != av.WaypointTypeVia {
			t.Fatalf("legs %v", legIdents(r))
		}
		if s := r.ICAORouteString(); s != "DCT DPK J42 PUT" {
			t.Errorf("ICAORouteString = %q", s)
		}
	})

	t.Run("coordinates", func(t *testing.T) {
		fp := New(db, nil, nil)
		if err := fp.ParseICAORoute("KJFK DCT DPK 4100N07230W DCT PUT"); err != nil {
			t.Fatalf("ParseICAORoute: %v", err)
		}
		expectIdents(t, fp, "DPK", "4100N07230W", "PUT")
		if s := fp.ICAORouteString(); s != "DCT DPK 4100N07230W DCT PUT" {
			t.Errorf("ICAORouteString = %q", s)
		}
	})
}

func TestParseICAORouteErrors(t *testing.T) {
	db := loadTestDB(t)

	for _, tc := range []struct {
		name      string
		departure string
		arrival   string
		route     string
		want      error
	}{
		{name: "empty", route: "   ", want: ErrEmptyRoute},
		{name: "airport as airway", route: "KJFK DCT ABCDE KLAX", want: ErrMissingRouteToken},
		{name: "dangling DCT", route: "KJFK DCT", want: ErrMissingRouteToken},
		{name: "unknown fix", route: "KJFK DCT NOTAFIX", want: ErrUnknownWaypoint},
		{name: "unknown airway exit", route: "KJFK DCT DPK J42 NOTAFIX", want: ErrUnknownWaypoint},
		{name: "unknown airway", route: "KJFK DCT DPK Q99 HTO", want: ErrUnknownAirway},
		{name: "airway without anchor", route: "KJFK J42 PUT", want: ErrMissingAnchor},
		{name: "STAR without destination", route: "KJFK DCT PUT STAR", want: ErrNoDestinationForSTAR},
		{name: "other departure", departure: "KBOS", route: "KJFK DCT DPK", want: ErrAirportMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fp := New(db, nil, nil)
			if tc.departure != "" {
				fp.SetDeparture(db.FindAirport(tc.departure))
			}
			fp.InsertWaypoint(navaid(t, fp, "MERIT"), -1)
			rec := &recorder{}
			fp.AddDelegate(rec)

			if err := fp.ParseICAORoute(tc.route); !errors.Is(err, tc.want) {
				t.Errorf("ParseICAORoute(%q) = %v, want %v", tc.route, err, tc.want)
			}
			// Failed parses leave the plan alone.
			expectIdents(t, fp, "MERIT")
			if tc.departure == "" && fp.Departure() != nil {
				t.Errorf("departure set to %v by a failed parse", fp.Departure())
			}
			if len(rec.events) != 0 {
				t.Errorf("failed parse notified %v", rec.events)
			}
		})
	}
}
