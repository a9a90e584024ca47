// flightplan/load_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"bytes"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// buildFullPlan returns a KJFK-KBOS flight plan that exercises most of
// what the native format stores.
func buildFullPlan(t *testing.T, db *av.StaticDatabase) *FlightPlan {
	t.Helper()
	fp := New(db, nil, nil)
	kjfk, kbos := db.FindAirport("KJFK"), db.FindAirport("KBOS")

	fp.Batch(func() {
		fp.SetIdent("KJFK-KBOS")
		fp.SetFlightRules(FlightRulesIFR)
		fp.SetFlightType(FlightTypeScheduled)
		fp.SetCallsign("DAL123")
		fp.SetRemarks("PBN/A1B1 <test> & more")
		fp.SetIcaoAircraftType("B738")
		fp.SetEstimatedDurationMinutes(55)
		fp.SetCruiseFlightLevel(350)
		fp.SetCruiseSpeedMach(0.78)

		fp.SetDepartureRunway(kjfk.Runway("04L"))
		if err := fp.SetSID(kjfk.SID("DEEZZ5"), "HTO"); err != nil {
			t.Fatal(err)
		}
		fp.SetDestination(kbos)
		if err := fp.SetSTAR(kbos.STAR("OOSHN5"), "HTO"); err != nil {
			t.Fatal(err)
		}
		if err := fp.SetApproach(kbos.Approach("I04R"), ""); err != nil {
			t.Fatal(err)
		}
		fp.SetAlternate(db.FindAirport("KLAX"))

		legs := fp.InsertWaypoints([]av.Waypoint{navaid(t, fp, "DPK"), navaid(t, fp, "HTO"),
			navaid(t, fp, "MERIT"), navaid(t, fp, "PUT")}, -1)
		legs[0].SetAltitude(5000, av.RestrictAbove)
		legs[1].SetSpeed(0.78, av.RestrictMach)
		legs[3].SetSpeed(250, av.RestrictBelow)
		if !legs[2].SetHoldCount(2) {
			t.Fatal("unable to make MERIT a hold")
		}
	})
	return fp
}

func checkFullPlan(t *testing.T, fp *FlightPlan) {
	t.Helper()

	if fp.FlightRules() != FlightRulesIFR || fp.FlightType() != FlightTypeScheduled {
		t.Errorf("rules %v type %v", fp.FlightRules(), fp.FlightType())
	}
	if fp.Callsign() != "DAL123" || fp.Remarks() != "PBN/A1B1 <test> & more" || fp.IcaoAircraftType() != "B738" {
		t.Errorf("callsign %q remarks %q type %q", fp.Callsign(), fp.Remarks(), fp.IcaoAircraftType())
	}
	if fp.EstimatedDurationMinutes() != 55 {
		t.Errorf("duration %d", fp.EstimatedDurationMinutes())
	}
	if fp.CruiseFlightLevel() != 350 || math.Abs(fp.CruiseSpeedMach()-0.78) > 1e-4 {
		t.Errorf("cruise FL%d M%f", fp.CruiseFlightLevel(), fp.CruiseSpeedMach())
	}

	if fp.Departure() == nil || fp.Departure().Id != "KJFK" || fp.DepartureRunway() == nil ||
		fp.DepartureRunway().Id != "04L" {
		t.Errorf("departure %v runway %v", fp.Departure(), fp.DepartureRunway())
	}
	if fp.SID() == nil || fp.SID().Id != "DEEZZ5" || fp.SIDTransition() == nil || fp.SIDTransition().Id != "HTO" {
		t.Errorf("SID %v transition %v", fp.SID(), fp.SIDTransition())
	}
	if fp.Destination() == nil || fp.Destination().Id != "KBOS" || fp.DestinationRunway() == nil ||
		fp.DestinationRunway().Id != "04R" {
		t.Errorf("destination %v runway %v", fp.Destination(), fp.DestinationRunway())
	}
	if fp.STAR() == nil || fp.STAR().Id != "OOSHN5" || fp.STARTransition() == nil {
		t.Errorf("STAR %v transition %v", fp.STAR(), fp.STARTransition())
	}
	if fp.Approach() == nil || fp.Approach().Id != "I04R" {
		t.Errorf("approach %v", fp.Approach())
	}
	if fp.Alternate() == nil || fp.Alternate().Id != "KLAX" {
		t.Errorf("alternate %v", fp.Alternate())
	}

	expectIdents(t, fp, "DPK", "HTO", "MERIT", "PUT")
	if fp.NumLegs() != 4 {
		return
	}
	legs := fp.Legs()
	if legs[0].AltitudeRestriction() != av.RestrictAbove || legs[0].AltitudeFt() != 5000 {
		t.Errorf("DPK altitude %v %f", legs[0].AltitudeRestriction(), legs[0].AltitudeFt())
	}
	if legs[1].SpeedRestriction() != av.RestrictMach || math.Abs(legs[1].SpeedMach()-0.78) > 1e-4 {
		t.Errorf("HTO speed %v %f", legs[1].SpeedRestriction(), legs[1].SpeedMach())
	}
	if legs[2].HoldCount() != 2 || legs[2].Waypoint().Type() != av.WaypointTypeHold {
		t.Errorf("MERIT hold count %d type %s", legs[2].HoldCount(), legs[2].Waypoint().Type())
	}
	if legs[3].SpeedRestriction() != av.RestrictBelow || legs[3].SpeedKnots() != 250 {
		t.Errorf("PUT speed %v %f", legs[3].SpeedRestriction(), legs[3].SpeedKnots())
	}
	for _, l := range legs {
		if l.Waypoint().Owner() != av.Owner(fp) {
			t.Errorf("%s: owner %v", l.Waypoint().Ident(), l.Waypoint().Owner())
		}
	}
}

func TestNativeRoundTrip(t *testing.T) {
	db := loadTestDB(t)
	fp := buildFullPlan(t, db)
	checkFullPlan(t, fp)

	var buf bytes.Buffer
	if err := fp.SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if !strings.Contains(buf.String(), "<version>2</version>") {
		t.Errorf("saved plan isn't version 2:\n%s", buf.String())
	}

	fp2 := New(db, nil, nil)
	rec := &recorder{}
	fp2.AddDelegate(rec)
	if err := fp2.LoadFrom(&buf); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	checkFullPlan(t, fp2)
	if len(rec.events) == 0 || rec.events[0] != "loaded" {
		t.Errorf("events = %v, want loaded first", rec.events)
	}
	if math.Abs(fp2.TotalDistanceNM()-fp.TotalDistanceNM()) > 0.01 {
		t.Errorf("total distance %f, want %f", fp2.TotalDistanceNM(), fp.TotalDistanceNM())
	}
}

func TestLoadReplacesCruise(t *testing.T) {
	db := loadTestDB(t)
	var buf bytes.Buffer
	if err := buildFullPlan(t, db).SaveTo(&buf); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	// FL350 at M0.78 loaded over 35000 ft at 450 kts.
	fp := New(db, nil, nil)
	fp.SetCruiseAltitudeFt(35000)
	fp.SetCruiseSpeedKnots(450)
	if err := fp.LoadFrom(&buf); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if fp.CruiseFlightLevel() != 350 || fp.CruiseAltitudeFt() != 0 || fp.CruiseAltitudeM() != 0 {
		t.Errorf("altitude FL%d %d ft %d m", fp.CruiseFlightLevel(), fp.CruiseAltitudeFt(), fp.CruiseAltitudeM())
	}
	if math.Abs(fp.CruiseSpeedMach()-0.78) > 1e-4 || fp.CruiseSpeedKnots() != 0 || fp.CruiseSpeedKPH() != 0 {
		t.Errorf("speed M%f %d kts %d kph", fp.CruiseSpeedMach(), fp.CruiseSpeedKnots(), fp.CruiseSpeedKPH())
	}
}

func TestSaveLoadFile(t *testing.T) {
	db := loadTestDB(t)
	fp := buildFullPlan(t, db)

	path := filepath.Join(t.TempDir(), "morning-shuttle.fgfp")
	if err := fp.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fp2 := New(db, nil, nil)
	if err := fp2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	checkFullPlan(t, fp2)
	if fp2.Ident() != "morning-shuttle" {
		t.Errorf("ident %q, want the file name", fp2.Ident())
	}
}

func TestLoadFromErrors(t *testing.T) {
	db := loadTestDB(t)

	for _, tc := range []struct {
		name string
		xml  string
		want error
	}{
		{"version 1", `<?xml version="1.0"?><PropertyList><version>1</version><route/></PropertyList>`, ErrUnsupportedVersion},
		{"version 3", `<?xml version="1.0"?><PropertyList><version>3</version><route/></PropertyList>`, ErrUnsupportedVersion},
		{"no route", `<?xml version="1.0"?><PropertyList><version>2</version></PropertyList>`, ErrNoRoute},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fp := New(db, nil, nil)
			fp.InsertWaypoint(navaid(t, fp, "DPK"), -1)
			if err := fp.LoadFrom(strings.NewReader(tc.xml)); !errors.Is(err, tc.want) {
				t.Errorf("LoadFrom = %v, want %v", err, tc.want)
			}
			expectIdents(t, fp, "DPK")
		})
	}

	fp := New(db, nil, nil)
	if err := fp.Load(filepath.Join(t.TempDir(), "missing.fgfp")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load of missing file = %v", err)
	}
	path := writeFile(t, "future.xml", `<?xml version="1.0"?><PropertyList><version>9</version><route/></PropertyList>`)
	if err := fp.Load(path); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Load of version 9 = %v", err)
	}
}

func TestLoadVersion1(t *testing.T) {
	db := loadTestDB(t)
	path := writeFile(t, "legacy.xml", `<?xml version="1.0"?>
<PropertyList>
  <departure>
    <airport type="string">KJFK</airport>
    <runway type="string">04L</runway>
  </departure>
  <destination>
    <airport type="string">KBOS</airport>
  </destination>
  <route>
    <wp>
      <ident type="string">DPK</ident>
    </wp>
    <wp>
      <ident type="string">CUSTOM</ident>
      <longitude-deg type="double">-72.5</longitude-deg>
      <latitude-deg type="double">41.0</latitude-deg>
      <altitude-ft type="double">-9999.9</altitude-ft>
    </wp>
    <wp>
      <ident type="string">PUTOFF</ident>
      <navid type="string">PUT</navid>
      <offset-nm type="double">10</offset-nm>
      <offset-radial type="double">90</offset-radial>
    </wp>
    <wp>
      <ident type="string">HTO</ident>
      <altitude-ft type="double">8000</altitude-ft>
    </wp>
  </route>
</PropertyList>
`)

	fp := New(db, nil, nil)
	fp.SetClock(func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	if err := fp.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if fp.Ident() != "legacy" {
		t.Errorf("ident %q", fp.Ident())
	}
	if fp.Departure() == nil || fp.Departure().Id != "KJFK" || fp.DepartureRunway() == nil {
		t.Errorf("departure %v runway %v", fp.Departure(), fp.DepartureRunway())
	}
	if fp.Destination() == nil || fp.Destination().Id != "KBOS" {
		t.Errorf("destination %v", fp.Destination())
	}

	expectIdents(t, fp, "DPK", "CUSTOM", "PUTOFF", "HTO")
	if fp.NumLegs() != 4 {
		return
	}
	legs := fp.Legs()
	for _, l := range legs {
		if l.Waypoint().Type() != av.WaypointTypeBasic {
			t.Errorf("%s: type %s, want basic", l.Waypoint().Ident(), l.Waypoint().Type())
		}
	}

	dpk := db.FindClosestWithIdent("DPK", nearJFK)
	if !legs[0].Waypoint().Matches(dpk.Position()) {
		t.Errorf("DPK at %v, want %v", legs[0].Waypoint().Position(), dpk.Position())
	}
	if legs[1].AltitudeRestriction() != av.RestrictNone {
		t.Errorf("CUSTOM has altitude restriction %v", legs[1].AltitudeRestriction())
	}
	put := db.FindClosestWithIdent("PUT", nearJFK)
	if d := math.NMDistance2LL(put.Position(), legs[2].Waypoint().Position()); d < 9.8 || d > 10.2 {
		t.Errorf("PUTOFF is %f nm from PUT, want 10", d)
	}
	if legs[3].AltitudeRestriction() != av.RestrictAt || legs[3].AltitudeFt() != 8000 {
		t.Errorf("HTO altitude %v %f", legs[3].AltitudeRestriction(), legs[3].AltitudeFt())
	}
}

func TestLoadGPX(t *testing.T) {
	db := loadTestDB(t)
	path := writeFile(t, "trip.gpx", `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test">
  <rte>
    <rtept lat="40.6398" lon="-73.7789"><name>KJFK</name></rtept>
    <rtept lat="40.7918" lon="-73.3034"><name>DPK</name><ele>1524</ele></rtept>
    <rtept lat="41.2" lon="-72.5"><cmt>USER1</cmt></rtept>
    <rtept lat="42.3643" lon="-71.0052"><name>KBOS</name></rtept>
  </rte>
</gpx>
`)

	fp := New(db, nil, nil)
	if err := fp.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fp.Departure() == nil || fp.Departure().Id != "KJFK" {
		t.Errorf("departure %v", fp.Departure())
	}
	if fp.Destination() == nil || fp.Destination().Id != "KBOS" {
		t.Errorf("destination %v", fp.Destination())
	}
	expectIdents(t, fp, "DPK", "USER1")
	if fp.NumLegs() != 2 {
		return
	}

	legs := fp.Legs()
	if legs[0].Waypoint().Type() != av.WaypointTypeNavaid {
		t.Errorf("DPK type %s, want navaid", legs[0].Waypoint().Type())
	}
	if legs[0].AltitudeRestriction() != av.RestrictAt || math.Abs(legs[0].AltitudeFt()-5000) > 1 {
		t.Errorf("DPK altitude %v %f", legs[0].AltitudeRestriction(), legs[0].AltitudeFt())
	}
	if legs[1].Waypoint().Type() != av.WaypointTypeBasic {
		t.Errorf("USER1 type %s, want basic", legs[1].Waypoint().Type())
	}
	if fp.Ident() != "trip" {
		t.Errorf("ident %q", fp.Ident())
	}

	// A GPX file without route points falls through to the other
	// formats, none of which can read it.
	empty := writeFile(t, "empty.gpx", `<?xml version="1.0"?><gpx><rte></rte></gpx>`)
	fp2 := New(db, nil, nil)
	if err := fp2.Load(empty); !errors.Is(err, ErrLooksLikeXML) {
		t.Errorf("Load of empty GPX = %v", err)
	}
}

func TestLoadText(t *testing.T) {
	db := loadTestDB(t)
	text := `# KJFK to KBOS the long way
DPK

4100N07230W
HTO@6000
PUT/090/10
KBOS/04R
`

	check := func(t *testing.T, fp *FlightPlan) {
		t.Helper()
		if fp.NumLegs() != 5 {
			t.Fatalf("got %d legs: %v", fp.NumLegs(), legIdents(fp))
		}
		legs := fp.Legs()
		for i, want := range []string{av.WaypointTypeNavaid, av.WaypointTypeBasic, av.WaypointTypeNavaid,
			av.WaypointTypeOffsetNavaid, av.WaypointTypeRunway} {
			if got := legs[i].Waypoint().Type(); got != want {
				t.Errorf("leg %d: type %s, want %s", i, got, want)
			}
			if legs[i].Waypoint().Owner() != av.Owner(fp) {
				t.Errorf("leg %d isn't owned by the flight plan", i)
			}
		}
		if legs[2].AltitudeRestriction() != av.RestrictAt || legs[2].AltitudeFt() != 6000 {
			t.Errorf("HTO altitude %v %f", legs[2].AltitudeRestriction(), legs[2].AltitudeFt())
		}
	}

	t.Run("plain", func(t *testing.T) {
		fp := New(db, nil, nil)
		if err := fp.Load(writeFile(t, "long-way.txt", text)); err != nil {
			t.Fatalf("Load: %v", err)
		}
		check(t, fp)
		if fp.Ident() != "long-way" {
			t.Errorf("ident %q", fp.Ident())
		}
	})

	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write([]byte(text)); err != nil {
			t.Fatal(err)
		}
		if err := zw.Close(); err != nil {
			t.Fatal(err)
		}

		fp := New(db, nil, nil)
		if err := fp.Load(writeFile(t, "long-way.txt.gz", buf.String())); err != nil {
			t.Fatalf("Load: %v", err)
		}
		check(t, fp)
		if fp.Ident() != "long-way" {
			t.Errorf("ident %q", fp.Ident())
		}
	})

	t.Run("bad line", func(t *testing.T) {
		fp := New(db, nil, nil)
		fp.SetIdent("before")
		fp.InsertWaypoint(navaid(t, fp, "MERIT"), -1)

		err := fp.Load(writeFile(t, "bad.txt", "DPK\nNOSUCHFIX\nHTO\n"))
		if err == nil || !strings.Contains(err.Error(), "line 2") {
			t.Errorf("Load = %v, want an error for line 2", err)
		}
		expectIdents(t, fp, "MERIT")
		if fp.Ident() != "before" {
			t.Errorf("failed load changed the ident to %q", fp.Ident())
		}
	})

	t.Run("xml", func(t *testing.T) {
		fp := New(db, nil, nil)
		err := fp.Load(writeFile(t, "other.xml", "<?xml version=\"1.0\"?>\n<kml><Document/></kml>\n"))
		if !errors.Is(err, ErrLooksLikeXML) {
			t.Errorf("Load = %v, want ErrLooksLikeXML", err)
		}
	})
}

func TestFileBase(t *testing.T) {
	for path, want := range map[string]string{
		"/tmp/plans/KJFK-KBOS.fgfp": "KJFK-KBOS",
		"route.gpx.gz":              "route",
		"a/b/c.txt.zst":             "c",
		"noext":                     "noext",
	} {
		if got := fileBase(path); got != want {
			t.Errorf("fileBase(%q) = %q, want %q", path, got, want)
		}
	}
	if !isGPXPath("x/TRIP.GPX.gz") || isGPXPath("trip.xml") {
		t.Errorf("isGPXPath")
	}
}
