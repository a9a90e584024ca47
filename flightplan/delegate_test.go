// flightplan/delegate_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"errors"
	"slices"
	"testing"
)

func TestBatchedNotifications(t *testing.T) {
	fp, rec, db := newTestPlan(t)

	fp.Batch(func() {
		fp.InsertWaypoint(navaid(t, fp, "DPK"), -1)
		fp.SetCruiseFlightLevel(300)
		fp.InsertWaypoint(navaid(t, fp, "HTO"), -1)
		fp.SetDeparture(db.FindAirport("KJFK"))
		if len(rec.events) != 0 {
			t.Errorf("notifications sent inside a batch: %v", rec.events)
		}
	})

	want := []string{"departure", "cruise", "waypoints"}
	if !slices.Equal(rec.events, want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}

	// Unbatched edits notify immediately.
	rec.reset()
	fp.SetDestination(db.FindAirport("KBOS"))
	fp.SetDestination(db.FindAirport("KBOS"))
	if !slices.Equal(rec.events, []string{"arrival"}) {
		t.Errorf("events = %v, want a single arrival change", rec.events)
	}
}

func TestNestedBatches(t *testing.T) {
	fp, rec, _ := newTestPlan(t)

	fp.Batch(func() {
		fp.Batch(func() {
			fp.InsertWaypoint(navaid(t, fp, "DPK"), -1)
		})
		if len(rec.events) != 0 {
			t.Errorf("inner batch flushed notifications: %v", rec.events)
		}
		fp.InsertWaypoint(navaid(t, fp, "HTO"), -1)
	})
	if !slices.Equal(rec.events, []string{"waypoints"}) {
		t.Errorf("events = %v", rec.events)
	}
}

// distanceChecker records leg distances as seen from WaypointsChanged.
type distanceChecker struct {
	BaseDelegate
	fp    *FlightPlan
	dists []float32
}

func (d *distanceChecker) WaypointsChanged() {
	d.dists = d.dists[:0]
	for _, l := range d.fp.Legs() {
		d.dists = append(d.dists, l.DistanceNM())
	}
}

func TestLegDataBeforeNotification(t *testing.T) {
	fp, _, db := newTestPlan(t)
	dc := &distanceChecker{fp: fp}
	fp.AddDelegate(dc)

	fp.Batch(func() {
		fp.SetDeparture(db.FindAirport("KJFK"))
		fp.InsertWaypoint(navaid(t, fp, "DPK"), -1)
		fp.InsertWaypoint(navaid(t, fp, "HTO"), -1)
	})
	if len(dc.dists) != 2 || dc.dists[0] <= 0 || dc.dists[1] <= 0 {
		t.Errorf("leg distances not computed before notification: %v", dc.dists)
	}
}

func TestAddRemoveDelegate(t *testing.T) {
	fp, rec, _ := newTestPlan(t)
	fp.AddDelegate(rec)
	fp.AddDelegate(nil)

	fp.SetCruiseFlightLevel(200)
	if !slices.Equal(rec.events, []string{"cruise"}) {
		t.Errorf("events = %v; duplicate delegate notified twice?", rec.events)
	}

	fp.RemoveDelegate(rec)
	fp.SetCruiseFlightLevel(210)
	if len(rec.events) != 1 {
		t.Errorf("removed delegate still notified: %v", rec.events)
	}
}

type testFactory struct {
	created   []*FlightPlan
	destroyed []Delegate
	decline   bool
}

func (f *testFactory) CreateDelegate(fp *FlightPlan) Delegate {
	if f.decline {
		return nil
	}
	f.created = append(f.created, fp)
	return &recorder{}
}

func (f *testFactory) DestroyDelegate(fp *FlightPlan, d Delegate) {
	f.destroyed = append(f.destroyed, d)
}

func TestRegistry(t *testing.T) {
	db := loadTestDB(t)
	reg := NewRegistry()
	f := &testFactory{}

	if err := reg.Register(f); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(f); !errors.Is(err, ErrDuplicateFactory) {
		t.Errorf("second Register = %v, want ErrDuplicateFactory", err)
	}

	fp := New(db, reg, nil)
	if len(f.created) != 1 || f.created[0] != fp {
		t.Fatalf("factory wasn't run for new flight plan: %v", f.created)
	}

	// The manually added delegate isn't handed to the factory.
	manual := &recorder{}
	fp.AddDelegate(manual)
	fp.Close()
	if len(f.destroyed) != 1 || f.destroyed[0] == manual {
		t.Errorf("destroyed = %v", f.destroyed)
	}
	fp.SetCruiseFlightLevel(100)
	if len(manual.events) != 0 {
		t.Errorf("delegate notified after Close: %v", manual.events)
	}

	// Clones get delegates from the same factories.
	fp2 := New(db, reg, nil)
	fp2.Clone("", false)
	if len(f.created) != 3 {
		t.Errorf("expected 3 created delegates, got %d", len(f.created))
	}

	reg.Unregister(f)
	reg.Unregister(f)
	New(db, reg, nil)
	if len(f.created) != 3 {
		t.Errorf("unregistered factory still run")
	}
	if len(reg.Factories()) != 0 {
		t.Errorf("factories remain after Unregister: %v", reg.Factories())
	}
}

func TestFactoryDecline(t *testing.T) {
	db := loadTestDB(t)
	reg := NewRegistry()
	f := &testFactory{decline: true}
	if err := reg.Register(f); err != nil {
		t.Fatal(err)
	}

	fp := New(db, reg, nil)
	fp.Close()
	if len(f.destroyed) != 0 {
		t.Errorf("declined factory was handed a delegate: %v", f.destroyed)
	}
}
