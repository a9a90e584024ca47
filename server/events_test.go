// server/events_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"context"
	"slices"
	"testing"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/flightplan"
)

func eventTypes(evs []Event) []EventType {
	var t []EventType
	for _, ev := range evs {
		t = append(t, ev.Type)
	}
	return t
}

func TestEventStream(t *testing.T) {
	es := NewEventStream(nil)
	defer es.Destroy()

	// Nothing is kept without subscribers.
	es.Post(Event{Type: SavedEvent, Plan: "a"})
	if len(es.events) != 0 {
		t.Errorf("%d events retained without subscribers", len(es.events))
	}

	all := es.Subscribe("all", "")
	justB := es.Subscribe("b", "b")

	es.Post(Event{Type: SavedEvent, Plan: "a"})
	es.Post(Event{Type: LoadedEvent, Plan: "b"})
	es.Post(Event{Type: DeletedEvent, Plan: "a"})

	evs := all.Get()
	if !slices.Equal(eventTypes(evs), []EventType{SavedEvent, LoadedEvent, DeletedEvent}) {
		t.Errorf("all: %v", evs)
	}
	for i := 1; i < len(evs); i++ {
		if evs[i].Seq <= evs[i-1].Seq || evs[i].Time.IsZero() {
			t.Errorf("event %d: seq %d time %v", i, evs[i].Seq, evs[i].Time)
		}
	}
	if evs := justB.Get(); len(evs) != 1 || evs[0].Plan != "b" {
		t.Errorf("filtered: %v", evs)
	}
	if evs := all.Get(); len(evs) != 0 {
		t.Errorf("second Get returned %v", evs)
	}

	// Once everyone has read them, the events are dropped.
	es.mu.Lock()
	es.compact()
	n := len(es.events)
	es.mu.Unlock()
	if n != 0 {
		t.Errorf("%d events after compaction", n)
	}

	es.Post(Event{Type: SequenceEvent, Plan: "b"})
	if evs := justB.Get(); len(evs) != 1 || evs[0].Type != SequenceEvent {
		t.Errorf("after compaction: %v", evs)
	}

	justB.Unsubscribe()
	if es.NumSubscribers() != 1 {
		t.Errorf("%d subscribers", es.NumSubscribers())
	}
}

func TestEventTypeStrings(t *testing.T) {
	for ty := range NumEventTypes {
		if ty.String() == "" {
			t.Errorf("event type %d has no name", ty)
		}
	}
	if b, _ := ActivatedEvent.MarshalText(); string(b) != "activated" {
		t.Errorf("MarshalText = %q", b)
	}
}

func TestStreamDelegate(t *testing.T) {
	db, err := av.LoadStaticDatabase(context.Background(), nil, "../aviation/testdata/navdata.json")
	if err != nil {
		t.Fatal(err)
	}

	es := NewEventStream(nil)
	defer es.Destroy()
	reg := flightplan.NewRegistry()
	if err := reg.Register(es); err != nil {
		t.Fatal(err)
	}
	sub := es.Subscribe("test", "")

	fp := flightplan.New(db, reg, nil)
	fp.SetIdent("shuttle")
	fp.SetDeparture(db.FindAirport("KJFK"))
	if err := fp.ParseICAORoute("KJFK DCT DPK J42 PUT"); err != nil {
		t.Fatal(err)
	}
	fp.Activate()
	fp.Close()

	evs := sub.Get()
	types := eventTypes(evs)
	for _, want := range []EventType{DepartureChangedEvent, WaypointsChangedEvent, CurrentWaypointChangedEvent, ActivatedEvent} {
		if !slices.Contains(types, want) {
			t.Errorf("missing %s in %v", want, types)
		}
	}
	for _, ev := range evs {
		if ev.Plan != "shuttle" {
			t.Errorf("event for plan %q", ev.Plan)
		}
	}
}
