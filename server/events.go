// server/events.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmp/fms/flightplan"
	"github.com/mmp/fms/log"
)

type EventType int

const (
	LoadedEvent EventType = iota
	DepartureChangedEvent
	ArrivalChangedEvent
	CruiseChangedEvent
	WaypointsChangedEvent
	CurrentWaypointChangedEvent
	ClearedEvent
	ActivatedEvent
	SequenceEvent
	EndOfFlightPlanEvent
	SavedEvent
	DeletedEvent
	NumEventTypes
)

func (t EventType) String() string {
	return []string{"loaded", "departure_changed", "arrival_changed", "cruise_changed",
		"waypoints_changed", "current_waypoint_changed", "cleared", "activated", "sequence",
		"end_of_flight_plan", "saved", "deleted"}[t]
}

func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Event reports a change to a named flight plan.
type Event struct {
	Seq  uint64    `json:"seq"`
	Type EventType `json:"type"`
	Plan string    `json:"plan"`
	Time time.Time `json:"time"`
	// Revision is set for SavedEvents.
	Revision string `json:"revision,omitempty"`
}

func (e Event) LogValue() slog.Value {
	attrs := []slog.Attr{slog.Uint64("seq", e.Seq), slog.String("type", e.Type.String()),
		slog.String("plan", e.Plan)}
	if e.Revision != "" {
		attrs = append(attrs, slog.String("revision", e.Revision))
	}
	return slog.GroupValue(attrs...)
}

// EventStream is a simple pub/sub stream of flight plan change events.
// Events are only retained while there are subscribers that haven't
// consumed them yet.
type EventStream struct {
	mu            sync.Mutex
	events        []Event
	seq           uint64
	subscriptions map[*EventsSubscription]struct{}
	lastPost      time.Time
	warnedLong    bool
	done          chan struct{}
	now           func() time.Time
	lg            *log.Logger
}

type EventsSubscription struct {
	stream *EventStream
	// offset is the index in the stream's events up to which the
	// subscriber has consumed them.
	offset int
	// Only events for this plan are returned if it is non-empty.
	plan        string
	source      string
	lastGet     time.Time
	warnedNoGet bool
}

func (e *EventsSubscription) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("offset", e.offset),
		slog.String("plan", e.plan),
		slog.String("source", e.source),
		slog.Time("last_get", e.lastGet))
}

func NewEventStream(lg *log.Logger) *EventStream {
	es := &EventStream{
		subscriptions: make(map[*EventsSubscription]struct{}),
		lastPost:      time.Now(),
		done:          make(chan struct{}),
		now:           time.Now,
		lg:            lg,
	}
	go es.monitor(5 * time.Second)
	return es
}

// Subscribe registers a new subscriber; source identifies it in log
// messages. If plan is non-empty, only that plan's events are delivered.
func (e *EventStream) Subscribe(source, plan string) *EventsSubscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &EventsSubscription{
		stream:  e,
		offset:  len(e.events),
		plan:    plan,
		source:  source,
		lastGet: e.now(),
	}
	e.subscriptions[sub] = struct{}{}
	return sub
}

func (e *EventStream) NumSubscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscriptions)
}

func (e *EventStream) monitor(period time.Duration) {
	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-tick.C:
		}

		e.mu.Lock()

		e.compact()

		if len(e.events) > 1000 && !e.warnedLong {
			// Most likely a subscriber has stopped reading.
			e.lg.Warn("long event stream", slog.Int("length", len(e.events)))
			e.warnedLong = true
		}

		// Only complain about idle subscribers if there is something for
		// them to read.
		if e.now().Sub(e.lastPost) < 2*period {
			for sub := range e.subscriptions {
				if d := e.now().Sub(sub.lastGet); d > 2*period && !sub.warnedNoGet {
					e.lg.Warn("subscriber has not called Get recently",
						slog.Duration("duration", d), slog.Any("subscriber", sub))
					sub.warnedNoGet = true
				}
			}
		}

		e.mu.Unlock()
	}
}

func (e *EventsSubscription) Unsubscribe() {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("attempted to unsubscribe invalid subscription: %+v", e)
	}
	delete(e.stream.subscriptions, e)
}

// Post adds an event to the stream, assigning its sequence number and
// time.
func (e *EventStream) Post(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	ev.Seq = e.seq
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.lg.Debug("posted event", slog.Any("event", ev))

	// Ignore the event if no one's paying attention.
	if len(e.subscriptions) > 0 {
		e.lastPost = e.now()
		e.events = append(e.events, ev)
	}
}

// Get returns the subscriber's events that have been posted since the
// last call to Get. Events posted before Subscribe are never returned.
func (e *EventsSubscription) Get() []Event {
	e.stream.mu.Lock()
	defer e.stream.mu.Unlock()

	if _, ok := e.stream.subscriptions[e]; !ok {
		e.stream.lg.Errorf("attempted to get with unregistered subscription: %+v", e)
		return nil
	}

	var events []Event
	for _, ev := range e.stream.events[e.offset:] {
		if e.plan == "" || ev.Plan == e.plan {
			events = append(events, ev)
		}
	}
	e.offset = len(e.stream.events)
	e.lastGet = e.stream.now()
	e.warnedNoGet = false

	return events
}

func (e *EventStream) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.done:
	default:
		close(e.done)
	}
	clear(e.subscriptions)
}

// compact drops events that all subscribers have seen.
func (e *EventStream) compact() {
	minOffset := len(e.events)
	for sub := range e.subscriptions {
		minOffset = min(minOffset, sub.offset)
	}

	if minOffset > cap(e.events)/2 {
		n := len(e.events) - minOffset

		copy(e.events, e.events[minOffset:])
		e.events = e.events[:n]

		for sub := range e.subscriptions {
			sub.offset -= minOffset
		}

		e.warnedLong = false
	}
}

func (e *EventStream) LogValue() slog.Value {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := []slog.Attr{slog.Int("len", len(e.events)), slog.Int("cap", cap(e.events)),
		slog.Int("subscribers", len(e.subscriptions))}
	if len(e.events) > 0 {
		items = append(items, slog.Any("last_event", e.events[len(e.events)-1]))
	}
	return slog.GroupValue(items...)
}

///////////////////////////////////////////////////////////////////////////
// flightplan.DelegateFactory

// CreateDelegate returns a delegate that posts fp's notifications to the
// stream under the plan's ident, as it is at the time of the
// notification.
func (e *EventStream) CreateDelegate(fp *flightplan.FlightPlan) flightplan.Delegate {
	return &streamDelegate{stream: e, fp: fp}
}

func (e *EventStream) DestroyDelegate(fp *flightplan.FlightPlan, d flightplan.Delegate) {
	e.lg.Debug("flight plan closed", slog.String("plan", fp.Ident()))
}

type streamDelegate struct {
	stream *EventStream
	fp     *flightplan.FlightPlan
}

func (d *streamDelegate) post(t EventType) {
	d.stream.Post(Event{Type: t, Plan: d.fp.Ident()})
}

func (d *streamDelegate) Loaded()                 { d.post(LoadedEvent) }
func (d *streamDelegate) DepartureChanged()       { d.post(DepartureChangedEvent) }
func (d *streamDelegate) ArrivalChanged()         { d.post(ArrivalChangedEvent) }
func (d *streamDelegate) CruiseChanged()          { d.post(CruiseChangedEvent) }
func (d *streamDelegate) WaypointsChanged()       { d.post(WaypointsChangedEvent) }
func (d *streamDelegate) CurrentWaypointChanged() { d.post(CurrentWaypointChangedEvent) }
func (d *streamDelegate) Cleared()                { d.post(ClearedEvent) }
func (d *streamDelegate) Activated()              { d.post(ActivatedEvent) }
func (d *streamDelegate) Sequence()               { d.post(SequenceEvent) }
func (d *streamDelegate) EndOfFlightPlan()        { d.post(EndOfFlightPlanEvent) }
