// metrics/delegate.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package metrics

import (
	"github.com/mmp/fms/flightplan"

	"github.com/prometheus/client_golang/prometheus"
)

// DelegateFactory attaches a counting delegate to every flight plan
// created through a flightplan.Registry it is registered with.
type DelegateFactory struct {
	m *Metrics
}

func NewDelegateFactory(m *Metrics) *DelegateFactory {
	return &DelegateFactory{m: m}
}

func (f *DelegateFactory) CreateDelegate(fp *flightplan.FlightPlan) flightplan.Delegate {
	f.m.OpenPlans.Inc()
	return newCountingDelegate(f.m.Notifications)
}

func (f *DelegateFactory) DestroyDelegate(fp *flightplan.FlightPlan, d flightplan.Delegate) {
	f.m.OpenPlans.Dec()
}

// countingDelegate holds one resolved counter per notification so the
// callbacks don't go through the label lookup.
type countingDelegate struct {
	loaded, departure, arrival, cruise, waypoints, current prometheus.Counter
	cleared, activated, sequence, end                      prometheus.Counter
}

func newCountingDelegate(c *prometheus.CounterVec) *countingDelegate {
	return &countingDelegate{
		loaded:    c.WithLabelValues("loaded"),
		departure: c.WithLabelValues("departure"),
		arrival:   c.WithLabelValues("arrival"),
		cruise:    c.WithLabelValues("cruise"),
		waypoints: c.WithLabelValues("waypoints"),
		current:   c.WithLabelValues("current_waypoint"),
		cleared:   c.WithLabelValues("cleared"),
		activated: c.WithLabelValues("activated"),
		sequence:  c.WithLabelValues("sequence"),
		end:       c.WithLabelValues("end_of_flight_plan"),
	}
}

func (d *countingDelegate) Loaded()                 { d.loaded.Inc() }
func (d *countingDelegate) DepartureChanged()       { d.departure.Inc() }
func (d *countingDelegate) ArrivalChanged()         { d.arrival.Inc() }
func (d *countingDelegate) CruiseChanged()          { d.cruise.Inc() }
func (d *countingDelegate) WaypointsChanged()       { d.waypoints.Inc() }
func (d *countingDelegate) CurrentWaypointChanged() { d.current.Inc() }
func (d *countingDelegate) Cleared()                { d.cleared.Inc() }
func (d *countingDelegate) Activated()              { d.activated.Inc() }
func (d *countingDelegate) Sequence()               { d.sequence.Inc() }
func (d *countingDelegate) EndOfFlightPlan()        { d.end.Inc() }
