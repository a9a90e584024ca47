// aviation/navdata.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mmp/fms/math"
)

type PositionedType int

const (
	PositionedInvalid PositionedType = iota
	PositionedAirport
	PositionedRunway
	PositionedVOR
	PositionedNDB
	PositionedDME
	PositionedFix
)

func (t PositionedType) String() string {
	switch t {
	case PositionedAirport:
		return "airport"
	case PositionedRunway:
		return "runway"
	case PositionedVOR:
		return "VOR"
	case PositionedNDB:
		return "NDB"
	case PositionedDME:
		return "DME"
	case PositionedFix:
		return "fix"
	default:
		return "invalid"
	}
}

// Positioned is anything in the navigation database that has an
// identifier and a fixed location on the Earth.
type Positioned interface {
	Ident() string
	Position() math.Point2LL
	Kind() PositionedType
}

// Owner is implemented by things that generate waypoints: airways,
// procedures and their transitions, and flight plans.
type Owner interface {
	Ident() string
}

// Frequencies are scaled by 1000 and then stored in integers.
type Frequency int

func NewFrequency(f float32) Frequency {
	// 0.5 is key for handling rounding!
	return Frequency(f*1000 + 0.5)
}

func (f Frequency) String() string {
	s := fmt.Sprintf("%03d.%03d", f/1000, f%1000)
	for len(s) < 7 {
		s += "0"
	}
	return s
}

///////////////////////////////////////////////////////////////////////////
// Navaid, Fix

type Navaid struct {
	Id        string        `json:"id"`
	Type      string        `json:"type"` // VOR, NDB, DME
	Name      string        `json:"name,omitempty"`
	Location  math.Point2LL `json:"location"`
	Frequency Frequency     `json:"frequency,omitempty"`
}

func (n *Navaid) Ident() string           { return n.Id }
func (n *Navaid) Position() math.Point2LL { return n.Location }

func (n *Navaid) Kind() PositionedType {
	switch strings.ToUpper(n.Type) {
	case "NDB":
		return PositionedNDB
	case "DME":
		return PositionedDME
	default:
		return PositionedVOR
	}
}

type Fix struct {
	Id       string        `json:"id"`
	Location math.Point2LL `json:"location"`
}

func (f *Fix) Ident() string           { return f.Id }
func (f *Fix) Position() math.Point2LL { return f.Location }
func (f *Fix) Kind() PositionedType    { return PositionedFix }

///////////////////////////////////////////////////////////////////////////
// Airport, Runway

type Airport struct {
	Id         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Elevation  int           `json:"elevation"`
	Location   math.Point2LL `json:"location"`
	Runways    []*Runway     `json:"runways,omitempty"`
	SIDs       []*Procedure  `json:"sids,omitempty"`
	STARs      []*Procedure  `json:"stars,omitempty"`
	Approaches []*Procedure  `json:"approaches,omitempty"`
}

func (ap *Airport) Ident() string           { return ap.Id }
func (ap *Airport) Position() math.Point2LL { return ap.Location }
func (ap *Airport) Kind() PositionedType    { return PositionedAirport }

func TidyRunway(r string) string {
	r, _, _ = strings.Cut(r, ".")
	r = strings.TrimPrefix(strings.TrimSpace(strings.ToUpper(r)), "RW")
	if len(r) > 1 && r[0] == '0' {
		r = r[1:]
	}
	return r
}

// Runway returns the airport's runway with the given identifier; "04L",
// "4L" and "RW04L" all match.
func (ap *Airport) Runway(id string) *Runway {
	id = TidyRunway(id)
	for _, rwy := range ap.Runways {
		if TidyRunway(rwy.Id) == id {
			return rwy
		}
	}
	return nil
}

func (ap *Airport) HasRunway(id string) bool {
	return ap.Runway(id) != nil
}

func findProcedure(procs []*Procedure, id string) *Procedure {
	if i := slices.IndexFunc(procs, func(p *Procedure) bool { return p.Id == id }); i != -1 {
		return procs[i]
	}
	return nil
}

func (ap *Airport) SID(id string) *Procedure      { return findProcedure(ap.SIDs, id) }
func (ap *Airport) STAR(id string) *Procedure     { return findProcedure(ap.STARs, id) }
func (ap *Airport) Approach(id string) *Procedure { return findProcedure(ap.Approaches, id) }

// SelectSIDByEnrouteTransition finds a SID that leaves the airport's
// terminal area at p, either through one of its transitions or at the
// end of its common route. The returned transition is nil in the latter
// case.
func (ap *Airport) SelectSIDByEnrouteTransition(p Positioned) (*Procedure, *Transition) {
	return selectByEnroute(ap.SIDs, p)
}

// SelectSTARByEnrouteTransition is the arrival counterpart of
// SelectSIDByEnrouteTransition.
func (ap *Airport) SelectSTARByEnrouteTransition(p Positioned) (*Procedure, *Transition) {
	return selectByEnroute(ap.STARs, p)
}

func selectByEnroute(procs []*Procedure, p Positioned) (*Procedure, *Transition) {
	if p == nil {
		return nil, nil
	}
	for _, proc := range procs {
		for _, t := range proc.Transitions {
			if samePositioned(t.Enroute(), p) {
				return proc, t
			}
		}
	}
	for _, proc := range procs {
		if samePositioned(proc.EnrouteFix(), p) {
			return proc, nil
		}
	}
	return nil, nil
}

// samePositioned matches database items by identity, falling back to
// ident and proximity for items that were constructed separately.
func samePositioned(a, b Positioned) bool {
	if a == nil || b == nil {
		return false
	}
	if a == b {
		return true
	}
	return a.Ident() == b.Ident() && math.MetersDistance2LL(a.Position(), b.Position()) < 100
}

type Runway struct {
	Id        string        `json:"id"`
	Heading   float32       `json:"heading"` // true
	Threshold math.Point2LL `json:"threshold"`
	Elevation int           `json:"elevation"`
	LengthFt  int           `json:"length_ft,omitempty"`

	airport *Airport
}

func (r *Runway) Ident() string           { return r.Id }
func (r *Runway) Position() math.Point2LL { return r.Threshold }
func (r *Runway) Kind() PositionedType    { return PositionedRunway }
func (r *Runway) Airport() *Airport       { return r.airport }

///////////////////////////////////////////////////////////////////////////
// Procedures

type ProcedureKind int

const (
	ProcedureSID ProcedureKind = iota + 1
	ProcedureSTAR
	ProcedureApproach
)

func (k ProcedureKind) String() string {
	switch k {
	case ProcedureSID:
		return "SID"
	case ProcedureSTAR:
		return "STAR"
	case ProcedureApproach:
		return "approach"
	default:
		return "unknown"
	}
}

// Procedure is a SID, STAR or instrument approach. Fixes lists the
// common route in flying order; for SIDs the enroute end is the last
// fix and for STARs and approaches it is the first.
type Procedure struct {
	Id          string        `json:"id"`
	Runways     []string      `json:"runways,omitempty"`
	Fixes       []string      `json:"fixes"`
	Transitions []*Transition `json:"transitions,omitempty"`

	kind    ProcedureKind
	airport *Airport
	points  []Positioned
}

func (p *Procedure) Ident() string       { return p.Id }
func (p *Procedure) Kind() ProcedureKind { return p.kind }
func (p *Procedure) Airport() *Airport   { return p.airport }

// Points returns the resolved fixes of the common route.
func (p *Procedure) Points() []Positioned { return p.points }

// Runway returns the runway an approach is flown to; it is nil for
// procedures that serve no runway or several.
func (p *Procedure) Runway() *Runway {
	if p.airport == nil || len(p.Runways) != 1 {
		return nil
	}
	return p.airport.Runway(p.Runways[0])
}

func (p *Procedure) ServesRunway(rwy *Runway) bool {
	if len(p.Runways) == 0 {
		return true
	}
	return rwy != nil && slices.ContainsFunc(p.Runways, func(id string) bool {
		return TidyRunway(id) == TidyRunway(rwy.Id)
	})
}

func (p *Procedure) Transition(id string) *Transition {
	if i := slices.IndexFunc(p.Transitions, func(t *Transition) bool { return t.Id == id }); i != -1 {
		return p.Transitions[i]
	}
	return nil
}

func (p *Procedure) TransitionIdents() []string {
	var ids []string
	for _, t := range p.Transitions {
		ids = append(ids, t.Id)
	}
	return ids
}

// EnrouteFix returns the point where the common route joins the enroute
// structure.
func (p *Procedure) EnrouteFix() Positioned {
	if len(p.points) == 0 {
		return nil
	}
	if p.kind == ProcedureSID {
		return p.points[len(p.points)-1]
	}
	return p.points[0]
}

func (p *Procedure) flag() WaypointFlags {
	switch p.kind {
	case ProcedureSID:
		return WaypointFlagDeparture
	case ProcedureSTAR:
		return WaypointFlagArrival
	default:
		return WaypointFlagApproach
	}
}

// Route returns the procedure's waypoints, including those of the given
// transition, in flying order. They are owned by the procedure (or the
// transition) and carry the departure, arrival or approach flag.
func (p *Procedure) Route(t *Transition) []Waypoint {
	mk := func(pts []Positioned, owner Owner, extra WaypointFlags) []Waypoint {
		var wps []Waypoint
		for _, pt := range pts {
			w := NewNavaidWaypoint(pt, owner)
			w.SetFlag(p.flag()|extra, true)
			wps = append(wps, w)
		}
		return wps
	}

	common := mk(p.points, p, 0)
	if t == nil {
		return common
	}
	trans := mk(t.points, t, WaypointFlagTransition)
	if p.kind == ProcedureSID {
		if len(common) > 0 && len(trans) > 0 && trans[0].Ident() == common[len(common)-1].Ident() {
			trans = trans[1:]
		}
		return append(common, trans...)
	}
	if len(common) > 0 && len(trans) > 0 && trans[len(trans)-1].Ident() == common[0].Ident() {
		trans = trans[:len(trans)-1]
	}
	return append(trans, common...)
}

// Transition is a named segment that connects a procedure's common route
// to an enroute fix. If no identifier is given, the transition takes the
// identifier of its enroute fix.
type Transition struct {
	Id    string   `json:"id,omitempty"`
	Fixes []string `json:"fixes"`

	parent *Procedure
	points []Positioned
}

func (t *Transition) Ident() string         { return t.Id }
func (t *Transition) Procedure() *Procedure { return t.parent }
func (t *Transition) Points() []Positioned  { return t.points }

// Enroute returns the transition's enroute end: its last fix for a SID
// and its first otherwise.
func (t *Transition) Enroute() Positioned {
	if len(t.points) == 0 {
		return nil
	}
	if t.parent != nil && t.parent.kind == ProcedureSID {
		return t.points[len(t.points)-1]
	}
	return t.points[0]
}
