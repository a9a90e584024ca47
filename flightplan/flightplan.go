// flightplan/flightplan.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package flightplan implements a flight management system's flight plan:
// an ordered sequence of legs from departure to destination together with
// the departure, arrival and approach procedures, cruise data and the
// current-leg cursor. Changes are reported to delegates in batches.
package flightplan

import (
	"log/slog"
	"slices"
	"time"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/log"
	"github.com/mmp/fms/math"
)

type FlightRules int

const (
	FlightRulesVFR FlightRules = iota
	FlightRulesIFR
	FlightRulesIFRThenVFR // ICAO "Y"
	FlightRulesVFRThenIFR // ICAO "Z"
)

var flightRulesCodes = [...]string{"V", "I", "Y", "Z"}

func (r FlightRules) String() string {
	if r < 0 || int(r) >= len(flightRulesCodes) {
		return flightRulesCodes[FlightRulesVFR]
	}
	return flightRulesCodes[r]
}

// ParseFlightRules returns the rules for an ICAO code, or false if the
// code is unknown.
func ParseFlightRules(s string) (FlightRules, bool) {
	idx := slices.Index(flightRulesCodes[:], s)
	return FlightRules(max(idx, 0)), idx != -1
}

type FlightType int

const (
	FlightTypeScheduled FlightType = iota
	FlightTypeNonScheduled
	FlightTypeGeneralAviation
	FlightTypeMilitary
	FlightTypeOther
)

var flightTypeCodes = [...]string{"S", "N", "G", "M", "X"}

func (t FlightType) String() string {
	if t < 0 || int(t) >= len(flightTypeCodes) {
		return flightTypeCodes[FlightTypeOther]
	}
	return flightTypeCodes[t]
}

func ParseFlightType(s string) (FlightType, bool) {
	idx := slices.Index(flightTypeCodes[:], s)
	if idx == -1 {
		return FlightTypeOther, false
	}
	return FlightType(idx), true
}

// FlightPlan is the sequence of legs an aircraft intends to fly along with
// its departure and arrival bindings. A plan created with NewRoute is a
// route: it may hold unexpanded airway (via) waypoints and can't be
// activated; Clone converts it to a flight plan.
//
// A FlightPlan is not safe for concurrent use.
type FlightPlan struct {
	ident   string
	isRoute bool

	legs         []*Leg
	currentIndex int

	departure          *av.Airport
	departureRunway    *av.Runway
	sid                *av.Procedure
	sidTransition      string
	destination        *av.Airport
	destinationRunway  *av.Runway
	star               *av.Procedure
	starTransition     string
	approach           *av.Procedure
	approachTransition string
	alternate          *av.Airport

	cruiseFlightLevel int
	cruiseAltitudeFt  int
	cruiseAltitudeM   int
	cruiseMach        float32
	cruiseKnots       int
	cruiseKPH         int

	flightRules       FlightRules
	flightType        FlightType
	callsign          string
	remarks           string
	aircraftType      string
	aircraftCategory  byte
	estimatedDuration int

	followLegTrackToFix bool
	maxFlyByTurnAngle   float32

	totalDistanceNM float32
	pathBuilder     PathBuilder

	delegates        []Delegate
	factoryDelegates map[Delegate]DelegateFactory
	registry         *Registry
	lockDepth        int
	dirty            dirtyFlags

	db  av.NavDB
	lg  *log.Logger
	now func() time.Time
}

// New returns an empty flight plan. Delegates are created using the
// factories in reg, which may be nil.
func New(db av.NavDB, reg *Registry, lg *log.Logger) *FlightPlan {
	return newFlightPlan(db, reg, lg, false)
}

// NewRoute returns an empty route.
func NewRoute(db av.NavDB, reg *Registry, lg *log.Logger) *FlightPlan {
	return newFlightPlan(db, reg, lg, true)
}

func newFlightPlan(db av.NavDB, reg *Registry, lg *log.Logger, isRoute bool) *FlightPlan {
	fp := &FlightPlan{
		isRoute:             isRoute,
		currentIndex:        -1,
		flightRules:         FlightRulesVFR,
		flightType:          FlightTypeOther,
		aircraftCategory:    'C',
		followLegTrackToFix: true,
		maxFlyByTurnAngle:   90,
		pathBuilder:         NewGreatCirclePath,
		factoryDelegates:    make(map[Delegate]DelegateFactory),
		registry:            reg,
		db:                  db,
		lg:                  lg,
		now:                 time.Now,
	}

	for _, f := range reg.Factories() {
		// Factories may decline to create a delegate.
		if d := f.CreateDelegate(fp); d != nil {
			fp.factoryDelegates[d] = f
			fp.AddDelegate(d)
		}
	}
	return fp
}

func (fp *FlightPlan) Ident() string     { return fp.ident }
func (fp *FlightPlan) SetIdent(s string) { fp.ident = s }
func (fp *FlightPlan) IsRoute() bool     { return fp.isRoute }
func (fp *FlightPlan) NavDB() av.NavDB   { return fp.db }

func (fp *FlightPlan) SetLogger(lg *log.Logger) { fp.lg = lg }

// SetClock sets the function used to get the current time, which
// determines the magnetic variation used when loading legacy plans.
func (fp *FlightPlan) SetClock(now func() time.Time) { fp.now = now }

func (fp *FlightPlan) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("ident", fp.ident),
		slog.Bool("route", fp.isRoute),
		slog.Int("legs", len(fp.legs)),
		slog.Int("current", fp.currentIndex),
	}
	if fp.departure != nil {
		attrs = append(attrs, slog.String("departure", fp.departure.Id))
	}
	if fp.destination != nil {
		attrs = append(attrs, slog.String("destination", fp.destination.Id))
	}
	return slog.GroupValue(attrs...)
}

///////////////////////////////////////////////////////////////////////////
// Header data

func (fp *FlightPlan) FlightRules() FlightRules     { return fp.flightRules }
func (fp *FlightPlan) SetFlightRules(r FlightRules) { fp.flightRules = r }
func (fp *FlightPlan) FlightType() FlightType       { return fp.flightType }
func (fp *FlightPlan) SetFlightType(t FlightType)   { fp.flightType = t }
func (fp *FlightPlan) Callsign() string             { return fp.callsign }
func (fp *FlightPlan) SetCallsign(cs string)        { fp.callsign = cs }
func (fp *FlightPlan) Remarks() string              { return fp.remarks }
func (fp *FlightPlan) SetRemarks(r string)          { fp.remarks = r }
func (fp *FlightPlan) IcaoAircraftType() string     { return fp.aircraftType }
func (fp *FlightPlan) SetIcaoAircraftType(t string) { fp.aircraftType = t }

func (fp *FlightPlan) IcaoAircraftCategory() string { return string(fp.aircraftCategory) }

// SetIcaoAircraftCategory sets the approach category, A through E.
func (fp *FlightPlan) SetIcaoAircraftCategory(cat string) error {
	if cat == "" || cat[0] < 'A' || cat[0] > 'E' {
		return ErrInvalidCategory
	}
	fp.aircraftCategory = cat[0]
	return nil
}

func (fp *FlightPlan) EstimatedDurationMinutes() int        { return fp.estimatedDuration }
func (fp *FlightPlan) SetEstimatedDurationMinutes(mins int) { fp.estimatedDuration = mins }

func (fp *FlightPlan) FollowLegTrackToFixes() bool      { return fp.followLegTrackToFix }
func (fp *FlightPlan) SetFollowLegTrackToFixes(tf bool) { fp.followLegTrackToFix = tf }
func (fp *FlightPlan) MaxFlyByTurnAngle() float32       { return fp.maxFlyByTurnAngle }
func (fp *FlightPlan) SetMaxFlyByTurnAngle(deg float32) { fp.maxFlyByTurnAngle = deg }

///////////////////////////////////////////////////////////////////////////
// Cruise data
//
// Only one of the three altitude forms and one of the three speed forms
// is set at a time.

func (fp *FlightPlan) CruiseFlightLevel() int   { return fp.cruiseFlightLevel }
func (fp *FlightPlan) CruiseAltitudeFt() int    { return fp.cruiseAltitudeFt }
func (fp *FlightPlan) CruiseAltitudeM() int     { return fp.cruiseAltitudeM }
func (fp *FlightPlan) CruiseSpeedMach() float32 { return fp.cruiseMach }
func (fp *FlightPlan) CruiseSpeedKnots() int    { return fp.cruiseKnots }
func (fp *FlightPlan) CruiseSpeedKPH() int      { return fp.cruiseKPH }

func (fp *FlightPlan) SetCruiseFlightLevel(fl int) {
	fp.setCruiseAltitude(fl, 0, 0)
}

func (fp *FlightPlan) SetCruiseAltitudeFt(ft int) {
	fp.setCruiseAltitude(0, ft, 0)
}

func (fp *FlightPlan) SetCruiseAltitudeM(m int) {
	fp.setCruiseAltitude(0, 0, m)
}

func (fp *FlightPlan) setCruiseAltitude(fl, ft, m int) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.cruise = true
	fp.cruiseFlightLevel, fp.cruiseAltitudeFt, fp.cruiseAltitudeM = fl, ft, m
}

func (fp *FlightPlan) SetCruiseSpeedMach(mach float32) {
	fp.setCruiseSpeed(mach, 0, 0)
}

func (fp *FlightPlan) SetCruiseSpeedKnots(kts int) {
	fp.setCruiseSpeed(0, kts, 0)
}

func (fp *FlightPlan) SetCruiseSpeedKPH(kph int) {
	fp.setCruiseSpeed(0, 0, kph)
}

func (fp *FlightPlan) setCruiseSpeed(mach float32, kts, kph int) {
	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.dirty.cruise = true
	fp.cruiseMach, fp.cruiseKnots, fp.cruiseKPH = mach, kts, kph
}

// cruiseAltitude returns the cruise altitude in feet, whichever way it
// was specified.
func (fp *FlightPlan) cruiseAltitude() float32 {
	switch {
	case fp.cruiseFlightLevel > 0:
		return float32(fp.cruiseFlightLevel) * 100
	case fp.cruiseAltitudeFt > 0:
		return float32(fp.cruiseAltitudeFt)
	default:
		return float32(fp.cruiseAltitudeM) * math.MetersToFeet
	}
}

// ComputeDurationMinutes estimates the flight time from the total route
// distance and the cruise speed, treating the cruise true airspeed as the
// ground speed. The estimate isn't updated if the cruise speed or
// altitude is missing.
func (fp *FlightPlan) ComputeDurationMinutes() {
	if fp.cruiseMach < 0.01 && fp.cruiseKnots < 10 && fp.cruiseKPH < 10 {
		fp.lg.Warn("can't compute duration, no cruise speed set", slog.Any("flight_plan", fp))
		return
	}
	if fp.cruiseAltitudeFt < 100 && fp.cruiseAltitudeM < 100 && fp.cruiseFlightLevel < 10 {
		fp.lg.Warn("can't compute duration, no cruise altitude set", slog.Any("flight_plan", fp))
		return
	}

	var tas float32
	switch {
	case fp.cruiseMach > 0:
		tas = fp.cruiseMach * speedOfSoundKnots(fp.cruiseAltitude())
	case fp.cruiseKnots > 0:
		tas = float32(fp.cruiseKnots)
	default:
		tas = float32(fp.cruiseKPH) * 1000 * math.MetersToNauticalMiles
	}

	fp.estimatedDuration = int(math.Round(fp.totalDistanceNM / tas * 60))
}

// speedOfSoundKnots returns the speed of sound in the standard atmosphere
// at the given altitude.
func speedOfSoundKnots(altFt float32) float32 {
	// Temperature lapse rate is 1.98C per 1000', constant above the
	// tropopause.
	tempK := math.Max(288.15-0.0019812*altFt, 216.65)
	return 38.967854 * math.Sqrt(tempK)
}
