// flightplan/icao.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
)

// waypointFix lets a waypoint without a database source be used where a
// Positioned is needed.
type waypointFix struct {
	av.Waypoint
}

func (waypointFix) Kind() av.PositionedType { return av.PositionedFix }

func positionedFor(wp av.Waypoint) av.Positioned {
	if src := wp.Source(); src != nil {
		return src
	}
	return waypointFix{wp}
}

// ParseICAORoute replaces the flight plan's legs with the route given by
// an ICAO route string such as "KJFK SID DPK J42 PUT STAR". The route
// may start with the departure airport; if the flight plan has no
// departure it is set from it. The flight plan is unchanged if any part
// of the route can't be resolved.
func (fp *FlightPlan) ParseICAORoute(route string) error {
	tokens := strings.Fields(route)
	if len(tokens) == 0 {
		return ErrEmptyRoute
	}

	dep := fp.departure
	if apt := fp.db.FindAirport(tokens[0]); apt != nil {
		if dep == nil {
			dep = apt
		} else if dep != apt {
			fp.lg.Warn("ICAO route begins with an airport that isn't the departure",
				slog.String("airport", apt.Ident()), slog.String("departure", dep.Ident()))
			return fmt.Errorf("%s: %w", apt.Ident(), ErrAirportMismatch)
		}
		tokens = tokens[1:]
	}

	// The SID and STAR are only applied if the whole route parses.
	sid, sidTrans := fp.sid, fp.sidTransition
	var sidSet bool
	var star *av.Procedure
	var starTrans string

	var enroute []av.Waypoint
	currentPos := math.InvalidPoint2LL()
	if dep != nil {
		currentPos = dep.Location
	}

	for i := 0; i < len(tokens); i++ {
		tk := tokens[i]
		if len(enroute) > 0 {
			currentPos = enroute[len(enroute)-1].Position()
		}

		// Some airway idents start with digits, so keep going if it's
		// not a position.
		if unicode.IsDigit(rune(tk[0])) {
			if p, ok := math.ParseICAOLatLong(tk); ok {
				enroute = append(enroute, av.NewBasicWaypoint(p, tk, fp))
				continue
			}
		}

		next := ""
		if i+1 < len(tokens) {
			next = tokens[i+1]
		}

		switch tk {
		case "DCT":
			if next == "" {
				return fmt.Errorf("DCT: %w", ErrMissingRouteToken)
			}
			p := fp.db.FindClosestWithIdent(next, currentPos)
			if p == nil {
				fp.lg.Warn("ICAO route waypoint not found", slog.String("waypoint", next))
				return fmt.Errorf("%s: %w", next, ErrUnknownWaypoint)
			}
			enroute = append(enroute, av.NewNavaidWaypoint(p, fp))
			i++

		case "STAR":
			if fp.destination == nil {
				return ErrNoDestinationForSTAR
			}
			if len(enroute) == 0 {
				fp.lg.Warn("ICAO route STAR without a transition point")
				continue
			}
			last := enroute[len(enroute)-1]
			if proc, t := fp.destination.SelectSTARByEnrouteTransition(positionedFor(last)); proc == nil {
				fp.lg.Warn("ICAO route couldn't find a STAR", slog.String("transition", last.Ident()))
			} else {
				star = proc
				if t != nil {
					starTrans = t.Ident()
				}
			}

		case "SID":
			if dep == nil {
				fp.lg.Warn("ICAO route SID without a departure airport")
			} else if p := fp.db.FindClosestWithIdent(next, currentPos); p == nil {
				fp.lg.Warn("ICAO route SID transition not found", slog.String("waypoint", next))
			} else if proc, t := dep.SelectSIDByEnrouteTransition(p); proc == nil {
				fp.lg.Warn("ICAO route couldn't find a SID", slog.String("transition", next))
			} else {
				sid, sidTrans, sidSet = proc, "", true
				if t != nil {
					sidTrans = t.Ident()
				}
			}
			i++

		default:
			// Airway, exiting at the next token.
			if next == "" {
				return fmt.Errorf("%s: %w", tk, ErrMissingRouteToken)
			}
			node := fp.db.FindAirwayNode(next, currentPos, av.AirwayLevelHigh)
			if node == nil {
				node = fp.db.FindAirwayNode(next, currentPos, av.AirwayLevelLow)
			}
			if node == nil {
				fp.lg.Warn("ICAO route waypoint not found", slog.String("waypoint", next))
				return fmt.Errorf("%s: %w", next, ErrUnknownWaypoint)
			}

			var anchor av.Positioned
			if len(enroute) > 0 {
				anchor = positionedFor(enroute[len(enroute)-1])
			} else {
				anchor = enrouteFix(sid, sidTrans)
			}
			if anchor == nil {
				fp.lg.Warn("initial airway needs an anchor point from a SID", slog.String("airway", tk))
				return fmt.Errorf("%s: %w", tk, ErrMissingAnchor)
			}

			awy := fp.db.FindAirwayByIdentAndVia(tk, anchor, node)
			if awy == nil {
				fp.lg.Warn("ICAO route unknown airway", slog.String("airway", tk))
				return fmt.Errorf("%s: %w", tk, ErrUnknownAirway)
			}
			enroute = append(enroute, av.NewViaWaypoint(fp, awy, node))
			i++
		}
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	fp.SetDeparture(dep)
	if sidSet {
		// The kinds are known to be right.
		_ = fp.SetSID(sid, sidTrans)
	}
	if star != nil {
		_ = fp.SetSTAR(star, starTrans)
	}

	fp.lg.Info("adding waypoints from ICAO route", slog.Int("waypoints", len(enroute)))
	fp.replaceLegs(nil)
	fp.InsertWaypoints(enroute, 0)
	return nil
}

// ICAORouteString returns the flight plan's route in ICAO form. Runs of
// waypoints generated from the same airway are written as the airway
// followed by the exit waypoint.
func (fp *FlightPlan) ICAORouteString() string {
	var parts []string
	if fp.sidTransition != "" {
		parts = append(parts, fp.sidTransition)
	}

	for i, l := range fp.legs {
		wp := l.waypoint

		var nextAirway av.Owner
		if next := fp.legAt(i + 1); next != nil && next.waypoint.HasFlag(av.WaypointFlagVia) {
			nextAirway = next.waypoint.Owner()
		}

		if wp.HasFlag(av.WaypointFlagGenerated) {
			if wp.HasFlag(av.WaypointFlagVia) {
				awy := wp.Owner()
				if awy != nil && awy == nextAirway {
					continue
				}
				if awy != nil {
					parts = append(parts, awy.Ident())
				}
			}
		} else if wp.Type() == av.WaypointTypeNavaid {
			parts = append(parts, "DCT")
		}
		if desc := wp.ICAODescription(); desc != "" {
			parts = append(parts, desc)
		}
	}

	if fp.starTransition != "" {
		parts = append(parts, fp.starTransition)
	}
	return strings.Join(parts, " ")
}
