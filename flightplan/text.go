// flightplan/text.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"
)

// parseText reads a route with one waypoint per line. Blank lines and
// lines starting with '#' are ignored. Each waypoint is resolved near
// the one before it, or near the departure airport for the first.
func (fp *FlightPlan) parseText(r io.Reader) ([]*Leg, error) {
	var legs []*Leg
	var prev av.Waypoint
	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" || line[0] == '#' {
			continue
		}
		if strings.HasPrefix(line, "<?xml") {
			return nil, ErrLooksLikeXML
		}

		wp, err := av.WaypointFromString(fp.db, line, fp.vicinityOf(prev))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno, err)
		}
		wp.SetOwner(fp)
		legs = append(legs, newLeg(fp, wp))
		prev = wp
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return legs, nil
}

// readText replaces the flight plan's legs with those in r. The flight
// plan is unchanged if any line can't be resolved.
func (fp *FlightPlan) readText(r io.Reader) error {
	legs, err := fp.parseText(r)
	if err != nil {
		return err
	}

	fp.replaceLegs(legs)
	return nil
}

// vicinityOf returns a valid position for disambiguating a lookup from
// the given waypoint, falling back to the departure airport.
func (fp *FlightPlan) vicinityOf(wp av.Waypoint) math.Point2LL {
	if wp != nil {
		if p := wp.Position(); p.IsValid() {
			return p
		}
	}
	return fp.departurePosition()
}
