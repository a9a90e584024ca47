// flightplan/gpx.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/math"

	xmlparser "github.com/tamerh/xml-stream-parser"
)

// A GPX route point is taken to be a navaid if one with the same ident
// is within this distance.
const gpxNavaidToleranceMeters = 800

func isGPXPath(path string) bool {
	return strings.EqualFold(gpxExtension(path), ".gpx")
}

// gpxExtension returns the extension of path ignoring any compression
// suffix.
func gpxExtension(path string) string {
	for _, z := range []string{".gz", ".zst"} {
		if strings.HasSuffix(strings.ToLower(path), z) {
			path = path[:len(path)-len(z)]
		}
	}
	if i := strings.LastIndexByte(path, '.'); i != -1 {
		return path[i:]
	}
	return ""
}

func childText(e xmlparser.XMLElement, name string) (string, bool) {
	if c, ok := e.Childs[name]; ok && len(c) > 0 {
		if s := strings.TrimSpace(c[0].InnerText); s != "" {
			return s, true
		}
	}
	return "", false
}

// parseGPX returns the waypoints for the route points in r.
func (fp *FlightPlan) parseGPX(r io.Reader) ([]av.Waypoint, error) {
	parser := xmlparser.NewXMLParser(bufio.NewReaderSize(r, 65536), "rtept")

	var wps []av.Waypoint
	for e := range parser.Stream() {
		if e.Err != nil {
			return nil, e.Err
		}

		lat, laterr := strconv.ParseFloat(e.Attrs["lat"], 32)
		lon, lonerr := strconv.ParseFloat(e.Attrs["lon"], 32)
		if laterr != nil || lonerr != nil {
			fp.lg.Warn("skipping GPX route point without a position", slog.Any("attrs", e.Attrs))
			continue
		}
		pos := math.Point2LL{float32(lon), float32(lat)}

		ident, ok := childText(*e, "name")
		if !ok {
			ident, _ = childText(*e, "cmt")
		}

		var wp av.Waypoint
		if p := fp.db.FindClosestWithIdent(ident, pos); p != nil &&
			math.MetersDistance2LL(pos, p.Position()) < gpxNavaidToleranceMeters {
			wp = av.NewNavaidWaypoint(p, fp)
		} else {
			wp = av.NewBasicWaypoint(pos, ident, fp)
		}

		if s, ok := childText(*e, "ele"); ok {
			if ele, err := strconv.ParseFloat(s, 32); err == nil {
				wp.SetAltitude(float32(ele)*math.MetersToFeet, av.RestrictAt)
			}
		}
		wps = append(wps, wp)
	}

	if len(wps) == 0 {
		return nil, ErrNoRoute
	}
	return wps, nil
}

// readGPX replaces the flight plan with the route in r. Route points at
// either end that are airports become the departure and destination.
func (fp *FlightPlan) readGPX(r io.Reader) error {
	wps, err := fp.parseGPX(r)
	if err != nil {
		return err
	}

	fp.ClearAll()

	dep := fp.db.FindAirport(wps[0].Ident())
	dst := fp.db.FindAirport(wps[len(wps)-1].Ident())
	if dep != nil {
		wps = wps[1:]
		fp.SetDeparture(dep)
	}
	// A single airport is the departure.
	if dst != nil && len(wps) > 0 {
		wps = wps[:len(wps)-1]
		fp.SetDestination(dst)
	}

	fp.InsertWaypoints(wps, -1)
	return nil
}
