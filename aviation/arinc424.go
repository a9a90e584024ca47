// aviation/arinc424.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/mmp/fms/math"
	"github.com/mmp/fms/util"
)

// ARINC424RecordLength is the length of a record, not including the line
// ending.
const ARINC424RecordLength = 132

func empty(s []byte) bool {
	return len(bytes.TrimSpace(s)) == 0
}

type arincError struct {
	line int
	msg  string
}

func (e arincError) Error() string {
	return fmt.Sprintf("ARINC 424 line %d: %s", e.line, e.msg)
}

type ARINC424Result struct {
	Airports map[string]*Airport
	Navaids  map[string]*Navaid
	Fixes    map[string]*Fix
	Airways  map[string][]*Airway
}

// NavdataFile converts the parsed records to the form used by
// StaticDatabase.
func (r ARINC424Result) NavdataFile() NavdataFile {
	var f NavdataFile
	for _, id := range util.SortedMapKeys(r.Navaids) {
		f.Navaids = append(f.Navaids, r.Navaids[id])
	}
	for _, id := range util.SortedMapKeys(r.Fixes) {
		f.Fixes = append(f.Fixes, r.Fixes[id])
	}
	for _, id := range util.SortedMapKeys(r.Airports) {
		f.Airports = append(f.Airports, r.Airports[id])
	}
	for _, id := range util.SortedMapKeys(r.Airways) {
		f.Airways = append(f.Airways, r.Airways[id]...)
	}
	return f
}

// ParseARINC424 reads the subset of an ARINC 424 file (e.g., the FAA's
// CIFP) that flight planning needs: VHF and NDB navaids, enroute and
// terminal waypoints, airports, runways, airways and the fix sequences
// of SIDs, STARs and approaches.
func ParseARINC424(r io.Reader) (ARINC424Result, error) {
	result := ARINC424Result{
		Airports: make(map[string]*Airport),
		Navaids:  make(map[string]*Navaid),
		Fixes:    make(map[string]*Fix),
		Airways:  make(map[string][]*Airway),
	}

	br := bufio.NewReader(r)
	lineno := 0
	var perr error

	fail := func(msg string, args ...any) {
		if perr == nil {
			perr = arincError{line: lineno, msg: fmt.Sprintf(msg, args...)}
		}
	}

	parseInt := func(s []byte) int {
		s = bytes.TrimSpace(s)
		if len(s) == 0 {
			return 0
		}
		v, err := strconv.Atoi(string(s))
		if err != nil {
			fail("%s: %v", string(s), err)
		}
		return v
	}
	parseLLDigits := func(d, m, s []byte) float32 {
		deg, min, sec := parseInt(d), parseInt(m), parseInt(s)
		return float32(deg) + float32(min)/60 + float32(sec)/100/3600
	}
	parseLatLong := func(lat, long []byte) math.Point2LL {
		var p math.Point2LL

		p[1] = parseLLDigits(lat[1:3], lat[3:5], lat[5:])
		p[0] = parseLLDigits(long[1:4], long[4:6], long[6:])

		if lat[0] == 'S' {
			p[1] = -p[1]
		}
		if long[0] == 'W' {
			p[0] = -p[0]
		}
		return p
	}

	airwayWIP := make(map[string]AirwayFix)
	var airwayLevel AirwayLevel

	// Procedure records arrive grouped by airport, procedure and route
	// type.
	type procKey struct {
		icao, id string
		kind     ProcedureKind
	}
	procs := make(map[procKey]*Procedure)
	missed := make(map[*Procedure]bool)

	getProc := func(icao, id string, kind ProcedureKind) *Procedure {
		k := procKey{icao, id, kind}
		if p, ok := procs[k]; ok {
			return p
		}
		ap, ok := result.Airports[icao]
		if !ok {
			return nil
		}
		p := &Procedure{Id: id}
		switch kind {
		case ProcedureSID:
			ap.SIDs = append(ap.SIDs, p)
		case ProcedureSTAR:
			ap.STARs = append(ap.STARs, p)
		case ProcedureApproach:
			ap.Approaches = append(ap.Approaches, p)
		}
		procs[k] = p
		return p
	}

	for perr == nil {
		line, err := br.ReadBytes('\n')
		if err == io.EOF && len(line) == 0 {
			break
		} else if err != nil && err != io.EOF {
			return result, err
		}
		lineno++
		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		if len(line) != ARINC424RecordLength {
			fail("unexpected line length: %d", len(line))
			break
		}

		recordType := line[0]
		if recordType != 'S' { // not a standard field
			continue
		}

		sectionCode := line[4]
		switch sectionCode {
		case 'D':
			subsectionCode := line[5]
			if subsectionCode == ' ' /* VOR */ || subsectionCode == 'B' /* NDB */ {
				id := strings.TrimSpace(string(line[13:17]))
				if len(id) < 2 {
					break
				}

				name := strings.TrimSpace(string(line[93:123]))
				freq := float32(parseInt(line[22:27])) / 100
				if subsectionCode == 'B' {
					freq *= 10 // NDB frequencies are given in tenths of kHz
				}
				if !empty(line[32:51]) {
					result.Navaids[id] = &Navaid{
						Id:        id,
						Type:      util.Select(subsectionCode == ' ', "VOR", "NDB"),
						Name:      name,
						Location:  parseLatLong(line[32:41], line[41:51]),
						Frequency: NewFrequency(freq),
					}
				} else if !empty(line[55:74]) {
					result.Navaids[id] = &Navaid{
						Id:        id,
						Type:      "DME",
						Name:      name,
						Location:  parseLatLong(line[55:64], line[64:74]),
						Frequency: NewFrequency(freq),
					}
				}
			}

		case 'E':
			subsection := line[5]
			switch subsection {
			case 'A': // enroute waypoint
				id := strings.TrimSpace(string(line[13:18]))
				result.Fixes[id] = &Fix{
					Id:       id,
					Location: parseLatLong(line[32:41], line[41:51]),
				}

			case 'R': // enroute airway
				route := strings.TrimSpace(string(line[13:18]))
				seq := string(line[25:29])

				switch line[45] {
				case 'B', ' ':
					airwayLevel = AirwayLevelAll
				case 'H':
					airwayLevel = AirwayLevelHigh
				case 'L':
					airwayLevel = AirwayLevelLow
				default:
					fail("unexpected airway level: %c", line[45])
				}

				airwayWIP[seq] = AirwayFix{Fix: strings.TrimSpace(string(line[29:34]))}

				if line[40] == 'E' { // description code "end of airway"
					a := &Airway{Name: route, Level: airwayLevel}
					for _, seq := range util.SortedMapKeys(airwayWIP) { // order by sequence number, just in case
						a.Fixes = append(a.Fixes, airwayWIP[seq])
					}
					result.Airways[route] = append(result.Airways[route], a)
					clear(airwayWIP)
				}
			}

		case 'P': // Airports
			icao := strings.TrimSpace(string(line[6:10]))
			subsection := line[12]
			switch subsection {
			case 'A': // primary airport records 4.1.7
				result.Airports[icao] = &Airport{
					Id:        icao,
					Name:      strings.TrimSpace(string(line[93:123])),
					Elevation: parseInt(line[56:61]),
					Location:  parseLatLong(line[32:41], line[41:51]),
				}

			case 'C': // waypoint record 4.1.4
				id := strings.TrimSpace(string(line[13:18]))
				if _, ok := result.Fixes[id]; !ok {
					result.Fixes[id] = &Fix{Id: id, Location: parseLatLong(line[32:41], line[41:51])}
				}

			case 'D', 'E', 'F': // SID, STAR, approach 4.1.9
				if line[38] != '0' && line[38] != '1' { // skip continuation records
					break
				}
				kind := map[byte]ProcedureKind{'D': ProcedureSID, 'E': ProcedureSTAR, 'F': ProcedureApproach}[subsection]
				proc := getProc(icao, strings.TrimSpace(string(line[13:19])), kind)
				if proc == nil {
					break
				}
				rec := procedureRecord{
					routeType:  line[19],
					transition: strings.TrimSpace(string(line[20:25])),
					fix:        strings.TrimSpace(string(line[29:34])),
					isMAP:      line[42] == 'M',
				}
				missed[proc] = rec.add(proc, kind, missed[proc])
			case 'G': // runway records 4.1.10
				continuation := line[21]
				if continuation != '0' && continuation != '1' {
					continue
				}
				if string(line[27:31]) == "    " {
					// No heading available. This happens for e.g. seaports.
					continue
				}
				ap, ok := result.Airports[icao]
				if !ok {
					break
				}

				rwy := strings.TrimSpace(strings.TrimPrefix(string(line[13:18]), "RW"))
				ap.Runways = append(ap.Runways, &Runway{
					Id:        rwy,
					Heading:   float32(parseInt(line[27:31])) / 10,
					Threshold: parseLatLong(line[32:41], line[41:51]),
					Elevation: parseInt(line[66:71]),
					LengthFt:  parseInt(line[22:27]),
				})
			}
		}
	}

	return result, perr
}

type procedureRecord struct {
	routeType  byte
	transition string
	fix        string
	isMAP      bool
}

// add adds the record to the procedure and returns whether the
// procedure's common route has reached its missed approach segment,
// which isn't part of the flight plan. Runway transitions contribute the
// runways they serve; common route records extend the procedure's fixes
// and enroute transition records the named transition's.
func (r procedureRecord) add(proc *Procedure, kind ProcedureKind, inMissed bool) bool {
	isRunwayTransition, isEnroute := false, false
	rt := r.routeType
	switch kind {
	case ProcedureSID:
		isRunwayTransition = rt == '1' || rt == '4' || rt == 'F' || rt == 'T'
		isEnroute = rt == '3' || rt == '6' || rt == 'S' || rt == 'V'
	case ProcedureSTAR:
		isEnroute = rt == '1' || rt == '4' || rt == '7' || rt == 'F'
		isRunwayTransition = rt == '3' || rt == '6' || rt == '9' || rt == 'S'
	case ProcedureApproach:
		isEnroute = rt == 'A'
	}

	appendFix := func(fixes []string) []string {
		if r.fix == "" || (len(fixes) > 0 && fixes[len(fixes)-1] == r.fix) {
			return fixes
		}
		return append(fixes, r.fix)
	}

	switch {
	case isRunwayTransition:
		for _, rwy := range expandRunwayTransition(r.transition) {
			if !slices.Contains(proc.Runways, rwy) {
				proc.Runways = append(proc.Runways, rwy)
			}
		}
	case isEnroute:
		t := proc.Transition(r.transition)
		if t == nil {
			t = &Transition{Id: r.transition}
			proc.Transitions = append(proc.Transitions, t)
		}
		t.Fixes = appendFix(t.Fixes)
	case inMissed:
	default:
		if kind == ProcedureApproach && len(proc.Runways) == 0 {
			// Approach idents encode the runway, e.g. I04R, R22L-Y.
			id, _, _ := strings.Cut(proc.Id, "-")
			if len(id) > 2 && id[1] >= '0' && id[1] <= '9' {
				proc.Runways = []string{id[1:]}
			}
		}
		if !strings.HasPrefix(r.fix, "RW") || kind == ProcedureApproach {
			proc.Fixes = appendFix(proc.Fixes)
		}
		return r.isMAP
	}
	return inMissed
}

// expandRunwayTransition maps a runway transition identifier to the
// runways it serves; "RW04B" is both 04L and 04R.
func expandRunwayTransition(trans string) []string {
	if !strings.HasPrefix(trans, "RW") {
		return nil
	}
	rwy := strings.TrimPrefix(trans, "RW")
	if base, ok := strings.CutSuffix(rwy, "B"); ok {
		return []string{base + "L", base + "R"}
	}
	return []string{rwy}
}
