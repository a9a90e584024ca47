// math/latlong.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"encoding/json"
	"fmt"
	gomath "math"
	"strconv"
	"strings"
)

const NMPerLatitude = 60

const NauticalMilesToFeet = 6076.12
const FeetToNauticalMiles = 1 / NauticalMilesToFeet
const NauticalMilesToMeters = 1852
const MetersToNauticalMiles = 1 / NauticalMilesToMeters
const MetersToFeet = 3.28084
const FeetToMeters = 1 / MetersToFeet

// Mean earth radius used for the spherical great-circle computations.
const EarthRadiusMeters = 6371000

///////////////////////////////////////////////////////////////////////////
// Point2LL

// Point2LL represents a 2D point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude
type Point2LL [2]float32

// InvalidPoint2LL returns a point that reports false from IsValid; it is
// used for waypoints with no geographic position (e.g., route
// discontinuities) and for "no search vicinity".
func InvalidPoint2LL() Point2LL {
	nan := float32(gomath.NaN())
	return Point2LL{nan, nan}
}

func (p Point2LL) Longitude() float32 {
	return p[0]
}

func (p Point2LL) Latitude() float32 {
	return p[1]
}

func (p Point2LL) IsValid() bool {
	return !IsNaN(p[0]) && !IsNaN(p[1])
}

func (p Point2LL) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

// DDString returns the position in decimal degrees, e.g.:
// (39.860901, -75.274864)
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%f, %f)", p[1], p[0]) // latitude, longitude
}

// DMSString returns the position in degrees minutes, seconds, e.g.
// N039.51.39.243,W075.16.29.511
func (p Point2LL) DMSString() string {
	format := func(v float32) string {
		ms := int(gomath.Round(float64(v) * 3600000))
		deg, ms := ms/3600000, ms%3600000
		min, ms := ms/60000, ms%60000
		sec, ms := ms/1000, ms%1000
		return fmt.Sprintf("%03d.%02d.%02d.%03d", deg, min, sec, ms)
	}

	s := "N"
	if p[1] < 0 {
		s = "S"
	}
	s += format(Abs(p[1]))

	if p[0] < 0 {
		s += ",W"
	} else {
		s += ",E"
	}
	return s + format(Abs(p[0]))
}

// ICAOString returns the position in the form used for coordinates in
// ICAO route strings: whole degrees ("52N020W") when both coordinates
// fall on a whole degree, and degrees and minutes ("5230N02015W")
// otherwise.
func (p Point2LL) ICAOString() string {
	split := func(v float32) (int, int) {
		m := int(gomath.Round(float64(Abs(v)) * 60))
		return m / 60, m % 60
	}
	latd, latm := split(p[1])
	lond, lonm := split(p[0])
	ns, ew := "N", "E"
	if p[1] < 0 {
		ns = "S"
	}
	if p[0] < 0 {
		ew = "W"
	}

	if latm == 0 && lonm == 0 {
		return fmt.Sprintf("%02d%s%03d%s", latd, ns, lond, ew)
	}
	return fmt.Sprintf("%02d%02d%s%03d%02d%s", latd, latm, ns, lond, lonm, ew)
}

// ParseICAOLatLong decodes the 7-character (whole degrees, "52N020W") and
// 11-character (degrees and minutes, "5230N02015W") coordinate forms used
// in ICAO route strings. Fields are decoded by position.
func ParseICAOLatLong(s string) (Point2LL, bool) {
	digits := func(s string) (int, bool) {
		v := 0
		for _, ch := range []byte(s) {
			if ch < '0' || ch > '9' {
				return 0, false
			}
			v = 10*v + int(ch-'0')
		}
		return v, true
	}
	hemi := func(ch byte, pos, neg byte) (float32, bool) {
		switch ch {
		case pos:
			return 1, true
		case neg:
			return -1, true
		default:
			return 0, false
		}
	}

	var latd, latm, lond, lonm int
	var ns, ew byte
	var ok [4]bool
	switch len(s) {
	case 7:
		latd, ok[0] = digits(s[0:2])
		ns = s[2]
		lond, ok[1] = digits(s[3:6])
		ew = s[6]
		ok[2], ok[3] = true, true
	case 11:
		latd, ok[0] = digits(s[0:2])
		latm, ok[1] = digits(s[2:4])
		ns = s[4]
		lond, ok[2] = digits(s[5:8])
		lonm, ok[3] = digits(s[8:10])
		ew = s[10]
	default:
		return Point2LL{}, false
	}
	if !ok[0] || !ok[1] || !ok[2] || !ok[3] || latm >= 60 || lonm >= 60 {
		return Point2LL{}, false
	}

	latSign, okns := hemi(ns, 'N', 'S')
	lonSign, okew := hemi(ew, 'E', 'W')
	if !okns || !okew {
		return Point2LL{}, false
	}

	lat := latSign * (float32(latd) + float32(latm)/60)
	lon := lonSign * (float32(lond) + float32(lonm)/60)
	if lat > 90 || lon > 180 || lat < -90 || lon < -180 {
		return Point2LL{}, false
	}
	return Point2LL{lon, lat}, true
}

// ParseLatLong parses either a pair of decimal degrees ("lat, lon") or a
// pair of dotted degrees-minutes-seconds values as produced by DMSString
// ("N040.44.21.753,W075.41.55.347").
func ParseLatLong(llstr []byte) (Point2LL, error) {
	s := strings.TrimSpace(string(llstr))
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return Point2LL{}, fmt.Errorf("%s: invalid latlong string", s)
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)

	if a != "" && (a[0] == 'N' || a[0] == 'S') {
		lat, err := parseDotted(a[1:])
		if err != nil {
			return Point2LL{}, fmt.Errorf("%s: %w", s, err)
		}
		if b == "" || (b[0] != 'E' && b[0] != 'W') {
			return Point2LL{}, fmt.Errorf("%s: invalid longitude", s)
		}
		lon, err := parseDotted(b[1:])
		if err != nil {
			return Point2LL{}, fmt.Errorf("%s: %w", s, err)
		}
		if a[0] == 'S' {
			lat = -lat
		}
		if b[0] == 'W' {
			lon = -lon
		}
		return Point2LL{lon, lat}, nil
	}

	lat, err := strconv.ParseFloat(a, 32)
	if err != nil {
		return Point2LL{}, err
	}
	lon, err := strconv.ParseFloat(b, 32)
	if err != nil {
		return Point2LL{}, err
	}
	return Point2LL{float32(lon), float32(lat)}, nil
}

// parseDotted handles the "ddd.mm.ss.fff" half of a dotted position; the
// fractional seconds field may have fewer than three digits.
func parseDotted(s string) (float32, error) {
	f := strings.Split(s, ".")
	if len(f) != 4 {
		return 0, fmt.Errorf("%s: expected four dotted fields", s)
	}
	scales := [4]float64{1, 60, 3600, 3600000}
	var v float64
	for i, fs := range f {
		if i == 3 {
			for len(fs) < 3 {
				fs += "0"
			}
		}
		n, err := strconv.Atoi(fs)
		if err != nil {
			return 0, err
		}
		v += float64(n) / scales[i]
	}
	return float32(v), nil
}

// NMDistance2LL returns the great-circle distance in nautical miles
// between two provided lat-long coordinates.
func NMDistance2LL(a Point2LL, b Point2LL) float32 {
	return float32(metersDistance(a, b) * MetersToNauticalMiles)
}

// MetersDistance2LL returns the great-circle distance in meters between
// two provided lat-long coordinates.
func MetersDistance2LL(a Point2LL, b Point2LL) float32 {
	return float32(metersDistance(a, b))
}

func metersDistance(a, b Point2LL) float64 {
	// https://www.movable-type.co.uk/scripts/latlong.html
	lat1, lon1 := rad64(a[1]), rad64(a[0])
	lat2, lon2 := rad64(b[1]), rad64(b[0])
	dlat, dlon := lat2-lat1, lon2-lon1

	x := Sqr(gomath.Sin(dlat/2)) + gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin(dlon/2))
	c := 2 * gomath.Atan2(gomath.Sqrt(x), gomath.Sqrt(1-x))
	return EarthRadiusMeters * c
}

func rad64(d float32) float64 { return float64(d) / 180 * gomath.Pi }

// InitialCourse2LL returns the initial true course in degrees of the
// great circle from |from| to |to|. Coincident points return 0.
func InitialCourse2LL(from Point2LL, to Point2LL) float32 {
	if from == to {
		return 0
	}
	lat1, lat2 := rad64(from[1]), rad64(to[1])
	dlon := rad64(to[0]) - rad64(from[0])

	y := gomath.Sin(dlon) * gomath.Cos(lat2)
	x := gomath.Cos(lat1)*gomath.Sin(lat2) - gomath.Sin(lat1)*gomath.Cos(lat2)*gomath.Cos(dlon)
	return NormalizeHeading(float32(gomath.Atan2(y, x) * 180 / gomath.Pi))
}

// Offset2LL returns the point reached by following the great circle
// leaving p with the given initial true course for dist nautical miles.
func Offset2LL(p Point2LL, course float32, dist float32) Point2LL {
	lat1, lon1 := rad64(p[1]), rad64(p[0])
	brg := rad64(course)
	d := float64(dist) * NauticalMilesToMeters / EarthRadiusMeters

	lat2 := gomath.Asin(gomath.Sin(lat1)*gomath.Cos(d) + gomath.Cos(lat1)*gomath.Sin(d)*gomath.Cos(brg))
	lon2 := lon1 + gomath.Atan2(gomath.Sin(brg)*gomath.Sin(d)*gomath.Cos(lat1),
		gomath.Cos(d)-gomath.Sin(lat1)*gomath.Sin(lat2))
	// normalize to [-180,180)
	lon2 = gomath.Mod(lon2+3*gomath.Pi, 2*gomath.Pi) - gomath.Pi

	return Point2LL{float32(lon2 * 180 / gomath.Pi), float32(lat2 * 180 / gomath.Pi)}
}

// Store Point2LLs as strings is JSON, for compactness/friendliness...
func (p Point2LL) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return []byte("null"), nil
	}
	return []byte("\"" + p.DMSString() + "\""), nil
}

func (p *Point2LL) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*p = InvalidPoint2LL()
		return nil
	case len(b) > 0 && b[0] == '[':
		// [longitude, latitude]
		var pt [2]float32
		err := json.Unmarshal(b, &pt)
		if err == nil {
			*p = pt
		}
		return err
	case len(b) >= 2 && b[0] == '"':
		pt, err := ParseLatLong(b[1 : len(b)-1])
		if err == nil {
			*p = pt
		}
		return err
	default:
		return fmt.Errorf("%s: invalid JSON position", string(b))
	}
}
