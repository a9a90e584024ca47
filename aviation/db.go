// aviation/db.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/mmp/fms/log"
	"github.com/mmp/fms/math"
	"github.com/mmp/fms/util"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// NavDB is the navigation data lookup interface used by flight plans.
type NavDB interface {
	// FindClosestWithIdent returns the item with the given ident closest
	// to near, restricted to the given kinds (all but runways if none are
	// given). If near is invalid, a deterministic match is returned.
	FindClosestWithIdent(ident string, near math.Point2LL, kinds ...PositionedType) Positioned
	FindAirport(ident string) *Airport
	FindAirway(ident string, level AirwayLevel) *Airway
	// FindAirwayNode returns the fix on an airway at the given level with
	// the given ident that is closest to near.
	FindAirwayNode(ident string, near math.Point2LL, level AirwayLevel) Positioned
	// FindAirwayByIdentAndVia returns the airway with the given ident that
	// includes both from and to.
	FindAirwayByIdentAndVia(ident string, from, to Positioned) *Airway
	// MagneticVariation returns the declination at p, positive east.
	MagneticVariation(p math.Point2LL, t time.Time) float32
}

///////////////////////////////////////////////////////////////////////////
// StaticDatabase

// StaticDatabase is an in-memory NavDB. It is safe for concurrent lookups
// once loaded.
type StaticDatabase struct {
	Navaids  map[string][]*Navaid
	Fixes    map[string][]*Fix
	Airports map[string]*Airport
	Airways  map[string][]*Airway

	MagneticGrid *MagneticGrid
	// DefaultMagneticVariation is used outside the magnetic grid.
	DefaultMagneticVariation float32

	closest *expirable.LRU[closestKey, Positioned]
}

type closestKey struct {
	ident string
	near  math.Point2LL
	valid bool
	kinds uint32
}

const closestCacheSize = 4096

// NavdataFile is the on-disk form of navigation data, used for both the
// JSON and the msgpack encodings.
type NavdataFile struct {
	Navaids           []*Navaid     `json:"navaids,omitempty" msgpack:"navaids"`
	Fixes             []*Fix        `json:"fixes,omitempty" msgpack:"fixes"`
	Airports          []*Airport    `json:"airports,omitempty" msgpack:"airports"`
	Airways           []*Airway     `json:"airways,omitempty" msgpack:"airways"`
	MagneticGrid      *MagneticGrid `json:"magnetic_grid,omitempty" msgpack:"magnetic_grid"`
	MagneticVariation *float32      `json:"magnetic_variation,omitempty" msgpack:"magnetic_variation"`
}

func NewStaticDatabase() *StaticDatabase {
	return &StaticDatabase{
		Navaids:  make(map[string][]*Navaid),
		Fixes:    make(map[string][]*Fix),
		Airports: make(map[string]*Airport),
		Airways:  make(map[string][]*Airway),
		closest:  expirable.NewLRU[closestKey, Positioned](closestCacheSize, nil, 0),
	}
}

// LoadStaticDatabase reads the given navigation data files in parallel
// and merges them in the order given; later files override airports
// from earlier ones. Supported formats are JSON, msgpack and ARINC 424,
// any of them optionally gzip or zstd compressed.
func LoadStaticDatabase(ctx context.Context, lg *log.Logger, paths ...string) (*StaticDatabase, error) {
	start := time.Now()

	files := make([]*NavdataFile, len(paths))
	eg, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ReadNavdataFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	db := NewStaticDatabase()
	for _, f := range files {
		db.Add(f)
	}
	db.Link()

	lg.Info("loaded navigation data", slog.Int("files", len(paths)),
		slog.Int("airports", len(db.Airports)), slog.Int("navaids", len(db.Navaids)),
		slog.Int("fixes", len(db.Fixes)), slog.Int("airways", len(db.Airways)),
		slog.Duration("elapsed", time.Since(start)))

	return db, nil
}

func navdataFormat(path string) string {
	base := strings.ToLower(filepath.Base(path))
	base = strings.TrimSuffix(base, ".zst")
	base = strings.TrimSuffix(base, ".gz")
	switch {
	case strings.HasSuffix(base, ".json"):
		return "json"
	case strings.HasSuffix(base, ".msgpack"):
		return "msgpack"
	case strings.HasSuffix(base, ".424"), strings.HasSuffix(base, ".dat"), strings.HasPrefix(base, "faacifp"):
		return "arinc424"
	default:
		return ""
	}
}

// ReadNavdataFile reads a single navigation data file; the format is
// determined from the file name.
func ReadNavdataFile(path string) (*NavdataFile, error) {
	format := navdataFormat(path)
	if format == "" {
		return nil, ErrUnknownNavdataFormat
	}

	r, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return DecodeNavdata(r, format)
}

// DecodeNavdata decodes uncompressed navigation data in the given
// format: "json", "msgpack" or "arinc424".
func DecodeNavdata(r io.Reader, format string) (*NavdataFile, error) {
	var f NavdataFile
	switch format {
	case "json":
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	case "msgpack":
		if err := msgpack.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	case "arinc424":
		res, err := ParseARINC424(r)
		if err != nil {
			return nil, err
		}
		f = res.NavdataFile()
	default:
		return nil, ErrUnknownNavdataFormat
	}
	return &f, nil
}

// Add merges the contents of a navigation data file into the database.
// Link must be called after the last call to Add.
func (db *StaticDatabase) Add(f *NavdataFile) {
	for _, n := range f.Navaids {
		db.Navaids[n.Id] = append(db.Navaids[n.Id], n)
	}
	for _, fix := range f.Fixes {
		db.Fixes[fix.Id] = append(db.Fixes[fix.Id], fix)
	}
	for _, ap := range f.Airports {
		db.Airports[ap.Id] = ap
	}
	for _, awy := range f.Airways {
		db.Airways[awy.Name] = append(db.Airways[awy.Name], awy)
	}
	if f.MagneticGrid != nil {
		db.MagneticGrid = f.MagneticGrid
	}
	if f.MagneticVariation != nil {
		db.DefaultMagneticVariation = *f.MagneticVariation
	}
	db.closest.Purge()
}

// Link resolves the references between database items: runways and
// procedures to their airports, procedure and airway fixes to the
// navaids and fixes they name.
func (db *StaticDatabase) Link() {
	navKinds := []PositionedType{PositionedVOR, PositionedNDB, PositionedDME, PositionedFix}

	for _, ap := range db.Airports {
		for _, rwy := range ap.Runways {
			rwy.airport = ap
		}

		resolve := func(idents []string) []Positioned {
			var pts []Positioned
			for _, id := range idents {
				if rwy := ap.Runway(id); rwy != nil && strings.HasPrefix(strings.ToUpper(id), "RW") {
					pts = append(pts, rwy)
				} else if p := db.FindClosestWithIdent(id, ap.Location, navKinds...); p != nil {
					pts = append(pts, p)
				}
			}
			return pts
		}
		link := func(procs []*Procedure, kind ProcedureKind) {
			for _, proc := range procs {
				proc.kind, proc.airport = kind, ap
				proc.points = resolve(proc.Fixes)
				for _, t := range proc.Transitions {
					t.parent = proc
					t.points = resolve(t.Fixes)
					if t.Id == "" {
						if e := t.Enroute(); e != nil {
							t.Id = e.Ident()
						}
					}
				}
			}
		}
		link(ap.SIDs, ProcedureSID)
		link(ap.STARs, ProcedureSTAR)
		link(ap.Approaches, ProcedureApproach)
	}

	for _, awys := range db.Airways {
		for _, awy := range awys {
			prev := math.InvalidPoint2LL()
			for i := range awy.Fixes {
				f := &awy.Fixes[i]
				near := util.Select(f.Location.IsZero(), prev, f.Location)
				if p := db.FindClosestWithIdent(f.Fix, near, navKinds...); p != nil &&
					(f.Location.IsZero() || math.MetersDistance2LL(p.Position(), f.Location) < airwayMatchMeters) {
					f.source = p
					f.Location = p.Position()
				}
				if !f.Location.IsZero() {
					prev = f.Location
				}
			}
		}
	}

	db.closest.Purge()
}

// Snapshot returns the database contents in the on-disk form.
func (db *StaticDatabase) Snapshot() *NavdataFile {
	f := &NavdataFile{MagneticGrid: db.MagneticGrid}
	if db.DefaultMagneticVariation != 0 {
		v := db.DefaultMagneticVariation
		f.MagneticVariation = &v
	}
	for _, id := range util.SortedMapKeys(db.Navaids) {
		f.Navaids = append(f.Navaids, db.Navaids[id]...)
	}
	for _, id := range util.SortedMapKeys(db.Fixes) {
		f.Fixes = append(f.Fixes, db.Fixes[id]...)
	}
	for _, id := range util.SortedMapKeys(db.Airports) {
		f.Airports = append(f.Airports, db.Airports[id])
	}
	for _, id := range util.SortedMapKeys(db.Airways) {
		f.Airways = append(f.Airways, db.Airways[id]...)
	}
	return f
}

// WriteMsgpack writes the database as zstd-compressed msgpack, the
// fastest of the formats to load. ReadNavdataFile reads it back from a
// file named *.msgpack.zst.
func (db *StaticDatabase) WriteMsgpack(w io.Writer) error {
	return util.EncodeObject(w, db.Snapshot())
}

///////////////////////////////////////////////////////////////////////////
// Lookups

func kindMask(kinds []PositionedType) uint32 {
	var m uint32
	for _, k := range kinds {
		m |= 1 << uint(k)
	}
	return m
}

func (db *StaticDatabase) candidates(ident string, mask uint32) []Positioned {
	allow := func(k PositionedType) bool {
		if mask == 0 {
			return k != PositionedRunway
		}
		return mask&(1<<uint(k)) != 0
	}

	var c []Positioned
	if ap, ok := db.Airports[ident]; ok && allow(PositionedAirport) {
		c = append(c, ap)
	}
	for _, n := range db.Navaids[ident] {
		if allow(n.Kind()) {
			c = append(c, n)
		}
	}
	if allow(PositionedFix) {
		for _, f := range db.Fixes[ident] {
			c = append(c, f)
		}
	}
	return c
}

func (db *StaticDatabase) FindClosestWithIdent(ident string, near math.Point2LL, kinds ...PositionedType) Positioned {
	key := closestKey{ident: ident, valid: near.IsValid(), kinds: kindMask(kinds)}
	if key.valid {
		key.near = near
	}
	if p, ok := db.closest.Get(key); ok {
		return p
	}

	c := db.candidates(ident, key.kinds)
	if len(c) == 0 {
		return nil
	}
	best := c[0]
	if key.valid {
		bestDist := math.NMDistance2LL(near, best.Position())
		for _, p := range c[1:] {
			if d := math.NMDistance2LL(near, p.Position()); d < bestDist {
				best, bestDist = p, d
			}
		}
	}

	db.closest.Add(key, best)
	return best
}

func (db *StaticDatabase) FindAirport(ident string) *Airport {
	if ap, ok := db.Airports[ident]; ok {
		return ap
	}
	return nil
}

func (db *StaticDatabase) FindAirway(ident string, level AirwayLevel) *Airway {
	for _, awy := range db.Airways[ident] {
		if awy.Level.includes(level) {
			return awy
		}
	}
	return nil
}

func (db *StaticDatabase) FindAirwayNode(ident string, near math.Point2LL, level AirwayLevel) Positioned {
	var best Positioned
	var bestDist float32
	for _, name := range util.SortedMapKeys(db.Airways) {
		for _, awy := range db.Airways[name] {
			if !awy.Level.includes(level) {
				continue
			}
			for _, f := range awy.Fixes {
				if f.Fix != ident || f.source == nil {
					continue
				}
				if !near.IsValid() {
					return f.source
				}
				if d := math.NMDistance2LL(near, f.Location); best == nil || d < bestDist {
					best, bestDist = f.source, d
				}
			}
		}
	}
	return best
}

func (db *StaticDatabase) FindAirwayByIdentAndVia(ident string, from, to Positioned) *Airway {
	for _, awy := range db.Airways[ident] {
		if awy.Contains(from) && awy.Contains(to) {
			return awy
		}
	}
	return nil
}

func (db *StaticDatabase) MagneticVariation(p math.Point2LL, t time.Time) float32 {
	if db.MagneticGrid != nil {
		if v, err := db.MagneticGrid.Lookup(p); err == nil {
			return v
		}
	}
	return db.DefaultMagneticVariation
}

///////////////////////////////////////////////////////////////////////////
// Validation

// Check reports problems with the database that would make flight plans
// built from it misbehave: items without positions, unresolved procedure
// and airway fixes, and runways without headings.
func (db *StaticDatabase) Check(e *util.ErrorLogger) {
	for _, ap := range util.SortedMapKeys(db.Airports) {
		db.Airports[ap].check(e)
	}

	for _, name := range util.SortedMapKeys(db.Airways) {
		for _, awy := range db.Airways[name] {
			e.Push("Airway " + awy.String())
			if len(awy.Fixes) < 2 {
				e.ErrorString("must have at least two fixes")
			}
			for _, f := range awy.Fixes {
				if f.source == nil {
					e.ErrorString("%s: fix not found", f.Fix)
				}
			}
			e.Pop()
		}
	}

	for _, id := range util.SortedMapKeys(db.Navaids) {
		for _, n := range db.Navaids[id] {
			if !n.Location.IsValid() || n.Location.IsZero() {
				e.ErrorString("Navaid %s: no location", n.Id)
			}
		}
	}
	for _, id := range util.SortedMapKeys(db.Fixes) {
		for _, f := range db.Fixes[id] {
			if !f.Location.IsValid() || f.Location.IsZero() {
				e.ErrorString("Fix %s: no location", f.Id)
			}
		}
	}
}

func (ap *Airport) check(e *util.ErrorLogger) {
	e.Push("Airport " + ap.Id)
	defer e.Pop()

	if !ap.Location.IsValid() || ap.Location.IsZero() {
		e.ErrorString("no location")
	}
	for _, rwy := range ap.Runways {
		if rwy.Heading < 0 || rwy.Heading > 360 {
			e.ErrorString("runway %s: invalid heading %f", rwy.Id, rwy.Heading)
		}
	}

	checkProc := func(proc *Procedure) {
		e.Push(proc.kind.String() + " " + proc.Id)
		defer e.Pop()

		if len(proc.points) != len(proc.Fixes) {
			e.ErrorString("unable to resolve all fixes in %q", strings.Join(proc.Fixes, " "))
		}
		for _, rwy := range proc.Runways {
			if !ap.HasRunway(rwy) {
				e.ErrorString("%s: %v", rwy, ErrUnknownRunway)
			}
		}
		if proc.kind == ProcedureApproach && len(proc.Runways) != 1 {
			e.ErrorString("approach must serve exactly one runway")
		}
		seen := make(map[string]bool)
		for _, t := range proc.Transitions {
			if seen[t.Id] {
				e.ErrorString("%s: transition repeated", t.Id)
			}
			seen[t.Id] = true
			if len(t.points) == 0 || len(t.points) != len(t.Fixes) {
				e.ErrorString("transition %s: unable to resolve all fixes in %q", t.Id, strings.Join(t.Fixes, " "))
			}
		}
	}
	for _, procs := range [][]*Procedure{ap.SIDs, ap.STARs, ap.Approaches} {
		for _, p := range procs {
			checkProc(p)
		}
	}
	if i := slices.IndexFunc(ap.Runways, func(r *Runway) bool { return r.Id == "" }); i != -1 {
		e.ErrorString("runway %d: missing id", i)
	}
}

///////////////////////////////////////////////////////////////////////////
// MagneticGrid

// MagneticGrid holds magnetic declination samples on a regular
// latitude-longitude grid. Samples are stored latitude-major and are
// positive east.
type MagneticGrid struct {
	MinLatitude  float32   `json:"min_latitude"`
	MaxLatitude  float32   `json:"max_latitude"`
	MinLongitude float32   `json:"min_longitude"`
	MaxLongitude float32   `json:"max_longitude"`
	LatLongStep  float32   `json:"step"`
	Samples      []float32 `json:"samples"`
}

func (mg *MagneticGrid) dims() (int, int) {
	nlat := int(1 + (mg.MaxLatitude-mg.MinLatitude)/mg.LatLongStep)
	nlong := int(1 + (mg.MaxLongitude-mg.MinLongitude)/mg.LatLongStep)
	return nlat, nlong
}

func (mg *MagneticGrid) Validate() error {
	if mg.LatLongStep <= 0 {
		return fmt.Errorf("magnetic grid: invalid step %f", mg.LatLongStep)
	}
	nlat, nlong := mg.dims()
	if len(mg.Samples) != nlat*nlong {
		return fmt.Errorf("found %d magnetic grid samples, expected %d x %d = %d",
			len(mg.Samples), nlat, nlong, nlat*nlong)
	}
	return nil
}

func (mg *MagneticGrid) Lookup(p math.Point2LL) (float32, error) {
	if p[0] < mg.MinLongitude || p[0] > mg.MaxLongitude ||
		p[1] < mg.MinLatitude || p[1] > mg.MaxLatitude {
		return 0, fmt.Errorf("lookup point outside sampled grid")
	}
	if err := mg.Validate(); err != nil {
		return 0, err
	}

	nlat, nlong := mg.dims()

	// Round to nearest
	lat := math.Min(int((p[1]-mg.MinLatitude)/mg.LatLongStep+0.5), nlat-1)
	long := math.Min(int((p[0]-mg.MinLongitude)/mg.LatLongStep+0.5), nlong-1)

	return mg.Samples[long+nlong*lat], nil
}
