// flightplan/load.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/props"
	"github.com/mmp/fms/util"
)

func (fp *FlightPlan) loadFile(path string, read func(io.Reader) error) error {
	f, err := util.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return read(f)
}

func (fp *FlightPlan) readNative(r io.Reader) error {
	d, err := props.ReadXML(r)
	if err != nil {
		return err
	}
	return fp.readProperties(d)
}

func (fp *FlightPlan) anyLegWithFlag(flag av.WaypointFlags) bool {
	return slices.ContainsFunc(fp.legs, func(l *Leg) bool { return l.waypoint.HasFlag(flag) })
}

// finishNativeLoad marks the departure and arrival as changed only if no
// leg came from a procedure, so that procedures stored in the file are
// kept as they are.
func (fp *FlightPlan) finishNativeLoad() {
	if !fp.isRoute {
		fp.expandVias()
	}
	fp.dirty.arrival = !fp.anyLegWithFlag(av.WaypointFlagArrival)
	fp.dirty.departure = !fp.anyLegWithFlag(av.WaypointFlagDeparture)
}

// Load replaces the flight plan with the one in the given file, which may
// be GPX, a native property list or plain text, optionally gzip or zstd
// compressed. The flight plan's ident is set from the file name.
func (fp *FlightPlan) Load(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	fp.lg.Info("loading flight plan", slog.String("path", path))

	fp.lockDelegates()
	defer fp.unlockDelegates()

	loaded := false
	if isGPXPath(path) {
		if err := fp.loadFile(path, fp.readGPX); err != nil {
			fp.lg.Warn("unable to load GPX flight plan", slog.String("path", path), slog.Any("error", err))
		} else {
			fp.dirty.arrival, fp.dirty.departure = true, true
			loaded = true
		}
	}

	if !loaded {
		err := fp.loadFile(path, fp.readNative)
		switch {
		case err == nil:
			fp.finishNativeLoad()
			loaded = true
		case errors.Is(err, ErrUnsupportedVersion) || errors.Is(err, ErrNoRoute):
			// It's a property list, just not one we can use.
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	if !loaded {
		if err := fp.loadFile(path, fp.readText); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fp.dirty.arrival, fp.dirty.departure = true, true
		if !fp.isRoute {
			fp.expandVias()
		}
	}

	fp.ident = fileBase(path)
	fp.dirty.cruise, fp.dirty.waypoints, fp.dirty.loaded = true, true, true
	return nil
}

// fileBase returns the file name without its directory, compression
// suffix or extension.
func fileBase(path string) string {
	base := filepath.Base(path)
	for _, z := range []string{".gz", ".zst"} {
		base = strings.TrimSuffix(base, z)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFrom replaces the flight plan with the version 2 native flight plan
// read from r.
func (fp *FlightPlan) LoadFrom(r io.Reader) error {
	d, err := props.ReadXML(r)
	if err != nil {
		return err
	}
	if v := d.Int("version", 1); v != nativeVersion {
		return fmt.Errorf("version %d: %w", v, ErrUnsupportedVersion)
	}

	fp.lockDelegates()
	defer fp.unlockDelegates()

	if err := fp.readVersion2(d); err != nil {
		return err
	}
	fp.finishNativeLoad()
	fp.dirty.cruise, fp.dirty.waypoints, fp.dirty.loaded = true, true, true
	return nil
}

// SaveTo writes the flight plan in the version 2 native format.
func (fp *FlightPlan) SaveTo(w io.Writer) error {
	return props.WriteXML(w, fp.toProperties())
}

func (fp *FlightPlan) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fp.SaveTo(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
