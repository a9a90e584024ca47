// cmd/fms/commands.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/flightplan"
	"github.com/mmp/fms/metrics"
	"github.com/mmp/fms/server"
	"github.com/mmp/fms/store"
	"github.com/mmp/fms/util"

	"github.com/goforj/godump"
	"gopkg.in/natefinch/lumberjack.v2"
)

// convert reads a flight plan in any supported format and writes it in
// the native format.
func runConvert(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cf := newFlagSet("convert")
	route := fs.Bool("route", false, "treat the input as a route rather than a flight plan")
	s, err := parse(fs, cf, args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("expected <input> <output>, got %d arguments", fs.NArg())
	}

	lg := newLogger(s, false)
	db, err := loadNavData(ctx, s, lg)
	if err != nil {
		return err
	}

	var fp *flightplan.FlightPlan
	if *route {
		fp = flightplan.NewRoute(db, nil, lg)
	} else {
		fp = flightplan.New(db, nil, lg)
	}
	defer fp.Close()

	if err := fp.Load(fs.Arg(0)); err != nil {
		return err
	}
	if err := fp.Save(fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d legs, %.1f nm\n", fs.Arg(1), fp.NumLegs(), fp.TotalDistanceNM())
	return nil
}

// route parses an ICAO route string and prints the resulting flight plan.
func runRoute(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cf := newFlagSet("route")
	dep := fs.String("departure", "", "departure airport")
	dest := fs.String("destination", "", "destination airport")
	fl := fs.Int("fl", 0, "cruise flight level")
	knots := fs.Int("knots", 0, "cruise speed in knots")
	mach := fs.Float64("mach", 0, "cruise speed as a Mach number")
	format := fs.String("format", "json", "output format: json, route, legs, or xml")
	s, err := parse(fs, cf, args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("no route given")
	}

	lg := newLogger(s, false)
	db, err := loadNavData(ctx, s, lg)
	if err != nil {
		return err
	}

	fp := flightplan.New(db, nil, lg)
	defer fp.Close()

	for _, a := range []struct {
		ident string
		set   func(*av.Airport)
	}{{*dep, fp.SetDeparture}, {*dest, fp.SetDestination}} {
		if a.ident == "" {
			continue
		}
		apt := db.FindAirport(strings.ToUpper(a.ident))
		if apt == nil {
			return fmt.Errorf("%s: %w", a.ident, av.ErrUnknownAirport)
		}
		a.set(apt)
	}
	if *fl > 0 {
		fp.SetCruiseFlightLevel(*fl)
	}
	if *mach > 0 {
		fp.SetCruiseSpeedMach(float32(*mach))
	} else if *knots > 0 {
		fp.SetCruiseSpeedKnots(*knots)
	}

	if err := fp.ParseICAORoute(strings.Join(fs.Args(), " ")); err != nil {
		return err
	}
	if *fl > 0 && (*knots > 0 || *mach > 0) {
		fp.ComputeDurationMinutes()
	}
	return writePlan(stdout, fp, *format)
}

func writePlan(w io.Writer, fp *flightplan.FlightPlan, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fp)
	case "route":
		_, err := fmt.Fprintln(w, fp.ICAORouteString())
		return err
	case "legs":
		return writeLegs(w, fp)
	case "xml":
		return fp.SaveTo(w)
	default:
		return fmt.Errorf("%q: unknown output format", format)
	}
}

func writeLegs(w io.Writer, fp *flightplan.FlightPlan) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tIDENT\tTYPE\tCOURSE\tDIST\tTOTAL\tALT")
	for _, l := range fp.Legs() {
		alt := ""
		if r := l.AltitudeRestriction(); r != av.RestrictNone {
			alt = r.String() + " " + strconv.Itoa(int(l.AltitudeFt()))
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%03.0f\t%.1f\t%.1f\t%s\n", l.Index(), l.Waypoint().Ident(),
			l.Waypoint().Type(), l.CourseDeg(), l.DistanceNM(), l.DistanceAlongRoute(), alt)
	}
	return tw.Flush()
}

// info loads a flight plan file and summarizes it.
func runInfo(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cf := newFlagSet("info")
	dump := fs.Bool("dump", false, "dump the full flight plan structure")
	s, err := parse(fs, cf, args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected a single flight plan file")
	}

	lg := newLogger(s, false)
	db, err := loadNavData(ctx, s, lg)
	if err != nil {
		return err
	}

	fp := flightplan.New(db, nil, lg)
	defer fp.Close()
	if err := fp.Load(fs.Arg(0)); err != nil {
		return err
	}

	ident := func(a *av.Airport) string {
		if a == nil {
			return "-"
		}
		return a.Ident()
	}
	fmt.Fprintf(stdout, "%s: %s -> %s, %d legs, %.1f nm", fp.Ident(), ident(fp.Departure()),
		ident(fp.Destination()), fp.NumLegs(), fp.TotalDistanceNM())
	if m := fp.EstimatedDurationMinutes(); m > 0 {
		fmt.Fprintf(stdout, ", %dh%02dm", m/60, m%60)
	}
	fmt.Fprintf(stdout, "\nroute: %s\n\n", fp.ICAORouteString())
	if err := writeLegs(stdout, fp); err != nil {
		return err
	}

	if *dump {
		// The exported form; the FlightPlan itself reaches the whole
		// navigation database.
		b, err := json.Marshal(fp)
		if err != nil {
			return err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
		godump.Fdump(stdout, v)
	}
	return nil
}

// serve runs the flight plan server until interrupted.
func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cf := newFlagSet("serve")
	listen := fs.String("listen", "", "address to listen on")
	backend := fs.String("store", "", "flight plan store: fs, gcs, s3, redis, or postgres")
	dir := fs.String("dir", "", "flight plan directory for the fs store")
	rateLimit := fs.Float64("ratelimit", 0, "sustained API requests per second; 0 disables limiting")
	accessLog := fs.String("accesslog", "", "file for the HTTP access log")
	s, err := parse(fs, cf, args, func(s *Settings, f *flag.Flag) {
		switch f.Name {
		case "listen":
			s.Listen = *listen
		case "store":
			s.Store.Backend = *backend
		case "dir":
			s.Store.Dir = *dir
		case "ratelimit":
			s.RateLimit = *rateLimit
		case "accesslog":
			s.AccessLog = *accessLog
		}
	})
	if err != nil {
		return err
	}

	lg := newLogger(s, true)
	lg.Info("starting server", slog.String("listen", s.Listen), slog.String("store", s.Store.Backend))

	db, err := loadNavData(ctx, s, lg)
	if err != nil {
		return err
	}
	var e util.ErrorLogger
	db.Check(&e)
	if e.HaveErrors() {
		lg.Warn("navigation data has problems", slog.String("errors", e.String()))
	}

	st, err := store.Open(ctx, s.Store, lg)
	if err != nil {
		return err
	}

	opts := server.Options{
		NavDB:          db,
		Store:          st,
		RateLimit:      s.RateLimit,
		RateBurst:      s.RateBurst,
		AllowedOrigins: s.AllowedOrigins,
	}
	if s.Metrics {
		opts.Metrics = metrics.New(true)
	}
	if s.AccessLog != "" {
		al := &lumberjack.Logger{
			Filename: s.AccessLog,
			MaxSize:  64, // MB
			MaxAge:   14,
			Compress: true,
		}
		defer al.Close()
		opts.AccessLog = al
	}

	srv, err := server.New(opts, lg)
	if err != nil {
		st.Close()
		return err
	}
	defer srv.Close()

	fmt.Fprintf(stdout, "serving flight plans on %s\n", s.Listen)
	return srv.ListenAndServe(ctx, s.Listen)
}

// navdata compiles navigation data files into a single msgpack snapshot.
func runNavdata(ctx context.Context, args []string, stdout io.Writer) error {
	fs, cf := newFlagSet("navdata")
	out := fs.String("o", "navdata.msgpack.zst", "output file")
	check := fs.Bool("check", true, "check the data for problems before writing it")
	s, err := parse(fs, cf, args, nil)
	if err != nil {
		return err
	}
	if fs.NArg() > 0 {
		s.NavData = fs.Args()
	}

	lg := newLogger(s, false)
	db, err := loadNavData(ctx, s, lg)
	if err != nil {
		return err
	}

	if *check {
		var e util.ErrorLogger
		db.Check(&e)
		if e.HaveErrors() {
			e.PrintErrors(lg)
			return e.Err()
		}
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := db.WriteMsgpack(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", *out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s: %d airports, %d navaids, %d fixes, %d airways\n", *out,
		len(db.Airports), len(db.Navaids), len(db.Fixes), len(db.Airways))
	return nil
}
