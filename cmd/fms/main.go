// cmd/fms/main.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// fms is the command-line front end to the flight plan library: it
// converts and inspects flight plan files, parses ICAO routes, compiles
// navigation data and runs the flight plan server.

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/log"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout io.Writer) error
}

var commands = []command{
	{"convert", "convert [flags] <input> <output.fgfp>", runConvert},
	{"route", "route [flags] <ICAO route>", runRoute},
	{"info", "info [flags] <flight plan file>", runInfo},
	{"serve", "serve [flags]", runServe},
	{"navdata", "navdata [flags] -o <output.msgpack.zst> <input>...", runNavdata},
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "usage: fms <command> [flags] [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  fms %s\n", c.usage)
	}
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) int {
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(ctx, args, stdout)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 2
		default:
			fmt.Fprintf(stderr, "fms %s: %v\n", name, err)
			return 1
		}
	}

	if name != "help" && name != "-h" && name != "-help" {
		fmt.Fprintf(stderr, "fms: unknown command %q\n", name)
	}
	usage(stderr)
	return 2
}

func newLogger(s *Settings, server bool) *log.Logger {
	return log.New(server, s.LogLevel, s.LogDir)
}

func loadNavData(ctx context.Context, s *Settings, lg *log.Logger) (*av.StaticDatabase, error) {
	if len(s.NavData) == 0 {
		return nil, errors.New("no navigation data files given")
	}
	return av.LoadStaticDatabase(ctx, lg, s.NavData...)
}
