// cmd/fms/config.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/mmp/fms/store"
	"github.com/mmp/fms/util"

	"github.com/brunoga/deep"
	"github.com/peterbourgon/ff"
	"gopkg.in/yaml.v3"
)

// Settings holds everything that can be given in the YAML settings file.
// Command-line flags (or FMS_* environment variables) override it.
type Settings struct {
	LogLevel string   `yaml:"log_level"`
	LogDir   string   `yaml:"log_dir"`
	NavData  []string `yaml:"navdata"`

	Store store.Config `yaml:"store"`

	Listen         string   `yaml:"listen"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AccessLog      string   `yaml:"access_log"`
	Metrics        bool     `yaml:"metrics"`
}

var defaultSettings = Settings{
	LogLevel: "info",
	NavData:  []string{"navdata.msgpack.zst"},
	Store: store.Config{
		Backend: "fs",
		Dir:     "flightplans",
	},
	Listen:    ":8080",
	RateLimit: 20,
	RateBurst: 40,
	Metrics:   true,
}

// LoadSettings returns the default settings overlaid with the contents of
// the given YAML file, if any. Unknown keys are an error.
func LoadSettings(path string) (*Settings, error) {
	s := deep.MustCopy(defaultSettings)
	if path == "" {
		return &s, nil
	}

	r, err := util.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if err := decodeSettings(r, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

func decodeSettings(r io.Reader, s *Settings) error {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Flags

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	settings string
	logLevel string
	logDir   string
	navdata  string
}

func newFlagSet(name string) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet("fms "+name, flag.ContinueOnError)
	var cf commonFlags
	fs.String("config", "", "file of flag values, one \"name value\" per line")
	fs.StringVar(&cf.settings, "settings", "", "YAML settings file")
	fs.StringVar(&cf.logLevel, "loglevel", "", "logging level: debug, info, warn, error")
	fs.StringVar(&cf.logDir, "logdir", "", "log file directory")
	fs.StringVar(&cf.navdata, "navdata", "", "comma-separated navigation data files")
	return fs, &cf
}

// parse parses the command line, then the FMS_ environment variables and
// the -config file, and returns the settings with any flags that were
// given applied on top. The extra function applies flags particular to
// the subcommand.
func parse(fs *flag.FlagSet, cf *commonFlags, args []string, extra func(*Settings, *flag.Flag)) (*Settings, error) {
	if err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("FMS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser)); err != nil {
		return nil, err
	}

	s, err := LoadSettings(cf.settings)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "loglevel":
			s.LogLevel = cf.logLevel
		case "logdir":
			s.LogDir = cf.logDir
		case "navdata":
			s.NavData = splitList(cf.navdata)
		default:
			if extra != nil {
				extra(s, f)
			}
		}
	})
	return s, nil
}

func splitList(s string) []string {
	var l []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			l = append(l, f)
		}
	}
	return l
}
