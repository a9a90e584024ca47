// store/flightplan.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmp/fms/flightplan"
	"github.com/mmp/fms/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Flight plans are kept as zstd-compressed native XML under plans/,
// with a msgpack summary of each under summaries/ so that listings don't
// need to parse every plan.
const (
	planPrefix    = "plans/"
	summaryPrefix = "summaries/"
)

type Summary struct {
	Name string `msgpack:"name" json:"name"`
	// Revision changes every time the plan is saved.
	Revision        string    `msgpack:"revision" json:"revision"`
	IsRoute         bool      `msgpack:"is_route" json:"is_route"`
	Departure       string    `msgpack:"departure" json:"departure,omitempty"`
	Destination     string    `msgpack:"destination" json:"destination,omitempty"`
	Route           string    `msgpack:"route" json:"route"`
	NumLegs         int       `msgpack:"num_legs" json:"num_legs"`
	TotalDistanceNM float32   `msgpack:"total_distance_nm" json:"total_distance_nm"`
	Saved           time.Time `msgpack:"saved" json:"saved"`
}

func summarize(name string, fp *flightplan.FlightPlan, now time.Time) Summary {
	s := Summary{
		Name:            name,
		Revision:        uuid.NewString(),
		IsRoute:         fp.IsRoute(),
		Route:           fp.ICAORouteString(),
		NumLegs:         fp.NumLegs(),
		TotalDistanceNM: fp.TotalDistanceNM(),
		Saved:           now.UTC(),
	}
	if apt := fp.Departure(); apt != nil {
		s.Departure = apt.Ident()
	}
	if apt := fp.Destination(); apt != nil {
		s.Destination = apt.Ident()
	}
	return s
}

// SaveFlightPlan writes fp to s under the given name, which defaults to
// the plan's ident and then to a fresh UUID. The returned summary
// carries the name that was used.
func SaveFlightPlan(ctx context.Context, s Store, name string, fp *flightplan.FlightPlan) (Summary, error) {
	if name == "" {
		name = fp.Ident()
	}
	if name == "" {
		name = uuid.NewString()
	}
	if err := CheckName(name); err != nil {
		return Summary{}, err
	}

	var buf bytes.Buffer
	if err := fp.SaveTo(&buf); err != nil {
		return Summary{}, err
	}
	data, err := util.CompressZstd(buf.Bytes())
	if err != nil {
		return Summary{}, err
	}

	sum := summarize(name, fp, time.Now())
	var sbuf bytes.Buffer
	if err := util.EncodeObject(&sbuf, sum); err != nil {
		return Summary{}, err
	}

	if err := s.Put(ctx, planPrefix+name, data); err != nil {
		return Summary{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Put(ctx, summaryPrefix+name, sbuf.Bytes()); err != nil {
		return Summary{}, fmt.Errorf("%s: %w", name, err)
	}
	return sum, nil
}

// LoadFlightPlan replaces fp with the named plan. The plan's ident is set
// to the name if it doesn't already have one.
func LoadFlightPlan(ctx context.Context, s Store, name string, fp *flightplan.FlightPlan) error {
	if err := CheckName(name); err != nil {
		return err
	}
	data, err := s.Get(ctx, planPrefix+name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	r, err := util.NewDecompressingReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := fp.LoadFrom(r); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if fp.Ident() == "" {
		fp.SetIdent(name)
	}
	return nil
}

func DeleteFlightPlan(ctx context.Context, s Store, name string) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := s.Delete(ctx, planPrefix+name); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := s.Delete(ctx, summaryPrefix+name); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// ListFlightPlans returns the names of the stored flight plans.
func ListFlightPlans(ctx context.Context, s Store) ([]string, error) {
	keys, err := s.List(ctx, planPrefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = strings.TrimPrefix(k, planPrefix)
	}
	return names, nil
}

func GetSummary(ctx context.Context, s Store, name string) (Summary, error) {
	b, err := s.Get(ctx, summaryPrefix+name)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", name, err)
	}
	var sum Summary
	if err := util.DecodeObject(bytes.NewReader(b), &sum); err != nil {
		return Summary{}, fmt.Errorf("%s: %w", name, err)
	}
	return sum, nil
}

// Summaries fetches the summaries of all stored flight plans, a few at a
// time. Plans without a summary are reported with just their name.
func Summaries(ctx context.Context, s Store) ([]Summary, error) {
	names, err := ListFlightPlans(ctx, s)
	if err != nil {
		return nil, err
	}

	sums := make([]Summary, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i, name := range names {
		eg.Go(func() error {
			sum, err := GetSummary(ctx, s, name)
			if errors.Is(err, ErrNotFound) {
				sums[i] = Summary{Name: name}
				return nil
			}
			sums[i] = sum
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}
