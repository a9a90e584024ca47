// server/api.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/flightplan"
	"github.com/mmp/fms/store"

	"github.com/gorilla/mux"
)

const maxBodyBytes = 4 << 20

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Status: status, Error: err.Error()})
}

// storeErrorStatus maps errors from the store to HTTP statuses.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

// wantsXML reports whether the client asked for the native XML form,
// either with format=xml or through the Accept header.
func wantsXML(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "xml"
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/xml") || strings.Contains(accept, "text/xml")
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

///////////////////////////////////////////////////////////////////////////
// Route parsing

// routeRequest describes a flight plan by its ICAO route string. Plain
// text request bodies are taken to be just the route.
type routeRequest struct {
	Route       string  `json:"route"`
	Ident       string  `json:"ident,omitempty"`
	Departure   string  `json:"departure,omitempty"`
	Destination string  `json:"destination,omitempty"`
	IsRoute     bool    `json:"is_route,omitempty"`
	FlightLevel int     `json:"flight_level,omitempty"`
	Mach        float32 `json:"mach,omitempty"`
	Knots       int     `json:"knots,omitempty"`
}

func readRouteRequest(w http.ResponseWriter, r *http.Request) (routeRequest, error) {
	var req routeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if isJSON(r) {
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid request: %w", err)
		}
		return req, nil
	}
	b, err := io.ReadAll(body)
	req.Route = string(b)
	return req, err
}

// apply sets up fp from the request. The returned error is the
// client's fault: unknown airports or a route that doesn't parse. The
// request is first tried on a scratch plan so that fp's delegates hear
// nothing from a failed request.
func (s *Server) apply(req routeRequest, fp *flightplan.FlightPlan) error {
	var dep, dest *av.Airport
	if req.Departure != "" {
		if dep = s.db.FindAirport(strings.ToUpper(req.Departure)); dep == nil {
			return fmt.Errorf("%s: %w", req.Departure, av.ErrUnknownAirport)
		}
	}
	if req.Destination != "" {
		if dest = s.db.FindAirport(strings.ToUpper(req.Destination)); dest == nil {
			return fmt.Errorf("%s: %w", req.Destination, av.ErrUnknownAirport)
		}
	}

	setup := func(fp *flightplan.FlightPlan) (err error) {
		fp.Batch(func() {
			if dep != nil {
				fp.SetDeparture(dep)
			}
			if dest != nil {
				fp.SetDestination(dest)
			}
			if req.FlightLevel > 0 {
				fp.SetCruiseFlightLevel(req.FlightLevel)
			}
			if req.Mach > 0 {
				fp.SetCruiseSpeedMach(req.Mach)
			} else if req.Knots > 0 {
				fp.SetCruiseSpeedKnots(req.Knots)
			}
			err = fp.ParseICAORoute(req.Route)
		})
		if err == nil && fp.CruiseFlightLevel() > 0 && (req.Mach > 0 || req.Knots > 0) {
			// The route distance is only current once the batch has been
			// flushed.
			fp.ComputeDurationMinutes()
		}
		return
	}

	scratch := flightplan.New(s.db, nil, nil)
	if fp.IsRoute() {
		scratch = flightplan.NewRoute(s.db, nil, nil)
	}
	if err := setup(scratch); err != nil {
		return err
	}
	return setup(fp)
}

func (s *Server) parseRoute(w http.ResponseWriter, r *http.Request) {
	req, err := readRouteRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fp := s.newFlightPlan(req.Ident, req.IsRoute)
	defer fp.Close()

	if err := s.apply(req, fp); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

///////////////////////////////////////////////////////////////////////////
// Stored plans

func (s *Server) listPlans(w http.ResponseWriter, r *http.Request) {
	sums, err := store.Summaries(r.Context(), s.store)
	if err != nil {
		s.lg.Error("unable to list flight plans", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if sums == nil {
		sums = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, sums)
}

// putPlan stores a flight plan given either as native XML or as a JSON
// route request.
func (s *Server) putPlan(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := store.CheckName(name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var fp *flightplan.FlightPlan
	if isJSON(r) {
		req, err := readRouteRequest(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		fp = s.newFlightPlan(name, req.IsRoute)
		defer fp.Close()
		if err := s.apply(req, fp); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	} else {
		fp = s.newFlightPlan(name, r.URL.Query().Get("route") == "true")
		defer fp.Close()
		if err := fp.LoadFrom(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	sum, err := store.SaveFlightPlan(r.Context(), s.store, name, fp)
	if err != nil {
		s.lg.Error("unable to store flight plan", slog.String("name", name), slog.Any("error", err))
		writeError(w, storeErrorStatus(err), err)
		return
	}
	s.events.Post(Event{Type: SavedEvent, Plan: name, Revision: sum.Revision})
	writeJSON(w, http.StatusCreated, sum)
}

// loadPlan reads a stored plan without attaching the server's delegates;
// reading a plan isn't a change to report.
func (s *Server) loadPlan(w http.ResponseWriter, r *http.Request) (*flightplan.FlightPlan, store.Summary, bool) {
	name := mux.Vars(r)["name"]
	if err := store.CheckName(name); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, store.Summary{}, false
	}

	sum, err := store.GetSummary(r.Context(), s.store, name)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, storeErrorStatus(err), err)
		return nil, store.Summary{}, false
	}

	var fp *flightplan.FlightPlan
	if sum.IsRoute {
		fp = flightplan.NewRoute(s.db, nil, s.lg)
	} else {
		fp = flightplan.New(s.db, nil, s.lg)
	}
	if err := store.LoadFlightPlan(r.Context(), s.store, name, fp); err != nil {
		writeError(w, storeErrorStatus(err), err)
		return nil, store.Summary{}, false
	}
	return fp, sum, true
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	fp, sum, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	if sum.Revision != "" {
		w.Header().Set("ETag", `"`+sum.Revision+`"`)
	}

	if wantsXML(r) {
		w.Header().Set("Content-Type", "application/xml")
		if err := fp.SaveTo(w); err != nil {
			s.lg.Warn("error writing flight plan", slog.Any("error", err))
		}
		return
	}
	writeJSON(w, http.StatusOK, fp)
}

func (s *Server) getRoute(w http.ResponseWriter, r *http.Request) {
	fp, _, ok := s.loadPlan(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, fp.ICAORouteString()+"\n")
}

func (s *Server) deletePlan(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := store.DeleteFlightPlan(r.Context(), s.store, name); err != nil {
		writeError(w, storeErrorStatus(err), err)
		return
	}
	s.events.Post(Event{Type: DeletedEvent, Plan: name})
	w.WriteHeader(http.StatusNoContent)
}
