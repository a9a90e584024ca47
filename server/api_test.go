// server/api_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	av "github.com/mmp/fms/aviation"
	"github.com/mmp/fms/metrics"
	"github.com/mmp/fms/store"

	"github.com/gorilla/websocket"
)

const shuttleRequest = `{"departure": "KJFK", "destination": "KBOS", "route": "KJFK DCT DPK J42 PUT STAR", "flight_level": 240, "knots": 420}`

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	db, err := av.LoadStaticDatabase(context.Background(), nil, "../aviation/testdata/navdata.json")
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts.NavDB, opts.Store = db, st
	if opts.EventPollInterval == 0 {
		opts.EventPollInterval = 10 * time.Millisecond
	}
	s, err := New(opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestParseRouteAPI(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rr := do(t, h, "POST", "/api/v1/route/parse", "application/json", shuttleRequest)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	var plan struct {
		Route string `json:"route"`
		Legs  []struct {
			Ident string `json:"ident"`
		} `json:"legs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatal(err)
	}
	if plan.Route != "DCT DPK J42 PUT" || len(plan.Legs) != 5 {
		t.Errorf("parsed plan %+v", plan)
	}

	// Plain text bodies are just the route.
	if rr := do(t, h, "POST", "/api/v1/route/parse", "text/plain", "KJFK DCT DPK DCT HTO"); rr.Code != http.StatusOK {
		t.Errorf("text body: status %d: %s", rr.Code, rr.Body)
	}

	for _, tc := range []struct {
		name, body string
		status     int
	}{
		{"bad json", `{"route": `, http.StatusBadRequest},
		{"unknown airport", `{"departure": "XXXX", "route": "DCT DPK"}`, http.StatusUnprocessableEntity},
		{"bad route", `{"route": "KJFK DCT NOTAFIX"}`, http.StatusUnprocessableEntity},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, "POST", "/api/v1/route/parse", "application/json", tc.body)
			if rr.Code != tc.status {
				t.Errorf("status %d, want %d: %s", rr.Code, tc.status, rr.Body)
			}
			var e errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil || e.Error == "" {
				t.Errorf("error body %q", rr.Body)
			}
		})
	}
}

func TestPlansAPI(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()

	rr := do(t, h, "PUT", "/api/v1/plans/shuttle", "application/json", shuttleRequest)
	if rr.Code != http.StatusCreated {
		t.Fatalf("put: status %d: %s", rr.Code, rr.Body)
	}
	var sum store.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sum); err != nil || sum.Name != "shuttle" || sum.NumLegs != 5 {
		t.Errorf("summary %+v, %v", sum, err)
	}

	rr = do(t, h, "GET", "/api/v1/plans/shuttle", "", "")
	if rr.Code != http.StatusOK || rr.Header().Get("ETag") != `"`+sum.Revision+`"` {
		t.Fatalf("get: status %d etag %q", rr.Code, rr.Header().Get("ETag"))
	}
	var plan struct {
		Ident  string `json:"ident"`
		Cruise struct {
			FlightLevel int `json:"flight_level"`
		} `json:"cruise"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil || plan.Ident != "shuttle" || plan.Cruise.FlightLevel != 240 {
		t.Errorf("plan %+v, %v", plan, err)
	}

	rr = do(t, h, "GET", "/api/v1/plans/shuttle?format=xml", "", "")
	xml := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(xml, "<PropertyList>") {
		t.Fatalf("xml: status %d: %s", rr.Code, xml)
	}

	// The native form can be stored under another name.
	if rr := do(t, h, "POST", "/api/v1/plans/copies/shuttle", "application/xml", xml); rr.Code != http.StatusCreated {
		t.Errorf("put xml: status %d: %s", rr.Code, rr.Body)
	}
	if rr := do(t, h, "POST", "/api/v1/plans/junk", "application/xml", "this is not a plan"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("put junk: status %d", rr.Code)
	}

	rr = do(t, h, "GET", "/api/v1/plans/copies/shuttle/route", "", "")
	if got := strings.TrimSpace(rr.Body.String()); rr.Code != http.StatusOK || got != "DCT DPK J42 PUT" {
		t.Errorf("route: status %d %q", rr.Code, got)
	}

	rr = do(t, h, "GET", "/api/v1/plans", "", "")
	var sums []store.Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &sums); err != nil || len(sums) != 2 {
		t.Errorf("list: %v, %v", sums, err)
	}

	if rr := do(t, h, "DELETE", "/api/v1/plans/shuttle", "", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete: status %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/api/v1/plans/shuttle", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", rr.Code)
	}
	if rr := do(t, h, "DELETE", "/api/v1/plans/shuttle", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d", rr.Code)
	}
}

func TestEstimatedDuration(t *testing.T) {
	h := newTestServer(t, Options{}).Handler()
	const req = `{"departure": "KJFK", "route": "KJFK DCT DPK DCT PUT", "flight_level": 240, "knots": 420}`

	duration := func(rr *httptest.ResponseRecorder) int {
		t.Helper()
		var plan struct {
			Duration int `json:"estimated_duration_minutes"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
			t.Fatalf("%v: %s", err, rr.Body)
		}
		return plan.Duration
	}

	rr := do(t, h, "POST", "/api/v1/route/parse", "application/json", req)
	if rr.Code != http.StatusOK {
		t.Fatalf("parse: status %d: %s", rr.Code, rr.Body)
	}
	if d := duration(rr); d <= 0 {
		t.Errorf("parsed route duration %d", d)
	}

	if rr := do(t, h, "PUT", "/api/v1/plans/dpk-put", "application/json", req); rr.Code != http.StatusCreated {
		t.Fatalf("put: status %d: %s", rr.Code, rr.Body)
	}
	if d := duration(do(t, h, "GET", "/api/v1/plans/dpk-put", "", "")); d <= 0 {
		t.Errorf("stored plan duration %d", d)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New(false)
	s := newTestServer(t, Options{Metrics: m})
	h := s.Handler()

	if rr := do(t, h, "GET", "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz: status %d", rr.Code)
	}
	do(t, h, "POST", "/api/v1/route/parse", "application/json", shuttleRequest)
	do(t, h, "PUT", "/api/v1/plans/shuttle", "application/json", shuttleRequest)

	rr := do(t, h, "GET", "/metrics", "", "")
	body := rr.Body.String()
	for _, want := range []string{
		`fms_http_requests_total{method="POST",route="/api/v1/route/parse",status="2xx"} 1`,
		`fms_store_operations_total{backend="fs",op="put",result="ok"} 2`,
		`fms_flightplans_open 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}

	rr = do(t, h, "GET", "/sup", "", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status page: %d", rr.Code)
	}
	for _, want := range []string{"shuttle", "CPU usage: ", "Running goroutines: "} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("status page missing %q", want)
		}
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 1}).Handler()

	if rr := do(t, h, "GET", "/api/v1/plans", "", ""); rr.Code != http.StatusOK {
		t.Errorf("first request: status %d", rr.Code)
	}
	if rr := do(t, h, "GET", "/api/v1/plans", "", ""); rr.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status %d", rr.Code)
	}
	// Health checks aren't limited.
	if rr := do(t, h, "GET", "/healthz", "", ""); rr.Code != http.StatusOK {
		t.Errorf("healthz: status %d", rr.Code)
	}
}

func TestEventsWebsocket(t *testing.T) {
	s := newTestServer(t, Options{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events?plan=shuttle"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello subscribedMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "subscribed" || hello.Plan != "shuttle" {
		t.Fatalf("hello %+v, %v", hello, err)
	}

	put := func(name string) {
		resp, err := http.Post(ts.URL+"/api/v1/plans/"+name, "application/json", strings.NewReader(shuttleRequest))
		if err != nil {
			t.Fatal(err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	put("other")
	put("shuttle")

	var types []string
	for {
		var ev struct {
			Type string `json:"type"`
			Plan string `json:"plan"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("ReadJSON after %v: %v", types, err)
		}
		if ev.Plan != "shuttle" {
			t.Errorf("event for plan %q", ev.Plan)
		}
		types = append(types, ev.Type)
		if ev.Type == "saved" {
			break
		}
	}
	if len(types) < 2 || types[len(types)-2] != "waypoints_changed" {
		t.Errorf("events %v", types)
	}
}
