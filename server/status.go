// server/status.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"html/template"
	"log/slog"
	gomath "math"
	"net/http"
	"runtime"
	"time"

	"github.com/mmp/fms/store"

	"github.com/shirou/gopsutil/v3/cpu"
)

type serverStats struct {
	Uptime           time.Duration
	AllocMemory      uint64
	TotalAllocMemory uint64
	SysMemory        uint64
	NumGC            uint32
	NumGoRoutines    int
	CPUUsage         int
	Subscribers      int

	Plans []store.Summary
}

var statusTemplate = template.Must(template.New("").Parse(`
<!DOCTYPE html>
<html>
<head>
<title>fms status</title>
</head>
<style>
table {
  border-collapse: collapse;
  width: 100%;
}

th, td {
  border: 1px solid #dddddd;
  padding: 8px;
  text-align: left;
}

tr:nth-child(even) {
  background-color: #f2f2f2;
}
</style>
<body>
<h1>Server Status</h1>
<ul>
  <li>Uptime: {{.Uptime}}</li>
  <li>Allocated memory: {{.AllocMemory}} MB</li>
  <li>Total allocated memory: {{.TotalAllocMemory}} MB</li>
  <li>System memory: {{.SysMemory}} MB</li>
  <li>Garbage collection passes: {{.NumGC}}</li>
  <li>Running goroutines: {{.NumGoRoutines}}</li>
  <li>CPU usage: {{.CPUUsage}}%</li>
  <li>Event subscribers: {{.Subscribers}}</li>
</ul>

<h1>Flight Plans</h1>
<table>
  <tr>
  <th>Name</th>
  <th>Departure</th>
  <th>Destination</th>
  <th>Legs</th>
  <th>Distance (nm)</th>
  <th>Route</th>
  <th>Saved</th>
  </tr>
{{range .Plans}}
  <tr>
  <td>{{.Name}}</td>
  <td>{{.Departure}}</td>
  <td>{{.Destination}}</td>
  <td>{{.NumLegs}}</td>
  <td>{{printf "%.1f" .TotalDistanceNM}}</td>
  <td><tt>{{.Route}}</tt></td>
  <td>{{.Saved.Format "2006-01-02 15:04:05Z"}}</td>
  </tr>
{{end}}
</table>

</body>
</html>
`))

func (s *Server) statusPage(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := serverStats{
		Uptime:           time.Since(s.startTime).Round(time.Second),
		AllocMemory:      m.Alloc / (1024 * 1024),
		TotalAllocMemory: m.TotalAlloc / (1024 * 1024),
		SysMemory:        m.Sys / (1024 * 1024),
		NumGC:            m.NumGC,
		NumGoRoutines:    runtime.NumGoroutine(),
		Subscribers:      s.events.NumSubscribers(),
	}
	// Usage since the previous call; the first call measures from startup.
	if usage, err := cpu.PercentWithContext(r.Context(), 0, false); err != nil {
		s.lg.Warn("unable to get CPU usage", slog.Any("error", err))
	} else if len(usage) > 0 {
		stats.CPUUsage = int(gomath.Round(usage[0]))
	}

	var err error
	if stats.Plans, err = store.Summaries(r.Context(), s.store); err != nil {
		s.lg.Warn("unable to list flight plans for status", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusTemplate.Execute(w, stats); err != nil {
		s.lg.Errorf("unable to execute status template: %v", err)
	}
	s.lg.Infof("%s: served status request", r.URL.String())
}
