// server/ws.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package server

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
)

type subscribedMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Plan string `json:"plan,omitempty"`
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin) {
		return true
	}
	// Otherwise only same-host requests.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// streamEvents sends flight plan change events to a websocket client as
// JSON messages. With ?plan=name, only that plan's events are sent.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.lg.Info("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	plan := r.URL.Query().Get("plan")
	lg := s.lg.With(slog.String("subscriber", id), slog.String("remote", r.RemoteAddr))

	sub := s.events.Subscribe("websocket "+id, plan)
	defer sub.Unsubscribe()
	if s.metrics != nil {
		s.metrics.EventSubscribers.Inc()
		defer s.metrics.EventSubscribers.Dec()
	}
	lg.Info("event subscriber connected", slog.String("plan", plan))

	// Clients don't send anything but control messages; reading is needed
	// to process them and to notice when the connection goes away.
	conn.SetReadLimit(1024)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(v any) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}
	if err := write(subscribedMessage{Type: "subscribed", ID: id, Plan: plan}); err != nil {
		return
	}

	poll := time.NewTicker(s.opts.EventPollInterval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return

		case <-closed:
			lg.Info("event subscriber disconnected")
			return

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}

		case <-poll.C:
			for _, ev := range sub.Get() {
				if err := write(ev); err != nil {
					lg.Info("event write failed", slog.Any("error", err))
					return
				}
			}
		}
	}
}
