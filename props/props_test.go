// props/props_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package props

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestAccessors(t *testing.T) {
	n := New(RootElement)
	n.SetInt("version", 2)
	n.SetString("departure/airport", "EGLL")
	n.SetString("departure/runway", "27R")
	n.SetFloat("cruise/mach", 0.82)
	n.SetBool("is-route", true)

	if v := n.Int("version", 1); v != 2 {
		t.Errorf("version %d", v)
	}
	if s := n.String("departure/airport", ""); s != "EGLL" {
		t.Errorf("departure/airport %q", s)
	}
	if f := n.Float("cruise/mach", 0); f != 0.82 {
		t.Errorf("cruise/mach %f", f)
	}
	if !n.Bool("is-route", false) {
		t.Errorf("is-route should be true")
	}
	if s := n.String("destination/airport", "none"); s != "none" {
		t.Errorf("missing path should give default, got %q", s)
	}
	if n.HasChild("destination") {
		t.Errorf("unexpected destination node")
	}
	if len(n.Child("departure").AllChildren()) != 2 {
		t.Errorf("expected departure to have two children")
	}

	// Setting an existing path replaces rather than appends.
	n.SetString("departure/runway", "09L")
	if c := n.Child("departure").Children("runway"); len(c) != 1 || c[0].Value != "09L" {
		t.Errorf("unexpected runway children %v", c)
	}

	var nilNode *Node
	if nilNode.Child("x") != nil || nilNode.HasChild("x") || nilNode.Int("x", 7) != 7 {
		t.Errorf("nil node accessors misbehaved")
	}
}

func TestXMLRoundTrip(t *testing.T) {
	n := New(RootElement)
	n.SetInt("version", 2)
	n.SetString("callsign", "BAW123")
	n.SetString("remarks", "a < b & c")
	route := n.AddChild("route")
	for _, id := range []string{"DVR", "KONAN", "KOK"} {
		wp := route.AddChild("wp")
		wp.SetString("type", "navaid")
		wp.SetString("ident", id)
	}

	var buf bytes.Buffer
	if err := WriteXML(&buf, n); err != nil {
		t.Fatalf("WriteXML: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<?xml") {
		t.Errorf("missing XML header: %q", buf.String())
	}

	r, err := ReadXML(&buf)
	if err != nil {
		t.Fatalf("ReadXML: %v", err)
	}
	if r.Int("version", 0) != 2 || r.String("callsign", "") != "BAW123" {
		t.Errorf("header mismatch: %d %q", r.Int("version", 0), r.String("callsign", ""))
	}
	if s := r.String("remarks", ""); s != "a < b & c" {
		t.Errorf("remarks %q", s)
	}
	var ids []string
	for _, wp := range r.Child("route").Children("wp") {
		ids = append(ids, wp.String("ident", ""))
	}
	if strings.Join(ids, " ") != "DVR KONAN KOK" {
		t.Errorf("waypoint order %v", ids)
	}
}

func TestReadXMLNoRoot(t *testing.T) {
	_, err := ReadXML(strings.NewReader("EGLL\nDVR\nLFPG\n"))
	if !errors.Is(err, ErrNoPropertyList) {
		t.Errorf("expected ErrNoPropertyList, got %v", err)
	}
}

func TestWriteXMLInvalidName(t *testing.T) {
	n := New(RootElement)
	n.AddChild("bad name")
	if err := WriteXML(&bytes.Buffer{}, n); err == nil {
		t.Errorf("expected error for invalid element name")
	}
}
