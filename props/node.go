// props/node.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package props provides a small hierarchical property tree: named nodes
// holding string values and ordered children, with typed accessors that
// take slash-separated paths. It is the in-memory form of the native
// flight plan file format.
package props

import (
	"strconv"
	"strings"
)

type Node struct {
	Name     string
	Value    string
	children []*Node
}

func New(name string) *Node {
	return &Node{Name: name}
}

// Child returns the first child with the given name or nil if there is
// none.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Children returns all children with the given name, in document order.
func (n *Node) Children(name string) []*Node {
	if n == nil {
		return nil
	}
	var r []*Node
	for _, c := range n.children {
		if c.Name == name {
			r = append(r, c)
		}
	}
	return r
}

func (n *Node) AllChildren() []*Node {
	if n == nil {
		return nil
	}
	return n.children
}

// AddChild appends a new child with the given name and returns it.
func (n *Node) AddChild(name string) *Node {
	c := New(name)
	n.children = append(n.children, c)
	return c
}

// Lookup follows a slash-separated path of child names and returns the
// node it ends at, or nil.
func (n *Node) Lookup(path string) *Node {
	for _, name := range strings.Split(path, "/") {
		if n = n.Child(name); n == nil {
			return nil
		}
	}
	return n
}

func (n *Node) HasChild(path string) bool {
	return n.Lookup(path) != nil
}

// HasValue reports whether the node at path exists and has a non-empty
// value.
func (n *Node) HasValue(path string) bool {
	c := n.Lookup(path)
	return c != nil && c.Value != ""
}

func (n *Node) findOrCreate(path string) *Node {
	for _, name := range strings.Split(path, "/") {
		c := n.Child(name)
		if c == nil {
			c = n.AddChild(name)
		}
		n = c
	}
	return n
}

func (n *Node) String(path string, def string) string {
	if c := n.Lookup(path); c != nil {
		return c.Value
	}
	return def
}

func (n *Node) Int(path string, def int) int {
	if c := n.Lookup(path); c != nil {
		if v, err := strconv.Atoi(c.Value); err == nil {
			return v
		}
		// Tolerate "12.0" for integer-valued properties.
		if f, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return int(f)
		}
	}
	return def
}

func (n *Node) Float(path string, def float64) float64 {
	if c := n.Lookup(path); c != nil {
		if v, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return v
		}
	}
	return def
}

func (n *Node) Bool(path string, def bool) bool {
	if c := n.Lookup(path); c != nil {
		switch strings.ToLower(c.Value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no", "":
			return false
		}
	}
	return def
}

func (n *Node) SetString(path string, v string) {
	n.findOrCreate(path).Value = v
}

func (n *Node) SetInt(path string, v int) {
	n.findOrCreate(path).Value = strconv.Itoa(v)
}

func (n *Node) SetFloat(path string, v float64) {
	n.findOrCreate(path).Value = strconv.FormatFloat(v, 'f', -1, 64)
}

// SetFloat32 stores v with the shortest representation that reads back
// as the same float32.
func (n *Node) SetFloat32(path string, v float32) {
	n.findOrCreate(path).Value = strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func (n *Node) SetBool(path string, v bool) {
	n.findOrCreate(path).Value = strconv.FormatBool(v)
}
