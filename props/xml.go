// props/xml.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package props

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmp/fms/util"

	xmlparser "github.com/tamerh/xml-stream-parser"
)

const RootElement = "PropertyList"

var ErrNoPropertyList = errors.New("no <" + RootElement + "> element found")

var entityReplacer = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'",
	"&#34;", `"`, "&#39;", "'", "&#x9;", "\t", "&#xA;", "\n", "&#xD;", "\r", "&amp;", "&")

// ReadXML parses the first <PropertyList> element in r into a Node tree.
// Element order is preserved among siblings with the same name.
func ReadXML(r io.Reader) (*Node, error) {
	parser := xmlparser.NewXMLParser(bufio.NewReaderSize(r, 65536), RootElement)

	var root *Node
	for elt := range parser.Stream() {
		if elt.Err != nil {
			return nil, elt.Err
		}
		if root == nil {
			root = fromElement(*elt)
		}
	}
	if root == nil {
		return nil, ErrNoPropertyList
	}
	return root, nil
}

func fromElement(e xmlparser.XMLElement) *Node {
	n := New(e.Name)
	n.Value = strings.TrimSpace(e.InnerText)
	if strings.Contains(n.Value, "&") {
		n.Value = entityReplacer.Replace(n.Value)
	}

	// The parser groups children by element name; visit the names in
	// sorted order so the tree is deterministic.
	for _, name := range util.SortedMapKeys(e.Childs) {
		for _, c := range e.Childs[name] {
			n.children = append(n.children, fromElement(c))
		}
	}
	return n
}

// WriteXML writes n as an XML document with n as the root element.
func WriteXML(w io.Writer, n *Node) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := writeNode(enc, n); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func writeNode(enc *xml.Encoder, n *Node) error {
	if n.Name == "" || strings.ContainsAny(n.Name, " <>&/") {
		return fmt.Errorf("%q: invalid property name", n.Name)
	}
	start := xml.StartElement{Name: xml.Name{Local: n.Name}}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	if len(n.children) == 0 {
		if err := enc.EncodeToken(xml.CharData(n.Value)); err != nil {
			return err
		}
	} else {
		for _, c := range n.children {
			if err := writeNode(enc, c); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}
