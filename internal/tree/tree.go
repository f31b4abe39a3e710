// Package tree builds the navigable view of a parsed message and keeps its
// selected/expanded flags in step with a selection.
package tree

import (
	"fmt"

	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/format"
	"github.com/dgallion1/hl7lens/internal/hl7"
	"github.com/dgallion1/hl7lens/internal/selection"
)

const (
	fallbackRootLabel = "HL7 Message"
	noDescription     = "No description available."
)

// Node is one entry of the tree. The root has no path; every other node's
// path addresses the message element it was built from. Empty marks a leaf
// whose element has no text.
type Node struct {
	Label    string          `json:"label"`
	Path     *selection.Path `json:"path,omitempty"`
	Anchor   string          `json:"anchor,omitempty"`
	Level    int             `json:"level"`
	Expanded bool            `json:"expanded"`
	Selected bool            `json:"selected"`
	Empty    bool            `json:"empty,omitempty"`
	Children []*Node         `json:"children"`
}

type Definitions interface {
	VersionOf(msg *hl7.Message) string
	SegmentDescription(segment, version string) (string, bool)
	FieldDefinition(segment string, number int, version string) (definition.Field, bool)
}

type Builder struct {
	defs Definitions
}

func NewBuilder(defs Definitions) *Builder {
	return &Builder{defs: defs}
}

// Build returns a fresh tree for msg with only the root expanded and nothing
// selected.
func (b *Builder) Build(msg *hl7.Message) *Node {
	root := &Node{Label: fallbackRootLabel, Expanded: true, Children: []*Node{}}
	if msg == nil {
		return root
	}
	if msh, ok := msg.Header(); ok {
		if f, ok := msh.Field(9); ok {
			if t := f.Component(0, 0); t != "" {
				root.Label = t
			}
		}
	}

	version := b.defs.VersionOf(msg)
	for i := range msg.Segments {
		root.Children = append(root.Children, b.segment(&msg.Segments[i], i, version))
	}
	return root
}

func (b *Builder) segment(seg *hl7.Segment, s int, version string) *Node {
	desc, ok := b.defs.SegmentDescription(seg.Name, version)
	if !ok {
		desc = noDescription
	}
	n := newNode(fmt.Sprintf("%s: %s", seg.Name, desc), selection.Segment(s), 1)
	for i := range seg.Fields {
		n.Children = append(n.Children, b.field(seg, i, selection.Field(s, i), version))
	}
	return n
}

func (b *Builder) field(seg *hl7.Segment, i int, p selection.Path, version string) *Node {
	f := &seg.Fields[i]
	number := seg.FieldNumber(i)
	def, _ := b.defs.FieldDefinition(seg.Name, number, version)

	label := fmt.Sprintf("%s-%d: %s", seg.Name, number, def.Desc)
	n := newNode(label, p, 2)
	if f.Singleton() {
		n.Label += " - " + format.Value(f.Original)
		n.Empty = f.Original == ""
		return n
	}
	for r := range f.Repetitions {
		n.Children = append(n.Children, repetition(&f.Repetitions[r], r, p, def))
	}
	return n
}

func repetition(rep *hl7.Repetition, r int, parent selection.Path, def definition.Field) *Node {
	p := child(parent, r)
	n := newNode(fmt.Sprintf("Repetition %d", r+1), p, 3)
	if rep.Singleton() {
		n.Label += ": " + format.Value(rep.Original)
		n.Empty = rep.Original == ""
		return n
	}
	for c := range rep.Components {
		n.Children = append(n.Children, component(&rep.Components[c], c, p, def))
	}
	return n
}

func component(comp *hl7.Component, c int, parent selection.Path, def definition.Field) *Node {
	p := child(parent, c)
	desc := "Component"
	if c < len(def.Comp) && def.Comp[c].Desc != "" {
		desc = def.Comp[c].Desc
	}
	n := newNode(fmt.Sprintf("%d: %s", c+1, desc), p, 4)
	if comp.Singleton() {
		n.Label += " - " + format.Value(comp.Original)
		n.Empty = comp.Original == ""
		return n
	}
	for sc := range comp.SubComponents {
		sub := comp.SubComponents[sc]
		leaf := newNode(fmt.Sprintf("Sub-Component %d: %s", sc+1, format.Value(sub.Original)), child(p, sc), 5)
		leaf.Empty = sub.Original == ""
		n.Children = append(n.Children, leaf)
	}
	return n
}

func newNode(label string, p selection.Path, level int) *Node {
	return &Node{Label: label, Path: &p, Anchor: p.Anchor(), Level: level, Children: []*Node{}}
}

// child extends a path built by this package; depth never exceeds the
// five levels a message has.
func child(p selection.Path, i int) selection.Path {
	c, err := p.Child(i)
	if err != nil {
		panic(err)
	}
	return c
}
