// Package selection models the structural address of a message element and
// the coordinator that shares the current one between observers.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxDepth is the number of addressable levels below the message.
const MaxDepth = 5

// Levels, in path order.
const (
	LevelSegment = iota
	LevelField
	LevelRepetition
	LevelComponent
	LevelSubComponent
)

var ErrInvalidPath = errors.New("invalid selection path")

var levelNames = [MaxDepth]string{"segment", "field", "repetition", "component", "subComponent"}
var anchorTags = [MaxDepth]string{"s", "f", "r", "c", "sc"}

// Path addresses a segment, field, repetition, component or subcomponent by
// 0-based indices. A deeper index is only present when every shallower one
// is. Field indices are positions in Segment.Fields, not logical numbers.
// Path is a comparable value; the zero Path is empty and addresses nothing.
type Path struct {
	depth int
	idx   [MaxDepth]int
}

// Path constructors panic on negative indices; use NewPath for untrusted input.
func Segment(s int) Path                   { return mustPath(s) }
func Field(s, f int) Path                  { return mustPath(s, f) }
func Repetition(s, f, r int) Path          { return mustPath(s, f, r) }
func Component(s, f, r, c int) Path        { return mustPath(s, f, r, c) }
func SubComponent(s, f, r, c, sc int) Path { return mustPath(s, f, r, c, sc) }

func mustPath(indices ...int) Path {
	p, err := NewPath(indices...)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPath builds a path from 1 to MaxDepth non-negative indices.
func NewPath(indices ...int) (Path, error) {
	if len(indices) == 0 || len(indices) > MaxDepth {
		return Path{}, fmt.Errorf("%w: depth %d", ErrInvalidPath, len(indices))
	}
	var p Path
	for i, v := range indices {
		if v < 0 {
			return Path{}, fmt.Errorf("%w: negative %s index", ErrInvalidPath, levelNames[i])
		}
		p.idx[i] = v
	}
	p.depth = len(indices)
	return p, nil
}

// ParsePath reads the dotted form produced by String, e.g. "1.3.0".
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(s, ".")
	indices := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
		}
		indices[i] = n
	}
	return NewPath(indices...)
}

// Depth is the number of present indices, 0 for the empty path.
func (p Path) Depth() int { return p.depth }

func (p Path) IsZero() bool { return p.depth == 0 }

// Index returns the index at a level, if present.
func (p Path) Index(level int) (int, bool) {
	if level < 0 || level >= p.depth {
		return 0, false
	}
	return p.idx[level], true
}

func (p Path) Segment() (int, bool)      { return p.Index(LevelSegment) }
func (p Path) Field() (int, bool)        { return p.Index(LevelField) }
func (p Path) Repetition() (int, bool)   { return p.Index(LevelRepetition) }
func (p Path) Component() (int, bool)    { return p.Index(LevelComponent) }
func (p Path) SubComponent() (int, bool) { return p.Index(LevelSubComponent) }

// Indices returns a copy of the present indices.
func (p Path) Indices() []int {
	return append([]int(nil), p.idx[:p.depth]...)
}

// Child extends the path by one level.
func (p Path) Child(i int) (Path, error) {
	if p.depth >= MaxDepth || i < 0 {
		return Path{}, fmt.Errorf("%w: cannot extend %s with %d", ErrInvalidPath, p, i)
	}
	p.idx[p.depth] = i
	p.depth++
	return p, nil
}

// Parent drops the deepest index. The parent of a segment path is empty.
func (p Path) Parent() Path {
	if p.depth == 0 {
		return p
	}
	p.depth--
	p.idx[p.depth] = 0
	return p
}

// MatchLevel compares this path, as a tree node address, with a selected
// path. It returns the node's own depth when the node is the selection or
// one of its ancestors, and 0 when any shared index differs or the node is
// deeper than the selection.
func (p Path) MatchLevel(sel Path) int {
	if p.depth == 0 || p.depth > sel.depth {
		return 0
	}
	for i := 0; i < p.depth; i++ {
		if p.idx[i] != sel.idx[i] {
			return 0
		}
	}
	return p.depth
}

func (p Path) String() string {
	parts := make([]string, p.depth)
	for i := 0; i < p.depth; i++ {
		parts[i] = strconv.Itoa(p.idx[i])
	}
	return strings.Join(parts, ".")
}

// Anchor renders the element id used for the path in rendered output,
// e.g. "s-1-f-3-r-0".
func (p Path) Anchor() string {
	var b strings.Builder
	for i := 0; i < p.depth; i++ {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(anchorTags[i])
		b.WriteByte('-')
		b.WriteString(strconv.Itoa(p.idx[i]))
	}
	return b.String()
}

type pathJSON struct {
	Segment      *int `json:"segment,omitempty"`
	Field        *int `json:"field,omitempty"`
	Repetition   *int `json:"repetition,omitempty"`
	Component    *int `json:"component,omitempty"`
	SubComponent *int `json:"subComponent,omitempty"`
}

func (p Path) MarshalJSON() ([]byte, error) {
	var out pathJSON
	ptrs := out.slots()
	for i := 0; i < p.depth; i++ {
		v := p.idx[i]
		*ptrs[i] = &v
	}
	return json.Marshal(out)
}

func (p *Path) UnmarshalJSON(data []byte) error {
	var in pathJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var indices []int
	for i, ptr := range in.slots() {
		if *ptr == nil {
			slots := in.slots()
			for j := i + 1; j < MaxDepth; j++ {
				if *slots[j] != nil {
					return fmt.Errorf("%w: %s without %s", ErrInvalidPath, levelNames[j], levelNames[i])
				}
			}
			break
		}
		indices = append(indices, **ptr)
	}
	np, err := NewPath(indices...)
	if err != nil {
		return err
	}
	*p = np
	return nil
}

func (j *pathJSON) slots() [MaxDepth]**int {
	return [MaxDepth]**int{&j.Segment, &j.Field, &j.Repetition, &j.Component, &j.SubComponent}
}
