// Package hl7 holds the parsed message model: segments, fields,
// repetitions, components and subcomponents.
package hl7

import "encoding/json"

// HeaderSegment is the name every message must start with.
const HeaderSegment = "MSH"

// Message is the root of a parsed HL7 v2 message.
type Message struct {
	Segments   []Segment  `json:"segments"`
	Errors     []string   `json:"errors"`
	Delimiters Delimiters `json:"delimiters"`
}

// Segment is one line of the message. Fields[0] is the segment name.
type Segment struct {
	Name     string  `json:"name"`
	Original string  `json:"original"`
	Fields   []Field `json:"fields"`
}

// Field is a single field position; it always has at least one repetition.
type Field struct {
	Original    string       `json:"original"`
	Repetitions []Repetition `json:"repetitions"`
}

// Repetition always has at least one component.
type Repetition struct {
	Original   string      `json:"original"`
	Components []Component `json:"components"`
}

// Component always has at least one subcomponent.
type Component struct {
	Original      string         `json:"original"`
	SubComponents []SubComponent `json:"subComponents"`
}

// SubComponent is a leaf.
type SubComponent struct {
	Original string `json:"original"`
}

// Delimiters used to split a message.
type Delimiters struct {
	Field        byte
	Component    byte
	Repetition   byte
	Escape       byte
	SubComponent byte
}

// DefaultDelimiters are the standard |^~\& characters.
var DefaultDelimiters = Delimiters{
	Field:        '|',
	Component:    '^',
	Repetition:   '~',
	Escape:       '\\',
	SubComponent: '&',
}

// Encoding returns the MSH-2 form of the delimiters, e.g. "^~\&".
func (d Delimiters) Encoding() string {
	return string([]byte{d.Component, d.Repetition, d.Escape, d.SubComponent})
}

func (d Delimiters) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"field":    string(d.Field),
		"encoding": d.Encoding(),
	})
}

// Valid reports whether all five characters are distinct punctuation.
func (d Delimiters) Valid() bool {
	chars := []byte{d.Field, d.Component, d.Repetition, d.Escape, d.SubComponent}
	seen := make(map[byte]bool, len(chars))
	for _, c := range chars {
		if c <= ' ' || c >= 0x7f || isAlnum(c) || seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Header returns the first MSH segment, if any.
func (m *Message) Header() (*Segment, bool) {
	for i := range m.Segments {
		if m.Segments[i].Name == HeaderSegment {
			return &m.Segments[i], true
		}
	}
	return nil, false
}

// FieldNumber maps an internal field index to the logical field number
// used by HL7 dictionaries. The field separator counts as MSH-1, so MSH
// indices are shifted by one; index 0 (the segment name) is always 0.
func (s *Segment) FieldNumber(index int) int {
	if s.Name == HeaderSegment && index > 0 {
		return index + 1
	}
	return index
}

// FieldIndex is the inverse of FieldNumber. MSH-1 has no field of its own
// and reports false.
func (s *Segment) FieldIndex(number int) (int, bool) {
	if number < 0 {
		return 0, false
	}
	if s.Name == HeaderSegment && number > 0 {
		if number == 1 {
			return 0, false
		}
		return number - 1, true
	}
	return number, true
}

// Field returns the field with the given logical number.
func (s *Segment) Field(number int) (*Field, bool) {
	idx, ok := s.FieldIndex(number)
	if !ok || idx >= len(s.Fields) {
		return nil, false
	}
	return &s.Fields[idx], true
}

// Value returns the verbatim text of a logical field, or "".
func (s *Segment) Value(number int) string {
	if f, ok := s.Field(number); ok {
		return f.Original
	}
	return ""
}

// Singleton reports whether the field is one repetition holding one
// component holding one subcomponent.
func (f *Field) Singleton() bool {
	return len(f.Repetitions) == 1 && f.Repetitions[0].Singleton()
}

// Singleton reports whether the repetition is one component with one
// subcomponent.
func (r *Repetition) Singleton() bool {
	return len(r.Components) == 1 && r.Components[0].Singleton()
}

// Singleton reports whether the component has exactly one subcomponent.
func (c *Component) Singleton() bool {
	return len(c.SubComponents) == 1
}

// Component returns the original text of the 0-based component of the
// 0-based repetition, or "".
func (f *Field) Component(rep, comp int) string {
	if rep < 0 || rep >= len(f.Repetitions) {
		return ""
	}
	r := f.Repetitions[rep]
	if comp < 0 || comp >= len(r.Components) {
		return ""
	}
	return r.Components[comp].Original
}
