package selection

import (
	"encoding/json"
	"fmt"

	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/hl7"
)

// Target holds references to the elements a path addresses. They are derived
// from the message for convenience; the path stays authoritative.
type Target struct {
	Path         Path
	Segment      *hl7.Segment
	Field        *hl7.Field
	Repetition   *hl7.Repetition
	Component    *hl7.Component
	SubComponent *hl7.SubComponent
	// OK is false when any index of the path is out of range for the message.
	OK bool
}

// Resolve dereferences path against msg. Out-of-range indices leave the
// deeper references nil and OK false.
func Resolve(msg *hl7.Message, path Path) Target {
	t := Target{Path: path}
	if msg == nil || path.IsZero() {
		return t
	}

	s, _ := path.Segment()
	if s >= len(msg.Segments) {
		return t
	}
	t.Segment = &msg.Segments[s]

	f, ok := path.Field()
	if !ok {
		t.OK = true
		return t
	}
	if f >= len(t.Segment.Fields) {
		return t
	}
	t.Field = &t.Segment.Fields[f]

	r, ok := path.Repetition()
	if !ok {
		t.OK = true
		return t
	}
	if r >= len(t.Field.Repetitions) {
		return t
	}
	t.Repetition = &t.Field.Repetitions[r]

	c, ok := path.Component()
	if !ok {
		t.OK = true
		return t
	}
	if c >= len(t.Repetition.Components) {
		return t
	}
	t.Component = &t.Repetition.Components[c]

	sc, ok := path.SubComponent()
	if !ok {
		t.OK = true
		return t
	}
	if sc >= len(t.Component.SubComponents) {
		return t
	}
	t.SubComponent = &t.Component.SubComponents[sc]
	t.OK = true
	return t
}

// Value returns the verbatim text of the deepest addressed element.
func (t Target) Value() string {
	switch {
	case !t.OK:
		return ""
	case t.SubComponent != nil:
		return t.SubComponent.Original
	case t.Component != nil:
		return t.Component.Original
	case t.Repetition != nil:
		return t.Repetition.Original
	case t.Field != nil:
		return t.Field.Original
	case t.Segment != nil:
		return t.Segment.Original
	}
	return ""
}

// MarshalJSON renders a summary rather than the referenced subtrees.
func (t Target) MarshalJSON() ([]byte, error) {
	out := struct {
		Path    Path   `json:"path"`
		Anchor  string `json:"anchor"`
		OK      bool   `json:"ok"`
		Segment string `json:"segment,omitempty"`
		Value   string `json:"value"`
	}{Path: t.Path, Anchor: t.Path.Anchor(), OK: t.OK, Value: t.Value()}
	if t.Segment != nil {
		out.Segment = t.Segment.Name
	}
	return json.Marshal(out)
}

// Definitions is the subset of the registry Describe needs.
type Definitions interface {
	VersionOf(msg *hl7.Message) string
	SegmentDescription(segment, version string) (string, bool)
	FieldDefinition(segment string, number int, version string) (definition.Field, bool)
}

// Description explains the selected element using the message's dictionary.
type Description struct {
	Version      string                `json:"version"`
	Segment      string                `json:"segment,omitempty"`
	FieldName    string                `json:"fieldName,omitempty"`
	Field        *definition.Field     `json:"field,omitempty"`
	Component    *definition.Component `json:"component,omitempty"`
	SubComponent string                `json:"subComponent,omitempty"`
}

// Describe looks up the segment, field and component definitions for path.
// Missing definitions leave the corresponding members empty.
func Describe(defs Definitions, msg *hl7.Message, path Path) Description {
	t := Resolve(msg, path)
	if !t.OK {
		return Description{}
	}
	d := Description{Version: defs.VersionOf(msg)}
	seg := t.Segment
	if desc, ok := defs.SegmentDescription(seg.Name, d.Version); ok {
		d.Segment = desc
	}
	if t.Field == nil {
		return d
	}

	f, _ := path.Field()
	number := seg.FieldNumber(f)
	d.FieldName = fmt.Sprintf("%s-%d", seg.Name, number)
	if def, ok := defs.FieldDefinition(seg.Name, number, d.Version); ok {
		d.Field = &def
		if c, ok := path.Component(); ok && c < len(def.Comp) {
			comp := def.Comp[c]
			d.Component = &comp
		}
	}
	if sc, ok := path.SubComponent(); ok {
		d.SubComponent = fmt.Sprintf("Sub-Component %d", sc+1)
	}
	return d
}
