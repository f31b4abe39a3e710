package definition

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Component describes one component of a composite field.
type Component struct {
	Desc string `json:"desc" yaml:"desc"`
}

// Field describes a field. Comp is nil for primitive fields.
type Field struct {
	Desc string      `json:"desc" yaml:"desc"`
	Comp []Component `json:"comp,omitempty" yaml:"comp,omitempty"`
}

// Segment describes a segment. Fields[0] is logical field 1; nil entries are
// fields without attested semantics.
type Segment struct {
	Desc   string   `json:"desc" yaml:"desc"`
	Fields []*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Version is the dictionary for a single HL7 version.
type Version struct {
	Segments map[string]*Segment `json:"segments" yaml:"segments"`
}

// Dictionary maps a version key (e.g. "2.5") to its definitions.
type Dictionary map[string]Version

// Overlay holds per-deployment field replacements:
// version -> segment -> logical field number -> definition.
type Overlay map[string]map[string]map[int]Field

// DecodeDictionary reads the generated dictionary table.
func DecodeDictionary(r io.Reader) (Dictionary, error) {
	var d Dictionary
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	return d, nil
}

type overlayFile map[string]struct {
	Segments map[string]struct {
		Fields map[string]Field `yaml:"fields"`
	} `yaml:"segments"`
}

// DecodeOverlay reads an overlay document. YAML and JSON are both accepted;
// field keys must be positive logical field numbers.
func DecodeOverlay(data []byte) (Overlay, error) {
	var raw overlayFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}
	out := make(Overlay, len(raw))
	for version, v := range raw {
		segs := make(map[string]map[int]Field, len(v.Segments))
		for name, seg := range v.Segments {
			fields := make(map[int]Field, len(seg.Fields))
			for key, fd := range seg.Fields {
				n, err := strconv.Atoi(key)
				if err != nil || n < 1 {
					return nil, fmt.Errorf("decode overlay: %s %s: invalid field number %q", version, name, key)
				}
				fields[n] = fd
			}
			segs[name] = fields
		}
		out[version] = segs
	}
	return out, nil
}

func (s *Segment) clone() *Segment {
	if s == nil {
		return nil
	}
	c := &Segment{Desc: s.Desc}
	if s.Fields != nil {
		c.Fields = make([]*Field, len(s.Fields))
		for i, f := range s.Fields {
			if f != nil {
				cp := f.clone()
				c.Fields[i] = &cp
			}
		}
	}
	return c
}

func (f Field) clone() Field {
	c := Field{Desc: f.Desc}
	if f.Comp != nil {
		c.Comp = append([]Component(nil), f.Comp...)
	}
	return c
}
