// Package mapping projects the well-known segments of a message (header,
// patient, visit, orders and observations) onto labelled sections.
package mapping

import (
	"strings"

	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/hl7"
)

// Definitions is the subset of the registry the mapper needs.
type Definitions interface {
	VersionOf(msg *hl7.Message) string
	FieldDefinition(segment string, number int, version string) (definition.Field, bool)
}

// Section is one labelled group of values.
type Section struct {
	Name   string  `json:"name"`
	Fields []Entry `json:"data"`
}

// Entry is a single labelled value.
type Entry struct {
	Label string `json:"key"`
	Value Value  `json:"value"`
}

// Get returns the value of the entry with the given label.
func (s Section) Get(label string) (Value, bool) {
	for _, e := range s.Fields {
		if e.Label == label {
			return e.Value, true
		}
	}
	return Value{}, false
}

type Mapper struct {
	defs Definitions
}

func New(defs Definitions) *Mapper {
	return &Mapper{defs: defs}
}

// Map returns one section for the first MSH, PID and PV1 segments, followed
// by one section per ORC, OBR and OBX segment in source order.
func (m *Mapper) Map(msg *hl7.Message) []Section {
	sections := []Section{}
	if msg == nil {
		return sections
	}
	version := m.defs.VersionOf(msg)

	if msh := first(msg, "MSH"); msh != nil {
		sections = append(sections, Section{
			Name: "Message Header",
			Fields: []Entry{
				{"Sending App", Text(msh.Value(3))},
				{"Sending Facility", Text(msh.Value(4))},
				{"Receiving App", Text(msh.Value(5))},
				{"Receiving Facility", Text(msh.Value(6))},
				{"Message Date", Text(msh.Value(7))},
				{"Message Type", m.described(msh, 9, version)},
				{"Control ID", Text(msh.Value(10))},
				{"Version", Text(msh.Value(12))},
			},
		})
	}

	if pid := first(msg, "PID"); pid != nil {
		sections = append(sections, Section{
			Name: "Patient Information",
			Fields: []Entry{
				{"Formatted Name", Text(formattedName(pid))},
				{"Date of Birth", Text(pid.Value(7))},
				{"Sex", Text(pid.Value(8))},
				{"Phone Number", Text(pid.Value(13))},
				{"Patient IDs", Text(patientIDs(pid))},
				{"Address", m.described(pid, 11, version)},
				{"Patient Name", m.described(pid, 5, version)},
				{"Patient Identifier List", m.described(pid, 3, version)},
			},
		})
	}

	if pv1 := first(msg, "PV1"); pv1 != nil {
		sections = append(sections, Section{
			Name: "Patient Visit",
			Fields: []Entry{
				{"Patient Class", Text(pv1.Value(2))},
				{"Assigned Location", m.described(pv1, 3, version)},
				{"Admitting Doctor", Text(pv1.Value(7))},
				{"Visit Number", Text(pv1.Value(19))},
				{"Admit Date/Time", Text(pv1.Value(44))},
			},
		})
	}

	for i := range msg.Segments {
		seg := &msg.Segments[i]
		switch seg.Name {
		case "ORC":
			sections = append(sections, Section{
				Name: "Order Common Information",
				Fields: []Entry{
					{"Order Control", Text(seg.Value(1))},
					{"Placer Order Number", Text(seg.Value(2))},
					{"Filler Order Number", Text(seg.Value(3))},
					{"Transaction Date/Time", Text(seg.Value(9))},
				},
			})
		case "OBR":
			sections = append(sections, Section{
				Name: "Order Observation Request",
				Fields: []Entry{
					{"Placer Order Number", Text(seg.Value(2))},
					{"Filler Order Number", Text(seg.Value(3))},
					{"Universal Service ID", Text(seg.Value(4))},
					{"Observation Date/Time", Text(seg.Value(7))},
				},
			})
		case "OBX":
			sections = append(sections, Section{
				Name: "Observation: " + seg.Value(3),
				Fields: []Entry{
					{"Value Type", Text(seg.Value(2))},
					{"Observation Identifier", Text(seg.Value(3))},
					{"Value", Text(seg.Value(5))},
					{"Units", Text(seg.Value(6))},
					{"Reference Range", Text(seg.Value(7))},
					{"Abnormal Flags", Text(seg.Value(8))},
				},
			})
		}
	}
	return sections
}

// described maps a field through its component definitions. Fields without
// a component breakdown keep their verbatim text.
func (m *Mapper) described(seg *hl7.Segment, number int, version string) Value {
	f, ok := seg.Field(number)
	if !ok {
		return Text("")
	}
	def, ok := m.defs.FieldDefinition(seg.Name, number, version)
	if !ok || len(def.Comp) == 0 {
		return Text(f.Original)
	}

	reps := make([]Components, len(f.Repetitions))
	for i, rep := range f.Repetitions {
		comps := Components{}
		for j, c := range rep.Components {
			if j < len(def.Comp) && def.Comp[j].Desc != "" {
				comps = comps.set(def.Comp[j].Desc, c.Original)
			}
		}
		reps[i] = comps
	}
	if len(reps) == 1 {
		return Value{Kind: KindComponents, Components: reps[0]}
	}
	return Value{Kind: KindRepetitions, Repetitions: reps}
}

// formattedName renders PID-5 as "Family, Given M.".
func formattedName(pid *hl7.Segment) string {
	var family, given, middle string
	if f, ok := pid.Field(5); ok {
		family = f.Component(0, 0)
		given = f.Component(0, 1)
		middle = f.Component(0, 2)
	}
	name := family + ", " + given
	if middle != "" {
		name += " " + middle + "."
	}
	return name
}

// patientIDs joins the first component of every PID-3 repetition.
func patientIDs(pid *hl7.Segment) string {
	f, ok := pid.Field(3)
	if !ok {
		return ""
	}
	ids := make([]string, 0, len(f.Repetitions))
	for i := range f.Repetitions {
		if id := f.Component(i, 0); id != "" {
			ids = append(ids, id)
		}
	}
	return strings.Join(ids, ", ")
}

func first(msg *hl7.Message, name string) *hl7.Segment {
	for i := range msg.Segments {
		if msg.Segments[i].Name == name {
			return &msg.Segments[i]
		}
	}
	return nil
}
