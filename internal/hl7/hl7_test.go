package hl7

import (
	"encoding/json"
	"testing"
)

func leaf(s string) Field {
	return Field{Original: s, Repetitions: []Repetition{{Original: s, Components: []Component{{Original: s, SubComponents: []SubComponent{{Original: s}}}}}}}
}

func segment(name string, values ...string) Segment {
	seg := Segment{Name: name, Fields: []Field{leaf(name)}}
	for _, v := range values {
		seg.Fields = append(seg.Fields, leaf(v))
	}
	return seg
}

func TestFieldNumbering_MSH(t *testing.T) {
	msh := segment("MSH", "^~\\&", "APP", "FAC")

	if n := msh.FieldNumber(1); n != 2 {
		t.Errorf("expected MSH index 1 to be MSH-2, got %d", n)
	}
	if n := msh.FieldNumber(0); n != 0 {
		t.Errorf("expected index 0 to stay 0, got %d", n)
	}
	if _, ok := msh.FieldIndex(1); ok {
		t.Error("expected MSH-1 to have no field index")
	}
	if got := msh.Value(3); got != "APP" {
		t.Errorf("expected MSH-3 %q, got %q", "APP", got)
	}
	if got := msh.Value(2); got != "^~\\&" {
		t.Errorf("expected MSH-2 %q, got %q", "^~\\&", got)
	}
	if got := msh.Value(9); got != "" {
		t.Errorf("expected missing field to be empty, got %q", got)
	}
}

func TestFieldNumbering_Other(t *testing.T) {
	pid := segment("PID", "1", "", "123")

	for i := range pid.Fields {
		if n := pid.FieldNumber(i); n != i {
			t.Errorf("expected PID index %d to map to itself, got %d", i, n)
		}
		idx, ok := pid.FieldIndex(i)
		if !ok || idx != i {
			t.Errorf("expected FieldIndex(%d) = %d, got %d %v", i, i, idx, ok)
		}
	}
	if got := pid.Value(3); got != "123" {
		t.Errorf("expected PID-3 %q, got %q", "123", got)
	}
	if _, ok := pid.FieldIndex(-1); ok {
		t.Error("expected negative number to be rejected")
	}
}

func TestHeader(t *testing.T) {
	msg := Message{Segments: []Segment{segment("MSH", "x"), segment("PID")}}
	h, ok := msg.Header()
	if !ok || h.Name != "MSH" {
		t.Fatal("expected MSH header")
	}
	empty := Message{}
	if _, ok := empty.Header(); ok {
		t.Error("expected no header for empty message")
	}
}

func TestSingleton(t *testing.T) {
	f := leaf("x")
	if !f.Singleton() {
		t.Error("expected leaf field to be a singleton")
	}
	f.Repetitions = append(f.Repetitions, f.Repetitions[0])
	if f.Singleton() {
		t.Error("expected repeated field not to be a singleton")
	}
	c := Component{SubComponents: []SubComponent{{"a"}, {"b"}}}
	if c.Singleton() {
		t.Error("expected two subcomponents not to be a singleton")
	}
}

func TestFieldComponent_Bounds(t *testing.T) {
	f := leaf("x")
	if got := f.Component(0, 0); got != "x" {
		t.Errorf("expected %q, got %q", "x", got)
	}
	for _, c := range [][2]int{{1, 0}, {0, 1}, {-1, 0}, {0, -1}} {
		if got := f.Component(c[0], c[1]); got != "" {
			t.Errorf("expected empty for %v, got %q", c, got)
		}
	}
}

func TestDelimiters(t *testing.T) {
	if !DefaultDelimiters.Valid() {
		t.Fatal("expected default delimiters to be valid")
	}
	if got := DefaultDelimiters.Encoding(); got != "^~\\&" {
		t.Errorf("expected encoding %q, got %q", "^~\\&", got)
	}

	invalid := []Delimiters{
		{'|', '^', '^', '\\', '&'},
		{'X', '^', '~', '\\', '&'},
		{' ', '^', '~', '\\', '&'},
		{'|', '^', '~', '\\', 0},
	}
	for _, d := range invalid {
		if d.Valid() {
			t.Errorf("expected %q to be invalid", []byte{d.Field, d.Component, d.Repetition, d.Escape, d.SubComponent})
		}
	}

	b, err := json.Marshal(DefaultDelimiters)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got["field"] != "|" || got["encoding"] != "^~\\&" {
		t.Errorf("unexpected JSON %s", b)
	}
}
