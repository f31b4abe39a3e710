package mapping

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tells which member of a Value is populated.
type Kind int

const (
	KindText Kind = iota
	KindComponents
	KindRepetitions
)

// Pair is one described component value.
type Pair struct {
	Key   string
	Value string
}

// Components is an ordered map from component description to value.
type Components []Pair

// Get returns the value stored under key.
func (c Components) Get(key string) (string, bool) {
	for _, p := range c {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// set replaces an existing key in place or appends a new one.
func (c Components) set(key, value string) Components {
	for i := range c {
		if c[i].Key == key {
			c[i].Value = value
			return c
		}
	}
	return append(c, Pair{Key: key, Value: value})
}

// MarshalJSON renders the pairs as a JSON object in order.
func (c Components) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value is a mapped field: verbatim text, one component map, or one map per
// repetition.
type Value struct {
	Kind        Kind
	Text        string
	Components  Components
	Repetitions []Components
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// MarshalJSON renders text as a string, components as an object and
// repetitions as an array of objects.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindComponents:
		if v.Components == nil {
			return []byte("{}"), nil
		}
		return v.Components.MarshalJSON()
	case KindRepetitions:
		reps := v.Repetitions
		if reps == nil {
			reps = []Components{}
		}
		return json.Marshal(reps)
	}
	return json.Marshal(v.Text)
}

// String flattens the value for plain-text output.
func (v Value) String() string {
	switch v.Kind {
	case KindComponents:
		return joinPairs(v.Components)
	case KindRepetitions:
		parts := make([]string, len(v.Repetitions))
		for i, c := range v.Repetitions {
			parts[i] = joinPairs(c)
		}
		return strings.Join(parts, " ~ ")
	}
	return v.Text
}

func joinPairs(c Components) string {
	parts := make([]string, 0, len(c))
	for _, p := range c {
		parts = append(parts, p.Key+": "+p.Value)
	}
	return strings.Join(parts, ", ")
}
