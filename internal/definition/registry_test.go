package definition

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/hl7lens/internal/parser"
)

func testBase() Dictionary {
	return Dictionary{
		"2.3": {Segments: map[string]*Segment{
			"PID": {Desc: "Patient Identification", Fields: []*Field{
				{Desc: "Set ID - PID"},
				{Desc: "Patient ID"},
				{Desc: "Patient Identifier List", Comp: []Component{{Desc: "ID"}, {Desc: "Check Digit"}}},
				{Desc: "Alternate Patient ID"},
			}},
			"EVN": {Desc: "Event Type"},
		}},
		"2.5": {Segments: map[string]*Segment{
			"MSH": {Desc: "Message Header", Fields: []*Field{
				{Desc: "Field Separator"},
				{Desc: "Encoding Characters"},
			}},
		}},
	}
}

func TestNew_OverlayReplacesWholeField(t *testing.T) {
	base := testBase()
	overlay := Overlay{"2.3": {"PID": {3: {Desc: "Custom Identifier"}}}}

	r := New(base, overlay)

	got, ok := r.FieldDefinition("PID", 3, "2.3")
	require.True(t, ok)
	assert.Equal(t, Field{Desc: "Custom Identifier"}, got)
	assert.Nil(t, got.Comp, "component list must not survive a whole-field replacement")

	for _, n := range []int{1, 2, 4} {
		want := *base["2.3"].Segments["PID"].Fields[n-1]
		got, ok := r.FieldDefinition("PID", n, "2.3")
		require.True(t, ok, "field %d", n)
		assert.Equal(t, want, got, "field %d", n)
	}
}

func TestNew_DoesNotMutateBase(t *testing.T) {
	base := testBase()
	New(base, Overlay{"2.3": {"PID": {3: {Desc: "Custom"}, 9: {Desc: "Far"}}}})

	pid := base["2.3"].Segments["PID"]
	assert.Len(t, pid.Fields, 4)
	assert.Equal(t, "Patient Identifier List", pid.Fields[2].Desc)
}

func TestNew_OverlayInsertsAndGrows(t *testing.T) {
	r := New(testBase(), Overlay{
		"2.3": {
			"PID": {7: {Desc: "Date/Time of Birth"}},
			"EVN": {2: {Desc: "Recorded Date/Time"}},
		},
	})

	got, ok := r.FieldDefinition("PID", 7, "2.3")
	require.True(t, ok)
	assert.Equal(t, "Date/Time of Birth", got.Desc)

	_, ok = r.FieldDefinition("PID", 6, "2.3")
	assert.False(t, ok, "gap created by the overlay stays undefined")

	got, ok = r.FieldDefinition("EVN", 2, "2.3")
	require.True(t, ok, "field list is created when the base segment had none")
	assert.Equal(t, "Recorded Date/Time", got.Desc)
}

func TestNew_OverlayForUnknownSegmentIsIgnored(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	r := New(testBase(), Overlay{
		"2.3": {"ZZ1": {1: {Desc: "Custom"}}},
		"9.9": {"PID": {1: {Desc: "Nope"}}},
	}, WithLogger(log))

	_, ok := r.SegmentDefinition("ZZ1", "2.3")
	assert.False(t, ok)
	_, ok = r.Resolve("9.9")
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "segment=ZZ1")
	assert.Contains(t, logs.String(), "version=9.9")
}

func TestNew_OverlayKeyIsCanonicalized(t *testing.T) {
	r := New(testBase(), Overlay{"2.5.1": {"MSH": {3: {Desc: "Sending Application"}}}})
	got, ok := r.FieldDefinition("MSH", 3, "2.5")
	require.True(t, ok)
	assert.Equal(t, "Sending Application", got.Desc)
}

func TestRegistry_Misses(t *testing.T) {
	r := New(testBase(), nil)

	_, ok := r.FieldDefinition("PID", 0, "2.3")
	assert.False(t, ok)
	_, ok = r.FieldDefinition("PID", 5, "2.3")
	assert.False(t, ok)
	_, ok = r.FieldDefinition("PID", 1, "3.0")
	assert.False(t, ok)
	_, ok = r.SegmentDescription("ZZZ", "2.3")
	assert.False(t, ok)
	_, ok = r.ComponentDefinition("PID", 3, 2, "2.3")
	assert.False(t, ok)

	c, ok := r.ComponentDefinition("PID", 3, 1, "2.3")
	require.True(t, ok)
	assert.Equal(t, "Check Digit", c.Desc)
}

func TestRegistry_VersionAliasing(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	a, ok := r.Resolve("2.5.1")
	require.True(t, ok)
	b, ok := r.Resolve("2.5")
	require.True(t, ok)
	assert.Equal(t, b, a)

	fa, _ := r.FieldDefinition("PID", 5, "2.5.1")
	fb, _ := r.FieldDefinition("PID", 5, "2.5")
	assert.Equal(t, fb, fa)

	assert.Contains(t, r.Versions(), "2.5.1")
}

func TestRegistry_VersionOf(t *testing.T) {
	r := New(testBase(), nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"explicit", "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|1|P|2.3", "2.3"},
		{"aliased", "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|1|P|2.5.1", "2.5"},
		{"with components", "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|1|P|2.3^USA", "2.3"},
		{"missing", "MSH|^~\\&|A", "2.5"},
		{"unknown kept", "MSH|^~\\&|A|B|C|D|20250101||ADT^A01|1|P|9.9", "9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := parser.Parse(tt.input)
			assert.Equal(t, tt.want, r.VersionOf(&msg))
		})
	}

	custom := New(testBase(), nil, WithDefaultVersion("2.3"))
	msg := parser.Parse("MSH|^~\\&|A")
	assert.Equal(t, "2.3", custom.VersionOf(&msg))
}

func TestLoad_EmbeddedDictionary(t *testing.T) {
	r, err := Load("")
	require.NoError(t, err)

	for _, v := range []string{"2.3", "2.4", "2.5", "2.6", "2.7"} {
		desc, ok := r.SegmentDescription("PID", v)
		assert.True(t, ok, v)
		assert.Equal(t, "Patient Identification", desc, v)
	}

	mt, ok := r.FieldDefinition("MSH", 9, "2.3")
	require.True(t, ok)
	assert.Equal(t, "Message Type", mt.Desc)
	require.Len(t, mt.Comp, 2)

	pid3, ok := r.FieldDefinition("PID", 3, "2.3")
	require.True(t, ok)
	assert.Equal(t, "ID Number", pid3.Comp[0].Desc, "embedded overlay replaces PID-3 for 2.3")
}

func TestLoad_OverlayFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
"2.3":
  segments:
    PID:
      fields:
        "3":
          desc: Site MRN
`), 0o644))
	r, err := Load(yamlPath)
	require.NoError(t, err)
	got, ok := r.FieldDefinition("PID", 3, "2.3")
	require.True(t, ok)
	assert.Equal(t, Field{Desc: "Site MRN"}, got)

	jsonPath := filepath.Join(dir, "overlay.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"2.4":{"segments":{"PV1":{"fields":{"2":{"desc":"Class","comp":[{"desc":"Code"}]}}}}}}`), 0o644))
	r, err = Load(jsonPath)
	require.NoError(t, err)
	got, ok = r.FieldDefinition("PV1", 2, "2.4")
	require.True(t, ok)
	assert.Equal(t, Field{Desc: "Class", Comp: []Component{{Desc: "Code"}}}, got)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDecodeOverlay_RejectsBadFieldNumbers(t *testing.T) {
	_, err := DecodeOverlay([]byte(`{"2.3":{"segments":{"PID":{"fields":{"x":{"desc":"bad"}}}}}}`))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid field number"))

	_, err = DecodeOverlay([]byte(`{"2.3":{"segments":{"PID":{"fields":{"0":{"desc":"bad"}}}}}}`))
	assert.Error(t, err)
}
