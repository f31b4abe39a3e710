package definition

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/dgallion1/hl7lens/internal/hl7"
)

// DefaultVersion is assumed when MSH-12 is empty.
const DefaultVersion = "2.5.1"

// versionField is the logical MSH field carrying the version ID.
const versionField = 12

// aliases maps versions without a dictionary of their own to the one they
// share.
var aliases = map[string]string{
	"2.5.1": "2.5",
}

//go:embed data/dictionary.json
var dictionaryJSON []byte

//go:embed data/overlay.yaml
var overlayYAML []byte

// Registry resolves segment, field and component descriptions by version.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	versions       map[string]Version
	defaultVersion string
	log            *slog.Logger
}

type Option func(*Registry)

// WithDefaultVersion overrides the version used for messages without MSH-12.
func WithDefaultVersion(v string) Option {
	return func(r *Registry) {
		if v != "" {
			r.defaultVersion = v
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// New copies base and applies overlay to it. Each overlay field replaces the
// base definition at that logical number outright. Overlay segments that the
// base version does not define are skipped.
func New(base Dictionary, overlay Overlay, opts ...Option) *Registry {
	r := &Registry{
		versions:       make(map[string]Version, len(base)),
		defaultVersion: DefaultVersion,
		log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for key, v := range base {
		segs := make(map[string]*Segment, len(v.Segments))
		for name, seg := range v.Segments {
			segs[name] = seg.clone()
		}
		r.versions[key] = Version{Segments: segs}
	}

	for key, segs := range overlay {
		key = Canonical(key)
		v, ok := r.versions[key]
		if !ok {
			r.log.Warn("overlay version not in dictionary, skipped", "version", key)
			continue
		}
		for name, fields := range segs {
			seg := v.Segments[name]
			if seg == nil {
				r.log.Warn("overlay segment not in dictionary, skipped", "version", key, "segment", name)
				continue
			}
			for n, fd := range fields {
				if n < 1 {
					continue
				}
				for len(seg.Fields) < n {
					seg.Fields = append(seg.Fields, nil)
				}
				cp := fd.clone()
				seg.Fields[n-1] = &cp
			}
		}
	}
	return r
}

// Load builds a registry from the embedded dictionary. The overlay is read
// from overlayPath when set, otherwise the embedded overlay is used.
func Load(overlayPath string, opts ...Option) (*Registry, error) {
	base, err := DecodeDictionary(bytes.NewReader(dictionaryJSON))
	if err != nil {
		return nil, err
	}
	data := overlayYAML
	if overlayPath != "" {
		data, err = os.ReadFile(overlayPath)
		if err != nil {
			return nil, fmt.Errorf("read overlay: %w", err)
		}
	}
	overlay, err := DecodeOverlay(data)
	if err != nil {
		return nil, err
	}
	return New(base, overlay, opts...), nil
}

// Canonical applies the alias table.
func Canonical(version string) string {
	if to, ok := aliases[version]; ok {
		return to
	}
	return version
}

// DefaultVersion returns the version assumed for messages without MSH-12.
func (r *Registry) DefaultVersion() string {
	return r.defaultVersion
}

// Versions lists every resolvable version key, aliases included.
func (r *Registry) Versions() []string {
	out := make([]string, 0, len(r.versions)+len(aliases))
	for k := range r.versions {
		out = append(out, k)
	}
	for from, to := range aliases {
		if _, ok := r.versions[to]; ok {
			if _, dup := r.versions[from]; !dup {
				out = append(out, from)
			}
		}
	}
	sort.Strings(out)
	return out
}

// VersionOf returns the canonical dictionary key for msg, taken from the
// first component of MSH-12.
func (r *Registry) VersionOf(msg *hl7.Message) string {
	version := ""
	if msg != nil {
		if msh, ok := msg.Header(); ok {
			if f, ok := msh.Field(versionField); ok {
				version = f.Component(0, 0)
			}
		}
	}
	if version == "" {
		version = r.defaultVersion
	}
	return Canonical(version)
}

// Resolve returns the definitions for a version. The result is shared and
// must not be modified.
func (r *Registry) Resolve(version string) (Version, bool) {
	v, ok := r.versions[Canonical(version)]
	return v, ok
}

// SegmentDefinition returns the definition of a segment.
func (r *Registry) SegmentDefinition(segment, version string) (*Segment, bool) {
	v, ok := r.Resolve(version)
	if !ok {
		return nil, false
	}
	seg := v.Segments[segment]
	return seg, seg != nil
}

// SegmentDescription returns the description of a segment, if known.
func (r *Registry) SegmentDescription(segment, version string) (string, bool) {
	seg, ok := r.SegmentDefinition(segment, version)
	if !ok || seg.Desc == "" {
		return "", false
	}
	return seg.Desc, true
}

// FieldDefinition looks up a field by logical (1-based) number.
func (r *Registry) FieldDefinition(segment string, number int, version string) (Field, bool) {
	seg, ok := r.SegmentDefinition(segment, version)
	if !ok || number < 1 || number > len(seg.Fields) {
		return Field{}, false
	}
	f := seg.Fields[number-1]
	if f == nil {
		return Field{}, false
	}
	return *f, true
}

// ComponentDefinition looks up a component by 0-based index within a field.
func (r *Registry) ComponentDefinition(segment string, number, index int, version string) (Component, bool) {
	f, ok := r.FieldDefinition(segment, number, version)
	if !ok || index < 0 || index >= len(f.Comp) {
		return Component{}, false
	}
	return f.Comp[index], true
}
