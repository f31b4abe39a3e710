package parser

import (
	"strings"

	"github.com/dgallion1/hl7lens/internal/hl7"
)

// ErrMissingHeader is the diagnostic attached to messages that do not
// start with an MSH segment.
const ErrMissingHeader = "Invalid HL7 message: Must start with an MSH segment."

// MLLP frame characters.
const (
	StartBlock     = 0x0B
	EndBlock       = 0x1C
	CarriageReturn = 0x0D
)

// Options controls how delimiters are chosen.
type Options struct {
	// DeriveDelimiters reads the field separator from MSH[3] and the
	// encoding characters from MSH-2. When false the standard |^~\&
	// characters are always used.
	DeriveDelimiters bool
}

// Parser converts raw HL7 text into a Message tree. It holds no state
// between calls.
type Parser struct {
	opts Options
}

func New(opts Options) *Parser {
	return &Parser{opts: opts}
}

// Parse parses text with delimiter detection enabled.
func Parse(text string) hl7.Message {
	return New(Options{DeriveDelimiters: true}).Parse(text)
}

// Parse never fails. Input that does not start with an MSH segment yields a
// Message with no segments and a single error.
func (p *Parser) Parse(text string) hl7.Message {
	lines := splitLines(unwrapMLLP(text))

	msg := hl7.Message{
		Segments:   []hl7.Segment{},
		Errors:     []string{},
		Delimiters: hl7.DefaultDelimiters,
	}
	if len(lines) == 0 {
		msg.Errors = append(msg.Errors, ErrMissingHeader)
		return msg
	}

	if p.opts.DeriveDelimiters {
		msg.Delimiters = detectDelimiters(lines[0])
	}
	d := msg.Delimiters

	first := lines[0]
	if i := strings.IndexByte(first, d.Field); i >= 0 {
		first = first[:i]
	}
	if first != hl7.HeaderSegment {
		msg.Errors = append(msg.Errors, ErrMissingHeader)
		return msg
	}

	for _, line := range lines {
		msg.Segments = append(msg.Segments, parseSegment(line, d))
	}
	return msg
}

func parseSegment(line string, d hl7.Delimiters) hl7.Segment {
	parts := strings.Split(line, string(d.Field))
	seg := hl7.Segment{
		Name:     parts[0],
		Original: line,
		Fields:   make([]hl7.Field, len(parts)),
	}
	for i, part := range parts {
		// MSH-2 holds the delimiters themselves and is never split.
		if seg.Name == hl7.HeaderSegment && i == 1 {
			seg.Fields[i] = atomicField(part)
			continue
		}
		seg.Fields[i] = parseField(part, d)
	}
	return seg
}

func parseField(s string, d hl7.Delimiters) hl7.Field {
	reps := strings.Split(s, string(d.Repetition))
	f := hl7.Field{Original: s, Repetitions: make([]hl7.Repetition, len(reps))}
	for i, rs := range reps {
		comps := strings.Split(rs, string(d.Component))
		r := hl7.Repetition{Original: rs, Components: make([]hl7.Component, len(comps))}
		for j, cs := range comps {
			subs := strings.Split(cs, string(d.SubComponent))
			c := hl7.Component{Original: cs, SubComponents: make([]hl7.SubComponent, len(subs))}
			for k, ss := range subs {
				c.SubComponents[k] = hl7.SubComponent{Original: ss}
			}
			r.Components[j] = c
		}
		f.Repetitions[i] = r
	}
	return f
}

func atomicField(s string) hl7.Field {
	return hl7.Field{
		Original: s,
		Repetitions: []hl7.Repetition{{
			Original: s,
			Components: []hl7.Component{{
				Original:      s,
				SubComponents: []hl7.SubComponent{{Original: s}},
			}},
		}},
	}
}

// detectDelimiters reads MSH[3] and MSH-2. Anything missing is taken from
// the defaults; an unusable combination falls back to the defaults entirely.
func detectDelimiters(header string) hl7.Delimiters {
	d := hl7.DefaultDelimiters
	if len(header) < 4 || !strings.HasPrefix(header, hl7.HeaderSegment) {
		return d
	}
	d.Field = header[3]

	enc := header[4:]
	if i := strings.IndexByte(enc, d.Field); i >= 0 {
		enc = enc[:i]
	}
	targets := []*byte{&d.Component, &d.Repetition, &d.Escape, &d.SubComponent}
	for i := 0; i < len(enc) && i < len(targets); i++ {
		*targets[i] = enc[i]
	}

	if !d.Valid() {
		return hl7.DefaultDelimiters
	}
	return d
}

// splitLines accepts CR LF, LF or CR segment terminators and drops empty
// lines.
func splitLines(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
}

func unwrapMLLP(text string) string {
	text = strings.TrimPrefix(text, string(rune(StartBlock)))
	text = strings.TrimSuffix(text, string([]byte{EndBlock, CarriageReturn}))
	return strings.TrimSuffix(text, string(rune(EndBlock)))
}
