package session

import (
	"time"

	"github.com/dgallion1/hl7lens/internal/definition"
	"github.com/dgallion1/hl7lens/internal/hl7"
	"github.com/dgallion1/hl7lens/internal/mapping"
	"github.com/dgallion1/hl7lens/internal/parser"
	"github.com/dgallion1/hl7lens/internal/selection"
	"github.com/dgallion1/hl7lens/internal/tree"
)

// Recorder receives inspection measurements.
type Recorder interface {
	ObserveParse(d time.Duration, segments int, ok bool)
	ObserveSelection(sel selection.Selection)
	SetSessions(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveParse(time.Duration, int, bool) {}
func (nopRecorder) ObserveSelection(selection.Selection)  {}
func (nopRecorder) SetSessions(int)                       {}

// Engine bundles the parser, registry, mapper and tree builder shared by
// every session and by stateless requests.
type Engine struct {
	parser  *parser.Parser
	defs    *definition.Registry
	mapper  *mapping.Mapper
	builder *tree.Builder
	rec     Recorder
}

func NewEngine(p *parser.Parser, defs *definition.Registry, rec Recorder) *Engine {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Engine{
		parser:  p,
		defs:    defs,
		mapper:  mapping.New(defs),
		builder: tree.NewBuilder(defs),
		rec:     rec,
	}
}

func (e *Engine) Definitions() *definition.Registry { return e.defs }

// Parse parses text and records its outcome.
func (e *Engine) Parse(text string) hl7.Message {
	start := time.Now()
	msg := e.parser.Parse(text)
	e.rec.ObserveParse(time.Since(start), len(msg.Segments), len(msg.Errors) == 0)
	return msg
}

func (e *Engine) Map(msg *hl7.Message) []mapping.Section {
	return e.mapper.Map(msg)
}

// Tree builds the tree for msg with sel applied.
func (e *Engine) Tree(msg *hl7.Message, sel selection.Selection) *tree.Node {
	root := e.builder.Build(msg)
	tree.Apply(root, sel)
	return root
}

func (e *Engine) Describe(msg *hl7.Message, sel selection.Selection) (selection.Target, selection.Description) {
	p, ok := sel.Path()
	if !ok {
		return selection.Target{}, selection.Description{}
	}
	return selection.Resolve(msg, p), selection.Describe(e.defs, msg, p)
}
