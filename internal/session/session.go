// Package session keeps inspection sessions: one message, its tree and the
// selection shared by everyone observing it.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/hl7lens/internal/hl7"
	"github.com/dgallion1/hl7lens/internal/mapping"
	"github.com/dgallion1/hl7lens/internal/selection"
	"github.com/dgallion1/hl7lens/internal/tree"
)

var ErrNotFound = errors.New("session not found")

// Session owns a message and the state derived from it. The tree is
// published through a snapshot so readers never see a tree mid-update.
type Session struct {
	mu sync.Mutex
	// syncMu orders tree updates so the published tree always ends on the
	// coordinator's current selection.
	syncMu sync.Mutex

	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	engine   *Engine
	text     string
	msg      hl7.Message
	sections []mapping.Section

	tree  *tree.Snapshot
	coord *selection.Coordinator
	unsub func()
}

func newSession(engine *Engine, name, text string) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		engine:    engine,
		tree:      tree.NewSnapshot(nil),
		coord:     selection.NewCoordinator(),
	}
	s.load(text)
	s.unsub = s.coord.Subscribe(s.resync)
	return s
}

// load parses text and hands off a freshly built tree.
func (s *Session) load(text string) {
	msg := s.engine.Parse(text)
	sections := s.engine.Map(&msg)
	root := s.engine.Tree(&msg, selection.None)

	s.syncMu.Lock()
	s.mu.Lock()
	s.text = text
	s.msg = msg
	s.sections = sections
	s.UpdatedAt = time.Now()
	s.tree.Store(root)
	s.mu.Unlock()
	s.syncMu.Unlock()
}

// resync is the session's own observer: it keeps the published tree in
// step with the selection. Concurrent Set calls may deliver out of order,
// so it applies the coordinator's current value rather than sel.
func (s *Session) resync(sel selection.Selection) {
	s.syncMu.Lock()
	current, _ := s.coord.Current()
	s.tree.Select(current)
	s.syncMu.Unlock()

	s.engine.rec.ObserveSelection(sel)
	s.touch()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.UpdatedAt = time.Now()
	s.mu.Unlock()
}

// Replace swaps in a new message and clears the selection.
func (s *Session) Replace(text string) {
	s.load(text)
	s.coord.Clear()
}

// Select publishes sel to every observer of the session.
func (s *Session) Select(sel selection.Selection) {
	s.coord.Set(sel)
}

// Selection returns the current selection; None until one is set.
func (s *Session) Selection() selection.Selection {
	sel, _ := s.coord.Current()
	return sel
}

// Subscribe adds an observer of the session's selection.
func (s *Session) Subscribe(fn selection.Observer) func() {
	return s.coord.Subscribe(fn)
}

// Tree returns the current tree. It must not be modified.
func (s *Session) Tree() *tree.Node {
	return s.tree.Load()
}

// Message returns the parsed message. Its segments are shared and must not
// be modified.
func (s *Session) Message() hl7.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msg
}

func (s *Session) lastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdatedAt
}

func (s *Session) close() {
	if s.unsub != nil {
		s.unsub()
	}
}

// SelectionView describes the current selection.
type SelectionView struct {
	Selection   selection.Selection    `json:"selection"`
	Target      *selection.Target      `json:"target,omitempty"`
	Description *selection.Description `json:"description,omitempty"`
}

// View is a read-only, JSON-safe copy of session state.
type View struct {
	ID        string            `json:"session_id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Text      string            `json:"text"`
	Message   hl7.Message       `json:"message"`
	Sections  []mapping.Section `json:"sections"`
	Tree      *tree.Node        `json:"tree"`
	SelectionView
}

// DescribeSelection resolves the current selection against the message.
func (s *Session) DescribeSelection() SelectionView {
	return s.describe(s.Selection())
}

func (s *Session) describe(sel selection.Selection) SelectionView {
	v := SelectionView{Selection: sel}
	if sel.IsNone() {
		return v
	}
	msg := s.Message()
	target, desc := s.engine.Describe(&msg, sel)
	v.Target = &target
	v.Description = &desc
	return v
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() View {
	sel := s.Selection()
	root := s.tree.Load()

	s.mu.Lock()
	v := View{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Text:      s.text,
		Message:   s.msg,
		Sections:  s.sections,
		Tree:      root,
	}
	s.mu.Unlock()

	v.SelectionView = s.describe(sel)
	return v
}
