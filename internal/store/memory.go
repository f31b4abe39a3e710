package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory keeps saved messages in process.
type Memory struct {
	mu     sync.Mutex
	order  []string
	byName map[string]Saved
}

func NewMemory() *Memory {
	return &Memory{byName: make(map[string]Saved)}
}

func (m *Memory) Save(_ context.Context, name, text string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[name]; ok {
		return false, nil
	}
	m.byName[name] = Saved{Name: name, Text: text, CreatedAt: time.Now().UTC()}
	m.order = append(m.order, name)
	return true, nil
}

func (m *Memory) List(_ context.Context) ([]Saved, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Saved, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.byName[name])
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, name string) (Saved, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byName[name]
	if !ok {
		return Saved{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, nil
}

func (m *Memory) Close() error { return nil }
