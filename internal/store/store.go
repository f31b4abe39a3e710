// Package store persists named messages. A name is saved once; saving an
// existing name again is ignored.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("message not found")

// Saved is a named message.
type Saved struct {
	Name      string    `json:"name" db:"name"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Store is the persistence boundary for saved messages.
type Store interface {
	// Save stores text under name and reports whether it was added. An
	// existing name is left unchanged and reported as false.
	Save(ctx context.Context, name, text string) (bool, error)
	// List returns every saved message in the order it was saved.
	List(ctx context.Context) ([]Saved, error)
	Get(ctx context.Context, name string) (Saved, error)
	Close() error
}

// Seed saves the sample messages when the store is empty.
func Seed(ctx context.Context, s Store) (int, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, m := range Samples {
		added, err := s.Save(ctx, m.Name, m.Text)
		if err != nil {
			return n, fmt.Errorf("seed %q: %w", m.Name, err)
		}
		if added {
			n++
		}
	}
	return n, nil
}
