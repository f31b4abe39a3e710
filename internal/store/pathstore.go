package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/hl7lens/internal/pathstore"
)

// KeyPrefix is where saved messages live in pathstore.
const KeyPrefix = "hl7lens/messages"

// Pathstore keeps saved messages as pathstore nodes, one per name.
// The pathstore API has no conditional put, so Save serialises its
// check-then-put within the process. Several processes sharing one
// prefix are not coordinated; run a single writer per prefix.
type Pathstore struct {
	mu     sync.Mutex
	client *pathstore.Client
}

func NewPathstore(client *pathstore.Client) *Pathstore {
	return &Pathstore{client: client}
}

// Key returns the node key for a message name: a readable slug plus a short
// hash so distinct names never share a key.
func Key(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	h := sha256.Sum256([]byte(name))
	return fmt.Sprintf("%s/%s-%x", KeyPrefix, slug, h[:4])
}

func (p *Pathstore) Save(ctx context.Context, name, text string) (bool, error) {
	key := Key(name)

	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.client.GetNode(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pathstore.ErrNotFound) {
		return false, fmt.Errorf("check %s: %w", key, err)
	}

	node := pathstore.Node{
		Value: map[string]any{
			"name":       name,
			"text":       text,
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
		Source: "hl7lens",
	}
	if err := p.client.PutNode(ctx, key, node); err != nil {
		return false, fmt.Errorf("save %s: %w", key, err)
	}
	return true, nil
}

func (p *Pathstore) List(ctx context.Context) ([]Saved, error) {
	nodes, err := p.client.ListChildren(ctx, KeyPrefix, 0)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Saved, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, fromNode(n))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (p *Pathstore) Get(ctx context.Context, name string) (Saved, error) {
	n, err := p.client.GetNode(ctx, Key(name))
	if errors.Is(err, pathstore.ErrNotFound) {
		return Saved{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return Saved{}, err
	}
	return fromNode(*n), nil
}

func (p *Pathstore) Close() error {
	p.client.Close()
	return nil
}

func fromNode(n pathstore.Node) Saved {
	s := Saved{Name: n.String("name"), Text: n.String("text")}
	if t, err := time.Parse(time.RFC3339Nano, n.String("created_at")); err == nil {
		s.CreatedAt = t
	}
	return s
}
