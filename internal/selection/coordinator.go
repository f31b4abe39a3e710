package selection

import (
	"encoding/json"
	"sync"
)

// Selection is either None or one Path. Values are replaced, never mutated.
type Selection struct {
	path Path
}

// None is the explicit "nothing selected" value.
var None = Selection{}

// Select wraps a path. An empty path yields None.
func Select(p Path) Selection {
	return Selection{path: p}
}

func (s Selection) IsNone() bool { return s.path.IsZero() }

// Path returns the selected path, or false for None.
func (s Selection) Path() (Path, bool) {
	return s.path, !s.path.IsZero()
}

func (s Selection) String() string {
	if s.IsNone() {
		return "none"
	}
	return s.path.String()
}

// MarshalJSON renders None as null.
func (s Selection) MarshalJSON() ([]byte, error) {
	if s.IsNone() {
		return []byte("null"), nil
	}
	return json.Marshal(s.path)
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = None
		return nil
	}
	var p Path
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Select(p)
	return nil
}

// Observer receives every selection change.
type Observer func(Selection)

type subscriber struct {
	id int
	fn Observer
}

// Coordinator holds the current selection and fans changes out to its
// observers. Late subscribers are replayed the most recent value. Delivery
// is synchronous, in subscription order, on the goroutine that called Set.
type Coordinator struct {
	mu          sync.Mutex
	current     Selection
	set         bool
	nextID      int
	subscribers []subscriber
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Set replaces the current selection and notifies every observer.
func (c *Coordinator) Set(sel Selection) {
	c.mu.Lock()
	c.current = sel
	c.set = true
	subs := append([]subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(sel)
	}
}

// Clear sets None.
func (c *Coordinator) Clear() {
	c.Set(None)
}

// Current returns the latest selection and whether one was ever set.
func (c *Coordinator) Current() (Selection, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.set
}

// Subscribe registers fn and, if a selection was ever set, immediately calls
// it with the latest value. The returned func removes the subscription and
// is safe to call more than once.
func (c *Coordinator) Subscribe(fn Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	current, replay := c.current, c.set
	c.mu.Unlock()

	if replay {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subscribers {
				if s.id == id {
					c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Observers returns the number of registered observers.
func (c *Coordinator) Observers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers)
}
