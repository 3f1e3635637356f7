// Package store provides the generic, thread-safe, in-memory tables the
// lottery twin keeps its state in, plus a simulated clock.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Table is a thread-safe, insertion-ordered map of records of type T.
type Table[T any] struct {
	mu      sync.RWMutex
	rows    map[string]T
	order   []string
	prefix  string
	counter atomic.Uint64
}

// New creates an empty Table whose generated IDs use prefix ("tkt", "txn").
func New[T any](prefix string) *Table[T] {
	return &Table[T]{
		rows:   make(map[string]T),
		prefix: prefix,
	}
}

// NextID returns the next deterministic ID, e.g. "tkt_000001".
func (t *Table[T]) NextID() string {
	return fmt.Sprintf("%s_%06d", t.prefix, t.counter.Add(1))
}

// Put inserts or replaces the record under id. A replaced record keeps its
// position in the insertion order.
func (t *Table[T]) Put(id string, row T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

// Get returns the record under id.
func (t *Table[T]) Get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	return row, ok
}

// Update applies fn to the record under id while holding the write lock.
// fn returns an error to abort; the record is left unchanged in that case.
// Update reports false when id is unknown.
func (t *Table[T]) Update(id string, fn func(*T) error) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[id]
	if !ok {
		return false, nil
	}
	if err := fn(&row); err != nil {
		return true, err
	}
	t.rows[id] = row
	return true, nil
}

// Delete removes the record under id and reports whether it existed.
func (t *Table[T]) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[id]; !exists {
		return false
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns every record in insertion order.
func (t *Table[T]) List() []T {
	return t.Filter(nil)
}

// Filter returns the records matching keep, in insertion order. A nil keep
// matches everything.
func (t *Table[T]) Filter(keep func(id string, row T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		row := t.rows[id]
		if keep == nil || keep(id, row) {
			out = append(out, row)
		}
	}
	return out
}

// Find returns the most recently inserted record matching match.
func (t *Table[T]) Find(match func(id string, row T) bool) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.order) - 1; i >= 0; i-- {
		id := t.order[i]
		if match(id, t.rows[id]) {
			return t.rows[id], true
		}
	}
	var zero T
	return zero, false
}

// Len returns the number of records.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Reset empties the table and restarts ID generation.
func (t *Table[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[string]T)
	t.order = nil
	t.counter.Store(0)
}

// Snapshot returns a copy of all records keyed by ID.
func (t *Table[T]) Snapshot() map[string]T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		out[k] = v
	}
	return out
}

// Load replaces all records. IDs are sorted to keep the order deterministic.
func (t *Table[T]) Load(rows map[string]T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = make(map[string]T, len(rows))
	t.order = make([]string, 0, len(rows))
	for k, v := range rows {
		t.rows[k] = v
		t.order = append(t.order, k)
	}
	sort.Strings(t.order)
}

// MarshalJSON encodes the table as its snapshot map.
func (t *Table[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Snapshot())
}

// UnmarshalJSON replaces the table's contents from a snapshot map.
func (t *Table[T]) UnmarshalJSON(data []byte) error {
	var rows map[string]T
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	t.Load(rows)
	return nil
}

// Clock is a simulated clock: real time plus an adjustable offset.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock returns a clock with no offset.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the simulated time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Offset returns the current offset from real time.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Reset sets the offset back to zero.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}
