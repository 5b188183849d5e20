package monitor

import (
	"sync"
)

// LogStore is the append-only trace of a session.
type LogStore struct {
	// write serializes mutations together with their notification.
	write sync.Mutex

	mu      sync.RWMutex
	entries []*LogEntry

	feed feed[*LogEntry]
}

// NewLogStore returns an empty trace.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// Append adds e at the tail and returns its index. Observers see an Insert
// covering exactly that index before Append returns.
func (s *LogStore) Append(e *LogEntry) int {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	index := len(s.entries)
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	s.feed.notify(Change[*LogEntry]{
		Kind:  Insert,
		First: index,
		Last:  index,
		Row:   e,
		Size:  index + 1,
	})
	return index
}

// Get returns the entry at index.
func (s *LogStore) Get(index int) (*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.entries) {
		return nil, outOfRange(index, len(s.entries))
	}
	return s.entries[index], nil
}

// Slice returns a copy of the entries in [from, to).
func (s *LogStore) Slice(from, to int) ([]*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if from < 0 || from > n {
		return nil, outOfRange(from, n)
	}
	if to < from || to > n {
		return nil, outOfRange(to, n)
	}
	out := make([]*LogEntry, to-from)
	copy(out, s.entries[from:to])
	return out, nil
}

// Size returns the number of entries.
func (s *LogStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear empties the trace. An empty trace is left alone and nobody is
// notified; otherwise observers get a single Delete over the old index range.
func (s *LogStore) Clear() {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	n := len(s.entries)
	s.entries = nil
	s.mu.Unlock()

	if n == 0 {
		return
	}
	s.feed.notify(Change[*LogEntry]{
		Kind:  Delete,
		First: 0,
		Last:  n - 1,
	})
}

// Subscribe registers o for every later change.
func (s *LogStore) Subscribe(o Observer[*LogEntry]) Handle {
	return s.feed.subscribe(o)
}

// Unsubscribe removes a registration. A delivery already in progress still
// reaches it. It reports whether h was registered.
func (s *LogStore) Unsubscribe(h Handle) bool {
	return s.feed.unsubscribe(h)
}
