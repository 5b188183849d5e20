package monitor

import (
	"slices"
	"sync"
)

// Key identifies one aggregation series: the frame id shifted left by two,
// bit 0 set for extended ids and bit 1 set for outbound traffic. The same id
// seen as standard and extended, or inbound and outbound, never merges.
type Key uint64

const (
	keyExtended Key = 1 << 0
	keyOutbound Key = 1 << 1
)

// KeyOf derives the aggregation key of e. ok is false for entries that do not
// take part in aggregation.
func KeyOf(e *LogEntry) (key Key, ok bool) {
	if !e.Aggregatable() {
		return 0, false
	}
	f := e.Frame()
	key = Key(f.ID) << 2
	if f.Extended {
		key |= keyExtended
	}
	if e.Class() == ClassOut {
		key |= keyOutbound
	}
	return key, true
}

// ID returns the frame identifier encoded in the key.
func (k Key) ID() uint32 { return uint32(k >> 2) }

// Extended reports whether the key belongs to an extended id.
func (k Key) Extended() bool { return k&keyExtended != 0 }

// Outbound reports whether the key tracks sent frames.
func (k Key) Outbound() bool { return k&keyOutbound != 0 }

// MonitorEntry is the rolling summary of one key. Values handed out by the
// store are copies; Last is shared and read-only.
type MonitorEntry struct {
	Key Key
	// Last is the most recent entry merged into this key.
	Last *LogEntry
	// Count is the number of entries merged so far, starting at 1.
	Count uint64
	// Period is the timestamp of Last minus the timestamp of the entry it
	// replaced, in milliseconds. It is 0 for the first occurrence and may be
	// negative when timestamps go backwards.
	Period int64
}

// AggregationStore keeps one MonitorEntry per key in ascending key order.
type AggregationStore struct {
	// write serializes mutations together with their notification.
	write sync.Mutex

	mu   sync.RWMutex
	keys []Key // sorted ascending
	rows map[Key]*MonitorEntry

	feed feed[MonitorEntry]
}

// NewAggregationStore returns an empty store.
func NewAggregationStore() *AggregationStore {
	return &AggregationStore{rows: make(map[Key]*MonitorEntry)}
}

// Ingest merges e into its series. Entries that are not inbound or outbound
// frames are ignored without notification. A new key is announced as Insert,
// a known key as Update, both at the key's current ordinal.
func (s *AggregationStore) Ingest(e *LogEntry) {
	key, ok := KeyOf(e)
	if !ok {
		return
	}

	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	if s.rows == nil {
		s.rows = make(map[Key]*MonitorEntry)
	}

	var kind ChangeKind
	row, found := s.rows[key]
	if found {
		row.Period = e.Timestamp() - row.Last.Timestamp()
		row.Last = e
		row.Count++
		kind = Update
	} else {
		row = &MonitorEntry{Key: key, Last: e, Count: 1}
		s.rows[key] = row
		pos, _ := slices.BinarySearch(s.keys, key)
		s.keys = slices.Insert(s.keys, pos, key)
		kind = Insert
	}

	ordinal := s.ordinal(key)
	c := Change[MonitorEntry]{
		Kind:  kind,
		First: ordinal,
		Last:  ordinal,
		Row:   *row,
		Size:  len(s.keys),
	}
	s.mu.Unlock()

	s.feed.notify(c)
}

// ordinal is the number of present keys strictly less than key.
func (s *AggregationStore) ordinal(key Key) int {
	pos, _ := slices.BinarySearch(s.keys, key)
	return pos
}

// RowAt returns a copy of the row with the given rank.
func (s *AggregationStore) RowAt(ordinal int) (MonitorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ordinal < 0 || ordinal >= len(s.keys) {
		return MonitorEntry{}, outOfRange(ordinal, len(s.keys))
	}
	return *s.rows[s.keys[ordinal]], nil
}

// Lookup returns a copy of the row for key.
func (s *AggregationStore) Lookup(key Key) (MonitorEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return MonitorEntry{}, false
	}
	return *row, true
}

// Rows returns copies of all rows in ascending key order.
func (s *AggregationStore) Rows() []MonitorEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MonitorEntry, len(s.keys))
	for i, k := range s.keys {
		out[i] = *s.rows[k]
	}
	return out
}

// Size returns the number of distinct keys.
func (s *AggregationStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Clear drops every row. Same contract as LogStore.Clear, in ordinal terms.
func (s *AggregationStore) Clear() {
	s.write.Lock()
	defer s.write.Unlock()

	s.mu.Lock()
	n := len(s.keys)
	s.keys = nil
	s.rows = make(map[Key]*MonitorEntry)
	s.mu.Unlock()

	if n == 0 {
		return
	}
	s.feed.notify(Change[MonitorEntry]{
		Kind:  Delete,
		First: 0,
		Last:  n - 1,
	})
}

// Subscribe registers o for every later change.
func (s *AggregationStore) Subscribe(o Observer[MonitorEntry]) Handle {
	return s.feed.subscribe(o)
}

// Unsubscribe removes a registration. It reports whether h was registered.
func (s *AggregationStore) Unsubscribe(h Handle) bool {
	return s.feed.unsubscribe(h)
}
