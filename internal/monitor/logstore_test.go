package monitor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogStoreAppendAndGet(t *testing.T) {
	s := NewLogStore()
	rec := &recorder[*LogEntry]{}
	s.Subscribe(rec)

	var appended []*LogEntry
	for i := range 5 {
		e := NewTextEntry("notice", ClassInfo, int64(i))
		appended = append(appended, e)
		assert.Equal(t, i, s.Append(e))
	}

	require.Equal(t, 5, s.Size())
	for i, want := range appended {
		got, err := s.Get(i)
		require.NoError(t, err)
		assert.Same(t, want, got)
	}

	changes := rec.all()
	require.Len(t, changes, 5)
	for i, c := range changes {
		assert.Equal(t, Insert, c.Kind)
		assert.Equal(t, i, c.First)
		assert.Equal(t, i, c.Last)
		assert.Equal(t, i+1, c.Size)
		assert.Same(t, appended[i], c.Row)
	}
}

func TestLogStoreGetOutOfRange(t *testing.T) {
	s := NewLogStore()
	_, err := s.Get(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	s.Append(NewTextEntry("x", ClassInfo, 0))
	_, err = s.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLogStoreSlice(t *testing.T) {
	s := NewLogStore()
	for i := range 4 {
		s.Append(NewTextEntry("x", ClassInfo, int64(i)))
	}

	window, err := s.Slice(1, 3)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, int64(1), window[0].Timestamp())
	assert.Equal(t, int64(2), window[1].Timestamp())

	empty, err := s.Slice(4, 4)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.Slice(3, 5)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Slice(2, 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestLogStoreClear(t *testing.T) {
	s := NewLogStore()
	rec := &recorder[*LogEntry]{}
	s.Subscribe(rec)

	s.Clear()
	assert.Empty(t, rec.all(), "clearing an empty store must stay silent")

	for range 3 {
		s.Append(NewTextEntry("x", ClassInfo, 0))
	}
	s.Clear()

	changes := rec.all()
	require.Len(t, changes, 4)
	last := changes[3]
	assert.Equal(t, Delete, last.Kind)
	assert.Equal(t, 0, last.First)
	assert.Equal(t, 2, last.Last)
	assert.Equal(t, 0, last.Size)
	assert.Equal(t, 0, s.Size())

	// The index space restarts at zero.
	assert.Equal(t, 0, s.Append(NewTextEntry("y", ClassInfo, 0)))

	s.Clear()
	s.Clear()
	assert.Len(t, rec.all(), 6)
}

func TestLogStoreObserverOrder(t *testing.T) {
	s := NewLogStore()
	var order []string
	s.Subscribe(ObserverFunc[*LogEntry](func(Change[*LogEntry]) { order = append(order, "a") }))
	s.Subscribe(ObserverFunc[*LogEntry](func(Change[*LogEntry]) { order = append(order, "b") }))
	s.Subscribe(ObserverFunc[*LogEntry](func(Change[*LogEntry]) { order = append(order, "c") }))

	s.Append(NewTextEntry("x", ClassInfo, 0))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestLogStoreUnsubscribe(t *testing.T) {
	s := NewLogStore()
	first := &recorder[*LogEntry]{}
	second := &recorder[*LogEntry]{}

	var h Handle
	// The first observer removes the second while a delivery is running; the
	// running delivery must still reach it.
	s.Subscribe(ObserverFunc[*LogEntry](func(c Change[*LogEntry]) {
		first.OnChange(c)
		s.Unsubscribe(h)
	}))
	h = s.Subscribe(second)

	s.Append(NewTextEntry("x", ClassInfo, 0))
	s.Append(NewTextEntry("y", ClassInfo, 1))

	assert.Len(t, first.all(), 2)
	assert.Len(t, second.all(), 1)
	assert.False(t, s.Unsubscribe(h))
}

func TestLogStoreObserverMayRead(t *testing.T) {
	s := NewLogStore()
	var seen []int64
	s.Subscribe(ObserverFunc[*LogEntry](func(c Change[*LogEntry]) {
		e, err := s.Get(c.First)
		if err == nil {
			seen = append(seen, e.Timestamp())
		}
	}))

	s.Append(NewTextEntry("x", ClassInfo, 10))
	s.Append(NewTextEntry("y", ClassInfo, 20))
	assert.Equal(t, []int64{10, 20}, seen)
}

func TestLogStoreConcurrentAppend(t *testing.T) {
	const producers, perProducer = 8, 200

	s := NewLogStore()
	var (
		mu         sync.Mutex
		next       int
		ordered    = true
		mismatches int
	)
	s.Subscribe(ObserverFunc[*LogEntry](func(c Change[*LogEntry]) {
		live, err := s.Get(c.First)
		size := s.Size()

		mu.Lock()
		defer mu.Unlock()
		if c.First != next {
			ordered = false
		}
		if err != nil || live != c.Row || size != c.Size {
			mismatches++
		}
		next++
	}))

	indices := make(chan int, producers*perProducer)
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				indices <- s.Append(NewTextEntry("x", ClassInfo, int64(p)))
			}
		}()
	}
	wg.Wait()
	close(indices)

	seen := make(map[int]bool)
	for i := range indices {
		assert.False(t, seen[i], "index %d assigned twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, producers*perProducer, s.Size())
	assert.True(t, ordered, "notifications must follow append order")
	assert.Zero(t, mismatches, "notification disagrees with the live store")
}

func TestLogStoreClearWaitsForDelivery(t *testing.T) {
	s := NewLogStore()

	var (
		once  sync.Once
		done  = make(chan struct{})
		entry *LogEntry
		err   error
	)
	s.Subscribe(ObserverFunc[*LogEntry](func(c Change[*LogEntry]) {
		if c.Kind != Insert {
			return
		}
		once.Do(func() {
			go func() {
				s.Clear()
				close(done)
			}()
			time.Sleep(20 * time.Millisecond)
			entry, err = s.Get(c.First)
		})
	}))

	e := NewTextEntry("x", ClassInfo, 0)
	s.Append(e)
	<-done

	require.NoError(t, err)
	assert.Same(t, e, entry)
	assert.Equal(t, 0, s.Size())
}
