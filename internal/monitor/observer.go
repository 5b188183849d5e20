package monitor

import (
	"slices"
	"sync"
)

// ChangeKind is the kind of mutation a Change describes.
type ChangeKind int

const (
	Insert ChangeKind = iota
	Update
	Delete
)

func (k ChangeKind) String() string {
	switch k {
	case Insert:
		return "INSERT"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Change describes one applied mutation. First and Last are inclusive and
// expressed in append index (LogStore) or ordinal rank (AggregationStore).
// Insert and Update always cover a single position; Delete is only produced by
// Clear and may cover many.
//
// Row is a snapshot of the affected row for Insert and Update and the zero
// value for Delete. Size is the number of rows right after the mutation.
type Change[R any] struct {
	Kind  ChangeKind
	First int
	Last  int
	Row   R
	Size  int
}

// Observer receives store changes.
//
// OnChange runs synchronously on the goroutine that mutated the store, after
// the mutation has been applied and before the next mutation of that store
// can start. The store is therefore exactly in the state the Change
// describes, and reads (Get, Slice, RowAt, Lookup, Rows, Size) inside the
// callback see that state. A slow observer stalls every producer of the
// store. Calling a mutator of the observed store from inside the callback
// deadlocks.
type Observer[R any] interface {
	OnChange(Change[R])
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc[R any] func(Change[R])

func (f ObserverFunc[R]) OnChange(c Change[R]) { f(c) }

// Handle identifies a subscription.
type Handle uint64

type registration[R any] struct {
	handle   Handle
	observer Observer[R]
}

// feed keeps the registration list of a store. The slice is replaced, never
// modified in place, so a delivery finishes with the observers it started
// with.
type feed[R any] struct {
	mu   sync.Mutex
	next Handle
	regs []registration[R]
}

func (f *feed[R]) subscribe(o Observer[R]) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	regs := make([]registration[R], len(f.regs), len(f.regs)+1)
	copy(regs, f.regs)
	f.regs = append(regs, registration[R]{handle: f.next, observer: o})
	return f.next
}

func (f *feed[R]) unsubscribe(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := slices.IndexFunc(f.regs, func(r registration[R]) bool { return r.handle == h })
	if i < 0 {
		return false
	}
	f.regs = slices.Delete(slices.Clone(f.regs), i, i+1)
	return true
}

// notify hands c to every registered observer in registration order. The
// caller holds the store's write lock but not its data lock.
func (f *feed[R]) notify(c Change[R]) {
	f.mu.Lock()
	regs := f.regs
	f.mu.Unlock()

	for _, r := range regs {
		r.observer.OnChange(c)
	}
}
