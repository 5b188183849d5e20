package monitor

import (
	"sync"

	"github.com/autopeer-io/canscope/pkg/can"
)

// recorder collects every change it is handed.
type recorder[R any] struct {
	mu      sync.Mutex
	changes []Change[R]
}

func (r *recorder[R]) OnChange(c Change[R]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder[R]) all() []Change[R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change[R], len(r.changes))
	copy(out, r.changes)
	return out
}

func frameEntry(id uint32, extended bool, class Class, ts int64) *LogEntry {
	return NewFrameEntry(&can.Frame{ID: id, Extended: extended, Data: []byte{byte(ts)}}, class, ts)
}
