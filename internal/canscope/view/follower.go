package view

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/log"
)

// Follower prints every new trace row as it is appended and the monitor table
// on shutdown.
//
// Its observer never blocks the producer: inserts are queued without bound
// and printed by Start.
type Follower struct {
	w      io.Writer
	logs   *monitor.LogStore
	table  *monitor.AggregationStore
	handle monitor.Handle

	// queue holds rows in arrival order; nil marks a clear.
	mu    sync.Mutex
	queue []*monitor.LogEntry
	wake  chan struct{}
}

// NewFollower subscribes to logs right away so nothing appended before Start
// is missed. table may be nil, which skips the final summary.
func NewFollower(w io.Writer, logs *monitor.LogStore, table *monitor.AggregationStore) *Follower {
	f := &Follower{
		w:     w,
		logs:  logs,
		table: table,
		wake:  make(chan struct{}, 1),
	}
	f.handle = logs.Subscribe(monitor.ObserverFunc[*monitor.LogEntry](f.onChange))
	return f
}

func (f *Follower) onChange(c monitor.Change[*monitor.LogEntry]) {
	f.mu.Lock()
	switch c.Kind {
	case monitor.Insert:
		f.queue = append(f.queue, c.Row)
	case monitor.Delete:
		f.queue = append(f.queue, nil)
	}
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Start prints rows until ctx ends, then prints the monitor table.
func (f *Follower) Start(ctx context.Context) error {
	defer f.logs.Unsubscribe(f.handle)

	for {
		select {
		case <-f.wake:
			if err := f.flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			if err := f.flush(); err != nil {
				return err
			}
			if f.table != nil {
				return RenderMonitor(f.w, f.table.Rows())
			}
			return nil
		}
	}
}

func (f *Follower) flush() error {
	f.mu.Lock()
	batch := f.queue
	f.queue = nil
	f.mu.Unlock()

	for _, e := range batch {
		line := "-- trace cleared --"
		if e != nil {
			line = Line(e)
		}
		if _, err := fmt.Fprintln(f.w, line); err != nil {
			log.Error(err, "Follower output failed")
			return err
		}
	}
	return nil
}

// Line renders one trace row on a single line with fixed column widths.
func Line(e *monitor.LogEntry) string {
	cells := LogRow(e)
	return fmt.Sprintf("%10s  %-5s  %-9s  %3s  %s", cells...)
}
