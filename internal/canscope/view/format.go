// Package view renders the trace and the monitor table as text.
package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/can"
)

// RemoteRequest is shown in the data column of remote frames.
const RemoteRequest = "Remote Transmission Request"

// Column titles.
var (
	LogHeader     = []any{"TIME (MS)", "TYPE", "ID", "DLC", "DATA"}
	MonitorHeader = []any{"PERIOD", "COUNT", "TYPE", "ID", "DLC", "DATA"}
)

// ID renders an identifier: three hex digits for standard frames, eight for
// extended ones, suffixed with h.
func ID(f *can.Frame) string {
	if f.Extended {
		return fmt.Sprintf("%08xh", f.ID)
	}
	return fmt.Sprintf("%03xh", f.ID)
}

// Data renders the payload as space separated hex bytes.
func Data(f *can.Frame) string {
	if f.RTR {
		return RemoteRequest
	}
	parts := make([]string, len(f.Data))
	for i, b := range f.Data {
		parts[i] = fmt.Sprintf("%02x", b)
	}
	return strings.Join(parts, " ")
}

// LogRow returns the cells of one trace row. Notices leave the time, id and
// DLC cells empty and carry their text in the data cell.
func LogRow(e *monitor.LogEntry) []any {
	f := e.Frame()
	if f == nil {
		return []any{"", e.Class().String(), "", "", e.Text()}
	}
	return []any{strconv.FormatInt(e.Timestamp(), 10), e.Class().String(), ID(f), strconv.Itoa(f.DLC()), Data(f)}
}

// MonitorRow returns the cells of one monitor row.
func MonitorRow(m monitor.MonitorEntry) []any {
	f := m.Last.Frame()
	return []any{
		strconv.FormatInt(m.Period, 10),
		strconv.FormatUint(m.Count, 10),
		m.Last.Class().String(),
		ID(f),
		strconv.Itoa(f.DLC()),
		Data(f),
	}
}
