package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/autopeer-io/canscope/internal/canscope"
	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/can"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type statusResponse struct {
	Session     string `json:"session"`
	State       string `json:"state"`
	Device      string `json:"device,omitempty"`
	Elapsed     int64  `json:"elapsed"`
	LogSize     int    `json:"logSize"`
	MonitorSize int    `json:"monitorSize"`
}

type frameJSON struct {
	ID       uint32 `json:"id"`
	Extended bool   `json:"extended"`
	RTR      bool   `json:"rtr"`
	DLC      int    `json:"dlc"`
	Data     string `json:"data"`
}

type logEntryJSON struct {
	Index     int        `json:"index"`
	Timestamp int64      `json:"timestamp"`
	Class     string     `json:"class"`
	Frame     *frameJSON `json:"frame,omitempty"`
	Text      string     `json:"text,omitempty"`
}

type logResponse struct {
	Total   int            `json:"total"`
	Offset  int            `json:"offset"`
	Entries []logEntryJSON `json:"entries"`
}

type monitorRowJSON struct {
	Ordinal   int       `json:"ordinal"`
	Direction string    `json:"direction"`
	Count     uint64    `json:"count"`
	Period    int64     `json:"period"`
	Timestamp int64     `json:"timestamp"`
	Frame     frameJSON `json:"frame"`
}

type monitorResponse struct {
	Rows []monitorRowJSON `json:"rows"`
}

type sendRequest struct {
	Frame string `json:"frame"`
}

type resendRequest struct {
	Indices []int `json:"indices"`
}

type resendResponse struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
}

func toFrameJSON(f *can.Frame) frameJSON {
	return frameJSON{
		ID:       f.ID,
		Extended: f.Extended,
		RTR:      f.RTR,
		DLC:      f.DLC(),
		Data:     hex.EncodeToString(f.Data),
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	session := s.scope.Session()
	writeJSON(w, http.StatusOK, statusResponse{
		Session:     session.ID(),
		State:       s.scope.State(),
		Device:      s.scope.Info().String(),
		Elapsed:     session.Elapsed(),
		LogSize:     session.Log().Size(),
		MonitorSize: session.Monitor().Size(),
	})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) logEntries(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit = min(limit, maxLimit)

	store := s.scope.Session().Log()
	total := store.Size()
	from := min(offset, total)
	to := min(from+limit, total)

	entries, err := store.Slice(from, to)
	if errors.Is(err, monitor.ErrIndexOutOfRange) {
		// cleared between Size and Slice
		entries, total, from = nil, store.Size(), 0
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := logResponse{Total: total, Offset: from, Entries: make([]logEntryJSON, 0, len(entries))}
	for i, e := range entries {
		j := logEntryJSON{
			Index:     from + i,
			Timestamp: e.Timestamp(),
			Class:     e.Class().String(),
			Text:      e.Text(),
		}
		if f := e.Frame(); f != nil {
			fj := toFrameJSON(f)
			j.Frame = &fj
		}
		resp.Entries = append(resp.Entries, j)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) monitorRows(w http.ResponseWriter, r *http.Request) {
	rows := s.scope.Session().Monitor().Rows()

	resp := monitorResponse{Rows: make([]monitorRowJSON, 0, len(rows))}
	for i, m := range rows {
		dir := "in"
		if m.Key.Outbound() {
			dir = "out"
		}
		resp.Rows = append(resp.Rows, monitorRowJSON{
			Ordinal:   i,
			Direction: dir,
			Count:     m.Count,
			Period:    m.Period,
			Timestamp: m.Last.Timestamp(),
			Frame:     toFrameJSON(m.Last.Frame()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) sendFrame(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	frame, err := can.ParseFrame(req.Frame)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch err := s.scope.Send(r.Context(), frame); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, toFrameJSON(frame))
	case errors.Is(err, canscope.ErrNotConnected):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.scope.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	if s.scope.Connected() {
		writeError(w, http.StatusConflict, errors.New("already connected"))
		return
	}
	if err := s.scope.Connect(r.Context()); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, canscope.ErrBusy) {
			code = http.StatusConflict
		}
		writeError(w, code, err)
		return
	}
	s.status(w, r)
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.scope.Disconnect(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	s.status(w, r)
}

// resend sends the IN/OUT frames of the selected trace rows again.
func (s *Server) resend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if len(req.Indices) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no indices given"))
		return
	}

	sent, err := s.scope.Resend(r.Context(), req.Indices)
	switch {
	case err == nil:
	case errors.Is(err, canscope.ErrNotConnected):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, monitor.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, err)
		return
	default:
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resendResponse{Sent: sent, Skipped: len(req.Indices) - sent})
}

// copyFrames returns the selected IN/OUT rows as SLCAN text, one per line.
func (s *Server) copyFrames(w http.ResponseWriter, r *http.Request) {
	indices, err := queryIndices(r, "indices")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	frames, err := s.scope.Session().Frames(indices)
	if errors.Is(err, monitor.ErrIndexOutOfRange) {
		writeError(w, http.StatusNotFound, err)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.String())
		b.WriteByte('\n')
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

// queryIndices parses a comma separated list such as "0,2,5".
func queryIndices(r *http.Request, name string) ([]int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	parts := strings.Split(raw, ",")
	indices := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid %s entry %q", name, p)
		}
		indices = append(indices, i)
	}
	return indices, nil
}
