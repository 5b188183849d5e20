package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/canscope/internal/canscope"
	"github.com/autopeer-io/canscope/internal/canscope/transport"
	"github.com/autopeer-io/canscope/internal/monitor"
	"github.com/autopeer-io/canscope/pkg/can"
	"github.com/autopeer-io/canscope/pkg/options"
)

func newTestServer(t *testing.T) (*Server, *canscope.Scope, *transport.Loopback) {
	t.Helper()
	lb := transport.NewLoopback(16)
	scope := canscope.NewScope(lb, canscope.NewSession(nil), nil)
	t.Cleanup(func() {
		if scope.Connected() {
			_ = scope.Disconnect()
		}
	})
	return NewServer(options.NewHttpOptions(), scope), scope, lb
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestProbes(t *testing.T) {
	s, scope, _ := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)

	rec := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), canscope.StateDisconnected)

	require.NoError(t, scope.Connect(context.Background()))
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "canscope_connection_status")
}

func TestSendFrame(t *testing.T) {
	s, scope, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/frames", `{"frame":"t1232aabb"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, scope.Connect(context.Background()))

	rec = do(t, s, http.MethodPost, "/api/v1/frames", `{"frame":"t1232aabb"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got frameJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, frameJSON{ID: 0x123, DLC: 2, Data: "aabb"}, got)

	rec = do(t, s, http.MethodPost, "/api/v1/frames", `{"frame":"t12"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/frames", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogAndMonitor(t *testing.T) {
	s, scope, lb := newTestServer(t)
	require.NoError(t, scope.Connect(context.Background()))

	for _, id := range []uint32{0x402, 0x400, 0x402} {
		require.NoError(t, lb.Inject(context.Background(), &can.Frame{ID: id, Data: []byte{0x01}}))
	}
	require.Eventually(t, func() bool { return scope.Session().Log().Size() == 4 }, time.Second, 5*time.Millisecond)

	rec := do(t, s, http.MethodGet, "/api/v1/log?offset=1&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var logs logResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Equal(t, 4, logs.Total)
	require.Len(t, logs.Entries, 2)
	assert.Equal(t, 1, logs.Entries[0].Index)
	assert.Equal(t, "IN", logs.Entries[0].Class)
	assert.Equal(t, uint32(0x402), logs.Entries[0].Frame.ID)

	rec = do(t, s, http.MethodGet, "/api/v1/log?offset=10", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Empty(t, logs.Entries)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/log?limit=-1", "").Code)

	rec = do(t, s, http.MethodGet, "/api/v1/monitor", "")
	var mon monitorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mon))
	require.Len(t, mon.Rows, 2)
	assert.Equal(t, uint32(0x400), mon.Rows[0].Frame.ID)
	assert.Equal(t, uint32(0x402), mon.Rows[1].Frame.ID)
	assert.Equal(t, uint64(2), mon.Rows[1].Count)
	assert.Equal(t, "in", mon.Rows[1].Direction)
}

func TestResendLogRows(t *testing.T) {
	s, scope, lb := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/log/resend", `{"indices":[0]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, scope.Connect(context.Background()))
	require.NoError(t, lb.Inject(context.Background(), &can.Frame{ID: 0x400, Data: []byte{0x01}}))
	log := scope.Session().Log()
	require.Eventually(t, func() bool { return log.Size() == 2 }, time.Second, 5*time.Millisecond)

	// Row 0 is the INFO notice for the connect and is skipped.
	rec = do(t, s, http.MethodPost, "/api/v1/log/resend", `{"indices":[0,1]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var got resendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, resendResponse{Sent: 1, Skipped: 1}, got)

	// OUT row for the resend, then the loopback echo.
	require.Eventually(t, func() bool { return log.Size() == 4 }, time.Second, 5*time.Millisecond)
	out, err := log.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "OUT", out.Class().String())
	assert.Equal(t, uint32(0x400), out.Frame().ID)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/log/resend", `{"indices":[1,99]}`).Code)
	assert.Equal(t, 4, log.Size(), "nothing is sent when an index is out of range")
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/log/resend", `{"indices":[]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/log/resend", `nope`).Code)
}

func TestCopyLogRows(t *testing.T) {
	s, scope, _ := newTestServer(t)
	session := scope.Session()
	session.Info("hello")
	session.Record(&can.Frame{ID: 0x123, Data: []byte{0xaa, 0xbb}}, monitor.ClassIn)
	session.Error(errors.New("bus error"))
	session.Record(&can.Frame{ID: 0x1abcdef, Extended: true, RTR: true}, monitor.ClassOut)

	rec := do(t, s, http.MethodGet, "/api/v1/log/copy?indices=0,1,2,3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "t1232aabb\nR01abcdef0\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = do(t, s, http.MethodGet, "/api/v1/log/copy?indices=3,1", "")
	assert.Equal(t, "R01abcdef0\nt1232aabb\n", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/log/copy?indices=0,2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/log/copy?indices=1,4", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/log/copy?indices=1,x", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/log/copy", "").Code)
}

func TestClearAndStatus(t *testing.T) {
	s, scope, _ := newTestServer(t)
	scope.Session().Info("hello")
	before := scope.Session().ID()

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/v1/clear", "").Code)

	rec := do(t, s, http.MethodGet, "/api/v1/status", "")
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.NotEqual(t, before, st.Session)
	assert.Equal(t, 0, st.LogSize)
	assert.Equal(t, canscope.StateDisconnected, st.State)
}

func TestConnectDisconnect(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/connect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, canscope.StateConnected, st.State)
	assert.Equal(t, "loopback", st.Device)

	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/v1/connect", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/disconnect", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, s, http.MethodPost, "/api/v1/disconnect", "").Code)
}

func TestStartDisabled(t *testing.T) {
	opts := options.NewHttpOptions()
	opts.Enabled = false
	s := NewServer(opts, canscope.NewScope(transport.NewLoopback(1), canscope.NewSession(nil), nil))
	assert.NoError(t, s.Start(context.Background()))
}
