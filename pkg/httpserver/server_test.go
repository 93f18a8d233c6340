package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/ccsniffer/pkg/cc2531"
	"github.com/herlein/ccsniffer/pkg/metrics"
	"github.com/herlein/ccsniffer/pkg/session"
)

type fakeStatus struct {
	sniffing bool
	stats    session.Stats
}

func (f *fakeStatus) Sniffing() bool       { return f.sniffing }
func (f *fakeStatus) Stats() session.Stats { return f.stats }

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.NewCaptureMetrics(reg)
	srv := New(":0", "/metrics", metrics.Handler(reg), &fakeStatus{sniffing: true})

	assert.Equal(t, http.StatusOK, serve(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)

	rr := serve(srv, "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ccsniffer_packets_total")
}

func TestReadyzNotReady(t *testing.T) {
	srv := New(":0", "", nil, &fakeStatus{})

	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, "/metrics").Code)
}

func TestStats(t *testing.T) {
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	status := &fakeStatus{sniffing: true}
	status.stats.Update(&cc2531.Packet{RSSI: -70, LQI: 100, Payload: []byte{1, 2, 3}}, first)
	status.stats.Update(&cc2531.Packet{RSSI: -50, LQI: 200, Payload: []byte{4}}, first.Add(time.Second))

	rr := serve(New(":0", "", nil, status), "/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var body statsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Sniffing)
	assert.Equal(t, uint64(2), body.Packets)
	assert.Equal(t, uint64(4), body.Bytes)
	assert.Equal(t, int8(-70), body.MinRSSI)
	assert.Equal(t, int8(-50), body.MaxRSSI)
	assert.InDelta(t, -60.0, body.SmoothedRSSI, 1e-9)
	assert.InDelta(t, 150.0, body.MeanLQI, 1e-9)
	require.NotNil(t, body.FirstSeen)
	assert.True(t, first.Equal(*body.FirstSeen))
	require.NotNil(t, body.LastSeen)
	assert.True(t, first.Add(time.Second).Equal(*body.LastSeen))
}

func TestStatsBeforeFirstFrame(t *testing.T) {
	rr := serve(New(":0", "", nil, &fakeStatus{}), "/stats")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "first_seen")
	assert.Contains(t, rr.Body.String(), `"packets":0`)
}

func TestNoCaptureStatus(t *testing.T) {
	srv := New(":0", "", nil, nil)
	assert.Equal(t, http.StatusOK, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/stats").Code)
}
