package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isosandbox/internal/renderer"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer("127.0.0.1:0")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatsReturnsLatest(t *testing.T) {
	s, ts := newTestServer(t)
	s.Publish(Snapshot{
		Stats: renderer.Stats{Frame: 7, Backend: "gpu", Triangles: 120, Capacity: 4096},
		FPS:   59.5,
		Field: "torus",
	})

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, uint64(7), got.Frame)
	assert.Equal(t, 120, got.Triangles)
	assert.Equal(t, "torus", got.Field)
	assert.InDelta(t, 59.5, got.FPS, 1e-9)
}

func TestStatsRejectsPost(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/stats", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPublishKeepsNewest(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	defer s.Stop()

	for i := range 100 {
		s.Publish(Snapshot{Stats: renderer.Stats{Frame: uint64(i)}})
	}
	assert.Equal(t, uint64(99), s.Latest().Frame)
}

func TestWebSocketStream(t *testing.T) {
	s, ts := newTestServer(t)
	s.Publish(Snapshot{Stats: renderer.Stats{Frame: 1}})

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, uint64(1), first.Frame, "new clients get the latest snapshot")

	s.Publish(Snapshot{Stats: renderer.Stats{Frame: 2, Triangles: 8}})
	// The first publish may still be in flight, so skip repeats of it
	var next Snapshot
	for next.Frame != 2 {
		require.NoError(t, conn.ReadJSON(&next))
	}
	assert.Equal(t, 8, next.Triangles)
}

func TestStopDisconnectsClients(t *testing.T) {
	s, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Snapshot
	require.NoError(t, conn.ReadJSON(&first))

	require.NoError(t, s.Stop())
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
