package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaar/masaar-node/pkg/crypto"
	"github.com/masaar/masaar-node/pkg/metrics"
	"github.com/masaar/masaar-node/pkg/network"
	"github.com/masaar/masaar-node/pkg/protocol"
)

func newTestServer(t *testing.T, id string) (*Server, *network.Node) {
	t.Helper()

	m := metrics.New()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	n, err := network.NewNode(id, network.Options{Metrics: m})
	require.NoError(t, err)

	server, err := NewServer(n, DefaultConfig(), reg)
	require.NoError(t, err)
	return server, n
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAPINodeID(t *testing.T) {
	server, _ := newTestServer(t, "")

	t.Run("Default", func(t *testing.T) {
		w := doJSON(t, server, "GET", "/api/v1/node/id", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, IDResponse{ID: "unknown"}, decode[IDResponse](t, w))
	})

	t.Run("Set", func(t *testing.T) {
		w := doJSON(t, server, "PUT", "/api/v1/node/id", map[string]string{"id": "N1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, IDResponse{ID: "N1", Set: true}, decode[IDResponse](t, w))

		w = doJSON(t, server, "POST", "/api/v1/messages/hello", nil)
		resp := decode[WireResponse](t, w)
		assert.Equal(t, `{"type":"HELLO","src":"N1","version":"1.0"}`, resp.Wire)
	})

	t.Run("MissingID", func(t *testing.T) {
		w := doJSON(t, server, "PUT", "/api/v1/node/id", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAPIBuildMessages(t *testing.T) {
	server, _ := newTestServer(t, "N1")

	t.Run("Data", func(t *testing.T) {
		w := doJSON(t, server, "POST", "/api/v1/messages/data", DataRequest{Payload: "hi", Dst: "N2"})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[WireResponse](t, w)
		assert.Equal(t, `{"type":"DATA","src":"N1","dst":"N2","payload":"hi","seq":0}`, resp.Wire)
		assert.Len(t, resp.Fingerprint, 64)
	})

	t.Run("DataWithSeq", func(t *testing.T) {
		seq := uint64(12)
		w := doJSON(t, server, "POST", "/api/v1/messages/data", DataRequest{Payload: "hi", Dst: "N2", Seq: &seq})
		resp := decode[WireResponse](t, w)
		assert.Equal(t, uint64(12), protocol.ParseMessage(resp.Wire).Seq)
	})

	t.Run("Reliable", func(t *testing.T) {
		w := doJSON(t, server, "POST", "/api/v1/messages/data", DataRequest{Payload: "hi", Dst: "N2", Reliable: true})
		resp := decode[WireResponse](t, w)
		assert.Equal(t, uint64(1), resp.Seq)

		w = doJSON(t, server, "GET", "/api/v1/reliability/pending", nil)
		var pending struct {
			Count   int            `json:"count"`
			Pending []PendingEntry `json:"pending"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
		assert.Equal(t, 1, pending.Count)
		assert.Equal(t, "PENDING", pending.Pending[0].State)
		assert.Equal(t, "N2", pending.Pending[0].Dst)
	})

	t.Run("ReliableRejectsSeq", func(t *testing.T) {
		seq := uint64(3)
		w := doJSON(t, server, "POST", "/api/v1/messages/data", DataRequest{Payload: "x", Dst: "N2", Seq: &seq, Reliable: true})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("AckNack", func(t *testing.T) {
		w := doJSON(t, server, "POST", "/api/v1/messages/ack", AckRequest{Dst: "N2", Seq: 5})
		assert.Equal(t, `{"type":"ACK","dst":"N2","seq":5}`, decode[WireResponse](t, w).Wire)

		w = doJSON(t, server, "POST", "/api/v1/messages/nack", AckRequest{Dst: "N2", Seq: 5, Reason: "busy"})
		assert.Equal(t, `{"type":"NACK","dst":"N2","seq":5,"reason":"busy"}`, decode[WireResponse](t, w).Wire)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/messages/data", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request", decode[ErrorResponse](t, w).Error)
	})
}

func TestAPIIncoming(t *testing.T) {
	server, _ := newTestServer(t, "N2")
	sender, _ := newTestServer(t, "N1")

	tests := []struct {
		name    string
		wire    string
		outcome string
	}{
		{"empty", "", "DROP:INVALID"},
		{"garbage", "not json at all", "DROP:INVALID"},
		{"hello", `{"type":"HELLO","src":"N1","version":"1.0"}`, "DROP:HELLO_TOP"},
		{"data", `{"type":"DATA","src":"N1","dst":"N2","payload":"hi there","seq":0}`, "DELIVER:hi there"},
		{"unmatched ack", `{"type":"ACK","dst":"N2","seq":5}`, "DROP:ACK_UNMATCHED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, server, "POST", "/api/v1/incoming", IncomingRequest{Wire: tt.wire})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.outcome, decode[IncomingResponse](t, w).Outcome)
		})
	}

	t.Run("ReliableRoundTrip", func(t *testing.T) {
		w := doJSON(t, sender, "POST", "/api/v1/messages/data", DataRequest{Payload: "ping", Dst: "N2", Reliable: true})
		data := decode[WireResponse](t, w)

		w = doJSON(t, server, "POST", "/api/v1/incoming", IncomingRequest{Wire: data.Wire})
		resp := decode[IncomingResponse](t, w)
		assert.Equal(t, "DELIVER", resp.Action)
		assert.Equal(t, "ping", resp.Payload)
		assert.Equal(t, "N1", resp.Src)
		require.NotEmpty(t, resp.Reply)

		w = doJSON(t, sender, "POST", "/api/v1/incoming", IncomingRequest{Wire: resp.Reply})
		assert.Equal(t, "DROP:ACKED", decode[IncomingResponse](t, w).Outcome)
	})
}

func TestAPIIncomingFingerprint(t *testing.T) {
	server, _ := newTestServer(t, "N2")

	wire := `{"type":"DATA","src":"N1","dst":"N2","payload":"hi there","seq":0}`

	w := doJSON(t, server, "POST", "/api/v1/incoming", IncomingRequest{Wire: wire, Fingerprint: crypto.Fingerprint(wire)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DELIVER:hi there", decode[IncomingResponse](t, w).Outcome)

	altered := strings.Replace(wire, "hi there", "hi thera", 1)
	w = doJSON(t, server, "POST", "/api/v1/incoming", IncomingRequest{Wire: altered, Fingerprint: crypto.Fingerprint(wire)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "wire does not match fingerprint", decode[ErrorResponse](t, w).Message)

	stats := decode[map[string]interface{}](t, doJSON(t, server, "GET", "/api/v1/node/stats", nil))
	assert.EqualValues(t, 1, stats["received"])
}

func TestServerStartStop(t *testing.T) {
	n, err := network.NewNode("N1", network.Options{})
	require.NoError(t, err)

	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 0

	server, err := NewServer(n, config, prometheus.NewRegistry())
	require.NoError(t, err)

	// Stop before Start has nothing to shut down
	assert.NoError(t, server.Stop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAPIHealthAndMetrics(t *testing.T) {
	server, _ := newTestServer(t, "N1")

	w := doJSON(t, server, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	doJSON(t, server, "POST", "/api/v1/incoming", IncomingRequest{Wire: ""})

	w = doJSON(t, server, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `masaar_routing_decisions_total{action="DROP",reason="INVALID"} 1`)

	w = doJSON(t, server, "GET", "/api/v1/node/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":1`)
}

func TestAPICORSPreflight(t *testing.T) {
	server, _ := newTestServer(t, "N1")

	w := doJSON(t, server, "OPTIONS", "/api/v1/incoming", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"), "limits are per IP")
}

func TestAPIRateLimited(t *testing.T) {
	m := metrics.New()
	n, err := network.NewNode("N1", network.Options{Metrics: m})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RateLimit = 1
	server, err := NewServer(n, cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, doJSON(t, server, "GET", "/health", nil).Code)
	w := doJSON(t, server, "GET", "/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", decode[ErrorResponse](t, w).Error)
}
