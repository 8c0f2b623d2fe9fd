package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/workerbridge/workerbridge/internal/api"
	"github.com/workerbridge/workerbridge/internal/bridge"
	"github.com/workerbridge/workerbridge/internal/frame"
)

// --- test helpers -----------------------------------------------------------

// echoChannel is a worker stand-in: every operation it receives is
// answered according to the respond function.
type echoChannel struct {
	b       *bridge.Bridge
	respond func(op *frame.Operation) []byte

	mu   sync.Mutex
	seen []string
}

func (c *echoChannel) Transmit(raw []byte) error {
	f, err := frame.Decode(raw)
	if err != nil {
		return err
	}
	op, ok := f.(*frame.Operation)
	if !ok {
		return nil
	}
	c.mu.Lock()
	c.seen = append(c.seen, op.Kind)
	c.mu.Unlock()

	if c.respond != nil {
		go c.b.OnFrame(c, c.respond(op))
	}
	return nil
}

func (c *echoChannel) Close() error { return nil }

func newBridge(t *testing.T, opts bridge.Options) *bridge.Bridge {
	t.Helper()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bridge.New(opts)
	t.Cleanup(b.Close)
	return b
}

// attachEcho attaches an echoChannel that resolves every operation with
// the given data.
func attachEcho(t *testing.T, b *bridge.Bridge, data string) *echoChannel {
	t.Helper()
	ch := &echoChannel{b: b}
	ch.respond = func(op *frame.Operation) []byte {
		res, err := json.Marshal(map[string]any{
			"type": "result", "id": op.ID, "success": true, "data": data,
		})
		if err != nil {
			t.Errorf("marshal result: %v", err)
		}
		return res
	}
	b.OnFrame(ch, []byte(`{"type":"handshake","worker":"echo"}`))
	if !b.Health().Attached {
		t.Fatal("echo worker did not attach")
	}
	return ch
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	var m map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp, m
}

// --- tests ------------------------------------------------------------------

func TestHealth_Unattached(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	resp, m := get(t, srv, "/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if m["attached"] != false {
		t.Errorf("attached: got %v, want false", m["attached"])
	}
	if m["grade"] != "unhealthy" {
		t.Errorf("grade: got %v, want unhealthy", m["grade"])
	}
}

func TestHealth_Attached(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	attachEcho(t, b, `"ok"`)
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	_, m := get(t, srv, "/api/v1/health")
	if m["attached"] != true {
		t.Errorf("attached: got %v, want true", m["attached"])
	}
	if m["worker"] != "echo" {
		t.Errorf("worker: got %v, want echo", m["worker"])
	}
}

func TestQueue_ReportsQueuedKinds(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	go b.Send(context.Background(), "export_png", nil) //nolint:errcheck
	deadline := time.Now().Add(2 * time.Second)
	for b.QueueStatus().Length == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	_, m := get(t, srv, "/api/v1/queue")
	if m["length"] != float64(1) {
		t.Errorf("length: got %v, want 1", m["length"])
	}
	kinds, ok := m["kinds"].([]any)
	if !ok || len(kinds) != 1 || kinds[0] != "export_png" {
		t.Errorf("kinds: got %v", m["kinds"])
	}
}

func TestOperations_RoundTrip(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	attachEcho(t, b, `{"nodes":2}`)
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/operations", "application/json",
		strings.NewReader(`{"kind":"get_selection","payload":{"page":"1"}}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status: got %d (%s), want 200", resp.StatusCode, body)
	}
	var out api.OperationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != "get_selection" {
		t.Errorf("kind: got %q", out.Kind)
	}
	if !strings.Contains(string(out.Data), "nodes") {
		t.Errorf("data: got %s", out.Data)
	}
}

func TestOperations_ValidatesRequest(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing kind", `{"payload":{}}`, http.StatusBadRequest},
		{"invalid json", `{{{`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/operations", "application/json",
				strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestOperations_TimeoutMapsTo504(t *testing.T) {
	b := newBridge(t, bridge.Options{
		Timeouts: bridge.TimeoutPolicy{Default: 20 * time.Millisecond},
	})
	// Attach a worker that never answers.
	ch := &echoChannel{b: b}
	b.OnFrame(ch, []byte(`{"type":"handshake","worker":"mute"}`))

	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/operations", "application/json",
		strings.NewReader(`{"kind":"slow"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status: got %d, want 504", resp.StatusCode)
	}
}

func TestStats_CountsSettledOperations(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	attachEcho(t, b, `"done"`)
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	if _, err := b.Send(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, m := get(t, srv, "/api/v1/stats")
	if m["success_count"] != float64(1) {
		t.Errorf("success_count: got %v, want 1", m["success_count"])
	}
}

func TestMetrics_PrometheusExposition(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	attachEcho(t, b, `"done"`)
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	if _, err := b.Send(context.Background(), "ping", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	text := string(body)
	for _, want := range []string{
		`bridge_requests_total{outcome="success"} 1`,
		"bridge_worker_attached 1",
		"bridge_queue_depth 0",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q\n%s", want, text)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	b := newBridge(t, bridge.Options{})
	srv := httptest.NewServer(api.New(b))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/health", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}
