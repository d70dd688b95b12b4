package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"llmed/internal/httpapi"
	"llmed/internal/llm/llmfake"
	"llmed/internal/manager"
)

const manifestJSON = `[
	{"type": "llm", "name": "chat", "model": "chat.gguf"},
	{"type": "embedding", "name": "embed", "model": "embed.gguf"},
	{"type": "multimodal", "name": "vision", "model": "vl.gguf", "mmproj": "mmproj.gguf"}
]`

// writeManifest creates a manifest in a temp dir and returns its path.
func writeManifest(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "models.json")
	if err := os.WriteFile(p, []byte(manifestJSON), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return p
}

type testServer struct {
	*httptest.Server
	mgr *manager.Manager
	hub *manager.EventHub
	b   *llmfake.Backend
}

// newServer wires manager, event hub and HTTP API over the fake backend the
// way cmd/llmed serve does. cfg.Backend, cfg.ManifestPath and cfg.Publisher
// are filled in.
func newServer(t *testing.T, b *llmfake.Backend, cfg manager.ManagerConfig) *testServer {
	t.Helper()
	hub := manager.NewEventHub(64)
	cfg.Backend = b
	cfg.ManifestPath = writeManifest(t)
	cfg.Publisher = hub
	mgr := manager.New(cfg)
	httpapi.SetEventSource(hub)
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(func() {
		srv.Close()
		mgr.Close()
		httpapi.SetEventSource(nil)
	})
	return &testServer{Server: srv, mgr: mgr, hub: hub, b: b}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader = http.NoBody
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func mustDecode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
}

func assertStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("status=%d want %d body=%s", resp.StatusCode, want, body)
	}
}

func assertBalanced(t *testing.T, b *llmfake.Backend) {
	t.Helper()
	if ok, msg := b.Balanced(); !ok {
		t.Fatalf("resource imbalance: %s", msg)
	}
}

// startedHook returns a DecodeHook that signals the first generation step.
func startedHook() (func(int), <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return func(int) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}, ch
}

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not start")
	}
}
