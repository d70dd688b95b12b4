package manager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"llmed/internal/llm/llmfake"
	"llmed/pkg/types"
)

var testCatalog = []types.ModelDescriptor{
	{Kind: types.KindTextGeneration, Name: "chat", WeightsPath: "/models/chat.gguf"},
	{Kind: types.KindEmbedding, Name: "embed", WeightsPath: "/models/embed.gguf"},
	{Kind: types.KindMultimodal, Name: "vision", WeightsPath: "/models/vl.gguf", ProjectorPath: "/models/mmproj.gguf"},
}

// newTestManager builds a manager over the fake backend; cfg fields other
// than Backend and Catalog are kept.
func newTestManager(t *testing.T, b *llmfake.Backend, cfg ManagerConfig) *Manager {
	t.Helper()
	cfg.Backend = b
	if cfg.Catalog == nil {
		cfg.Catalog = testCatalog
	}
	m := New(cfg)
	t.Cleanup(m.Close)
	return m
}

func mustLoad(t *testing.T, m *Manager, name string) string {
	t.Helper()
	d, err := m.Load(name)
	if err != nil {
		t.Fatalf("Load(%s): %v", name, err)
	}
	return d.InstanceID
}

// assertBalanced checks that every native handle handed out was freed.
func assertBalanced(t *testing.T, b *llmfake.Backend) {
	t.Helper()
	if ok, msg := b.Balanced(); !ok {
		t.Fatalf("resource imbalance: %s", msg)
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(p, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return p
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

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}
