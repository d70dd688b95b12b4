package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"llmed/internal/manager"
	"llmed/pkg/types"
)

type mockService struct {
	models   []types.ModelDescriptor
	running  []types.ModelDescriptor
	status   types.StatusResponse
	ready    bool
	loadErr  error
	unloaded map[string]bool
	inferErr error
	reply    manager.Completion
	gotOpts  manager.GenerateOptions
	gotImage string
	block    bool
}

func (m *mockService) StatusReport() types.StatusResponse { return m.status }
func (m *mockService) Models() []types.ModelDescriptor {
	return append([]types.ModelDescriptor(nil), m.models...)
}
func (m *mockService) ModelInfo(name string) (types.ModelInfo, error) {
	for _, d := range m.models {
		if d.Name == name {
			return types.ModelInfo{Name: name, Architecture: "llama"}, nil
		}
	}
	return types.ModelInfo{}, manager.ErrModelNotFound(name)
}
func (m *mockService) ReloadCatalog() (int, error) { return len(m.models), nil }
func (m *mockService) Load(name string) (types.ModelDescriptor, error) {
	if m.loadErr != nil {
		return types.ModelDescriptor{}, m.loadErr
	}
	return types.ModelDescriptor{InstanceID: name + "-1-1", Name: name, Kind: types.KindTextGeneration}, nil
}
func (m *mockService) Unload(id string) bool                   { return m.unloaded[id] }
func (m *mockService) RunningModels() []types.ModelDescriptor { return m.running }
func (m *mockService) Cancel() bool                           { return true }
func (m *mockService) Ready() bool                            { return m.ready }
func (m *mockService) SanityCheck() manager.SanityReport {
	return manager.SanityReport{Backend: "fake", BackendReady: true}
}

func (m *mockService) wait(ctx context.Context) error {
	if m.block {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	return m.inferErr
}

func (m *mockService) Embed(ctx context.Context, id, text string) ([]float32, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return []float32{0.25, 0.5}, nil
}

func (m *mockService) QueryWith(ctx context.Context, id, text string, opts manager.GenerateOptions) (manager.Completion, error) {
	m.gotOpts = opts
	if err := m.wait(ctx); err != nil {
		return manager.Completion{}, err
	}
	return m.reply, nil
}

func (m *mockService) QueryImageWith(ctx context.Context, id, text, imagePath string, opts manager.GenerateOptions) (manager.Completion, error) {
	m.gotImage = imagePath
	return m.QueryWith(ctx, id, text, opts)
}

func (m *mockService) QueryImageBase64(ctx context.Context, id, text, b64 string) (string, error) {
	return manager.Base64PlaceholderText, manager.ErrNotImplemented
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v body=%s", err, w.Body.String())
	}
	return v
}

func TestModelsHandler(t *testing.T) {
	svc := &mockService{models: []types.ModelDescriptor{{Name: "m1"}, {Name: "m2"}}}
	r := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	body := decodeBody[types.ModelsResponse](t, w)
	if len(body.Models) != 2 {
		t.Fatalf("models len=%d", len(body.Models))
	}
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{Status: manager.StatusLoaded, Loaded: 2}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody[types.StatusResponse](t, w)
	if body.Status != "model loaded" || body.Loaded != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSanityHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewMux(&mockService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sanity", nil))
	body := decodeBody[manager.SanityReport](t, w)
	if !body.BackendReady || body.Backend != "fake" {
		t.Fatalf("unexpected sanity: %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	svc := &mockService{ready: true}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	svc := &mockService{ready: false}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not ready") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestModelInfoRoute(t *testing.T) {
	r := NewMux(&mockService{models: []types.ModelDescriptor{{Name: "chat"}}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models/chat/info", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if info := decodeBody[types.ModelInfo](t, w); info.Name != "chat" || info.Architecture != "llama" {
		t.Fatalf("info=%+v", info)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models/nope/info", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReloadReturnsCatalog(t *testing.T) {
	r := NewMux(&mockService{models: []types.ModelDescriptor{{Name: "a"}}})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/models/reload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody[types.ModelsResponse](t, w); len(body.Models) != 1 {
		t.Fatalf("models=%v", body.Models)
	}
}

func TestLoadReturnsDescriptor(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/load", `{"name":"chat"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	d := decodeBody[types.ModelDescriptor](t, w)
	if d.InstanceID != "chat-1-1" || d.Kind != types.KindTextGeneration {
		t.Fatalf("descriptor=%+v", d)
	}
}

func TestLoadNameRequired(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/load", `{"name":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestLoadErrorsMapStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{manager.ErrModelNotFound("x"), http.StatusNotFound},
		{manager.ErrDependencyUnavailable("no backend"), http.StatusServiceUnavailable},
		{&manager.ResourceError{Resource: "weights", Path: "/m.gguf", Err: io.ErrUnexpectedEOF}, http.StatusInternalServerError},
	}
	for _, c := range cases {
		w := postJSON(NewMux(&mockService{loadErr: c.err}), "/load", `{"name":"x"}`)
		if w.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, w.Code, c.want)
		}
	}
}

func TestUnloadReportsOutcome(t *testing.T) {
	svc := &mockService{unloaded: map[string]bool{"chat-1-1": true}}
	r := NewMux(svc)
	if body := decodeBody[types.OKResponse](t, postJSON(r, "/unload", `{"model_id":"chat-1-1"}`)); !body.OK {
		t.Fatalf("expected ok=true")
	}
	w := postJSON(r, "/unload", `{"model_id":"other"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody[types.OKResponse](t, w); body.OK {
		t.Fatalf("expected ok=false for unknown id")
	}
	if w := postJSON(r, "/unload", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing id, got %d", w.Code)
	}
}

func TestRunningAndCancel(t *testing.T) {
	svc := &mockService{running: []types.ModelDescriptor{{InstanceID: "a-1-1", Name: "a"}}}
	r := NewMux(svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/running", nil))
	if body := decodeBody[types.RunningResponse](t, w); len(body.Models) != 1 || body.Models[0].InstanceID != "a-1-1" {
		t.Fatalf("running=%+v", body.Models)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cancel", nil))
	if body := decodeBody[types.OKResponse](t, w); !body.OK {
		t.Fatalf("cancel ok=false")
	}
}

func TestEmbedReturnsVector(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/embed", `{"model_id":"e-1-1","text":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := decodeBody[types.EmbedResponse](t, w); len(body.Embedding) != 2 || body.Embedding[1] != 0.5 {
		t.Fatalf("embedding=%v", body.Embedding)
	}
}

func TestQueryReturnsCompletion(t *testing.T) {
	svc := &mockService{reply: manager.Completion{Text: "hello", FinishReason: manager.FinishEOS, Tokens: 2}}
	w := postJSON(NewMux(svc), "/query", `{"model_id":"c-1-1","text":"hi","max_tokens":8,"sampling":{"temperature":0.7,"top_k":40,"seed":7}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	body := decodeBody[types.QueryResponse](t, w)
	if body.Text != "hello" || body.FinishReason != "eos" || body.Tokens != 2 {
		t.Fatalf("body=%+v", body)
	}
	if svc.gotOpts.MaxTokens != 8 || svc.gotOpts.Sampling.Temperature != 0.7 || svc.gotOpts.Sampling.TopK != 40 || svc.gotOpts.Sampling.Seed != 7 {
		t.Fatalf("options not forwarded: %+v", svc.gotOpts)
	}
}

func TestQueryValidation(t *testing.T) {
	r := NewMux(&mockService{})
	for _, body := range []string{
		`{"text":"hi"}`,
		`{"model_id":"c","text":"   "}`,
		`{"model_id":"c","text":"hi","max_tokens":-1}`,
		`{"model_id":"c","text":"hi","sampling":{"top_p":1.5}}`,
		`{"model_id":"c","text":"hi","sampling":{"temperature":-1}}`,
	} {
		if w := postJSON(r, "/query", body); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestQueryBadJSON(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/query", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestQueryUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(`{"model_id":"c","text":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestContentTypeCaseInsensitive(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(`{"model_id":"c","text":"hi"}`))
	req.Header.Set("Content-Type", "Application/JSON; charset=utf-8")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", w.Code)
	}
}

func TestQueryBodyTooLarge(t *testing.T) {
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	w := postJSON(NewMux(&mockService{}), "/query", string(big))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestQueryPipelineErrorCarriesPartial(t *testing.T) {
	svc := &mockService{inferErr: &manager.PipelineError{Stage: manager.StageDecode, Partial: "ab", Err: io.ErrUnexpectedEOF}}
	w := postJSON(NewMux(svc), "/query", `{"model_id":"c","text":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody[types.ErrorResponse](t, w)
	if body.Kind != "pipeline" || body.Partial != "ab" {
		t.Fatalf("body=%+v", body)
	}
}

func TestQueryTimeoutReturns500(t *testing.T) {
	defer SetInferTimeoutSeconds(0)
	SetInferTimeoutSeconds(1)

	w := postJSON(NewMux(&mockService{block: true}), "/query", `{"model_id":"c","text":"x"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on timeout, got %d", w.Code)
	}
}

func TestQueryImageForwardsPath(t *testing.T) {
	svc := &mockService{reply: manager.Completion{Text: "a cat", FinishReason: manager.FinishEndOfTurn}}
	r := NewMux(svc)
	w := postJSON(r, "/query/image", `{"model_id":"v-1-1","text":"what","image_path":"/tmp/cat.jpg"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if svc.gotImage != "/tmp/cat.jpg" {
		t.Fatalf("image path=%q", svc.gotImage)
	}
	if w := postJSON(r, "/query/image", `{"model_id":"v-1-1","text":"what"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without image_path, got %d", w.Code)
	}
}

func TestQueryImageBase64NotImplemented(t *testing.T) {
	w := postJSON(NewMux(&mockService{}), "/query/image64", `{"model_id":"v-1-1","text":"what","image_base64":"aGk="}`)
	if w.Code != http.StatusNotImplemented {
		t.Fatalf("status=%d", w.Code)
	}
	body := decodeBody[types.ErrorResponse](t, w)
	if body.Kind != "not_implemented" || body.Partial != manager.Base64PlaceholderText {
		t.Fatalf("body=%+v", body)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	h := NewMux(&mockService{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}
