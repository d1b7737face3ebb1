package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"llamad/internal/llm"
	"llamad/pkg/types"
)

type mockStream struct {
	chunks []types.CompletionResponse
	i      int
	err    error
}

func (m *mockStream) Recv() (types.CompletionResponse, error) {
	if m.i < len(m.chunks) {
		c := m.chunks[m.i]
		m.i++
		return c, nil
	}
	if m.err != nil {
		return types.CompletionResponse{}, m.err
	}
	return types.CompletionResponse{}, io.EOF
}

func (m *mockStream) Close() error { return nil }

type mockService struct {
	completeResp types.CompletionResponse
	chatResp     types.ChatResponse
	streamChunks []types.CompletionResponse
	err          error
	ready        bool
	lastPrompt   string
	lastMessages []types.ChatMessage
}

func (m *mockService) Complete(ctx context.Context, prompt string, opts ...llm.CallOption) (types.CompletionResponse, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return types.CompletionResponse{}, m.err
	}
	return m.completeResp, nil
}

func (m *mockService) StreamComplete(ctx context.Context, prompt string, opts ...llm.CallOption) (types.CompletionStream, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return &mockStream{chunks: m.streamChunks}, nil
}

func (m *mockService) Chat(ctx context.Context, messages []types.ChatMessage, opts ...llm.CallOption) (types.ChatResponse, error) {
	m.lastMessages = messages
	if m.err != nil {
		return types.ChatResponse{}, m.err
	}
	return m.chatResp, nil
}

func (m *mockService) StreamChat(ctx context.Context, messages []types.ChatMessage, opts ...llm.CallOption) (types.ChatStream, error) {
	m.lastMessages = messages
	if m.err != nil {
		return nil, m.err
	}
	return &mockChatStream{src: &mockStream{chunks: m.streamChunks}}, nil
}

func (m *mockService) Metadata() types.Metadata {
	return types.Metadata{ContextWindow: 2048, NumOutput: 64, ModelName: "/models/test.gguf"}
}

func (m *mockService) Ready() bool { return m.ready }

type mockChatStream struct{ src *mockStream }

func (s *mockChatStream) Recv() (types.ChatResponse, error) {
	cr, err := s.src.Recv()
	if err != nil {
		return types.ChatResponse{}, err
	}
	return types.ChatResponse{
		Message: types.ChatMessage{Role: types.RoleAssistant, Content: cr.Text},
		Delta:   cr.Delta,
	}, nil
}

func (s *mockChatStream) Close() error { return nil }

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	return w
}

func TestMetadataHandler(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/metadata", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var md types.Metadata
	if err := json.Unmarshal(w.Body.Bytes(), &md); err != nil {
		t.Fatalf("json: %v", err)
	}
	if md.ContextWindow != 2048 || md.NumOutput != 64 || md.ModelName != "/models/test.gguf" {
		t.Fatalf("unexpected metadata: %+v", md)
	}
}

func TestModelsHandler(t *testing.T) {
	d := t.TempDir()
	if err := os.WriteFile(filepath.Join(d, "m1.gguf"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := NewMux(&mockService{}, d)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var body types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(body.Models) != 1 || body.Models[0].ID != "m1.gguf" {
		t.Fatalf("unexpected models: %+v", body.Models)
	}
}

func TestHealthz(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz(t *testing.T) {
	r := NewMux(&mockService{ready: true}, t.TempDir())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	r := NewMux(&mockService{ready: false}, t.TempDir())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestCompleteBlocking(t *testing.T) {
	svc := &mockService{completeResp: types.CompletionResponse{Text: "a fine haiku"}}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/complete", `{"prompt":"write a haiku"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.CompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Text != "a fine haiku" {
		t.Fatalf("text=%q", resp.Text)
	}
	if svc.lastPrompt != "write a haiku" {
		t.Fatalf("prompt=%q", svc.lastPrompt)
	}
}

func TestCompleteStreaming(t *testing.T) {
	svc := &mockService{streamChunks: []types.CompletionResponse{
		{Delta: "a ", Text: "a "},
		{Delta: "fine ", Text: "a fine "},
		{Delta: "haiku", Text: "a fine haiku"},
	}}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/complete", `{"prompt":"write a haiku","stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Fatalf("content-type=%s", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 chunks + done, got %d lines: %s", len(lines), w.Body.String())
	}
	var chunk types.CompleteChunk
	if err := json.Unmarshal([]byte(lines[2]), &chunk); err != nil {
		t.Fatalf("chunk json: %v", err)
	}
	if chunk.Delta != "haiku" || chunk.Text != "a fine haiku" {
		t.Fatalf("unexpected chunk: %+v", chunk)
	}
	var done types.DoneLine
	if err := json.Unmarshal([]byte(lines[3]), &done); err != nil {
		t.Fatalf("done json: %v", err)
	}
	if !done.Done || done.Text != "a fine haiku" {
		t.Fatalf("unexpected done line: %+v", done)
	}
}

func TestChatBlocking(t *testing.T) {
	svc := &mockService{chatResp: types.ChatResponse{
		Message: types.ChatMessage{Role: types.RoleAssistant, Content: "hello there"},
	}}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp types.ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.Message.Role != types.RoleAssistant || resp.Message.Content != "hello there" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(svc.lastMessages) != 1 || svc.lastMessages[0].Content != "hi" {
		t.Fatalf("messages=%+v", svc.lastMessages)
	}
}

func TestChatStreaming(t *testing.T) {
	svc := &mockService{streamChunks: []types.CompletionResponse{
		{Delta: "hel", Text: "hel"},
		{Delta: "lo", Text: "hello"},
	}}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/chat", `{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 2 chunks + done, got %d lines", len(lines))
	}
	var done types.DoneLine
	if err := json.Unmarshal([]byte(lines[2]), &done); err != nil {
		t.Fatalf("done json: %v", err)
	}
	if done.Text != "hello" {
		t.Fatalf("done text=%q", done.Text)
	}
}

func TestCompleteBadJSON(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := postJSON(t, r, "/v1/complete", "not-json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCompletePromptRequired(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := postJSON(t, r, "/v1/complete", `{"prompt":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestChatMessagesRequired(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := postJSON(t, r, "/v1/chat", `{"messages":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCompleteUnsupportedMediaType(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/complete", bytes.NewBufferString(`{"prompt":"hi"}`))
	req.Header.Set("Content-Type", "text/plain")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCompleteBodyTooLarge(t *testing.T) {
	r := NewMux(&mockService{}, t.TempDir())
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/complete", bytes.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestCompleteHTTPErrorMapping(t *testing.T) {
	svc := &mockService{err: mockHTTPError{msg: "too busy", code: http.StatusTooManyRequests}}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/complete", `{"prompt":"hi"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestCompleteGenericErrorMaps500(t *testing.T) {
	svc := &mockService{err: io.ErrClosedPipe}
	r := NewMux(svc, t.TempDir())
	w := postJSON(t, r, "/v1/complete", `{"prompt":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
}
