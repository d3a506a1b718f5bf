package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-analyzer/internal/ai"
)

type reply struct {
	status  int
	headers map[string]string
	body    string
}

type fakeAPI struct {
	mu      sync.Mutex
	replies []reply
	paths   []string
	keys    []string
	bodies  []map[string]any
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.paths = append(f.paths, r.URL.Path)
	f.keys = append(f.keys, r.Header.Get("X-Api-Key"))
	f.bodies = append(f.bodies, body)

	if len(f.replies) == 0 {
		http.Error(w, `{"type":"error","error":{"type":"invalid_request_error","message":"unexpected call"}}`, http.StatusBadRequest)
		return
	}

	next := f.replies[0]
	f.replies = f.replies[1:]

	for k, v := range next.headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(next.status)
	_, _ = w.Write([]byte(next.body))
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func message(text string) string {
	body, _ := json.Marshal(map[string]any{
		"id":          "msg_01",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content":     []any{map[string]any{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 20},
	})
	return string(body)
}

const (
	rateLimitBody = `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`
	overload      = `{"type":"error","error":{"type":"api_error","message":"internal"}}`
)

type waits struct {
	recorded []time.Duration
}

func (w *waits) wait(_ context.Context, d time.Duration) error {
	w.recorded = append(w.recorded, d)
	return nil
}

func newTestClient(t *testing.T, srv *httptest.Server, attempts int, w *waits) *Client {
	t.Helper()

	client, err := New(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		MaxAttempts: attempts,
		Timeout:     5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.wait = w.wait
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestNewDefaults(t *testing.T) {
	client, err := New(Config{APIKey: "key"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Model() != DefaultModel || client.maxTokens != DefaultMaxTokens || client.temperature != DefaultTemperature {
		t.Fatalf("unexpected defaults: %+v", client)
	}
}

func TestNewKeepsZeroTemperature(t *testing.T) {
	zero := 0.0
	client, err := New(Config{APIKey: "key", Temperature: &zero}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.temperature != 0 {
		t.Fatalf("expected temperature 0, got %v", client.temperature)
	}
}

func TestCompleteSendsMessage(t *testing.T) {
	fake := &fakeAPI{replies: []reply{{status: http.StatusOK, body: message("评分：88")}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	out, err := newTestClient(t, srv, 1, &waits{}).Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "评分：88" {
		t.Fatalf("unexpected output %q", out)
	}

	if fake.paths[0] != "/v1/messages" {
		t.Fatalf("unexpected path %q", fake.paths[0])
	}
	if fake.keys[0] != "test-key" {
		t.Fatalf("unexpected api key %q", fake.keys[0])
	}

	body := fake.bodies[0]
	if body["model"] != DefaultModel {
		t.Fatalf("unexpected model %v", body["model"])
	}
	if body["temperature"] != DefaultTemperature {
		t.Fatalf("unexpected temperature %v", body["temperature"])
	}

	system, ok := body["system"].([]any)
	if !ok || len(system) != 1 || system[0].(map[string]any)["text"] != "system text" {
		t.Fatalf("unexpected system blocks %v", body["system"])
	}

	messages, ok := body["messages"].([]any)
	if !ok || len(messages) != 1 || messages[0].(map[string]any)["role"] != "user" {
		t.Fatalf("unexpected messages %v", body["messages"])
	}
}

func TestCompleteWaitsOutRateLimitOnce(t *testing.T) {
	fake := &fakeAPI{replies: []reply{
		{status: http.StatusTooManyRequests, headers: map[string]string{"Retry-After": "3"}, body: rateLimitBody},
		{status: http.StatusOK, body: message("评分：75")},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	w := &waits{}
	out, err := newTestClient(t, srv, 1, w).Complete(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "评分：75" {
		t.Fatalf("unexpected output %q", out)
	}
	if len(w.recorded) != 1 || w.recorded[0] != 3*time.Second {
		t.Fatalf("expected a single 3s wait, got %v", w.recorded)
	}
	if fake.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", fake.calls())
	}
}

func TestCompleteReportsPersistentRateLimit(t *testing.T) {
	fake := &fakeAPI{replies: []reply{
		{status: http.StatusTooManyRequests, body: rateLimitBody},
		{status: http.StatusTooManyRequests, body: rateLimitBody},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	w := &waits{}
	_, err := newTestClient(t, srv, 1, w).Complete(context.Background(), "sys", "msg")

	var limited *ai.RateLimitError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if limited.RetryAfter != ai.DefaultRetryAfter {
		t.Fatalf("expected default retry after, got %s", limited.RetryAfter)
	}
	if len(w.recorded) != 1 || w.recorded[0] != ai.DefaultRetryAfter {
		t.Fatalf("expected one default wait, got %v", w.recorded)
	}
	if fake.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", fake.calls())
	}
}

func TestCompleteSDKRetriesServerErrors(t *testing.T) {
	fast := map[string]string{"Retry-After-Ms": "1"}
	fake := &fakeAPI{replies: []reply{
		{status: http.StatusInternalServerError, headers: fast, body: overload},
		{status: http.StatusOK, body: message("retry ok")},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	w := &waits{}
	out, err := newTestClient(t, srv, 2, w).Complete(context.Background(), "sys", "msg")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "retry ok" {
		t.Fatalf("unexpected output %q", out)
	}
	if fake.calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", fake.calls())
	}
	if len(w.recorded) != 0 {
		t.Fatalf("server errors must not use the rate limit wait, got %v", w.recorded)
	}
}

func TestCompleteServerErrorIsNotRateLimit(t *testing.T) {
	fake := &fakeAPI{replies: []reply{{status: http.StatusInternalServerError, body: overload}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestClient(t, srv, 1, &waits{}).Complete(context.Background(), "sys", "msg")
	if err == nil {
		t.Fatal("expected error")
	}

	var limited *ai.RateLimitError
	if errors.As(err, &limited) {
		t.Fatalf("server errors must not be reported as rate limiting: %v", err)
	}
}

func TestCompleteWithoutTextIsMalformed(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"id":          "msg_02",
		"type":        "message",
		"role":        "assistant",
		"model":       DefaultModel,
		"stop_reason": "end_turn",
		"content":     []any{},
		"usage":       map[string]any{"input_tokens": 1, "output_tokens": 0},
	})

	fake := &fakeAPI{replies: []reply{{status: http.StatusOK, body: string(body)}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := newTestClient(t, srv, 1, &waits{}).Complete(context.Background(), "sys", "msg")
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
