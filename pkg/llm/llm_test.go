package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- Catalog ---

func TestLookupModel(t *testing.T) {
	m, err := LookupModel("gpt-4-vision")
	if err != nil {
		t.Fatalf("LookupModel() error = %v", err)
	}
	if m.Kind != KindVision || m.APIModel != "gpt-4-turbo" {
		t.Errorf("unexpected vision variant %+v", m)
	}

	if _, err := LookupModel("gpt-2"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}
	if !IsSupportedModel(DefaultModel) {
		t.Errorf("default model %q missing from catalog", DefaultModel)
	}
}

func TestModels_ReturnsCopy(t *testing.T) {
	ms := Models()
	ms[0].ID = "mutated"
	if Models()[0].ID == "mutated" {
		t.Error("Models() must not expose the catalog")
	}
}

// --- Request building ---

func TestBuildRequest_Text(t *testing.T) {
	m, _ := LookupModel("gpt-3.5-turbo")
	req := BuildRequest(m, "Write a haiku", "be brief", "", true)

	if len(req.Messages) != 2 {
		t.Fatalf("expected system + user, got %d messages", len(req.Messages))
	}
	if req.Messages[0].Role != RoleSystem || req.Messages[0].Content != "be brief" {
		t.Errorf("unexpected system message %+v", req.Messages[0])
	}
	if req.Messages[1].IsMultiPart() || req.Messages[1].Content != "Write a haiku" {
		t.Errorf("unexpected user message %+v", req.Messages[1])
	}
	if !req.JSONMode || req.MaxTokens != MaxOutputTokens {
		t.Errorf("JSONMode=%v MaxTokens=%d", req.JSONMode, req.MaxTokens)
	}
}

func TestBuildRequest_NoSystemPrompt(t *testing.T) {
	m, _ := LookupModel("gpt-4o")
	req := BuildRequest(m, "hi", "", "", false)
	if len(req.Messages) != 1 || req.Messages[0].Role != RoleUser {
		t.Errorf("expected a single user message, got %+v", req.Messages)
	}
	if req.JSONMode {
		t.Error("JSON mode should be off")
	}
}

func TestBuildRequest_Vision(t *testing.T) {
	m, _ := LookupModel("gpt-4-vision")
	req := BuildRequest(m, "Describe", "", "https://img/x.jpg", true)

	if len(req.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(req.Messages))
	}
	parts := req.Messages[0].Parts
	if len(parts) != 2 || parts[0] != TextPart("Describe") || parts[1] != ImagePart("https://img/x.jpg") {
		t.Errorf("unexpected parts %+v", parts)
	}
	if req.JSONMode {
		t.Error("vision requests never use JSON mode")
	}
	if req.ImageURL() != "https://img/x.jpg" {
		t.Errorf("ImageURL() = %q", req.ImageURL())
	}
}

func TestBuildRequest_VisionWithoutImageFallsBackToText(t *testing.T) {
	m, _ := LookupModel("gpt-4o-vision")
	req := BuildRequest(m, "Describe", "", "", false)
	if req.Messages[0].IsMultiPart() {
		t.Error("empty image URL should produce the text shape")
	}
}

func TestBuildRequest_JSONModeIgnoredWhenUnsupported(t *testing.T) {
	m, _ := LookupModel("claude-sonnet-4")
	if BuildRequest(m, "x", "", "", true).JSONMode {
		t.Error("JSON mode must not be set for models without support")
	}
}

// --- OpenAI wire contract ---

type fakeServer struct {
	*httptest.Server

	mu     sync.Mutex
	calls  int
	path   string
	auth   string
	apiKey string
	body   map[string]any
	status int
	reply  string
	delay  time.Duration
}

func newFakeServer(t *testing.T, status int, reply string) *fakeServer {
	t.Helper()
	f := &fakeServer{status: status, reply: reply}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls++
		f.path = r.URL.Path
		f.auth = r.Header.Get("Authorization")
		f.apiKey = r.Header.Get("X-Api-Key")
		f.body = nil
		_ = json.Unmarshal(raw, &f.body)
		delay := f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if strings.HasPrefix(f.reply, "{") {
			w.Header().Set("Content-Type", "application/json")
		} else {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.reply)
	}))
	t.Cleanup(f.Close)
	return f
}

type captured struct {
	calls  int
	path   string
	auth   string
	apiKey string
	body   map[string]any
}

func (f *fakeServer) seen() captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return captured{calls: f.calls, path: f.path, auth: f.auth, apiKey: f.apiKey, body: f.body}
}

func (f *fakeServer) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *fakeServer) client(opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithProviderConfig("openai", ProviderConfig{BaseURL: f.URL + "/v1/"})}, opts...)
	return NewClient(opts...)
}

func (f *fakeServer) anthropicClient(opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithProviderConfig("anthropic", ProviderConfig{BaseURL: f.URL + "/"})}, opts...)
	return NewClient(opts...)
}

const okReply = `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"a haiku"}}],
"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`

func TestOpenAI_TextRequestShape(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, okReply)
	m, _ := LookupModel("gpt-3.5-turbo")

	comp, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "Write a haiku about Hearst Castle", "", "", false))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if comp.Content != "a haiku" {
		t.Errorf("Content = %q", comp.Content)
	}
	if comp.Usage.InputTokens != 12 || comp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage %+v", comp.Usage)
	}

	if srv.seen().path != "/v1/chat/completions" {
		t.Errorf("path = %q", srv.seen().path)
	}
	if srv.seen().auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", srv.seen().auth)
	}
	if srv.seen().body["model"] != "gpt-3.5-turbo" {
		t.Errorf("model = %v", srv.seen().body["model"])
	}
	if srv.seen().body["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v", srv.seen().body["max_tokens"])
	}
	if _, ok := srv.seen().body["response_format"]; ok {
		t.Error("response_format must be absent when JSON mode is off")
	}
	msgs := srv.seen().body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	user := msgs[0].(map[string]any)
	if user["role"] != "user" || user["content"] != "Write a haiku about Hearst Castle" {
		t.Errorf("unexpected user message %v", user)
	}
}

func TestOpenAI_JSONModeAndSystemPrompt(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, okReply)
	m, _ := LookupModel("gpt-4o")

	_, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "Return JSON", "reply in json", "", true))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rf, ok := srv.seen().body["response_format"].(map[string]any)
	if !ok || rf["type"] != "json_object" {
		t.Errorf("response_format = %v", srv.seen().body["response_format"])
	}
	msgs := srv.seen().body["messages"].([]any)
	sys := msgs[0].(map[string]any)
	if sys["role"] != "system" || sys["content"] != "reply in json" {
		t.Errorf("unexpected system message %v", sys)
	}
}

func TestOpenAI_VisionRequestShape(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, okReply)
	m, _ := LookupModel("gpt-4-vision")

	_, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "Describe", "", "https://img/x.jpg", true))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if srv.seen().body["model"] != "gpt-4-turbo" {
		t.Errorf("vision variant should send gpt-4-turbo, got %v", srv.seen().body["model"])
	}
	if _, ok := srv.seen().body["response_format"]; ok {
		t.Error("vision requests never set response_format")
	}
	msgs := srv.seen().body["messages"].([]any)
	parts := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %v", parts)
	}
	text := parts[0].(map[string]any)
	if text["type"] != "text" || text["text"] != "Describe" {
		t.Errorf("unexpected text part %v", text)
	}
	img := parts[1].(map[string]any)
	if img["type"] != "image_url" || img["image_url"].(map[string]any)["url"] != "https://img/x.jpg" {
		t.Errorf("unexpected image part %v", img)
	}
}

func TestOpenAI_HTTPErrorIsNotRetried(t *testing.T) {
	srv := newFakeServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)
	m, _ := LookupModel("gpt-3.5-turbo")

	_, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if ce.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", ce.StatusCode)
	}
	if !strings.Contains(ce.Body, "boom") {
		t.Errorf("Body = %q", ce.Body)
	}
	if srv.seen().calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", srv.seen().calls)
	}
}

func TestOpenAI_PlainTextErrorBodyIsKept(t *testing.T) {
	srv := newFakeServer(t, http.StatusBadGateway, "upstream exploded")
	m, _ := LookupModel("gpt-3.5-turbo")

	_, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if ce.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", ce.StatusCode)
	}
	if !strings.Contains(ce.Body, "upstream exploded") {
		t.Errorf("Body = %q", ce.Body)
	}
	if !strings.Contains(ce.Error(), "HTTP 502: upstream exploded") {
		t.Errorf("Error() = %q", ce.Error())
	}
}

func TestOpenAI_MalformedResponses(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"no choices", `{"id":"x","object":"chat.completion","model":"m","choices":[]}`},
		{"no content", `{"id":"x","object":"chat.completion","model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant"}}]}`},
	}
	m, _ := LookupModel("gpt-3.5-turbo")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t, http.StatusOK, tt.reply)
			_, err := srv.client().Complete(context.Background(), "sk-test", BuildRequest(m, "x", "", "", false))

			var ce *CompletionError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
			}
			if !ce.IsMalformed() || !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected malformed response, got %v", err)
			}
		})
	}
}

func TestOpenAI_Timeout(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, okReply)
	srv.setDelay(2 * time.Second)
	m, _ := LookupModel("gpt-3.5-turbo")

	_, err := srv.client(WithTimeout(50*time.Millisecond)).Complete(context.Background(), "sk-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if !ce.Timeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

// --- Anthropic wire contract ---

const anthropicOKReply = `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
"content":[{"type":"text","text":"a haiku"}],"stop_reason":"end_turn","stop_sequence":null,
"usage":{"input_tokens":10,"output_tokens":3}}`

func TestAnthropic_TextRequestShape(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, anthropicOKReply)
	m, _ := LookupModel("claude-3-5-haiku")

	comp, err := srv.anthropicClient().Complete(context.Background(), "sk-ant-test", BuildRequest(m, "Write a haiku", "", "", true))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if comp.Content != "a haiku" || comp.FinishReason != "end_turn" {
		t.Errorf("unexpected completion %+v", comp)
	}
	if comp.Usage.InputTokens != 10 || comp.Usage.OutputTokens != 3 {
		t.Errorf("unexpected usage %+v", comp.Usage)
	}

	got := srv.seen()
	if got.path != "/v1/messages" {
		t.Errorf("path = %q", got.path)
	}
	if got.apiKey != "sk-ant-test" {
		t.Errorf("X-Api-Key = %q", got.apiKey)
	}
	if got.body["model"] != "claude-3-5-haiku-20241022" {
		t.Errorf("model = %v", got.body["model"])
	}
	if got.body["max_tokens"] != float64(1000) {
		t.Errorf("max_tokens = %v", got.body["max_tokens"])
	}
	if _, ok := got.body["system"]; ok {
		t.Error("system must be absent without a system prompt")
	}
	msgs := got.body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	user := msgs[0].(map[string]any)
	blocks := user["content"].([]any)
	if user["role"] != "user" || len(blocks) != 1 {
		t.Fatalf("unexpected user message %v", user)
	}
	text := blocks[0].(map[string]any)
	if text["type"] != "text" || text["text"] != "Write a haiku" {
		t.Errorf("unexpected text block %v", text)
	}
}

func TestAnthropic_VisionRequestShape(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, anthropicOKReply)
	m, _ := LookupModel("claude-sonnet-4-vision")

	_, err := srv.anthropicClient().Complete(context.Background(), "sk-ant-test", BuildRequest(m, "Describe", "be brief", "https://img/x.jpg", false))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got := srv.seen()
	if got.body["model"] != "claude-sonnet-4-20250514" {
		t.Errorf("model = %v", got.body["model"])
	}
	system, ok := got.body["system"].([]any)
	if !ok || len(system) != 1 || system[0].(map[string]any)["text"] != "be brief" {
		t.Errorf("system = %v", got.body["system"])
	}

	msgs := got.body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("system prompt must not be sent as a message, got %d messages", len(msgs))
	}
	blocks := msgs[0].(map[string]any)["content"].([]any)
	if len(blocks) != 2 {
		t.Fatalf("expected text + image blocks, got %v", blocks)
	}
	if blocks[0].(map[string]any)["text"] != "Describe" {
		t.Errorf("unexpected text block %v", blocks[0])
	}
	img := blocks[1].(map[string]any)
	src, _ := img["source"].(map[string]any)
	if img["type"] != "image" || src["type"] != "url" || src["url"] != "https://img/x.jpg" {
		t.Errorf("unexpected image block %v", img)
	}
}

func TestAnthropic_HTTPErrorIsNotRetried(t *testing.T) {
	srv := newFakeServer(t, http.StatusInternalServerError, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	m, _ := LookupModel("claude-sonnet-4")

	_, err := srv.anthropicClient().Complete(context.Background(), "sk-ant-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if ce.Provider != "anthropic" || ce.StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected error %+v", ce)
	}
	if !strings.Contains(ce.Body, "boom") {
		t.Errorf("Body = %q", ce.Body)
	}
	if srv.seen().calls != 1 {
		t.Errorf("expected exactly one attempt, got %d", srv.seen().calls)
	}
}

func TestAnthropic_PlainTextErrorBodyIsKept(t *testing.T) {
	srv := newFakeServer(t, http.StatusBadGateway, "upstream exploded")
	m, _ := LookupModel("claude-sonnet-4")

	_, err := srv.anthropicClient().Complete(context.Background(), "sk-ant-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if ce.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", ce.StatusCode)
	}
	if !strings.Contains(ce.Body, "upstream exploded") {
		t.Errorf("Body = %q", ce.Body)
	}
}

func TestAnthropic_EmptyContentIsMalformed(t *testing.T) {
	srv := newFakeServer(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514",
"content":[],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":10,"output_tokens":0}}`)
	m, _ := LookupModel("claude-sonnet-4")

	_, err := srv.anthropicClient().Complete(context.Background(), "sk-ant-test", BuildRequest(m, "x", "", "", false))

	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %T (%v)", err, err)
	}
	if !ce.IsMalformed() || !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected malformed response, got %v", err)
	}
}

// --- Client ---

type stubProvider struct {
	name  string
	reply string
	err   error
	got   Request
	key   string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(_ context.Context, apiKey string, req Request) (*Completion, error) {
	s.got, s.key = req, apiKey
	if s.err != nil {
		return nil, s.err
	}
	return &Completion{Content: s.reply}, nil
}

func TestClient_RoutesByProvider(t *testing.T) {
	oa := &stubProvider{name: "openai", reply: "from openai"}
	an := &stubProvider{name: "anthropic", reply: "from anthropic"}
	c := NewClient(WithProvider(oa), WithProvider(an))

	m, _ := LookupModel("claude-sonnet-4")
	comp, err := c.Complete(context.Background(), "sk-ant", BuildRequest(m, "x", "", "", false))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if comp.Content != "from anthropic" || an.key != "sk-ant" {
		t.Errorf("unexpected routing: %q key=%q", comp.Content, an.key)
	}
}

func TestClient_UnknownProvider(t *testing.T) {
	c := NewClient()
	_, err := c.Complete(context.Background(), "k", Request{Model: Model{ID: "x", Provider: "nope"}})
	var ce *CompletionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompletionError, got %v", err)
	}
}

func TestClient_ObserverSeesSuccessAndFailure(t *testing.T) {
	boom := &CompletionError{Provider: "openai", StatusCode: 429}
	p := &stubProvider{name: "openai", reply: "ok"}

	var events []CallEvent
	c := NewClient(WithProvider(p), WithObserver(ObserverFunc(func(_ context.Context, e CallEvent) {
		events = append(events, e)
	})))

	m, _ := LookupModel("gpt-4o-vision")
	_, _ = c.Complete(context.Background(), "k", BuildRequest(m, "x", "", "https://i", false))
	p.err = boom
	_, err := c.Complete(context.Background(), "k", BuildRequest(m, "x", "", "", false))
	if !errors.Is(err, boom) {
		t.Errorf("expected provider error to pass through, got %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Vision || events[0].Completion == nil || events[0].Err != nil {
		t.Errorf("unexpected success event %+v", events[0])
	}
	if events[1].Vision || events[1].Err == nil {
		t.Errorf("unexpected failure event %+v", events[1])
	}
}

func TestCompletionError_Messages(t *testing.T) {
	tests := []struct {
		err  *CompletionError
		want string
	}{
		{&CompletionError{Provider: "openai", Timeout: true}, "openai completion: request timed out"},
		{&CompletionError{StatusCode: 500, Body: "oops"}, "completion: HTTP 500: oops"},
		{&CompletionError{StatusCode: 401}, "completion: HTTP 401"},
		{malformed("openai", "no choices"), "openai completion: malformed response: no choices"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
