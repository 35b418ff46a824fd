package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sseLine(t *testing.T, w io.Writer, payload string) {
	t.Helper()
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		t.Errorf("write sse line: %v", err)
	}
}

func TestChatStreamAssemblesDeltas(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		sseLine(t, w, `{"choices":[{"delta":{"content":"你好"}}]}`)
		sseLine(t, w, `{"choices":[{"delta":{"content":", world"}}]}`)
		// tool-call arguments split across chunks, final brace never sent
		sseLine(t, w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"write_markdown_file","arguments":"{\"path\": \"dra"}}]}}]}`)
		sseLine(t, w, `{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ft.md\""}}]}}]}`)
		// a second call whose arguments cannot be repaired
		sseLine(t, w, `{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"broken","arguments":"[[["}}]}}]}`)
		sseLine(t, w, `{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`)
		// usage arrives in a trailing chunk with no choices
		sseLine(t, w, `{"choices":[],"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`)
		sseLine(t, w, "[DONE]")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "test-key", srv.URL, "test-model")

	var chunks []StreamChunk
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "写一段引言"}},
		Tools:    []ToolDefinition{{Type: "function", Function: ToolFunctionSchema{Name: "write_markdown_file"}}},
	}, func(c StreamChunk) {
		chunks = append(chunks, c)
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["stream"] != true {
		t.Error("request did not ask for streaming")
	}
	if so, ok := gotBody["stream_options"].(map[string]interface{}); !ok || so["include_usage"] != true {
		t.Errorf("stream_options = %v", gotBody["stream_options"])
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("model = %v", gotBody["model"])
	}

	if resp.Content != "你好, world" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}

	// the irreparable call is dropped, the truncated one is repaired
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v, want exactly the repaired call", resp.ToolCalls)
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "write_markdown_file" {
		t.Errorf("tool call = %+v", tc)
	}
	if tc.Arguments["path"] != "draft.md" {
		t.Errorf("Arguments = %v", tc.Arguments)
	}
	if tc.RawArguments != `{"path": "draft.md"` {
		t.Errorf("RawArguments = %q", tc.RawArguments)
	}

	if resp.Usage == nil || resp.Usage.TotalTokens != 19 {
		t.Errorf("Usage = %+v", resp.Usage)
	}

	if len(chunks) < 3 {
		t.Fatalf("chunks = %+v", chunks)
	}
	if chunks[0].Content != "你好" || chunks[1].Content != ", world" {
		t.Errorf("content chunks = %+v", chunks[:2])
	}
	last := chunks[len(chunks)-1]
	if !last.Done {
		t.Errorf("last chunk = %+v, want Done", last)
	}
}

func TestChatStreamIgnoresNoise(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, ": keep-alive\n\n")
		sseLine(t, w, `not json`)
		sseLine(t, w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		sseLine(t, w, "[DONE]")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "k", srv.URL, "m")
	resp, err := p.ChatStream(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
}

func TestChatNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["stream"] != false {
			t.Errorf("stream = %v, want false", body["stream"])
		}
		io.WriteString(w, `{
			"choices": [{
				"message": {
					"content": "",
					"tool_calls": [{"id": "c1", "function": {"name": " tree ", "arguments": "{\"path\": \".\"}"}}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "k", srv.URL, "m")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %+v", resp.ToolCalls)
	}
	if resp.ToolCalls[0].Name != "tree" {
		t.Errorf("tool name = %q, want whitespace trimmed", resp.ToolCalls[0].Name)
	}
	if resp.ToolCalls[0].Arguments["path"] != "." {
		t.Errorf("Arguments = %v", resp.ToolCalls[0].Arguments)
	}
	if resp.FinishReason != "tool_calls" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 5 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestChatHTTPErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": {"message": "bad model"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", "k", srv.URL, "m")
	_, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Chat succeeded on a 400 response")
	}
	if !strings.Contains(err.Error(), "http 400") {
		t.Errorf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("server called %d times, 4xx must not retry", calls)
	}
}

func TestDefaultAPIBase(t *testing.T) {
	p := NewOpenAIProvider("openai", "k", "", "m")
	if p.apiBase != "https://api.openai.com/v1" {
		t.Errorf("apiBase = %q", p.apiBase)
	}
	p = NewOpenAIProvider("openai", "k", "http://x/v1/", "m")
	if p.apiBase != "http://x/v1" {
		t.Errorf("apiBase = %q, want trailing slash trimmed", p.apiBase)
	}
}
