package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/paperforge/paperforge/internal/chatlog"
	"github.com/paperforge/paperforge/internal/config"
	"github.com/paperforge/paperforge/internal/providers"
	"github.com/paperforge/paperforge/internal/store"
	"github.com/paperforge/paperforge/internal/stream"
	"github.com/paperforge/paperforge/internal/workspace"
)

// scriptedLLM serves canned OpenAI-style SSE responses in order and
// records each request body.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	requests  []map[string]interface{}
	srv       *httptest.Server
}

func newScriptedLLM(t *testing.T, responses ...string) *scriptedLLM {
	s := &scriptedLLM{responses: responses}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		s.requests = append(s.requests, body)

		if len(s.responses) == 0 {
			t.Errorf("unexpected LLM request %d", len(s.requests))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := s.responses[0]
		s.responses = s.responses[1:]

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, resp)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *scriptedLLM) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *scriptedLLM) request(i int) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[i]
}

func sseText(content string) string {
	chunk, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"delta": map[string]string{"content": content}},
		},
	})
	return "data: " + string(chunk) + "\n\ndata: [DONE]\n\n"
}

func sseToolCalls(calls ...[2]string) string {
	var sb strings.Builder
	for i, c := range calls {
		chunk, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"delta": map[string]interface{}{
					"tool_calls": []map[string]interface{}{
						{
							"index": i,
							"id":    fmt.Sprintf("call_%d", i+1),
							"function": map[string]string{
								"name":      c[0],
								"arguments": c[1],
							},
						},
					},
				}},
			},
		})
		sb.WriteString("data: " + string(chunk) + "\n\n")
	}
	sb.WriteString("data: [DONE]\n\n")
	return sb.String()
}

type plannerFixture struct {
	planner *Planner
	log     *chatlog.Log
	ws      *workspace.Workspace
	work    *store.Work
}

func newPlannerFixture(t *testing.T, llm *scriptedLLM, work *store.Work) *plannerFixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	err = st.UpsertModelConfig(&store.ModelConfig{
		UserID: work.UserID, Role: store.RoleBrain,
		Provider: "openai", ModelID: "test-model",
		BaseURL: llm.srv.URL, APIKey: "k", IsActive: true,
	})
	if err != nil {
		t.Fatalf("UpsertModelConfig: %v", err)
	}
	if err := st.CreateWork(work); err != nil {
		t.Fatalf("CreateWork: %v", err)
	}

	ws, err := workspace.Open(filepath.Join(dir, "workspaces"), work.ID)
	if err != nil {
		t.Fatalf("workspace.Open: %v", err)
	}
	log := chatlog.Open(ws.Root(), work.ID)
	sink := stream.NewPersistentSink(log, stream.NopEmitter{})

	cfg := &config.Config{Data: config.DataConfig{Dir: dir}}
	planner, err := NewPlanner(st, cfg, work, ws, log, sink, "")
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	return &plannerFixture{planner: planner, log: log, ws: ws, work: work}
}

func TestPlannerToolFreeTurn(t *testing.T) {
	llm := newScriptedLLM(t, sseText("这是最终回答。"))
	f := newPlannerFixture(t, llm, &store.Work{ID: "w1", UserID: "u1", Title: "已有标题"})

	if err := f.planner.Run(context.Background(), "请概述研究现状"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.requestCount() != 1 {
		t.Fatalf("requests = %d, want 1", llm.requestCount())
	}

	msgs, err := f.log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "请概述研究现状" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "这是最终回答。" {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
}

func TestPlannerDispatchesToolCalls(t *testing.T) {
	llm := newScriptedLLM(t,
		sseToolCalls(
			[2]string{"writemd", `{"filename": "notes.md", "content": "# 笔记"}`},
			[2]string{"tree", `{}`},
		),
		sseText("文件已整理。"),
	)
	f := newPlannerFixture(t, llm, &store.Work{ID: "w1", UserID: "u1", Title: "已有标题"})

	if err := f.planner.Run(context.Background(), "整理一下工作区"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.requestCount() != 2 {
		t.Fatalf("requests = %d, want 2", llm.requestCount())
	}

	// the tool actually ran against the workspace
	fc, err := f.ws.Read("notes.md")
	if err != nil || fc.Content != "# 笔记" {
		t.Errorf("notes.md = %+v, %v", fc, err)
	}

	// second request carries tool results in reported order
	second := llm.request(1)
	msgs := second["messages"].([]interface{})
	var toolMsgs []map[string]interface{}
	for _, m := range msgs {
		mm := m.(map[string]interface{})
		if mm["role"] == "tool" {
			toolMsgs = append(toolMsgs, mm)
		}
	}
	if len(toolMsgs) != 2 {
		t.Fatalf("tool messages = %d, want 2", len(toolMsgs))
	}
	if toolMsgs[0]["tool_call_id"] != "call_1" || toolMsgs[1]["tool_call_id"] != "call_2" {
		t.Errorf("tool result order = %v, %v", toolMsgs[0]["tool_call_id"], toolMsgs[1]["tool_call_id"])
	}
}

func TestPlannerToolCatalog(t *testing.T) {
	llm := newScriptedLLM(t, sseText("好的。"))
	f := newPlannerFixture(t, llm, &store.Work{ID: "w1", UserID: "u1", Title: "已有标题"})

	if err := f.planner.Run(context.Background(), "你好"); err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, tl := range llm.request(0)["tools"].([]interface{}) {
		fn := tl.(map[string]interface{})["function"].(map[string]interface{})
		names[fn["name"].(string)] = true
	}
	for _, want := range []string{"code_agent", "writemd", "tree"} {
		if !names[want] {
			t.Errorf("tool %s not offered", want)
		}
	}
	// no writing model configured, so no writer agent; no template, so no
	// section tools
	for _, absent := range []string{"writer_agent", "get_section_content"} {
		if names[absent] {
			t.Errorf("tool %s offered unexpectedly", absent)
		}
	}
}

func TestPlannerReplayGuard(t *testing.T) {
	llm := newScriptedLLM(t)
	f := newPlannerFixture(t, llm, &store.Work{ID: "w1", UserID: "u1", Title: "已有标题"})

	f.log.Append("user", "重复的问题", nil)
	f.log.Append("assistant", "已经回答过了", nil)

	if err := f.planner.Run(context.Background(), "重复的问题"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if llm.requestCount() != 0 {
		t.Errorf("replayed turn reached the LLM %d times", llm.requestCount())
	}
	msgs, _ := f.log.GetMessages(0)
	if len(msgs) != 2 {
		t.Errorf("replayed turn appended to the log: %d messages", len(msgs))
	}
}

func TestPlannerCancelDiscardsPartialOutput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	llm := &scriptedLLM{}
	llm.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// streamed partial text plus a tool call keeps the turn going
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"好的，我先查看目录。"}}]}`+"\n\n")
			fmt.Fprint(w, sseToolCalls([2]string{"tree", `{}`}))
			return
		}
		// cancel mid-flight and hold the request open until the client
		// gives up, so the second turn fails with context.Canceled
		cancel()
		<-r.Context().Done()
	}))
	t.Cleanup(llm.srv.Close)

	f := newPlannerFixture(t, llm, &store.Work{ID: "w1", UserID: "u1", Title: "已有标题"})

	err := f.planner.Run(ctx, "整理一下资料")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	// a cancelled turn appends no assistant message, only the user turn
	msgs, readErr := f.log.GetMessages(0)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Errorf("cancelled turn persisted assistant output: %+v", msgs)
	}
}

func TestPlannerSeedsTemplate(t *testing.T) {
	llm := newScriptedLLM(t, sseText("已就绪。"))

	dir := t.TempDir()
	tmplFile := filepath.Join(dir, "generic_paper.md")
	if err := os.WriteFile(tmplFile, []byte("# **摘要**\n"), 0644); err != nil {
		t.Fatal(err)
	}

	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	st.UpsertModelConfig(&store.ModelConfig{
		UserID: "u1", Role: store.RoleBrain,
		Provider: "openai", ModelID: "m", BaseURL: llm.srv.URL, APIKey: "k", IsActive: true,
	})
	work := &store.Work{ID: "w1", UserID: "u1", Title: "已有标题", TemplateID: "generic_paper"}
	st.CreateWork(work)

	ws, err := workspace.Open(filepath.Join(dir, "workspaces"), "w1")
	if err != nil {
		t.Fatal(err)
	}
	log := chatlog.Open(ws.Root(), "w1")
	sink := stream.NewPersistentSink(log, stream.NopEmitter{})
	cfg := &config.Config{Data: config.DataConfig{Dir: dir}}

	if _, err := NewPlanner(st, cfg, work, ws, log, sink, tmplFile); err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(ws.Root(), "paper.md"))
	if err != nil || string(data) != "# **摘要**\n" {
		t.Errorf("paper.md = %q, %v", data, err)
	}

	// an existing paper.md is never overwritten
	os.WriteFile(filepath.Join(ws.Root(), "paper.md"), []byte("user edits"), 0644)
	if _, err := NewPlanner(st, cfg, work, ws, log, sink, tmplFile); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(filepath.Join(ws.Root(), "paper.md"))
	if string(data) != "user edits" {
		t.Error("seeding overwrote paper.md")
	}
}

func TestLastUserContent(t *testing.T) {
	msgs := []providers.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "第一问"},
		{Role: "assistant", Content: "答"},
		{Role: "user", Content: "第二问"},
		{Role: "assistant", Content: "答"},
	}
	if got := lastUserContent(msgs); got != "第二问" {
		t.Errorf("lastUserContent = %q", got)
	}
	if got := lastUserContent(nil); got != "" {
		t.Errorf("lastUserContent(nil) = %q", got)
	}
}
