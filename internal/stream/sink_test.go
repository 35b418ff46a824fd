package stream

import (
	"strings"
	"testing"

	"github.com/paperforge/paperforge/internal/chatlog"
)

// recordingEmitter captures the live output stream in arrival order.
type recordingEmitter struct {
	content []string
	blocks  []string
}

func (e *recordingEmitter) EmitContent(text string) { e.content = append(e.content, text) }
func (e *recordingEmitter) EmitBlock(typ string, data interface{}) {
	e.blocks = append(e.blocks, typ)
}

func newTestSink(t *testing.T) (*PersistentSink, *recordingEmitter, *chatlog.Log) {
	t.Helper()
	log := chatlog.Open(t.TempDir(), "w1")
	emit := &recordingEmitter{}
	return NewPersistentSink(log, emit), emit, log
}

func TestPersistentSinkTextMessage(t *testing.T) {
	sink, emit, log := newTestSink(t)

	sink.Token("hello ")
	sink.Token("world")
	sink.Token("") // ignored
	if err := sink.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if strings.Join(emit.content, "") != "hello world" {
		t.Errorf("live stream = %q", strings.Join(emit.content, ""))
	}

	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Role != "assistant" || msgs[0].Content != "hello world" || msgs[0].MessageType != chatlog.TypeText {
		t.Errorf("persisted message = %+v", msgs[0])
	}
}

func TestPersistentSinkCardMessage(t *testing.T) {
	sink, emit, log := newTestSink(t)

	sink.Token("calling tool")
	sink.Card("tool_call", map[string]interface{}{"name": "tree"})
	if err := sink.Finalize(); err != nil {
		t.Fatal(err)
	}

	if len(emit.blocks) != 1 || emit.blocks[0] != "tool_call" {
		t.Errorf("live blocks = %v", emit.blocks)
	}

	msgs, _ := log.GetMessages(0)
	if len(msgs) != 1 || msgs[0].MessageType != chatlog.TypeJSONCard {
		t.Fatalf("persisted = %+v, want one json_card message", msgs)
	}
	if len(msgs[0].JSONBlocks) != 1 || msgs[0].JSONBlocks[0].Type != "tool_call" {
		t.Errorf("cards = %+v", msgs[0].JSONBlocks)
	}
}

func TestPersistentSinkEmptyFinalizeWritesNothing(t *testing.T) {
	sink, _, log := newTestSink(t)
	if err := sink.Finalize(); err != nil {
		t.Fatal(err)
	}
	msgs, _ := log.GetMessages(0)
	if len(msgs) != 0 {
		t.Errorf("empty finalize persisted %d messages", len(msgs))
	}
}

func TestPersistentSinkResetsBetweenMessages(t *testing.T) {
	sink, _, log := newTestSink(t)

	sink.SetRole("system")
	sink.Token("one")
	sink.Finalize()
	sink.Token("two")
	sink.Finalize()

	msgs, _ := log.GetMessages(0)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[0].Content != "one" {
		t.Errorf("first = %+v", msgs[0])
	}
	// role resets to assistant after each finalize
	if msgs[1].Role != "assistant" || msgs[1].Content != "two" {
		t.Errorf("second = %+v", msgs[1])
	}
}

func TestSubSinkPrefixAndResultCard(t *testing.T) {
	sink, emit, log := newTestSink(t)
	sub := NewSubSink(sink, "code_agent")

	sub.Token("step one")
	sub.Token(" step two")
	sub.Card("start", map[string]interface{}{"task": "x"})
	if err := sub.Finalize(); err != nil {
		t.Fatal(err)
	}

	joined := strings.Join(emit.content, "")
	if !strings.HasPrefix(joined, "[code_agent] step one") {
		t.Errorf("live stream missing one-time tag prefix: %q", joined)
	}
	if strings.Count(joined, "[code_agent] ") != 1 {
		t.Errorf("tag prefix should appear exactly once: %q", joined)
	}

	// cards ride through the parent with the tag prefix, plus the final
	// coalesced result card
	wantBlocks := []string{"code_agent_start", "code_agent_result"}
	if len(emit.blocks) != len(wantBlocks) {
		t.Fatalf("blocks = %v, want %v", emit.blocks, wantBlocks)
	}
	for i := range wantBlocks {
		if emit.blocks[i] != wantBlocks[i] {
			t.Errorf("blocks[%d] = %q, want %q", i, emit.blocks[i], wantBlocks[i])
		}
	}

	// the sub sink never persists; sub tokens stay out of the parent buffer
	msgs, _ := log.GetMessages(0)
	if len(msgs) != 0 {
		t.Fatalf("sub sink wrote the chat log: %+v", msgs)
	}
	if err := sink.Finalize(); err != nil {
		t.Fatal(err)
	}
	msgs, _ = log.GetMessages(0)
	if len(msgs) != 1 {
		t.Fatalf("parent finalize should persist the cards, got %d messages", len(msgs))
	}
	if msgs[0].Content != "" {
		t.Errorf("sub tokens leaked into the parent accumulation: %q", msgs[0].Content)
	}
}

func TestSubSinkEmptyRunEmitsNoResult(t *testing.T) {
	sink, emit, _ := newTestSink(t)
	sub := NewSubSink(sink, "writer_agent")
	if err := sub.Finalize(); err != nil {
		t.Fatal(err)
	}
	if len(emit.blocks) != 0 {
		t.Errorf("empty sub run emitted blocks: %v", emit.blocks)
	}
}

func TestDiscardDropsAccumulation(t *testing.T) {
	sink, _, log := newTestSink(t)

	sink.SetRole("system")
	sink.Token("partial ")
	sink.Token("output")
	sink.Card("tool_call", map[string]interface{}{"name": "tree"})
	sink.Discard()

	if err := sink.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	msgs, err := log.GetMessages(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatalf("discarded output was persisted: %+v", msgs)
	}

	// the sink is reusable after a discard, back on the default role
	sink.Token("next turn")
	if err := sink.Finalize(); err != nil {
		t.Fatal(err)
	}
	msgs, _ = log.GetMessages(0)
	if len(msgs) != 1 || msgs[0].Role != "assistant" || msgs[0].Content != "next turn" {
		t.Errorf("post-discard message = %+v", msgs)
	}
}
