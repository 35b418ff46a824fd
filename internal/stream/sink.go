// Package stream is the emission side of agent execution: agents push
// tokens and structured cards into a Sink, which fans them out to the live
// transport and accumulates them for chat log persistence.
package stream

import (
	"strings"

	"github.com/paperforge/paperforge/internal/chatlog"
)

// Emitter delivers frames to whatever is watching the task: the task
// output buffer plus the live connection. Implementations must not block
// the caller; delivery to a disconnected client degrades silently.
type Emitter interface {
	EmitContent(text string)
	EmitBlock(typ string, data interface{})
}

// Sink is the capability handed to agents.
type Sink interface {
	Token(text string)
	Card(cardType string, data interface{})
	SetRole(role string)
	Finalize() error
}

// NopEmitter discards everything. Used by the non-streaming paths.
type NopEmitter struct{}

func (NopEmitter) EmitContent(string)            {}
func (NopEmitter) EmitBlock(string, interface{}) {}

// PersistentSink accumulates one assistant message while forwarding each
// event to the emitter. Finalize writes the accumulated message to the
// chat log: a json_card message when any cards were seen, a plain text
// message otherwise.
type PersistentSink struct {
	log  *chatlog.Log
	emit Emitter

	buf   strings.Builder
	cards []chatlog.Card
	role  string
}

func NewPersistentSink(log *chatlog.Log, emit Emitter) *PersistentSink {
	if emit == nil {
		emit = NopEmitter{}
	}
	return &PersistentSink{log: log, emit: emit, role: "assistant"}
}

func (s *PersistentSink) Token(text string) {
	if text == "" {
		return
	}
	s.buf.WriteString(text)
	s.emit.EmitContent(text)
}

func (s *PersistentSink) Card(cardType string, data interface{}) {
	s.cards = append(s.cards, chatlog.Card{Type: cardType, Data: data})
	s.emit.EmitBlock(cardType, data)
}

func (s *PersistentSink) SetRole(role string) {
	if role != "" {
		s.role = role
	}
}

// Finalize persists the accumulated message and resets the sink for the
// next message. An empty accumulation writes nothing.
func (s *PersistentSink) Finalize() error {
	content := s.buf.String()
	cards := s.cards
	s.buf.Reset()
	s.cards = nil
	role := s.role
	s.role = "assistant"

	if content == "" && len(cards) == 0 {
		return nil
	}
	var err error
	if len(cards) > 0 {
		_, err = s.log.AppendCard(role, content, cards, nil)
	} else {
		_, err = s.log.Append(role, content, nil)
	}
	return err
}

// Discard drops the accumulated message without persisting it. A
// cancelled turn goes through here so partial output never reaches the
// chat log.
func (s *PersistentSink) Discard() {
	s.buf.Reset()
	s.cards = nil
	s.role = "assistant"
}

// forwardRaw sends text to the emitter without touching the accumulation
// buffer. Sub-agent tokens ride through here so the client sees live
// progress while only the planner's own message gets persisted.
func (s *PersistentSink) forwardRaw(text string) {
	s.emit.EmitContent(text)
}

// SubSink wraps a parent sink for one sub-agent run. Card types are
// prefixed with "<tag>_"; tokens are forwarded live with a one-time
// "[<tag>] " marker and coalesced into a single "<tag>_result" card on
// Finalize. A SubSink never writes the chat log itself.
type SubSink struct {
	parent   *PersistentSink
	tag      string
	buf      strings.Builder
	prefixed bool
}

func NewSubSink(parent *PersistentSink, tag string) *SubSink {
	return &SubSink{parent: parent, tag: tag}
}

func (s *SubSink) Token(text string) {
	if text == "" {
		return
	}
	if !s.prefixed {
		s.parent.forwardRaw("[" + s.tag + "] ")
		s.prefixed = true
	}
	s.parent.forwardRaw(text)
	s.buf.WriteString(text)
}

func (s *SubSink) Card(cardType string, data interface{}) {
	s.parent.Card(s.tag+"_"+cardType, data)
}

func (s *SubSink) SetRole(string) {}

func (s *SubSink) Finalize() error {
	content := s.buf.String()
	s.buf.Reset()
	s.prefixed = false
	if content != "" {
		s.parent.Card(s.tag+"_result", map[string]interface{}{"content": content})
	}
	return nil
}
