// Package protocol defines the wire frames exchanged over a per-work
// WebSocket connection. All frames are JSON objects; server frames carry a
// "type" discriminator, client frames are distinguished by which fields are
// present (auth token first, then problem turns, then pings).
package protocol

// ProtocolVersion is bumped on breaking frame changes.
const ProtocolVersion = 2

// Server → client frame types.
const (
	FrameAuthSuccess       = "auth_success"
	FrameError             = "error"
	FrameReconnect         = "reconnect"
	FrameContent           = "content"
	FrameJSONBlock         = "json_block"
	FrameReconnectComplete = "reconnect_complete"
	FrameStart             = "start"
	FrameComplete          = "complete"
	FramePong              = "pong"
)

// Client → server frame type (the only typed client frame; auth and problem
// frames are untyped).
const FramePing = "ping"

// ClientFrame is any inbound frame. Exactly one of Token, Problem, or
// Type=="ping" is expected per frame.
type ClientFrame struct {
	Token   string `json:"token,omitempty"`
	Problem string `json:"problem,omitempty"`
	Model   string `json:"model,omitempty"`
	Type    string `json:"type,omitempty"`
}

// ServerFrame is any outbound frame.
type ServerFrame struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Content string      `json:"content,omitempty"`
	Block   *Block      `json:"block,omitempty"`
	TaskID  string      `json:"task_id,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Block is a structured card delivered alongside streamed text.
type Block struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Content builds a content frame.
func Content(text string) ServerFrame {
	return ServerFrame{Type: FrameContent, Content: text}
}

// JSONBlock builds a json_block frame.
func JSONBlock(blockType string, data interface{}) ServerFrame {
	return ServerFrame{Type: FrameJSONBlock, Block: &Block{Type: blockType, Data: data}}
}

// Error builds an error frame.
func Error(message string) ServerFrame {
	return ServerFrame{Type: FrameError, Message: message}
}
