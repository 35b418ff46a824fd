package chatlog

import "encoding/json"

// Card is one structured event attached to a message.
type Card struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Message types.
const (
	TypeText     = "text"
	TypeJSONCard = "json_card"
)

// ID is a message identifier. New ids are UUID strings; files written by
// earlier versions carried integer ids, which decode to their decimal form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '"' {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*id = ID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// Message is one chat log entry.
type Message struct {
	ID          ID                     `json:"id"`
	Role        string                 `json:"role"`
	Content     string                 `json:"content"`
	Timestamp   string                 `json:"timestamp"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	JSONBlocks  []Card                 `json:"json_blocks,omitempty"`
	MessageType string                 `json:"message_type"`
}

// FrontendMessage is a Message with display hints attached.
type FrontendMessage struct {
	Message
	Avatar     string `json:"avatar"`
	SystemType string `json:"system_type,omitempty"`
}

func toFrontend(m Message) FrontendMessage {
	fm := FrontendMessage{Message: m}
	switch m.Role {
	case "user":
		fm.Avatar = "user"
	default:
		fm.Avatar = "assistant"
	}
	if m.Metadata != nil {
		if st, ok := m.Metadata["system_type"].(string); ok {
			fm.SystemType = st
		}
	}
	return fm
}
