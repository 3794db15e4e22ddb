package session

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ContentPart is one typed piece of a multi-part message body.
type ContentPart struct {
	Type     string `json:"type"` // "text" or "image"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToolCall is a model-issued request to invoke a named tool. Arguments is
// the raw JSON string exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message represents a single conversation turn. Assistant messages that
// only carry tool calls may have empty content. ToolCallID and Name are
// set only on tool-result messages.
type Message struct {
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	ToolCalls  []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Timestamp  time.Time     `json:"timestamp,omitempty"`
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// Data is the persisted state of one conversation.
type Data struct {
	Messages        []Message `json:"messages"`
	Summary         string    `json:"summary,omitempty"`
	LastUpdate      time.Time `json:"last_update"`
	TotalTokensUsed int       `json:"total_tokens_used"`
}

// Clone returns a deep copy of the session data.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Summary:         d.Summary,
		LastUpdate:      d.LastUpdate,
		TotalTokensUsed: d.TotalTokensUsed,
	}
	out.Messages = make([]Message, len(d.Messages))
	for i, msg := range d.Messages {
		out.Messages[i] = cloneMessage(msg)
	}
	return out
}

func cloneMessage(m Message) Message {
	if len(m.Parts) > 0 {
		parts := make([]ContentPart, len(m.Parts))
		copy(parts, m.Parts)
		m.Parts = parts
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]ToolCall, len(m.ToolCalls))
		copy(calls, m.ToolCalls)
		m.ToolCalls = calls
	}
	return m
}

// KeyFor derives the stable session key for an inbound message: group
// chats share one session per chat, direct chats get one per sender.
func KeyFor(channelID, chatID, senderID string, group bool) string {
	if group {
		return channelID + ":" + chatID
	}
	return channelID + ":" + senderID
}
