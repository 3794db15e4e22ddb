package agent

import (
	"github.com/adilhn/selene/pkg/failover"
	"github.com/adilhn/selene/pkg/session"
	"github.com/adilhn/selene/pkg/toolexecutor"
)

// ChatRequest is a provider-agnostic model request for one round.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	Messages     []session.Message
	Tools        []toolexecutor.Definition
	Temperature  float64
	MaxTokens    int
}

// ChatResponse is the assembled result of one model round.
type ChatResponse struct {
	Content   string
	ToolCalls []session.ToolCall
	Usage     *Usage
}

// Usage counts tokens for one or more model rounds.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *Usage) Add(other *Usage) {
	if other == nil {
		return
	}
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ToolCallDelta is one streamed fragment of a tool call. Index identifies
// the call slot within the response; ID and Name may arrive on a later
// fragment than the first, and Arguments arrives in pieces.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// StreamEvent is one event on a provider stream. Exactly one field is set.
type StreamEvent struct {
	TextDelta     string
	ToolCallDelta *ToolCallDelta
	FinishReason  string
	Usage         *Usage
	Err           error
}

// Inbound is a user message entering the orchestrator.
type Inbound struct {
	ChannelID string
	ChatID    string
	SenderID  string
	Group     bool
	Text      string
	Parts     []session.ContentPart
}

// SessionKey derives the session this message belongs to.
func (in Inbound) SessionKey() string {
	return session.KeyFor(in.ChannelID, in.ChatID, in.SenderID, in.Group)
}

// Reply is the final result of one orchestrated turn.
type Reply struct {
	Content  string
	Provider string
	Model    string
	Usage    Usage

	// ToolCalls lists every tool invocation executed during the turn, in
	// execution order across rounds.
	ToolCalls []session.ToolCall

	// FallbackAttempts records candidates that failed or were skipped
	// before the turn succeeded.
	FallbackAttempts []failover.Attempt
}
