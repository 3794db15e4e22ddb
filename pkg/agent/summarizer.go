package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/adilhn/selene/pkg/failover"
	"github.com/adilhn/selene/pkg/session"
)

const summarizerSystemPrompt = `You compress conversation history. Produce a dense summary of the
conversation below that preserves facts, decisions, names, numbers and
open questions. Write plain prose, no preamble.`

// ModelSummarizer implements session.Summarizer by asking a model to
// compress older history. It reuses the failover executor, so a summary
// request fails over across providers like any other round.
type ModelSummarizer struct {
	registry  *Registry
	executor  *failover.Executor
	preferred failover.Candidate
	fallbacks []failover.Candidate
	maxTokens int
}

// NewModelSummarizer creates a summarizer that runs on the given
// preferred candidate.
func NewModelSummarizer(registry *Registry, executor *failover.Executor, preferred failover.Candidate, fallbacks []failover.Candidate) *ModelSummarizer {
	return &ModelSummarizer{
		registry:  registry,
		executor:  executor,
		preferred: preferred,
		fallbacks: fallbacks,
		maxTokens: 1024,
	}
}

// Summarize implements session.Summarizer.
func (s *ModelSummarizer) Summarize(ctx context.Context, old []session.Message, opts session.SummarizeOptions) (string, error) {
	var b strings.Builder
	if opts.PreviousSummary != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(opts.PreviousSummary)
		b.WriteString("\n\nNew messages:\n")
	}
	for _, msg := range old {
		b.WriteString(msg.Role)
		b.WriteString(": ")
		if msg.Content != "" {
			b.WriteString(msg.Content)
		}
		for _, call := range msg.ToolCalls {
			fmt.Fprintf(&b, "[called %s(%s)]", call.Name, call.Arguments)
		}
		b.WriteString("\n")
	}

	outcome, err := s.executor.Run(ctx, s.preferred, s.fallbacks,
		func(ctx context.Context, cand failover.Candidate) (interface{}, error) {
			provider, ok := s.registry.Get(cand.Provider)
			if !ok {
				return nil, &failover.ClassifiedError{
					Reason: failover.ReasonUnavailable,
					Err:    fmt.Errorf("provider %q not registered", cand.Provider),
				}
			}
			return provider.Chat(ctx, ChatRequest{
				Model:        cand.Model,
				SystemPrompt: summarizerSystemPrompt,
				Messages: []session.Message{
					{Role: session.RoleUser, Content: b.String()},
				},
				MaxTokens: s.maxTokens,
			})
		}, nil)
	if err != nil {
		return "", err
	}

	resp := outcome.Value.(*ChatResponse)
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("summarizer returned empty content")
	}
	return resp.Content, nil
}
