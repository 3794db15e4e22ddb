package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// defaultEncoding is cl100k_base; close enough across the models we route to.
const defaultEncoding = "cl100k_base"

// perMessageOverhead approximates the tokens spent on role and message
// framing around the content itself.
const perMessageOverhead = 4

// Estimator counts tokens with tiktoken, falling back to chars/4 when the
// encoding is unavailable.
type Estimator struct {
	once     sync.Once
	encoding *tiktoken.Tiktoken
}

// NewEstimator creates a lazy token estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) enc() *tiktoken.Tiktoken {
	e.once.Do(func() {
		enc, err := tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			log.Warn().Err(err).Msg("Tokenizer unavailable, using character estimate")
			return
		}
		e.encoding = enc
	})
	return e.encoding
}

// CountText returns the token count of one string.
func (e *Estimator) CountText(text string) int {
	if enc := e.enc(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// EstimateTokens returns the approximate prompt cost of a message list.
func (e *Estimator) EstimateTokens(msgs []Message) int {
	total := 0
	for _, msg := range msgs {
		total += e.CountText(msg.Content) + perMessageOverhead
		for _, part := range msg.Parts {
			total += e.CountText(part.Text)
		}
		for _, call := range msg.ToolCalls {
			total += e.CountText(call.Name) + e.CountText(call.Arguments)
		}
	}
	return total
}

// Summarizer produces a compacted textual summary of older messages. It is
// an external collaborator; the orchestration core only consumes it.
type Summarizer interface {
	Summarize(ctx context.Context, old []Message, opts SummarizeOptions) (string, error)
}

// SummarizeOptions carries the context a Summarizer needs.
type SummarizeOptions struct {
	PreviousSummary string
	MaxChunkTokens  int
	ContextWindow   int
}

// Compactor replaces older conversation messages with a generated summary
// once the estimated token count crosses the trigger threshold.
type Compactor struct {
	Estimator  *Estimator
	Summarizer Summarizer

	// TriggerTokens is the estimated size at which compaction starts.
	TriggerTokens int
	// KeepRecent is how many trailing messages survive compaction verbatim.
	KeepRecent int
	// ContextWindow and MaxHistoryShare bound the prune fallback when
	// summarization itself fails.
	ContextWindow   int
	MaxHistoryShare float64
}

// NewCompactor creates a compactor with the given summarizer.
func NewCompactor(summarizer Summarizer, triggerTokens, keepRecent, contextWindow int) *Compactor {
	return &Compactor{
		Estimator:       NewEstimator(),
		Summarizer:      summarizer,
		TriggerTokens:   triggerTokens,
		KeepRecent:      keepRecent,
		ContextWindow:   contextWindow,
		MaxHistoryShare: 0.5,
	}
}

// CompactIfNeeded compacts data in place when it exceeds the trigger.
// Returns whether anything changed. The lifetime token counter is never
// touched. When summarization fails the prune fallback still shrinks the
// log so the next model call can go out.
func (c *Compactor) CompactIfNeeded(ctx context.Context, data *Data) (bool, error) {
	if c.TriggerTokens <= 0 || len(data.Messages) <= c.KeepRecent {
		return false, nil
	}
	estimated := c.Estimator.EstimateTokens(data.Messages)
	if estimated <= c.TriggerTokens {
		return false, nil
	}

	cut := len(data.Messages) - c.KeepRecent
	old := data.Messages[:cut]
	recent := data.Messages[cut:]

	log.Info().
		Int("estimated_tokens", estimated).
		Int("trigger_tokens", c.TriggerTokens).
		Int("compacting", len(old)).
		Msg("Compacting session history")

	if c.Summarizer == nil {
		data.Messages = c.pruneForContextShare(data.Messages)
		return true, nil
	}

	summary, err := c.Summarizer.Summarize(ctx, old, SummarizeOptions{
		PreviousSummary: data.Summary,
		MaxChunkTokens:  c.TriggerTokens / 2,
		ContextWindow:   c.ContextWindow,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Summarization failed, falling back to pruning")
		data.Messages = c.pruneForContextShare(data.Messages)
		return true, fmt.Errorf("summarization failed: %w", err)
	}

	data.Summary = summary
	data.Messages = append([]Message{}, recent...)
	return true, nil
}

// pruneForContextShare drops oldest messages until the history fits within
// its share of the context window. Tool pairs split by the cut are
// repaired downstream by ValidateToolSequences.
func (c *Compactor) pruneForContextShare(msgs []Message) []Message {
	budget := int(float64(c.ContextWindow) * c.MaxHistoryShare)
	if budget <= 0 {
		return msgs
	}

	kept := msgs
	for len(kept) > 1 && c.Estimator.EstimateTokens(kept) > budget {
		kept = kept[1:]
	}
	if dropped := len(msgs) - len(kept); dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Pruned history to fit context share")
	}
	return kept
}
