package session

import (
	"github.com/adilhn/selene/internal/observability"
	"github.com/rs/zerolog"
)

// ValidateToolSequences repairs a message log so that every assistant
// message carrying tool calls is followed by exactly its matching tool
// results, and no tool result survives without its call. Trimming and
// compaction can slice the log at an arbitrary point, splitting a
// call/result pair across the cut; providers reject either half on its
// own, so both are dropped here.
func ValidateToolSequences(msgs []Message, logger zerolog.Logger) []Message {
	// Pass 1: resolve assistant tool-call sequences. An assistant message
	// whose calls are not all answered by the immediately-following tool
	// messages loses its tool-call list (text content survives); the
	// scanned tool messages are consumed either way.
	preserved := make(map[string]bool)
	firstPass := make([]Message, 0, len(msgs))

	i := 0
	for i < len(msgs) {
		msg := msgs[i]
		if !msg.HasToolCalls() {
			firstPass = append(firstPass, msg)
			i++
			continue
		}

		wanted := make(map[string]bool, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			wanted[call.ID] = true
		}

		answered := make(map[string]bool, len(wanted))
		var results []Message
		j := i + 1
		for j < len(msgs) && msgs[j].Role == RoleTool && wanted[msgs[j].ToolCallID] {
			answered[msgs[j].ToolCallID] = true
			results = append(results, msgs[j])
			j++
		}

		if len(answered) == len(wanted) {
			firstPass = append(firstPass, msg)
			firstPass = append(firstPass, results...)
			for id := range wanted {
				preserved[id] = true
			}
		} else {
			logger.Warn().
				Int("tool_calls", len(wanted)).
				Int("answered", len(answered)).
				Msg("Dropping incomplete tool-call sequence from history")
			observability.RecordHistoryDrop("incomplete_tool_calls")

			if msg.Content != "" {
				plain := msg
				plain.ToolCalls = nil
				firstPass = append(firstPass, plain)
			}
		}

		i = j
	}

	// Pass 2: drop orphan tool results whose call was not preserved, e.g.
	// when trimming removed the assistant message earlier in the log.
	out := make([]Message, 0, len(firstPass))
	for _, msg := range firstPass {
		if msg.Role == RoleTool && !preserved[msg.ToolCallID] {
			logger.Warn().
				Str("tool_call_id", msg.ToolCallID).
				Str("tool", msg.Name).
				Msg("Dropping orphan tool result from history")
			observability.RecordHistoryDrop("orphan_tool_result")
			continue
		}
		out = append(out, msg)
	}

	return out
}
