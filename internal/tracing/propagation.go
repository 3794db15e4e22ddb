package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger returns the logger enriched with whichever turn
// identifiers the context carries.
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.TurnID != "" {
		lc = lc.Str("turn_id", tc.TurnID)
	}
	if tc.SessionKey != "" {
		lc = lc.Str("session_key", tc.SessionKey)
	}
	if tc.ChannelID != "" {
		lc = lc.Str("channel_id", tc.ChannelID)
	}
	return lc.Logger()
}
