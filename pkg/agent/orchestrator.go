package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/adilhn/selene/internal/observability"
	"github.com/adilhn/selene/internal/tracing"
	"github.com/adilhn/selene/pkg/failover"
	"github.com/adilhn/selene/pkg/session"
	"github.com/adilhn/selene/pkg/toolexecutor"
)

const defaultMaxToolRounds = 10

// ErrToolRoundLimit reports that the model kept requesting tools past the
// round budget. The turn fails rather than returning a half-finished
// answer.
var ErrToolRoundLimit = errors.New("tool round limit exceeded")

// ToolRegistry is the orchestrator's view of the tool layer.
type ToolRegistry interface {
	Definitions() []toolexecutor.Definition
	ExecuteCalls(ctx context.Context, calls []toolexecutor.Call) []toolexecutor.Result
}

// Options tunes one orchestrator instance.
type Options struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int

	// MaxToolRounds bounds how many consecutive tool rounds one turn may
	// take. Defaults to 10.
	MaxToolRounds int

	// DefaultProvider and DefaultModel form the preferred candidate;
	// Fallbacks are tried after it, in order.
	DefaultProvider string
	DefaultModel    string
	Fallbacks       []failover.Candidate
}

// Config wires an orchestrator's collaborators.
type Config struct {
	Registry *Registry
	Tools    ToolRegistry
	Sessions *session.Manager
	Failover *failover.Executor

	// Compactor is optional; without one, history grows until trimmed
	// elsewhere.
	Compactor *session.Compactor

	Logger  zerolog.Logger
	Options Options
}

// Orchestrator drives one turn at a time: session load, history repair,
// model rounds with failover, tool execution, persistence.
type Orchestrator struct {
	registry  *Registry
	tools     ToolRegistry
	sessions  *session.Manager
	executor  *failover.Executor
	compactor *session.Compactor
	logger    zerolog.Logger
	opts      Options
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	observability.EnsureRegistered()

	if cfg.Registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Failover == nil {
		return nil, fmt.Errorf("failover executor is required")
	}
	if cfg.Options.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider is required")
	}

	opts := cfg.Options
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}

	return &Orchestrator{
		registry:  cfg.Registry,
		tools:     cfg.Tools,
		sessions:  cfg.Sessions,
		executor:  cfg.Failover,
		compactor: cfg.Compactor,
		logger:    cfg.Logger,
		opts:      opts,
	}, nil
}

// ProcessMessage runs one complete turn and returns the final reply.
func (o *Orchestrator) ProcessMessage(ctx context.Context, in Inbound) (*Reply, error) {
	return o.runTurn(ctx, in, nil)
}

// ProcessMessageStream runs one turn, streaming text deltas and tool
// progress markers as they happen. The turn executes in the background;
// consume Text and call Wait for the final reply.
func (o *Orchestrator) ProcessMessageStream(ctx context.Context, in Inbound) *ReplyStream {
	stream := newReplyStream()
	go func() {
		reply, err := o.runTurn(ctx, in, stream)
		stream.finish(reply, err)
	}()
	return stream
}

func (o *Orchestrator) runTurn(ctx context.Context, in Inbound, stream *ReplyStream) (*Reply, error) {
	sessionKey := in.SessionKey()
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.NewTurnContext(ctx)
	ctx = tracing.WithSessionKey(ctx, sessionKey)
	ctx = tracing.WithChannelID(ctx, in.ChannelID)
	ctx, span := tracing.StartSpan(
		ctx,
		"selene.agent",
		"agent.turn",
		attribute.String("session_key", sessionKey),
	)
	defer span.End()

	logger := tracing.PropagateToLogger(ctx, o.logger)
	start := time.Now()

	// One turn at a time per session; a second message from the same user
	// queues here instead of interleaving history writes.
	unlock := o.sessions.Acquire(sessionKey)
	defer unlock()

	data, err := o.sessions.Load(ctx, sessionKey)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	userMsg := session.Message{
		Role:    session.RoleUser,
		Content: in.Text,
		Parts:   in.Parts,
	}
	if err := o.sessions.Append(ctx, sessionKey, data, userMsg); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if o.compactor != nil {
		changed, err := o.compactor.CompactIfNeeded(ctx, data)
		if err != nil {
			// Prune fallback already shrank the log; the turn proceeds.
			logger.Warn().Err(err).Msg("Compaction degraded to pruning")
		}
		if changed {
			if err := o.sessions.Save(ctx, sessionKey, data); err != nil {
				span.RecordError(err)
				return nil, err
			}
		}
	}

	outbound := session.ValidateToolSequences(data.Messages, logger)
	systemPrompt := buildSystemPrompt(o.opts.SystemPrompt, data.Summary)
	reply, rounds, err := o.runRounds(ctx, logger, sessionKey, systemPrompt, data, outbound, stream)

	observability.RecordTurn(o.opts.DefaultProvider, time.Since(start), rounds, err == nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info().
		Str("provider", reply.Provider).
		Str("model", reply.Model).
		Int("rounds", rounds).
		Int("total_tokens", reply.Usage.TotalTokens).
		Dur("duration", time.Since(start)).
		Msg("Turn completed")
	return reply, nil
}

// runRounds drives the model/tool loop until the model answers with plain
// text or the round budget runs out.
func (o *Orchestrator) runRounds(
	ctx context.Context,
	logger zerolog.Logger,
	sessionKey string,
	systemPrompt string,
	data *session.Data,
	outbound []session.Message,
	stream *ReplyStream,
) (*Reply, int, error) {
	preferred := failover.Candidate{
		Provider: o.opts.DefaultProvider,
		Model:    o.opts.DefaultModel,
	}

	var (
		usage       Usage
		attempts    []failover.Attempt
		executed    []session.ToolCall
		lastContent string
	)

	var tools []toolexecutor.Definition
	if o.tools != nil {
		tools = o.tools.Definitions()
	}

	for round := 1; round <= o.opts.MaxToolRounds; round++ {
		outcome, err := o.executor.Run(ctx, preferred, o.opts.Fallbacks,
			func(ctx context.Context, cand failover.Candidate) (interface{}, error) {
				return o.requestRound(ctx, cand, systemPrompt, outbound, tools, stream)
			}, nil)
		if err != nil {
			return nil, round, err
		}

		resp := outcome.Value.(*ChatResponse)
		attempts = append(attempts, outcome.Attempts...)
		usage.Add(resp.Usage)
		lastContent = resp.Content

		if len(resp.ToolCalls) == 0 {
			assistantMsg := session.Message{
				Role:    session.RoleAssistant,
				Content: resp.Content,
			}
			o.sessions.AddUsage(data, usage.TotalTokens)
			if err := o.sessions.Append(ctx, sessionKey, data, assistantMsg); err != nil {
				return nil, round, err
			}
			return &Reply{
				Content:          resp.Content,
				Provider:         outcome.Provider,
				Model:            outcome.Model,
				Usage:            usage,
				ToolCalls:        executed,
				FallbackAttempts: attempts,
			}, round, nil
		}

		// Tool round: the assistant message goes into history before the
		// tools run, so a crash mid-execution leaves a repairable log
		// instead of results without their call.
		assistantMsg := session.Message{
			Role:      session.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		outbound = append(outbound, assistantMsg)
		if err := o.sessions.Append(ctx, sessionKey, data, assistantMsg); err != nil {
			return nil, round, err
		}

		toolMsgs := o.executeToolRound(ctx, logger, resp.ToolCalls, stream)
		outbound = append(outbound, toolMsgs...)
		if err := o.sessions.Append(ctx, sessionKey, data, toolMsgs...); err != nil {
			return nil, round, err
		}
		executed = append(executed, resp.ToolCalls...)

		logger.Debug().
			Int("round", round).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("Tool round completed")
	}

	observability.RecordRoundLimitExceeded()
	logger.Error().
		Int("max_rounds", o.opts.MaxToolRounds).
		Str("last_content", truncateForLog(lastContent, 200)).
		Msg("Model kept requesting tools past the round budget")
	return nil, o.opts.MaxToolRounds, fmt.Errorf("%w after %d rounds", ErrToolRoundLimit, o.opts.MaxToolRounds)
}

// requestRound performs one model request against one candidate. In
// streaming mode the provider stream is consumed here: text deltas are
// forwarded to the consumer as they arrive and tool-call fragments are
// assembled into complete calls.
func (o *Orchestrator) requestRound(
	ctx context.Context,
	cand failover.Candidate,
	systemPrompt string,
	outbound []session.Message,
	tools []toolexecutor.Definition,
	stream *ReplyStream,
) (*ChatResponse, error) {
	provider, ok := o.registry.Get(cand.Provider)
	if !ok {
		return nil, &failover.ClassifiedError{
			Reason: failover.ReasonUnavailable,
			Err:    fmt.Errorf("provider %q not registered", cand.Provider),
		}
	}

	req := ChatRequest{
		Model:        cand.Model,
		SystemPrompt: systemPrompt,
		Messages:     outbound,
		Tools:        tools,
		Temperature:  o.opts.Temperature,
		MaxTokens:    o.opts.MaxTokens,
	}

	if stream == nil {
		return provider.Chat(ctx, req)
	}

	events, err := provider.ChatStream(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		content string
		usage   *Usage
		acc     = newToolCallAccumulator()
	)
	for event := range events {
		switch {
		case event.Err != nil:
			return nil, event.Err
		case event.TextDelta != "":
			content += event.TextDelta
			stream.emit(ctx, event.TextDelta)
		case event.ToolCallDelta != nil:
			acc.Add(*event.ToolCallDelta)
		case event.Usage != nil:
			usage = event.Usage
		}
	}

	return &ChatResponse{
		Content:   content,
		ToolCalls: acc.Completed(),
		Usage:     usage,
	}, nil
}

// executeToolRound parses arguments, runs the calls and converts results
// into tool messages, emitting progress markers on the stream.
func (o *Orchestrator) executeToolRound(
	ctx context.Context,
	logger zerolog.Logger,
	toolCalls []session.ToolCall,
	stream *ReplyStream,
) []session.Message {
	calls := make([]toolexecutor.Call, 0, len(toolCalls))
	for _, tc := range toolCalls {
		calls = append(calls, toolexecutor.Call{
			ID:   tc.ID,
			Name: tc.Name,
			Args: ParseToolArguments(tc.Arguments, logger),
		})
	}

	var results []toolexecutor.Result
	if o.tools != nil {
		results = o.tools.ExecuteCalls(ctx, calls)
	} else {
		for _, call := range calls {
			results = append(results, toolexecutor.Result{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    fmt.Sprintf("unknown tool: %s", call.Name),
				IsError:    true,
			})
		}
	}

	// Results are matched back to their calls by ID; a registry returning
	// fewer results than calls must not break the marker stream.
	callByID := make(map[string]session.ToolCall, len(toolCalls))
	for _, tc := range toolCalls {
		callByID[tc.ID] = tc
	}

	msgs := make([]session.Message, 0, len(results))
	for _, res := range results {
		if stream != nil {
			call, ok := callByID[res.ToolCallID]
			if !ok {
				call = session.ToolCall{ID: res.ToolCallID, Name: res.Name}
			}
			stream.emit(ctx, progressMarker(call, res))
		}
		msgs = append(msgs, session.Message{
			Role:       session.RoleTool,
			Content:    res.Content,
			ToolCallID: res.ToolCallID,
			Name:       res.Name,
		})
	}
	return msgs
}

// buildSystemPrompt merges the configured prompt with the rolling session
// summary, so a compacted conversation keeps its long-term context.
func buildSystemPrompt(base, summary string) string {
	if summary == "" {
		return base
	}
	if base == "" {
		return "# Conversation summary\n" + summary
	}
	return base + "\n\n# Conversation summary\n" + summary
}

func progressMarker(call session.ToolCall, res toolexecutor.Result) string {
	args := call.Arguments
	if args == "" {
		args = "{}"
	}
	if res.IsError {
		return fmt.Sprintf("\n%s(%s) ✗ %s\n", call.Name, truncateForLog(args, 80), truncateForLog(res.Content, 120))
	}
	return fmt.Sprintf("\n%s(%s) ✓\n", call.Name, truncateForLog(args, 80))
}
