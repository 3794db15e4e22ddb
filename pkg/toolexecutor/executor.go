// Package toolexecutor provides the default tool registry: named tools
// with JSON-schema-validated inputs, executed sequentially. Tool failures
// never propagate as errors; they surface as IsError results so the model
// can decide how to react.
package toolexecutor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adilhn/selene/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Definition describes one registered tool.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
	Handler     Handler                `json:"-"`
}

// Call is one tool invocation request, with arguments already parsed.
type Call struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// Result is the outcome of one tool invocation.
type Result struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Content    string        `json:"content"`
	IsError    bool          `json:"is_error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Executor manages and executes tools.
type Executor struct {
	mu      sync.RWMutex
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	order   []string
}

// New creates an empty tool executor.
func New() *Executor {
	observability.EnsureRegistered()
	return &Executor{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a tool, compiling its input schema when one is provided.
func (e *Executor) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", def.Name)
	}

	var schema *gojsonschema.Schema
	if def.InputSchema != nil {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
		if err != nil {
			return fmt.Errorf("tool %q has invalid input schema: %w", def.Name, err)
		}
		schema = compiled
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.tools[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	e.tools[def.Name] = &def
	e.schemas[def.Name] = schema
	e.order = append(e.order, def.Name)

	log.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Definitions returns the registered tools in registration order.
func (e *Executor) Definitions() []Definition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Definition, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, *e.tools[name])
	}
	return out
}

// ExecuteCalls runs the given calls one at a time, in order, returning one
// result per call. It never returns an error: unknown tools, schema
// violations, panics and handler failures all become IsError results.
func (e *Executor) ExecuteCalls(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, e.executeOne(ctx, call))
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, call Call) (res Result) {
	start := time.Now()
	res = Result{ToolCallID: call.ID, Name: call.Name}

	defer func() {
		if r := recover(); r != nil {
			res.Content = fmt.Sprintf("tool %q panicked: %v", call.Name, r)
			res.IsError = true
		}
		res.Duration = time.Since(start)
		observability.RecordToolExecution(call.Name, res.Duration, !res.IsError)
	}()

	e.mu.RLock()
	def, ok := e.tools[call.Name]
	schema := e.schemas[call.Name]
	e.mu.RUnlock()

	if !ok {
		res.Content = fmt.Sprintf("unknown tool: %s", call.Name)
		res.IsError = true
		return res
	}

	if schema != nil {
		args := call.Args
		if args == nil {
			args = map[string]interface{}{}
		}
		validation, err := schema.Validate(gojsonschema.NewGoLoader(args))
		if err != nil {
			res.Content = fmt.Sprintf("argument validation failed: %v", err)
			res.IsError = true
			return res
		}
		if !validation.Valid() {
			res.Content = fmt.Sprintf("invalid arguments: %s", formatSchemaErrors(validation))
			res.IsError = true
			return res
		}
	}

	output, err := def.Handler(ctx, call.Args)
	if err != nil {
		log.Warn().Str("tool", call.Name).Err(err).Msg("Tool execution failed")
		res.Content = err.Error()
		res.IsError = true
		return res
	}

	res.Content = output
	return res
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return msg
}
