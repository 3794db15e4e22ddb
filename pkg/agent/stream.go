package agent

import (
	"context"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/adilhn/selene/pkg/session"
)

// pendingCall is one tool call being assembled from stream fragments.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// toolCallAccumulator merges streamed tool-call fragments into complete
// calls. Fragments are matched by call ID when present, falling back to
// the call's slot index; an ID arriving on a later fragment is adopted
// onto the record created under the index key. The name is written once,
// arguments are append-only.
type toolCallAccumulator struct {
	order   []*pendingCall
	byID    map[string]*pendingCall
	byIndex map[int]*pendingCall
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{
		byID:    make(map[string]*pendingCall),
		byIndex: make(map[int]*pendingCall),
	}
}

// Add merges one fragment. A fragment carrying a different ID than the
// record's re-keys it; the latest ID wins.
func (a *toolCallAccumulator) Add(d ToolCallDelta) {
	call := a.resolve(d)
	if d.ID != "" && d.ID != call.id {
		if call.id != "" {
			delete(a.byID, call.id)
		}
		call.id = d.ID
		a.byID[d.ID] = call
	}
	if d.Name != "" && call.name == "" {
		call.name = d.Name
	}
	if d.Arguments != "" {
		call.args.WriteString(d.Arguments)
	}
}

func (a *toolCallAccumulator) resolve(d ToolCallDelta) *pendingCall {
	if d.ID != "" {
		if call, ok := a.byID[d.ID]; ok {
			return call
		}
	}
	if call, ok := a.byIndex[d.Index]; ok {
		return call
	}
	call := &pendingCall{}
	a.byIndex[d.Index] = call
	a.order = append(a.order, call)
	return call
}

// Completed returns the assembled calls that received a name, in arrival
// order. Calls that never got an ID are assigned a synthetic one so tool
// results can still be correlated.
func (a *toolCallAccumulator) Completed() []session.ToolCall {
	var out []session.ToolCall
	for _, call := range a.order {
		if call.name == "" {
			continue
		}
		id := call.id
		if id == "" {
			suffix, err := gonanoid.New(12)
			if err != nil {
				suffix = fmt.Sprintf("%d", len(out))
			}
			id = "call_" + suffix
		}
		out = append(out, session.ToolCall{
			ID:        id,
			Name:      call.name,
			Arguments: call.args.String(),
		})
	}
	return out
}

// ReplyStream delivers a turn's output incrementally. Text deltas arrive
// on Text as the model produces them, interleaved with tool progress
// markers; Wait blocks until the turn finishes and returns the final
// reply.
type ReplyStream struct {
	text  chan string
	done  chan struct{}
	reply *Reply
	err   error
}

func newReplyStream() *ReplyStream {
	return &ReplyStream{
		text: make(chan string, 64),
		done: make(chan struct{}),
	}
}

// Text returns the channel of streamed output. It is closed when the
// turn completes.
func (s *ReplyStream) Text() <-chan string {
	return s.text
}

// Wait blocks until the turn completes and returns the final reply.
func (s *ReplyStream) Wait() (*Reply, error) {
	<-s.done
	return s.reply, s.err
}

// emit forwards one chunk, blocking until the consumer accepts it so no
// output is lost. A cancelled context releases the producer, which is how
// an abandoned turn avoids wedging on a consumer that stopped draining.
func (s *ReplyStream) emit(ctx context.Context, chunk string) {
	if chunk == "" {
		return
	}
	select {
	case s.text <- chunk:
	case <-ctx.Done():
	}
}

func (s *ReplyStream) finish(reply *Reply, err error) {
	s.reply = reply
	s.err = err
	close(s.text)
	close(s.done)
}
