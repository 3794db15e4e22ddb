package failover

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, catalog Catalog) (*Executor, *Ledger) {
	t.Helper()
	ledger := NewLedger(zerolog.Nop())
	executor, err := NewExecutor(Config{
		Ledger:     ledger,
		Catalog:    catalog,
		Logger:     zerolog.Nop(),
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)
	return executor, ledger
}

// scriptedRequests returns per-key canned results, failing with errDefault
// for keys without a script.
type scriptedRequests struct {
	results map[string][]error
	calls   []string
}

func (s *scriptedRequests) fn(value interface{}) RequestFunc {
	return func(ctx context.Context, cand Candidate) (interface{}, error) {
		s.calls = append(s.calls, cand.Key())
		queue := s.results[cand.Key()]
		if len(queue) == 0 {
			return value, nil
		}
		err := queue[0]
		s.results[cand.Key()] = queue[1:]
		if err == nil {
			return value, nil
		}
		return nil, err
	}
}

func TestNewExecutor(t *testing.T) {
	t.Run("should require ledger and catalog", func(t *testing.T) {
		_, err := NewExecutor(Config{Catalog: testCatalog()})
		require.Error(t, err)
		_, err = NewExecutor(Config{Ledger: NewLedger(zerolog.Nop())})
		require.Error(t, err)
	})
}

func TestExecutorRun(t *testing.T) {
	ctx := context.Background()
	preferred := Candidate{Provider: "openai", Model: "gpt-4o"}

	t.Run("should return the first candidate's value on success", func(t *testing.T) {
		executor, _ := newTestExecutor(t, testCatalog())
		script := &scriptedRequests{results: map[string][]error{}}

		outcome, err := executor.Run(ctx, preferred, nil, script.fn("answer"), nil)
		require.NoError(t, err)
		assert.Equal(t, "answer", outcome.Value)
		assert.Equal(t, "openai", outcome.Provider)
		assert.Equal(t, "gpt-4o", outcome.Model)
		assert.Empty(t, outcome.Attempts)
	})

	t.Run("should fail over across reasons and record cooldowns", func(t *testing.T) {
		executor, ledger := newTestExecutor(t, testCatalog())
		rateLimited := &HTTPError{Status: 429, Err: fmt.Errorf("too many requests")}
		unauthorized := &HTTPError{Status: 401, Err: fmt.Errorf("invalid key")}
		script := &scriptedRequests{results: map[string][]error{
			// Two tries each: first attempt plus one retry.
			"openai:gpt-4o":      {rateLimited, rateLimited},
			"openai:gpt-4o-mini": {unauthorized, unauthorized},
		}}

		outcome, err := executor.Run(ctx, preferred, nil, script.fn("late answer"), nil)
		require.NoError(t, err)
		assert.Equal(t, "late answer", outcome.Value)
		assert.Equal(t, "anthropic", outcome.Provider)

		require.Len(t, outcome.Attempts, 2)
		assert.Equal(t, ReasonRateLimit, outcome.Attempts[0].Reason)
		assert.Equal(t, 429, outcome.Attempts[0].HTTPStatus)
		assert.Equal(t, ReasonAuth, outcome.Attempts[1].Reason)

		assert.True(t, ledger.IsInCooldown("openai:gpt-4o"))
		assert.True(t, ledger.IsInCooldown("openai:gpt-4o-mini"))
		assert.False(t, ledger.IsInCooldown("anthropic:claude-sonnet"))
	})

	t.Run("should skip candidates in cooldown with a synthetic attempt", func(t *testing.T) {
		executor, ledger := newTestExecutor(t, testCatalog())
		ledger.SetCooldown("openai:gpt-4o", ReasonRateLimit)
		script := &scriptedRequests{results: map[string][]error{}}

		outcome, err := executor.Run(ctx, preferred, nil, script.fn("ok"), nil)
		require.NoError(t, err)
		assert.Equal(t, "openai:gpt-4o-mini", script.calls[0])

		require.Len(t, outcome.Attempts, 1)
		assert.Equal(t, ReasonRateLimit, outcome.Attempts[0].Reason)
		assert.Contains(t, outcome.Attempts[0].Error, "cooldown")
	})

	t.Run("should retry a candidate once before moving on", func(t *testing.T) {
		executor, _ := newTestExecutor(t, testCatalog())
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o": {&HTTPError{Status: 503, Err: fmt.Errorf("busy")}, nil},
		}}

		outcome, err := executor.Run(ctx, preferred, nil, script.fn("recovered"), nil)
		require.NoError(t, err)
		assert.Equal(t, "recovered", outcome.Value)
		assert.Equal(t, "openai", outcome.Provider)
		// The retried failure leaves no attempt record.
		assert.Empty(t, outcome.Attempts)
		assert.Equal(t, []string{"openai:gpt-4o", "openai:gpt-4o"}, script.calls)
	})

	t.Run("should rethrow the original error when only one candidate failed", func(t *testing.T) {
		catalog := &fakeCatalog{
			order:  []string{"openai"},
			models: map[string][]string{"openai": {"gpt-4o"}},
		}
		executor, _ := newTestExecutor(t, catalog)
		rateLimited := &HTTPError{Status: 429, Err: fmt.Errorf("slow down")}
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o": {rateLimited, rateLimited},
		}}

		_, err := executor.Run(ctx, preferred, nil, script.fn(nil), nil)
		require.Error(t, err)
		var he *HTTPError
		require.True(t, errors.As(err, &he))
		assert.Equal(t, 429, he.Status)
		var ee *ExhaustedError
		assert.False(t, errors.As(err, &ee))
	})

	t.Run("should aggregate attempts when all candidates fail", func(t *testing.T) {
		executor, _ := newTestExecutor(t, testCatalog())
		fail := &HTTPError{Status: 429, Err: fmt.Errorf("limit")}
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o":          {fail, fail},
			"openai:gpt-4o-mini":     {fail, fail},
			"anthropic:claude-sonnet": {fail, fail},
			"groq:llama-70b":         {fail, fail},
		}}

		_, err := executor.Run(ctx, preferred, nil, script.fn(nil), nil)
		require.Error(t, err)
		var ee *ExhaustedError
		require.True(t, errors.As(err, &ee))
		assert.Len(t, ee.Attempts, 4)
		assert.Contains(t, err.Error(), "all candidates failed")
		assert.True(t, errors.Is(err, fail))
	})

	t.Run("should propagate cancellation without trying other candidates", func(t *testing.T) {
		executor, ledger := newTestExecutor(t, testCatalog())
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o": {fmt.Errorf("aborted: %w", context.Canceled)},
		}}

		_, err := executor.Run(ctx, preferred, nil, script.fn(nil), nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, []string{"openai:gpt-4o"}, script.calls)
		assert.False(t, ledger.IsInCooldown("openai:gpt-4o"))
	})

	t.Run("should propagate unclassifiable errors unchanged", func(t *testing.T) {
		executor, _ := newTestExecutor(t, testCatalog())
		defect := fmt.Errorf("schema mismatch in request body")
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o": {defect},
		}}

		_, err := executor.Run(ctx, preferred, nil, script.fn(nil), nil)
		require.Error(t, err)
		assert.Equal(t, defect, err)
		assert.Equal(t, []string{"openai:gpt-4o"}, script.calls)
	})

	t.Run("should invoke the error hook per exhausted candidate", func(t *testing.T) {
		executor, _ := newTestExecutor(t, testCatalog())
		fail := &HTTPError{Status: 401, Err: fmt.Errorf("no")}
		script := &scriptedRequests{results: map[string][]error{
			"openai:gpt-4o": {fail, fail},
		}}

		var hooked []Attempt
		outcome, err := executor.Run(ctx, preferred, nil, script.fn("ok"),
			func(cand Candidate, attempt Attempt) {
				hooked = append(hooked, attempt)
			})
		require.NoError(t, err)
		assert.Equal(t, "ok", outcome.Value)
		require.Len(t, hooked, 1)
		assert.Equal(t, ReasonAuth, hooked[0].Reason)
	})

	t.Run("should error when no candidates resolve", func(t *testing.T) {
		executor, _ := newTestExecutor(t, &fakeCatalog{})
		_, err := executor.Run(ctx, preferred, nil, func(ctx context.Context, c Candidate) (interface{}, error) {
			return nil, nil
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no failover candidates")
	})
}
