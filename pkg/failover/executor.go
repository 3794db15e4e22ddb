package failover

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adilhn/selene/internal/observability"
	"github.com/rs/zerolog"
)

const (
	defaultMaxRetriesPerCandidate = 1
	defaultRetryDelay             = time.Second
)

// RequestFunc performs one model request against a candidate.
type RequestFunc func(ctx context.Context, cand Candidate) (interface{}, error)

// ErrorHook is invoked after a candidate is exhausted, before the executor
// moves on to the next one.
type ErrorHook func(cand Candidate, attempt Attempt)

// ExhaustedError reports that every candidate failed. Its message lists
// each recorded attempt; the last underlying error is the cause.
type ExhaustedError struct {
	Attempts []Attempt
	last     error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return "all candidates failed: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Unwrap() error { return e.last }

// Executor iterates failover candidates, skipping those in cooldown,
// retrying transient failures up to a bound and recording cooldowns for
// classified failures.
type Executor struct {
	ledger     *Ledger
	catalog    Catalog
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// Config holds executor configuration.
type Config struct {
	Ledger  *Ledger
	Catalog Catalog
	Logger  zerolog.Logger

	// MaxRetriesPerCandidate is the number of retries after the first
	// attempt for each candidate. Defaults to 1.
	MaxRetriesPerCandidate int
	// RetryDelay is the base delay between retries; the actual delay grows
	// linearly with the attempt number. Defaults to 1s.
	RetryDelay time.Duration
}

// NewExecutor creates a failover executor.
func NewExecutor(cfg Config) (*Executor, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("cooldown ledger is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("provider catalog is required")
	}
	maxRetries := cfg.MaxRetriesPerCandidate
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetriesPerCandidate
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Executor{
		ledger:     cfg.Ledger,
		catalog:    cfg.Catalog,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     cfg.Logger,
	}, nil
}

// Ledger returns the executor's cooldown ledger.
func (e *Executor) Ledger() *Ledger { return e.ledger }

// Run resolves the candidate list for the preferred pair and tries each
// candidate in order until one succeeds.
//
// Retries within one candidate are silent: only the final retry is
// recorded as an attempt (recordFinalRetryOnly), so callers see one audit
// entry per candidate instead of duplicate diagnostics. A candidate
// skipped for cooldown is recorded as a synthetic rate_limit attempt.
// Cancellations and unclassifiable errors propagate immediately.
func (e *Executor) Run(ctx context.Context, preferred Candidate, fallbacks []Candidate, fn RequestFunc, onError ErrorHook) (*Outcome, error) {
	candidates := ResolveCandidates(preferred, fallbacks, e.catalog)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no failover candidates for %s", preferred)
	}

	var (
		attempts []Attempt
		lastErr  error
		failures int
	)

	for _, cand := range candidates {
		if e.ledger.IsInCooldown(cand.Key()) {
			e.logger.Debug().Str("candidate", cand.Key()).Msg("Skipping candidate in cooldown")
			attempts = append(attempts, Attempt{
				Provider: cand.Provider,
				Model:    cand.Model,
				Error:    "skipped: in cooldown",
				Reason:   ReasonRateLimit,
			})
			continue
		}

		value, err := e.tryCandidate(ctx, cand, fn)
		if err == nil {
			return &Outcome{
				Value:    value,
				Provider: cand.Provider,
				Model:    cand.Model,
				Attempts: attempts,
			}, nil
		}

		if IsCancellation(err) {
			return nil, err
		}

		reason, ok := Classify(err)
		if !ok {
			// Not a transient provider failure; a request defect like this
			// would fail identically on every candidate.
			return nil, err
		}

		attempt := Attempt{
			Provider:   cand.Provider,
			Model:      cand.Model,
			Error:      err.Error(),
			Reason:     reason,
			HTTPStatus: HTTPStatusOf(err),
			ErrorCode:  ErrorCodeOf(err),
		}
		attempts = append(attempts, attempt)
		lastErr = err
		failures++

		e.ledger.SetCooldown(cand.Key(), reason)
		observability.RecordFallbackAttempt(cand.Provider, string(reason))

		e.logger.Warn().
			Str("candidate", cand.Key()).
			Str("reason", string(reason)).
			Err(err).
			Msg("Candidate failed, moving to next")

		if onError != nil {
			onError(cand, attempt)
		}
	}

	if failures == 1 && len(attempts) == 1 {
		// Preserve the original error's identity when there is nothing to
		// aggregate.
		return nil, lastErr
	}
	return nil, &ExhaustedError{Attempts: attempts, last: lastErr}
}

// tryCandidate attempts one candidate up to maxRetries+1 times with a
// linearly increasing delay between tries. Earlier failures are retried
// only when they classify as transient; the error from the final try is
// returned.
func (e *Executor) tryCandidate(ctx context.Context, cand Candidate, fn RequestFunc) (interface{}, error) {
	tries := e.maxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		value, err := fn(ctx, cand)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if IsCancellation(err) {
			return nil, err
		}
		if _, ok := Classify(err); !ok {
			return nil, err
		}
		if attempt == tries {
			break
		}

		delay := e.retryDelay * time.Duration(attempt)
		e.logger.Debug().
			Str("candidate", cand.Key()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Retrying candidate")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
