package route

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/zen-systems/agentgate/pkg/adapter"
	"github.com/zen-systems/agentgate/pkg/registry"
	"github.com/zen-systems/agentgate/pkg/schema"
	"github.com/zen-systems/agentgate/pkg/stream"
)

// Invoker starts a generation on a concrete backend. adapter.Mux
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error)
}

// RetryPolicy bounds in-candidate retries before the chain advances.
type RetryPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy matches the historical gateway behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseBackoff: 200 * time.Millisecond, MaxBackoff: 2 * time.Second}
}

// Engine plans and executes candidate chains.
type Engine struct {
	registry *registry.Registry
	invoker  Invoker
	metrics  *Metrics
	log      zerolog.Logger
	retry    RetryPolicy

	breakerMu sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics attaches shared metrics counters.
func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithRetryPolicy overrides the in-candidate retry policy.
func WithRetryPolicy(p RetryPolicy) EngineOption {
	return func(e *Engine) { e.retry = p }
}

// NewEngine creates a routing engine over a registry and an invoker.
func NewEngine(reg *registry.Registry, invoker Invoker, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		invoker:  invoker,
		metrics:  NewMetrics(),
		log:      zerolog.Nop(),
		retry:    DefaultRetryPolicy(),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Metrics returns the engine's counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Plan builds the candidate chain for a classified request. A vision
// request whose category somehow landed on a text-only primary is
// re-anchored on the best vision model before the chain is built.
func (e *Engine) Plan(category registry.TaskCategory, confidence float64, requiresVision bool) *Decision {
	primary := e.registry.GetModelForTask(category)
	if requiresVision && !primary.SupportsVision {
		primary = e.registry.GetModelForTask(registry.TaskVision)
	}
	return &Decision{
		Primary:        primary,
		FallbackChain:  e.registry.GetFallbackModels(primary.ID, requiresVision),
		Category:       category,
		Confidence:     confidence,
		RequiresVision: requiresVision,
	}
}

// Execute runs the chain in order until a candidate delivers a stream.
// Transient failures advance the chain; non-transient ones are logged
// louder but still advance, since a backend-specific bug should not
// abort the whole request. Each candidate gets its own full timeout.
func (e *Engine) Execute(ctx context.Context, decision *Decision, req *schema.Request) (stream.Source, error) {
	e.metrics.RecordRequest(decision.Category)

	var lastErr error
	for i, spec := range decision.Candidates() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i > 0 {
			e.metrics.RecordFallback()
		}

		src, err := e.attempt(ctx, spec, req)
		if err == nil {
			decision.Attempts = append(decision.Attempts, Attempt{Model: spec, Outcome: OutcomeSuccess})
			e.metrics.RecordModelUsed(spec.ID)
			e.log.Debug().Str("model", spec.ID).Int("attempt", i+1).Msg("candidate accepted")
			return src, nil
		}

		lastErr = err
		e.metrics.RecordError(spec.ID)
		outcome := OutcomeTransientFailure
		switch {
		case errors.Is(err, gobreaker.ErrOpenState):
			outcome = OutcomeBreakerOpen
			e.log.Warn().Str("model", spec.ID).Msg("circuit open; skipping candidate")
		case adapter.IsTransient(err):
			e.log.Warn().Err(err).Str("model", spec.ID).Msg("transient failure; advancing chain")
		default:
			outcome = OutcomePermanentFailure
			e.log.Error().Err(err).Str("model", spec.ID).Msg("non-transient failure; trying next candidate")
		}
		decision.Attempts = append(decision.Attempts, Attempt{Model: spec, Outcome: outcome, Err: err})
	}

	return nil, &ChainExhaustedError{Attempts: decision.Attempts, LastErr: lastErr}
}

// attempt invokes one candidate with retries and its own timeout. The
// timeout context stays alive for the stream's lifetime and is
// released when the returned source is closed.
func (e *Engine) attempt(ctx context.Context, spec registry.ModelSpec, req *schema.Request) (stream.Source, error) {
	breaker := e.breakerFor(spec.ID)
	timeout := spec.CallTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	var lastErr error
	for try := 0; try <= e.retry.MaxRetries; try++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		result, err := breaker.Execute(func() (any, error) {
			return e.invoker.Invoke(callCtx, spec, req)
		})
		if err == nil {
			return &cancelSource{Source: result.(stream.Source), cancel: cancel}, nil
		}
		cancel()
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, err
		}
		if ctx.Err() != nil || !adapter.IsTransient(err) || try == e.retry.MaxRetries {
			return nil, err
		}
		if err := sleepWithContext(ctx, backoff(e.retry, try)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (e *Engine) breakerFor(modelID string) *gobreaker.CircuitBreaker {
	e.breakerMu.Lock()
	defer e.breakerMu.Unlock()
	if breaker, ok := e.breakers[modelID]; ok {
		return breaker
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     modelID,
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	e.breakers[modelID] = breaker
	return breaker
}

// cancelSource ties a per-attempt timeout context to the source's
// lifetime.
type cancelSource struct {
	stream.Source
	cancel context.CancelFunc
}

func (s *cancelSource) Close() error {
	err := s.Source.Close()
	s.cancel()
	return err
}

func backoff(policy RetryPolicy, try int) time.Duration {
	d := policy.BaseBackoff
	for i := 0; i < try; i++ {
		d *= 2
		if d >= policy.MaxBackoff {
			return policy.MaxBackoff
		}
	}
	if d > policy.MaxBackoff {
		return policy.MaxBackoff
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
