package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Lifecycle is the normalizer state machine. Completed and Failed are
// terminal; no transition leaves them.
type Lifecycle string

const (
	LifecycleStarted   Lifecycle = "started"
	LifecycleStreaming Lifecycle = "streaming"
	LifecycleCompleted Lifecycle = "completed"
	LifecycleFailed    Lifecycle = "failed"
)

// DefaultIdleTimeout bounds how long the normalizer waits on a silent
// upstream before synthesizing a degraded done event.
const DefaultIdleTimeout = 30 * time.Second

// FinishIncomplete is the finish reason used when the upstream feed
// ended without an explicit terminal signal.
const FinishIncomplete = "incomplete"

// Normalizer consumes one upstream feed and yields canonical events in
// order. One instance serves exactly one request; it is not restartable
// and must not be shared.
type Normalizer struct {
	src         Source
	log         zerolog.Logger
	idleTimeout time.Duration

	startedAt      time.Time
	lifecycle      Lifecycle
	emittedContent bool
	pending        []Event
	terminalSent   bool
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithLogger sets the logger used for skipped events.
func WithLogger(log zerolog.Logger) NormalizerOption {
	return func(n *Normalizer) { n.log = log }
}

// WithIdleTimeout overrides the upstream silence bound.
func WithIdleTimeout(d time.Duration) NormalizerOption {
	return func(n *Normalizer) {
		if d > 0 {
			n.idleTimeout = d
		}
	}
}

// NewNormalizer creates a per-request normalizer over an upstream feed.
// The normalizer owns the source and closes it when the stream ends.
func NewNormalizer(src Source, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		src:         src,
		log:         zerolog.Nop(),
		idleTimeout: DefaultIdleTimeout,
		startedAt:   time.Now(),
		lifecycle:   LifecycleStarted,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Lifecycle returns the current state.
func (n *Normalizer) Lifecycle() Lifecycle { return n.lifecycle }

// StartedAt returns when the normalizer was constructed.
func (n *Normalizer) StartedAt() time.Time { return n.startedAt }

// Next returns the next canonical event. After the terminal event has
// been returned, Next reports io.EOF. A caller-cancelled context aborts
// with the context error and tears down the upstream subscription.
func (n *Normalizer) Next(ctx context.Context) (Event, error) {
	for {
		if len(n.pending) > 0 {
			ev := n.pending[0]
			n.pending = n.pending[1:]
			if ev.Terminal() {
				n.terminalSent = true
				if ev.Type == EventError {
					n.lifecycle = LifecycleFailed
				} else {
					n.lifecycle = LifecycleCompleted
				}
				_ = n.src.Close()
			}
			return ev, nil
		}
		if n.terminalSent {
			return Event{}, io.EOF
		}

		recvCtx, cancel := context.WithTimeout(ctx, n.idleTimeout)
		raw, err := n.src.Recv(recvCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				n.lifecycle = LifecycleFailed
				_ = n.src.Close()
				return Event{}, ctx.Err()
			}
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				n.log.Warn().Dur("idle_timeout", n.idleTimeout).
					Msg("upstream silent too long; synthesizing incomplete done")
				n.pending = append(n.pending, Done(FinishIncomplete))
			case errors.Is(err, io.EOF):
				n.pending = append(n.pending, Done(FinishIncomplete))
			default:
				n.pending = append(n.pending, ErrorEvent("upstream_transport", err.Error()))
			}
			continue
		}

		tr := translateEvent(raw, n.emittedContent)
		switch tr.note {
		case noteNoise:
			continue
		case noteUnparsed:
			n.log.Debug().Str("event", truncate(string(raw), 256)).
				Msg("skipping unrecognized upstream event")
			continue
		}
		if n.lifecycle == LifecycleStarted {
			n.lifecycle = LifecycleStreaming
		}
		n.emittedContent = tr.emittedContent
		n.pending = append(n.pending, tr.events...)
	}
}

// Pipe pulls events and pushes them to the sink until the stream ends.
func (n *Normalizer) Pipe(ctx context.Context, sink Sink) error {
	for {
		ev, err := n.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := sink.Send(ev); err != nil {
			n.lifecycle = LifecycleFailed
			_ = n.src.Close()
			return err
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
