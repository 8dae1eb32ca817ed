package stream

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// RawEvent is one opaque upstream record. Usually a JSON object, but
// agent feeds also interleave plain diagnostic lines.
type RawEvent []byte

// Source is an upstream event feed. Recv blocks until the next event,
// the context is cancelled, or the feed closes; a graceful close is
// signalled with io.EOF. Sources are owned by a single request and must
// be Closed on every exit path.
type Source interface {
	Recv(ctx context.Context) (RawEvent, error)
	Close() error
}

// ChannelSource adapts an in-process channel to a Source. The channel
// is closed by the producer to signal a graceful end of stream.
type ChannelSource struct {
	ch   chan RawEvent
	err  error
	once sync.Once
	done chan struct{}
}

// NewChannelSource creates a ChannelSource with a small buffer.
func NewChannelSource(buffer int) *ChannelSource {
	return &ChannelSource{
		ch:   make(chan RawEvent, buffer),
		done: make(chan struct{}),
	}
}

// Emit delivers one event to the consumer. Returns false if the source
// was closed underneath the producer.
func (s *ChannelSource) Emit(ctx context.Context, ev RawEvent) bool {
	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Finish signals a graceful end of stream, optionally carrying the
// producer-side error the consumer should observe.
func (s *ChannelSource) Finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
	})
}

// Recv returns the next event, io.EOF on graceful close, or the
// producer error set by Finish.
func (s *ChannelSource) Recv(ctx context.Context) (RawEvent, error) {
	select {
	case ev, ok := <-s.ch:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, io.EOF
		}
		return ev, nil
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close tears down the consumer side.
func (s *ChannelSource) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// LineSource adapts a line-delimited feed (an agent process's stdout)
// into a Source. Each non-empty line is one raw event. Reading happens
// on an internal goroutine so Recv stays cancellable.
type LineSource struct {
	reader io.ReadCloser
	ch     chan RawEvent
	errCh  chan error
	start  sync.Once
	closed sync.Once
	done   chan struct{}
}

// NewLineSource wraps a reader. The reader is closed with the source.
func NewLineSource(r io.ReadCloser) *LineSource {
	return &LineSource{
		reader: r,
		ch:     make(chan RawEvent, 1),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (s *LineSource) run() {
	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case s.ch <- RawEvent(line):
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.errCh <- err
		return
	}
	close(s.ch)
}

// Recv returns the next line as a raw event.
func (s *LineSource) Recv(ctx context.Context) (RawEvent, error) {
	s.start.Do(func() { go s.run() })
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	case err := <-s.errCh:
		return nil, err
	case <-s.done:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the reader goroutine and closes the underlying reader.
func (s *LineSource) Close() error {
	var err error
	s.closed.Do(func() {
		close(s.done)
		err = s.reader.Close()
	})
	return err
}
