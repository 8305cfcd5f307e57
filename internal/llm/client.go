package llm

import (
	"context"
	"encoding/json"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Upstream failure classes. All are recoverable at the caller's
// discretion; the client itself never retries.
var (
	ErrUnreachable = errors.New("generation backend unreachable")
	ErrTimeout     = errors.New("generation backend timed out")
	ErrBadResponse = errors.New("generation backend returned a bad response")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are decoding parameters for a single request. Zero-value fields
// fall back to the client's configured defaults. NumPredict of -1 leaves
// the output length unbounded.
type Options struct {
	Model         string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	NumPredict    int
}

type Response struct {
	Content string
	Raw     json.RawMessage
}

type Client interface {
	// Complete sends the full message list and blocks for the reply.
	Complete(ctx context.Context, messages []Message, opts Options) (*Response, error)
	// Stream sends the same request incrementally. The returned stream is
	// finite and not restartable; each call re-issues the full request.
	Stream(ctx context.Context, messages []Message, opts Options) (*Stream, error)
	// Health is a lightweight reachability probe. It never returns an error.
	Health(ctx context.Context) bool
}

// ErrStreamDone is returned by a stream's pull function when the
// sequence is exhausted. It is never surfaced through Err.
var ErrStreamDone = errors.New("stream done")

// Stream is a pull-based sequence of content deltas.
type Stream struct {
	next    func() (string, error) // ErrStreamDone terminates cleanly
	closeFn func() error
	cur     string
	err     error
	done    bool
}

// NewStream adapts a pull function into a Stream. next returns one delta
// per call and ErrStreamDone when exhausted; closeFn may be nil.
func NewStream(next func() (string, error), closeFn func() error) *Stream {
	return &Stream{next: next, closeFn: closeFn}
}

func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	delta, err := s.next()
	if err != nil {
		if !errors.Is(err, ErrStreamDone) {
			s.err = err
		}
		s.done = true
		return false
	}
	s.cur = delta
	return true
}

func (s *Stream) Current() string { return s.cur }

func (s *Stream) Err() error { return s.err }

func (s *Stream) Close() error {
	s.done = true
	if s.closeFn != nil {
		return s.closeFn()
	}
	return nil
}
