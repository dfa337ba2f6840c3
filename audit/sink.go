// Package audit is a diagnostics sink adapted from the teacher's
// transport/file package: instead of a generic Transport writing
// pre-formatted bytes for an arbitrary pipeline stage, Sink writes one JSON
// Record per datagram engine.Process handles. This is the "audit trail"
// supplement to spec.md: it exists purely as an optional operational log,
// never read back by the agent, so it carries no persisted MIB state.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Record is one processed datagram's diagnostic summary.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Version      int32     `json:"version"`
	Principal    string    `json:"principal,omitempty"`
	PDUType      string    `json:"pdu_type"`
	VarBindCount int       `json:"varbind_count"`
	ErrorStatus  int32     `json:"error_status"`
	ErrorIndex   int32     `json:"error_index"`
	Dropped      bool      `json:"dropped"`
	ElapsedMS    float64   `json:"elapsed_ms"`
}

// Sink writes each Record as one JSON line to w. It is safe for concurrent
// use, matching the teacher's WriterTransport.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
}

// NewSink wraps w (typically a *RotatingFile or os.Stdout). A nil logger
// installs a no-op handler, matching the teacher's constructor convention.
func NewSink(w io.Writer, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Sink{w: w, logger: logger}
}

// Record marshals rec to JSON and writes it followed by a newline.
func (s *Sink) Record(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		s.logger.Error("audit: write failed", "error", err.Error())
		return fmt.Errorf("audit: write: %w", err)
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		s.logger.Error("audit: newline write failed", "error", err.Error())
		return fmt.Errorf("audit: write newline: %w", err)
	}
	return nil
}

// Close closes the underlying writer if it implements io.Closer (e.g. a
// *RotatingFile); the writer's lifetime is otherwise the caller's
// responsibility, matching the teacher's WriterTransport.Close contract.
func (s *Sink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
