// Package capture implements the bounded-duration capture session that picks
// the single frame handed to the extractor.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/facegate/internal/constants"
)

var (
	// ErrSessionTerminated is returned by Feed after the terminal frame was chosen.
	ErrSessionTerminated = errors.New("capture session already terminated")
	// ErrNotTerminated is returned by TerminalFrame while the session is active.
	ErrNotTerminated = errors.New("capture session not terminated")
	// ErrTerminalFrameTaken is returned when the terminal frame was already handed out.
	ErrTerminalFrameTaken = errors.New("terminal frame already taken")
	// ErrCaptureSourceLost is returned when frames stop before termination.
	ErrCaptureSourceLost = errors.New("capture source lost")
)

// State is the lifecycle state of a session.
type State int

const (
	Active State = iota
	Terminated
	Failed
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Detector finds a face region in an encoded frame. A nil region means no
// face is visible.
type Detector interface {
	DetectRegion(ctx context.Context, frame []byte) (*Region, error)
}

// Option configures a Session.
type Option func(*Session)

// WithBudget sets how long the session stays active.
func WithBudget(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDetector sets the face region detector.
func WithDetector(d Detector) Option {
	return func(s *Session) { s.detector = d }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Status is a point-in-time view of a session.
type Status struct {
	ID         string
	State      State
	FramesSeen int
	Elapsed    time.Duration
	Region     *Region
	Indicator  int
	Forced     bool
}

// Session selects one terminal frame from a stream. It is Active until the
// budget elapses or Stop is called, then Terminated exactly once.
type Session struct {
	id       string
	budget   time.Duration
	now      func() time.Time
	detector Detector
	logger   *slog.Logger

	stopRequested atomic.Bool

	mu         sync.Mutex
	state      State
	started    time.Time
	elapsed    time.Duration
	framesSeen int
	region     *Region
	indicator  Indicator
	forced     bool
	terminal   *Frame
	taken      bool
}

// New creates an active session. The budget clock starts here, so a slow
// first frame counts against it.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		budget:    constants.DefaultCaptureBudget,
		now:       time.Now,
		logger:    slog.Default(),
		indicator: newIndicator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	s.started = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Budget returns the configured capture budget.
func (s *Session) Budget() time.Duration {
	return s.budget
}

// Stop forces the session to terminate on the next frame. Safe to call
// from any goroutine and more than once.
func (s *Session) Stop() {
	s.stopRequested.Store(true)
}

// Feed processes one frame. It returns true once the frame became terminal.
func (s *Session) Feed(ctx context.Context, frame Frame) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if s.Status().State != Active {
		return false, ErrSessionTerminated
	}

	// Detection is a network round trip; Status must not wait on it.
	now := s.now()
	region := s.detect(ctx, frame)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return false, ErrSessionTerminated
	}

	s.framesSeen++
	s.elapsed = now.Sub(s.started)

	s.region = region
	height := 0
	if s.region != nil {
		height = s.region.Height()
	}
	s.indicator.Advance(height)

	forced := s.stopRequested.Load()
	if s.elapsed <= s.budget && !forced {
		return false, nil
	}

	terminal := frame
	s.terminal = &terminal
	s.state = Terminated
	s.forced = forced
	s.logger.Debug("capture session terminated",
		"frames", s.framesSeen,
		"elapsed", s.elapsed,
		"forced", forced,
		"face", s.region != nil)
	return true, nil
}

func (s *Session) detect(ctx context.Context, frame Frame) *Region {
	if s.detector == nil {
		return nil
	}
	region, err := s.detector.DetectRegion(ctx, frame.Data)
	if err != nil {
		s.logger.Debug("face detection failed, treating frame as empty", "frame", frame.Index, "error", err)
		return nil
	}
	return region
}

// Run pulls frames from src until the session terminates.
func (s *Session) Run(ctx context.Context, src FrameSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.fail()
			return fmt.Errorf("%w: %w", ErrCaptureSourceLost, err)
		}

		done, err := s.Feed(ctx, frame)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (s *Session) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active {
		s.state = Failed
		s.logger.Warn("capture source lost", "frames", s.framesSeen)
	}
}

// TerminalFrame hands out the terminal frame. It succeeds exactly once.
func (s *Session) TerminalFrame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Active:
		return Frame{}, ErrNotTerminated
	case Failed:
		return Frame{}, ErrCaptureSourceLost
	}
	if s.taken {
		return Frame{}, ErrTerminalFrameTaken
	}
	s.taken = true
	return *s.terminal, nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	var region *Region
	if s.region != nil {
		r := *s.region
		region = &r
	}
	return Status{
		ID:         s.id,
		State:      s.state,
		FramesSeen: s.framesSeen,
		Elapsed:    s.elapsed,
		Region:     region,
		Indicator:  s.indicator.Pos,
		Forced:     s.forced,
	}
}
