package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeClock advances by step on every call.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

type stubDetector struct {
	region *Region
	err    error
	calls  int
}

func (d *stubDetector) DetectRegion(context.Context, []byte) (*Region, error) {
	d.calls++
	return d.region, d.err
}

func countingSource() FrameSource {
	n := 0
	return FuncSource(func(context.Context) (Frame, error) {
		f := Frame{Index: n, Data: []byte{byte(n)}}
		n++
		return f, nil
	})
}

func TestSessionTerminatesOnBudgetWithoutFace(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Second}
	det := &stubDetector{}
	s := New(WithBudget(5*time.Second), WithClock(clock.Now), WithDetector(det))

	if err := s.Run(context.Background(), countingSource()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	status := s.Status()
	if status.State != Terminated {
		t.Fatalf("State = %v, want terminated", status.State)
	}
	// The session starts at 0s; frames at 1s..5s stay active and the frame
	// at 6s exceeds the budget.
	if status.FramesSeen != 6 {
		t.Errorf("FramesSeen = %d, want 6", status.FramesSeen)
	}
	if status.Region != nil {
		t.Errorf("Region = %+v, want nil", status.Region)
	}
	if det.calls != 6 {
		t.Errorf("detector calls = %d, want 6", det.calls)
	}

	frame, err := s.TerminalFrame()
	if err != nil {
		t.Fatalf("TerminalFrame: %v", err)
	}
	if frame.Index != 5 {
		t.Errorf("terminal frame index = %d, want 5", frame.Index)
	}
}

func TestSlowFirstFrameCountsAgainstBudget(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: 6 * time.Second}
	s := New(WithBudget(5*time.Second), WithClock(clock.Now))

	done, err := s.Feed(context.Background(), Frame{Index: 0})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !done {
		t.Fatal("first frame arriving after the budget should terminate the session")
	}
	if got := s.Status().Elapsed; got != 6*time.Second {
		t.Errorf("Elapsed = %v, want 6s", got)
	}
}

// blockingDetector waits for release before answering.
type blockingDetector struct {
	entered chan struct{}
	release chan struct{}
}

func (d *blockingDetector) DetectRegion(ctx context.Context, _ []byte) (*Region, error) {
	close(d.entered)
	<-d.release
	return nil, nil
}

func TestStatusDoesNotWaitForDetector(t *testing.T) {
	det := &blockingDetector{entered: make(chan struct{}), release: make(chan struct{})}
	s := New(WithDetector(det))

	fed := make(chan error, 1)
	go func() {
		_, err := s.Feed(context.Background(), Frame{})
		fed <- err
	}()
	<-det.entered

	statusDone := make(chan Status, 1)
	go func() { statusDone <- s.Status() }()

	select {
	case st := <-statusDone:
		if st.FramesSeen != 0 {
			t.Errorf("FramesSeen during detection = %d, want 0", st.FramesSeen)
		}
	case <-time.After(time.Second):
		t.Error("Status blocked while the detector was running")
	}

	close(det.release)
	if err := <-fed; err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if s.Status().FramesSeen != 1 {
		t.Errorf("FramesSeen = %d, want 1", s.Status().FramesSeen)
	}
}

func TestSessionStopForcesTermination(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Millisecond}
	s := New(WithClock(clock.Now))
	ctx := context.Background()

	done, err := s.Feed(ctx, Frame{Index: 0})
	if err != nil || done {
		t.Fatalf("first Feed = %v, %v; want false, nil", done, err)
	}

	s.Stop()
	s.Stop()
	done, err = s.Feed(ctx, Frame{Index: 1})
	if err != nil || !done {
		t.Fatalf("Feed after Stop = %v, %v; want true, nil", done, err)
	}
	if !s.Status().Forced {
		t.Error("expected Forced to be set")
	}

	if _, err := s.Feed(ctx, Frame{Index: 2}); !errors.Is(err, ErrSessionTerminated) {
		t.Errorf("Feed after termination: expected ErrSessionTerminated, got %v", err)
	}
}

func TestTerminalFrameExposedOnce(t *testing.T) {
	s := New()
	if _, err := s.TerminalFrame(); !errors.Is(err, ErrNotTerminated) {
		t.Fatalf("expected ErrNotTerminated, got %v", err)
	}

	s.Stop()
	if _, err := s.Feed(context.Background(), Frame{Index: 0, Data: []byte("img")}); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	frame, err := s.TerminalFrame()
	if err != nil {
		t.Fatalf("TerminalFrame: %v", err)
	}
	if string(frame.Data) != "img" {
		t.Errorf("Data = %q, want img", frame.Data)
	}
	if _, err := s.TerminalFrame(); !errors.Is(err, ErrTerminalFrameTaken) {
		t.Errorf("second TerminalFrame: expected ErrTerminalFrameTaken, got %v", err)
	}
}

func TestRunSourceLost(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), step: time.Second}
	s := New(WithBudget(5*time.Second), WithClock(clock.Now))

	n := 0
	src := FuncSource(func(context.Context) (Frame, error) {
		if n == 2 {
			return Frame{}, io.EOF
		}
		n++
		return Frame{Index: n}, nil
	})

	err := s.Run(context.Background(), src)
	if !errors.Is(err, ErrCaptureSourceLost) {
		t.Fatalf("expected ErrCaptureSourceLost, got %v", err)
	}
	if s.Status().State != Failed {
		t.Errorf("State = %v, want failed", s.Status().State)
	}
	if _, err := s.TerminalFrame(); !errors.Is(err, ErrCaptureSourceLost) {
		t.Errorf("TerminalFrame after loss: expected ErrCaptureSourceLost, got %v", err)
	}
}

func TestRunContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()

	src := FuncSource(func(ctx context.Context) (Frame, error) {
		cancel()
		<-ctx.Done()
		return Frame{}, ctx.Err()
	})

	if err := s.Run(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Status().State != Active {
		t.Errorf("State = %v, want active", s.Status().State)
	}
}

func TestDetectorErrorTreatedAsNoFace(t *testing.T) {
	det := &stubDetector{region: &Region{0, 0, 10, 10}, err: errors.New("boom")}
	s := New(WithDetector(det))

	if _, err := s.Feed(context.Background(), Frame{}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if s.Status().Region != nil {
		t.Error("expected nil region when detector fails")
	}
}

func TestRegionReplacedEachFrame(t *testing.T) {
	det := &stubDetector{region: &Region{X1: 0, Y1: 10, X2: 50, Y2: 60}}
	s := New(WithDetector(det))
	ctx := context.Background()

	if _, err := s.Feed(ctx, Frame{}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if r := s.Status().Region; r == nil || r.Height() != 50 {
		t.Fatalf("Region = %+v, want height 50", r)
	}

	det.region = nil
	if _, err := s.Feed(ctx, Frame{}); err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if s.Status().Region != nil {
		t.Error("region should be cleared when no face is visible")
	}
}

func TestIndicatorBouncesWithinRegion(t *testing.T) {
	ind := newIndicator()
	ind.Step = 5

	var positions []int
	for i := 0; i < 6; i++ {
		ind.Advance(12)
		positions = append(positions, ind.Pos)
	}
	want := []int{5, 10, 12, 7, 2, 0}
	for i := range want {
		if positions[i] != want[i] {
			t.Fatalf("positions = %v, want %v", positions, want)
		}
	}

	ind.Advance(0)
	if ind.Pos != 0 {
		t.Errorf("Pos without region = %d, want 0", ind.Pos)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.jpg", "a.png", "notes.txt", "c.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	src, err := NewDirSource(dir, 0)
	if err != nil {
		t.Fatalf("NewDirSource: %v", err)
	}
	if src.Len() != 3 {
		t.Fatalf("Len = %d, want 3", src.Len())
	}

	ctx := context.Background()
	var got []string
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, string(f.Data))
	}
	want := []string{"a.png", "b.jpg", "c.webp"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
}

func TestStillSourceRespectsContext(t *testing.T) {
	src := NewStillSource([]byte("x"), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
