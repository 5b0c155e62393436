package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// captureSink records emissions and signals each one, so tests can wait for
// the tick goroutine without sleeping.
type captureSink struct {
	mu      sync.Mutex
	updates []State
	ended   []Mode
	signal  chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{signal: make(chan struct{}, FocusSeconds+16)}
}

func (s *captureSink) TimerUpdated(st State) {
	s.mu.Lock()
	s.updates = append(s.updates, st)
	s.mu.Unlock()
	s.signal <- struct{}{}
}

func (s *captureSink) TimerEnded(mode Mode) {
	s.mu.Lock()
	s.ended = append(s.ended, mode)
	s.mu.Unlock()
	s.signal <- struct{}{}
}

func (s *captureSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-s.signal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for timer emission")
	}
}

func (s *captureSink) assertQuiet(t *testing.T) {
	t.Helper()
	select {
	case <-s.signal:
		t.Fatal("unexpected timer emission")
	default:
	}
}

func (s *captureSink) lastUpdate(t *testing.T) State {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.updates)
	return s.updates[len(s.updates)-1]
}

func (s *captureSink) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *captureSink) endedModes() []Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mode, len(s.ended))
	copy(out, s.ended)
	return out
}

// advance moves the fake clock one second and waits for the resulting
// emission.
func advance(t *testing.T, fc *clockwork.FakeClock, sink *captureSink) {
	t.Helper()
	fc.Advance(time.Second)
	sink.wait(t)
}

func TestStartEmitsSnapshotAndCountsDown(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Start()
	sink.wait(t)
	req.Equal(State{TimeLeft: FocusSeconds, IsWorkTime: true, IsRunning: true}, sink.lastUpdate(t))

	fc.BlockUntil(1)
	advance(t, fc, sink)
	req.Equal(State{TimeLeft: FocusSeconds - 1, IsWorkTime: true, IsRunning: true, TotalFocusTime: 1}, sink.lastUpdate(t))

	advance(t, fc, sink)
	req.Equal(FocusSeconds-2, tm.State().TimeLeft)
	req.Equal(2, tm.State().TotalFocusTime)
}

func TestDoubleStartKeepsSingleTickTask(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Start()
	sink.wait(t)
	tm.Start()
	sink.assertQuiet(t)

	fc.BlockUntil(1)
	advance(t, fc, sink)
	// A second tick task would decrement twice per advanced second.
	req.Equal(FocusSeconds-1, tm.State().TimeLeft)
	req.Equal(2, sink.updateCount())
}

func TestPauseIdempotent(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Pause()
	sink.assertQuiet(t)
	req.Equal(State{TimeLeft: FocusSeconds, IsWorkTime: true}, tm.State())

	tm.Start()
	sink.wait(t)
	fc.BlockUntil(1)
	advance(t, fc, sink)

	tm.Pause()
	sink.wait(t)
	req.Equal(State{TimeLeft: FocusSeconds - 1, IsWorkTime: true, TotalFocusTime: 1}, sink.lastUpdate(t))

	tm.Pause()
	sink.assertQuiet(t)

	// An orphaned tick task would keep decrementing after pause.
	fc.Advance(5 * time.Second)
	sink.assertQuiet(t)
	req.Equal(FocusSeconds-1, tm.State().TimeLeft)
}

func TestResetKeepsAccumulatedFocusTime(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Start()
	sink.wait(t)
	fc.BlockUntil(1)
	for i := 0; i < 3; i++ {
		advance(t, fc, sink)
	}

	tm.Reset()
	sink.wait(t)
	req.Equal(State{TimeLeft: FocusSeconds, IsWorkTime: true, IsRunning: false, TotalFocusTime: 3}, tm.State())

	// Reset on an idle timer still emits and leaves the counter alone.
	tm.Reset()
	sink.wait(t)
	req.Equal(3, tm.State().TotalFocusTime)
}

func TestNextTogglesPhaseAndAutoStarts(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Next()
	sink.wait(t)
	req.Equal(State{TimeLeft: BreakSeconds, IsWorkTime: false, IsRunning: true}, tm.State())

	// Break seconds do not count toward focus time.
	fc.BlockUntil(1)
	advance(t, fc, sink)
	advance(t, fc, sink)
	req.Equal(State{TimeLeft: BreakSeconds - 2, IsWorkTime: false, IsRunning: true}, tm.State())

	tm.Next()
	sink.wait(t)
	req.Equal(State{TimeLeft: FocusSeconds, IsWorkTime: true, IsRunning: true}, tm.State())
}

func TestCountdownReachesZero(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Next() // break phase, 300 seconds, auto-started
	sink.wait(t)
	fc.BlockUntil(1)

	for i := 0; i < BreakSeconds; i++ {
		advance(t, fc, sink)
	}

	req.Equal([]Mode{ModeBreak}, sink.endedModes())
	req.Equal(State{TimeLeft: 0, IsWorkTime: false, IsRunning: false}, tm.State())

	// No further ticks after the phase ended; the host must act.
	fc.Advance(10 * time.Second)
	sink.assertQuiet(t)
	req.Equal(0, tm.State().TimeLeft)
}

func TestFullFocusPhaseEndsWithFocusMode(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Start()
	sink.wait(t)
	fc.BlockUntil(1)

	for i := 0; i < FocusSeconds; i++ {
		advance(t, fc, sink)
	}

	req.Equal([]Mode{ModeFocus}, sink.endedModes())
	req.Equal(FocusSeconds, tm.State().TotalFocusTime)
	req.False(tm.State().IsRunning)
}

func TestStopCancelsWithoutEmitting(t *testing.T) {
	req := require.New(t)
	fc := clockwork.NewFakeClock()
	sink := newCaptureSink()
	tm := New(fc, sink)

	tm.Start()
	sink.wait(t)
	fc.BlockUntil(1)

	tm.Stop()
	sink.assertQuiet(t)

	fc.Advance(5 * time.Second)
	sink.assertQuiet(t)
	req.Equal(State{TimeLeft: FocusSeconds, IsWorkTime: true}, tm.State())
}
