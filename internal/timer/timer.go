package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Phase durations are fixed for every room.
const (
	FocusSeconds = 25 * 60
	BreakSeconds = 5 * 60
)

// Mode names the phase carried by a phase-end notification.
type Mode string

const (
	ModeFocus Mode = "FOCUS"
	ModeBreak Mode = "BREAK"
)

// State is a snapshot of the countdown as broadcast to room members.
type State struct {
	TimeLeft       int  `json:"timeLeft"`
	IsWorkTime     bool `json:"isWorkTime"`
	IsRunning      bool `json:"isRunning"`
	TotalFocusTime int  `json:"totalFocusTime"`
}

// Sink receives timer emissions. Emissions happen with the timer lock held,
// so delivery order always matches the order transitions were applied.
// Implementations must not call back into the Timer.
type Sink interface {
	TimerUpdated(s State)
	TimerEnded(mode Mode)
}

// Timer is the per-room countdown state machine. A running timer owns exactly
// one tick task, a goroutine driving a one-second clockwork ticker. The stop
// channel doubles as the task's generation token: a superseded task compares
// its channel against the current one under the lock and exits without
// effect, so cancellation never races a tick.
type Timer struct {
	clock clockwork.Clock
	sink  Sink

	mu         sync.Mutex
	timeLeft   int
	focus      bool
	running    bool
	totalFocus int
	stop       chan struct{} // non-nil iff running
}

// New returns an idle timer at the start of a focus phase.
func New(clock clockwork.Clock, sink Sink) *Timer {
	return &Timer{
		clock:    clock,
		sink:     sink,
		timeLeft: FocusSeconds,
		focus:    true,
	}
}

// Start begins the countdown and emits a snapshot. No-op if already running.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

// Pause halts the countdown and emits a snapshot. No-op, with no emission,
// if already idle.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.cancelLocked()
	t.sink.TimerUpdated(t.stateLocked())
}

// Reset returns to an idle focus phase at the full duration and emits a
// snapshot. Accumulated focus time is kept; it is cumulative over the
// room's life.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.focus = true
	t.timeLeft = FocusSeconds
	t.sink.TimerUpdated(t.stateLocked())
}

// Next flips the phase and immediately resumes the countdown in it.
func (t *Timer) Next() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.focus = !t.focus
	if t.focus {
		t.timeLeft = FocusSeconds
	} else {
		t.timeLeft = BreakSeconds
	}
	t.startLocked()
}

// Stop cancels any tick task without emitting. Called on room teardown,
// before the room leaves the registry, so no tick fires against a removed
// room.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Timer) startLocked() {
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	go t.run(t.stop)
	t.sink.TimerUpdated(t.stateLocked())
}

// cancelLocked tears down the current tick task, if any. The close is
// synchronous with respect to state: any tick already waiting on the lock
// will see the swapped channel and discard itself.
func (t *Timer) cancelLocked() {
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.running = false
}

func (t *Timer) run(stop chan struct{}) {
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !t.tick(stop) {
				return
			}
		}
	}
}

// tick applies one second of countdown. Returns false when the task should
// exit: either it has been superseded or the countdown reached zero.
func (t *Timer) tick(stop chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != stop {
		return false
	}
	if t.focus {
		t.totalFocus++
	}
	t.timeLeft--
	if t.timeLeft <= 0 {
		t.timeLeft = 0
		t.running = false
		t.stop = nil
		mode := ModeBreak
		if t.focus {
			mode = ModeFocus
		}
		log.Debug().Str("mode", string(mode)).Msg("countdown reached zero")
		t.sink.TimerEnded(mode)
		return false
	}
	t.sink.TimerUpdated(t.stateLocked())
	return true
}

func (t *Timer) stateLocked() State {
	return State{
		TimeLeft:       t.timeLeft,
		IsWorkTime:     t.focus,
		IsRunning:      t.running,
		TotalFocusTime: t.totalFocus,
	}
}
