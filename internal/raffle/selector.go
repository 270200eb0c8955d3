// Package raffle picks a raffle winner and drives the timed reveal.
//
// A draw is decided the moment it starts: the winning index is fixed then and
// kept hidden until the spin duration elapses, at which point the winner is
// published. The spin itself is pure presentation.
package raffle

import (
	"errors"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"

	"chapter/internal/models"
)

// State is the phase a Selector is in.
type State string

const (
	StateIdle      State = "idle"
	StateEmpty     State = "empty" // StartDraw was given nobody to draw from
	StateSpinning  State = "spinning"
	StateCompleted State = "completed"
	StateClosed    State = "closed"
)

var (
	ErrDrawInProgress = errors.New("raffle: a draw is already spinning")
	ErrClosed         = errors.New("raffle: selector is closed")
)

// Snapshot is the view of a Selector handed to the host page.
// WinnerIndex is -1 until the draw completes.
type Snapshot struct {
	State        State                `json:"state"`
	IsRunning    bool                 `json:"isRunning"`
	DrawID       string               `json:"drawId,omitempty"`
	Participants []models.Participant `json:"participants"`
	Winner       *models.Participant  `json:"winner,omitempty"`
	WinnerIndex  int                  `json:"winnerIndex"`
	DurationMs   int64                `json:"durationMs"`
	Cycles       int                  `json:"cycles"`
	StartedAt    time.Time            `json:"startedAt"`
}

// Listener is told about every state transition. Calls are serialized and
// must not re-enter the Selector.
type Listener interface {
	DrawChanged(Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Snapshot)

func (f ListenerFunc) DrawChanged(s Snapshot) { f(s) }

// Celebrator fires the cosmetic effect for a completed draw. It is called
// once at completion and once more after the follow-up delay.
type Celebrator interface {
	Celebrate(Snapshot)
}

// CelebratorFunc adapts a function to Celebrator.
type CelebratorFunc func(Snapshot)

func (f CelebratorFunc) Celebrate(s Snapshot) { f(s) }

// Option configures a Selector.
type Option func(*Selector)

func WithClock(c Clock) Option { return func(s *Selector) { s.clock = c } }

func WithRandom(r RandomSource) Option { return func(s *Selector) { s.random = r } }

func WithListener(l Listener) Option { return func(s *Selector) { s.listener = l } }

func WithCelebrator(c Celebrator) Option { return func(s *Selector) { s.celebrator = c } }

// WithParticipants sets the list an idle selector shows before its first draw.
func WithParticipants(ps []models.Participant) Option {
	return func(s *Selector) { s.participants = append([]models.Participant(nil), ps...) }
}

// WithFollowUp sets the delay of the second celebration. Zero disables it.
func WithFollowUp(d time.Duration) Option { return func(s *Selector) { s.followUp = d } }

// Selector owns one draw dialog. It is safe for concurrent use; completions
// arrive on the clock's goroutine.
type Selector struct {
	mu       sync.Mutex
	notifyMu sync.Mutex

	clock      Clock
	random     RandomSource
	listener   Listener
	celebrator Celebrator
	followUp   time.Duration

	state        State
	participants []models.Participant
	target       int
	duration     time.Duration
	cycles       int
	drawID       string
	startedAt    time.Time
	winner       *models.Participant

	// timer is the single pending callback: the spin completion while
	// spinning, the follow-up celebration once completed.
	timer Timer
	// run is bumped whenever a draw starts, resets or closes; callbacks
	// scheduled under an older run are ignored.
	run uint64
}

// NewSelector returns an idle Selector.
func NewSelector(opts ...Option) *Selector {
	s := &Selector{
		clock:    SystemClock(),
		random:   DefaultRandom,
		followUp: DefaultFollowUp,
		state:    StateIdle,
		target:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartDraw decides a winner among participants and starts the spin.
// An empty list moves the selector to StateEmpty without scheduling anything.
func (s *Selector) StartDraw(participants []models.Participant) (Snapshot, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	case StateSpinning:
		s.mu.Unlock()
		return Snapshot{}, ErrDrawInProgress
	}

	s.stopTimerLocked()
	s.run++
	s.clearDrawLocked()
	s.participants = append([]models.Participant(nil), participants...)

	n := len(s.participants)
	if n == 0 {
		s.state = StateEmpty
		return s.publishLocked(), nil
	}

	s.target = pickIndex(s.random, n)
	s.cycles = spinCycles(s.random)
	s.duration = SpinDuration(n)
	s.drawID = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.state = StateSpinning

	run := s.run
	s.timer = s.clock.AfterFunc(s.duration, func() { s.complete(run) })
	logger.Infof("raffle: draw %s started over %d participants, spinning for %s", s.drawID, n, s.duration)

	return s.publishLocked(), nil
}

// Reset discards the last winner and returns to StateIdle with the same
// participants, ready for another StartDraw.
func (s *Selector) Reset() (Snapshot, error) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	case StateSpinning:
		s.mu.Unlock()
		return Snapshot{}, ErrDrawInProgress
	}

	s.stopTimerLocked()
	s.run++
	s.clearDrawLocked()
	s.state = StateIdle

	return s.publishLocked(), nil
}

// Close cancels any pending completion and discards the session.
// Closing twice is a no-op.
func (s *Selector) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateSpinning {
		logger.Infof("raffle: draw %s closed while spinning", s.drawID)
	}

	s.stopTimerLocked()
	s.run++
	s.clearDrawLocked()
	s.participants = nil
	s.state = StateClosed

	s.publishLocked()
	return nil
}

// Snapshot returns the current view of the selector.
func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Announce hands the current snapshot to the listener again without changing
// state. It is ordered with the transitions the listener already saw.
func (s *Selector) Announce() Snapshot {
	s.mu.Lock()
	return s.publishLocked()
}

// Participants returns a copy of the list the selector draws from.
func (s *Selector) Participants() []models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Participant(nil), s.participants...)
}

func (s *Selector) complete(run uint64) {
	s.mu.Lock()
	if s.run != run || s.state != StateSpinning {
		s.mu.Unlock()
		return
	}

	s.timer = nil
	w := s.participants[s.target]
	s.winner = &w
	s.state = StateCompleted
	logger.Infof("raffle: draw %s completed, winner %q", s.drawID, w.Name)

	if s.celebrator != nil && s.followUp > 0 {
		s.timer = s.clock.AfterFunc(s.followUp, func() { s.celebrateAgain(run) })
	}

	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if s.listener != nil {
		s.listener.DrawChanged(snap)
	}
	if s.celebrator != nil {
		s.celebrator.Celebrate(snap)
	}
}

func (s *Selector) celebrateAgain(run uint64) {
	s.mu.Lock()
	if s.run != run || s.state != StateCompleted {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.celebrator.Celebrate(snap)
}

// publishLocked hands the current snapshot to the listener, releases s.mu
// and returns what was published. notifyMu is taken before s.mu is dropped
// so listeners see transitions in order.
func (s *Selector) publishLocked() Snapshot {
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if s.listener != nil {
		s.listener.DrawChanged(snap)
	}
	return snap
}

func (s *Selector) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:        s.state,
		IsRunning:    s.state == StateSpinning,
		DrawID:       s.drawID,
		Participants: append([]models.Participant{}, s.participants...),
		WinnerIndex:  -1,
		DurationMs:   s.duration.Milliseconds(),
		Cycles:       s.cycles,
		StartedAt:    s.startedAt,
	}
	if s.state == StateCompleted && s.winner != nil {
		w := *s.winner
		snap.Winner = &w
		snap.WinnerIndex = s.target
	}
	return snap
}

func (s *Selector) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Selector) clearDrawLocked() {
	s.target = -1
	s.duration = 0
	s.cycles = 0
	s.drawID = ""
	s.startedAt = time.Time{}
	s.winner = nil
}
