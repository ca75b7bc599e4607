// Package capture drives the timed countdown and shutter for single and
// multi-shot capture runs.
//
// A run moves Idle → Countdown → Capturing, re-arms the countdown after a
// short pause while more shots are needed, and ends in Done. Cancel returns
// the sequencer to Idle from any state without invoking the completion
// observers, and no shot is emitted after a cancelled run notices it.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/moonback/photoboot/internal/imaging"
)

// Mode selects how many shots a run takes.
type Mode string

const (
	Single Mode = "single"
	Multi  Mode = "multi"
)

// ParseMode converts a request value to a Mode. Empty means Single.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Single:
		return Single, nil
	case Multi:
		return Multi, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// State is the sequencer's position in a run.
type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateCapturing State = "capturing"
	StateDone      State = "done"
)

// Limits for Start arguments.
const (
	MaxShots     = 10
	MaxCountdown = 30
)

var (
	// ErrCaptureCancelled is returned by Run when the run was cancelled.
	// It marks a normal terminal state, not a failure.
	ErrCaptureCancelled = errors.New("capture cancelled")
	// ErrBusy is returned by Run when another run is in progress.
	ErrBusy = errors.New("capture already running")
	// ErrNotRunning is returned by Pause and Resume outside a run.
	ErrNotRunning = errors.New("no capture running")
	// ErrInvalidMode is returned by ParseMode for unknown modes.
	ErrInvalidMode = errors.New("unknown capture mode")
)

// Shot is one captured raw frame.
type Shot struct {
	Index int
	Photo *imaging.Photo
}

// Status is a snapshot of the sequencer.
type Status struct {
	Running   bool  `json:"is_running"`
	State     State `json:"state"`
	Mode      Mode  `json:"mode,omitempty"`
	Remaining int   `json:"remaining"`
	ShotIndex int   `json:"shot_index"`
	ShotCount int   `json:"shot_count"`
	Paused    bool  `json:"paused"`
}

// run is the bookkeeping for one Start call.
type run struct {
	cancel   context.CancelFunc
	pauseCh  chan struct{}
	resumeCh chan struct{}
	done     chan struct{}

	shots []Shot
	err   error
}

// Sequencer runs capture countdowns. Observers are called from the run's
// goroutine without any lock held, so they may call Status or Cancel.
type Sequencer struct {
	camera Camera

	// TickInterval is the countdown step. Zero means one second.
	TickInterval time.Duration
	// ShotPause is the pause between shots of a multi run. Zero means one second.
	ShotPause time.Duration

	mu        sync.Mutex
	state     State
	mode      Mode
	remaining int
	shotIndex int
	shotCount int
	paused    bool
	current   *run

	onTick     []func(remaining int)
	onShutter  []func(Shot)
	onComplete []func([]Shot)
	onCancel   []func()
	onError    []func(error)
}

// NewSequencer creates an idle sequencer using camera.
func NewSequencer(camera Camera) *Sequencer {
	return &Sequencer{camera: camera, state: StateIdle}
}

// OnTick registers fn to receive the remaining seconds at each countdown step.
func (s *Sequencer) OnTick(fn func(remaining int)) {
	s.mu.Lock()
	s.onTick = append(s.onTick, fn)
	s.mu.Unlock()
}

// OnShutter registers fn to receive each shot as it is taken.
func (s *Sequencer) OnShutter(fn func(Shot)) {
	s.mu.Lock()
	s.onShutter = append(s.onShutter, fn)
	s.mu.Unlock()
}

// OnComplete registers fn to receive the ordered shots of a finished run.
func (s *Sequencer) OnComplete(fn func([]Shot)) {
	s.mu.Lock()
	s.onComplete = append(s.onComplete, fn)
	s.mu.Unlock()
}

// OnCancel registers fn to be called when a run is cancelled.
func (s *Sequencer) OnCancel(fn func()) {
	s.mu.Lock()
	s.onCancel = append(s.onCancel, fn)
	s.mu.Unlock()
}

// OnError registers fn to be called when the camera fails.
func (s *Sequencer) OnError(fn func(error)) {
	s.mu.Lock()
	s.onError = append(s.onError, fn)
	s.mu.Unlock()
}

// Start begins a run in the background. Starting while a run is in progress
// is logged and ignored. Single mode always takes one shot.
func (s *Sequencer) Start(mode Mode, shotCount, intervalSeconds int) error {
	_, err := s.start(mode, shotCount, intervalSeconds)
	if errors.Is(err, ErrBusy) {
		log.Warn().Msg("Capture already running, ignoring start")
		return nil
	}
	return err
}

// Run starts a run and blocks until it completes, fails or is cancelled.
// Cancelling ctx cancels the run.
func (s *Sequencer) Run(ctx context.Context, mode Mode, shotCount, intervalSeconds int) ([]Shot, error) {
	r, err := s.start(mode, shotCount, intervalSeconds)
	if err != nil {
		return nil, err
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		s.cancelRun(r)
		<-r.done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.shots, r.err
}

func (s *Sequencer) start(mode Mode, shotCount, intervalSeconds int) (*run, error) {
	if mode != Single && mode != Multi {
		return nil, fmt.Errorf("unknown capture mode %q", mode)
	}
	if mode == Single {
		shotCount = 1
	}
	if shotCount < 1 || shotCount > MaxShots {
		return nil, fmt.Errorf("shot count %d outside 1-%d", shotCount, MaxShots)
	}
	if intervalSeconds < 0 || intervalSeconds > MaxCountdown {
		return nil, fmt.Errorf("countdown %d outside 0-%d", intervalSeconds, MaxCountdown)
	}

	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		cancel:   cancel,
		pauseCh:  make(chan struct{}, 1),
		resumeCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.current = r
	s.state = StateCountdown
	s.mode = mode
	s.remaining = intervalSeconds
	s.shotIndex = 0
	s.shotCount = shotCount
	s.paused = false
	tick, pause := s.tickInterval(), s.shotPause()
	s.mu.Unlock()

	log.Info().
		Str("mode", string(mode)).
		Int("shot_count", shotCount).
		Int("countdown", intervalSeconds).
		Msg("Capture started")

	go s.loop(ctx, r, shotCount, intervalSeconds, tick, pause)
	return r, nil
}

func (s *Sequencer) loop(ctx context.Context, r *run, shotCount, interval int, tick, pause time.Duration) {
	defer close(r.done)
	defer r.cancel()

	shots := make([]Shot, 0, shotCount)
	for i := 0; i < shotCount; i++ {
		if i > 0 && !s.sleep(ctx, r, pause) {
			return
		}

		for remaining := interval; remaining > 0; remaining-- {
			if !s.update(r, func() {
				s.state = StateCountdown
				s.remaining = remaining
				s.shotIndex = i
			}) {
				return
			}
			if !s.emitTick(r, remaining) {
				return
			}
			if !s.sleep(ctx, r, tick) {
				return
			}
		}

		if !s.update(r, func() {
			s.state = StateCapturing
			s.remaining = 0
			s.shotIndex = i
		}) {
			return
		}

		img, err := s.camera.Capture(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.fail(r, fmt.Errorf("capture shot %d: %w", i, err))
			return
		}

		shot := Shot{Index: i, Photo: imaging.NewPhoto(img, i)}
		if !s.update(r, func() { s.shotIndex = i + 1 }) {
			return
		}
		log.Debug().Int("shot_index", i).Str("photo_id", shot.Photo.ID).Msg("Shutter")
		if !s.emitShutter(r, shot) {
			return
		}
		shots = append(shots, shot)
	}

	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.state = StateDone
	s.remaining = 0
	s.paused = false
	r.shots = shots
	callbacks := append([]func([]Shot){}, s.onComplete...)
	s.mu.Unlock()

	log.Info().Int("shot_count", len(shots)).Msg("Capture complete")
	for _, fn := range callbacks {
		fn(shots)
	}
}

// update applies fn under the lock if r is still the current run.
func (s *Sequencer) update(r *run, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != r {
		return false
	}
	fn()
	return true
}

func (s *Sequencer) fail(r *run, err error) {
	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.state = StateIdle
	s.remaining = 0
	s.paused = false
	r.err = err
	callbacks := append([]func(error){}, s.onError...)
	s.mu.Unlock()

	log.Error().Err(err).Msg("Capture failed")
	for _, fn := range callbacks {
		fn(err)
	}
}

// sleep waits d, honouring pause and cancellation. It reports whether the
// run should continue.
func (s *Sequencer) sleep(ctx context.Context, r *run, d time.Duration) bool {
	for d > 0 {
		if s.isPaused(r) {
			select {
			case <-ctx.Done():
				return false
			case <-r.resumeCh:
			}
			continue
		}

		started := time.Now()
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
			d = 0
		case <-r.pauseCh:
			timer.Stop()
			d -= time.Since(started)
		}
	}
	return ctx.Err() == nil
}

func (s *Sequencer) isPaused(r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == r && s.paused
}

// Cancel stops the current run and returns to Idle. It is safe to call at
// any time; without a run it does nothing. Cancel does not wait for the
// run's goroutine, but that goroutine emits nothing further.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r != nil {
		s.cancelRun(r)
	}
}

// cancelRun cancels r only while it is still the current run, so a late
// context cancellation cannot stop a run started after r finished.
func (s *Sequencer) cancelRun(r *run) {
	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.state = StateIdle
	s.remaining = 0
	s.paused = false
	r.err = ErrCaptureCancelled
	r.cancel()
	callbacks := append([]func(){}, s.onCancel...)
	s.mu.Unlock()

	log.Info().Msg("Capture cancelled")
	for _, fn := range callbacks {
		fn()
	}
}

// Pause freezes the countdown without resetting the remaining time.
func (s *Sequencer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNotRunning
	}
	if s.paused {
		return nil
	}
	s.paused = true
	signal(s.current.pauseCh)
	log.Debug().Int("remaining", s.remaining).Msg("Capture paused")
	return nil
}

// Resume restarts a paused countdown for the time that was left.
func (s *Sequencer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNotRunning
	}
	if !s.paused {
		return nil
	}
	s.paused = false
	signal(s.current.resumeCh)
	log.Debug().Int("remaining", s.remaining).Msg("Capture resumed")
	return nil
}

// Status returns a snapshot of the sequencer.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:   s.current != nil,
		State:     s.state,
		Mode:      s.mode,
		Remaining: s.remaining,
		ShotIndex: s.shotIndex,
		ShotCount: s.shotCount,
		Paused:    s.paused,
	}
}

// emitTick and emitShutter take the observer list in the same critical
// section that confirms r is still current. A run cancelled before that
// point emits nothing.
func (s *Sequencer) emitTick(r *run, remaining int) bool {
	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return false
	}
	callbacks := append([]func(int){}, s.onTick...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn(remaining)
	}
	return true
}

func (s *Sequencer) emitShutter(r *run, shot Shot) bool {
	s.mu.Lock()
	if s.current != r {
		s.mu.Unlock()
		return false
	}
	callbacks := append([]func(Shot){}, s.onShutter...)
	s.mu.Unlock()
	for _, fn := range callbacks {
		fn(shot)
	}
	return true
}

func (s *Sequencer) tickInterval() time.Duration {
	if s.TickInterval > 0 {
		return s.TickInterval
	}
	return time.Second
}

func (s *Sequencer) shotPause() time.Duration {
	if s.ShotPause > 0 {
		return s.ShotPause
	}
	return time.Second
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
