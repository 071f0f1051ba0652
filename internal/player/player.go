// Package player drives a slide presentation: narration per slide, a
// simulated progress bar, auto-advance and auto-hiding controls.
//
// Every command, timer and narration callback becomes an event on one queue,
// and events are handled one at a time. A narrator may call back from inside
// Start; the callback is queued behind the event that started it.
package player

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
	"notebook-backend/pkg/logger"
)

type options struct {
	clock          Clock
	tickInterval   time.Duration
	wordsPerMinute int
	minDuration    time.Duration
	mutedDuration  time.Duration
	controlsHide   time.Duration
	rate           float64
	pitch          float64
	muted          bool
	onClose        func()
}

type Option func(*options)

func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithConfig applies the player section of the application config.
func WithConfig(cfg config.PlayerConfig) Option {
	return func(o *options) {
		if cfg.TickInterval > 0 {
			o.tickInterval = cfg.TickInterval
		}
		if cfg.WordsPerMinute > 0 {
			o.wordsPerMinute = cfg.WordsPerMinute
		}
		if cfg.MinDuration > 0 {
			o.minDuration = cfg.MinDuration
		}
		if cfg.MutedDuration > 0 {
			o.mutedDuration = cfg.MutedDuration
		}
		if cfg.ControlsHide > 0 {
			o.controlsHide = cfg.ControlsHide
		}
		if cfg.Rate > 0 {
			o.rate = cfg.Rate
		}
		if cfg.Pitch > 0 {
			o.pitch = cfg.Pitch
		}
	}
}

// WithMuted starts the player muted.
func WithMuted(muted bool) Option {
	return func(o *options) { o.muted = muted }
}

// WithOnClose registers a hook run once when the player closes.
func WithOnClose(fn func()) Option {
	return func(o *options) { o.onClose = fn }
}

// Player is safe for concurrent use. Commands issued while another goroutine
// is handling events are queued and applied by that goroutine.
type Player struct {
	pres     model.Presentation
	narrator Narrator
	opts     options

	qmu      sync.Mutex
	queue    []event
	draining bool

	// owned by whichever goroutine is draining the queue
	status          Status
	current         int
	muted           bool
	progress        float64
	controlsVisible bool
	closed          bool

	epoch     uint64 // one per slide run; stale narration callbacks carry an old one
	narrating bool
	suspended bool

	timerSeq uint64 // bumped whenever the tick and fallback timers are replaced
	running  bool
	runStart time.Time
	elapsed  time.Duration
	estimate time.Duration
	tick     Timer
	fallback Timer

	hideSeq uint64
	hide    Timer

	settled structuralState // as of the last publish within the current event

	smu       sync.RWMutex
	state     State
	listeners []func(State)
	closeOnce sync.Once
}

func New(p model.Presentation, narrator Narrator, opts ...Option) *Player {
	o := options{
		clock:          SystemClock,
		tickInterval:   50 * time.Millisecond,
		wordsPerMinute: 140,
		minDuration:    3 * time.Second,
		mutedDuration:  4 * time.Second,
		controlsHide:   3 * time.Second,
		rate:           0.9,
		pitch:          1.0,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if narrator == nil {
		narrator = Silent{}
	}

	pl := &Player{
		pres:            p,
		narrator:        narrator,
		opts:            o,
		status:          Stopped,
		muted:           o.muted,
		controlsVisible: true,
	}
	pl.state = pl.snapshot()
	return pl
}

func (p *Player) Play()           { p.post(cmdPlay{}) }
func (p *Player) Pause()          { p.post(cmdPause{}) }
func (p *Player) Stop()           { p.post(cmdStop{}) }
func (p *Player) GoToSlide(i int) { p.post(cmdGoTo{index: i}) }
func (p *Player) Next()           { p.post(cmdStep{delta: 1}) }
func (p *Player) Previous()       { p.post(cmdStep{delta: -1}) }
func (p *Player) ToggleMute()     { p.post(cmdMute{}) }

// PointerActivity reveals the controls and restarts the auto-hide timer.
func (p *Player) PointerActivity() { p.post(cmdPointer{}) }

// Close cancels every timer and narration. Events arriving afterwards are
// ignored.
func (p *Player) Close() { p.post(cmdClose{}) }

// State returns the most recently published snapshot.
func (p *Player) State() State {
	p.smu.RLock()
	defer p.smu.RUnlock()
	return p.state
}

func (p *Player) Presentation() model.Presentation {
	return p.pres
}

// OnChange subscribes fn to every published state change. fn runs on the
// goroutine handling events and may call back into the player.
func (p *Player) OnChange(fn func(State)) {
	p.smu.Lock()
	p.listeners = append(p.listeners, fn)
	p.smu.Unlock()
}

type event interface{}

type (
	cmdPlay    struct{}
	cmdPause   struct{}
	cmdStop    struct{}
	cmdToggle  struct{}
	cmdMute    struct{}
	cmdPointer struct{}
	cmdClose   struct{}
	cmdGoTo    struct{ index int }
	cmdStep    struct{ delta int }

	narrationEnded  struct{ epoch uint64 }
	narrationFailed struct {
		epoch uint64
		err   error
	}
	fallbackElapsed struct{ seq uint64 }
	progressTick    struct{ seq uint64 }
	hideControls    struct{ seq uint64 }
)

func (p *Player) post(ev event) {
	p.qmu.Lock()
	p.queue = append(p.queue, ev)
	if p.draining {
		p.qmu.Unlock()
		return
	}
	p.draining = true
	for len(p.queue) > 0 {
		next := p.queue[0]
		p.queue = p.queue[1:]
		p.qmu.Unlock()
		p.handle(next)
		p.qmu.Lock()
	}
	p.draining = false
	p.qmu.Unlock()
}

func (p *Player) handle(ev event) {
	if p.closed {
		return
	}
	p.settled = p.structural()

	switch e := ev.(type) {
	case cmdPlay:
		p.play()
	case cmdPause:
		p.pause()
	case cmdToggle:
		if p.status == Playing {
			p.pause()
		} else {
			p.play()
		}
	case cmdStop:
		p.stop()
	case cmdGoTo:
		p.goTo(e.index)
	case cmdStep:
		p.goTo(p.current + e.delta)
	case cmdMute:
		p.toggleMute()
	case cmdPointer:
		p.revealControls()
	case cmdClose:
		p.close()
		return
	case narrationEnded:
		if e.epoch != p.epoch || !p.narrating {
			return
		}
		p.narrating, p.suspended = false, false
		p.completeSlide()
	case narrationFailed:
		if e.epoch != p.epoch || !p.narrating {
			return
		}
		logger.WithFields(logrus.Fields{"slide": p.current, "error": e.err}).Warn("narration failed, advancing")
		p.narrating, p.suspended = false, false
		p.completeSlide()
	case fallbackElapsed:
		if e.seq != p.timerSeq {
			return
		}
		p.completeSlide()
	case progressTick:
		if e.seq != p.timerSeq || !p.running {
			return
		}
		p.progress = p.currentProgress()
		p.armTick()
	case hideControls:
		if e.seq == p.hideSeq && p.status == Playing {
			p.controlsVisible = false
		}
	}

	p.settle()
}

// settle reveals the controls after a structural change and publishes the
// resulting state.
func (p *Player) settle() {
	if s := p.structural(); s != p.settled {
		p.settled = s
		p.revealControls()
	}
	p.publish()
}

func (p *Player) play() {
	if p.status == Playing || len(p.pres.Slides) == 0 {
		return
	}
	wasPaused := p.status == Paused
	p.status = Playing

	if wasPaused && p.narrating && p.suspended {
		p.suspended = false
		p.narrator.Resume()
		p.startSegment()
		return
	}
	if !wasPaused {
		p.elapsed = 0
	}
	p.beginSlide()
}

func (p *Player) pause() {
	if p.status != Playing {
		return
	}
	p.status = Paused
	p.freeze()
	if p.narrating {
		p.narrator.Pause()
		p.suspended = true
	}
}

func (p *Player) stop() {
	p.cancelSlide()
	p.status = Stopped
	p.current = 0
	p.elapsed = 0
	p.progress = 0
}

func (p *Player) goTo(i int) {
	if i < 0 || i >= len(p.pres.Slides) {
		return
	}
	p.cancelSlide()
	p.current = i
	p.elapsed = 0
	p.progress = 0
	if p.status == Playing {
		p.beginSlide()
	}
}

func (p *Player) toggleMute() {
	p.muted = !p.muted
	if !p.muted || !p.narrating {
		return
	}

	// the audible narration stops now; a playing slide finishes on the
	// fallback timer from where it got to
	p.freeze()
	p.narrator.Cancel()
	p.narrating, p.suspended = false, false
	if p.status == Playing {
		p.beginSlide()
	}
}

func (p *Player) close() {
	p.cancelSlide()
	p.stopHide()
	p.closed = true
	p.closeOnce.Do(func() {
		if p.opts.onClose != nil {
			p.opts.onClose()
		}
	})
}

// beginSlide narrates the current slide, or runs the muted fallback timer,
// continuing from p.elapsed.
func (p *Player) beginSlide() {
	p.epoch++
	epoch := p.epoch
	slide := p.pres.Slides[p.current]

	if p.muted {
		p.estimate = p.opts.mutedDuration
		p.startSegment()
		return
	}

	text := narrationText(slide)
	p.estimate = EstimateDuration(text, p.opts.wordsPerMinute, p.opts.minDuration)
	p.startSegment()
	p.narrating = true

	// listeners see the slide before its narration starts
	p.settle()
	err := p.narrator.Start(text, p.opts.rate, p.opts.pitch, Callbacks{
		OnEnd:   func() { p.post(narrationEnded{epoch: epoch}) },
		OnError: func(err error) { p.post(narrationFailed{epoch: epoch, err: err}) },
	})
	if err != nil {
		p.post(narrationFailed{epoch: epoch, err: err})
	}
}

// completeSlide auto-advances, or stops after the last slide.
func (p *Player) completeSlide() {
	if p.current < len(p.pres.Slides)-1 {
		p.goTo(p.current + 1)
		return
	}
	p.stop()
}

// cancelSlide drops the in-flight narration and timers of the current slide.
func (p *Player) cancelSlide() {
	p.epoch++
	p.freeze()
	if p.narrating {
		p.narrator.Cancel()
		p.narrating, p.suspended = false, false
	}
}

// startSegment resumes the elapsed-time clock and arms the progress tick,
// plus the fallback timer when muted.
func (p *Player) startSegment() {
	p.stopTimers()
	p.running = true
	p.runStart = p.opts.clock.Now()
	p.progress = p.currentProgress()
	p.armTick()

	if p.muted {
		remaining := p.estimate - p.elapsed
		if remaining < 0 {
			remaining = 0
		}
		seq := p.timerSeq
		p.fallback = p.opts.clock.AfterFunc(remaining, func() { p.post(fallbackElapsed{seq: seq}) })
	}
}

// freeze stops the elapsed-time clock, keeping progress where it is.
func (p *Player) freeze() {
	if p.running {
		p.elapsed += p.opts.clock.Now().Sub(p.runStart)
		p.running = false
		p.progress = p.currentProgress()
	}
	p.stopTimers()
}

func (p *Player) stopTimers() {
	p.timerSeq++
	if p.tick != nil {
		p.tick.Stop()
		p.tick = nil
	}
	if p.fallback != nil {
		p.fallback.Stop()
		p.fallback = nil
	}
}

func (p *Player) armTick() {
	seq := p.timerSeq
	p.tick = p.opts.clock.AfterFunc(p.opts.tickInterval, func() { p.post(progressTick{seq: seq}) })
}

func (p *Player) currentProgress() float64 {
	if p.estimate <= 0 {
		return 0
	}
	elapsed := p.elapsed
	if p.running {
		elapsed += p.opts.clock.Now().Sub(p.runStart)
	}
	return clamp01(float64(elapsed) / float64(p.estimate))
}

// revealControls shows the controls and, while playing, schedules them to
// hide again after a quiet period.
func (p *Player) revealControls() {
	p.stopHide()
	p.controlsVisible = true
	if p.status != Playing {
		return
	}
	seq := p.hideSeq
	p.hide = p.opts.clock.AfterFunc(p.opts.controlsHide, func() { p.post(hideControls{seq: seq}) })
}

func (p *Player) stopHide() {
	p.hideSeq++
	if p.hide != nil {
		p.hide.Stop()
		p.hide = nil
	}
}

type structuralState struct {
	status  Status
	current int
	muted   bool
}

func (p *Player) structural() structuralState {
	return structuralState{status: p.status, current: p.current, muted: p.muted}
}

func (p *Player) snapshot() State {
	return State{
		Status:          p.status,
		CurrentSlide:    p.current,
		SlideCount:      len(p.pres.Slides),
		IsPlaying:       p.status == Playing,
		IsMuted:         p.muted,
		SlideProgress:   p.progress,
		ControlsVisible: p.controlsVisible || p.status != Playing,
	}
}

func (p *Player) publish() {
	s := p.snapshot()

	p.smu.Lock()
	if s == p.state {
		p.smu.Unlock()
		return
	}
	p.state = s
	listeners := append([]func(State){}, p.listeners...)
	p.smu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
