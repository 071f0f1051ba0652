package player

// Callbacks report how a narration ended. At most one of them fires per
// Start, and either may fire synchronously from inside Start.
type Callbacks struct {
	OnEnd   func()
	OnError func(err error)
}

// Narrator speaks slide narration. Cancel, Pause and Resume act on the
// narration most recently started and are no-ops when there is none.
type Narrator interface {
	Start(text string, rate, pitch float64, cb Callbacks) error
	Cancel()
	Pause()
	Resume()
}

// Silent is a Narrator that never produces audio. Every Start ends
// immediately, so an unmuted player using it advances as soon as a slide
// begins; pair it with mute for timed playback.
type Silent struct{}

func (Silent) Start(_ string, _, _ float64, cb Callbacks) error {
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
	return nil
}

func (Silent) Cancel() {}
func (Silent) Pause()  {}
func (Silent) Resume() {}
