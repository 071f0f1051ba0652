package live

import (
	"errors"
	"sync"

	"notebook-backend/internal/player"
)

// RemoteNarrator forwards narration to the connected browser, which speaks
// it and reports back with narration_ended or narration_failed.
type RemoteNarrator struct {
	send func(ServerMessage)

	mu      sync.Mutex
	nextID  uint64
	current uint64
	cb      player.Callbacks
}

func NewRemoteNarrator(send func(ServerMessage)) *RemoteNarrator {
	return &RemoteNarrator{send: send}
}

var _ player.Narrator = (*RemoteNarrator)(nil)

func (n *RemoteNarrator) Start(text string, rate, pitch float64, cb player.Callbacks) error {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.current = id
	n.cb = cb
	n.mu.Unlock()

	n.send(ServerMessage{
		Type:      MsgNarrate,
		Narration: &Narration{ID: id, Text: text, Rate: rate, Pitch: pitch},
	})
	return nil
}

func (n *RemoteNarrator) Cancel() {
	n.mu.Lock()
	id := n.current
	n.current = 0
	n.cb = player.Callbacks{}
	n.mu.Unlock()

	if id != 0 {
		n.send(ServerMessage{Type: MsgNarrationCancel, ID: id})
	}
}

func (n *RemoteNarrator) Pause() {
	if id := n.active(); id != 0 {
		n.send(ServerMessage{Type: MsgNarrationPause, ID: id})
	}
}

func (n *RemoteNarrator) Resume() {
	if id := n.active(); id != 0 {
		n.send(ServerMessage{Type: MsgNarrationResume, ID: id})
	}
}

// Ended reports that the browser finished narration id. Reports for anything
// but the current narration are ignored.
func (n *RemoteNarrator) Ended(id uint64) {
	if cb, ok := n.finish(id); ok && cb.OnEnd != nil {
		cb.OnEnd()
	}
}

// Failed reports that the browser could not speak narration id.
func (n *RemoteNarrator) Failed(id uint64, reason string) {
	if reason == "" {
		reason = "narration failed"
	}
	if cb, ok := n.finish(id); ok && cb.OnError != nil {
		cb.OnError(errors.New(reason))
	}
}

func (n *RemoteNarrator) active() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *RemoteNarrator) finish(id uint64) (player.Callbacks, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if id == 0 || id != n.current {
		return player.Callbacks{}, false
	}
	cb := n.cb
	n.current = 0
	n.cb = player.Callbacks{}
	return cb, true
}
