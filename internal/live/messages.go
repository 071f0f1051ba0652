package live

import "notebook-backend/internal/player"

// Client to server commands.
const (
	CmdPlay            = "play"
	CmdPause           = "pause"
	CmdStop            = "stop"
	CmdGoTo            = "goto"
	CmdNext            = "next"
	CmdPrevious        = "previous"
	CmdMute            = "mute"
	CmdKey             = "key"
	CmdPointer         = "pointer"
	CmdNarrationEnded  = "narration_ended"
	CmdNarrationFailed = "narration_failed"
	CmdClose           = "close"
)

// Server to client messages.
const (
	MsgState           = "state"
	MsgNarrate         = "narrate"
	MsgNarrationCancel = "narration_cancel"
	MsgNarrationPause  = "narration_pause"
	MsgNarrationResume = "narration_resume"
	MsgError           = "error"
)

type ClientMessage struct {
	Type  string `json:"type"`
	Index int    `json:"index,omitempty"`
	Key   string `json:"key,omitempty"`
	ID    uint64 `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type ServerMessage struct {
	Type      string        `json:"type"`
	State     *player.State `json:"state,omitempty"`
	Narration *Narration    `json:"narration,omitempty"`
	ID        uint64        `json:"id,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Narration asks the browser to speak text and report back with ID.
type Narration struct {
	ID    uint64  `json:"id"`
	Text  string  `json:"text"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}
