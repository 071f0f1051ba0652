package player

import "fmt"

// Status is the playback state of a Player.
type Status int

const (
	Stopped Status = iota
	Playing
	Paused
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = Stopped
	case "playing":
		*s = Playing
	case "paused":
		*s = Paused
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// State is a snapshot of a Player, safe to hand to UIs.
type State struct {
	Status          Status  `json:"status"`
	CurrentSlide    int     `json:"current_slide"`
	SlideCount      int     `json:"slide_count"`
	IsPlaying       bool    `json:"is_playing"`
	IsMuted         bool    `json:"is_muted"`
	SlideProgress   float64 `json:"slide_progress"`
	ControlsVisible bool    `json:"controls_visible"`
}
