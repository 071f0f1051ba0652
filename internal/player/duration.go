package player

import (
	"strings"
	"time"

	"notebook-backend/internal/model"
)

// EstimateDuration guesses how long text takes to speak at wpm words per
// minute, never returning less than floor.
func EstimateDuration(text string, wpm int, floor time.Duration) time.Duration {
	if wpm <= 0 {
		return floor
	}
	words := len(strings.Fields(text))
	d := time.Duration(words) * time.Minute / time.Duration(wpm)
	if d < floor {
		return floor
	}
	return d
}

// narrationText is what gets spoken for a slide. Slides without narration
// read out their title and points instead.
func narrationText(s model.Slide) string {
	if t := strings.TrimSpace(s.Narration); t != "" {
		return t
	}
	parts := append([]string{s.Title}, s.Points...)
	return strings.Join(parts, ". ")
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
