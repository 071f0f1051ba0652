package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ColorTheme is the accent palette of a slide.
type ColorTheme string

const (
	ColorBlue   ColorTheme = "blue"
	ColorPurple ColorTheme = "purple"
	ColorGreen  ColorTheme = "green"
	ColorOrange ColorTheme = "orange"
	ColorPink   ColorTheme = "pink"
	ColorCyan   ColorTheme = "cyan"
)

// Palette lists every theme in the order used to fill in missing colours.
var Palette = []ColorTheme{ColorBlue, ColorPurple, ColorGreen, ColorOrange, ColorPink, ColorCyan}

func (c ColorTheme) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

type Slide struct {
	Title     string     `json:"title" yaml:"title"`
	Points    []string   `json:"points" yaml:"points"`
	Narration string     `json:"narration" yaml:"narration"`
	Color     ColorTheme `json:"color" yaml:"color"`
}

type Presentation struct {
	ID         string    `json:"id,omitempty" yaml:"id,omitempty"`
	NotebookID string    `json:"notebook_id,omitempty" yaml:"notebook_id,omitempty"`
	Title      string    `json:"title" yaml:"title"`
	Slides     []Slide   `json:"slides" yaml:"slides"`
	CreatedAt  time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

var ErrEmptyPresentation = errors.New("presentation has no slides")

// Normalize trims text, drops blank points and replaces unknown colours with
// the palette entry for the slide's position.
func (p *Presentation) Normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	slides := p.Slides[:0]
	for _, s := range p.Slides {
		s.Title = strings.TrimSpace(s.Title)
		s.Narration = strings.TrimSpace(s.Narration)
		points := make([]string, 0, len(s.Points))
		for _, pt := range s.Points {
			if pt = strings.TrimSpace(pt); pt != "" {
				points = append(points, pt)
			}
		}
		s.Points = points
		if s.Title == "" && len(s.Points) == 0 && s.Narration == "" {
			continue
		}
		s.Color = ColorTheme(strings.ToLower(string(s.Color)))
		if !s.Color.Valid() {
			s.Color = Palette[len(slides)%len(Palette)]
		}
		slides = append(slides, s)
	}
	p.Slides = slides
	if len(p.Slides) == 0 {
		return ErrEmptyPresentation
	}
	return nil
}

// ParsePresentation decodes and normalizes a generated presentation. Model
// output wrapped in a markdown code fence is accepted.
func ParsePresentation(data []byte) (*Presentation, error) {
	raw := stripCodeFence(strings.TrimSpace(string(data)))
	var p Presentation
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode presentation: %w", err)
	}
	if err := p.Normalize(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPresentationFile reads a deck from a .json, .yaml or .yml file.
func LoadPresentationFile(path string) (*Presentation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var p Presentation
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if err := p.Normalize(); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return ParsePresentation(data)
	}
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
