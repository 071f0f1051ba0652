package service

import (
	"fmt"
	"strings"

	"notebook-backend/internal/model"
)

const defaultChatPrompt = `You are a research assistant working inside the user's notebook.
Answer using the sources below. When the sources do not cover a question, say so
before drawing on general knowledge. Cite a source by its name in square
brackets, for example [lecture-notes.pdf].`

const defaultPresentationPrompt = `Create a short slide presentation from the sources below.
Reply with JSON only, no prose, in exactly this shape:
{"title": "...", "slides": [{"title": "...", "points": ["..."], "narration": "...", "color": "blue"}]}
Use 4 to 8 slides and at most 5 points per slide. "narration" is what a
presenter would say aloud for the slide, two to four sentences. "color" is one
of blue, purple, green, orange, pink, cyan.`

var contentPrompts = map[model.ContentKind]string{
	model.ContentSummary: `Write a concise summary of the sources: an overview paragraph,
then the key points as a bulleted list. Use markdown.`,
	model.ContentStudyGuide: `Write a study guide for the sources in markdown with sections
"Key Concepts", "Important Terms" (term and definition), "Review Questions"
and "Further Exploration".`,
	model.ContentFAQ: `Write a list of 8 to 12 frequently asked questions about the
sources with concise answers. Format each as "### Question" followed by the
answer.`,
	model.ContentBriefing: `Write a briefing document on the sources for a busy reader:
executive summary, main themes, notable facts and figures, and open questions.
Use markdown headings.`,
}

// sourceContext renders sources for a system prompt. Each source is cut to
// maxChars runes; a non-positive maxChars keeps everything.
func sourceContext(sources []model.SourceDocument, maxChars int) string {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, s := range sources {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("source-%d", i+1)
		}
		fmt.Fprintf(&b, "\n--- [%s] ---\n", name)
		if ex := strings.TrimSpace(s.Excerpt); ex != "" {
			fmt.Fprintf(&b, "Excerpt: %s\n", ex)
		}
		b.WriteString(truncateRunes(strings.TrimSpace(s.Content), maxChars))
		b.WriteString("\n")
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func withDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
