package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the conversation history sent by the client.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// SourceDocument is a grounding document attached to a generation request.
type SourceDocument struct {
	Name    string `json:"name"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt,omitempty"`
}

type ChatRequest struct {
	Messages   []ChatMessage    `json:"messages" binding:"required,min=1,dive"`
	Sources    []SourceDocument `json:"sources"`
	NotebookID string           `json:"notebook_id,omitempty"`
}

// ContentKind names a derived artifact produced from the sources.
type ContentKind string

const (
	ContentSummary    ContentKind = "summary"
	ContentStudyGuide ContentKind = "study_guide"
	ContentFAQ        ContentKind = "faq"
	ContentBriefing   ContentKind = "briefing"
)

func (k ContentKind) Valid() bool {
	switch k {
	case ContentSummary, ContentStudyGuide, ContentFAQ, ContentBriefing:
		return true
	}
	return false
}

type ContentRequest struct {
	Kind         ContentKind      `json:"kind"`
	Sources      []SourceDocument `json:"sources"`
	NotebookID   string           `json:"notebook_id,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
}

type PresentationRequest struct {
	Sources    []SourceDocument `json:"sources"`
	NotebookID string           `json:"notebook_id,omitempty"`
	Topic      string           `json:"topic,omitempty"`
}

type CreateNotebookRequest struct {
	Title string `json:"title"`
}

type UpdateNotebookRequest struct {
	Title string `json:"title" binding:"required"`
}

type AddSourceRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}
