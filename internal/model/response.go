package model

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type NotebookResponse struct {
	NotebookID   string    `json:"notebook_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SourceCount  int       `json:"source_count"`
	MessageCount int       `json:"message_count"`
}

type Notebook struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Sources   []Source  `json:"sources"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary drops sources and messages for list views.
func (n *Notebook) Summary() NotebookResponse {
	return NotebookResponse{
		NotebookID:   n.ID,
		Title:        n.Title,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
		SourceCount:  len(n.Sources),
		MessageCount: len(n.Messages),
	}
}

// Documents returns the notebook's sources in request form.
func (n *Notebook) Documents() []SourceDocument {
	docs := make([]SourceDocument, 0, len(n.Sources))
	for _, s := range n.Sources {
		docs = append(docs, s.Document())
	}
	return docs
}

type Source struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Excerpt    string    `json:"excerpt,omitempty"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Source) Document() SourceDocument {
	return SourceDocument{Name: s.Name, Content: s.Content, Excerpt: s.Excerpt}
}

type Message struct {
	ID         string    `json:"id"`
	NotebookID string    `json:"notebook_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}
