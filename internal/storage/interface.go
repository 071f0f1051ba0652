package storage

import (
	"notebook-backend/internal/model"
)

// Storage persists notebooks with their sources and chat history, plus the
// presentations generated from them. Implementations return copies; callers
// may modify what they get back.
type Storage interface {
	// notebooks
	CreateNotebook(notebook *model.Notebook) error
	GetNotebook(notebookID string) (*model.Notebook, error)
	UpdateNotebook(notebook *model.Notebook) error
	DeleteNotebook(notebookID string) error
	ListNotebooks() ([]*model.Notebook, error)

	// sources and messages
	AddSource(notebookID string, source *model.Source) error
	DeleteSource(notebookID, sourceID string) error
	AddMessage(notebookID string, message *model.Message) error
	GetMessages(notebookID string) ([]*model.Message, error)

	// presentations
	SavePresentation(presentation *model.Presentation) error
	GetPresentation(presentationID string) (*model.Presentation, error)
	ListPresentations(notebookID string) ([]*model.Presentation, error)

	Init() error
	Close() error
	Backup() error
}
