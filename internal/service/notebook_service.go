package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"notebook-backend/internal/model"
	"notebook-backend/internal/storage"
	"notebook-backend/pkg/logger"
)

const defaultNotebookTitle = "Untitled notebook"

// NotebookService manages notebooks, their sources and chat history.
type NotebookService struct {
	storage storage.Storage
}

func NewNotebookService(store storage.Storage) *NotebookService {
	return &NotebookService{storage: store}
}

func (s *NotebookService) Storage() storage.Storage {
	return s.storage
}

func (s *NotebookService) CreateNotebook(title string) (*model.Notebook, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultNotebookTitle
	}

	now := time.Now()
	notebook := &model.Notebook{
		ID:        uuid.New().String(),
		Title:     title,
		Sources:   []model.Source{},
		Messages:  []model.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.CreateNotebook(notebook); err != nil {
		return nil, fmt.Errorf("failed to create notebook: %w", err)
	}
	logger.Infof("Created notebook %s", notebook.ID)
	return notebook, nil
}

func (s *NotebookService) GetNotebook(id string) (*model.Notebook, error) {
	notebook, err := s.storage.GetNotebook(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notebook %s: %w", id, err)
	}
	return notebook, nil
}

func (s *NotebookService) ListNotebooks() ([]*model.Notebook, error) {
	notebooks, err := s.storage.ListNotebooks()
	if err != nil {
		return nil, fmt.Errorf("failed to list notebooks: %w", err)
	}
	return notebooks, nil
}

func (s *NotebookService) RenameNotebook(id, title string) (*model.Notebook, error) {
	notebook, err := s.storage.GetNotebook(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notebook %s: %w", id, err)
	}

	notebook.Title = strings.TrimSpace(title)
	notebook.UpdatedAt = time.Now()
	if err := s.storage.UpdateNotebook(notebook); err != nil {
		return nil, fmt.Errorf("failed to update notebook: %w", err)
	}
	return notebook, nil
}

func (s *NotebookService) DeleteNotebook(id string) error {
	if err := s.storage.DeleteNotebook(id); err != nil {
		return fmt.Errorf("failed to delete notebook %s: %w", id, err)
	}
	return nil
}

func (s *NotebookService) AddSource(notebookID string, req model.AddSourceRequest) (*model.Source, error) {
	source := &model.Source{
		ID:         uuid.New().String(),
		NotebookID: notebookID,
		Name:       strings.TrimSpace(req.Name),
		Content:    req.Content,
		Excerpt:    strings.TrimSpace(req.Excerpt),
		URL:        strings.TrimSpace(req.URL),
		CreatedAt:  time.Now(),
	}
	if err := s.storage.AddSource(notebookID, source); err != nil {
		return nil, fmt.Errorf("failed to add source: %w", err)
	}
	return source, nil
}

func (s *NotebookService) RemoveSource(notebookID, sourceID string) error {
	if err := s.storage.DeleteSource(notebookID, sourceID); err != nil {
		return fmt.Errorf("failed to remove source %s: %w", sourceID, err)
	}
	return nil
}

func (s *NotebookService) Messages(notebookID string) ([]model.Message, error) {
	messages, err := s.storage.GetMessages(notebookID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = *msg
	}
	return result, nil
}

// RecordMessage appends a chat turn. The first user message names a notebook
// that still has the default title.
func (s *NotebookService) RecordMessage(notebookID, role, content string) (*model.Message, error) {
	message := &model.Message{
		ID:         uuid.New().String(),
		NotebookID: notebookID,
		Role:       role,
		Content:    content,
		Timestamp:  time.Now(),
	}
	if err := s.storage.AddMessage(notebookID, message); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	if role == model.RoleUser {
		notebook, err := s.storage.GetNotebook(notebookID)
		if err == nil && notebook.Title == defaultNotebookTitle && countRole(notebook.Messages, model.RoleUser) == 1 {
			if _, err := s.RenameNotebook(notebookID, truncateRunes(strings.TrimSpace(content), 30)); err != nil {
				logger.Warnf("Failed to title notebook %s: %v", notebookID, err)
			}
		}
	}
	return message, nil
}

// Documents returns the notebook's sources as generation input.
func (s *NotebookService) Documents(notebookID string) ([]model.SourceDocument, error) {
	notebook, err := s.GetNotebook(notebookID)
	if err != nil {
		return nil, err
	}
	return notebook.Documents(), nil
}

func countRole(messages []model.Message, role string) int {
	n := 0
	for _, m := range messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
