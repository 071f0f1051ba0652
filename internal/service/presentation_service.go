package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
	"notebook-backend/internal/storage"
	"notebook-backend/pkg/logger"
)

// PresentationService turns sources into slide decks and keeps them.
type PresentationService struct {
	chatModel einoModel.BaseChatModel
	notebooks *NotebookService
	storage   storage.Storage
	cfg       config.GenerationConfig
}

func NewPresentationService(chatModel einoModel.BaseChatModel, notebooks *NotebookService, store storage.Storage, cfg config.GenerationConfig) *PresentationService {
	return &PresentationService{
		chatModel: chatModel,
		notebooks: notebooks,
		storage:   store,
		cfg:       cfg,
	}
}

// Generate asks the model for a deck, validates it and stores it.
func (s *PresentationService) Generate(ctx context.Context, req model.PresentationRequest) (*model.Presentation, error) {
	sources := req.Sources
	if len(sources) == 0 && req.NotebookID != "" && s.notebooks != nil {
		docs, err := s.notebooks.Documents(req.NotebookID)
		if err != nil {
			return nil, err
		}
		sources = docs
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	user := "Create the presentation."
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		user = "Create the presentation, focusing on: " + topic
	}
	messages := []*schema.Message{
		schema.SystemMessage(withDefault(s.cfg.PresentationPrompt, defaultPresentationPrompt) + "\n\n" + sourceContext(sources, s.cfg.MaxSourceChars)),
		schema.UserMessage(user),
	}

	start := time.Now()
	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate presentation: %w", err)
	}

	p, err := model.ParsePresentation([]byte(resp.Content))
	if err != nil {
		logger.Warnf("Unusable presentation from model (%d bytes): %v", len(resp.Content), err)
		return nil, fmt.Errorf("%w: %v", ErrModelOutput, err)
	}

	p.ID = uuid.New().String()
	p.NotebookID = req.NotebookID
	p.CreatedAt = time.Now()
	if p.Title == "" {
		p.Title = "Presentation"
	}

	if s.storage != nil {
		if err := s.storage.SavePresentation(p); err != nil {
			return nil, fmt.Errorf("failed to save presentation: %w", err)
		}
	}

	logger.Infof("Generated presentation %s with %d slides in %v", p.ID, len(p.Slides), time.Since(start).Round(time.Millisecond))
	return p, nil
}

func (s *PresentationService) Get(id string) (*model.Presentation, error) {
	p, err := s.storage.GetPresentation(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get presentation %s: %w", id, err)
	}
	return p, nil
}

func (s *PresentationService) List(notebookID string) ([]*model.Presentation, error) {
	list, err := s.storage.ListPresentations(notebookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presentations: %w", err)
	}
	return list, nil
}
