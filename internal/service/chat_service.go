package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"notebook-backend/internal/config"
	"notebook-backend/internal/model"
	"notebook-backend/pkg/logger"
)

// ChatService streams grounded chat answers and derived content from the
// configured chat model.
type ChatService struct {
	chatModel einoModel.BaseChatModel
	notebooks *NotebookService
	cfg       config.GenerationConfig
}

// NewChatService wires a chat model to notebook persistence. notebooks may be
// nil, in which case nothing is recorded and notebook_id is ignored.
func NewChatService(chatModel einoModel.BaseChatModel, notebooks *NotebookService, cfg config.GenerationConfig) *ChatService {
	return &ChatService{
		chatModel: chatModel,
		notebooks: notebooks,
		cfg:       cfg,
	}
}

// StreamChat answers the last message of req. Deltas arrive on the first
// channel; at most one error arrives on the second. Both close when the
// answer is complete. Validation failures are reported before any delta.
func (s *ChatService) StreamChat(ctx context.Context, req model.ChatRequest) (<-chan string, <-chan error) {
	if len(req.Messages) == 0 {
		return failed(ErrNoMessages)
	}

	sources, err := s.resolveSources(req.Sources, req.NotebookID)
	if err != nil {
		return failed(err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(withDefault(s.cfg.ChatPrompt, defaultChatPrompt) + "\n\n" + sourceContext(sources, s.cfg.MaxSourceChars)),
	}
	messages = append(messages, s.history(req.Messages)...)

	record := s.recording(req.NotebookID)
	if record {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == model.RoleUser {
			if _, err := s.notebooks.RecordMessage(req.NotebookID, model.RoleUser, last.Content); err != nil {
				logger.Warnf("Failed to record user message: %v", err)
			}
		}
	}

	return s.stream(ctx, messages, func(answer string) {
		if !record || answer == "" {
			return
		}
		if _, err := s.notebooks.RecordMessage(req.NotebookID, model.RoleAssistant, answer); err != nil {
			logger.Warnf("Failed to record assistant message: %v", err)
		}
	})
}

// StreamContent generates a summary, study guide, FAQ or briefing from the
// sources. It requires at least one source and does not call the model
// otherwise.
func (s *ChatService) StreamContent(ctx context.Context, req model.ContentRequest) (<-chan string, <-chan error) {
	prompt, ok := contentPrompts[req.Kind]
	if !ok {
		return failed(fmt.Errorf("%w: %q", ErrInvalidKind, req.Kind))
	}

	sources, err := s.resolveSources(req.Sources, req.NotebookID)
	if err != nil {
		return failed(err)
	}
	if len(sources) == 0 {
		return failed(ErrNoSources)
	}

	user := "Generate it now."
	if ins := strings.TrimSpace(req.Instructions); ins != "" {
		user = ins
	}
	messages := []*schema.Message{
		schema.SystemMessage(prompt + "\n\n" + sourceContext(sources, s.cfg.MaxSourceChars)),
		schema.UserMessage(user),
	}
	return s.stream(ctx, messages, nil)
}

func (s *ChatService) stream(ctx context.Context, messages []*schema.Message, onDone func(string)) (<-chan string, <-chan error) {
	deltas := make(chan string, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		sr, err := s.chatModel.Stream(ctx, messages)
		if err != nil {
			errs <- fmt.Errorf("start model stream: %w", err)
			return
		}
		defer sr.Close()

		var full strings.Builder
		for {
			chunk, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				logger.WithFields(logrus.Fields{"received": full.Len(), "error": err}).Warn("model stream failed")
				errs <- err
				return
			}
			if chunk == nil || chunk.Content == "" {
				continue
			}

			full.WriteString(chunk.Content)
			select {
			case deltas <- chunk.Content:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}

		if onDone != nil {
			onDone(full.String())
		}
	}()

	return deltas, errs
}

// resolveSources falls back to the notebook's stored sources when the
// request carries none.
func (s *ChatService) resolveSources(sources []model.SourceDocument, notebookID string) ([]model.SourceDocument, error) {
	if len(sources) > 0 || notebookID == "" || s.notebooks == nil {
		return sources, nil
	}
	return s.notebooks.Documents(notebookID)
}

func (s *ChatService) recording(notebookID string) bool {
	return notebookID != "" && s.notebooks != nil
}

func (s *ChatService) history(in []model.ChatMessage) []*schema.Message {
	start := 0
	if limit := s.cfg.MaxHistoryMessages; limit > 0 && len(in) > limit {
		start = len(in) - limit
	}

	out := make([]*schema.Message, 0, len(in)-start)
	for _, m := range in[start:] {
		role := schema.User
		if m.Role == model.RoleAssistant {
			role = schema.Assistant
		}
		out = append(out, &schema.Message{Role: role, Content: m.Content})
	}
	return out
}

func failed(err error) (<-chan string, <-chan error) {
	deltas := make(chan string)
	errs := make(chan error, 1)
	errs <- err
	close(deltas)
	close(errs)
	return deltas, errs
}
