package storage

import (
	"sort"
	"sync"
	"time"

	"notebook-backend/internal/model"
)

type MemoryStorage struct {
	notebooks     map[string]*model.Notebook
	presentations map[string]*model.Presentation
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notebooks:     make(map[string]*model.Notebook),
		presentations: make(map[string]*model.Presentation),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) CreateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notebooks[notebook.ID] = cloneNotebook(notebook)
	return nil
}

func (m *MemoryStorage) GetNotebook(notebookID string) (*model.Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notebook, exists := m.notebooks[notebookID]
	if !exists {
		return nil, ErrNotebookNotFound
	}
	return cloneNotebook(notebook), nil
}

func (m *MemoryStorage) UpdateNotebook(notebook *model.Notebook) error {
	if err := validNotebook(notebook); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notebooks[notebook.ID]; !exists {
		return ErrNotebookNotFound
	}
	m.notebooks[notebook.ID] = cloneNotebook(notebook)
	return nil
}

func (m *MemoryStorage) DeleteNotebook(notebookID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notebooks[notebookID]; !exists {
		return ErrNotebookNotFound
	}
	delete(m.notebooks, notebookID)
	for id, p := range m.presentations {
		if p.NotebookID == notebookID {
			delete(m.presentations, id)
		}
	}
	return nil
}

func (m *MemoryStorage) ListNotebooks() ([]*model.Notebook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notebooks := make([]*model.Notebook, 0, len(m.notebooks))
	for _, notebook := range m.notebooks {
		notebooks = append(notebooks, cloneNotebook(notebook))
	}
	sort.Slice(notebooks, func(i, j int) bool {
		return notebooks[i].UpdatedAt.After(notebooks[j].UpdatedAt)
	})
	return notebooks, nil
}

func (m *MemoryStorage) AddSource(notebookID string, source *model.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notebook, exists := m.notebooks[notebookID]
	if !exists {
		return ErrNotebookNotFound
	}
	notebook.Sources = append(notebook.Sources, *source)
	notebook.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) DeleteSource(notebookID, sourceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notebook, exists := m.notebooks[notebookID]
	if !exists {
		return ErrNotebookNotFound
	}
	for i, s := range notebook.Sources {
		if s.ID == sourceID {
			notebook.Sources = append(notebook.Sources[:i:i], notebook.Sources[i+1:]...)
			notebook.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrSourceNotFound
}

func (m *MemoryStorage) AddMessage(notebookID string, message *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	notebook, exists := m.notebooks[notebookID]
	if !exists {
		return ErrNotebookNotFound
	}
	notebook.Messages = append(notebook.Messages, *message)
	notebook.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) GetMessages(notebookID string) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notebook, exists := m.notebooks[notebookID]
	if !exists {
		return nil, ErrNotebookNotFound
	}
	return messagePointers(notebook.Messages), nil
}

func (m *MemoryStorage) SavePresentation(presentation *model.Presentation) error {
	if presentation == nil || presentation.ID == "" {
		return ErrInvalidData
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.presentations[presentation.ID] = clonePresentation(presentation)
	return nil
}

func (m *MemoryStorage) GetPresentation(presentationID string) (*model.Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.presentations[presentationID]
	if !exists {
		return nil, ErrPresentationNotFound
	}
	return clonePresentation(p), nil
}

func (m *MemoryStorage) ListPresentations(notebookID string) ([]*model.Presentation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Presentation
	for _, p := range m.presentations {
		if notebookID == "" || p.NotebookID == notebookID {
			out = append(out, clonePresentation(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
